// Package cli implements the gabsload command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wesleyorama2/gabsload/internal/config"
)

var version = "0.1.0"

// app is the state shared by every command of one invocation.
type app struct {
	v        *viper.Viper
	settings *config.Settings
	logger   *zap.Logger
}

// NewRootCmd builds the command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.New(), logger: zap.NewNop()}

	root := &cobra.Command{
		Use:     "gabsload",
		Short:   "Load testing harness for a food-delivery API",
		Version: version,
		Long: `gabsload drives customer, vendor and rider journeys against a
food-delivery API with a staged virtual-user ramp, checks the results
against thresholds and grades the run.

Settings come from defaults, an optional --config file, GABSLOAD_*
environment variables and flags, in increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}

	addSettingsFlags(root, a.v)

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newCheckCmd(a))
	root.AddCommand(newProfilesCmd(a))
	root.AddCommand(newMockAPICmd(a))
	return root
}

// load resolves settings and builds the logger before any command runs.
func (a *app) load(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if err := config.ReadFile(a.v, path); err != nil {
		return err
	}

	s, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.settings = s

	logger, err := newLogger(s.LogLevel, s.LogFormat)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	return execute(NewRootCmd(), os.Args[1:], os.Stderr)
}

func execute(root *cobra.Command, args []string, stderr io.Writer) error {
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return err
	}
	return nil
}
