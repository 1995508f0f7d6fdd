package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/gabsload/internal/config"
	"github.com/wesleyorama2/gabsload/internal/output"
	"github.com/wesleyorama2/gabsload/internal/runner"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [smoke|load|stress|spike|soak]",
		Short: "Run a load test",
		Long: `Run one of the built-in test types, optionally reshaped by
--profile-file or --stages.

  gabsload run smoke
  gabsload run load --base-url https://staging.example.com/api --report out/load.json
  gabsload run --profile-file checkout.yaml
  gabsload run stress --stages "1m:100,2m:100,30s:0" --max-rps 500

The command exits non-zero when the target fails the health check, when
the configuration is invalid, or when any threshold fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			testType := ""
			if len(args) == 1 {
				testType = args[0]
			}
			quiet, _ := cmd.Flags().GetBool("quiet")
			return a.run(cmd, testType, quiet)
		},
	}

	cmd.Flags().BoolP("quiet", "q", false, "Disable live progress output, show only the verdict")
	return cmd
}

func (a *app) run(cmd *cobra.Command, testType string, quiet bool) error {
	p, err := config.ResolveProfile(testType, a.settings)
	if err != nil {
		return err
	}

	console := output.NewConsole(output.ConsoleConfig{
		Writer:  cmd.OutOrStdout(),
		NoColor: a.settings.NoColor,
		Quiet:   quiet,
	})

	r, err := runner.New(p, a.settings, runner.WithLogger(a.logger), runner.WithConsole(console))
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	_, err = r.Run(ctx)
	return err
}

// signalContext is cancelled on SIGINT or SIGTERM. For a run that starts
// the drain.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
