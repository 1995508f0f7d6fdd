package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/gabsload/internal/output"
	"github.com/wesleyorama2/gabsload/internal/runner"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the target API answers GET /health with 200",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := runner.NewClient(a.settings)
			defer client.Close()

			scheme := output.NewConsole(output.ConsoleConfig{
				Writer:  cmd.OutOrStdout(),
				NoColor: a.settings.NoColor,
			}).Scheme()

			d, err := runner.CheckHealth(cmd.Context(), client)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is unreachable\n", scheme.PassIcon(false), a.settings.BaseURL)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is healthy (%s)\n", scheme.PassIcon(true), a.settings.BaseURL, d.Round(100*time.Microsecond))
			return nil
		},
	}
}
