package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/gabsload/internal/testserver"
)

func newMockAPICmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock-api",
		Short: "Serve an in-memory food-delivery API for dry runs",
		Long: `Serve the fake API used by the test suite. Point a run at it with
--base-url http://localhost:3000/api.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			vendors, _ := cmd.Flags().GetInt("vendors")
			latency, _ := cmd.Flags().GetDuration("latency")
			errorRate, _ := cmd.Flags().GetFloat64("error-rate")
			ttl, _ := cmd.Flags().GetDuration("token-ttl")

			srv := testserver.New(testserver.Options{
				Vendors:   vendors,
				Latency:   latency,
				ErrorRate: errorRate,
				TokenTTL:  ttl,
				Logger:    a.logger,
			})

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().String("addr", ":3000", "Listen address")
	cmd.Flags().Int("vendors", 4, "Number of vendors in the catalog")
	cmd.Flags().Duration("latency", 0, "Delay added to every response")
	cmd.Flags().Float64("error-rate", 0, "Fraction of requests answered with 500")
	cmd.Flags().Duration("token-ttl", 15*time.Minute, "Lifetime of issued tokens")
	return cmd
}
