package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wesleyorama2/gabsload/internal/config"
)

// addSettingsFlags registers a persistent flag per setting and binds it to
// the setting key. Flag defaults are never used directly; viper reports
// the flag value only once it has been set.
func addSettingsFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()

	f.StringP("config", "c", "", "Config file (yaml)")

	f.String("base-url", "", "Target API base URL")
	f.String("token-mode", "", "Token store mode: shared or per-vu")
	f.Float64("refresh-probability", 0, "Probability of refreshing a token before an authenticated step")
	f.Duration("drain-timeout", 0, "How long in-flight journeys may run after the last stage")
	f.Duration("request-timeout", 0, "Per-request timeout")
	f.Float64("max-rps", 0, "Cap on aggregate requests per second (0 = unlimited)")
	f.Int("max-conns-per-host", 0, "Limit on connections to the target (0 = unlimited)")
	f.Bool("insecure-tls", false, "Skip TLS certificate verification")
	f.Float64("think-scale", 0, "Multiplier applied to think times (0 disables them)")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	f.String("credentials-file", "", "YAML file with test accounts per actor kind")
	f.String("report", "", "Write the JSON report to this path")
	f.String("log-level", "", "Log level: debug, info, warn or error")
	f.String("log-format", "", "Log format: console or json")
	f.Bool("skip-health-check", false, "Do not require GET /health to answer 200 before the run")
	f.String("profile-file", "", "YAML custom profile applied over the test type")
	f.String("stages", "", "Override stages, e.g. '30s:10,1m:10,30s:0'")
	f.Bool("no-color", false, "Disable colored output")

	bind := map[string]string{
		"base-url":            config.KeyBaseURL,
		"token-mode":          config.KeyTokenMode,
		"refresh-probability": config.KeyRefreshProbability,
		"drain-timeout":       config.KeyDrainTimeout,
		"request-timeout":     config.KeyRequestTimeout,
		"max-rps":             config.KeyMaxRPS,
		"max-conns-per-host":  config.KeyMaxConnsPerHost,
		"insecure-tls":        config.KeyInsecureTLS,
		"think-scale":         config.KeyThinkScale,
		"metrics-addr":        config.KeyMetricsAddr,
		"credentials-file":    config.KeyCredentialsFile,
		"report":              config.KeyReportPath,
		"log-level":           config.KeyLogLevel,
		"log-format":          config.KeyLogFormat,
		"skip-health-check":   config.KeySkipHealthCheck,
		"profile-file":        config.KeyProfileFile,
		"stages":              config.KeyStages,
		"no-color":            config.KeyNoColor,
	}
	f.VisitAll(func(fl *pflag.Flag) {
		if key, ok := bind[fl.Name]; ok {
			// BindPFlag only fails for a nil flag
			_ = v.BindPFlag(key, fl)
		}
	})
}
