// Package config resolves harness settings and custom run profiles.
//
// Settings are layered with viper: defaults, then an optional yaml config
// file, then GABSLOAD_* environment variables, then command-line flags.
// Custom profiles and credential pools are separate yaml files.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/wesleyorama2/gabsload/internal/failure"
)

// EnvPrefix prefixes every environment override, e.g. GABSLOAD_BASE_URL.
const EnvPrefix = "GABSLOAD"

// Token modes.
const (
	TokenModeShared = "shared"
	TokenModePerVU  = "per-vu"
)

// Setting keys.
const (
	KeyBaseURL            = "base_url"
	KeyTokenMode          = "token_mode"
	KeyRefreshProbability = "refresh_probability"
	KeyDrainTimeout       = "drain_timeout"
	KeyRequestTimeout     = "request_timeout"
	KeyMaxRPS             = "max_rps"
	KeyMaxConnsPerHost    = "max_conns_per_host"
	KeyInsecureTLS        = "insecure_tls"
	KeyThinkScale         = "think_scale"
	KeyMetricsAddr        = "metrics_addr"
	KeyCredentialsFile    = "credentials_file"
	KeyReportPath         = "report_path"
	KeyLogLevel           = "log_level"
	KeyLogFormat          = "log_format"
	KeySkipHealthCheck    = "skip_health_check"
	KeyProfileFile        = "profile_file"
	KeyStages             = "stages"
	KeyNoColor            = "no_color"
)

// Settings are the resolved harness settings for one invocation.
type Settings struct {
	BaseURL            string        `mapstructure:"base_url"`
	TokenMode          string        `mapstructure:"token_mode"`
	RefreshProbability float64       `mapstructure:"refresh_probability"`
	DrainTimeout       time.Duration `mapstructure:"drain_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxRPS             float64       `mapstructure:"max_rps"`
	MaxConnsPerHost    int           `mapstructure:"max_conns_per_host"`
	InsecureTLS        bool          `mapstructure:"insecure_tls"`
	ThinkScale         float64       `mapstructure:"think_scale"`
	MetricsAddr        string        `mapstructure:"metrics_addr"`
	CredentialsFile    string        `mapstructure:"credentials_file"`
	ReportPath         string        `mapstructure:"report_path"`
	LogLevel           string        `mapstructure:"log_level"`
	LogFormat          string        `mapstructure:"log_format"`
	SkipHealthCheck    bool          `mapstructure:"skip_health_check"`
	ProfileFile        string        `mapstructure:"profile_file"`
	Stages             string        `mapstructure:"stages"`
	NoColor            bool          `mapstructure:"no_color"`
}

// SetDefaults registers the default of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBaseURL, "http://localhost:3000/api")
	v.SetDefault(KeyTokenMode, TokenModeShared)
	v.SetDefault(KeyRefreshProbability, 0.1)
	v.SetDefault(KeyDrainTimeout, 30*time.Second)
	v.SetDefault(KeyRequestTimeout, 30*time.Second)
	v.SetDefault(KeyMaxRPS, 0.0)
	v.SetDefault(KeyMaxConnsPerHost, 0)
	v.SetDefault(KeyInsecureTLS, false)
	v.SetDefault(KeyThinkScale, 1.0)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyCredentialsFile, "")
	v.SetDefault(KeyReportPath, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeySkipHealthCheck, false)
	v.SetDefault(KeyProfileFile, "")
	v.SetDefault(KeyStages, "")
	v.SetDefault(KeyNoColor, false)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// ReadFile merges a yaml config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return failure.Configf("config", "failed to read %s: %v", path, err)
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, failure.Configf("config", "failed to decode settings: %v", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate collects every invalid setting.
func (s *Settings) Validate() error {
	var errs *multierror.Error
	add := func(field, format string, args ...interface{}) {
		errs = multierror.Append(errs, failure.Configf(field, format, args...))
	}

	if u, err := url.Parse(s.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add(KeyBaseURL, "must be an absolute http(s) URL, got %q", s.BaseURL)
	}

	switch s.TokenMode {
	case TokenModeShared, TokenModePerVU:
	default:
		add(KeyTokenMode, "must be %q or %q, got %q", TokenModeShared, TokenModePerVU, s.TokenMode)
	}

	if s.RefreshProbability < 0 || s.RefreshProbability > 1 {
		add(KeyRefreshProbability, "must be within [0,1], got %g", s.RefreshProbability)
	}
	if s.DrainTimeout <= 0 {
		add(KeyDrainTimeout, "must be positive")
	}
	if s.RequestTimeout <= 0 {
		add(KeyRequestTimeout, "must be positive")
	}
	if s.MaxRPS < 0 {
		add(KeyMaxRPS, "must not be negative")
	}
	if s.MaxConnsPerHost < 0 {
		add(KeyMaxConnsPerHost, "must not be negative")
	}
	if s.ThinkScale < 0 {
		add(KeyThinkScale, "must not be negative")
	}

	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		add(KeyLogLevel, "must be debug, info, warn or error, got %q", s.LogLevel)
	}
	switch s.LogFormat {
	case "console", "json":
	default:
		add(KeyLogFormat, "must be console or json, got %q", s.LogFormat)
	}

	return errs.ErrorOrNil()
}
