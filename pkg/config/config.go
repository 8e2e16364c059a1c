// Package config loads service configuration from file, environment, and
// .env, in that order of increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DetectionConfig tunes the detection engine.
type DetectionConfig struct {
	// CacheTTL bounds scan result staleness.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// TreatMissingMetricsAsIdle decides the null-metric branch of the
	// idle database and cache scenarios.
	TreatMissingMetricsAsIdle bool `mapstructure:"treat_missing_metrics_as_idle"`
}

// ExclusionConfig is one CEL suppression rule as it appears in config.
type ExclusionConfig struct {
	ID        string `mapstructure:"id"`
	Condition string `mapstructure:"condition"`
	Reason    string `mapstructure:"reason"`
}

// Config is the full service configuration.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`

	// DatabaseDSN selects the postgres store; empty runs in-memory.
	DatabaseDSN string `mapstructure:"database_dsn"`

	Detection  DetectionConfig   `mapstructure:"detection"`
	Exclusions []ExclusionConfig `mapstructure:"exclusions"`

	// SchedulerInterval is the scheduled-recommendation poll period;
	// zero disables the poller.
	SchedulerInterval time.Duration `mapstructure:"scheduler_interval"`

	OtelEndpoint string `mapstructure:"otel_endpoint"`
	JSONLogs     bool   `mapstructure:"json_logs"`
	Verbose      bool   `mapstructure:"verbose"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		Detection: DetectionConfig{
			CacheTTL:                  30 * time.Second,
			TreatMissingMetricsAsIdle: true,
		},
		SchedulerInterval: time.Minute,
		JSONLogs:          true,
	}
}

// Load reads configuration. A .env file in the working directory is
// honored before environment lookup; env vars use the WASTELENS_ prefix
// with underscores (WASTELENS_DATABASE_DSN, WASTELENS_LISTEN_ADDR, ...).
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	def := Default()
	// Every scalar key needs a default so AutomaticEnv can surface it
	// through Unmarshal.
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("database_dsn", "")
	v.SetDefault("detection.cache_ttl", def.Detection.CacheTTL)
	v.SetDefault("detection.treat_missing_metrics_as_idle", def.Detection.TreatMissingMetricsAsIdle)
	v.SetDefault("scheduler_interval", def.SchedulerInterval)
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("json_logs", def.JSONLogs)
	v.SetDefault("verbose", false)

	v.SetEnvPrefix("WASTELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("wastelens")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
