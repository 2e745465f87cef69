package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for all environment variables read by Load,
// e.g. RESEARCH_SERVER_PORT or RESEARCH_DATABASE_URL.
const envPrefix = "RESEARCH"

// Load reads configuration from environment variables and an optional
// config file (config.yaml in the working directory). Environment variables
// take precedence over file values, which take precedence over defaults.
// Returns a populated Config or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is a real error.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper already knows about, so the keys
	// without a default must be bound explicitly for env-only values to
	// land in the struct.
	for _, key := range []string{
		"database.url",
		"research.endpoint_url",
		"research.api_key",
		"notify.webhook_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers the default value for every setting so a bare
// environment still yields a runnable local configuration (except the
// secrets and URLs that have no sensible default).
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("research.request_timeout", "10m")
	v.SetDefault("research.connect_attempts", 3)

	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("worker.workers", 2)
	v.SetDefault("worker.reclaim_timeout", "15m")
	v.SetDefault("worker.reclaim_interval", "5m")
}

// validate checks the loaded config against its struct tags and converts
// validator errors into a readable message naming the offending fields.
func validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var invalid []string
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fieldErr := range validationErrs {
			invalid = append(invalid, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, ", "))
	}

	return fmt.Errorf("failed to validate config: %w", err)
}
