package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TASKGATE"

// legacyEnv maps config keys to the plain variable names used by the
// postgres docker image. The TASKGATE_ name always wins.
var legacyEnv = map[string]string{
	"database.host":     "SQL_HOST",
	"database.port":     "SQL_PORT",
	"database.user":     "POSTGRES_USER",
	"database.password": "POSTGRES_PASSWORD",
	"database.name":     "POSTGRES_DB",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.media_dir", "media")
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	v.SetDefault("broker.url", BackendMemory)
	v.SetDefault("broker.result_backend", BackendMemory)
	v.SetDefault("broker.result_ttl_minutes", 24*60)

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 1024)
	v.SetDefault("task.timeout_seconds", 0)
	v.SetDefault("task.stuck_task_age_minutes", 0)
	v.SetDefault("task.stuck_task_check_interval_seconds", 300)
	v.SetDefault("task.poll_interval_ms", 500)

	v.SetDefault("translation.provider", "catalog")
	v.SetDefault("translation.source_language", "en")
	v.SetDefault("translation.gemini_api_key", "")
	v.SetDefault("translation.model_name", "gemini-2.0-flash")
	v.SetDefault("translation.max_retries", 3)
	v.SetDefault("translation.retry_delay_seconds", 2)

	v.SetDefault("handlers.square_delay_ms", 1000)
}

// Load configuration from environment variables and optionally a config.yaml
// in the working directory or /etc/taskgate.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return load("")
}

// LoadFile is like Load but reads the given config file, which must exist.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/taskgate")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		envName := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", legacy, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
