package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Broker and result backend identifiers
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBitcask  = "bitcask"

	bitcaskScheme = "bitcask://"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	Broker      BrokerConfig      `mapstructure:"broker" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Task        TaskConfig        `mapstructure:"task" validate:"required"`
	Translation TranslationConfig `mapstructure:"translation" validate:"required"`
	Handlers    HandlersConfig    `mapstructure:"handlers"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// PublicURL prefixes status URLs; empty means derive from the request
	PublicURL              string `mapstructure:"public_url" validate:"omitempty,url"`
	StaticDir              string `mapstructure:"static_dir"`
	MediaDir               string `mapstructure:"media_dir"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=0"`
}

// ShutdownTimeout is the grace period for in-flight requests on shutdown.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// BrokerConfig selects the message queue and the result store.
type BrokerConfig struct {
	// URL is the queue: "memory" or "postgres"
	URL string `mapstructure:"url" validate:"required,oneof=memory postgres"`

	// ResultBackend is "memory", "postgres", or "bitcask:///path/to/dir"
	ResultBackend string `mapstructure:"result_backend" validate:"required"`

	// ResultTTLMinutes bounds how long the memory backend keeps records
	ResultTTLMinutes int `mapstructure:"result_ttl_minutes" validate:"gte=0"`
}

// ResultBackendKind returns the backend identifier of ResultBackend.
func (c BrokerConfig) ResultBackendKind() string {
	if strings.HasPrefix(c.ResultBackend, bitcaskScheme) {
		return BackendBitcask
	}
	return c.ResultBackend
}

// BitcaskPath returns the directory of a bitcask result backend.
func (c BrokerConfig) BitcaskPath() string {
	return strings.TrimPrefix(c.ResultBackend, bitcaskScheme)
}

// ResultTTL is the retention of the memory result backend.
func (c BrokerConfig) ResultTTL() time.Duration {
	return time.Duration(c.ResultTTLMinutes) * time.Minute
}

// DatabaseConfig contains all database-related configuration settings.
// Either URL or the discrete connection fields may be given.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"omitempty,url"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port" validate:"gte=0,lt=65536"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

// DSN returns the connection URL, composing it from the discrete fields
// when URL is unset. It is empty when neither is configured.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Host == "" {
		return ""
	}

	host := c.Host
	if c.Port > 0 {
		host = host + ":" + strconv.Itoa(c.Port)
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     host,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	return u.String()
}

// TaskConfig configures workers and the postgres queue.
type TaskConfig struct {
	// WorkerCount of zero disables embedded workers in serve mode
	WorkerCount                   int `mapstructure:"worker_count" validate:"gte=0"`
	QueueSize                     int `mapstructure:"queue_size" validate:"gt=0"`
	TimeoutSeconds                int `mapstructure:"timeout_seconds" validate:"gte=0"`
	StuckTaskAgeMinutes           int `mapstructure:"stuck_task_age_minutes" validate:"gte=0"`
	StuckTaskCheckIntervalSeconds int `mapstructure:"stuck_task_check_interval_seconds" validate:"gt=0"`
	PollIntervalMS                int `mapstructure:"poll_interval_ms" validate:"gt=0"`
}

// Timeout bounds one handler invocation; zero means unbounded.
func (c TaskConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StuckTaskAge is zero when the reaper is disabled.
func (c TaskConfig) StuckTaskAge() time.Duration {
	return time.Duration(c.StuckTaskAgeMinutes) * time.Minute
}

func (c TaskConfig) StuckTaskCheckInterval() time.Duration {
	return time.Duration(c.StuckTaskCheckIntervalSeconds) * time.Second
}

func (c TaskConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// TranslationConfig selects the translator behind the translate handler.
type TranslationConfig struct {
	Provider       string `mapstructure:"provider" validate:"required,oneof=catalog gemini"`
	SourceLanguage string `mapstructure:"source_language" validate:"required"`
	GeminiAPIKey   string `mapstructure:"gemini_api_key"`
	ModelName      string `mapstructure:"model_name"`
	// MaxRetries bounds retries of transient model errors
	MaxRetries        int `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// RetryDelay is the base delay of the exponential retry backoff.
func (c TranslationConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// HandlersConfig tunes the built-in task handlers.
type HandlersConfig struct {
	SquareDelayMS int `mapstructure:"square_delay_ms" validate:"gte=0"`
}

// SquareDelay is the simulated work time of the square handler.
func (c HandlersConfig) SquareDelay() time.Duration {
	return time.Duration(c.SquareDelayMS) * time.Millisecond
}

// Validate checks rules that span sections and cannot be expressed as
// struct tags.
func (c *Config) Validate() error {
	var errs []error

	switch c.Broker.ResultBackendKind() {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.DSN() == "" {
			errs = append(errs, errors.New("postgres result backend requires database.url or database.host"))
		}
	case BackendBitcask:
		if c.Broker.BitcaskPath() == "" {
			errs = append(errs, errors.New("bitcask result backend requires a path, e.g. bitcask:///var/lib/taskgate"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported result backend %q", c.Broker.ResultBackend))
	}

	if c.Broker.URL == BackendPostgres && c.Broker.ResultBackendKind() != BackendPostgres {
		errs = append(errs, errors.New("postgres broker requires the postgres result backend"))
	}

	if c.Translation.Provider == "gemini" && c.Translation.GeminiAPIKey == "" {
		errs = append(errs, errors.New("gemini translation provider requires translation.gemini_api_key"))
	}

	return errors.Join(errs...)
}
