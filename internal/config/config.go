// Package config loads console configuration from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// Nested keys are separated by a double underscore, e.g. FINANCE_ADMIN_SESSION__MAX_AGE.
const EnvPrefix = "FINANCE_ADMIN_"

// Config is the full console configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	API       APIConfig       `koanf:"api"`
	Session   SessionConfig   `koanf:"session"`
	Login     LoginConfig     `koanf:"login"`
	CORS      CORSConfig      `koanf:"cors"`
	Settings  SettingsConfig  `koanf:"settings"`
	Database  DatabaseConfig  `koanf:"database"`
	Views     ViewsConfig     `koanf:"views"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// APIConfig points at the upstream finance REST API.
type APIConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	Secret       string           `koanf:"secret" validate:"required,min=16"`
	MaxAge       time.Duration    `koanf:"max_age" validate:"gt=0"`
	UpdateAge    time.Duration    `koanf:"update_age" validate:"gte=0"`
	CookieSecure bool             `koanf:"cookie_secure"`
	CookieDomain string           `koanf:"cookie_domain"`
	Revocation   RevocationConfig `koanf:"revocation"`
}

// RevocationConfig selects where logged-out session IDs are remembered.
type RevocationConfig struct {
	Backend  string `koanf:"backend" validate:"oneof=memory redis"`
	RedisURL string `koanf:"redis_url" validate:"required_if=Backend redis"`
}

// LoginConfig throttles login attempts per client address.
type LoginConfig struct {
	RateLimit float64 `koanf:"rate_limit" validate:"gt=0"`
	Burst     int     `koanf:"burst" validate:"gt=0"`
}

// CORSConfig lists origins allowed to call the console.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// SettingsConfig selects the backend of the local settings store.
type SettingsConfig struct {
	Backend string `koanf:"backend" validate:"oneof=memory postgres"`
}

// DatabaseConfig is only used when settings are stored in postgres.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
}

// ViewsConfig sets the polling interval advertised by each data view.
type ViewsConfig struct {
	DashboardRefresh    time.Duration `koanf:"dashboard_refresh"`
	UsersRefresh        time.Duration `koanf:"users_refresh"`
	TransactionsRefresh time.Duration `koanf:"transactions_refresh"`
}

// TelemetryConfig enables OTLP trace export when an endpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	ServiceName  string `koanf:"service_name"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		API: APIConfig{
			BaseURL: "http://localhost:3000/api/v1",
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			MaxAge:    24 * time.Hour,
			UpdateAge: time.Hour,
			Revocation: RevocationConfig{
				Backend: "memory",
			},
		},
		Login: LoginConfig{
			RateLimit: 1,
			Burst:     5,
		},
		Settings: SettingsConfig{
			Backend: "memory",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    5,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Views: ViewsConfig{
			DashboardRefresh:    30 * time.Second,
			UsersRefresh:        60 * time.Second,
			TransactionsRefresh: 60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "finance-admin",
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment variables are used.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, e := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Settings.Backend == "postgres" && c.Database.URL == "" {
		return errors.New("invalid config: database.url is required when settings.backend is postgres")
	}

	return nil
}

// envKey maps FINANCE_ADMIN_SESSION__MAX_AGE to session.max_age.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
