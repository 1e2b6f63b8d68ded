// Package config provides configuration loading and validation for the CLI.
//
// Values come from, in increasing priority: built-in defaults, an optional
// config file (YAML, JSON or TOML), HIREOPS_* environment variables, and
// explicitly set command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonathan/hireops/internal/api"
	"github.com/jonathan/hireops/internal/logging"
	"github.com/jonathan/hireops/internal/types"
)

// EnvPrefix is the prefix for environment overrides, e.g. HIREOPS_API_BASE_URL.
const EnvPrefix = "HIREOPS"

// Status update route styles supported by the API client.
const (
	RoutePatchStatus = api.RoutePatchStatus // PATCH /applications/{id}/status
	RoutePutStatus   = api.RoutePutStatus   // PUT /applications/{id}/status
	RoutePut         = api.RoutePut         // PUT /applications/{id}
)

// In-flight policies for same-application transitions.
const (
	PolicyQueue  = "queue"
	PolicyReject = "reject"
)

// Config is the full client configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Board     BoardConfig     `mapstructure:"board"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	DevServer DevServerConfig `mapstructure:"devserver"`
}

// APIConfig configures the REST client.
type APIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PageSize    int           `mapstructure:"page_size"`
	StatusRoute string        `mapstructure:"status_route"`
}

// BoardConfig configures grouping, refresh and transitions.
type BoardConfig struct {
	Stages          []string      `mapstructure:"stages"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	InFlightPolicy  string        `mapstructure:"in_flight_policy"`
}

// AuthConfig configures where the bearer token is persisted.
type AuthConfig struct {
	TokenPath string `mapstructure:"token_path"`
}

// LogConfig configures logging. An empty File logs to stderr.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DevServerConfig configures the development backend.
type DevServerConfig struct {
	Port          int    `mapstructure:"port"`
	DatabaseURL   string `mapstructure:"database_url"`
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
	BcryptCost    int    `mapstructure:"bcrypt_cost"`
	SeedPath      string `mapstructure:"seed_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	stages := make([]string, len(types.KanbanStatuses))
	for i, s := range types.KanbanStatuses {
		stages[i] = string(s)
	}

	return &Config{
		API: APIConfig{
			BaseURL:     "http://localhost:8000/api",
			Timeout:     30 * time.Second,
			PageSize:    100,
			StatusRoute: RoutePatchStatus,
		},
		Board: BoardConfig{
			Stages:          stages,
			RefreshInterval: 30 * time.Second,
			InFlightPolicy:  PolicyQueue,
		},
		Auth: AuthConfig{
			TokenPath: filepath.Join(Dir(), "token"),
		},
		Log: LogConfig{
			Level: logging.LevelWarn,
		},
		DevServer: DevServerConfig{
			Port:          8000,
			TokenTTLHours: 24,
			BcryptCost:    12,
		},
	}
}

// Dir returns the per-user configuration directory.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "hireops")
	}
	return ".hireops"
}

// SetDefaults registers Default() with v.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.page_size", d.API.PageSize)
	v.SetDefault("api.status_route", d.API.StatusRoute)

	v.SetDefault("board.stages", d.Board.Stages)
	v.SetDefault("board.refresh_interval", d.Board.RefreshInterval)
	v.SetDefault("board.in_flight_policy", d.Board.InFlightPolicy)

	v.SetDefault("auth.token_path", d.Auth.TokenPath)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("devserver.port", d.DevServer.Port)
	v.SetDefault("devserver.database_url", d.DevServer.DatabaseURL)
	v.SetDefault("devserver.jwt_secret", d.DevServer.JWTSecret)
	v.SetDefault("devserver.token_ttl_hours", d.DevServer.TokenTTLHours)
	v.SetDefault("devserver.bcrypt_cost", d.DevServer.BcryptCost)
	v.SetDefault("devserver.seed_path", d.DevServer.SeedPath)
}

// NewViper returns a viper instance with defaults and env overrides wired,
// and reads configFile if given. Without configFile it looks for
// hireops.{yaml,json,toml} in Dir() and the working directory; a missing
// file is not an error.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// DATABASE_URL is honoured without the prefix, like the rest of the toolchain.
	_ = v.BindEnv("devserver.database_url", EnvPrefix+"_DEVSERVER_DATABASE_URL", "DATABASE_URL")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName("hireops")
	v.AddConfigPath(Dir())
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config error: 'api.base_url' must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("config error: 'api.timeout' must be positive")
	}
	if c.API.PageSize < 1 {
		return fmt.Errorf("config error: 'api.page_size' must be at least 1")
	}
	switch c.API.StatusRoute {
	case RoutePatchStatus, RoutePutStatus, RoutePut:
	default:
		return fmt.Errorf("config error: 'api.status_route' must be one of %s, %s, %s", RoutePatchStatus, RoutePutStatus, RoutePut)
	}

	if _, err := c.Board.StageList(); err != nil {
		return fmt.Errorf("config error: 'board.stages': %w", err)
	}
	if c.Board.RefreshInterval < 0 {
		return fmt.Errorf("config error: 'board.refresh_interval' must be non-negative")
	}
	switch c.Board.InFlightPolicy {
	case PolicyQueue, PolicyReject:
	default:
		return fmt.Errorf("config error: 'board.in_flight_policy' must be %q or %q", PolicyQueue, PolicyReject)
	}

	if c.Auth.TokenPath == "" {
		return fmt.Errorf("config error: 'auth.token_path' must not be empty")
	}
	if !logging.ValidLevel(c.Log.Level) {
		return fmt.Errorf("config error: 'log.level' must be one of DEBUG, INFO, WARN, ERROR")
	}

	if c.DevServer.Port < 0 || c.DevServer.Port > 65535 {
		return fmt.Errorf("config error: 'devserver.port' out of range: %d", c.DevServer.Port)
	}
	if c.DevServer.TokenTTLHours < 1 {
		return fmt.Errorf("config error: 'devserver.token_ttl_hours' must be at least 1, got: %d", c.DevServer.TokenTTLHours)
	}
	if c.DevServer.BcryptCost < 4 || c.DevServer.BcryptCost > 14 {
		return fmt.Errorf("config error: 'devserver.bcrypt_cost' out of range: %d (must be 4-14)", c.DevServer.BcryptCost)
	}
	if c.DevServer.SeedPath != "" {
		if _, err := os.Stat(c.DevServer.SeedPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: seed file not found: %s", c.DevServer.SeedPath)
		}
	}

	return nil
}

// StageList parses the configured stages. An empty list means the kanban subset.
func (b BoardConfig) StageList() ([]types.Status, error) {
	if len(b.Stages) == 0 {
		return append([]types.Status(nil), types.KanbanStatuses...), nil
	}
	return types.ParseStatuses(b.Stages)
}
