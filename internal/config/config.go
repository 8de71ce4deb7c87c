package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Import   ImportConfig   `mapstructure:"import"`
	Query    QueryConfig    `mapstructure:"query"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Suggest  SuggestConfig  `mapstructure:"suggest"`
	Demo     DemoConfig     `mapstructure:"demo"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"`
}

type ImportConfig struct {
	BatchSize      int   `mapstructure:"batch_size"`
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

type QueryConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// ClampLimit maps a requested page size onto [1, MaxLimit]. Zero or
// negative requests get DefaultLimit.
func (q QueryConfig) ClampLimit(limit int) int {
	if limit <= 0 {
		return q.DefaultLimit
	}
	if limit > q.MaxLimit {
		return q.MaxLimit
	}
	return limit
}

type AuthConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type SuggestConfig struct {
	Provider string        `mapstructure:"provider"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type DemoConfig struct {
	Size int   `mapstructure:"size"`
	Seed int64 `mapstructure:"seed"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"

	ProviderMock = "mock"
	ProviderHTTP = "http"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors_origins", []string{
		"http://localhost:5173",
		"http://127.0.0.1:5173",
		"http://localhost:4173",
		"http://127.0.0.1:4173",
		"http://localhost:5174",
		"http://127.0.0.1:5174",
	})
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "app.db")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("import.batch_size", 500)
	v.SetDefault("import.max_upload_bytes", 10<<20)
	v.SetDefault("query.default_limit", 100)
	v.SetDefault("query.max_limit", 500)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("suggest.provider", ProviderMock)
	v.SetDefault("suggest.endpoint", "")
	v.SetDefault("suggest.timeout", 10*time.Second)
	v.SetDefault("demo.size", 300)
	v.SetDefault("demo.seed", 0)
}

// Load reads configuration from file (or ./config.yaml when file is empty),
// then applies environment overrides. A missing file is not an error.
func Load(file string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		log.Println("No config file found, using defaults")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// names used by the previous deployment
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("server.cors_origins", "SERVER_CORS_ORIGINS", "CORS_ORIGINS")
	_ = v.BindEnv("database.dsn", "DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("suggest.provider", "SUGGEST_PROVIDER", "LLM_PROVIDER")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.Suggest.Provider = strings.ToLower(strings.TrimSpace(cfg.Suggest.Provider))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file or environment is set.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return cfg
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	switch c.Suggest.Provider {
	case ProviderMock:
	case ProviderHTTP:
		if c.Suggest.Endpoint == "" {
			return errors.New("suggest.endpoint is required for the http provider")
		}
	default:
		return fmt.Errorf("unsupported suggest.provider %q", c.Suggest.Provider)
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batch_size must be positive, got %d", c.Import.BatchSize)
	}
	if c.Import.MaxUploadBytes <= 0 {
		return fmt.Errorf("import.max_upload_bytes must be positive, got %d", c.Import.MaxUploadBytes)
	}
	if c.Query.MaxLimit <= 0 || c.Query.DefaultLimit <= 0 || c.Query.DefaultLimit > c.Query.MaxLimit {
		return fmt.Errorf("invalid query limits: default %d, max %d", c.Query.DefaultLimit, c.Query.MaxLimit)
	}
	if c.Demo.Size <= 0 {
		return fmt.Errorf("demo.size must be positive, got %d", c.Demo.Size)
	}
	if len(c.Server.CORSOrigins) == 0 {
		return errors.New("server.cors_origins must list at least one origin")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required when auth is enabled")
	}
	return nil
}
