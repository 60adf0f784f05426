package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // GAME_TIMEZONE must resolve on minimal images

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port      string `yaml:"port"       env:"PORT"       env-default:"8080"`
	LogLevel  string `yaml:"log_level"  env:"LOG_LEVEL"  env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"console"`

	DBDriver    string `yaml:"db_driver"    env:"DB_DRIVER"    env-default:"sqlite"`
	DatabaseDSN string `yaml:"database_dsn" env:"DATABASE_DSN" env-default:"./sketchdash.db"`

	BlobDir       string `yaml:"blob_dir"        env:"BLOB_DIR"        env-default:"./data/sketches"`
	PublicBaseURL string `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`

	Recognizer        string        `yaml:"recognizer"         env:"RECOGNIZER"         env-default:"stub"`
	RecognizerURL     string        `yaml:"recognizer_url"     env:"RECOGNIZER_URL"`
	RecognizerLatency time.Duration `yaml:"recognizer_latency" env:"RECOGNIZER_LATENCY" env-default:"300ms"`
	RecognizerTimeout time.Duration `yaml:"recognizer_timeout" env:"RECOGNIZER_TIMEOUT" env-default:"10s"`

	Timezone string `yaml:"game_timezone" env:"GAME_TIMEZONE" env-default:"UTC"`

	AdminUser string `yaml:"admin_user" env:"ADMIN_USER"`
	AdminPass string `yaml:"admin_pass" env:"ADMIN_PASS"`

	ExportEnabled bool   `yaml:"export_enabled" env:"EXPORT_ENABLED" env-default:"false"`
	ExportFile    string `yaml:"export_file"    env:"EXPORT_FILE"    env-default:"./sketchdash-results.txt"`

	SeedPrompts bool `yaml:"seed_prompts" env:"SEED_PROMPTS" env-default:"true"`

	// Metrics are pushed over OTLP/HTTP only when an endpoint is set.
	MetricsEndpoint string        `yaml:"metrics_endpoint" env:"METRICS_ENDPOINT"`
	MetricsInterval time.Duration `yaml:"metrics_interval" env:"METRICS_INTERVAL" env-default:"30s"`
}

// Load reads and validates the configuration.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Read reads the configuration from environment variables, layered over an
// optional YAML file named by CONFIG_PATH, without validating it. Callers
// that override fields must call Validate afterwards.
func Read() (*Config, error) {
	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values and fills in derived defaults.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("db_driver must be sqlite or postgres (got %q)", c.DBDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database_dsn must not be empty")
	}
	switch c.Recognizer {
	case "stub":
	case "remote":
		if c.RecognizerURL == "" {
			return fmt.Errorf("recognizer_url is required for the remote recognizer")
		}
	default:
		return fmt.Errorf("recognizer must be stub or remote (got %q)", c.Recognizer)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json (got %q)", c.LogFormat)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("game_timezone: %w", err)
	}
	if (c.AdminUser == "") != (c.AdminPass == "") {
		return fmt.Errorf("admin_user and admin_pass must be set together")
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:" + c.Port
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	return nil
}

// Location is the time zone that decides when a game day starts.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) AdminEnabled() bool {
	return c.AdminUser != "" && c.AdminPass != ""
}
