// Package config reads server and client settings from the environment and,
// for the client, an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Server configures the reference ledger service.
type Server struct {
	Addr      string        `yaml:"addr" env:"CIRCLE_ADDR" env-default:":8080"`
	DBPath    string        `yaml:"db_path" env:"CIRCLE_DB_PATH" env-default:"./data/circle.db"`
	JWTSecret string        `yaml:"jwt_secret" env:"CIRCLE_JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"CIRCLE_TOKEN_TTL" env-default:"24h"`
	LogLevel  string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// Client configures the circle command line.
type Client struct {
	ServerURL      string        `yaml:"server_url" env:"CIRCLE_SERVER" env-default:"http://localhost:8080"`
	TokenFile      string        `yaml:"token_file" env:"CIRCLE_TOKEN_FILE"`
	ReconcileDelay time.Duration `yaml:"reconcile_delay" env:"CIRCLE_RECONCILE_DELAY" env-default:"1s"`
	Timeout        time.Duration `yaml:"timeout" env:"CIRCLE_TIMEOUT" env-default:"15s"`
	LogLevel       string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"warn"`
}

var ErrMissingSecret = errors.New("CIRCLE_JWT_SECRET is required")

// LoadServer reads the server settings from the environment.
func LoadServer() (*Server, error) {
	cfg := &Server{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("couldn't read environment variables: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	return cfg, nil
}

// LoadClient reads the client settings. When path names an existing file it is
// read first and the environment overrides it.
func LoadClient(path string) (*Client, error) {
	cfg := &Client{}
	var err error
	if path != "" && fileExists(path) {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't read client config: %w", err)
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = DefaultTokenFile()
	}
	return cfg, nil
}

// DefaultConfigFile is the YAML file read when no --config flag is given.
func DefaultConfigFile() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultTokenFile is where the session token is kept between invocations.
func DefaultTokenFile() string {
	return filepath.Join(configDir(), "token")
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".circle"
	}
	return filepath.Join(dir, "circle")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
