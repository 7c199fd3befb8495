package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// DefaultFile is read when no config file is given. A missing default file is not an error.
const DefaultFile = ".env"

// SMTPConfig holds the outgoing mail settings for magic links.
type SMTPConfig struct {
	Host     string `mapstructure:"smtp_host"`
	Port     string `mapstructure:"smtp_port"`
	Username string `mapstructure:"smtp_username"`
	Password string `mapstructure:"smtp_password"`
	From     string `mapstructure:"smtp_from"`
}

// Config is the service configuration. Every key can be set in the config
// file or as an upper-case environment variable (PORT, DB_PATH, ...).
type Config struct {
	Port           string        `mapstructure:"port"`
	DBPath         string        `mapstructure:"db_path"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	MagicLinkTTL   time.Duration `mapstructure:"magic_link_ttl"`
	RedisURL       string        `mapstructure:"redis_url"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	SyncTimeout    time.Duration `mapstructure:"sync_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	StaticDir      string        `mapstructure:"static_dir"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`

	SMTP SMTPConfig `mapstructure:",squash"`
}

var defaults = map[string]any{
	"port":            "3001",
	"db_path":         "studyboard.db",
	"jwt_secret":      "your-default-secret-key-change-in-production",
	"token_ttl":       7 * 24 * time.Hour,
	"magic_link_ttl":  15 * time.Minute,
	"redis_url":       "",
	"cache_ttl":       5 * time.Minute,
	"sync_timeout":    10 * time.Second,
	"allowed_origins": []string{"*"},
	"static_dir":      "",
	"log_level":       "info",
	"log_format":      "text",
	"smtp_host":       "",
	"smtp_port":       "",
	"smtp_username":   "",
	"smtp_password":   "",
	"smtp_from":       "",
}

// Load reads configuration from path (YAML, JSON or dotenv, by extension)
// and the environment. An empty path tries DefaultFile.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" || ext == "env" {
		v.SetConfigType("env")
	}

	if err := v.ReadInConfig(); err != nil {
		_, missing := err.(*os.PathError)
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			missing = true
		}
		if !missing || explicit {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Port == "" {
		return nil, fmt.Errorf("config %s: port must not be empty", path)
	}
	return cfg, nil
}

// NewLogger builds the process logger from the log_level and log_format keys.
func (c *Config) NewLogger() (*log.Logger, error) {
	logger := log.New()
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	logger.SetLevel(level)
	switch c.LogFormat {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("log_format: unknown format %q", c.LogFormat)
	}
	return logger, nil
}
