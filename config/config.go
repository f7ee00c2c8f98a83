package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// R2Config holds the Cloudflare R2 credentials used to archive standings.
type R2Config struct {
	AccountID       string `yaml:"account_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	BucketName      string `yaml:"bucket_name"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

// Enabled reports whether every R2 field is set.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" &&
		c.BucketName != "" && c.PublicBaseURL != ""
}

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL        string   `yaml:"database_url"`
	JWTSecretKey       string   `yaml:"jwt_secret_key"`
	ServerPort         int      `yaml:"server_port"`
	RedisURL           string   `yaml:"redis_url"`
	R2                 R2Config `yaml:"r2"`
	ResyncSchedule     string   `yaml:"resync_schedule"`
	LogLevel           string   `yaml:"log_level"`
	LogFormat          string   `yaml:"log_format"`
	LogFile            string   `yaml:"log_file"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

const (
	defaultPort           = 8080
	defaultResyncSchedule = "@every 1m"
)

// Load загружает конфигурацию: .env, затем YAML-файл из CONFIG_FILE,
// затем переменные окружения поверх него.
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	cfg := &Config{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.JWTSecretKey, "JWT_SECRET_KEY")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.R2.AccountID, "R2_ACCOUNT_ID")
	setString(&cfg.R2.AccessKeyID, "R2_ACCESS_KEY_ID")
	setString(&cfg.R2.SecretAccessKey, "R2_SECRET_ACCESS_KEY")
	setString(&cfg.R2.BucketName, "R2_BUCKET_NAME")
	setString(&cfg.R2.PublicBaseURL, "R2_PUBLIC_BASE_URL")
	setString(&cfg.ResyncSchedule, "RESYNC_SCHEDULE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setString(&cfg.LogFile, "LOG_FILE")

	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		cfg.CORSAllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}

	if portStr := strings.TrimSpace(os.Getenv("SERVER_PORT")); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
		}
		cfg.ServerPort = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ServerPort == 0 {
		cfg.ServerPort = defaultPort // Порт по умолчанию
	}
	if cfg.ResyncSchedule == "" {
		cfg.ResyncSchedule = defaultResyncSchedule
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.JWTSecretKey == "" {
		return errors.New("JWT_SECRET_KEY environment variable is not set")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}
