package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "DATABASE_URL", "JWT_SECRET_KEY", "SERVER_PORT", "REDIS_URL",
		"R2_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_BUCKET_NAME",
		"R2_PUBLIC_BASE_URL", "RESYNC_SCHEDULE", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
		"CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerPort != 8080 || cfg.ResyncSchedule != "@every 1m" || cfg.LogFormat != "json" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.DatabaseURL != "" || cfg.R2.Enabled() {
		t.Fatalf("optional backends enabled: %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	yml := `
jwt_secret_key: from-file
server_port: 9000
redis_url: redis://file:6379/0
resync_schedule: "*/30 * * * * *"
r2:
  account_id: acc
  access_key_id: key
  secret_access_key: sec
  bucket_name: bucket
  public_base_url: https://cdn.example.com
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.JWTSecretKey != "from-file" || cfg.ServerPort != 9100 || cfg.RedisURL != "redis://file:6379/0" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !cfg.R2.Enabled() || cfg.ResyncSchedule != "*/30 * * * * *" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if strings.Join(cfg.CORSAllowedOrigins, ";") != "https://a.example;https://b.example" {
		t.Fatalf("origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "JWT_SECRET_KEY"},
		{"bad port", map[string]string{"JWT_SECRET_KEY": "s", "SERVER_PORT": "eighty"}, "SERVER_PORT"},
		{"port out of range", map[string]string{"JWT_SECRET_KEY": "s", "SERVER_PORT": "70000"}, "between 1 and 65535"},
		{"bad log format", map[string]string{"JWT_SECRET_KEY": "s", "LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"missing file", map[string]string{"JWT_SECRET_KEY": "s", "CONFIG_FILE": "/nonexistent/cfg.yaml"}, "config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
