package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8080 || cfg.StoreConfig.Driver != DriverPostgres {
		t.Errorf("port/driver = %d/%s", cfg.Port, cfg.StoreConfig.Driver)
	}
	if cfg.PayMongoConfig.Timeout != 30*time.Second || cfg.OperatorTokenTTL != 12*time.Hour {
		t.Errorf("timeouts = %s/%s", cfg.PayMongoConfig.Timeout, cfg.OperatorTokenTTL)
	}
	if len(cfg.ReturnURLSchemes) != 2 || cfg.ReturnURLSchemes[0] != "exp" || cfg.ReturnURLSchemes[1] != "exps" {
		t.Errorf("return url schemes = %v", cfg.ReturnURLSchemes)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("cors origins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.DefaultPaymentMethod != "gcash" || cfg.Description != "Donation" {
		t.Errorf("checkout defaults = %q/%q", cfg.DefaultPaymentMethod, cfg.Description)
	}
}

func TestLoadFileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := strings.Join([]string{
		"STORE_DRIVER=Memory",
		"PAYMONGO_SECRET_KEY=sk_test_file",
		"PAYMONGO_WEBHOOK_SECRET=whsk_file",
		"HTTP_PORT=9000",
		"CORS_ALLOWED_ORIGINS=https://a.example, https://b.example",
	}, "\n")
	if err := os.WriteFile(filepath.Join(dir, "config.env"), []byte(file), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("PAYMONGO_TIMEOUT", "5s")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.StoreConfig.Driver != DriverMemory {
		t.Errorf("driver = %q", cfg.StoreConfig.Driver)
	}
	if cfg.Port != 9100 {
		t.Errorf("environment did not override file: port = %d", cfg.Port)
	}
	if cfg.PayMongoConfig.Timeout != 5*time.Second {
		t.Errorf("timeout = %s", cfg.PayMongoConfig.Timeout)
	}
	if cfg.PayMongoConfig.SecretKey != "sk_test_file" {
		t.Errorf("secret key = %q", cfg.PayMongoConfig.SecretKey)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[0] != want[0] || cfg.CORSAllowedOrigins[1] != want[1] {
		t.Errorf("cors origins = %v", cfg.CORSAllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func validConfig() Config {
	return Config{
		HTTPConfig:     HTTPConfig{Port: 8080},
		StoreConfig:    StoreConfig{Driver: DriverPostgres, DSN: "postgres://localhost/donations"},
		PayMongoConfig: PayMongoConfig{SecretKey: "sk", WebhookSecret: "whsk", Timeout: time.Second},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "postgres without dsn", mutate: func(c *Config) { c.DSN = "" }, wantErr: "DSN"},
		{name: "supabase without key", mutate: func(c *Config) {
			c.StoreConfig.Driver = DriverSupabase
			c.SupabaseURL = "https://x.supabase.co"
		}, wantErr: "SUPABASE_SERVICE_ROLE_KEY"},
		{name: "unknown driver", mutate: func(c *Config) { c.StoreConfig.Driver = "mysql" }, wantErr: "STORE_DRIVER"},
		{name: "no webhook secret", mutate: func(c *Config) { c.PayMongoConfig.WebhookSecret = "" }, wantErr: "PAYMONGO_WEBHOOK_SECRET"},
		{name: "plain http base url", mutate: func(c *Config) { c.WebBaseURL = "http://give.example.org" }, wantErr: "WEB_BASE_URL"},
		{name: "operator without jwt secret", mutate: func(c *Config) {
			c.OperatorUsername = "ops"
			c.OperatorPasswordHash = "$2a$10$abc"
		}, wantErr: "JWT_SECRET"},
		{name: "bad port", mutate: func(c *Config) { c.Port = 0 }, wantErr: "HTTP_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
