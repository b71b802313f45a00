package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSupabase = "supabase"
	DriverMemory   = "memory"
)

type HTTPConfig struct {
	Host               string   `mapstructure:"HTTP_HOST"`
	Port               int      `mapstructure:"HTTP_PORT"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type StoreConfig struct {
	Driver                 string `mapstructure:"STORE_DRIVER"`
	DSN                    string `mapstructure:"DSN"`
	MaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	SupabaseURL            string `mapstructure:"SUPABASE_URL"`
	SupabaseServiceRoleKey string `mapstructure:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseSchema         string `mapstructure:"SUPABASE_SCHEMA"`
}

type PayMongoConfig struct {
	BaseURL       string        `mapstructure:"PAYMONGO_BASE_URL"`
	SecretKey     string        `mapstructure:"PAYMONGO_SECRET_KEY"`
	WebhookSecret string        `mapstructure:"PAYMONGO_WEBHOOK_SECRET"`
	Timeout       time.Duration `mapstructure:"PAYMONGO_TIMEOUT"`
}

type CheckoutConfig struct {
	DefaultPaymentMethod    string   `mapstructure:"DEFAULT_PAYMENT_METHOD"`
	Description             string   `mapstructure:"CHECKOUT_DESCRIPTION"`
	WebBaseURL              string   `mapstructure:"WEB_BASE_URL"`
	AllowInsecureReturnURLs bool     `mapstructure:"ALLOW_INSECURE_RETURN_URLS"`
	ReturnURLSchemes        []string `mapstructure:"RETURN_URL_SCHEMES"`
}

type AuthConfig struct {
	JWTSecret            string        `mapstructure:"JWT_SECRET"`
	OperatorUsername     string        `mapstructure:"OPERATOR_USERNAME"`
	OperatorPasswordHash string        `mapstructure:"OPERATOR_PASSWORD_HASH"`
	OperatorTokenTTL     time.Duration `mapstructure:"OPERATOR_TOKEN_TTL"`
}

// Config is built once at startup and handed to every component.
type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`

	HTTPConfig     `mapstructure:",squash"`
	LogConfig      `mapstructure:",squash"`
	StoreConfig    `mapstructure:",squash"`
	PayMongoConfig `mapstructure:",squash"`
	CheckoutConfig `mapstructure:",squash"`
	AuthConfig     `mapstructure:",squash"`
}

var defaults = map[string]any{
	"ENVIRONMENT":                "development",
	"HTTP_HOST":                  "",
	"HTTP_PORT":                  8080,
	"CORS_ALLOWED_ORIGINS":       "",
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "json",
	"STORE_DRIVER":               DriverPostgres,
	"DSN":                        "",
	"DB_MAX_OPEN_CONNS":          10,
	"DB_MAX_IDLE_CONNS":          5,
	"SUPABASE_URL":               "",
	"SUPABASE_SERVICE_ROLE_KEY":  "",
	"SUPABASE_SCHEMA":            "public",
	"PAYMONGO_BASE_URL":          "https://api.paymongo.com",
	"PAYMONGO_SECRET_KEY":        "",
	"PAYMONGO_WEBHOOK_SECRET":    "",
	"PAYMONGO_TIMEOUT":           "30s",
	"DEFAULT_PAYMENT_METHOD":     "gcash",
	"CHECKOUT_DESCRIPTION":       "Donation",
	"WEB_BASE_URL":               "",
	"ALLOW_INSECURE_RETURN_URLS": false,
	"RETURN_URL_SCHEMES":         "exp,exps",
	"JWT_SECRET":                 "",
	"OPERATOR_USERNAME":          "",
	"OPERATOR_PASSWORD_HASH":     "",
	"OPERATOR_TOKEN_TTL":         "12h",
}

// Load reads config.env from path when present, then lets the environment
// override any key.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.CORSAllowedOrigins = cleanList(cfg.CORSAllowedOrigins)
	cfg.ReturnURLSchemes = cleanList(cfg.ReturnURLSchemes)
	cfg.StoreConfig.Driver = strings.ToLower(strings.TrimSpace(cfg.StoreConfig.Driver))
	return &cfg, nil
}

func cleanList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreConfig.Driver {
	case DriverPostgres:
		if c.DSN == "" {
			errs = append(errs, errors.New("DSN is required for the postgres store"))
		}
	case DriverSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceRoleKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreConfig.Driver))
	}

	if c.PayMongoConfig.SecretKey == "" {
		errs = append(errs, errors.New("PAYMONGO_SECRET_KEY is required"))
	}
	if c.PayMongoConfig.WebhookSecret == "" {
		errs = append(errs, errors.New("PAYMONGO_WEBHOOK_SECRET is required"))
	}
	if c.PayMongoConfig.Timeout <= 0 {
		errs = append(errs, errors.New("PAYMONGO_TIMEOUT must be positive"))
	}

	if c.WebBaseURL != "" {
		u, err := url.Parse(c.WebBaseURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, fmt.Errorf("WEB_BASE_URL %q must be an absolute https url", c.WebBaseURL))
		}
	}

	if c.OperatorPasswordHash != "" && (c.OperatorUsername == "" || c.JWTSecret == "") {
		errs = append(errs, errors.New("operator login needs OPERATOR_USERNAME and JWT_SECRET"))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT %d is out of range", c.Port))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
