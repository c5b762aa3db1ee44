// Package config loads service settings from the environment and an optional
// YAML file.
//
// Environment variables use the deployment names (HTTP_ADDR, DATABASE_URL,
// DB_HOST, AUTHZ_MODE, ALLOWLIST_PATH, ...) rather than a prefix. A file, when
// given, supplies the same keys in nested form; the environment wins.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Log         LogConfig         `mapstructure:"log"`
	Store       StoreConfig       `mapstructure:"store"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Authz       AuthzConfig       `mapstructure:"authz"`
	Routing     RoutingConfig     `mapstructure:"routing"`
	Eligibility EligibilityConfig `mapstructure:"eligibility"`
	Companion   CompanionConfig   `mapstructure:"companion"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	Environment string `mapstructure:"environment" validate:"omitempty,oneof=development production test"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port" validate:"omitempty,numeric"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

type AuthzConfig struct {
	Mode                string `mapstructure:"mode" validate:"omitempty,oneof=enforce shadow disabled"`
	UnsafeAllowDisabled bool   `mapstructure:"unsafe_allow_disabled"`
	ModelPath           string `mapstructure:"model_path"`
	PolicyPath          string `mapstructure:"policy_path"`
	ItemPolicyPath      string `mapstructure:"item_policy_path"`
	// Site is the casbin domain; empty means the global domain.
	Site string `mapstructure:"site"`
}

type RoutingConfig struct {
	AllowlistPath string `mapstructure:"allowlist_path"`
}

type EligibilityConfig struct {
	Expression string `mapstructure:"expression" validate:"required"`
}

type CompanionConfig struct {
	WooCommerce bool `mapstructure:"woocommerce"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

// envBindings maps config keys to their environment variable names.
var envBindings = map[string]string{
	"http.addr":                   "HTTP_ADDR",
	"http.shutdown_timeout":       "HTTP_SHUTDOWN_TIMEOUT",
	"http.read_timeout":           "HTTP_READ_TIMEOUT",
	"http.write_timeout":          "HTTP_WRITE_TIMEOUT",
	"log.level":                   "LOG_LEVEL",
	"log.environment":             "APP_ENV",
	"store.driver":                "STORE_DRIVER",
	"database.url":                "DATABASE_URL",
	"database.host":               "DB_HOST",
	"database.port":               "DB_PORT",
	"database.user":               "DB_USER",
	"database.password":           "DB_PASSWORD",
	"database.name":               "DB_NAME",
	"database.sslmode":            "DB_SSLMODE",
	"authz.mode":                  "AUTHZ_MODE",
	"authz.unsafe_allow_disabled": "AUTHZ_UNSAFE_ALLOW_DISABLED",
	"authz.model_path":            "AUTHZ_MODEL_PATH",
	"authz.policy_path":           "AUTHZ_POLICY_PATH",
	"authz.item_policy_path":      "AUTHZ_ITEM_POLICY_PATH",
	"authz.site":                  "AUTHZ_SITE",
	"routing.allowlist_path":      "ALLOWLIST_PATH",
	"eligibility.expression":      "ELIGIBILITY_EXPRESSION",
	"companion.woocommerce":       "COMPANION_WOOCOMMERCE",
	"auth.jwt_secret":             "JWT_SECRET",
	"auth.jwt_issuer":             "JWT_ISSUER",
}

// Load reads configPath (optional) and the environment, applies defaults
// and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper) {
	setDefaults(v)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "development")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "5438")
	v.SetDefault("database.user", "app")
	v.SetDefault("database.password", "app")
	v.SetDefault("database.name", "rank_math")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("authz.mode", "enforce")
	v.SetDefault("eligibility.expression", types.DefaultEligibilityExpression)
	v.SetDefault("companion.woocommerce", false)
}

// DSN returns DATABASE_URL when set, else a postgres URL built from the
// DB_* parts.
func (d DatabaseConfig) DSN() string {
	if strings.TrimSpace(d.URL) != "" {
		return d.URL
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + d.Port,
		Path:   "/" + d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
