package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 不安全的默认值列表 (生产环境不应使用)
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"change-me-in-production":              true,
	"internal-secret":                      true,
	"internal-service-secret":              true,
	"":                                     true,
}

type Config struct {
	Server         ServerConfig    `mapstructure:"server"`
	Database       DatabaseConfig  `mapstructure:"database"`
	JWT            JWTConfig       `mapstructure:"jwt"`
	Redis          RedisConfig     `mapstructure:"redis"`
	Log            LogConfig       `mapstructure:"log"`
	Site           SiteConfig      `mapstructure:"site"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	InternalSecret string          `mapstructure:"internal_secret"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Schema   string `mapstructure:"schema"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

type JWTConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SiteConfig holds the operator-facing system settings. It is read once at
// startup and handed to the components that need it.
type SiteConfig struct {
	Name                  string `mapstructure:"name"`
	Description           string `mapstructure:"description"`
	AdminEmail            string `mapstructure:"admin_email"`
	MaintenanceMode       bool   `mapstructure:"maintenance_mode"`
	SessionTimeoutMinutes int    `mapstructure:"session_timeout_minutes"`
	LogRetentionDays      int    `mapstructure:"log_retention_days"`
}

// RateLimitConfig controls the per-client limits on unauthenticated-ish
// endpoints (login and license validation). Backend is "memory" or "redis".
type RateLimitConfig struct {
	Backend       string `mapstructure:"backend"`
	LoginLimit    int    `mapstructure:"login_limit"`
	ValidateLimit int    `mapstructure:"validate_limit"`
	WindowSeconds int    `mapstructure:"window_seconds"`
}

// 兼容旧的环境变量名
var envBindings = map[string]string{
	"server.port":       "SERVER_PORT",
	"server.mode":       "GIN_MODE",
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.user":     "DB_USER",
	"database.password": "DB_PASSWORD",
	"database.dbname":   "DB_NAME",
	"database.schema":   "DB_SCHEMA",
	"database.sslmode":  "DB_SSLMODE",
	"jwt.secret_key":    "JWT_SECRET_KEY",
	"redis.addr":        "REDIS_ADDR",
	"redis.password":    "REDIS_PASSWORD",
	"log.level":         "LOG_LEVEL",
	"log.format":        "LOG_FORMAT",
	"internal_secret":   "INTERNAL_SECRET",
}

// Load reads configs/config.yaml (optional) and environment variables.
// configPath may point at a specific file; empty means the default search paths.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8005")
	v.SetDefault("server.mode", "release") // 默认为 release 模式

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "saas_user")
	v.SetDefault("database.password", "saas_pass")
	v.SetDefault("database.dbname", "saas_db")
	v.SetDefault("database.schema", "odoo_admin")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)

	v.SetDefault("jwt.secret_key", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("site.name", "Odoo SaaS 管理系统")
	v.SetDefault("site.description", "")
	v.SetDefault("site.admin_email", "")
	v.SetDefault("site.maintenance_mode", false)
	v.SetDefault("site.session_timeout_minutes", 30)
	v.SetDefault("site.log_retention_days", 30)

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.login_limit", 10)
	v.SetDefault("rate_limit.validate_limit", 120)
	v.SetDefault("rate_limit.window_seconds", 60)

	v.SetDefault("internal_secret", "")
}

// Validate 验证配置有效性，生产环境必须设置安全的密钥
func (c *Config) Validate() error {
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if insecureDefaults[c.InternalSecret] {
		return fmt.Errorf("INTERNAL_SECRET must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.InternalSecret) < 32 {
		return fmt.Errorf("INTERNAL_SECRET must be at least 32 characters long")
	}

	if c.Site.SessionTimeoutMinutes <= 0 {
		return fmt.Errorf("site.session_timeout_minutes must be positive")
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when rate_limit.backend is redis")
		}
	default:
		return fmt.Errorf("unknown rate_limit.backend %q", c.RateLimit.Backend)
	}

	return nil
}

// SessionTimeout is the lifetime of login tokens.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Site.SessionTimeoutMinutes) * time.Minute
}

// RateWindow is the sliding window shared by both rate limits.
func (c *RateLimitConfig) RateWindow() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// DSN builds a pgx connection string; the schema is applied as search_path.
func (c *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.Schema != "" {
		q.Set("search_path", c.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
