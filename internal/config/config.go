package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	CRM      CRMConfig
}

type AppConfig struct {
	Env  string
	Port string
}

type DatabaseConfig struct {
	URL      string // takes precedence over the discrete fields when set
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogLevel string // silent, error, warn, info
}

type AuthConfig struct {
	JWTSecret         string
	SessionTTL        time.Duration
	MaxFailedAttempts int
	LockDuration      time.Duration
	SessionCacheTTL   time.Duration
}

// RedisConfig enables the shared session cache when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CORSConfig struct {
	AllowOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type CRMConfig struct {
	DefaultRegion string // ISO region used to parse phone numbers without a country code
}

// Load reads configs/.env (if present) and then VOUCHERPRO_* environment variables over built-in defaults.
// Priority (highest to lowest):
// 1. Environment variables with VOUCHERPRO_ prefix (e.g. VOUCHERPRO_DATABASE_PASSWORD)
// 2. configs/.env
// 3. Built-in defaults
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{"configs/.env"}
	}
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("VOUCHERPRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("database.url"),
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
			LogLevel: v.GetString("database.log_level"),
		},
		Auth: AuthConfig{
			JWTSecret:         v.GetString("auth.jwt_secret"),
			SessionTTL:        v.GetDuration("auth.session_ttl"),
			MaxFailedAttempts: v.GetInt("auth.max_failed_attempts"),
			LockDuration:      v.GetDuration("auth.lock_duration"),
			SessionCacheTTL:   v.GetDuration("auth.session_cache_ttl"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		CORS: CORSConfig{
			AllowOrigins: splitList(v.GetString("cors.allow_origins")),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		CRM: CRMConfig{
			DefaultRegion: strings.ToUpper(v.GetString("crm.default_region")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "voucherpro")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", 12*time.Hour)
	v.SetDefault("auth.max_failed_attempts", 5)
	v.SetDefault("auth.lock_duration", 15*time.Minute)
	v.SetDefault("auth.session_cache_ttl", time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cors.allow_origins", "http://localhost:5173,http://127.0.0.1:5173")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("crm.default_region", "NG")
}

// Validate rejects configurations the server cannot safely run with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("auth.jwt_secret is required in production")
		}
		c.Auth.JWTSecret = "dev_only_voucherpro_secret"
	}
	if c.Auth.MaxFailedAttempts < 1 {
		return fmt.Errorf("auth.max_failed_attempts must be at least 1")
	}
	if c.Auth.LockDuration <= 0 {
		return fmt.Errorf("auth.lock_duration must be positive")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN builds the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
