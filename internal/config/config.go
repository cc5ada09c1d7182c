// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// TrustProxyHeaders enables X-Forwarded-For / Client-IP resolution.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

// AdminConfig guards the admin API. APIKeyHash is a bcrypt hash of the key;
// when set it is used instead of APIKey.
type AdminConfig struct {
	APIKey       string        `yaml:"api_key"`
	APIKeyHash   string        `yaml:"api_key_hash"`
	JWTSecret    string        `yaml:"jwt_secret"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
	CookieDomain string        `yaml:"cookie_domain"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	MaxConns    int32  `yaml:"max_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// MessagesConfig holds the public templates. Placeholders:
// {code} {name} {email} {phone} {purchase_location} {date}.
type MessagesConfig struct {
	Success    string `yaml:"success"`
	Error      string `yaml:"error"`
	DateFormat string `yaml:"date_format"`
	// File optionally points at a YAML file with success/error keys that
	// override the inline templates.
	File string `yaml:"file"`
}

type RedemptionConfig struct {
	// LogFailedAttempts appends a failed attempt for "not found" and
	// "already used" outcomes. Disable to record successes only.
	LogFailedAttempts *bool         `yaml:"log_failed_attempts"`
	LockTTL           time.Duration `yaml:"lock_ttl"`
	UseLock           bool          `yaml:"use_lock"`
}

func (r RedemptionConfig) LogFailures() bool {
	return r.LogFailedAttempts == nil || *r.LogFailedAttempts
}

type RateLimitConfig struct {
	Enabled            bool          `yaml:"enabled"`
	MaxAttemptsPerHour int           `yaml:"max_attempts_per_hour"`
	Window             time.Duration `yaml:"window"`
}

type StatsConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	PublishInterval time.Duration `yaml:"publish_interval"`
}

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Admin      AdminConfig      `yaml:"admin"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Messages   MessagesConfig   `yaml:"messages"`
	Redemption RedemptionConfig `yaml:"redemption"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Stats      StatsConfig      `yaml:"stats"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	DefaultSuccessMessage = "<h3>Authentication Successful!</h3><p>Your code has been successfully authenticated. Thank you for using our service.</p>"
	DefaultErrorMessage   = "<h3>Authentication Failed</h3><p>The authentication code you entered is invalid or has already been used. Please check your code and try again.</p>"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references. Bare $ signs are left alone because
// message templates may contain them.
func expandEnv(b []byte) []byte {
	return envRef.ReplaceAllFunc(b, func(m []byte) []byte {
		return []byte(os.Getenv(string(envRef.FindSubmatch(m)[1])))
	})
}

// LoadConfig reads and validates the YAML file at path. A .env file in the
// working directory, if present, is loaded first so ${VAR} references in the
// YAML can pick up secrets.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(expandEnv(b))
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes YAML bytes, applies defaults and runs minimal validation.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.MaxAttemptsPerHour <= 0 {
		return nil, errors.New("rate_limit.max_attempts_per_hour must be positive")
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Messages.Success == "" {
		cfg.Messages.Success = DefaultSuccessMessage
	}
	if cfg.Messages.Error == "" {
		cfg.Messages.Error = DefaultErrorMessage
	}
	if cfg.Messages.DateFormat == "" {
		cfg.Messages.DateFormat = "2006-01-02"
	}
	if cfg.Redemption.LockTTL <= 0 {
		cfg.Redemption.LockTTL = 5 * time.Second
	}
	if cfg.RateLimit.MaxAttemptsPerHour == 0 {
		cfg.RateLimit.MaxAttemptsPerHour = 10
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Hour
	}
	if cfg.Stats.CacheTTL <= 0 {
		cfg.Stats.CacheTTL = 5 * time.Minute
	}
	if cfg.Stats.PublishInterval <= 0 {
		cfg.Stats.PublishInterval = time.Minute
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
