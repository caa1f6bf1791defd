package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"vexl-backend/internal/model"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Session   SessionConfig   `mapstructure:"session"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Mail      MailConfig      `mapstructure:"mail"`
	Site      SiteConfig      `mapstructure:"site"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	Mode            string        `mapstructure:"mode"`
	Gzip            bool          `mapstructure:"gzip"`
	Metrics         bool          `mapstructure:"metrics"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl"`
	// Lead applies to the form endpoints on top of the global limit.
	Lead LeadRateLimitConfig `mapstructure:"lead"`
}

type LeadRateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Retention       time.Duration `mapstructure:"retention"`
	MaxSessions     int           `mapstructure:"max_sessions"`
}

type StorageConfig struct {
	Type           string        `mapstructure:"type"`
	DataDir        string        `mapstructure:"data_dir"`
	CacheSize      int           `mapstructure:"cache_size"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
	Redis          RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	URL           string        `mapstructure:"url"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	PreferenceTTL time.Duration `mapstructure:"preference_ttl"`
	TranscriptTTL time.Duration `mapstructure:"transcript_ttl"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type AssistantConfig struct {
	TypingDelay    time.Duration `mapstructure:"typing_delay"`
	RevealDelay    time.Duration `mapstructure:"reveal_delay"`
	ReadDelay      time.Duration `mapstructure:"read_delay"`
	ResetDelay     time.Duration `mapstructure:"reset_delay"`
	AutoCloseDelay time.Duration `mapstructure:"auto_close_delay"`
	StayOpen       bool          `mapstructure:"stay_open"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`
	// Actions overrides action targets by key, e.g. whatsapp: https://wa.me/...
	Actions map[string]string `mapstructure:"actions"`
}

type MailConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	ServiceID         string        `mapstructure:"service_id"`
	PublicKey         string        `mapstructure:"public_key"`
	PrivateKey        string        `mapstructure:"private_key"`
	ContactTemplateID string        `mapstructure:"contact_template_id"`
	VettingTemplateID string        `mapstructure:"vetting_template_id"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DialRetries       int           `mapstructure:"dial_retries"`
	RatePerSecond     float64       `mapstructure:"rate_per_second"`
	Burst             int           `mapstructure:"burst"`
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
}

type SiteConfig struct {
	DefaultLang  string `mapstructure:"default_lang"`
	DefaultTheme string `mapstructure:"default_theme"`
	BaseURL      string `mapstructure:"base_url"`
	// ContentDir replaces the embedded locale files when set.
	ContentDir   string `mapstructure:"content_dir"`
	ContactEmail string `mapstructure:"contact_email"`
	WhatsApp     string `mapstructure:"whatsapp"`
	CookieName   string `mapstructure:"cookie_name"`
	CookieSecure bool   `mapstructure:"cookie_secure"`
	CookieDomain string `mapstructure:"cookie_domain"`
}

var cfg *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.gzip", true)
	v.SetDefault("server.metrics", true)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Length", "Retry-After"})
	v.SetDefault("cors.max_age", 43200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("rate_limit.burst", 30)
	v.SetDefault("rate_limit.idle_ttl", 10*time.Minute)
	v.SetDefault("rate_limit.lead.requests_per_minute", 6)
	v.SetDefault("rate_limit.lead.burst", 3)

	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.cleanup_interval", time.Minute)
	v.SetDefault("session.retention", 7*24*time.Hour)
	v.SetDefault("session.max_sessions", 10000)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.cache_size", 500)
	v.SetDefault("storage.backup_interval", 0)
	v.SetDefault("storage.redis.key_prefix", "vexl:")
	v.SetDefault("storage.redis.preference_ttl", 365*24*time.Hour)
	v.SetDefault("storage.redis.transcript_ttl", 7*24*time.Hour)
	v.SetDefault("storage.redis.timeout", 5*time.Second)

	v.SetDefault("assistant.typing_delay", 1200*time.Millisecond)
	v.SetDefault("assistant.reveal_delay", 600*time.Millisecond)
	v.SetDefault("assistant.read_delay", 2*time.Second)
	v.SetDefault("assistant.reset_delay", time.Second)
	v.SetDefault("assistant.auto_close_delay", 500*time.Millisecond)
	v.SetDefault("assistant.stay_open", false)
	v.SetDefault("assistant.heartbeat", 30*time.Second)

	v.SetDefault("mail.endpoint", "https://api.emailjs.com/api/v1.0/email/send")
	v.SetDefault("mail.timeout", 15*time.Second)
	v.SetDefault("mail.dial_retries", 2)
	v.SetDefault("mail.rate_per_second", 1.0)
	v.SetDefault("mail.burst", 5)
	v.SetDefault("mail.failure_threshold", 5)
	v.SetDefault("mail.cooldown", 30*time.Second)

	v.SetDefault("site.default_lang", "en")
	v.SetDefault("site.default_theme", "dark")
	v.SetDefault("site.base_url", "https://vexl.studio")
	v.SetDefault("site.cookie_name", "vexl_vid")

	// keys without a default are invisible to AutomaticEnv during Unmarshal
	for _, key := range []string{
		"storage.redis.url",
		"mail.service_id", "mail.public_key", "mail.private_key",
		"mail.contact_template_id", "mail.vetting_template_id",
		"site.content_dir", "site.contact_email", "site.whatsapp", "site.cookie_domain",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("site.cookie_secure", false)
	v.SetDefault("cors.allow_credentials", false)
}

// Load reads the YAML file at configPath. A missing file is not an error:
// defaults and VEXL_* environment variables still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VEXL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !isMissing(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// the file wins; the relay's own variable names are the fallback
	fallback(&c.Mail.ServiceID, "EMAILJS_SERVICE_ID")
	fallback(&c.Mail.PublicKey, "EMAILJS_PUBLIC_KEY")
	fallback(&c.Mail.PrivateKey, "EMAILJS_PRIVATE_KEY")
	fallback(&c.Mail.ContactTemplateID, "EMAILJS_TEMPLATE_ID")
	fallback(&c.Mail.VettingTemplateID, "EMAILJS_VETTING_TEMPLATE_ID")

	if err := c.Validate(); err != nil {
		return nil, err
	}

	cfg = c
	return c, nil
}

func Get() *Config {
	return cfg
}

func isMissing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

func fallback(dst *string, env string) {
	if *dst != "" {
		return
	}
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode %q is not one of debug, release, test", c.Server.Mode))
	}
	if _, ok := model.ParseLanguage(c.Site.DefaultLang); !ok {
		errs = append(errs, fmt.Errorf("site.default_lang %q is not supported", c.Site.DefaultLang))
	}
	if _, ok := model.ParseTheme(c.Site.DefaultTheme); !ok {
		errs = append(errs, fmt.Errorf("site.default_theme %q is not supported", c.Site.DefaultTheme))
	}

	switch c.Storage.Type {
	case "memory":
	case "disk":
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("storage.data_dir is required for disk storage"))
		}
	case "redis":
		if c.Storage.Redis.URL == "" {
			errs = append(errs, errors.New("storage.redis.url is required for redis storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not one of memory, disk, redis", c.Storage.Type))
	}

	delays := map[string]time.Duration{
		"assistant.typing_delay":     c.Assistant.TypingDelay,
		"assistant.reveal_delay":     c.Assistant.RevealDelay,
		"assistant.read_delay":       c.Assistant.ReadDelay,
		"assistant.reset_delay":      c.Assistant.ResetDelay,
		"assistant.auto_close_delay": c.Assistant.AutoCloseDelay,
		"session.ttl":                c.Session.TTL,
		"session.retention":          c.Session.Retention,
	}
	for name, d := range delays {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.Assistant.Heartbeat <= 0 {
		errs = append(errs, errors.New("assistant.heartbeat must be positive"))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_minute must be positive"))
	}

	return errors.Join(errs...)
}

// ActionOverrides merges the site contact settings into the explicit
// action overrides. Explicit entries win.
func (c *Config) ActionOverrides() map[string]string {
	out := make(map[string]string, len(c.Assistant.Actions)+2)
	if c.Site.WhatsApp != "" {
		out["whatsapp"] = "https://wa.me/" + strings.TrimLeft(c.Site.WhatsApp, "+")
	}
	if c.Site.ContactEmail != "" {
		out["email"] = "mailto:" + c.Site.ContactEmail
	}
	for k, v := range c.Assistant.Actions {
		out[k] = v
	}
	return out
}
