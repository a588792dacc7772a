// File: /config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendLocal   = "local"
	BackendManaged = "managed"

	SlotFile  = "file"
	SlotRedis = "redis"

	WriteBlocking    = "blocking"
	WriteNonBlocking = "nonblocking"
)

type Config struct {
	Port       string `yaml:"port"`
	AppBaseURL string `yaml:"app_base_url"`
	CORSOrigin string `yaml:"cors_origin"`

	// Persistence
	StoreBackend   string        `yaml:"store_backend"`
	LocalSlot      string        `yaml:"local_slot"`
	LocalSlotPath  string        `yaml:"local_slot_path"`
	LocalSlotKey   string        `yaml:"local_slot_key"`
	DBDriver       string        `yaml:"db_driver"`
	DatabaseURL    string        `yaml:"database_url"`
	WriteMode      string        `yaml:"write_mode"`
	WriteQueueSize int           `yaml:"write_queue_size"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`

	// Auth
	JWTSecret          string        `yaml:"jwt_secret"`
	TokenTTL           time.Duration `yaml:"token_ttl"`
	OAuthClientID      string        `yaml:"oauth_client_id"`
	OAuthClientSecret  string        `yaml:"oauth_client_secret"`
	OAuthRedirectURL   string        `yaml:"oauth_redirect_url"`
	OAuthUserInfoURL   string        `yaml:"oauth_userinfo_url"`
	AdminEmails        []string      `yaml:"admin_emails"`
	OAuthStateInterval time.Duration `yaml:"oauth_state_cleanup_interval"`

	// AI assist
	GenAIAPIKey         string `yaml:"genai_api_key"`
	GenAITextModel      string `yaml:"genai_text_model"`
	GenAIVisionModel    string `yaml:"genai_vision_model"`
	AssistRatePerMinute int    `yaml:"assist_rate_per_minute"`
	AssistBurst         int    `yaml:"assist_burst"`

	// Email Configuration
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
	FromName     string `yaml:"from_name"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:3000"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),

		StoreBackend:   getEnv("STORE_BACKEND", BackendManaged),
		LocalSlot:      getEnv("LOCAL_SLOT", SlotFile),
		LocalSlotPath:  getEnv("LOCAL_SLOT_PATH", "data/routes.json"),
		LocalSlotKey:   getEnv("LOCAL_SLOT_KEY", "honzovy_trasy_data"),
		DBDriver:       getEnv("DB_DRIVER", "mysql"),
		DatabaseURL:    getEnv("DATABASE_URL", "user:password@tcp(localhost:3306)/trailcatalog?charset=utf8mb4&parseTime=True&loc=Local"),
		WriteMode:      getEnv("WRITE_MODE", WriteNonBlocking),
		WriteQueueSize: getInt("WRITE_QUEUE_SIZE", 256),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key"),
		TokenTTL:           getDuration("TOKEN_TTL", 7*24*time.Hour),
		OAuthClientID:      getEnv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret:  getEnv("OAUTH_CLIENT_SECRET", ""),
		OAuthRedirectURL:   getEnv("OAUTH_REDIRECT_URL", "http://localhost:8080/api/v1/auth/oauth/callback"),
		OAuthUserInfoURL:   getEnv("OAUTH_USERINFO_URL", "https://www.googleapis.com/oauth2/v3/userinfo"),
		AdminEmails:        splitList(getEnv("ADMIN_EMAILS", "")),
		OAuthStateInterval: getDuration("OAUTH_STATE_CLEANUP_INTERVAL", 5*time.Minute),

		GenAIAPIKey:         getEnv("GENAI_API_KEY", ""),
		GenAITextModel:      getEnv("GENAI_TEXT_MODEL", "gemini-2.5-flash"),
		GenAIVisionModel:    getEnv("GENAI_VISION_MODEL", "gemini-2.5-flash"),
		AssistRatePerMinute: getInt("ASSIST_RATE_PER_MINUTE", 20),
		AssistBurst:         getInt("ASSIST_BURST", 5),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getInt("SMTP_PORT", 2525),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		FromEmail:    getEnv("FROM_EMAIL", "noreply@trailcatalog.local"),
		FromName:     getEnv("FROM_NAME", "Trail Catalog"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile replaces values with the ones set in a YAML file. Keys missing
// from the file keep their environment or default value.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendLocal, BackendManaged:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.LocalSlot {
	case SlotFile, SlotRedis:
	default:
		return fmt.Errorf("unknown LOCAL_SLOT %q", c.LocalSlot)
	}
	if c.StoreBackend == BackendLocal && c.LocalSlot == SlotRedis && c.RedisAddr == "" {
		return fmt.Errorf("LOCAL_SLOT=redis requires REDIS_ADDR")
	}
	switch c.WriteMode {
	case WriteBlocking, WriteNonBlocking:
	default:
		return fmt.Errorf("unknown WRITE_MODE %q", c.WriteMode)
	}
	if c.WriteQueueSize <= 0 {
		return fmt.Errorf("WRITE_QUEUE_SIZE must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("WRITE_TIMEOUT must be positive")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.OAuthStateInterval <= 0 {
		return fmt.Errorf("OAUTH_STATE_CLEANUP_INTERVAL must be positive")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.AssistRatePerMinute <= 0 {
		return fmt.Errorf("ASSIST_RATE_PER_MINUTE must be positive")
	}
	if c.AssistBurst <= 0 {
		return fmt.Errorf("ASSIST_BURST must be positive")
	}
	return nil
}

// OAuthEnabled reports whether the redirect sign-in has client credentials.
func (c *Config) OAuthEnabled() bool {
	return c.OAuthClientID != "" && c.OAuthClientSecret != ""
}

// SMTPEnabled reports whether outgoing mail is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
