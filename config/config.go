package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	Minio     MinioConfig     `yaml:"minio"`
	Email     EmailConfig     `yaml:"email"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
	Assistant AssistantConfig `yaml:"assistant"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory"
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig is optional; an empty Addr keeps rate limiting in memory
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	Requests      int `yaml:"requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
	CookieName       string `yaml:"cookie_name"`
	CookieSecure     bool   `yaml:"cookie_secure"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	Region     string `yaml:"region"`
	ExpireDays int    `yaml:"expire_days"`
}

type EmailConfig struct {
	APIURL         string `yaml:"api_url"`
	APIKey         string `yaml:"api_key"`
	From           string `yaml:"from"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type WhatsAppConfig struct {
	APIURL         string `yaml:"api_url"`
	APIKey         string `yaml:"api_key"`
	Instance       string `yaml:"instance"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AssistantConfig struct {
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	SupportLink  string `yaml:"support_link"`
	MaxToolSteps int    `yaml:"max_tool_steps"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file
func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&c.Database.DSN, "DATABASE_URL")
	override(&c.Auth.JWTSecret, "JWT_SECRET")
	override(&c.Assistant.APIKey, "GEMINI_API_KEY")
	override(&c.Email.APIKey, "EMAIL_API_KEY")
	override(&c.WhatsApp.APIKey, "WHATSAPP_API_KEY")
	override(&c.Redis.Addr, "REDIS_ADDR")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Database.Driver == "" {
		if c.Database.DSN != "" {
			c.Database.Driver = "postgres"
		} else {
			c.Database.Driver = "memory"
		}
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 100
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 30 * 24
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "licito_session"
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Email.TimeoutSeconds == 0 {
		c.Email.TimeoutSeconds = 15
	}
	if c.WhatsApp.TimeoutSeconds == 0 {
		c.WhatsApp.TimeoutSeconds = 15
	}
	if c.Assistant.Model == "" {
		c.Assistant.Model = "gemini-2.5-flash"
	}
	if c.Assistant.MaxToolSteps == 0 {
		c.Assistant.MaxToolSteps = 5
	}
}
