// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	DBDriver       string `mapstructure:"DB_DRIVER"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBPath         string `mapstructure:"DB_PATH"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	Env            string `mapstructure:"APP_ENV"`

	// Storage backends for the moderation store and the settings store.
	ModerationBackend string `mapstructure:"MODERATION_BACKEND"`
	SettingsBackend   string `mapstructure:"SETTINGS_BACKEND"`

	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepWorkers  int           `mapstructure:"SWEEP_WORKERS"`
	Timezone      string        `mapstructure:"TIMEZONE"`

	// Seed values for the settings store on first start.
	BannedWords        string `mapstructure:"BANNED_WORDS"`
	GroupExpiryValue   int    `mapstructure:"GROUP_EXPIRY_VALUE"`
	GroupExpiryUnit    string `mapstructure:"GROUP_EXPIRY_UNIT"`
	PrivateExpiryValue int    `mapstructure:"PRIVATE_EXPIRY_VALUE"`
	PrivateExpiryUnit  string `mapstructure:"PRIVATE_EXPIRY_UNIT"`
	DailyTopic         string `mapstructure:"DAILY_TOPIC"`
	Rules              string `mapstructure:"RULES"`

	SendRateLimit int `mapstructure:"SEND_RATE_LIMIT"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "bsuchat")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_PATH", "bsuchat.db")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("MODERATION_BACKEND", "memory")
	viper.SetDefault("SETTINGS_BACKEND", "database")
	viper.SetDefault("SWEEP_INTERVAL", "60s")
	viper.SetDefault("SWEEP_WORKERS", 8)
	viper.SetDefault("TIMEZONE", "Asia/Baku")
	viper.SetDefault("BANNED_WORDS", "spam,reklam")
	viper.SetDefault("GROUP_EXPIRY_VALUE", 24)
	viper.SetDefault("GROUP_EXPIRY_UNIT", "hours")
	viper.SetDefault("PRIVATE_EXPIRY_VALUE", 48)
	viper.SetDefault("PRIVATE_EXPIRY_UNIT", "hours")
	viper.SetDefault("DAILY_TOPIC", "Bugün fakültənizlə bağlı fikirlərini paylaş!")
	viper.SetDefault("RULES", "BSU Chat qaydalarına xoş gəlmisiniz!")
	viper.SetDefault("SEND_RATE_LIMIT", 15)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
}

func (c *Config) normalize() {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.ModerationBackend = strings.ToLower(strings.TrimSpace(c.ModerationBackend))
	c.SettingsBackend = strings.ToLower(strings.TrimSpace(c.SettingsBackend))
}

// BannedWordList splits the comma separated BANNED_WORDS value.
func (c *Config) BannedWordList() []string {
	var words []string
	for _, w := range strings.Split(c.BannedWords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// IsProduction reports whether the app runs with a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	switch c.ModerationBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("MODERATION_BACKEND must be memory or redis, got %q", c.ModerationBackend)
	}
	switch c.SettingsBackend {
	case "memory", "database":
	default:
		return fmt.Errorf("SETTINGS_BACKEND must be memory or database, got %q", c.SettingsBackend)
	}
	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	if c.SweepWorkers <= 0 {
		return errors.New("SWEEP_WORKERS must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "postgres" {
			if c.DBPassword == "password" || c.DBPassword == "" {
				return errors.New("a strong DB_PASSWORD is required in production")
			}
			if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
				return errors.New("DB_SSLMODE must enable TLS in production")
			}
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
