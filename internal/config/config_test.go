package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:               "development",
		Port:              "8080",
		JWTSecret:         "secure-secret-at-least-32-chars-long",
		DBDriver:          "sqlite",
		DBPassword:        "secure-password",
		DBSSLMode:         "require",
		ModerationBackend: "memory",
		SettingsBackend:   "database",
		SweepInterval:     time.Minute,
		SweepWorkers:      4,
		Timezone:          "Asia/Baku",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid development config", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"unknown db driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"unknown moderation backend", func(c *Config) { c.ModerationBackend = "etcd" }, true},
		{"unknown settings backend", func(c *Config) { c.SettingsBackend = "file" }, true},
		{"zero sweep interval", func(c *Config) { c.SweepInterval = 0 }, true},
		{"zero sweep workers", func(c *Config) { c.SweepWorkers = 0 }, true},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
		{"production with default secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = defaultJWTSecret
		}, true},
		{"production postgres without ssl", func(c *Config) {
			c.Env = "production"
			c.DBDriver = "postgres"
			c.DBSSLMode = "disable"
		}, true},
		{"production postgres with ssl", func(c *Config) {
			c.Env = "prod"
			c.DBDriver = "postgres"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer viper.Reset()

	os.Setenv("APP_ENV", "test")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, time.Minute, c.SweepInterval)
	assert.Equal(t, "Asia/Baku", c.Timezone)
	assert.Equal(t, []string{"spam", "reklam"}, c.BannedWordList())
	assert.Equal(t, 24, c.GroupExpiryValue)
	assert.Equal(t, 48, c.PrivateExpiryValue)
}

func TestLoadConfig_EnvNormalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("MODERATION_BACKEND")
	defer viper.Reset()

	os.Setenv("APP_ENV", "test")
	os.Setenv("MODERATION_BACKEND", "  REDIS ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "redis", c.ModerationBackend)
}

func TestBannedWordList_SkipsBlanks(t *testing.T) {
	c := &Config{BannedWords: " spam , ,reklam,"}
	assert.Equal(t, []string{"spam", "reklam"}, c.BannedWordList())
}
