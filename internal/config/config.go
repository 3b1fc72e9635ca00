package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort      int    `mapstructure:"APP_PORT"`
	DatabasePath string `mapstructure:"DATABASE_PATH"`

	// RedisAddr selects the stop-request store backend. Empty means a single
	// process deployment and an in-memory store.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	StopTTLSeconds           int `mapstructure:"STOP_TTL_SECONDS"`
	HeartbeatIntervalSeconds int `mapstructure:"HEARTBEAT_INTERVAL_SECONDS"`
	InterChunkTimeoutSeconds int `mapstructure:"INTER_CHUNK_TIMEOUT_SECONDS"`
	ProviderTimeoutSeconds   int `mapstructure:"PROVIDER_TIMEOUT_SECONDS"`
	MaxRetries               int `mapstructure:"MAX_RETRIES"`
	RetryBackoffMillis       int `mapstructure:"RETRY_BACKOFF_MS"`

	// ImageContextStrategy controls which historical image uploads are sent
	// to the provider: "all", "latest_only" or "none".
	ImageContextStrategy string `mapstructure:"IMAGE_CONTEXT_STRATEGY"`
	MaxImagesInContext   int    `mapstructure:"MAX_IMAGES_IN_CONTEXT"`
	UploadDir            string `mapstructure:"UPLOAD_DIR"`

	InitialSystemPrompt string `mapstructure:"INITIAL_SYSTEM_PROMPT"`
	LogLevel            string `mapstructure:"LOG_LEVEL"`
}

func (c *Config) StopTTL() time.Duration { return time.Duration(c.StopTTLSeconds) * time.Second }

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

func (c *Config) InterChunkTimeout() time.Duration {
	return time.Duration(c.InterChunkTimeoutSeconds) * time.Second
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMillis) * time.Millisecond
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("DATABASE_PATH", "/data/openchat.db")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 1)
	viper.SetDefault("STOP_TTL_SECONDS", 120)
	viper.SetDefault("HEARTBEAT_INTERVAL_SECONDS", 15)
	viper.SetDefault("INTER_CHUNK_TIMEOUT_SECONDS", 20)
	viper.SetDefault("PROVIDER_TIMEOUT_SECONDS", 300)
	viper.SetDefault("MAX_RETRIES", 2)
	viper.SetDefault("RETRY_BACKOFF_MS", 500)
	viper.SetDefault("IMAGE_CONTEXT_STRATEGY", "latest_only")
	viper.SetDefault("MAX_IMAGES_IN_CONTEXT", 1)
	viper.SetDefault("UPLOAD_DIR", "/data/uploads")
	viper.SetDefault("INITIAL_SYSTEM_PROMPT", "You are a helpful assistant.")
	viper.SetDefault("LOG_LEVEL", "INFO")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./backend")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
