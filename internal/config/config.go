package config

import (
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	PostgresURL       string  `mapstructure:"POSTGRES_URL"`
	RedisAddr         string  `mapstructure:"REDIS_ADDR"`
	ServerPort        string  `mapstructure:"SERVER_PORT"`
	ScrapeWorkers     int     `mapstructure:"SCRAPE_WORKERS"`
	DeepWorkers       int     `mapstructure:"DEEP_WORKERS"`
	TaskTimeout       int     `mapstructure:"TASK_TIMEOUT"`
	FetchTimeout      int     `mapstructure:"FETCH_TIMEOUT"`
	RenderTimeout     int     `mapstructure:"RENDER_TIMEOUT"`
	MaxRetries        int     `mapstructure:"MAX_RETRIES"`
	RetryBaseDelayMS  int     `mapstructure:"RETRY_BASE_DELAY_MS"`
	CallsPerSecond    float64 `mapstructure:"CALLS_PER_SECOND"`
	ProfileMaxAgeDays int     `mapstructure:"PROFILE_MAX_AGE_DAYS"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present
	// This allows configuration purely through environment variables in production
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("SCRAPE_WORKERS", 8)
	viper.SetDefault("DEEP_WORKERS", 15)
	viper.SetDefault("TASK_TIMEOUT", 90)         // in seconds
	viper.SetDefault("FETCH_TIMEOUT", 20)        // in seconds
	viper.SetDefault("RENDER_TIMEOUT", 30)       // in seconds
	viper.SetDefault("MAX_RETRIES", 2)
	viper.SetDefault("RETRY_BASE_DELAY_MS", 1000)
	viper.SetDefault("CALLS_PER_SECOND", 3.0)
	viper.SetDefault("PROFILE_MAX_AGE_DAYS", 7) // 0 disables staleness

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
