package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Worker       WorkerConfig
	SMTP         SMTPConfig
	Availability AvailabilityConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// WorkerConfig drives the reminder dispatch loop and the slot retention sweep.
type WorkerConfig struct {
	PollIntervalSeconds    int `mapstructure:"poll_interval_seconds"`
	BatchSize              int `mapstructure:"batch_size"`
	MaxRetries             int `mapstructure:"max_retries"`
	SendRatePerSecond      int `mapstructure:"send_rate_per_second"`
	SlotRetentionDays      int `mapstructure:"slot_retention_days"`
	CleanupIntervalMinutes int `mapstructure:"cleanup_interval_minutes"`
}

func (c WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c WorkerConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// AvailabilityConfig is the fixed working-hours template slots are generated
// from. Hours are in the server timezone.
type AvailabilityConfig struct {
	DayStartHour        int `mapstructure:"day_start_hour"`
	DayEndHour          int `mapstructure:"day_end_hour"`
	SlotDurationMinutes int `mapstructure:"slot_duration_minutes"`
}

// EnvOverrides are deployment-level settings that take precedence over the
// yaml file, read the way the worker containers inject them.
type EnvOverrides struct {
	DatabaseHost     string `envconfig:"DB_HOST"`
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	RedisURL         string `envconfig:"REDIS_URL"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env EnvOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to process env overrides: %w", err)
	}
	if env.DatabaseHost != "" {
		config.Database.Host = env.DatabaseHost
	}
	if env.DatabasePassword != "" {
		config.Database.Password = env.DatabasePassword
	}
	if env.RedisURL != "" {
		config.Redis.URL = env.RedisURL
	}
	if env.SMTPPassword != "" {
		config.SMTP.Password = env.SMTPPassword
	}

	applyDefaults(&config)

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Worker.PollIntervalSeconds <= 0 {
		config.Worker.PollIntervalSeconds = 60
	}
	if config.Worker.BatchSize <= 0 {
		config.Worker.BatchSize = 50
	}
	if config.Worker.MaxRetries <= 0 {
		config.Worker.MaxRetries = 3
	}
	if config.Worker.SendRatePerSecond <= 0 {
		config.Worker.SendRatePerSecond = 10
	}
	if config.Worker.SlotRetentionDays <= 0 {
		config.Worker.SlotRetentionDays = 30
	}
	if config.Worker.CleanupIntervalMinutes <= 0 {
		config.Worker.CleanupIntervalMinutes = 24 * 60
	}
	if config.Availability.DayStartHour == 0 && config.Availability.DayEndHour == 0 {
		config.Availability.DayStartHour = 9
		config.Availability.DayEndHour = 17
	}
	if config.Availability.SlotDurationMinutes <= 0 {
		config.Availability.SlotDurationMinutes = 30
	}
}
