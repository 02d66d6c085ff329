package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Device Device
	Server Server
	Log    Log
}

type Device struct {
	Host            string        `env:"AMTRON_IP" env-required:"true" env-description:"charger host or IP address"`
	Username        string        `env:"AMTRON_USERNAME" env-default:"operator"`
	Password        string        `env:"AMTRON_PASSWORD" env-required:"true" env-description:"operator account password"`
	Timeout         time.Duration `env:"AMTRON_TIMEOUT" env-default:"10s"`
	IntervalSeconds int           `env:"POLLING_INTERVAL_SECONDS" env-default:"60"`
}

type Server struct {
	Port int `env:"EXPORTER_PORT" env-default:"9877"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

// PollInterval returns the device polling interval.
func (d Device) PollInterval() time.Duration {
	return time.Duration(d.IntervalSeconds) * time.Second
}

// Load reads configuration from the environment, honoring a .env file when
// one is present. Missing required variables are a startup-fatal error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration from environment: %w", err)
	}

	if cfg.Device.IntervalSeconds <= 0 {
		return nil, fmt.Errorf("POLLING_INTERVAL_SECONDS must be positive, got %d", cfg.Device.IntervalSeconds)
	}

	return &cfg, nil
}
