// Package config содержит логику чтения конфигурации сервиса f1bet.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса f1bet.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	OpenF1Address  string `env:"OPENF1_ADDRESS"`
	RedisAddress   string `env:"REDIS_ADDRESS"`
	MetricsAddress string `env:"METRICS_ADDRESS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envOpenF1Address := cfg.OpenF1Address
	envRedisAddress := cfg.RedisAddress
	envMetricsAddress := cfg.MetricsAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.OpenF1Address, "f", "https://api.openf1.org/v1", "OpenF1 API base address")
	flag.StringVar(&cfg.RedisAddress, "c", "", "redis address for session result cache")
	flag.StringVar(&cfg.MetricsAddress, "m", "", "address and port for metrics server")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envOpenF1Address != "" {
		cfg.OpenF1Address = envOpenF1Address
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}
	if envMetricsAddress != "" {
		cfg.MetricsAddress = envMetricsAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
