package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config представляет конфигурацию приложения
type Config struct {
	// REST boundary
	API struct {
		BaseURL        string        `yaml:"base_url"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"api"`

	// Event channel
	Socket struct {
		URL              string        `yaml:"url"`
		BaseInterval     time.Duration `yaml:"base_interval"`
		MaxAttempts      int           `yaml:"max_attempts"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	} `yaml:"socket"`

	// Alert store
	Alerts struct {
		MaxEntries int `yaml:"max_entries"`
	} `yaml:"alerts"`

	// Logging
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Local simulator backend
	Simulator struct {
		Host           string        `yaml:"host"`
		Port           int           `yaml:"port"`
		AlertInterval  time.Duration `yaml:"alert_interval"`
		StatusInterval time.Duration `yaml:"status_interval"`
	} `yaml:"simulator"`
}

// LoadConfig загружает конфигурацию из файла
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// GetDefaultConfig возвращает конфигурацию по умолчанию
func GetDefaultConfig() *Config {
	cfg := &Config{}

	cfg.API.BaseURL = "http://localhost:3001/api/v1"
	cfg.API.RequestTimeout = 10 * time.Second

	cfg.Socket.URL = "ws://localhost:3001/ws"
	cfg.Socket.BaseInterval = time.Second
	cfg.Socket.MaxAttempts = 5
	cfg.Socket.HandshakeTimeout = 5 * time.Second

	cfg.Alerts.MaxEntries = 50

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Simulator.Host = "localhost"
	cfg.Simulator.Port = 3001
	cfg.Simulator.AlertInterval = 15 * time.Second
	cfg.Simulator.StatusInterval = 10 * time.Second

	return cfg
}

// GetRequestTimeout возвращает таймаут REST-запроса
func (c *Config) GetRequestTimeout() time.Duration {
	if c.API.RequestTimeout <= 0 {
		return 10 * time.Second
	}
	return c.API.RequestTimeout
}

// GetHandshakeTimeout возвращает таймаут установки канала
func (c *Config) GetHandshakeTimeout() time.Duration {
	if c.Socket.HandshakeTimeout <= 0 {
		return 5 * time.Second
	}
	return c.Socket.HandshakeTimeout
}

// GetBaseInterval возвращает базовый интервал backoff
func (c *Config) GetBaseInterval() time.Duration {
	if c.Socket.BaseInterval <= 0 {
		return time.Second
	}
	return c.Socket.BaseInterval
}

// GetMaxAttempts возвращает предел попыток переподключения
func (c *Config) GetMaxAttempts() int {
	if c.Socket.MaxAttempts <= 0 {
		return 5
	}
	return c.Socket.MaxAttempts
}

// GetMaxAlerts возвращает предел списка тревог в памяти
func (c *Config) GetMaxAlerts() int {
	if c.Alerts.MaxEntries <= 0 {
		return 50
	}
	return c.Alerts.MaxEntries
}
