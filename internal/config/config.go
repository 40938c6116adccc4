// Package config loads service settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/local.yaml"

type Config struct {
	Env       string    `yaml:"env" env:"ENV" env-default:"local"`
	Log       Log       `yaml:"log"`
	HTTP      HTTP      `yaml:"http"`
	GRPC      GRPC      `yaml:"grpc"`
	MySQL     MySQL     `yaml:"mysql"`
	Redis     Redis     `yaml:"redis"`
	Admission Admission `yaml:"admission"`
	Orders    Orders    `yaml:"orders"`
	Workers   Workers   `yaml:"workers"`
	Tracing   Tracing   `yaml:"tracing"`
	Seed      []Product `yaml:"seed"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":8080"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"5s"`
}

type GRPC struct {
	Port string `yaml:"port" env:"GRPC_PORT" env-default:":50051"`
}

// MySQL is the order archive. An empty DSN disables archiving.
type MySQL struct {
	DSN             string        `yaml:"dsn" env:"MYSQL_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env-default:"50"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env-default:"25"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env-default:"5m"`
}

// Redis is the inventory mirror. An empty address disables mirroring.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	PoolSize int    `yaml:"pool_size" env-default:"100"`
}

type Admission struct {
	Limit   int           `yaml:"limit" env:"ADMISSION_LIMIT" env-default:"1"`
	Timeout time.Duration `yaml:"timeout" env:"ADMISSION_TIMEOUT" env-default:"2s"`
}

type Orders struct {
	MaxLines  int `yaml:"max_lines" env:"ORDERS_MAX_LINES" env-default:"10"`
	QueueSize int `yaml:"queue_size" env:"ORDERS_QUEUE_SIZE" env-default:"10000"`
}

type Workers struct {
	Count       int           `yaml:"count" env:"WORKER_COUNT" env-default:"10"`
	SinkTimeout time.Duration `yaml:"sink_timeout" env-default:"5s"`
}

type Tracing struct {
	Enabled bool `yaml:"enabled" env:"TRACING_ENABLED" env-default:"false"`
}

type Product struct {
	Name     string  `yaml:"name"`
	Price    float64 `yaml:"price"`
	Quantity int     `yaml:"quantity"`
}

// Load reads path when it exists and the environment otherwise.
func Load(path string) (*Config, error) {
	var cfg Config

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	default:
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	return &cfg, nil
}

// MustLoad loads from CONFIG_PATH, falling back to ./config/local.yaml, and
// panics on failure.
func MustLoad() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
