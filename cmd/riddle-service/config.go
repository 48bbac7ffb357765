package main

import (
	"fmt"
	"os"
	"time"

	"riddlehub/internal/common/cache"
	"riddlehub/internal/common/db"
	"riddlehub/internal/common/mq"
	"riddlehub/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultRiddleAnswer = "It is 42"

	driverMySQL  = "mysql"
	driverSQLite = "sqlite"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	// Driver is "mysql" or "sqlite".
	Driver string          `yaml:"driver"`
	MySQL  db.MySQLConfig  `yaml:"mysql"`
	SQLite db.SQLiteConfig `yaml:"sqlite"`
}

// AuthConfig holds credential extraction settings.
type AuthConfig struct {
	DirectBearer bool   `yaml:"directBearer"`
	JWTSecret    string `yaml:"jwtSecret"`
	JWTIssuer    string `yaml:"jwtIssuer"`
}

// CleanupConfig holds answered-record cleanup settings.
type CleanupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Topic         string `yaml:"topic"`
	ConsumerGroup string `yaml:"consumerGroup"`
}

// ProblemConfig holds problem domain settings.
type ProblemConfig struct {
	// RiddleAnswer is the canonical answer all riddle problems share.
	RiddleAnswer string `yaml:"riddleAnswer"`
}

// AppConfig holds the riddle-service configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Logger  logger.Config `yaml:"logger"`
	Auth    AuthConfig    `yaml:"auth"`
	Problem ProblemConfig `yaml:"problem"`

	Database DatabaseConfig    `yaml:"database"`
	Redis    cache.RedisConfig `yaml:"redis"`
	Kafka    mq.KafkaConfig    `yaml:"kafka"`
	Cleanup  CleanupConfig     `yaml:"cleanup"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}

	switch cfg.Database.Driver {
	case driverMySQL:
		if cfg.Database.MySQL.DSN == "" {
			return nil, fmt.Errorf("database mysql dsn is required")
		}
	case driverSQLite:
		if cfg.Database.SQLite.Path == "" {
			return nil, fmt.Errorf("database sqlite path is required")
		}
	case "":
		return nil, fmt.Errorf("database driver is required")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	if cfg.Auth.DirectBearer && cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth jwt secret is required when direct bearer is enabled")
	}

	if cfg.Problem.RiddleAnswer == "" {
		cfg.Problem.RiddleAnswer = defaultRiddleAnswer
	}

	if cfg.Cleanup.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("kafka brokers are required when cleanup is enabled")
		}
		if cfg.Cleanup.Topic == "" {
			return nil, fmt.Errorf("cleanup topic is required when cleanup is enabled")
		}
		if cfg.Cleanup.ConsumerGroup == "" {
			cfg.Cleanup.ConsumerGroup = "riddle-service-cleanup"
		}
	}

	applyRedisDefaults(&cfg.Redis)

	return &cfg, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil || cfg.Addr == "" {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}
