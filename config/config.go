package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskdesk/pkg/config"
)

// Config is built once at startup and handed to every component by pointer.
// Nothing downstream reads the environment.
type Config struct {
	Server config.ServerConfig `yaml:"server"`
	DB     config.DBConfig     `yaml:"db"`
	JWT    config.JWTConfig    `yaml:"jwt"`
	Auth   config.AuthConfig   `yaml:"auth"`
	Redis  config.RedisConfig  `yaml:"redis"`
	MQ     config.MQConfig     `yaml:"mq"`
	Outbox config.OutboxConfig `yaml:"outbox"`
	Otel   config.OtelConfig   `yaml:"otel"`
}

var ErrMissingSecret = errors.New("jwt.secret must be set (config or JWT_SECRET)")

// Default returns the settings used when a key is absent from every layer.
func Default() Config {
	return Config{
		Server: config.ServerConfig{Port: ":3000", CORSOrigins: []string{"*"}},
		DB: config.DBConfig{
			Host:               "localhost",
			Port:               5432,
			User:               "postgres",
			Name:               "taskdesk",
			MaxConns:           10,
			SlowQueryThreshold: 100 * time.Millisecond,
		},
		Auth: config.AuthConfig{
			VerifyPassword:    true,
			MaxSigninFailures: 5,
			FailureWindow:     15 * time.Minute,
		},
		Redis: config.RedisConfig{
			UserCacheTTL: 30 * time.Second,
			GuardTTL:     10 * time.Second,
		},
		Outbox: config.OutboxConfig{
			Interval:   time.Second,
			BatchSize:  100,
			MaxRetries: 5,
		},
		Otel: config.OtelConfig{
			ServiceName:    "taskdesk-api",
			ServiceVersion: "dev",
			SampleRatio:    1,
		},
	}
}

// Load merges the YAML layers in configDir for env, applies environment
// overrides and validates the result.
func Load(env, configDir string) (*Config, error) {
	cfg := Default()

	layers, err := config.LoadLayers(env, configDir)
	if err != nil {
		return nil, err
	}
	if err := config.Decode(layers, &cfg); err != nil {
		return nil, err
	}

	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideOtelFromEnv(&cfg.Otel)

	// placeholders left without a secrets.env entry count as unset
	cfg.JWT.Secret = dropPlaceholder(cfg.JWT.Secret)
	cfg.DB.Password = dropPlaceholder(cfg.DB.Password)
	cfg.Redis.Password = dropPlaceholder(cfg.Redis.Password)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func dropPlaceholder(v string) string {
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return ""
	}
	return v
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return ErrMissingSecret
	}
	if c.JWT.TTL < 0 {
		return fmt.Errorf("jwt.ttl must not be negative, got %s", c.JWT.TTL)
	}
	if c.Server.Port == "" {
		return errors.New("server.port must be set")
	}
	if c.Otel.SampleRatio < 0 || c.Otel.SampleRatio > 1 {
		return fmt.Errorf("otel.sample_ratio must be within [0, 1], got %g", c.Otel.SampleRatio)
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox.batch_size must be positive, got %d", c.Outbox.BatchSize)
	}
	return nil
}
