// Package config loads the process settings from the environment, with an
// optional .env file in the working directory.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/telemetry"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8431"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	// NodeID seeds the snowflake generator; it must differ per replica.
	NodeID     int64 `env:"NODE_ID" envDefault:"1"`
	BcryptCost int   `env:"BCRYPT_COST" envDefault:"12"`

	JWT       JWTConfig        `envPrefix:"JWT_"`
	Redis     RedisConfig      `envPrefix:"REDIS_"`
	Quota     QuotaConfig      `envPrefix:"QUOTA_"`
	RateLimit RateLimitConfig  `envPrefix:"RATE_LIMIT_"`
	Tracing   telemetry.Config `envPrefix:"TRACING_"`
}

type JWTConfig struct {
	Secret   string        `env:"SECRET"`
	Issuer   string        `env:"ISSUER" envDefault:"service-events-go"`
	Audience string        `env:"AUDIENCE" envDefault:"events-api"`
	TTL      time.Duration `env:"TTL" envDefault:"2h"`
}

// RedisConfig enables the usage quota when Addr is set.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type QuotaConfig struct {
	Limit  int           `env:"LIMIT" envDefault:"1000"`
	Window time.Duration `env:"WINDOW" envDefault:"24h"`
}

type RateLimitConfig struct {
	RPS     float64       `env:"RPS" envDefault:"20"`
	Burst   int           `env:"BURST" envDefault:"40"`
	IdleTTL time.Duration `env:"IDLE_TTL" envDefault:"10m"`
}

// Load reads .env on a best-effort basis and then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config env: %w", err)
	}
	return cfg, nil
}
