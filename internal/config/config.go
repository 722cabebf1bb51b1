// Package config loads service configuration from the environment.
// A .env file, when present, is loaded by cmd/server before this runs.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	MinIO    MinIOConfig
	Auth     AuthConfig
	Enrich   EnrichConfig
	Health   HealthConfig
}

type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"APP_ENV" env-default:"development"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"postgres"`
	Password string `env:"DB_PASSWORD" env-default:"postgres"`
	Name     string `env:"DB_NAME" env-default:"scholarfinder"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type MinIOConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" env-default:"scholarfinder-manuscripts"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET" env-required:"true"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" env-default:"24h"`
}

type EnrichConfig struct {
	BaseURL    string        `env:"ENRICH_BASE_URL" env-default:"http://localhost:8000"`
	Timeout    time.Duration `env:"ENRICH_TIMEOUT" env-default:"120s"`
	MaxRetries uint          `env:"ENRICH_MAX_RETRIES" env-default:"3"`
}

type HealthConfig struct {
	PollInterval time.Duration `env:"HEALTH_POLL_INTERVAL" env-default:"30s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	return &cfg, nil
}
