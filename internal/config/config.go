package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort       string        `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL    string        `env:"DATABASE_URL,required,notEmpty"`
	LLMAPIKey      string        `env:"OPENAI_API_KEY"`
	LLMBaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"1000"`
	LLMTemperature float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	LockTTL        time.Duration `env:"LOCK_TTL" envDefault:"2m"`
	MetricsEnabled bool          `env:"METRICS_ENABLED" envDefault:"true"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UsesSQLite indica si DATABASE_URL apunta a un archivo SQLite (sqlite://ruta).
func (c *Config) UsesSQLite() bool {
	return strings.HasPrefix(c.DatabaseURL, sqliteScheme)
}

// SQLitePath devuelve la ruta del archivo SQLite sin el esquema.
func (c *Config) SQLitePath() string {
	if !c.UsesSQLite() {
		return ""
	}
	return strings.TrimPrefix(c.DatabaseURL, sqliteScheme)
}

const sqliteScheme = "sqlite://"
