package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is read from the environment.
type Config struct {
	Addr     string `env:"HARVEST_ADDR" envDefault:":8000"`
	DevMode  bool   `env:"DEV_MODE"`
	MySQLDSN string `env:"MYSQL_DSN"`
	TiDBCA   string `env:"TIDB_CA" envDefault:"/etc/ssl/certs/ca-certificates.crt"`
	DBPath   string `env:"HARVEST_DB_PATH" envDefault:"harvest.db"`

	CloudinaryURL string `env:"CLOUDINARY_URL"`
	AdminPassword string `env:"HARVEST_ADMIN_PASSWORD" envDefault:"admin"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	LegacyAPIKey string `env:"API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`

	FormsEndpoint string `env:"HARVEST_FORMS_ENDPOINT" envDefault:"https://api.web3forms.com/submit"`
	FormsKey      string `env:"HARVEST_FORMS_KEY"`
}

// loadConfig parses the environment into a Config.
func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// AssistantKey prefers GEMINI_API_KEY and falls back to API_KEY.
func (c Config) AssistantKey() string {
	if c.GeminiAPIKey != "" {
		return c.GeminiAPIKey
	}
	return c.LegacyAPIKey
}
