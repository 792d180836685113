package config

import "time"

type Client struct {
	BaseURL       string        `env:"CATALOG_URL" envDefault:"http://localhost:8000"`
	Timeout       time.Duration `env:"CATALOG_TIMEOUT" envDefault:"10s"`
	FavoritesPath string        `env:"CATALOG_FAVORITES_PATH" envDefault:".catalog/local.json"`
}
