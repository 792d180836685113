package config

type Assets struct {
	Dir           string `env:"ASSETS_DIR" envDefault:"data/uploads"`
	PublicBaseURL string `env:"ASSETS_PUBLIC_BASE_URL" envDefault:"http://localhost:8000"`
	MaxBytes      int64  `env:"ASSETS_MAX_BYTES" envDefault:"5242880"`
	SniffContent  bool   `env:"ASSETS_SNIFF_CONTENT" envDefault:"true"`
}
