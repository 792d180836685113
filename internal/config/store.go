package config

import (
	"fmt"
	"strings"
)

type Store struct {
	Backend StoreBackend `env:"STORE_BACKEND" envDefault:"FILE"`
	Path    string       `env:"STORE_PATH" envDefault:"data/db.json"`
}

// StoreBackend selects the catalog record store implementation.
type StoreBackend uint8

const (
	StoreBackendFile StoreBackend = iota
	StoreBackendPostgres
)

func (b StoreBackend) String() string {
	return []string{"FILE", "POSTGRES"}[b]
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (b *StoreBackend) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "FILE":
		*b = StoreBackendFile
	case "POSTGRES":
		*b = StoreBackendPostgres
	default:
		return fmt.Errorf("unknown store backend: %s", text)
	}
	return nil
}

func (b StoreBackend) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}
