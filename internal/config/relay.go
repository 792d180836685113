package config

import "time"

// Relay configures the outbox relay. ProduceTimeout bounds each produce call;
// zero leaves it unbounded.
type Relay struct {
	Enabled        bool          `env:"RELAY_ENABLED" envDefault:"false"`
	BatchSize      uint32        `env:"RELAY_BATCH_SIZE" envDefault:"100"`
	Interval       time.Duration `env:"RELAY_INTERVAL" envDefault:"1s"`
	ProduceTimeout time.Duration `env:"RELAY_PRODUCE_TIMEOUT" envDefault:"10s"`
}
