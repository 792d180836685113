package config

import "time"

// Kafka is only required when change events are enabled.
type Kafka struct {
	Addresses       []string      `env:"KAFKA_ADDRESSES" envSeparator:","`
	Group           string        `env:"KAFKA_GROUP" envDefault:"product-catalog"`
	DeliveryTimeout time.Duration `env:"KAFKA_DELIVERY_TIMEOUT" envDefault:"30s"`
}
