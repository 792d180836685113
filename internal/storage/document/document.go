package document

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/product-catalog/internal/model"
)

// Document is the serialized catalog held in a single file.
type Document struct {
	Products []model.Product `json:"products"`
	// NextID is the next product id to hand out. It only ever grows.
	NextID uint64      `json:"next_id,omitempty"`
	Outbox []OutboxMsg `json:"outbox,omitempty"`
}

// OutboxMsg is a product change event waiting to be relayed.
type OutboxMsg struct {
	ID           uuid.UUID         `json:"id"`
	Topic        string            `json:"topic"`
	Headers      map[string]string `json:"headers,omitempty"`
	Payload      json.RawMessage   `json:"payload"`
	PartitionKey *string           `json:"partition_key,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	ProcessedAt  *time.Time        `json:"processed_at,omitempty"`
	Error        *string           `json:"error,omitempty"`
}

// AllocateID returns the next product id and advances the counter.
func (d *Document) AllocateID() string {
	if d.NextID == 0 {
		d.NextID = 1
	}
	id := d.NextID
	d.NextID++
	return strconv.FormatUint(id, 10)
}

// IndexOf returns the position of the product with the given id, or -1.
func (d *Document) IndexOf(id string) int {
	for i, p := range d.Products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// normalize makes sure NextID is ahead of every numeric id in the collection.
// Documents written before the counter existed derive it from their highest id.
func (d *Document) normalize() {
	if d.Products == nil {
		d.Products = []model.Product{}
	}

	var maxID uint64
	for _, p := range d.Products {
		n, err := strconv.ParseUint(p.ID, 10, 64)
		if err != nil {
			continue
		}
		maxID = max(maxID, n)
	}

	if d.NextID <= maxID {
		d.NextID = maxID + 1
	}
}

func (d Document) clone() Document {
	c := Document{
		NextID:   d.NextID,
		Products: make([]model.Product, len(d.Products)),
	}
	copy(c.Products, d.Products)

	if d.Outbox != nil {
		c.Outbox = make([]OutboxMsg, len(d.Outbox))
		copy(c.Outbox, d.Outbox)
	}

	return c
}
