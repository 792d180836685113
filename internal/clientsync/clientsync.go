// Package clientsync mirrors the remote catalog in client memory.
package clientsync

import (
	"context"
	"sync"

	"github.com/tuanvumaihuynh/product-catalog/internal/client"
	"github.com/tuanvumaihuynh/product-catalog/internal/model"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Remote is the subset of the catalog API the synchronization layer uses.
type Remote interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, error)
	CreateProduct(ctx context.Context, input client.ProductInput) (model.Product, error)
	UpdateProduct(ctx context.Context, id string, input client.ProductInput) (model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	UploadProduct(ctx context.Context, input client.UploadInput) (model.Product, error)
}

var _ Remote = (*client.Client)(nil)

// Notification is emitted once per failed mutation.
type Notification struct {
	Op  string
	Err error
}

type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// subscribers fans state changes out to registered callbacks.
type subscribers[S any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(S)
}

func (s *subscribers[S]) add(fn func(S)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fns == nil {
		s.fns = map[int]func(S){}
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscribers[S]) publish(state S) {
	s.mu.Lock()
	fns := make([]func(S), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
