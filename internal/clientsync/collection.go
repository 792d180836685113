package clientsync

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tuanvumaihuynh/product-catalog/internal/client"
	"github.com/tuanvumaihuynh/product-catalog/internal/model"
)

const listKey = "list"

// CollectionState is a snapshot of the mirrored product list.
type CollectionState struct {
	Status   Status
	Products []model.Product
	Err      error
}

// Collection mirrors the whole product list. Failed operations keep the last
// good products and record the error.
type Collection struct {
	remote   Remote
	notifier Notifier
	group    singleflight.Group
	subs     subscribers[CollectionState]

	mu    sync.RWMutex
	state CollectionState
}

func NewCollection(remote Remote, notifier Notifier) *Collection {
	return &Collection{
		remote:   remote,
		notifier: notifier,
		state:    CollectionState{Status: StatusIdle, Products: []model.Product{}},
	}
}

// State returns a copy of the current state.
func (c *Collection) State() CollectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to be called after every state change.
func (c *Collection) Subscribe(fn func(CollectionState)) (unsubscribe func()) {
	return c.subs.add(fn)
}

// FetchAll replaces the cached list with the remote one. Concurrent calls
// share a single request.
func (c *Collection) FetchAll(ctx context.Context) error {
	_, err, _ := c.group.Do(listKey, func() (any, error) {
		c.set(func(s *CollectionState) {
			s.Status = StatusLoading
			s.Err = nil
		})

		products, err := c.remote.ListProducts(ctx)
		if err != nil {
			c.set(func(s *CollectionState) {
				s.Status = StatusFailed
				s.Err = err
			})
			return nil, err
		}

		c.set(func(s *CollectionState) {
			s.Status = StatusReady
			s.Products = slices.Clone(products)
			s.Err = nil
		})
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("fetch products: %w", err)
	}
	return nil
}

// Create adds a product whose image was uploaded before.
func (c *Collection) Create(ctx context.Context, input client.ProductInput) (model.Product, error) {
	product, err := c.remote.CreateProduct(ctx, input)
	if err != nil {
		return model.Product{}, c.fail("create", err)
	}

	c.set(func(s *CollectionState) {
		s.Products = append(s.Products, product)
		s.Err = nil
	})
	return product, nil
}

// Upload sends an image with its product fields and appends the created product.
func (c *Collection) Upload(ctx context.Context, input client.UploadInput) (model.Product, error) {
	product, err := c.remote.UploadProduct(ctx, input)
	if err != nil {
		return model.Product{}, c.fail("upload", err)
	}

	c.set(func(s *CollectionState) {
		s.Products = append(s.Products, product)
		s.Err = nil
	})
	return product, nil
}

func (c *Collection) Update(ctx context.Context, id string, input client.ProductInput) (model.Product, error) {
	product, err := c.remote.UpdateProduct(ctx, id, input)
	if err != nil {
		return model.Product{}, c.fail("update", err)
	}

	c.set(func(s *CollectionState) {
		if i := slices.IndexFunc(s.Products, func(p model.Product) bool { return p.ID == id }); i >= 0 {
			s.Products[i] = product
		}
		s.Err = nil
	})
	return product, nil
}

func (c *Collection) Delete(ctx context.Context, id string) error {
	if err := c.remote.DeleteProduct(ctx, id); err != nil {
		return c.fail("delete", err)
	}

	c.set(func(s *CollectionState) {
		s.Products = slices.DeleteFunc(s.Products, func(p model.Product) bool { return p.ID == id })
		s.Err = nil
	})
	return nil
}

func (c *Collection) fail(op string, err error) error {
	c.set(func(s *CollectionState) {
		s.Err = err
	})
	if c.notifier != nil {
		c.notifier.Notify(Notification{Op: op, Err: err})
	}
	return fmt.Errorf("%s product: %w", op, err)
}

// set applies fn to a private copy of the state, swaps it in and notifies
// subscribers outside the lock.
func (c *Collection) set(fn func(*CollectionState)) {
	c.mu.Lock()
	next := c.snapshotLocked()
	fn(&next)
	c.state = next
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.subs.publish(snapshot)
}

func (c *Collection) snapshotLocked() CollectionState {
	s := c.state
	s.Products = slices.Clone(s.Products)
	if s.Products == nil {
		s.Products = []model.Product{}
	}
	return s
}
