package clientsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/tuanvumaihuynh/product-catalog/internal/model"
	"github.com/tuanvumaihuynh/product-catalog/pkg/localstore"
)

// FavoritesKey is the local store key holding the favorites set.
const FavoritesKey = "favorites"

// Favorites is the client-local set of favorite products, persisted as a
// whole on every change. Membership is by product id.
type Favorites struct {
	kv localstore.KV

	mu    sync.RWMutex
	items []model.Product
}

func NewFavorites(kv localstore.KV) *Favorites {
	return &Favorites{kv: kv, items: []model.Product{}}
}

// Load replaces the in-memory set with the persisted one. A missing key is
// an empty set.
func (f *Favorites) Load() error {
	data, err := f.kv.Get(FavoritesKey)
	if errors.Is(err, localstore.ErrNotFound) {
		f.mu.Lock()
		f.items = []model.Product{}
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read favorites: %w", err)
	}

	var items []model.Product
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode favorites: %w", err)
	}
	if items == nil {
		items = []model.Product{}
	}

	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
	return nil
}

// Toggle adds p when absent and removes it otherwise. It returns whether p is
// a favorite afterwards. When persisting fails the set is left unchanged.
func (f *Favorites) Toggle(p model.Product) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := slices.Clone(f.items)
	idx := slices.IndexFunc(next, func(item model.Product) bool { return item.ID == p.ID })
	if idx >= 0 {
		next = slices.Delete(next, idx, idx+1)
	} else {
		next = append(next, p)
	}

	data, err := json.Marshal(next)
	if err != nil {
		return idx >= 0, fmt.Errorf("encode favorites: %w", err)
	}
	if err := f.kv.Set(FavoritesKey, data); err != nil {
		return idx >= 0, fmt.Errorf("write favorites: %w", err)
	}

	f.items = next
	return idx < 0, nil
}

func (f *Favorites) IsFavorite(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.ContainsFunc(f.items, func(item model.Product) bool { return item.ID == id })
}

// List returns the favorites in the order they were added.
func (f *Favorites) List() []model.Product {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.items)
}

// FilterFavorites keeps the products that are in favorites, in product order.
func FilterFavorites(products, favorites []model.Product) []model.Product {
	ids := make(map[string]struct{}, len(favorites))
	for _, fav := range favorites {
		ids[fav.ID] = struct{}{}
	}

	out := make([]model.Product, 0, len(favorites))
	for _, p := range products {
		if _, ok := ids[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}
