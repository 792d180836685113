package clientsync

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tuanvumaihuynh/product-catalog/internal/model"
)

// SingleState is a snapshot of one mirrored product.
type SingleState struct {
	Status  Status
	ID      string
	Product *model.Product
	Err     error
}

// Single mirrors one product, as shown by a detail view.
type Single struct {
	remote Remote
	group  singleflight.Group
	subs   subscribers[SingleState]

	mu    sync.RWMutex
	state SingleState
}

func NewSingle(remote Remote) *Single {
	return &Single{
		remote: remote,
		state:  SingleState{Status: StatusIdle},
	}
}

func (s *Single) State() SingleState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Single) Subscribe(fn func(SingleState)) (unsubscribe func()) {
	return s.subs.add(fn)
}

// FetchOne loads the product with the given id. A response for an id that is
// no longer the requested one is dropped.
func (s *Single) FetchOne(ctx context.Context, id string) error {
	s.set(func(st *SingleState) {
		if st.ID != id {
			st.Product = nil
		}
		st.ID = id
		st.Status = StatusLoading
		st.Err = nil
	})

	v, err, _ := s.group.Do("get:"+id, func() (any, error) {
		return s.remote.GetProduct(ctx, id)
	})

	s.set(func(st *SingleState) {
		if st.ID != id {
			return
		}
		if err != nil {
			st.Status = StatusFailed
			st.Err = err
			return
		}
		product := v.(model.Product)
		st.Status = StatusReady
		st.Product = &product
		st.Err = nil
	})

	if err != nil {
		return fmt.Errorf("fetch product %s: %w", id, err)
	}
	return nil
}

func (s *Single) set(fn func(*SingleState)) {
	s.mu.Lock()
	next := s.snapshotLocked()
	fn(&next)
	s.state = next
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.subs.publish(snapshot)
}

func (s *Single) snapshotLocked() SingleState {
	st := s.state
	if st.Product != nil {
		p := *st.Product
		st.Product = &p
	}
	return st
}
