package orders

import (
	"context"
	"fmt"
	"sync"
)

// OpenFunc connects to a structured store. The returned close func releases
// it and may be nil.
type OpenFunc func(ctx context.Context) (Writable, func() error, error)

// ReopeningStore defers connecting until the first call and keeps retrying on
// later calls while the backend is unreachable, so a database that is down at
// boot is picked up once it comes back. Calls made before a successful open
// fail with ErrUnavailable.
type ReopeningStore struct {
	name string
	open OpenFunc

	mu      sync.Mutex
	store   Writable
	closeFn func() error
}

// NewReopeningStore returns a store named name that connects through open.
func NewReopeningStore(name string, open OpenFunc) *ReopeningStore {
	return &ReopeningStore{name: name, open: open}
}

func (s *ReopeningStore) Name() string { return s.name }

func (s *ReopeningStore) get(ctx context.Context) (Writable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		return s.store, nil
	}
	store, closeFn, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s store: %v", ErrUnavailable, s.name, err)
	}
	s.store, s.closeFn = store, closeFn
	return store, nil
}

func (s *ReopeningStore) ListAll(ctx context.Context) ([]Order, error) {
	store, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	return store.ListAll(ctx)
}

func (s *ReopeningStore) FindByID(ctx context.Context, id string) (*Order, error) {
	store, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	return store.FindByID(ctx, id)
}

func (s *ReopeningStore) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	store, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	return store.UpdateStatus(ctx, id, status)
}

func (s *ReopeningStore) Delete(ctx context.Context, id string) error {
	store, err := s.get(ctx)
	if err != nil {
		return err
	}
	return store.Delete(ctx, id)
}

func (s *ReopeningStore) Create(ctx context.Context, o Order) error {
	store, err := s.get(ctx)
	if err != nil {
		return err
	}
	return store.Create(ctx, o)
}

// Close releases the connection if one was opened.
func (s *ReopeningStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeFn == nil {
		return nil
	}
	err := s.closeFn()
	s.store, s.closeFn = nil, nil
	return err
}
