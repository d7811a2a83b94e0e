// Package memory implementa statestore.Store en memoria de proceso. Sirve
// para single-instance y tests; con múltiples réplicas detrás de un LB se usa
// el driver redis.
package memory

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/authgate/internal/statestore"
)

const cleanupInterval = time.Minute

type Store struct {
	// mu serializa Consume: go-cache no tiene get-and-delete atómico.
	mu sync.Mutex
	c  *gocache.Cache
}

func New(defaultTTL time.Duration) *Store {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Store{c: gocache.New(defaultTTL, cleanupInterval)}
}

func (s *Store) Put(_ context.Context, state string, e statestore.Entry, ttl time.Duration) error {
	s.c.Set(state, e, ttl)
	return nil
}

func (s *Store) Consume(_ context.Context, state string) (statestore.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.c.Get(state)
	if !ok {
		return statestore.Entry{}, statestore.ErrNotFound
	}
	s.c.Delete(state)
	return v.(statestore.Entry), nil
}
