// Package redis implementa statestore.Store sobre Redis, para despliegues con
// varias réplicas: cualquier instancia puede atender el callback sin importar
// cuál emitió el state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/authgate/internal/statestore"
)

const keyPrefix = "authgate:state:"

type Store struct {
	c *rdb.Client
}

func New(addr string, db int) *Store {
	return &Store{c: rdb.NewClient(&rdb.Options{Addr: addr, DB: db})}
}

// NewFromClient reutiliza un cliente ya configurado (pooling compartido).
func NewFromClient(c *rdb.Client) *Store {
	return &Store{c: c}
}

func (s *Store) Put(ctx context.Context, state string, e statestore.Entry, ttl time.Duration) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("statestore redis: marshal: %w", err)
	}
	if err := s.c.Set(ctx, keyPrefix+state, raw, ttl).Err(); err != nil {
		return fmt.Errorf("statestore redis: set: %w", err)
	}
	return nil
}

// Consume usa GETDEL: lectura y borrado en una sola operación atómica del
// lado del server, así el one-shot se sostiene entre réplicas.
func (s *Store) Consume(ctx context.Context, state string) (statestore.Entry, error) {
	raw, err := s.c.GetDel(ctx, keyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, rdb.Nil) {
			return statestore.Entry{}, statestore.ErrNotFound
		}
		return statestore.Entry{}, fmt.Errorf("statestore redis: getdel: %w", err)
	}
	var e statestore.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return statestore.Entry{}, fmt.Errorf("statestore redis: unmarshal: %w", err)
	}
	return e, nil
}

// Ping verifica conectividad al arranque.
func (s *Store) Ping(ctx context.Context) error {
	return s.c.Ping(ctx).Err()
}
