package redis

import (
	"context"
	"time"

	"github.com/dropDatabas3/authgate/internal/cache"
	rdb "github.com/redis/go-redis/v9"
)

type Cache struct {
	c      *rdb.Client
	prefix string
}

// New crea un cache respaldado por Redis.
func New(addr string, db int, prefix string) cache.Cache {
	return &Cache{c: rdb.NewClient(&rdb.Options{Addr: addr, DB: db}), prefix: prefix}
}

// NewFromClient reutiliza un cliente Redis existente (state store + cache
// comparten conexión en deployments chicos).
func NewFromClient(c *rdb.Client, prefix string) cache.Cache {
	return &Cache{c: c, prefix: prefix}
}

func (r *Cache) Get(k string) ([]byte, bool) {
	b, err := r.c.Get(context.Background(), r.prefix+k).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *Cache) Set(k string, v []byte, ttl time.Duration) {
	_ = r.c.Set(context.Background(), r.prefix+k, v, ttl).Err()
}

func (r *Cache) Delete(k string) { _ = r.c.Del(context.Background(), r.prefix+k).Err() }
