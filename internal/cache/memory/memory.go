package memory

import (
	"time"

	"github.com/dropDatabas3/authgate/internal/cache"
	gocache "github.com/patrickmn/go-cache"
)

type Mem struct {
	c      *gocache.Cache
	prefix string
}

// New crea un cache en memoria con TTL por defecto.
func New(defaultTTL time.Duration, prefix string) cache.Cache {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	return &Mem{c: gocache.New(defaultTTL, time.Minute), prefix: prefix}
}

func (m *Mem) Get(k string) ([]byte, bool) {
	v, ok := m.c.Get(m.prefix + k)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	return b, true
}

func (m *Mem) Set(k string, v []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(m.prefix+k, v, ttl)
}

func (m *Mem) Delete(k string) { m.c.Delete(m.prefix + k) }
