package authorize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	cp "github.com/dropDatabas3/authgate/internal/controlplane"
)

// fakeStore implementa ConfigReader con respuestas programables y conteo de
// llamadas, para observar cache hits y colapso de lookups.
type fakeStore struct {
	mu    sync.Mutex
	regs  map[string]*cp.Registration
	err   error
	delay time.Duration
	calls int64
}

func (f *fakeStore) GetRegistration(ctx context.Context, tenant, provider string) (*cp.Registration, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	reg, ok := f.regs[tenant+"/"+provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", cp.ErrRegistrationNotFound, tenant, provider)
	}
	return reg.Clone(), nil
}

func (f *fakeStore) callCount() int64 { return atomic.LoadInt64(&f.calls) }

// mapCache es una cache.Cache mínima en memoria, sin TTL real.
type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string][]byte)} }

func (c *mapCache) Get(k string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[k]
	return v, ok
}

func (c *mapCache) Set(k string, v []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[k] = v
}

func (c *mapCache) Delete(k string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, k)
}

func googleReg() *cp.Registration {
	return &cp.Registration{
		ProviderID:          "google",
		ClientID:            "abc123",
		AuthorizationURI:    "https://idp.example.com/authorize",
		Scopes:              []string{"openid", "email"},
		RedirectURITemplate: cp.DefaultRedirectURITemplate,
	}
}

func TestRegistrationResolverCache(t *testing.T) {
	store := &fakeStore{regs: map[string]*cp.Registration{"acme/google": googleReg()}}
	rr := NewRegistrationResolver(RegistrationResolverConfig{
		Store: store,
		Cache: newMapCache(),
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		reg, err := rr.Resolve(ctx, "acme", "google")
		if err != nil {
			t.Fatalf("Resolve #%d: %v", i, err)
		}
		if reg.ClientID != "abc123" {
			t.Fatalf("ClientID = %q", reg.ClientID)
		}
	}
	if n := store.callCount(); n != 1 {
		t.Fatalf("el store recibió %d llamadas, esperaba 1 (cache read-through)", n)
	}

	// Invalidate fuerza releer del store en el próximo Resolve.
	rr.Invalidate("acme", "google")
	if _, err := rr.Resolve(ctx, "acme", "google"); err != nil {
		t.Fatalf("Resolve post-invalidate: %v", err)
	}
	if n := store.callCount(); n != 2 {
		t.Fatalf("el store recibió %d llamadas tras Invalidate, esperaba 2", n)
	}
}

func TestRegistrationResolverNotFound(t *testing.T) {
	store := &fakeStore{regs: map[string]*cp.Registration{}}
	rr := NewRegistrationResolver(RegistrationResolverConfig{Store: store})

	_, err := rr.Resolve(context.Background(), "acme", "github")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("err = %v, esperaba ErrUnknownProvider", err)
	}
}

func TestRegistrationResolverStoreCaido(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("%w: conexión rechazada", cp.ErrStoreUnavailable)}
	rr := NewRegistrationResolver(RegistrationResolverConfig{Store: store})

	_, err := rr.Resolve(context.Background(), "acme", "google")
	if !errors.Is(err, ErrConfigUnavailable) {
		t.Fatalf("err = %v, esperaba ErrConfigUnavailable", err)
	}
}

func TestRegistrationResolverTimeout(t *testing.T) {
	store := &fakeStore{
		regs:  map[string]*cp.Registration{"acme/google": googleReg()},
		delay: 200 * time.Millisecond,
	}
	rr := NewRegistrationResolver(RegistrationResolverConfig{
		Store:         store,
		LookupTimeout: 20 * time.Millisecond,
	})

	_, err := rr.Resolve(context.Background(), "acme", "google")
	if !errors.Is(err, ErrConfigUnavailable) {
		t.Fatalf("err = %v, esperaba ErrConfigUnavailable por timeout", err)
	}
}

func TestRegistrationResolverSingleflight(t *testing.T) {
	store := &fakeStore{
		regs:  map[string]*cp.Registration{"acme/google": googleReg()},
		delay: 50 * time.Millisecond,
	}
	rr := NewRegistrationResolver(RegistrationResolverConfig{Store: store})

	const goroutines = 16
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rr.Resolve(context.Background(), "acme", "google")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Resolve concurrente: %v", err)
		}
	}
	if n := store.callCount(); n != 1 {
		t.Fatalf("el store recibió %d llamadas, esperaba 1 (singleflight)", n)
	}
}
