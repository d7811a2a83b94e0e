package authorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/authgate/internal/cache"
	cp "github.com/dropDatabas3/authgate/internal/controlplane"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	"github.com/dropDatabas3/authgate/internal/observability/metrics"
)

// ConfigReader es la porción del control plane que la resolución necesita:
// lookup de una registration por (tenant, provider). Los stores fs y pg la
// satisfacen; los tests la sustituyen con fakes.
type ConfigReader interface {
	GetRegistration(ctx context.Context, tenantSlug, providerID string) (*cp.Registration, error)
}

const (
	defaultLookupTimeout = 3 * time.Second
	defaultCacheTTL      = 30 * time.Second
)

// RegistrationResolverConfig agrupa las dependencias del resolver.
type RegistrationResolverConfig struct {
	Store ConfigReader
	// Cache opcional. Las entradas guardan el secret solo cifrado
	// (SecretEnc); el plaintext nunca toca la cache.
	Cache         cache.Cache
	CacheTTL      time.Duration
	LookupTimeout time.Duration
}

// RegistrationResolver resuelve registrations contra el control plane con
// cache read-through y colapso de lookups concurrentes (singleflight): N
// requests simultáneos del mismo (tenant, provider) producen un solo hit al
// store.
type RegistrationResolver struct {
	store    ConfigReader
	cache    cache.Cache
	cacheTTL time.Duration
	timeout  time.Duration
	sf       singleflight.Group
}

func NewRegistrationResolver(cfg RegistrationResolverConfig) *RegistrationResolver {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &RegistrationResolver{
		store:    cfg.Store,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		timeout:  cfg.LookupTimeout,
	}
}

// Resolve busca la registration (tenant, provider). Clasifica las fallas del
// store en la taxonomía del package: not-found → ErrUnknownProvider,
// timeout/caída → ErrConfigUnavailable.
func (r *RegistrationResolver) Resolve(ctx context.Context, tenantID, providerID string) (*cp.Registration, error) {
	key := cacheKey(tenantID, providerID)

	if r.cache != nil {
		if raw, ok := r.cache.Get(key); ok {
			var reg cp.Registration
			if err := json.Unmarshal(raw, &reg); err == nil {
				metrics.RegistrationLookups.WithLabelValues("hit").Inc()
				return &reg, nil
			}
			// Entrada corrupta: se descarta y se va al store.
			r.cache.Delete(key)
		}
	}

	// singleflight con contexto propio: el timeout del lookup no hereda la
	// cancelación del primer caller, así un caller que abandona no tumba a
	// los demás colapsados en el mismo vuelo.
	ch := r.sf.DoChan(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.lookup(lookupCtx, tenantID, providerID, key)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrConfigUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		reg := res.Val.(*cp.Registration)
		if res.Shared {
			// Copia defensiva: cada caller recibe su propia instancia.
			return reg.Clone(), nil
		}
		return reg, nil
	}
}

func (r *RegistrationResolver) lookup(ctx context.Context, tenantID, providerID, key string) (*cp.Registration, error) {
	reg, err := r.store.GetRegistration(ctx, tenantID, providerID)
	if err != nil {
		switch {
		case errors.Is(err, cp.ErrRegistrationNotFound), errors.Is(err, cp.ErrTenantNotFound):
			metrics.RegistrationLookups.WithLabelValues("not_found").Inc()
			return nil, fmt.Errorf("%w: %s/%s", ErrUnknownProvider, tenantID, providerID)
		default:
			metrics.RegistrationLookups.WithLabelValues("error").Inc()
			logger.Named("authorize").Warn("lookup de registration falló",
				logger.TenantID(tenantID), logger.Provider(providerID), logger.Err(err))
			return nil, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
		}
	}

	metrics.RegistrationLookups.WithLabelValues("store").Inc()
	if r.cache != nil {
		if raw, mErr := json.Marshal(reg); mErr == nil {
			r.cache.Set(key, raw, r.cacheTTL)
		}
	}
	return reg, nil
}

// Invalidate purga la entrada cacheada de (tenant, provider). El admin API la
// llama en cada upsert/delete para que una rotación de credenciales sea
// visible de inmediato, sin esperar el TTL.
func (r *RegistrationResolver) Invalidate(tenantID, providerID string) {
	if r.cache != nil {
		r.cache.Delete(cacheKey(tenantID, providerID))
	}
}

func cacheKey(tenantID, providerID string) string {
	return "reg:" + tenantID + ":" + providerID
}
