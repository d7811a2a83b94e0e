// Package authorize contiene el interceptor HTTP de inicios de autorización.
package authorize

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	core "github.com/dropDatabas3/authgate/internal/authorize"
	httperrors "github.com/dropDatabas3/authgate/internal/http/errors"
	mw "github.com/dropDatabas3/authgate/internal/http/middlewares"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	"github.com/dropDatabas3/authgate/internal/observability/metrics"
	"github.com/dropDatabas3/authgate/internal/statestore"
	"github.com/dropDatabas3/authgate/internal/util"
)

const defaultStateTTL = 5 * time.Minute

// Deps agrupa las dependencias del controller.
type Deps struct {
	Matcher  *core.Matcher
	Resolver *core.Resolver
	Builder  *core.RedirectURIBuilder
	States   statestore.Store
	StateTTL time.Duration
}

// Controller intercepta requests cuyo path es un inicio de autorización y los
// convierte en un 302 hacia el provider. Los demás paths pasan al siguiente
// handler sin tocarse.
type Controller struct {
	matcher  *core.Matcher
	resolver *core.Resolver
	builder  *core.RedirectURIBuilder
	states   statestore.Store
	stateTTL time.Duration
}

func NewController(d Deps) *Controller {
	ttl := d.StateTTL
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &Controller{
		matcher:  d.Matcher,
		resolver: d.Resolver,
		builder:  d.Builder,
		states:   d.States,
		stateTTL: ttl,
	}
}

// Intercept es el middleware de intercepción. Se monta por encima del router
// normal: un path que no matchea sigue su curso.
func (c *Controller) Intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := c.matcher.Match(r.URL.EscapedPath()); !ok {
			next.ServeHTTP(w, r)
			return
		}
		c.handle(w, r)
	})
}

func (c *Controller) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("Authorize"))
	start := time.Now()

	metrics.AuthorizeInFlight.Inc()
	defer metrics.AuthorizeInFlight.Dec()

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	tenantID := mw.GetTenant(ctx)
	if tenantID == "" {
		httperrors.WriteError(w, httperrors.ErrTenantRequired)
		return
	}

	req, err := c.resolver.Resolve(ctx, core.ResolutionContext{
		Path:     r.URL.EscapedPath(),
		TenantID: tenantID,
		BaseURL:  c.builder.BaseURL(r),
	})
	if err != nil {
		c.writeResolveError(w, log, err)
		return
	}
	if req == nil {
		// El matcher del controller ya aceptó el path; un no-match acá
		// no debería ocurrir.
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}

	entry := statestore.Entry{
		TenantID:     req.TenantID,
		ProviderID:   req.ProviderID,
		RedirectURI:  req.RedirectURI,
		CodeVerifier: req.CodeVerifier,
		CreatedAt:    time.Now().UTC(),
	}
	if err := c.states.Put(ctx, req.State, entry, c.stateTTL); err != nil {
		log.Error("persistencia de state falló", logger.Err(err))
		metrics.AuthorizeRequests.WithLabelValues("state_error").Inc()
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithCause(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	http.Redirect(w, r, req.AuthorizationURI, http.StatusFound)

	metrics.AuthorizeRequests.WithLabelValues("redirected").Inc()
	metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	log.Info("authorization request resuelto",
		logger.TenantID(req.TenantID),
		logger.Provider(req.ProviderID),
		logger.ClientID(util.Mask(req.ClientID)),
		logger.RedirectURI(req.RedirectURI),
		logger.Bool("pkce", req.UsesPKCE()),
	)
}

func (c *Controller) writeResolveError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownProvider):
		metrics.AuthorizeRequests.WithLabelValues("unknown_provider").Inc()
		log.Warn("provider desconocido", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrProviderUnknown)
	case errors.Is(err, core.ErrConfigUnavailable):
		metrics.AuthorizeRequests.WithLabelValues("config_unavailable").Inc()
		log.Warn("control plane no disponible", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrConfigUnavailable)
	case errors.Is(err, core.ErrMisconfiguredProvider):
		metrics.AuthorizeRequests.WithLabelValues("misconfigured").Inc()
		log.Error("registration mal configurada", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrProviderMisconfigured)
	case errors.Is(err, core.ErrInvalidState):
		metrics.AuthorizeRequests.WithLabelValues("state_error").Inc()
		log.Error("generación de state falló", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	default:
		metrics.AuthorizeRequests.WithLabelValues("state_error").Inc()
		log.Error("resolución falló", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
