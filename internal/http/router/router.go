// Package router arma el http.Handler completo del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	admctrl "github.com/dropDatabas3/authgate/internal/http/controllers/admin"
	authzctrl "github.com/dropDatabas3/authgate/internal/http/controllers/authorize"
	cbctrl "github.com/dropDatabas3/authgate/internal/http/controllers/callback"
	healthctrl "github.com/dropDatabas3/authgate/internal/http/controllers/health"
	provctrl "github.com/dropDatabas3/authgate/internal/http/controllers/providers"
	httperrors "github.com/dropDatabas3/authgate/internal/http/errors"
	mw "github.com/dropDatabas3/authgate/internal/http/middlewares"
	"github.com/dropDatabas3/authgate/internal/observability/metrics"
	"github.com/dropDatabas3/authgate/internal/rate"
)

// Deps agrupa todos los controllers y middlewares del router.
type Deps struct {
	Authorize *authzctrl.Controller
	Callback  *cbctrl.Controller
	Providers *provctrl.Controller
	Admin     *admctrl.RegistrationsController
	Health    *healthctrl.Controller

	// TenantResolver opcional; nil usa la cadena por defecto
	// (header -> query -> subdominio).
	TenantResolver mw.TenantResolver
	// Limiter opcional; nil deshabilita el rate limiting.
	Limiter rate.Limiter
}

// New construye el handler raíz. El interceptor de autorización envuelve al
// router: cualquier path que matchee el pattern se resuelve ahí y el resto
// sigue hacia las rutas registradas.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", d.Health.Handle)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/oauth2/providers", d.Providers.List)
	r.Get("/login/oauth2/code/{providerId}", d.Callback.Handle)

	r.Route("/v1/admin/tenants/{tenant}/registrations", func(r chi.Router) {
		r.Get("/", d.Admin.List)
		r.Get("/{provider}", d.Admin.Get)
		r.Put("/{provider}", d.Admin.Upsert)
		r.Delete("/{provider}", d.Admin.Delete)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	return mw.Chain(r,
		mw.WithRequestID(),
		mw.WithTenantResolution(d.TenantResolver),
		mw.WithLogging(),
		mw.WithRecover(),
		mw.WithRateLimit(mw.RateLimitConfig{
			Limiter:   d.Limiter,
			Whitelist: []string{"/healthz", "/metrics"},
		}),
		d.Authorize.Intercept,
	)
}
