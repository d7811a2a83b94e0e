package middlewares

import (
	"net/http"
	"strings"
)

// =================================================================================
// TENANT RESOLVER
// =================================================================================

// TenantResolver define cómo obtener el tenant slug de un request.
type TenantResolver func(r *http.Request) string

// HeaderTenantResolver resuelve usando un header específico.
func HeaderTenantResolver(headerName string) TenantResolver {
	if headerName == "" {
		headerName = "X-Tenant-ID"
	}
	return func(r *http.Request) string {
		return strings.TrimSpace(r.Header.Get(headerName))
	}
}

// QueryTenantResolver resuelve usando un query parameter.
func QueryTenantResolver(paramName string) TenantResolver {
	if paramName == "" {
		paramName = "tenant"
	}
	return func(r *http.Request) string {
		return strings.TrimSpace(r.URL.Query().Get(paramName))
	}
}

// SubdomainTenantResolver resuelve desde el subdominio.
// Ej: acme.authgate.dev -> "acme"
func SubdomainTenantResolver() TenantResolver {
	return func(r *http.Request) string {
		host := r.Host
		if i := strings.Index(host, ":"); i > 0 {
			host = host[:i]
		}
		// Con más de un punto, el primer segmento es el subdominio.
		if strings.Count(host, ".") > 1 {
			return strings.Split(host, ".")[0]
		}
		return ""
	}
}

// ChainResolvers combina resolvers, retornando el primer resultado no vacío.
func ChainResolvers(resolvers ...TenantResolver) TenantResolver {
	return func(r *http.Request) string {
		for _, resolver := range resolvers {
			if slug := resolver(r); slug != "" {
				return slug
			}
		}
		return ""
	}
}

// DefaultTenantResolver: Header -> Query -> Subdomain.
func DefaultTenantResolver() TenantResolver {
	return ChainResolvers(
		HeaderTenantResolver("X-Tenant-ID"),
		HeaderTenantResolver("X-Tenant-Slug"),
		QueryTenantResolver("tenant"),
		SubdomainTenantResolver(),
	)
}

// =================================================================================
// TENANT MIDDLEWARE
// =================================================================================

// WithTenantResolution inyecta el slug del tenant en el contexto. No falla si
// no hay tenant: cada handler decide si lo exige (el interceptor de
// autorización responde TENANT_REQUIRED, rutas como /healthz lo ignoran).
func WithTenantResolution(resolver TenantResolver) Middleware {
	if resolver == nil {
		resolver = DefaultTenantResolver()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slug := resolver(r); slug != "" {
				r = r.WithContext(setTenant(r.Context(), slug))
			}
			next.ServeHTTP(w, r)
		})
	}
}
