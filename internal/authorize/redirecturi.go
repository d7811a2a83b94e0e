package authorize

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidTemplate: el redirect_uri_template de la registration no se pudo
// expandir a una URL absoluta válida. El resolver lo traduce a
// ErrMisconfiguredProvider.
var ErrInvalidTemplate = errors.New("redirect uri template inválido")

// rePlaceholder detecta placeholders sin resolver tras la expansión.
var rePlaceholder = regexp.MustCompile(`\{[^/{}]+\}`)

// RedirectURIBuilderConfig configura cómo se deriva la base URL externa.
type RedirectURIBuilderConfig struct {
	// DefaultBaseURL: base fija configurada (ej. detrás de un LB con host
	// canónico). Si está vacía, la base se deriva del request.
	DefaultBaseURL string
	// TrustForwarded habilita X-Forwarded-Host / X-Forwarded-Proto.
	TrustForwarded bool
	// AllowedForwardedHosts: allow-list de hosts aceptados vía forwarded
	// headers. Un forwarded host fuera de la lista se ignora (protección
	// contra open redirect por header spoofing).
	AllowedForwardedHosts []string
}

// RedirectURIBuilder expande templates de redirect URI y deriva la base URL
// visible externamente del request entrante.
type RedirectURIBuilder struct {
	defaultBaseURL string
	trustForwarded bool
	allowedHosts   map[string]struct{}
}

func NewRedirectURIBuilder(cfg RedirectURIBuilderConfig) *RedirectURIBuilder {
	allowed := make(map[string]struct{}, len(cfg.AllowedForwardedHosts))
	for _, h := range cfg.AllowedForwardedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			allowed[h] = struct{}{}
		}
	}
	return &RedirectURIBuilder{
		defaultBaseURL: strings.TrimRight(cfg.DefaultBaseURL, "/"),
		trustForwarded: cfg.TrustForwarded,
		allowedHosts:   allowed,
	}
}

// BaseURL deriva la base URL externa para el request. Prioridad:
//
//  1. X-Forwarded-Host, solo si TrustForwarded y el host está en allow-list.
//  2. DefaultBaseURL configurada.
//  3. Host y scheme de la conexión.
func (b *RedirectURIBuilder) BaseURL(r *http.Request) string {
	if b.trustForwarded && r != nil {
		if host := forwardedValue(r.Header.Get("X-Forwarded-Host")); host != "" {
			if _, ok := b.allowedHosts[strings.ToLower(host)]; ok {
				proto := forwardedValue(r.Header.Get("X-Forwarded-Proto"))
				if proto != "http" && proto != "https" {
					proto = "https"
				}
				return proto + "://" + host
			}
		}
	}
	if b.defaultBaseURL != "" {
		return b.defaultBaseURL
	}
	if r == nil {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// Build expande el template de la registration. Placeholders soportados:
// {baseUrl}, {registrationId}, {tenantId}, {action}. El resultado debe ser
// una URL http(s) absoluta y sin placeholders residuales.
func (b *RedirectURIBuilder) Build(baseURL, tenantID, providerID, template string) (string, error) {
	if template == "" {
		return "", fmt.Errorf("%w: template vacío", ErrInvalidTemplate)
	}
	expanded := strings.NewReplacer(
		"{baseUrl}", strings.TrimRight(baseURL, "/"),
		"{registrationId}", providerID,
		"{tenantId}", tenantID,
		"{action}", "login",
	).Replace(template)

	if m := rePlaceholder.FindString(expanded); m != "" {
		return "", fmt.Errorf("%w: placeholder no soportado %s", ErrInvalidTemplate, m)
	}
	u, err := url.Parse(expanded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: se requiere URL http(s) absoluta, obtuve %q", ErrInvalidTemplate, expanded)
	}
	return expanded, nil
}

// forwardedValue toma el primer valor de un header forwarded que puede venir
// como lista separada por comas (proxies encadenados).
func forwardedValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
