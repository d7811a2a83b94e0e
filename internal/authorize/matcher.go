package authorize

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultPattern es el path de inicio de autorización por defecto.
const DefaultPattern = "/oauth2/authorization/{providerId}"

// reProviderID: ids válidos dentro de un tenant. Excluye "/", "." y cualquier
// secuencia de traversal por construcción.
var reProviderID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Matcher decide si un path es un inicio de autorización y extrae el provider
// id. Se compila una vez al arranque; Match es puro y seguro para uso
// concurrente sin sincronización.
type Matcher struct {
	prefix string
	suffix string
}

// NewMatcher compila un pattern con exactamente una variable, ej:
// "/oauth2/authorization/{providerId}". El nombre de la variable es libre.
func NewMatcher(pattern string) (*Matcher, error) {
	open := strings.Index(pattern, "{")
	close := strings.Index(pattern, "}")
	if open < 0 || close < open {
		return nil, fmt.Errorf("matcher: pattern %q sin variable {providerId}", pattern)
	}
	suffix := pattern[close+1:]
	if strings.ContainsAny(suffix, "{}") {
		return nil, fmt.Errorf("matcher: pattern %q admite una sola variable", pattern)
	}
	return &Matcher{prefix: pattern[:open], suffix: suffix}, nil
}

// Match evalúa el path crudo (escaped) del request. Retorna el provider id
// decodificado y true si matchea. Un path que matchea el pattern pero cuyo
// segmento es vacío, contiene "/" o secuencias de traversal se trata como
// no-match, nunca como error.
func (m *Matcher) Match(rawPath string) (string, bool) {
	if len(rawPath) <= len(m.prefix)+len(m.suffix) {
		return "", false
	}
	if !strings.HasPrefix(rawPath, m.prefix) || !strings.HasSuffix(rawPath, m.suffix) {
		return "", false
	}
	seg := rawPath[len(m.prefix) : len(rawPath)-len(m.suffix)]
	if seg == "" || strings.Contains(seg, "/") {
		return "", false
	}
	decoded, err := url.PathUnescape(seg)
	if err != nil {
		return "", false
	}
	if !reProviderID.MatchString(decoded) {
		return "", false
	}
	return decoded, true
}

// Pattern reconstruye el pattern configurado (para logs/diagnóstico).
func (m *Matcher) Pattern() string {
	return m.prefix + "{providerId}" + m.suffix
}
