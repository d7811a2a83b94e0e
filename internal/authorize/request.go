package authorize

import (
	"net/url"
	"sort"
	"strings"
)

// AuthorizationRequest es el resultado de una resolución exitosa: todo lo que
// el HTTP layer necesita para emitir el 302 y persistir el state.
type AuthorizationRequest struct {
	TenantID   string
	ProviderID string
	ClientID   string

	// AuthorizationURI: endpoint del provider con la query completa, lista
	// para usarse como Location.
	AuthorizationURI string
	// RedirectURI ya expandida (va también dentro de la query).
	RedirectURI string

	State string

	// CodeVerifier solo se persiste server-side; jamás viaja al user-agent.
	// Vacío si la registration no usa PKCE.
	CodeVerifier  string
	CodeChallenge string

	Scopes           []string
	AdditionalParams map[string]string
}

// UsesPKCE indica si el request lleva parámetros PKCE.
func (a *AuthorizationRequest) UsesPKCE() bool { return a.CodeVerifier != "" }

// Nombres reservados de la query: un additional param que colisione con uno
// de estos se ignora en el armado (el valor canónico siempre gana).
var reservedParams = map[string]struct{}{
	"response_type":         {},
	"client_id":             {},
	"redirect_uri":          {},
	"scope":                 {},
	"state":                 {},
	"code_challenge":        {},
	"code_challenge_method": {},
}

// buildAuthorizationURI arma la URI final con orden determinista:
// response_type, client_id, redirect_uri, scope, state, code_challenge,
// code_challenge_method, y después los additional params ordenados por clave.
// Respeta una query preexistente en el endpoint (append con "&").
func buildAuthorizationURI(endpoint string, a *AuthorizationRequest) string {
	pairs := make([][2]string, 0, 8+len(a.AdditionalParams))
	pairs = append(pairs,
		[2]string{"response_type", "code"},
		[2]string{"client_id", a.ClientID},
		[2]string{"redirect_uri", a.RedirectURI},
	)
	if len(a.Scopes) > 0 {
		pairs = append(pairs, [2]string{"scope", strings.Join(a.Scopes, " ")})
	}
	pairs = append(pairs, [2]string{"state", a.State})
	if a.CodeChallenge != "" {
		pairs = append(pairs,
			[2]string{"code_challenge", a.CodeChallenge},
			[2]string{"code_challenge_method", CodeChallengeMethodS256},
		)
	}

	extra := make([]string, 0, len(a.AdditionalParams))
	for k := range a.AdditionalParams {
		if _, reserved := reservedParams[k]; reserved {
			continue
		}
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		pairs = append(pairs, [2]string{k, a.AdditionalParams[k]})
	}

	var sb strings.Builder
	sb.WriteString(endpoint)
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	for _, kv := range pairs {
		sb.WriteString(sep)
		sb.WriteString(encodeQueryComponent(kv[0]))
		sb.WriteByte('=')
		sb.WriteString(encodeQueryComponent(kv[1]))
		sep = "&"
	}
	return sb.String()
}

// encodeQueryComponent codifica estilo percent-encoding estricto: el espacio
// sale como %20 y no como "+", que algunos providers rechazan en scope.
func encodeQueryComponent(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
