package authorize

import (
	"context"
	"fmt"

	tokens "github.com/dropDatabas3/authgate/internal/security/token"
)

// stateBytesDefault: 32 bytes de entropía → state de 43 chars base64url.
const stateBytesDefault = 32

// ResolutionContext es la vista del request entrante que la resolución
// necesita. El HTTP layer la arma; el core no toca *http.Request.
type ResolutionContext struct {
	// Path crudo (escaped) del request, ej. "/oauth2/authorization/google".
	Path string
	// TenantID: slug del tenant ya resuelto por el middleware.
	TenantID string
	// BaseURL externa ya derivada (ver RedirectURIBuilder.BaseURL).
	BaseURL string
}

// StateGenerator produce el valor de state. La implementación por defecto
// genera un token opaco; SignedStateCodec lo reemplaza en modo stateless.
type StateGenerator interface {
	NewState(tenantID, providerID string) (string, error)
}

type opaqueStateGenerator struct{ nBytes int }

func (g opaqueStateGenerator) NewState(_, _ string) (string, error) {
	return tokens.GenerateOpaqueToken(g.nBytes)
}

// Resolver orquesta la resolución completa: match → lookup → redirect URI →
// state/PKCE → armado de la authorization URI. Cada paso corta el pipeline;
// nunca se ejecuta un paso si el anterior falló.
type Resolver struct {
	matcher       *Matcher
	registrations *RegistrationResolver
	redirects     *RedirectURIBuilder
	state         StateGenerator
}

// Option configura un Resolver.
type Option func(*Resolver)

// WithStateGenerator reemplaza la generación de state (modo firmado).
func WithStateGenerator(g StateGenerator) Option {
	return func(r *Resolver) { r.state = g }
}

func NewResolver(m *Matcher, rr *RegistrationResolver, rb *RedirectURIBuilder, opts ...Option) *Resolver {
	r := &Resolver{
		matcher:       m,
		registrations: rr,
		redirects:     rb,
		state:         opaqueStateGenerator{nBytes: stateBytesDefault},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve procesa un request. Retorna (nil, nil) si el path no es un inicio
// de autorización: el caller debe pasar el request al siguiente handler. Un
// error no-nil es terminal y pertenece a la taxonomía de errors.go.
func (rv *Resolver) Resolve(ctx context.Context, rc ResolutionContext) (*AuthorizationRequest, error) {
	providerID, ok := rv.matcher.Match(rc.Path)
	if !ok {
		return nil, nil
	}

	reg, err := rv.registrations.Resolve(ctx, rc.TenantID, providerID)
	if err != nil {
		return nil, err
	}

	redirectURI, err := rv.redirects.Build(rc.BaseURL, rc.TenantID, providerID, reg.RedirectURITemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMisconfiguredProvider, err)
	}

	state, err := rv.state.NewState(rc.TenantID, providerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	req := &AuthorizationRequest{
		TenantID:         rc.TenantID,
		ProviderID:       providerID,
		ClientID:         reg.ClientID,
		RedirectURI:      redirectURI,
		State:            state,
		Scopes:           append([]string(nil), reg.Scopes...),
		AdditionalParams: reg.AdditionalParams,
	}

	if reg.UsePKCE {
		verifier, err := GenerateCodeVerifier()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		req.CodeVerifier = verifier
		req.CodeChallenge = CodeChallengeS256(verifier)
	}

	req.AuthorizationURI = buildAuthorizationURI(reg.AuthorizationURI, req)
	return req, nil
}
