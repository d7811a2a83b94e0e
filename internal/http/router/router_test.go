package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	core "github.com/dropDatabas3/authgate/internal/authorize"
	memcache "github.com/dropDatabas3/authgate/internal/cache/memory"
	cp "github.com/dropDatabas3/authgate/internal/controlplane"
	admctrl "github.com/dropDatabas3/authgate/internal/http/controllers/admin"
	authzctrl "github.com/dropDatabas3/authgate/internal/http/controllers/authorize"
	cbctrl "github.com/dropDatabas3/authgate/internal/http/controllers/callback"
	healthctrl "github.com/dropDatabas3/authgate/internal/http/controllers/health"
	provctrl "github.com/dropDatabas3/authgate/internal/http/controllers/providers"
	ssmemory "github.com/dropDatabas3/authgate/internal/statestore/memory"
)

// memProvider implementa cp.ConfigProvider en memoria para las pruebas de
// integración del router.
type memProvider struct {
	mu   sync.Mutex
	regs map[string]map[string]*cp.Registration // tenant -> provider -> reg
}

func newMemProvider() *memProvider {
	return &memProvider{regs: make(map[string]map[string]*cp.Registration)}
}

func (m *memProvider) put(tenant string, reg *cp.Registration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.regs[tenant] == nil {
		m.regs[tenant] = make(map[string]*cp.Registration)
	}
	m.regs[tenant][reg.ProviderID] = reg
}

func (m *memProvider) GetRegistration(_ context.Context, tenant, provider string) (*cp.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.regs[tenant]
	if !ok {
		return nil, cp.ErrTenantNotFound
	}
	reg, ok := t[provider]
	if !ok {
		return nil, cp.ErrRegistrationNotFound
	}
	return reg.Clone(), nil
}

func (m *memProvider) ListRegistrations(_ context.Context, tenant string) ([]cp.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.regs[tenant]
	if !ok {
		return nil, cp.ErrTenantNotFound
	}
	out := make([]cp.Registration, 0, len(t))
	for _, reg := range t {
		out = append(out, *reg.Clone())
	}
	return out, nil
}

func (m *memProvider) UpsertRegistration(_ context.Context, tenant string, in cp.RegistrationInput) (*cp.Registration, error) {
	if err := cp.ValidateInput(in); err != nil {
		return nil, err
	}
	reg := &cp.Registration{
		ProviderID:          in.ProviderID,
		ClientID:            in.ClientID,
		SecretEnc:           "enc:" + in.Secret,
		AuthorizationURI:    in.AuthorizationURI,
		TokenURI:            in.TokenURI,
		Scopes:              in.Scopes,
		RedirectURITemplate: in.RedirectURITemplate,
		UsePKCE:             in.UsePKCE,
		AdditionalParams:    in.AdditionalParams,
		UpdatedAt:           time.Now().UTC(),
	}
	if reg.RedirectURITemplate == "" {
		reg.RedirectURITemplate = cp.DefaultRedirectURITemplate
	}
	m.put(tenant, reg)
	return reg.Clone(), nil
}

func (m *memProvider) DeleteRegistration(_ context.Context, tenant, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.regs[tenant]
	if !ok {
		return cp.ErrTenantNotFound
	}
	if _, ok := t[provider]; !ok {
		return cp.ErrRegistrationNotFound
	}
	delete(t, provider)
	return nil
}

func (m *memProvider) DecryptClientSecret(_ context.Context, tenant, provider string) (string, error) {
	reg, err := m.GetRegistration(context.Background(), tenant, provider)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(reg.SecretEnc, "enc:"), nil
}

func (m *memProvider) Ping(context.Context) error { return nil }

func newTestHandler(t *testing.T, provider cp.ConfigProvider) http.Handler {
	t.Helper()

	matcher, err := core.NewMatcher(core.DefaultPattern)
	require.NoError(t, err)

	registrations := core.NewRegistrationResolver(core.RegistrationResolverConfig{
		Store: provider,
		Cache: memcache.New(time.Minute, "reg"),
	})
	builder := core.NewRedirectURIBuilder(core.RedirectURIBuilderConfig{})
	resolver := core.NewResolver(matcher, registrations, builder)
	states := ssmemory.New(time.Minute)

	return New(Deps{
		Authorize: authzctrl.NewController(authzctrl.Deps{
			Matcher:  matcher,
			Resolver: resolver,
			Builder:  builder,
			States:   states,
			StateTTL: time.Minute,
		}),
		Callback:  cbctrl.NewController(states),
		Providers: provctrl.NewController(provider, core.DefaultPattern),
		Admin: admctrl.NewRegistrationsController(admctrl.Deps{
			CP:       provider,
			OnChange: registrations.Invalidate,
		}),
		Health: healthctrl.NewController(provider),
	})
}

func seedGoogle(p *memProvider) {
	p.put("acme", &cp.Registration{
		ProviderID:          "google",
		ClientID:            "abc123",
		AuthorizationURI:    "https://idp.example.com/authorize",
		Scopes:              []string{"openid", "email"},
		RedirectURITemplate: cp.DefaultRedirectURITemplate,
		UsePKCE:             true,
	})
}

func TestAuthorizeRedirectFlow(t *testing.T) {
	provider := newMemProvider()
	seedGoogle(provider)
	h := newTestHandler(t, provider)

	req := httptest.NewRequest(http.MethodGet, "http://app.acme.test/oauth2/authorization/google", nil)
	req.Header.Set("X-Tenant-ID", "acme")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "idp.example.com", loc.Host)

	q := loc.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "abc123", q.Get("client_id"))
	require.Equal(t, "http://app.acme.test/login/oauth2/code/google", q.Get("redirect_uri"))
	require.Equal(t, "openid email", q.Get("scope"))
	require.NotEmpty(t, q.Get("state"))
	require.NotEmpty(t, q.Get("code_challenge"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))

	// El callback con ese state entrega el material del intercambio.
	cbURL := fmt.Sprintf("http://app.acme.test/login/oauth2/code/google?state=%s&code=authcode-1",
		url.QueryEscape(q.Get("state")))
	cbReq := httptest.NewRequest(http.MethodGet, cbURL, nil)
	cbReq.Header.Set("X-Tenant-ID", "acme")
	cbRec := httptest.NewRecorder()
	h.ServeHTTP(cbRec, cbReq)

	require.Equal(t, http.StatusOK, cbRec.Code)
	var cbResp cbctrl.CallbackResponse
	require.NoError(t, json.Unmarshal(cbRec.Body.Bytes(), &cbResp))
	require.Equal(t, "authorization_complete", cbResp.Status)
	require.Equal(t, "acme", cbResp.TenantID)
	require.Equal(t, "authcode-1", cbResp.Code)
	require.NotEmpty(t, cbResp.CodeVerifier)

	// Replay del mismo state: rechazado.
	cbRec2 := httptest.NewRecorder()
	h.ServeHTTP(cbRec2, cbReq.Clone(cbReq.Context()))
	require.Equal(t, http.StatusBadRequest, cbRec2.Code)
	require.Contains(t, cbRec2.Body.String(), "STATE_INVALID")
}

func TestAuthorizeErrores(t *testing.T) {
	provider := newMemProvider()
	seedGoogle(provider)
	h := newTestHandler(t, provider)

	t.Run("provider desconocido", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/oauth2/authorization/github", nil)
		req.Header.Set("X-Tenant-ID", "acme")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "PROVIDER_UNKNOWN")
	})

	t.Run("sin tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/oauth2/authorization/google", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "TENANT_REQUIRED")
	})

	t.Run("método no permitido", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/oauth2/authorization/google", nil)
		req.Header.Set("X-Tenant-ID", "acme")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("path que no matchea pasa al router", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/no/existe", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "NOT_FOUND")
	})
}

func TestProvidersList(t *testing.T) {
	provider := newMemProvider()
	seedGoogle(provider)
	h := newTestHandler(t, provider)

	req := httptest.NewRequest(http.MethodGet, "/oauth2/providers?tenant=acme", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp provctrl.ProvidersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Providers, 1)
	require.Equal(t, "google", resp.Providers[0].ProviderID)
	require.Equal(t, "/oauth2/authorization/google", resp.Providers[0].LoginPath)
	require.True(t, resp.Providers[0].PKCE)
}

func TestAdminUpsertInvalidaCache(t *testing.T) {
	provider := newMemProvider()
	seedGoogle(provider)
	h := newTestHandler(t, provider)

	// Primera resolución puebla la cache.
	req := httptest.NewRequest(http.MethodGet, "/oauth2/authorization/google", nil)
	req.Header.Set("X-Tenant-ID", "acme")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	// Rotación del client id vía admin.
	body := `{"clientId":"rotado-999","authorizationUri":"https://idp.example.com/authorize","secret":"s3cret"}`
	put := httptest.NewRequest(http.MethodPut, "/v1/admin/tenants/acme/registrations/google", strings.NewReader(body))
	putRec := httptest.NewRecorder()
	h.ServeHTTP(putRec, put)
	require.Equal(t, http.StatusOK, putRec.Code)
	require.NotContains(t, putRec.Body.String(), "s3cret")

	// La siguiente resolución ve el client id nuevo de inmediato.
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req.Clone(req.Context()))
	require.Equal(t, http.StatusFound, rec2.Code)
	loc, err := url.Parse(rec2.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "rotado-999", loc.Query().Get("client_id"))
}

func TestHealthz(t *testing.T) {
	provider := newMemProvider()
	h := newTestHandler(t, provider)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}
