package authorize

import (
	"net/http/httptest"
	"testing"
)

func TestBuildTemplate(t *testing.T) {
	b := NewRedirectURIBuilder(RedirectURIBuilderConfig{})

	cases := []struct {
		name     string
		baseURL  string
		template string
		want     string
		wantErr  bool
	}{
		{
			name:     "template por defecto",
			baseURL:  "https://app.acme.com",
			template: "{baseUrl}/login/oauth2/code/{registrationId}",
			want:     "https://app.acme.com/login/oauth2/code/google",
		},
		{
			name:     "base con slash final",
			baseURL:  "https://app.acme.com/",
			template: "{baseUrl}/login/oauth2/code/{registrationId}",
			want:     "https://app.acme.com/login/oauth2/code/google",
		},
		{
			name:     "tenant y action",
			baseURL:  "https://sso.acme.com",
			template: "{baseUrl}/t/{tenantId}/{action}/oauth2/code/{registrationId}",
			want:     "https://sso.acme.com/t/acme/login/oauth2/code/google",
		},
		{
			name:     "placeholder desconocido",
			baseURL:  "https://app.acme.com",
			template: "{baseUrl}/cb/{unknown}",
			wantErr:  true,
		},
		{
			name:     "resultado relativo",
			baseURL:  "",
			template: "/login/oauth2/code/{registrationId}",
			wantErr:  true,
		},
		{
			name:     "scheme no http",
			baseURL:  "ftp://files.acme.com",
			template: "{baseUrl}/cb",
			wantErr:  true,
		},
		{
			name:    "template vacío",
			baseURL: "https://app.acme.com",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := b.Build(tc.baseURL, "acme", "google", tc.template)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("esperaba error, obtuve %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Build = %q, esperaba %q", got, tc.want)
			}
		})
	}
}

func TestBaseURLForwardedAllowList(t *testing.T) {
	b := NewRedirectURIBuilder(RedirectURIBuilderConfig{
		TrustForwarded:        true,
		AllowedForwardedHosts: []string{"app.acme.com"},
	})

	r := httptest.NewRequest("GET", "http://interno:8080/oauth2/authorization/google", nil)
	r.Header.Set("X-Forwarded-Host", "app.acme.com")
	r.Header.Set("X-Forwarded-Proto", "https")
	if got := b.BaseURL(r); got != "https://app.acme.com" {
		t.Fatalf("BaseURL = %q, esperaba forwarded host permitido", got)
	}

	// Host forwarded fuera de la allow-list: se ignora y cae al host real.
	r2 := httptest.NewRequest("GET", "http://interno:8080/x", nil)
	r2.Header.Set("X-Forwarded-Host", "evil.example.com")
	r2.Header.Set("X-Forwarded-Proto", "https")
	if got := b.BaseURL(r2); got != "http://interno:8080" {
		t.Fatalf("BaseURL = %q, un forwarded host no permitido no debe usarse", got)
	}
}

func TestBaseURLSinForwarded(t *testing.T) {
	b := NewRedirectURIBuilder(RedirectURIBuilderConfig{
		DefaultBaseURL: "https://canonical.acme.com/",
	})
	r := httptest.NewRequest("GET", "http://interno:8080/x", nil)
	// Sin TrustForwarded el header se ignora aunque venga seteado.
	r.Header.Set("X-Forwarded-Host", "app.acme.com")
	if got := b.BaseURL(r); got != "https://canonical.acme.com" {
		t.Fatalf("BaseURL = %q, esperaba la base configurada", got)
	}

	b2 := NewRedirectURIBuilder(RedirectURIBuilderConfig{})
	if got := b2.BaseURL(r); got != "http://interno:8080" {
		t.Fatalf("BaseURL = %q, esperaba el host de la conexión", got)
	}
}

func TestBaseURLForwardedEncadenado(t *testing.T) {
	b := NewRedirectURIBuilder(RedirectURIBuilderConfig{
		TrustForwarded:        true,
		AllowedForwardedHosts: []string{"App.Acme.Com"},
	})
	r := httptest.NewRequest("GET", "http://interno:8080/x", nil)
	r.Header.Set("X-Forwarded-Host", "app.acme.com, proxy-interno")
	r.Header.Set("X-Forwarded-Proto", "https, http")
	if got := b.BaseURL(r); got != "https://app.acme.com" {
		t.Fatalf("BaseURL = %q, esperaba el primer valor de la cadena", got)
	}
}
