package controlplane

import "time"

// Tenant representa un arrendatario (aislamiento lógico). El slug es único
// y se usa en hosts/paths; las registrations de providers OAuth2 cuelgan de él.
type Tenant struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Slug      string    `json:"slug" yaml:"slug"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`

	Registrations []Registration `json:"registrations,omitempty" yaml:"registrations,omitempty"`
}

// Registration es la configuración OAuth2 de un provider para un tenant.
// Inmutable para los consumidores: este subsistema nunca la muta, solo
// mantiene una referencia transitoria durante una resolución.
type Registration struct {
	// ProviderID identifica el provider dentro del tenant (google, github, ...).
	// Único por tenant; matchea ^[A-Za-z0-9_-]+$.
	ProviderID string `json:"providerId" yaml:"providerId"`

	ClientID string `json:"clientId" yaml:"clientId"`

	// SecretEnc es el client secret cifrado con secretbox. Nunca se loguea;
	// el plaintext solo existe vía DecryptClientSecret, on-demand.
	SecretEnc string `json:"secretEnc,omitempty" yaml:"secretEnc,omitempty"`

	AuthorizationURI string   `json:"authorizationUri" yaml:"authorizationUri"`
	TokenURI         string   `json:"tokenUri,omitempty" yaml:"tokenUri,omitempty"`
	Scopes           []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`

	// RedirectURITemplate admite los placeholders {baseUrl}, {registrationId},
	// {tenantId} y {action}. Default: "{baseUrl}/login/oauth2/code/{registrationId}".
	RedirectURITemplate string `json:"redirectUriTemplate" yaml:"redirectUriTemplate"`

	UsePKCE bool `json:"usePkce" yaml:"usePkce"`

	// AdditionalParams: parámetros extra por tenant para la authorization URI
	// (ej: access_type=offline). Se emiten en orden estable (sorted).
	AdditionalParams map[string]string `json:"additionalParams,omitempty" yaml:"additionalParams,omitempty"`

	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Clone devuelve una copia profunda; los providers retornan copias para que
// los callers nunca puedan mutar el estado del store.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	out := *r
	if r.Scopes != nil {
		out.Scopes = append([]string(nil), r.Scopes...)
	}
	if r.AdditionalParams != nil {
		out.AdditionalParams = make(map[string]string, len(r.AdditionalParams))
		for k, v := range r.AdditionalParams {
			out.AdditionalParams[k] = v
		}
	}
	return &out
}

// RegistrationInput es el payload de alta/modificación vía admin.
// Secret llega en plano y se cifra al persistir; nunca se persiste en claro.
type RegistrationInput struct {
	ProviderID          string            `json:"providerId" yaml:"providerId"`
	ClientID            string            `json:"clientId" yaml:"clientId"`
	Secret              string            `json:"secret,omitempty" yaml:"secret,omitempty"`
	AuthorizationURI    string            `json:"authorizationUri" yaml:"authorizationUri"`
	TokenURI            string            `json:"tokenUri,omitempty" yaml:"tokenUri,omitempty"`
	Scopes              []string          `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	RedirectURITemplate string            `json:"redirectUriTemplate,omitempty" yaml:"redirectUriTemplate,omitempty"`
	UsePKCE             bool              `json:"usePkce" yaml:"usePkce"`
	AdditionalParams    map[string]string `json:"additionalParams,omitempty" yaml:"additionalParams,omitempty"`
}

// DefaultRedirectURITemplate es el template usado cuando la registration no define uno.
const DefaultRedirectURITemplate = "{baseUrl}/login/oauth2/code/{registrationId}"
