package controlplane

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrTenantNotFound: el tenant no existe en el control plane.
	ErrTenantNotFound = errors.New("controlplane: tenant not found")

	// ErrRegistrationNotFound: el tenant existe pero no configuró ese provider.
	// Resultado normal y esperado; distinguible de fallas de infraestructura.
	ErrRegistrationNotFound = errors.New("controlplane: registration not found")

	// ErrStoreUnavailable: falla de infraestructura (I/O, red, timeout).
	// Transitorio; el caller puede reintentar.
	ErrStoreUnavailable = errors.New("controlplane: store unavailable")

	// ErrBadInput: payload de admin inválido.
	ErrBadInput = errors.New("controlplane: bad input")
)

var reProviderID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ConfigProvider define el contrato para leer/escribir la configuración OAuth2
// por tenant. La lectura de una registration es un read lógico único: nunca se
// observa una registration parcial.
type ConfigProvider interface {
	// GetRegistration retorna la registration de (tenant, provider) o
	// ErrRegistrationNotFound / ErrTenantNotFound / ErrStoreUnavailable.
	GetRegistration(ctx context.Context, tenantSlug, providerID string) (*Registration, error)

	// ListRegistrations retorna todas las registrations del tenant en orden
	// estable por providerID.
	ListRegistrations(ctx context.Context, tenantSlug string) ([]Registration, error)

	// UpsertRegistration crea/actualiza una registration. El secret entrante
	// se cifra antes de persistir.
	UpsertRegistration(ctx context.Context, tenantSlug string, in RegistrationInput) (*Registration, error)

	// DeleteRegistration elimina la registration del tenant.
	DeleteRegistration(ctx context.Context, tenantSlug, providerID string) error

	// DecryptClientSecret descifra el secret on-demand. Solo lo usa el
	// token-exchange; el resolver de authorization requests no lo necesita.
	DecryptClientSecret(ctx context.Context, tenantSlug, providerID string) (string, error)

	// Ping verifica que el store esté accesible (healthcheck).
	Ping(ctx context.Context) error
}

// ValidateProviderID valida el formato de un provider id.
func ValidateProviderID(id string) bool {
	return reProviderID.MatchString(id)
}

// ValidateInput chequea los campos obligatorios de una RegistrationInput.
func ValidateInput(in RegistrationInput) error {
	if !ValidateProviderID(strings.TrimSpace(in.ProviderID)) {
		return ErrBadInput
	}
	if strings.TrimSpace(in.ClientID) == "" {
		return ErrBadInput
	}
	u, err := url.Parse(strings.TrimSpace(in.AuthorizationURI))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrBadInput
	}
	return nil
}
