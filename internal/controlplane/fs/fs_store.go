// Package fs implementa ConfigProvider usando YAML en disco.
// Layout: <root>/tenants/<slug>/tenant.yaml + registrations.yaml
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	cp "github.com/dropDatabas3/authgate/internal/controlplane"
	sec "github.com/dropDatabas3/authgate/internal/security/secretbox"
	"github.com/dropDatabas3/authgate/internal/util/atomicwrite"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FSProvider implementa cp.ConfigProvider sobre el filesystem.
// Pensado para desarrollo y deployments single-node.
type FSProvider struct {
	root string

	mu sync.RWMutex // serializa escrituras; las lecturas van directo a disco
}

func New(root string) *FSProvider { return &FSProvider{root: filepath.Clean(root)} }

// FSRoot retorna el directorio raíz configurado.
func (p *FSProvider) FSRoot() string { return p.root }

func (p *FSProvider) tenantsDir() string           { return filepath.Join(p.root, "tenants") }
func (p *FSProvider) tenantDir(slug string) string { return filepath.Join(p.tenantsDir(), slug) }
func (p *FSProvider) tenantFile(slug string) string {
	return filepath.Join(p.tenantDir(slug), "tenant.yaml")
}
func (p *FSProvider) registrationsFile(slug string) string {
	return filepath.Join(p.tenantDir(slug), "registrations.yaml")
}

// ===== helpers FS =====

func readYAML[T any](path string, out *T) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, out)
}

func writeYAML(path string, v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return atomicwrite.AtomicWriteFile(path, b, 0o600)
}

// validSlug evita que un slug malicioso escape del root (path traversal).
func validSlug(slug string) bool {
	if slug == "" || strings.ContainsAny(slug, "/\\") || strings.Contains(slug, "..") {
		return false
	}
	return true
}

func (p *FSProvider) loadRegistrations(slug string) ([]cp.Registration, error) {
	if !validSlug(slug) {
		return nil, cp.ErrTenantNotFound
	}
	if _, err := os.Stat(p.tenantDir(slug)); err != nil {
		if os.IsNotExist(err) {
			return nil, cp.ErrTenantNotFound
		}
		return nil, fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}
	var regs []cp.Registration
	if err := readYAML(p.registrationsFile(slug), &regs); err != nil {
		if os.IsNotExist(err) {
			return nil, nil // tenant sin registrations: lista vacía
		}
		return nil, fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}
	return regs, nil
}

// ===== ConfigProvider impl =====

func (p *FSProvider) GetRegistration(ctx context.Context, tenantSlug, providerID string) (*cp.Registration, error) {
	regs, err := p.loadRegistrations(tenantSlug)
	if err != nil {
		return nil, err
	}
	for i := range regs {
		if strings.EqualFold(regs[i].ProviderID, providerID) {
			return regs[i].Clone(), nil
		}
	}
	return nil, cp.ErrRegistrationNotFound
}

func (p *FSProvider) ListRegistrations(ctx context.Context, tenantSlug string) ([]cp.Registration, error) {
	regs, err := p.loadRegistrations(tenantSlug)
	if err != nil {
		return nil, err
	}
	out := make([]cp.Registration, 0, len(regs))
	for i := range regs {
		out = append(out, *regs[i].Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out, nil
}

func (p *FSProvider) UpsertRegistration(ctx context.Context, tenantSlug string, in cp.RegistrationInput) (*cp.Registration, error) {
	if err := cp.ValidateInput(in); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	regs, err := p.loadRegistrations(tenantSlug)
	if err != nil {
		return nil, err
	}

	reg := cp.Registration{
		ProviderID:          strings.TrimSpace(in.ProviderID),
		ClientID:            strings.TrimSpace(in.ClientID),
		AuthorizationURI:    strings.TrimSpace(in.AuthorizationURI),
		TokenURI:            strings.TrimSpace(in.TokenURI),
		Scopes:              in.Scopes,
		RedirectURITemplate: strings.TrimSpace(in.RedirectURITemplate),
		UsePKCE:             in.UsePKCE,
		AdditionalParams:    in.AdditionalParams,
		UpdatedAt:           time.Now().UTC(),
	}
	if reg.RedirectURITemplate == "" {
		reg.RedirectURITemplate = cp.DefaultRedirectURITemplate
	}
	if in.Secret != "" {
		enc, err := sec.Encrypt(in.Secret)
		if err != nil {
			return nil, fmt.Errorf("encrypt secret: %w", err)
		}
		reg.SecretEnc = enc
	}

	replaced := false
	for i := range regs {
		if strings.EqualFold(regs[i].ProviderID, reg.ProviderID) {
			// si no vino secret nuevo, conservar el cifrado existente
			if reg.SecretEnc == "" {
				reg.SecretEnc = regs[i].SecretEnc
			}
			regs[i] = reg
			replaced = true
			break
		}
	}
	if !replaced {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].ProviderID < regs[j].ProviderID })

	if err := writeYAML(p.registrationsFile(tenantSlug), regs); err != nil {
		return nil, fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}
	return reg.Clone(), nil
}

func (p *FSProvider) DeleteRegistration(ctx context.Context, tenantSlug, providerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	regs, err := p.loadRegistrations(tenantSlug)
	if err != nil {
		return err
	}
	kept := regs[:0]
	found := false
	for i := range regs {
		if strings.EqualFold(regs[i].ProviderID, providerID) {
			found = true
			continue
		}
		kept = append(kept, regs[i])
	}
	if !found {
		return cp.ErrRegistrationNotFound
	}
	if err := writeYAML(p.registrationsFile(tenantSlug), kept); err != nil {
		return fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}
	return nil
}

func (p *FSProvider) DecryptClientSecret(ctx context.Context, tenantSlug, providerID string) (string, error) {
	reg, err := p.GetRegistration(ctx, tenantSlug, providerID)
	if err != nil {
		return "", err
	}
	if reg.SecretEnc == "" {
		return "", nil
	}
	return sec.Decrypt(reg.SecretEnc)
}

func (p *FSProvider) Ping(ctx context.Context) error {
	if _, err := os.Stat(p.root); err != nil {
		return fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}
	return nil
}

// EnsureTenant crea el layout del tenant si no existe (seed/bootstrap).
func (p *FSProvider) EnsureTenant(ctx context.Context, slug, name string) (*cp.Tenant, error) {
	if !validSlug(slug) {
		return nil, cp.ErrBadInput
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var t cp.Tenant
	if err := readYAML(p.tenantFile(slug), &t); err == nil {
		return &t, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}

	now := time.Now().UTC()
	t = cp.Tenant{ID: uuid.NewString(), Name: name, Slug: slug, CreatedAt: now, UpdatedAt: now}
	if err := writeYAML(p.tenantFile(slug), &t); err != nil {
		return nil, fmt.Errorf("%w: %v", cp.ErrStoreUnavailable, err)
	}
	return &t, nil
}
