package fs

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"testing"

	cp "github.com/dropDatabas3/authgate/internal/controlplane"
	sec "github.com/dropDatabas3/authgate/internal/security/secretbox"
)

func newTestProvider(t *testing.T) *FSProvider {
	t.Helper()
	sec.UnsafeResetSecretBoxForTests()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	os.Setenv("SECRETBOX_MASTER_KEY", base64.StdEncoding.EncodeToString(raw))

	p := New(t.TempDir())
	if _, err := p.EnsureTenant(context.Background(), "acme", "Acme Corp"); err != nil {
		t.Fatalf("EnsureTenant: %v", err)
	}
	return p
}

func googleInput() cp.RegistrationInput {
	return cp.RegistrationInput{
		ProviderID:       "google",
		ClientID:         "abc",
		Secret:           "shhh",
		AuthorizationURI: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURI:         "https://oauth2.googleapis.com/token",
		Scopes:           []string{"openid", "email"},
	}
}

func TestUpsertGetRoundTrip(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	reg, err := p.UpsertRegistration(ctx, "acme", googleInput())
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if reg.SecretEnc == "" || reg.SecretEnc == "shhh" {
		t.Fatalf("secret must be stored encrypted, got %q", reg.SecretEnc)
	}
	if reg.RedirectURITemplate != cp.DefaultRedirectURITemplate {
		t.Fatalf("default template not applied: %q", reg.RedirectURITemplate)
	}

	got, err := p.GetRegistration(ctx, "acme", "google")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ClientID != "abc" || len(got.Scopes) != 2 {
		t.Fatalf("unexpected registration: %+v", got)
	}

	secret, err := p.DecryptClientSecret(ctx, "acme", "google")
	if err != nil {
		t.Fatalf("DecryptClientSecret: %v", err)
	}
	if secret != "shhh" {
		t.Fatalf("secret mismatch: %q", secret)
	}
}

func TestUpsertKeepsSecretWhenOmitted(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.UpsertRegistration(ctx, "acme", googleInput()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	in := googleInput()
	in.Secret = "" // rotación de scopes sin tocar el secret
	in.Scopes = []string{"openid", "email", "profile"}
	if _, err := p.UpsertRegistration(ctx, "acme", in); err != nil {
		t.Fatalf("Upsert 2: %v", err)
	}

	secret, err := p.DecryptClientSecret(ctx, "acme", "google")
	if err != nil {
		t.Fatalf("DecryptClientSecret: %v", err)
	}
	if secret != "shhh" {
		t.Fatalf("secret lost on update: %q", secret)
	}
}

func TestGetDistinguishesNotFound(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.GetRegistration(ctx, "acme", "github"); !errors.Is(err, cp.ErrRegistrationNotFound) {
		t.Fatalf("want ErrRegistrationNotFound, got %v", err)
	}
	if _, err := p.GetRegistration(ctx, "nope", "google"); !errors.Is(err, cp.ErrTenantNotFound) {
		t.Fatalf("want ErrTenantNotFound, got %v", err)
	}
	// slug con traversal no debe tocar el filesystem fuera del root
	if _, err := p.GetRegistration(ctx, "../etc", "google"); !errors.Is(err, cp.ErrTenantNotFound) {
		t.Fatalf("want ErrTenantNotFound for traversal slug, got %v", err)
	}
}

func TestDeleteRegistration(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.UpsertRegistration(ctx, "acme", googleInput()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := p.DeleteRegistration(ctx, "acme", "google"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := p.GetRegistration(ctx, "acme", "google"); !errors.Is(err, cp.ErrRegistrationNotFound) {
		t.Fatalf("want ErrRegistrationNotFound after delete, got %v", err)
	}
	if err := p.DeleteRegistration(ctx, "acme", "google"); !errors.Is(err, cp.ErrRegistrationNotFound) {
		t.Fatalf("want ErrRegistrationNotFound on double delete, got %v", err)
	}
}

func TestListRegistrationsStableOrder(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	for _, id := range []string{"google", "github", "azuread"} {
		in := googleInput()
		in.ProviderID = id
		if _, err := p.UpsertRegistration(ctx, "acme", in); err != nil {
			t.Fatalf("Upsert %s: %v", id, err)
		}
	}
	regs, err := p.ListRegistrations(ctx, "acme")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"azuread", "github", "google"}
	if len(regs) != len(want) {
		t.Fatalf("len=%d", len(regs))
	}
	for i, w := range want {
		if regs[i].ProviderID != w {
			t.Fatalf("order[%d]=%s want %s", i, regs[i].ProviderID, w)
		}
	}
}
