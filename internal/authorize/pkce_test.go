package authorize

import (
	"crypto/sha256"
	"encoding/base64"
	"regexp"
	"testing"
)

var reUnreserved = regexp.MustCompile(`^[A-Za-z0-9\-._~]+$`)

func TestGenerateCodeVerifier(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		v, err := GenerateCodeVerifier()
		if err != nil {
			t.Fatalf("GenerateCodeVerifier: %v", err)
		}
		if len(v) < 43 || len(v) > 128 {
			t.Fatalf("verifier de largo %d, fuera de [43,128]", len(v))
		}
		if !reUnreserved.MatchString(v) {
			t.Fatalf("verifier con chars fuera del set unreserved: %q", v)
		}
		if seen[v] {
			t.Fatalf("verifier repetido: %q", v)
		}
		seen[v] = true
	}
}

func TestCodeChallengeS256(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))
	want := base64.RawURLEncoding.EncodeToString(sum[:])

	got := CodeChallengeS256(verifier)
	if got != want {
		t.Fatalf("challenge = %q, esperaba %q", got, want)
	}
	if got != "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM" {
		t.Fatalf("challenge no coincide con el vector de RFC 7636: %q", got)
	}
}
