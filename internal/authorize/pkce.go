package authorize

import (
	tokens "github.com/dropDatabas3/authgate/internal/security/token"
)

// CodeChallengeMethodS256 es el único method soportado ("plain" queda
// deliberadamente afuera, OAuth 2.0 Security BCP).
const CodeChallengeMethodS256 = "S256"

// codeVerifierBytes: 48 bytes → 64 chars base64url, dentro del rango
// [43,128] que exige RFC 7636 y solo con charset unreserved.
const codeVerifierBytes = 48

// GenerateCodeVerifier genera un code verifier PKCE nuevo.
func GenerateCodeVerifier() (string, error) {
	return tokens.GenerateOpaqueToken(codeVerifierBytes)
}

// CodeChallengeS256 deriva el code challenge: base64url(sha256(verifier)),
// sin padding.
func CodeChallengeS256(verifier string) string {
	return tokens.SHA256Base64URL(verifier)
}
