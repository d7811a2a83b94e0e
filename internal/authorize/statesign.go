package authorize

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	tokens "github.com/dropDatabas3/authgate/internal/security/token"
)

// Modo de state firmado: en lugar de un token opaco, el state es un JWT HS256
// corto que embebe tenant y provider. El callback puede así validar origen y
// enrutar sin golpear el state store primero. El code verifier PKCE NO viaja
// en el JWT (está firmado, no cifrado): sigue viviendo solo server-side.

const (
	signedStateIssuer   = "authgate"
	signedStateAudience = "oauth2-callback"
	signedStateNonceLen = 16
)

// ErrBadState: el state firmado no valida (firma, expiración o claims).
var ErrBadState = errors.New("authorize: invalid signed state")

// StateClaims son los claims del state firmado.
type StateClaims struct {
	TenantID   string `json:"tid"`
	ProviderID string `json:"pid"`
	Nonce      string `json:"nce"`
	jwt.RegisteredClaims
}

// SignedStateCodec firma y valida states. Implementa StateGenerator, así se
// enchufa al Resolver vía WithStateGenerator.
type SignedStateCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewSignedStateCodec(secret []byte, ttl time.Duration) (*SignedStateCodec, error) {
	if len(secret) < 32 {
		return nil, errors.New("signed state: el secret requiere al menos 32 bytes")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SignedStateCodec{secret: secret, ttl: ttl}, nil
}

// NewState emite un state firmado para (tenant, provider). El nonce garantiza
// unicidad entre emisiones con claims idénticos.
func (c *SignedStateCodec) NewState(tenantID, providerID string) (string, error) {
	nonce, err := tokens.GenerateOpaqueToken(signedStateNonceLen)
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := StateClaims{
		TenantID:   tenantID,
		ProviderID: providerID,
		Nonce:      nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    signedStateIssuer,
			Audience:  jwt.ClaimStrings{signedStateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Parse valida firma, expiración, issuer y audience, y retorna los claims.
func (c *SignedStateCodec) Parse(state string) (*StateClaims, error) {
	var claims StateClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("alg inesperado: %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithIssuer(signedStateIssuer),
		jwt.WithAudience(signedStateAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadState, err)
	}
	if claims.TenantID == "" || claims.ProviderID == "" || claims.Nonce == "" {
		return nil, fmt.Errorf("%w: claims incompletos", ErrBadState)
	}
	return &claims, nil
}
