package authorize

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var signKey = []byte("una-clave-de-al-menos-32-bytes!!")

func TestSignedStateRoundtrip(t *testing.T) {
	codec, err := NewSignedStateCodec(signKey, time.Minute)
	if err != nil {
		t.Fatalf("NewSignedStateCodec: %v", err)
	}

	s1, err := codec.NewState("acme", "google")
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	s2, err := codec.NewState("acme", "google")
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if s1 == s2 {
		t.Fatal("dos emisiones con claims iguales deben diferir por el nonce")
	}

	claims, err := codec.Parse(s1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.TenantID != "acme" || claims.ProviderID != "google" || claims.Nonce == "" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestSignedStateTamper(t *testing.T) {
	codec, _ := NewSignedStateCodec(signKey, time.Minute)
	s, err := codec.NewState("acme", "google")
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		t.Fatalf("JWT con %d partes", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + parts[2][:len(parts[2])-2] + "xx"
	if _, err := codec.Parse(tampered); !errors.Is(err, ErrBadState) {
		t.Fatalf("err = %v, esperaba ErrBadState para firma alterada", err)
	}
}

func TestSignedStateOtraClave(t *testing.T) {
	codec1, _ := NewSignedStateCodec(signKey, time.Minute)
	codec2, _ := NewSignedStateCodec([]byte("otra-clave-distinta-de-32-bytes!"), time.Minute)

	s, err := codec1.NewState("acme", "google")
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if _, err := codec2.Parse(s); !errors.Is(err, ErrBadState) {
		t.Fatalf("err = %v, esperaba ErrBadState con otra clave", err)
	}
}

func TestSignedStateExpirado(t *testing.T) {
	codec, _ := NewSignedStateCodec(signKey, time.Millisecond)
	s, err := codec.NewState("acme", "google")
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := codec.Parse(s); !errors.Is(err, ErrBadState) {
		t.Fatalf("err = %v, esperaba ErrBadState para state expirado", err)
	}
}

func TestSignedStateClaveCorta(t *testing.T) {
	if _, err := NewSignedStateCodec([]byte("corta"), time.Minute); err == nil {
		t.Fatal("esperaba error para clave de menos de 32 bytes")
	}
}
