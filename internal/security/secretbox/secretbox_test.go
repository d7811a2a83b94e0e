package secretbox

import (
	"encoding/base64"
	"os"
	"strings"
	"testing"
)

func setKey(t *testing.T, seed byte) {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	os.Setenv("SECRETBOX_MASTER_KEY", base64.StdEncoding.EncodeToString(raw))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	UnsafeResetSecretBoxForTests()
	setKey(t, 1)

	msg := "super-secret-client-secret ✓"
	ct, err := Encrypt(msg)
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	pt, err := Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt err: %v", err)
	}
	if pt != msg {
		t.Fatalf("plaintext mismatch: got %q want %q", pt, msg)
	}
}

func TestDecrypt_DetectsTamper(t *testing.T) {
	UnsafeResetSecretBoxForTests()
	setKey(t, 100)

	ct, err := Encrypt("top secret")
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	parts := strings.Split(ct, "|")
	if len(parts) != 2 {
		t.Fatalf("unexpected ct format")
	}
	bs, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatal(err)
	}
	bs[0] ^= 0x01 // flip
	corrupted := parts[0] + "|" + base64.StdEncoding.EncodeToString(bs)

	if _, err := Decrypt(corrupted); err == nil {
		t.Fatalf("expected auth error, got nil")
	}
}

func TestEncrypt_ErrorWhenNoKey(t *testing.T) {
	UnsafeResetSecretBoxForTests()
	os.Unsetenv("SECRETBOX_MASTER_KEY")

	if _, err := Encrypt("x"); err == nil {
		t.Fatalf("expected error when key missing")
	}
}
