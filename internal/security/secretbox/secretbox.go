// Package secretbox cifra valores sensibles (client secrets de providers) en reposo
// usando AES-256-GCM con una clave maestra tomada de SECRETBOX_MASTER_KEY (base64).
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	secretBoxEnvVar   = "SECRETBOX_MASTER_KEY"
	nonceSizeGCM      = 12  // AES-GCM nonce recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

var (
	masterKey     []byte
	masterKeyOnce sync.Once
	loadErr       error
	mu            sync.RWMutex
)

// ensureLoaded carga la clave maestra desde SECRETBOX_MASTER_KEY (base64) una sola vez.
func ensureLoaded() error {
	masterKeyOnce.Do(func() {
		kb64 := strings.TrimSpace(os.Getenv(secretBoxEnvVar))
		if kb64 == "" {
			loadErr = fmt.Errorf("%s no seteada; genere una clave con: openssl rand -base64 32", secretBoxEnvVar)
			return
		}
		k, err := base64.StdEncoding.DecodeString(kb64)
		if err != nil {
			loadErr = fmt.Errorf("%s no es base64 válido: %w", secretBoxEnvVar, err)
			return
		}
		if len(k) != requiredKeyLength {
			loadErr = fmt.Errorf("%s debe decodificar a %d bytes, tiene %d", secretBoxEnvVar, requiredKeyLength, len(k))
			return
		}
		mu.Lock()
		masterKey = k
		mu.Unlock()
	})
	return loadErr
}

func gcm() (cipher.AEAD, error) {
	mu.RLock()
	k := masterKey
	mu.RUnlock()
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt cifra plaintext y retorna "nonceB64|ciphertextB64".
func Encrypt(plaintext string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	aead, err := gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt descifra un valor producido por Encrypt.
// Retorna error si el formato es inválido o la autenticación GCM falla.
func Decrypt(enc string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	parts := strings.SplitN(enc, sep, 2)
	if len(parts) != 2 {
		return "", errors.New("secretbox: formato inválido (se espera nonce|ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSizeGCM {
		return "", errors.New("secretbox: nonce inválido")
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", errors.New("secretbox: ciphertext inválido")
	}
	aead, err := gcm()
	if err != nil {
		return "", err
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("secretbox: autenticación falló: %w", err)
	}
	return string(pt), nil
}

// UnsafeResetSecretBoxForTests resetea el estado global. SOLO para tests.
func UnsafeResetSecretBoxForTests() {
	mu.Lock()
	defer mu.Unlock()
	masterKey = nil
	loadErr = nil
	masterKeyOnce = sync.Once{}
}
