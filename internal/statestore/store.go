// Package statestore persiste el material server-side de un authorization
// request en vuelo, keyed por state. El consumo es one-shot: Consume retorna
// la entrada y la borra atómicamente, así un state reutilizado (replay) falla
// en el segundo intento.
package statestore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound: el state no existe, expiró o ya fue consumido.
var ErrNotFound = errors.New("statestore: state not found")

// Entry es el material asociado a un state pendiente.
type Entry struct {
	TenantID     string    `json:"tenant_id"`
	ProviderID   string    `json:"provider_id"`
	RedirectURI  string    `json:"redirect_uri"`
	CodeVerifier string    `json:"code_verifier,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store guarda entradas con TTL y las consume una sola vez.
type Store interface {
	// Put registra la entrada bajo state. Sobrescribir un state existente
	// no ocurre en la práctica (los states son únicos) y es inocuo.
	Put(ctx context.Context, state string, e Entry, ttl time.Duration) error

	// Consume retorna la entrada y la elimina en la misma operación.
	// ErrNotFound si no existe, expiró o ya se consumió.
	Consume(ctx context.Context, state string) (Entry, error)
}
