// Package cache provee una abstracción mínima de cache con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing y single-node)
//   - Redis (distribuido, para producción)
//
// Se usa para el cache acotado por TTL de client registrations (§ registration
// resolver); las lecturas son lock-free en ambos backends y la invalidación es
// por key exacta, sin bloquear lecturas de otras keys.
package cache

import "time"

// Cache define las operaciones mínimas que necesita el resolver.
type Cache interface {
	// Get obtiene un valor. El segundo retorno indica si la key existía.
	Get(k string) ([]byte, bool)

	// Set guarda un valor con TTL. Si ttl es 0 usa el default del backend.
	Set(k string, v []byte, ttl time.Duration)

	// Delete elimina una key (invalidación explícita).
	Delete(k string)
}

// Config configuración para construir un cache.
type Config struct {
	Kind   string // "memory" | "redis"
	Addr   string // redis
	DB     int    // redis
	Prefix string // prefijo para todas las keys
}
