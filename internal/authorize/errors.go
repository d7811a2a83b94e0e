package authorize

import "errors"

// Taxonomía de fallas terminales de una resolución. "No match" no es un error:
// Resolve retorna (nil, nil) y el caller pasa el request al siguiente handler.
var (
	// ErrUnknownProvider: el tenant no tiene ese provider configurado.
	// Mapea a 404; no se reintenta.
	ErrUnknownProvider = errors.New("authorize: unknown provider for tenant")

	// ErrConfigUnavailable: el control plane no respondió (timeout/red).
	// Transitorio; mapea a 503 con Retry-After.
	ErrConfigUnavailable = errors.New("authorize: configuration store unavailable")

	// ErrMisconfiguredProvider: la registration existe pero es inusable
	// (template de redirect inválido). Error de configuración del tenant
	// admin; mapea a 500 y se loguea como defecto, no se reintenta.
	ErrMisconfiguredProvider = errors.New("authorize: provider misconfigured")

	// ErrInvalidState: falló la generación de material criptográfico.
	// Fatal para el request; jamás se degrada a un state más débil.
	ErrInvalidState = errors.New("authorize: state generation failed")
)
