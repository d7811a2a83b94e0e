package middlewares

import "net/http"

// WithNoStore agrega Cache-Control: no-store a la respuesta. Obligatorio en
// los redirects de autorización: llevan state y parámetros PKCE.
func WithNoStore() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
