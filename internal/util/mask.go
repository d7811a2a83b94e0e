package util

// Mask enmascara un identificador sensible para logs: conserva los primeros
// 4 caracteres y reemplaza el resto. Nunca usar con secretos completos;
// para client secrets simplemente no loguearlos.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	return s[:4] + "…"
}
