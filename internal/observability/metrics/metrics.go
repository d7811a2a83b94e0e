// Package metrics expone los contadores Prometheus del servicio.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AuthorizeRequests cuenta resoluciones por outcome:
	// redirected | unknown_provider | config_unavailable | misconfigured |
	// state_error.
	AuthorizeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgate",
		Subsystem: "authorize",
		Name:      "requests_total",
		Help:      "Resoluciones de authorization requests por outcome.",
	}, []string{"outcome"})

	// ResolveDuration mide la latencia de la resolución completa (match a
	// redirect), en segundos.
	ResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "authgate",
		Subsystem: "authorize",
		Name:      "resolve_duration_seconds",
		Help:      "Latencia de la resolución de authorization requests.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// AuthorizeInFlight es la cantidad de resoluciones en curso.
	AuthorizeInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "authgate",
		Subsystem: "authorize",
		Name:      "in_flight",
		Help:      "Resoluciones de authorization requests en curso.",
	})

	// RegistrationLookups cuenta lookups al control plane por resultado:
	// hit (cache) | store | not_found | error.
	RegistrationLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgate",
		Subsystem: "controlplane",
		Name:      "registration_lookups_total",
		Help:      "Lookups de client registrations por resultado.",
	}, []string{"result"})

	// CallbacksConsumed cuenta consumos de state en el callback:
	// ok | not_found | mismatch.
	CallbacksConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgate",
		Subsystem: "callback",
		Name:      "states_consumed_total",
		Help:      "Consumos de state en el callback por resultado.",
	}, []string{"result"})
)

// Handler retorna el handler de /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
