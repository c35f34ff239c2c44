// Package metrics exposes pipeline counters on a private registry so no
// global collector state leaks between instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Delivered          prometheus.Counter
	DeliveryFailed     prometheus.Counter
	BroadcastSent      prometheus.Counter
	BroadcastFailed    prometheus.Counter
	ShortenerFallbacks prometheus.Counter
	GateBlocks         prometheus.Counter
	InvalidLinks       prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Delivered: f.NewCounter(prometheus.CounterOpts{
			Name: "vaultbot_files_delivered_total",
			Help: "Content copies delivered to users.",
		}),
		DeliveryFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "vaultbot_delivery_failures_total",
			Help: "Per-item delivery failures.",
		}),
		BroadcastSent: f.NewCounter(prometheus.CounterOpts{
			Name: "vaultbot_broadcast_sent_total",
			Help: "Broadcast messages delivered.",
		}),
		BroadcastFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "vaultbot_broadcast_failed_total",
			Help: "Broadcast recipients that could not be reached.",
		}),
		ShortenerFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "vaultbot_shortener_fallbacks_total",
			Help: "Verification links served unshortened after provider failure.",
		}),
		GateBlocks: f.NewCounter(prometheus.CounterOpts{
			Name: "vaultbot_gate_blocks_total",
			Help: "Requests halted by the membership gate.",
		}),
		InvalidLinks: f.NewCounter(prometheus.CounterOpts{
			Name: "vaultbot_invalid_links_total",
			Help: "Payloads that decoded to the invalid sentinel.",
		}),
	}
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
