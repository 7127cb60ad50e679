// Package metrics defines Laplace's Prometheus collectors, following
// REPRAM's internal/node/server.go construction-and-MustRegister idiom: a
// fixed set of vectors built once at startup and handed to whichever
// package updates them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the core emits. The outer HTTP layer's
// own request metrics are out of scope (spec.md Non-goals §4.1); these
// cover the core's own concerns: mailbox depth, lapp lifecycle, gossip
// peers, and host-import latency.
type Metrics struct {
	MailboxDepth      *prometheus.GaugeVec
	LappLoadTotal     *prometheus.CounterVec
	LappUnloadTotal   *prometheus.CounterVec
	GossipPeers       *prometheus.GaugeVec
	HostImportLatency *prometheus.HistogramVec
}

// New builds and registers every collector against reg. Passing a fresh
// *prometheus.Registry (rather than the global DefaultRegisterer) keeps
// repeated construction in tests from panicking on duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MailboxDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "laplace_lapp_mailbox_depth",
				Help: "Number of messages queued in a lapp's service actor mailbox.",
			},
			[]string{"lapp"},
		),
		LappLoadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laplace_lapp_load_total",
				Help: "Total number of times a lapp has been loaded.",
			},
			[]string{"lapp"},
		),
		LappUnloadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laplace_lapp_unload_total",
				Help: "Total number of times a lapp has been unloaded.",
			},
			[]string{"lapp"},
		),
		GossipPeers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "laplace_gossip_peers",
				Help: "Number of known peers in a lapp's gossip peer table.",
			},
			[]string{"lapp"},
		),
		HostImportLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "laplace_host_import_duration_seconds",
				Help:    "Latency of a C7 host import call as seen by the host.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"lapp", "import"},
		),
	}
	reg.MustRegister(m.MailboxDepth, m.LappLoadTotal, m.LappUnloadTotal, m.GossipPeers, m.HostImportLatency)
	return m
}

// ObserveHostImport records how long a host import call took, for the
// import named by kind ("db_execute", "invoke_http", "invoke_sleep", ...).
func (m *Metrics) ObserveHostImport(lapp, kind string, start time.Time) {
	m.HostImportLatency.WithLabelValues(lapp, kind).Observe(time.Since(start).Seconds())
}
