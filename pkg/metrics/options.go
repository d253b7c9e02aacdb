// Package metrics provides Prometheus metrics for the gigledger coordination layer.
package metrics

import (
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager before its collectors are registered.
type Option func(*Manager)

// WithNamespace replaces the "gigledger" namespace. Empty keeps the default.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem replaces the "ledger" subsystem. Empty keeps the default.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets sets the millisecond buckets shared by the query,
// submit, confirmation and HTTP latency histograms. The slice is copied
// and sorted.
func WithLatencyBuckets(ms []float64) Option {
	return func(m *Manager) {
		if len(ms) == 0 {
			return
		}
		b := slices.Clone(ms)
		slices.Sort(b)
		m.histogramBuckets = slices.Compact(b)
	}
}

// WithRecording turns the ledger query, submit, transaction and
// confirmation recorders on or off. Collectors are registered either way.
func WithRecording(on bool) Option {
	return func(m *Manager) {
		m.enabled = on
	}
}

// WithConstLabels adds labels such as chain or network to every series.
// Repeated calls merge; later values win.
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		for k, v := range labels {
			m.customLabels[k] = v
		}
	}
}

// WithMetricPrefix prepends prefix to every metric name after the subsystem.
// Surrounding underscores are dropped.
func WithMetricPrefix(prefix string) Option {
	return func(m *Manager) {
		m.metricPrefix = strings.Trim(prefix, "_")
	}
}

// WithRegisterer registers collectors on r instead of the default registerer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}
