// Package metrics exposes Prometheus collectors for ring membership,
// item routing, data handoff and storage node requests.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ringstore/internal/ring"
	"ringstore/internal/storage"
)

// Metrics holds every collector, registered on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Ring metrics
	Members           prometheus.Gauge
	SlotCount         prometheus.Gauge
	MembershipChanges *prometheus.CounterVec
	Resolves          *prometheus.CounterVec

	// Handoff metrics
	HandoffFiles *prometheus.CounterVec

	// Storage node metrics
	StorageRequests *prometheus.CounterVec
	StoredFiles     prometheus.Gauge
}

// New creates a Metrics instance with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Members: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ring_members",
			Help: "The number of occupied slots on the ring",
		}),
		SlotCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ring_slot_count",
			Help: "The size of the ring's hash space",
		}),
		MembershipChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_membership_changes_total",
				Help: "Node joins and leaves by outcome",
			},
			[]string{"op", "result"},
		),
		Resolves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_resolves_total",
				Help: "Item resolutions by outcome",
			},
			[]string{"result"},
		),
		HandoffFiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_handoff_files_total",
				Help: "Files moved between nodes after membership changes",
			},
			[]string{"direction"},
		),
		StorageRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_requests_total",
				Help: "Storage node RPCs by method and status code",
			},
			[]string{"method", "code"},
		),
		StoredFiles: factory.NewGauge(prometheus.GaugeOpts{
			Name: "storage_files",
			Help: "The number of files held by this storage node",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Result labels an operation outcome.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ring.ErrRingEmpty):
		return "ring_empty"
	case errors.Is(err, ring.ErrSlotCollision):
		return "collision"
	case errors.Is(err, ring.ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, ring.ErrNodeNotFound):
		return "node_not_found"
	case errors.Is(err, storage.ErrNotFound):
		return "file_not_found"
	default:
		return "error"
	}
}
