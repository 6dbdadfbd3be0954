// Package metrics exposes the collector's own health counters.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CycleStatusOK     = "ok"
	CycleStatusFailed = "failed"

	BatchStatusSent   = "sent"
	BatchStatusFailed = "failed"
)

// CollectorMetrics captures collection-cycle health signals.
type CollectorMetrics struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	eventsBuilt   *prometheus.CounterVec
	batches       *prometheus.CounterVec
	eventsShipped *prometheus.CounterVec
}

var (
	collectorMetricsOnce sync.Once
	collectorMetrics     *CollectorMetrics
)

// Collector returns the singleton collector metrics registry.
func Collector() *CollectorMetrics {
	collectorMetricsOnce.Do(func() {
		collectorMetrics = newCollectorMetrics(prometheus.DefaultRegisterer)
	})
	return collectorMetrics
}

// ResetCollectorMetricsForTest unregisters the singleton's collectors and
// clears it so the next Collector call builds a fresh set.
func ResetCollectorMetricsForTest() {
	if collectorMetrics != nil {
		prometheus.Unregister(collectorMetrics.cycles)
		prometheus.Unregister(collectorMetrics.cycleDuration)
		prometheus.Unregister(collectorMetrics.eventsBuilt)
		prometheus.Unregister(collectorMetrics.batches)
		prometheus.Unregister(collectorMetrics.eventsShipped)
	}
	collectorMetricsOnce = sync.Once{}
	collectorMetrics = nil
}

func newCollectorMetrics(registerer prometheus.Registerer) *CollectorMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_collector_cycles_total",
		Help: "Collection cycles by outcome.",
	}, []string{"status"})
	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "usage_collector_cycle_duration_seconds",
		Help:    "Wall time of one full collection cycle.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
	eventsBuilt := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_collector_events_built_total",
		Help: "Usage events produced by the transform layer, per source.",
	}, []string{"source"})
	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_collector_delivery_batches_total",
		Help: "Delivery batches by outcome.",
	}, []string{"status"})
	eventsShipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_collector_delivery_events_total",
		Help: "Events handed to the accounting API by outcome.",
	}, []string{"status"})

	registerer.MustRegister(cycles, cycleDuration, eventsBuilt, batches, eventsShipped)

	return &CollectorMetrics{
		cycles:        cycles,
		cycleDuration: cycleDuration,
		eventsBuilt:   eventsBuilt,
		batches:       batches,
		eventsShipped: eventsShipped,
	}
}

func (m *CollectorMetrics) IncCycle(status string) {
	m.cycles.WithLabelValues(status).Inc()
}

func (m *CollectorMetrics) ObserveCycleDuration(d time.Duration) {
	m.cycleDuration.Observe(d.Seconds())
}

func (m *CollectorMetrics) AddEventsBuilt(source string, count int) {
	m.eventsBuilt.WithLabelValues(source).Add(float64(count))
}

func (m *CollectorMetrics) IncBatch(status string) {
	m.batches.WithLabelValues(status).Inc()
}

func (m *CollectorMetrics) AddEventsShipped(status string, count int) {
	m.eventsShipped.WithLabelValues(status).Add(float64(count))
}
