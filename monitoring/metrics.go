package monitoring

import (
	"net/http"
	"time"

	"github.com/mezonai/confheight/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics satisfies the inc/add metrics-sink contract the confirmation
// height processor expects from its collaborator (kind, detail, and an
// optional direction label), backed by Prometheus.
//
// This is not a package-level singleton: the processor is handed an
// explicit *Metrics instance rather than reaching for a global, so
// multiple processors (e.g. in tests) don't clobber each other's
// series.
type Metrics struct {
	counters          *prometheus.CounterVec
	deltas            *prometheus.GaugeVec
	pendingQueueSize  prometheus.Gauge
	traversalDuration prometheus.Histogram
	writeBatchSize    prometheus.Histogram
	panics            prometheus.Counter
}

// New registers a fresh set of confirmation-height metrics against the
// default Prometheus registry. Call once per process; tests that build
// many processors should use NewWithRegisterer with their own registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		counters: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confirmation_height_events_total",
				Help: "Count of confirmation-height processor events by kind and detail.",
			},
			[]string{"kind", "detail"},
		),
		deltas: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "confirmation_height_value",
				Help: "Accumulated values reported by the confirmation-height processor, by kind, detail and direction.",
			},
			[]string{"kind", "detail", "direction"},
		),
		pendingQueueSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "confirmation_height_pending_queue_size",
			Help: "Number of block hashes currently awaiting confirmation-height propagation.",
		}),
		traversalDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name: "confirmation_height_traverse_seconds",
			Help: "Wall-clock duration of a single traverse() call.",
		}),
		writeBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name: "confirmation_height_write_batch_blocks",
			Help: "Number of blocks confirmed per committed write transaction.",
		}),
		panics: f.NewCounter(prometheus.CounterOpts{
			Name: "confirmation_height_worker_panics_total",
			Help: "Number of panics recovered from the confirmation-height worker goroutine.",
		}),
	}
}

// RegisterHandler exposes the default registry's metrics on mux.
func RegisterHandler(mux *http.ServeMux) {
	logx.Info("METRICS", "registering prometheus handler at /metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

// Inc increments a named event counter, e.g.
// Inc("confirmation_height", "invalid_block").
func (m *Metrics) Inc(kind, detail string) {
	m.counters.WithLabelValues(kind, detail).Inc()
}

// Add accumulates a directional value, e.g.
// Add("confirmation_height", "blocks_confirmed", "in", 5).
func (m *Metrics) Add(kind, detail, direction string, value float64) {
	m.deltas.WithLabelValues(kind, detail, direction).Add(value)
}

func (m *Metrics) SetPendingQueueSize(n int) {
	m.pendingQueueSize.Set(float64(n))
}

func (m *Metrics) ObserveTraversalDuration(d time.Duration) {
	m.traversalDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveWriteBatchSize(blocks int) {
	m.writeBatchSize.Observe(float64(blocks))
}

func (m *Metrics) IncreasePanicCount() {
	m.panics.Inc()
}
