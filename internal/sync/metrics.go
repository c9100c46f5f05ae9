package sync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the sync cycle. All methods are safe on a nil
// receiver so callers can run uninstrumented.
type Metrics struct {
	saves        *prometheus.CounterVec
	loads        *prometheus.CounterVec
	merges       prometheus.Counter
	pushes       prometheus.Counter
	status       *prometheus.GaugeVec
	saveDuration prometheus.Histogram
}

// NewMetrics registers the sync collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		saves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Subsystem: "sync",
			Name:      "saves_total",
			Help:      "Completed save cycles by result.",
		}, []string{"result"}),
		loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Subsystem: "sync",
			Name:      "loads_total",
			Help:      "Document loads by source and result.",
		}, []string{"source", "result"}),
		merges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Subsystem: "sync",
			Name:      "merges_total",
			Help:      "Saves that required merging newer remote state.",
		}),
		pushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "budgetcore",
			Subsystem: "sync",
			Name:      "remote_pushes_total",
			Help:      "Remote change notifications applied to the store.",
		}),
		status: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "budgetcore",
			Subsystem: "sync",
			Name:      "status",
			Help:      "Current engine status, 1 for the active state.",
		}, []string{"state"}),
		saveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "budgetcore",
			Subsystem: "sync",
			Name:      "save_duration_seconds",
			Help:      "Wall time of a save cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeSave(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	m.saves.WithLabelValues(result).Inc()
	m.saveDuration.Observe(d.Seconds())
}

func (m *Metrics) observeLoad(source string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	m.loads.WithLabelValues(source, result).Inc()
}

func (m *Metrics) observeMerge() {
	if m == nil {
		return
	}
	m.merges.Inc()
}

func (m *Metrics) observePush() {
	if m == nil {
		return
	}
	m.pushes.Inc()
}

var allStatuses = []Status{StatusIdle, StatusSyncing, StatusSynced, StatusError, StatusOffline}

func (m *Metrics) observeStatus(s Status) {
	if m == nil {
		return
	}
	for _, st := range allStatuses {
		v := 0.0
		if st == s {
			v = 1.0
		}
		m.status.WithLabelValues(string(st)).Set(v)
	}
}
