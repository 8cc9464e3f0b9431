package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InventoryMetrics records ledger operation outcomes.
type InventoryMetrics struct {
	operations   *prometheus.CounterVec
	shortEnds    prometheus.Counter
	feetExposed  *prometheus.CounterVec
	saveDuration *prometheus.HistogramVec
}

// NewInventoryMetrics registers the inventory metrics on reg. A nil registerer
// yields a recorder that drops everything.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rolltrack_operations_total",
		Help: "Ledger operations by name and outcome.",
	}, []string{"op", "outcome"})
	shortEnds := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rolltrack_short_ends_created_total",
		Help: "Short end rolls created by unloads.",
	})
	feetExposed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rolltrack_feet_exposed_total",
		Help: "Feet of stock exposed, by emulsion.",
	}, []string{"emulsion"})
	saveDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rolltrack_save_duration_seconds",
		Help:    "Time spent persisting a project collection.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})
	reg.MustRegister(operations, shortEnds, feetExposed, saveDuration)
	return &InventoryMetrics{
		operations:   operations,
		shortEnds:    shortEnds,
		feetExposed:  feetExposed,
		saveDuration: saveDuration,
	}
}

// ObserveOperation counts one operation; err decides the outcome label.
func (m *InventoryMetrics) ObserveOperation(op string, err error) {
	if m == nil || m.operations == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(normalizeLabel(op), outcome).Inc()
}

// IncShortEnds counts a newly created short end.
func (m *InventoryMetrics) IncShortEnds() {
	if m == nil || m.shortEnds == nil {
		return
	}
	m.shortEnds.Inc()
}

// AddFeetExposed adds exposed footage for emulsion.
func (m *InventoryMetrics) AddFeetExposed(emulsion string, ft float64) {
	if m == nil || m.feetExposed == nil || ft <= 0 {
		return
	}
	m.feetExposed.WithLabelValues(normalizeLabel(emulsion)).Add(ft)
}

// ObserveSave records how long a save to backend took.
func (m *InventoryMetrics) ObserveSave(backend string, d time.Duration) {
	if m == nil || m.saveDuration == nil {
		return
	}
	m.saveDuration.WithLabelValues(normalizeLabel(backend)).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
