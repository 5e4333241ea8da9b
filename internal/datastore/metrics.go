package datastore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const keyTypeLabel = "key_type"

// Metrics counts datastore activity. A nil *Metrics records nothing.
type Metrics struct {
	cntLoads     *prometheus.CounterVec
	cntSaves     *prometheus.CounterVec
	cntDeletes   *prometheus.CounterVec
	cntCacheHits prometheus.Counter
	cntCacheMiss prometheus.Counter
	gaugeCached  prometheus.Gauge
	histSaveDur  prometheus.Histogram
}

// NewMetrics creates the datastore collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cntLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbo_loads_total",
			Help: "Count of objects loaded from the backing store",
		}, []string{keyTypeLabel}),
		cntSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbo_saves_total",
			Help: "Count of objects written to the backing store",
		}, []string{keyTypeLabel}),
		cntDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbo_deletes_total",
			Help: "Count of objects deleted from the backing store",
		}, []string{keyTypeLabel}),
		cntCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dbo_cache_hits_total",
			Help: "Count of loads served from the identity map",
		}),
		cntCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dbo_cache_misses_total",
			Help: "Count of loads that went to the backing store",
		}),
		gaugeCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dbo_cached_objects",
			Help: "Number of objects held in the identity map",
		}),
		histSaveDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dbo_save_duration_seconds",
			Help:    "Histogram of object save times",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}

	for _, c := range []prometheus.Collector{
		m.cntLoads,
		m.cntSaves,
		m.cntDeletes,
		m.cntCacheHits,
		m.cntCacheMiss,
		m.gaugeCached,
		m.histSaveDur,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) loaded(keyType string) {
	if m == nil {
		return
	}
	m.cntLoads.WithLabelValues(keyType).Inc()
}

func (m *Metrics) saved(keyType string, d time.Duration) {
	if m == nil {
		return
	}
	m.cntSaves.WithLabelValues(keyType).Inc()
	m.histSaveDur.Observe(d.Seconds())
}

func (m *Metrics) deleted(keyType string) {
	if m == nil {
		return
	}
	m.cntDeletes.WithLabelValues(keyType).Inc()
}

func (m *Metrics) cacheHit() {
	if m == nil {
		return
	}
	m.cntCacheHits.Inc()
}

func (m *Metrics) cacheMiss() {
	if m == nil {
		return
	}
	m.cntCacheMiss.Inc()
}

func (m *Metrics) setCached(n int) {
	if m == nil {
		return
	}
	m.gaugeCached.Set(float64(n))
}
