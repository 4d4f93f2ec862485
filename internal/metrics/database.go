package metrics

import (
	"sync"
	"time"

	"lendmark/internal/database"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	dbQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Help:      "Duration of database statements, by statement kind and outcome.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"op", "outcome"})

	poolMu     sync.RWMutex
	poolSource func() database.PoolStats
)

func init() {
	Registry.MustRegister(
		dbQueryDuration,
		poolGauge("acquired_conns", "Connections currently checked out of the pool.",
			func(s database.PoolStats) float64 { return float64(s.Acquired) }),
		poolGauge("idle_conns", "Idle connections held by the pool.",
			func(s database.PoolStats) float64 { return float64(s.Idle) }),
		poolGauge("total_conns", "Connections currently open.",
			func(s database.PoolStats) float64 { return float64(s.Total) }),
		poolGauge("max_conns", "Configured pool size.",
			func(s database.PoolStats) float64 { return float64(s.Max) }),
		poolCounter("wait_total", "Acquires that waited for a free connection.",
			func(s database.PoolStats) float64 { return float64(s.WaitCount) }),
	)
}

// ObserveQuery matches postgres.QueryObserver.
func ObserveQuery(op string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	dbQueryDuration.WithLabelValues(op, outcome).Observe(took.Seconds())
}

// TrackPool points the pool gauges at p. A later call replaces the source;
// nil resets the gauges to zero.
func TrackPool(p database.StatsProvider) {
	poolMu.Lock()
	defer poolMu.Unlock()
	if p == nil {
		poolSource = nil
		return
	}
	poolSource = p.Stats
}

func currentPoolStats() database.PoolStats {
	poolMu.RLock()
	src := poolSource
	poolMu.RUnlock()
	if src == nil {
		return database.PoolStats{}
	}
	return src()
}

func poolGauge(name, help string, pick func(database.PoolStats) float64) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      name,
		Help:      help,
	}, func() float64 { return pick(currentPoolStats()) })
}

func poolCounter(name, help string, pick func(database.PoolStats) float64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      name,
		Help:      help,
	}, func() float64 { return pick(currentPoolStats()) })
}
