package hdmint

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes wallet gauges and counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	poolSize        prometheus.Gauge
	lastUsedCount   prometheus.Gauge
	trackedMints    prometheus.Gauge
	mintsFound      prometheus.Counter
	mintsArchived   prometheus.Counter
	orphanRollbacks prometheus.Counter
}

// NewMetrics creates the wallet metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hdmint_pool_size",
			Help: "Number of look-ahead candidates in the mint pool.",
		}),
		lastUsedCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hdmint_last_used_count",
			Help: "Highest counter seen on chain.",
		}),
		trackedMints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hdmint_tracked_mints",
			Help: "Mints in the tracker's active index.",
		}),
		mintsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hdmint_mints_found_total",
			Help: "Deterministic mints discovered on chain.",
		}),
		mintsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hdmint_mints_archived_total",
			Help: "Mints archived after a failed chain lookup.",
		}),
		orphanRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hdmint_orphan_rollbacks_total",
			Help: "Mints rolled back to unconfirmed after a reorg.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.poolSize, m.lastUsedCount, m.trackedMints,
		m.mintsFound, m.mintsArchived, m.orphanRollbacks,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) setPoolSize(n int) {
	if m != nil {
		m.poolSize.Set(float64(n))
	}
}

func (m *Metrics) setLastUsed(count uint32) {
	if m != nil {
		m.lastUsedCount.Set(float64(count))
	}
}

func (m *Metrics) setTracked(n int) {
	if m != nil {
		m.trackedMints.Set(float64(n))
	}
}

func (m *Metrics) mintFound() {
	if m != nil {
		m.mintsFound.Inc()
	}
}

func (m *Metrics) mintArchived() {
	if m != nil {
		m.mintsArchived.Inc()
	}
}

func (m *Metrics) orphanRolledBack() {
	if m != nil {
		m.orphanRollbacks.Inc()
	}
}
