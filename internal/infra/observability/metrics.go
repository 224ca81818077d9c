package observability

import (
	"time"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	superseded      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bizdesk_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdesk_external_errors_total",
				Help: "Total errors from the upstream API by kind.",
			},
			[]string{"kind"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdesk_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdesk_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdesk_collection_fetches_total",
				Help: "Total collection list fetches by result.",
			},
			[]string{"collection", "status"},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdesk_collection_mutations_total",
				Help: "Total collection writes by operation and result.",
			},
			[]string{"collection", "op", "status"},
		),
		superseded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizdesk_collection_superseded_total",
				Help: "Responses discarded because a newer request was issued.",
			},
			[]string{"collection"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the upstream error counter.
func (m *Metrics) IncrExternalError(kind string) {
	m.externalErrors.WithLabelValues(kind).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrFetch counts a list fetch with status "success" or "error".
func (m *Metrics) IncrFetch(collection, status string) {
	m.fetches.WithLabelValues(collection, status).Inc()
}

// IncrMutation counts a create/update/remove/archive.
func (m *Metrics) IncrMutation(collection, op, status string) {
	m.mutations.WithLabelValues(collection, op, status).Inc()
}

// IncrSuperseded counts a discarded stale response.
func (m *Metrics) IncrSuperseded(collection string) {
	m.superseded.WithLabelValues(collection).Inc()
}

// GetStoreSnapshot returns a summary of store metrics for GET /v1/metrics/store.
// Counters are cumulative since process start.
func (m *Metrics) GetStoreSnapshot() *domain.StoreMetrics {
	fetchOK := sumCounter(m.fetches, map[string]string{"status": "success"})
	fetchErr := sumCounter(m.fetches, map[string]string{"status": "error"})
	mutOK := sumCounter(m.mutations, map[string]string{"status": "success"})
	mutErr := sumCounter(m.mutations, map[string]string{"status": "error"})
	superseded := sumCounter(m.superseded, nil)
	hits := sumCounter(m.cacheHits, nil)
	misses := sumCounter(m.cacheMisses, nil)
	upstream := sumCounter(m.externalErrors, nil)
	unauthorized := sumCounter(m.externalErrors, map[string]string{"kind": "unauthorized"})

	total := fetchOK + fetchErr + mutOK + mutErr
	errorRate := float64(0)
	cacheHitRate := float64(0)
	if total > 0 {
		errorRate = (fetchErr + mutErr) / total
	}
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.StoreMetrics{
		Fetches:        int64(fetchOK + fetchErr),
		FetchErrors:    int64(fetchErr),
		Mutations:      int64(mutOK + mutErr),
		MutationErrors: int64(mutErr),
		Superseded:     int64(superseded),
		ErrorRate:      errorRate,
		CacheHitRate:   cacheHitRate,
		UpstreamErrors: int64(upstream),
		Unauthorized:   int64(unauthorized),
		Period:         "all_time",
	}
}

// sumCounter adds up every series of cv whose labels match want.
func sumCounter(cv *prometheus.CounterVec, want map[string]string) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil || m.Counter == nil {
			continue
		}
		if !labelsMatch(m.GetLabel(), want) {
			continue
		}
		total += m.Counter.GetValue()
	}
	return total
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	for name, value := range want {
		found := false
		for _, p := range pairs {
			if p.GetName() == name && p.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
