package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// AdvisorMetrics tracks the small set of counters and latency histograms the
// advisor exposes in Prometheus text format. The fixed metric set keeps the
// exposition free of per-query label cardinality.
type AdvisorMetrics struct {
	mu sync.Mutex

	indexBuilds       float64
	graphsIndexed     float64
	filesSkipped      float64
	recommendRequests float64
	cacheHits         float64
	cacheMisses       float64

	recommendSeconds histogram
	indexSeconds     histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

// latencyBuckets are the default histogram bounds in seconds.
func latencyBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
}

// NewAdvisorMetrics creates an empty metric set.
func NewAdvisorMetrics() *AdvisorMetrics {
	return &AdvisorMetrics{
		recommendSeconds: histogram{buckets: latencyBuckets(), counts: make([]uint64, len(latencyBuckets()))},
		indexSeconds:     histogram{buckets: latencyBuckets(), counts: make([]uint64, len(latencyBuckets()))},
	}
}

// ObserveIndex records one catalog build.
func (m *AdvisorMetrics) ObserveIndex(indexed, skipped int, start time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexBuilds++
	m.graphsIndexed += float64(indexed)
	m.filesSkipped += float64(skipped)
	m.indexSeconds.observe(time.Since(start).Seconds())
}

// ObserveRecommend records one recommendation request.
func (m *AdvisorMetrics) ObserveRecommend(start time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recommendRequests++
	m.recommendSeconds.observe(time.Since(start).Seconds())
}

// CacheHit records a recommendation served from the result cache.
func (m *AdvisorMetrics) CacheHit() {
	m.mu.Lock()
	m.cacheHits++
	m.mu.Unlock()
}

// CacheMiss records a recommendation computed fresh.
func (m *AdvisorMetrics) CacheMiss() {
	m.mu.Lock()
	m.cacheMisses++
	m.mu.Unlock()
}

func (h *histogram) observe(v float64) {
	h.sum += v
	h.count++
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
			break
		}
	}
}

// Handler returns an HTTP handler exposing the metrics in Prometheus text
// format.
func (m *AdvisorMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		m.mu.Lock()
		defer m.mu.Unlock()

		writeCounter(w, "advisor_index_builds_total", "Catalog builds performed.", m.indexBuilds)
		writeCounter(w, "advisor_graphs_indexed_total", "Graph records indexed across all builds.", m.graphsIndexed)
		writeCounter(w, "advisor_files_skipped_total", "Graph files skipped across all builds.", m.filesSkipped)
		writeCounter(w, "advisor_recommend_requests_total", "Recommendation requests served.", m.recommendRequests)
		writeCounter(w, "advisor_cache_hits_total", "Recommendation cache hits.", m.cacheHits)
		writeCounter(w, "advisor_cache_misses_total", "Recommendation cache misses.", m.cacheMisses)
		writeHistogram(w, "advisor_index_seconds", "Catalog build latency.", &m.indexSeconds)
		writeHistogram(w, "advisor_recommend_seconds", "Recommendation latency.", &m.recommendSeconds)
	})
}

func writeCounter(w http.ResponseWriter, name, help string, value float64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %s\n",
		name, help, name, name, formatFloat(value))
}

func writeHistogram(w http.ResponseWriter, name, help string, h *histogram) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", name, help, name)
	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += h.counts[i]
		fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", name, h.count)
	fmt.Fprintf(w, "%s_sum %s\n", name, formatFloat(h.sum))
	fmt.Fprintf(w, "%s_count %d\n", name, h.count)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
