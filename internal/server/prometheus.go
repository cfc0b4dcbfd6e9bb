// prometheus.go - Prometheus text exposition of the in-process metrics.
package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// PrometheusExporter renders Metrics in the Prometheus text format.
type PrometheusExporter struct {
	metrics *Metrics
	version string
}

// NewPrometheusExporter creates an exporter over m.
func NewPrometheusExporter(m *Metrics, version string) *PrometheusExporter {
	return &PrometheusExporter{metrics: m, version: version}
}

// Handler returns an HTTP handler for the /metrics endpoint
func (p *PrometheusExporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(p.render()))
	}
}

func (p *PrometheusExporter) render() string {
	s := p.metrics.Snapshot()
	var out strings.Builder

	metric := func(name, typ, help string) {
		fmt.Fprintf(&out, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, typ)
	}
	labeled := func(name, label string, counts map[string]int64) {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&out, "%s{%s=\"%s\"} %d\n", name, label, prometheusLabel(k), counts[k])
		}
		out.WriteString("\n")
	}

	metric("estadia_info", "gauge", "Application version info")
	fmt.Fprintf(&out, "estadia_info{version=\"%s\"} 1\n\n", prometheusLabel(p.version))

	metric("estadia_requests_total", "counter", "Total number of HTTP requests")
	fmt.Fprintf(&out, "estadia_requests_total %d\n\n", s.RequestsTotal)

	metric("estadia_request_errors_total", "counter", "HTTP responses with an error status")
	fmt.Fprintf(&out, "estadia_request_errors_total{class=\"4xx\"} %d\n", s.RequestErrors4xx)
	fmt.Fprintf(&out, "estadia_request_errors_total{class=\"5xx\"} %d\n\n", s.RequestErrors5xx)

	metric("estadia_uploads_total", "counter", "Uploaded media files by kind")
	labeled("estadia_uploads_total", "kind", s.UploadsByKind)

	metric("estadia_upload_bytes_total", "counter", "Bytes received in uploads")
	fmt.Fprintf(&out, "estadia_upload_bytes_total %d\n\n", s.UploadBytesTotal)

	metric("estadia_upload_errors_total", "counter", "Failed uploads")
	fmt.Fprintf(&out, "estadia_upload_errors_total %d\n\n", s.UploadErrorsTotal)

	metric("estadia_streams_total", "counter", "Media objects streamed to clients")
	fmt.Fprintf(&out, "estadia_streams_total %d\n\n", s.StreamsTotal)

	metric("estadia_stream_bytes_total", "counter", "Bytes streamed to clients")
	fmt.Fprintf(&out, "estadia_stream_bytes_total %d\n\n", s.StreamBytesTotal)

	metric("estadia_deletes_total", "counter", "Deleted media by kind")
	labeled("estadia_deletes_total", "kind", s.DeletesByKind)

	metric("estadia_news_ops_total", "counter", "News store calls by operation")
	labeled("estadia_news_ops_total", "op", s.NewsOpsTotal)

	metric("estadia_news_errors_total", "counter", "News store calls that failed with an I/O error")
	fmt.Fprintf(&out, "estadia_news_errors_total %d\n\n", s.NewsErrorsTotal)

	metric("estadia_request_duration_ms", "summary", "Request latency percentiles by route")
	for _, route := range routesWithDurations() {
		p50, p95, p99 := GetRequestDurationPercentiles(route)
		r := prometheusLabel(route)
		fmt.Fprintf(&out, "estadia_request_duration_ms{route=\"%s\",quantile=\"0.5\"} %.3f\n", r, p50)
		fmt.Fprintf(&out, "estadia_request_duration_ms{route=\"%s\",quantile=\"0.95\"} %.3f\n", r, p95)
		fmt.Fprintf(&out, "estadia_request_duration_ms{route=\"%s\",quantile=\"0.99\"} %.3f\n", r, p99)
	}
	out.WriteString("\n")

	metric("estadia_uptime_seconds", "counter", "Application uptime in seconds")
	fmt.Fprintf(&out, "estadia_uptime_seconds %.0f\n", time.Since(serverStartTime).Seconds())

	return out.String()
}

// prometheusLabel escapes quotes and backslashes in a label value.
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}

// routeLabel collapses a request path to its route so that label
// cardinality stays bounded.
func routeLabel(path string) string {
	for _, prefix := range []string{"/news/", "/videos/", "/images/", "/delete_video/", "/static/videos/", "/static/images/"} {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
			return prefix + "{id}"
		}
	}
	switch path {
	case "/news", "/videos", "/images", "/upload_video", "/upload_image",
		"/health", "/ready", "/live", "/metrics":
		return path
	}
	return "other"
}

// durationSamples keeps recent request durations per route.
type durationSamples struct {
	mu               sync.RWMutex
	requestDurations map[string][]float64
}

const maxDurationSamples = 1000

var (
	metricsSummary = &durationSamples{
		requestDurations: make(map[string][]float64),
	}
	serverStartTime = time.Now()
)

// RecordRequestDuration records the duration of a request for percentile metrics
func RecordRequestDuration(route string, durationMs float64) {
	metricsSummary.mu.Lock()
	defer metricsSummary.mu.Unlock()

	durations := append(metricsSummary.requestDurations[route], durationMs)
	if len(durations) > maxDurationSamples {
		durations = durations[len(durations)-maxDurationSamples:]
	}
	metricsSummary.requestDurations[route] = durations
}

// GetRequestDurationPercentiles returns percentile data for request durations
func GetRequestDurationPercentiles(route string) (p50, p95, p99 float64) {
	metricsSummary.mu.RLock()
	durations := metricsSummary.requestDurations[route]
	sorted := make([]float64, len(durations))
	copy(sorted, durations)
	metricsSummary.mu.RUnlock()

	if len(sorted) == 0 {
		return 0, 0, 0
	}
	sort.Float64s(sorted)
	p50 = sorted[len(sorted)*50/100]
	p95 = sorted[len(sorted)*95/100]
	p99 = sorted[len(sorted)*99/100]
	return
}

func routesWithDurations() []string {
	metricsSummary.mu.RLock()
	defer metricsSummary.mu.RUnlock()

	routes := make([]string, 0, len(metricsSummary.requestDurations))
	for r := range metricsSummary.requestDurations {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	return routes
}
