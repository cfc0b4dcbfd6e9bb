package server

import (
	"sync"
	"time"
)

// Metrics holds in-process counters exported on /metrics.
type Metrics struct {
	mu sync.RWMutex

	// Upload metrics, by media kind ("video", "image")
	uploadsTotal        map[string]int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	// Streaming metrics
	streamsTotal      int64
	streamBytesTotal  int64
	streamErrorsTotal int64

	// Media deletions, by kind
	deletesTotal map[string]int64

	// News store operations, by operation name
	newsOpsTotal    map[string]int64
	newsErrorsTotal int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

func newMetrics() *Metrics {
	return &Metrics{
		uploadsTotal: make(map[string]int64),
		deletesTotal: make(map[string]int64),
		newsOpsTotal: make(map[string]int64),
	}
}

var globalMetrics = newMetrics()

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordUpload records a successful upload of the given media kind.
func (m *Metrics) RecordUpload(kind string, bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal[kind]++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

// RecordUploadError records an upload error
func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

// RecordStream records a media object streamed to a client.
func (m *Metrics) RecordStream(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamsTotal++
	m.streamBytesTotal += bytes
}

// RecordStreamError records a failed stream.
func (m *Metrics) RecordStreamError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamErrorsTotal++
}

// RecordDelete records a deleted media object.
func (m *Metrics) RecordDelete(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletesTotal[kind]++
}

// RecordNewsOp records a news store call. Failed calls that are not
// "not found" also bump the error counter.
func (m *Metrics) RecordNewsOp(op string, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newsOpsTotal[op]++
	if failed {
		m.newsErrorsTotal++
	}
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var uploads int64
	for _, n := range m.uploadsTotal {
		uploads += n
	}

	return MetricsSnapshot{
		UploadsByKind:       copyCounts(m.uploadsTotal),
		UploadBytesTotal:    m.uploadBytesTotal,
		UploadErrorsTotal:   m.uploadErrorsTotal,
		UploadAvgDurationMs: avgDuration(m.uploadDurationTotal, uploads),
		StreamsTotal:        m.streamsTotal,
		StreamBytesTotal:    m.streamBytesTotal,
		StreamErrorsTotal:   m.streamErrorsTotal,
		DeletesByKind:       copyCounts(m.deletesTotal),
		NewsOpsTotal:        copyCounts(m.newsOpsTotal),
		NewsErrorsTotal:     m.newsErrorsTotal,
		RequestsTotal:       m.requestsTotal,
		RequestErrors5xx:    m.requestErrors5xx,
		RequestErrors4xx:    m.requestErrors4xx,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	UploadsByKind       map[string]int64 `json:"uploads_by_kind"`
	UploadBytesTotal    int64            `json:"upload_bytes_total"`
	UploadErrorsTotal   int64            `json:"upload_errors_total"`
	UploadAvgDurationMs float64          `json:"upload_avg_duration_ms"`

	StreamsTotal      int64 `json:"streams_total"`
	StreamBytesTotal  int64 `json:"stream_bytes_total"`
	StreamErrorsTotal int64 `json:"stream_errors_total"`

	DeletesByKind map[string]int64 `json:"deletes_by_kind"`

	NewsOpsTotal    map[string]int64 `json:"news_ops_total"`
	NewsErrorsTotal int64            `json:"news_errors_total"`

	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
