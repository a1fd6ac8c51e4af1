// Package metrics collects business counters for the assistant service.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// AssistantMetrics tracks ask and upload activity.
type AssistantMetrics struct {
	asksTotal      uint64
	asksGrounded   uint64
	asksGeneral    uint64
	asksNoMaterial uint64
	asksErrors     uint64

	uploadsAccepted uint64
	uploadsRejected uint64

	indexJobsCompleted uint64
	indexJobsFailed    uint64
	chunksIndexed      uint64

	startTime time.Time
}

var (
	global *AssistantMetrics
	once   sync.Once
)

// Get returns the process-wide metrics instance.
func Get() *AssistantMetrics {
	once.Do(func() {
		global = New()
	})
	return global
}

// New returns an isolated metrics instance.
func New() *AssistantMetrics {
	return &AssistantMetrics{startTime: time.Now()}
}

// AskOutcome classifies how an ask request resolved.
type AskOutcome int

const (
	AskGrounded AskOutcome = iota
	AskGeneral
	AskNoMaterial
	AskError
)

// RecordAsk records one ask request and its outcome.
func (m *AssistantMetrics) RecordAsk(outcome AskOutcome) {
	atomic.AddUint64(&m.asksTotal, 1)
	switch outcome {
	case AskGrounded:
		atomic.AddUint64(&m.asksGrounded, 1)
	case AskGeneral:
		atomic.AddUint64(&m.asksGeneral, 1)
	case AskNoMaterial:
		atomic.AddUint64(&m.asksNoMaterial, 1)
	case AskError:
		atomic.AddUint64(&m.asksErrors, 1)
	}
}

// RecordUpload records an upload attempt.
func (m *AssistantMetrics) RecordUpload(accepted bool) {
	if accepted {
		atomic.AddUint64(&m.uploadsAccepted, 1)
	} else {
		atomic.AddUint64(&m.uploadsRejected, 1)
	}
}

// RecordIndexJob records a finished background indexing job.
func (m *AssistantMetrics) RecordIndexJob(chunks int, err error) {
	if err != nil {
		atomic.AddUint64(&m.indexJobsFailed, 1)
		return
	}
	atomic.AddUint64(&m.indexJobsCompleted, 1)
	atomic.AddUint64(&m.chunksIndexed, uint64(chunks))
}

// Snapshot returns all counters as a flat map for the stats endpoint.
func (m *AssistantMetrics) Snapshot() map[string]any {
	return map[string]any{
		"asks_total":           atomic.LoadUint64(&m.asksTotal),
		"asks_grounded":        atomic.LoadUint64(&m.asksGrounded),
		"asks_general":         atomic.LoadUint64(&m.asksGeneral),
		"asks_no_material":     atomic.LoadUint64(&m.asksNoMaterial),
		"asks_errors":          atomic.LoadUint64(&m.asksErrors),
		"uploads_accepted":     atomic.LoadUint64(&m.uploadsAccepted),
		"uploads_rejected":     atomic.LoadUint64(&m.uploadsRejected),
		"index_jobs_completed": atomic.LoadUint64(&m.indexJobsCompleted),
		"index_jobs_failed":    atomic.LoadUint64(&m.indexJobsFailed),
		"chunks_indexed":       atomic.LoadUint64(&m.chunksIndexed),
		"uptime_seconds":       time.Since(m.startTime).Seconds(),
	}
}
