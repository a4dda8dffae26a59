package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	attachmentStagedTotal        atomic.Uint64
	attachmentRetiredTotal       atomic.Uint64
	attachmentDiscardedTotal     atomic.Uint64
	attachmentCleanupFailedTotal atomic.Uint64
	attachmentRejectedTotal      atomic.Uint64

	stageDuration = newHistogram([]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000})
)

// IncAttachmentStaged increments the staged counter.
func IncAttachmentStaged() {
	attachmentStagedTotal.Add(1)
}

// IncAttachmentRetired increments the retired counter.
func IncAttachmentRetired() {
	attachmentRetiredTotal.Add(1)
}

// IncAttachmentDiscarded increments the discarded counter.
func IncAttachmentDiscarded() {
	attachmentDiscardedTotal.Add(1)
}

// IncAttachmentCleanupFailed increments the cleanup-failure counter.
func IncAttachmentCleanupFailed() {
	attachmentCleanupFailedTotal.Add(1)
}

// IncAttachmentRejected increments the rejected-upload counter.
func IncAttachmentRejected() {
	attachmentRejectedTotal.Add(1)
}

// ObserveStageDurationMs records an attachment staging duration in milliseconds.
func ObserveStageDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	stageDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "attachment_staged_total", "Total attachments staged", attachmentStagedTotal.Load())
	writeCounter(&buf, "attachment_retired_total", "Total superseded attachments retired", attachmentRetiredTotal.Load())
	writeCounter(&buf, "attachment_discarded_total", "Total uncommitted attachments discarded", attachmentDiscardedTotal.Load())
	writeCounter(&buf, "attachment_cleanup_failed_total", "Total best-effort attachment deletes that failed", attachmentCleanupFailedTotal.Load())
	writeCounter(&buf, "attachment_rejected_total", "Total uploads rejected for mime type or size", attachmentRejectedTotal.Load())
	writeHistogram(&buf, "attachment_stage_duration_ms", "Attachment staging duration in milliseconds", stageDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
