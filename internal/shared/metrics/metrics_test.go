package metrics

import (
	"strings"
	"testing"
)

func TestRenderExposesAttachmentCounters(t *testing.T) {
	out := Render()
	for _, name := range []string{
		"attachment_staged_total",
		"attachment_retired_total",
		"attachment_discarded_total",
		"attachment_cleanup_failed_total",
		"attachment_rejected_total",
		"attachment_stage_duration_ms_bucket",
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output:\n%s", name, out)
		}
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(5000)

	snap := h.Snapshot()
	if snap.count != 3 || snap.sum != 5055 {
		t.Fatalf("unexpected snapshot count=%d sum=%v", snap.count, snap.sum)
	}
	// counts are per-bucket; the writer accumulates them.
	if snap.counts[0] != 1 || snap.counts[1] != 1 {
		t.Fatalf("unexpected bucket counts %v", snap.counts)
	}
}
