package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDroppedIncrementsLabeledCounter(t *testing.T) {
	before := testutil.ToFloat64(DocsDropped.WithLabelValues("transform", "load_failed"))
	Dropped("transform", "load_failed")
	after := testutil.ToFloat64(DocsDropped.WithLabelValues("transform", "load_failed"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestSetQueueDepthRecordsGaugeValue(t *testing.T) {
	SetQueueDepth("publish", 7)
	got := testutil.ToFloat64(PhaseQueueDepth.WithLabelValues("publish"))
	if got != 7 {
		t.Fatalf("expected gauge 7, got %v", got)
	}
}
