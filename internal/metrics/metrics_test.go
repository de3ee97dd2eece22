package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveForwardIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(ForwardedRequests.WithLabelValues("DirectAddress", "ok"))
	ObserveForward("DirectAddress", "ok", 0.01)
	after := testutil.ToFloat64(ForwardedRequests.WithLabelValues("DirectAddress", "ok"))

	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}
