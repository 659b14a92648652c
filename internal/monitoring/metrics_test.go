package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHealthCheck(t *testing.T) {
	before := testutil.ToFloat64(healthChecks.WithLabelValues("periodic", "degraded"))

	RecordHealthCheck("periodic", 2, time.Millisecond)

	if got := testutil.ToFloat64(healthChecks.WithLabelValues("periodic", "degraded")); got != before+1 {
		t.Errorf("Expected degraded counter to increase by 1, got %v (before %v)", got, before)
	}
	if got := testutil.ToFloat64(healthCheckFailures); got != 2 {
		t.Errorf("Expected failures gauge 2, got %v", got)
	}

	RecordHealthCheck("periodic", 0, time.Millisecond)
	if got := testutil.ToFloat64(healthCheckFailures); got != 0 {
		t.Errorf("Expected failures gauge reset to 0, got %v", got)
	}
}

func TestRecordRateLimitDecision(t *testing.T) {
	allowed := testutil.ToFloat64(rateLimitDecisions.WithLabelValues("allowed"))
	denied := testutil.ToFloat64(rateLimitDecisions.WithLabelValues("denied"))

	RecordRateLimitDecision(true)
	RecordRateLimitDecision(false)
	RecordRateLimitDecision(false)

	if got := testutil.ToFloat64(rateLimitDecisions.WithLabelValues("allowed")); got != allowed+1 {
		t.Errorf("Expected allowed +1, got %v", got-allowed)
	}
	if got := testutil.ToFloat64(rateLimitDecisions.WithLabelValues("denied")); got != denied+2 {
		t.Errorf("Expected denied +2, got %v", got-denied)
	}
}

func TestRecordRateLimitSweep(t *testing.T) {
	evicted := testutil.ToFloat64(rateLimitEvictions)

	RecordRateLimitSweep(7, 3)

	if got := testutil.ToFloat64(rateLimitTracked); got != 7 {
		t.Errorf("Expected tracked gauge 7, got %v", got)
	}
	if got := testutil.ToFloat64(rateLimitEvictions); got != evicted+3 {
		t.Errorf("Expected evictions +3, got %v", got-evicted)
	}
}
