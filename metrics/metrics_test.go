package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestBeginEndRecordsOutcome(t *testing.T) {
	reg := NewRegistry("test")
	end := reg.Begin()
	if got := counterValue(t, reg.Total); got != 1 {
		t.Fatalf("Total = %v, want 1", got)
	}
	if got := counterValue(t, reg.Active); got != 1 {
		t.Fatalf("Active = %v, want 1", got)
	}
	end(OutcomeSucceeded)
	if got := counterValue(t, reg.Active); got != 0 {
		t.Fatalf("Active after end = %v, want 0", got)
	}
	if got := counterValue(t, reg.Succeeded); got != 1 {
		t.Fatalf("Succeeded = %v, want 1", got)
	}
}

func TestObserveOutcomeRoutesToRightCounter(t *testing.T) {
	reg := NewRegistry("test2")
	reg.ObserveOutcome(OutcomeTimedOut)
	reg.ObserveOutcome(OutcomeCancelled)
	reg.ObserveOutcome(OutcomeFailed)
	if got := counterValue(t, reg.TimedOut); got != 1 {
		t.Fatalf("TimedOut = %v, want 1", got)
	}
	if got := counterValue(t, reg.Cancelled); got != 1 {
		t.Fatalf("Cancelled = %v, want 1", got)
	}
	if got := counterValue(t, reg.Failed); got != 1 {
		t.Fatalf("Failed = %v, want 1", got)
	}
}
