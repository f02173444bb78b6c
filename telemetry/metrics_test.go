package telemetry

import (
	"context"
	"testing"
	"time"
)

// The nil-safe helpers must be callable before Init wires any collectors.
func TestHelpersNilSafe(t *testing.T) {
	if metrics != nil {
		t.Skip("metrics already initialized in this process")
	}
	IncTokenRefresh()
	IncSweepIdentityError()
	ObserveSweep(1.5, 2, 3)
	SetLinkedUsers(10)
	if Get() != nil {
		t.Error("Get() non-nil before Init")
	}
}

func TestTimeFunc(t *testing.T) {
	d := TimeFunc(nil, func() { time.Sleep(5 * time.Millisecond) })
	if d < 5*time.Millisecond {
		t.Errorf("measured %v, want at least 5ms", d)
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("GetCorrelation(empty ctx) = %q, want empty", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation() = %q, want abc-123", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
