package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		ErrorThreshold: 0.50,
		MinSamples:     4,
		WindowSeconds:  30,
		OpenTimeout:    15 * time.Second,
	}
}

func newTestBreaker(t *testing.T) (*Breaker, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(testConfig())
	b.now = func() time.Time { return now }
	return b, &now
}

func trip(b *Breaker) {
	for range 4 {
		b.RecordError(1.0)
	}
}

func TestBreaker_ClosedAllowsRequests(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(t)

	if !b.Allow() {
		t.Error("closed breaker should allow requests")
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_OpensOnErrorRate(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(t)

	// Below min samples: stays closed.
	b.RecordError(1.0)
	b.RecordError(1.0)
	if b.State() != StateClosed {
		t.Fatal("breaker opened before min samples")
	}

	trip(b)
	if b.State() != StateOpen {
		t.Fatalf("state = %v after errors, want open", b.State())
	}
	if b.Allow() {
		t.Error("open breaker must reject requests")
	}
}

func TestBreaker_SuccessesKeepClosed(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(t)

	for range 10 {
		b.RecordSuccess()
	}
	b.RecordError(1.0)
	b.RecordError(1.0)

	// 2/12 error rate is under the 50% threshold.
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	t.Parallel()
	b, now := newTestBreaker(t)
	trip(b)

	// Before the open timeout: still rejecting.
	*now = now.Add(5 * time.Second)
	if b.Allow() {
		t.Fatal("breaker should still be open")
	}

	// After the timeout: exactly one probe admitted.
	*now = now.Add(15 * time.Second)
	if !b.Allow() {
		t.Fatal("probe should be admitted after open timeout")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half_open", b.State())
	}
	if b.Allow() {
		t.Error("second request during probe must be rejected")
	}

	// Probe success closes the breaker.
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Errorf("state = %v after probe success, want closed", b.State())
	}
	if !b.Allow() {
		t.Error("closed breaker should allow requests")
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	t.Parallel()
	b, now := newTestBreaker(t)
	trip(b)

	*now = now.Add(20 * time.Second)
	if !b.Allow() {
		t.Fatal("probe should be admitted")
	}
	b.RecordError(1.0)

	if b.State() != StateOpen {
		t.Fatalf("state = %v after failed probe, want open", b.State())
	}
	if b.Allow() {
		t.Error("reopened breaker must reject")
	}
}

func TestBreaker_WindowExpiry(t *testing.T) {
	t.Parallel()
	b, now := newTestBreaker(t)

	b.RecordError(1.0)
	b.RecordError(1.0)
	b.RecordError(1.0)

	// Advance beyond the window so the old errors roll off.
	*now = now.Add(45 * time.Second)
	for range 4 {
		b.RecordSuccess()
	}
	b.RecordError(1.0)

	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed after window rolled", b.State())
	}
}

type statusErr int

func (s statusErr) Error() string   { return "status" }
func (s statusErr) HTTPStatus() int { return int(s) }

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want float64
	}{
		{"nil", nil, 0},
		{"timeout", context.DeadlineExceeded, 1.5},
		{"rate limited", statusErr(429), 0.5},
		{"server error", statusErr(502), 1.0},
		{"client error", statusErr(404), 0.0},
		{"generic", errors.New("connection refused"), 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
