package format

import (
	"math"
	"testing"
	"time"
)

func TestAmericanFromDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dec  float64
		want string
	}{
		{2.50, "+150"},
		{3.00, "+200"},
		{2.00, "EVEN"},
		{1.50, "-200"},
		{1.91, "-110"},
		{1.005, ""},
	}
	for _, tt := range tests {
		if got := AmericanFromDecimal(tt.dec); got != tt.want {
			t.Errorf("AmericanFromDecimal(%v) = %q, want %q", tt.dec, got, tt.want)
		}
	}
}

func TestArbMargin(t *testing.T) {
	t.Parallel()

	// 2.10 and 2.10 two-way: sum of implied = 0.952..., ~5% margin.
	m := ArbMargin([]float64{2.10, 2.10})
	if m < 4.9 || m > 5.1 {
		t.Errorf("margin = %v, want ~5.0", m)
	}

	// A fair coin-flip book has zero margin.
	if m := ArbMargin([]float64{2.0, 2.0}); math.Abs(m) > 1e-9 {
		t.Errorf("margin = %v, want 0", m)
	}

	// A juiced market has negative margin.
	if m := ArbMargin([]float64{1.91, 1.91}); m >= 0 {
		t.Errorf("margin = %v, want negative", m)
	}

	if m := ArbMargin(nil); m != 0 {
		t.Errorf("margin of no legs = %v, want 0", m)
	}
}

func TestStakes(t *testing.T) {
	t.Parallel()

	stakes := Stakes([]float64{2.0, 2.0})
	if len(stakes) != 2 {
		t.Fatalf("len = %d", len(stakes))
	}
	if math.Abs(stakes[0]-0.5) > 1e-9 || math.Abs(stakes[1]-0.5) > 1e-9 {
		t.Errorf("stakes = %v, want [0.5 0.5]", stakes)
	}

	var sum float64
	for _, s := range Stakes([]float64{1.5, 3.2, 8.0}) {
		sum += s
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("stakes sum = %v, want 1", sum)
	}
}

func TestCurrency(t *testing.T) {
	t.Parallel()

	if got := Currency(1234.5, "usd"); got != "1234.50 USD" {
		t.Errorf("Currency = %q", got)
	}
}

func TestParseEventTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", "2026-03-01T19:30:00Z", time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)},
		{"offset", "2026-03-01T14:30:00-05:00", time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)},
		{"zoneless", "2026-03-01T19:30:00", time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)},
		{"spaced", "2026-03-01 19:30:00", time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)},
		{"date only", "2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"padded", "  2026-03-01T19:30:00Z ", time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseEventTime(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseEventTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "not-a-time", "03/01/2026"} {
		if _, err := ParseEventTime(bad); err == nil {
			t.Errorf("ParseEventTime(%q) should fail", bad)
		}
	}
}

func TestCleanDisplay(t *testing.T) {
	t.Parallel()

	in := "Lakers @ Celtics 2026-03-01T19:30:00Z ML 2-way"
	want := "Lakers @ Celtics Mar 1, 19:30 UTC ML 2-way"
	if got := CleanDisplay(in); got != want {
		t.Errorf("CleanDisplay = %q, want %q", got, want)
	}

	// Strings without leakage pass through untouched.
	if got := CleanDisplay("Lakers @ Celtics"); got != "Lakers @ Celtics" {
		t.Errorf("CleanDisplay mangled clean input: %q", got)
	}
}
