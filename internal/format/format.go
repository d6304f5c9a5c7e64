// Package format holds odds, currency, and timestamp formatting helpers.
//
// The odds backend is loose about payload hygiene: event times arrive with
// or without timezone designators and display strings occasionally leak raw
// ISO-8601 timestamps. The helpers here normalize all of that once, at the
// relay boundary, so cached responses are already clean.
package format

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AmericanFromDecimal converts decimal odds to the American convention.
// Decimal odds below 1.01 have no meaningful American form; "EVEN" is
// returned for 2.0.
func AmericanFromDecimal(dec float64) string {
	switch {
	case dec < 1.01:
		return ""
	case math.Abs(dec-2.0) < 1e-9:
		return "EVEN"
	case dec >= 2.0:
		return fmt.Sprintf("+%d", int(math.Round((dec-1)*100)))
	default:
		return strconv.Itoa(-int(math.Round(100 / (dec - 1))))
	}
}

// ImpliedProbability returns the bookmaker-implied win probability for
// decimal odds, as a fraction in (0, 1].
func ImpliedProbability(dec float64) float64 {
	if dec <= 0 {
		return 0
	}
	return 1 / dec
}

// ArbMargin returns the arbitrage margin, in percent, for a set of decimal
// odds covering all outcomes of a market. Positive means guaranteed profit.
func ArbMargin(odds []float64) float64 {
	var sum float64
	for _, o := range odds {
		sum += ImpliedProbability(o)
	}
	if sum == 0 {
		return 0
	}
	return (1 - sum) / sum * 100
}

// Stakes returns the bankroll fraction to place on each leg so every
// outcome pays the same. Fractions sum to 1.
func Stakes(odds []float64) []float64 {
	var sum float64
	for _, o := range odds {
		sum += ImpliedProbability(o)
	}
	out := make([]float64, len(odds))
	if sum == 0 {
		return out
	}
	for i, o := range odds {
		out[i] = ImpliedProbability(o) / sum
	}
	return out
}

// Currency formats an amount with its ISO code, two decimal places,
// e.g. "1234.50 USD".
func Currency(amount float64, code string) string {
	return fmt.Sprintf("%.2f %s", amount, strings.ToUpper(code))
}

// eventTimeLayouts are tried in order by ParseEventTime. The backend has
// been observed emitting all of these.
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",     // no zone: treated as UTC
	"2006-01-02T15:04:05.000", // fractional, no zone
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseEventTime parses a backend timestamp defensively. Timestamps
// without a timezone designator are taken as UTC rather than local time,
// so a relay in any timezone produces identical cache payloads.
func ParseEventTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for i, layout := range eventTimeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if i > 0 {
			// Zoneless layouts parse in UTC already; make that explicit.
			t = t.UTC()
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// isoLeak matches a raw ISO-8601 timestamp embedded in display text.
var isoLeak = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`)

// CleanDisplay rewrites raw ISO timestamps leaked into a display string
// into a short human-readable form, e.g.
// "Lakers @ Celtics 2026-03-01T19:30:00Z" -> "Lakers @ Celtics Mar 1, 19:30 UTC".
func CleanDisplay(s string) string {
	return isoLeak.ReplaceAllStringFunc(s, func(raw string) string {
		t, err := ParseEventTime(raw)
		if err != nil {
			return raw
		}
		return t.Format("Jan 2, 15:04 MST")
	})
}
