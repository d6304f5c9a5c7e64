package upstream

import (
	"fmt"

	relay "github.com/oddskit/oddsrelay/internal"
	"github.com/oddskit/oddsrelay/internal/format"
)

// Wire types mirror the backend payloads before normalization. Timestamps
// stay strings here because the backend is inconsistent about timezone
// designators; format.ParseEventTime sorts them out.

type scanWire struct {
	ID         string    `json:"id"`
	Sport      string    `json:"sport"`
	League     string    `json:"league"`
	Event      string    `json:"event"`
	Market     string    `json:"market"`
	Legs       []legWire `json:"legs"`
	MarginPct  float64   `json:"margin_pct"`
	CommenceAt string    `json:"commence_at"`
	LastSeenAt string    `json:"last_seen_at"`
	Display    string    `json:"display"`
}

type legWire struct {
	Bookmaker   string  `json:"bookmaker"`
	Outcome     string  `json:"outcome"`
	DecimalOdds float64 `json:"decimal_odds"`
}

// normalize converts a wire scan into the domain form: parsed timestamps,
// American odds and stake fractions per leg, margin recomputed when the
// backend omitted it, and display text scrubbed of raw ISO timestamps.
func (w scanWire) normalize() (relay.Scan, error) {
	if len(w.Legs) == 0 {
		return relay.Scan{}, fmt.Errorf("scan %s: no legs", w.ID)
	}
	commence, err := format.ParseEventTime(w.CommenceAt)
	if err != nil {
		return relay.Scan{}, fmt.Errorf("scan %s: %w", w.ID, err)
	}

	odds := make([]float64, len(w.Legs))
	for i, l := range w.Legs {
		odds[i] = l.DecimalOdds
	}
	stakes := format.Stakes(odds)

	s := relay.Scan{
		ID:         w.ID,
		Sport:      w.Sport,
		League:     w.League,
		Event:      w.Event,
		Market:     w.Market,
		MarginPct:  w.MarginPct,
		CommenceAt: commence,
		Display:    format.CleanDisplay(w.Display),
		Legs:       make([]relay.ScanLeg, len(w.Legs)),
	}
	if s.MarginPct == 0 {
		s.MarginPct = format.ArbMargin(odds)
	}
	for i, l := range w.Legs {
		s.Legs[i] = relay.ScanLeg{
			Bookmaker:   l.Bookmaker,
			Outcome:     l.Outcome,
			DecimalOdds: l.DecimalOdds,
			American:    format.AmericanFromDecimal(l.DecimalOdds),
			StakePct:    stakes[i],
		}
	}
	if w.LastSeenAt != "" {
		if seen, err := format.ParseEventTime(w.LastSeenAt); err == nil {
			s.LastSeenAt = &seen
		}
	}
	return s, nil
}

type predictionWire struct {
	ID         string  `json:"id"`
	Sport      string  `json:"sport"`
	Event      string  `json:"event"`
	Pick       string  `json:"pick"`
	Confidence float64 `json:"confidence"`
	Odds       float64 `json:"odds"`
	CommenceAt string  `json:"commence_at"`
}

func (w predictionWire) normalize() (relay.Prediction, error) {
	commence, err := format.ParseEventTime(w.CommenceAt)
	if err != nil {
		return relay.Prediction{}, fmt.Errorf("prediction %s: %w", w.ID, err)
	}
	return relay.Prediction{
		ID:         w.ID,
		Sport:      w.Sport,
		Event:      w.Event,
		Pick:       w.Pick,
		Confidence: w.Confidence,
		Odds:       w.Odds,
		CommenceAt: commence,
	}, nil
}
