package collect

import (
	"context"
	"fmt"
	"time"
)

// CurveShape classifies the slope of the treasury curve.
type CurveShape string

const (
	CurveInverted        CurveShape = "inverted"
	CurveFlat            CurveShape = "flat"
	CurveModeratelySteep CurveShape = "moderately_steep"
	CurveSteep           CurveShape = "steep"
)

// BondSnapshot is one collection cycle of the fixed-income universe.
type BondSnapshot struct {
	Rates   map[string]Quote   // US2Y/US5Y/US10Y/US30Y
	Spreads map[string]float64 // 2s10s, 5s30s
	Shape   CurveShape
	AsOf    time.Time
}

// BondCollector polls treasury yields and derives curve spreads.
type BondCollector struct {
	client *MarketCollector
}

func NewBondCollector(client *MarketCollector) *BondCollector {
	return &BondCollector{client: client}
}

// Collect fetches treasury yields and computes the 2s10s and 5s30s
// spreads. Missing legs simply omit the affected spread.
func (c *BondCollector) Collect(ctx context.Context) (BondSnapshot, error) {
	snap := BondSnapshot{
		Rates:   make(map[string]Quote, len(TreasurySymbols)),
		Spreads: make(map[string]float64, 2),
		AsOf:    time.Now(),
	}

	var firstErr error
	for _, sym := range TreasurySymbols {
		q, err := c.client.Fetch(ctx, sym)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		snap.Rates[sym.Name] = q
	}
	if len(snap.Rates) == 0 && firstErr != nil {
		return snap, fmt.Errorf("bond collection produced no rates: %w", firstErr)
	}

	for name, legs := range map[string][2]string{
		"2s10s": {"US2Y", "US10Y"},
		"5s30s": {"US5Y", "US30Y"},
	} {
		short, okS := snap.Rates[legs[0]]
		long, okL := snap.Rates[legs[1]]
		if okS && okL {
			snap.Spreads[name] = long.Price - short.Price
		}
	}

	if s, ok := snap.Spreads["2s10s"]; ok {
		snap.Shape = ClassifyCurve(s)
	}
	return snap, nil
}

// ClassifyCurve buckets a 2s10s spread into a curve shape.
func ClassifyCurve(spread2s10s float64) CurveShape {
	switch {
	case spread2s10s < -0.1:
		return CurveInverted
	case spread2s10s < 0.1:
		return CurveFlat
	case spread2s10s < 0.5:
		return CurveModeratelySteep
	default:
		return CurveSteep
	}
}
