package analyze

import (
	"sync"

	"macromon/internal/collect"
)

// VolRegime buckets the VIX level.
type VolRegime string

const (
	VolLow      VolRegime = "low"
	VolNormal   VolRegime = "normal"
	VolElevated VolRegime = "elevated"
	VolHigh     VolRegime = "high"
)

// RiskEnvironment is the aggregate risk read across markets.
type RiskEnvironment string

const (
	RiskOn      RiskEnvironment = "risk_on"
	RiskOff     RiskEnvironment = "risk_off"
	RiskNeutral RiskEnvironment = "neutral"
)

// PriceTrend is the moving-average trend of one asset.
type PriceTrend string

const (
	TrendStrongUp   PriceTrend = "strong_uptrend"
	TrendUp         PriceTrend = "uptrend"
	TrendStrongDown PriceTrend = "strong_downtrend"
	TrendDown       PriceTrend = "downtrend"
	TrendNeutral    PriceTrend = "neutral"
	TrendNoHistory  PriceTrend = "insufficient_data"
)

// VIXThresholds are the regime cut points. Zero values select the
// defaults (15 / 25 / 35).
type VIXThresholds struct {
	Low      float64
	Elevated float64
	High     float64
}

func (t VIXThresholds) withDefaults() VIXThresholds {
	if t.Low <= 0 {
		t.Low = 15
	}
	if t.Elevated <= 0 {
		t.Elevated = 25
	}
	if t.High <= 0 {
		t.High = 35
	}
	return t
}

// Regime is the combined classification for one market snapshot.
type Regime struct {
	Volatility VolRegime
	Risk       RiskEnvironment
	SPXTrend   PriceTrend
	CurveShape collect.CurveShape
}

// RegimeAnalyzer classifies market snapshots; it keeps a rolling price
// history per symbol for moving-average trends. Safe for concurrent
// use: the refresh loop observes while the report job classifies.
type RegimeAnalyzer struct {
	thresholds VIXThresholds

	mu     sync.Mutex
	prices map[string][]float64 // guarded by mu
}

// priceHistoryKeep bounds the per-symbol rolling window (>= MA50).
const priceHistoryKeep = 60

func NewRegimeAnalyzer(thresholds VIXThresholds) *RegimeAnalyzer {
	return &RegimeAnalyzer{
		thresholds: thresholds.withDefaults(),
		prices:     make(map[string][]float64),
	}
}

// Observe records closing prices from a snapshot into the rolling
// history. Call once per collection cycle before Classify.
func (a *RegimeAnalyzer) Observe(snap collect.MarketSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, group := range [][]collect.Quote{snap.Indices, snap.FX, snap.Commodities} {
		for _, q := range group {
			h := append(a.prices[q.Name], q.Price)
			if len(h) > priceHistoryKeep {
				h = h[len(h)-priceHistoryKeep:]
			}
			a.prices[q.Name] = h
		}
	}
}

// SeedPrices preloads history, e.g. from the persistence layer.
func (a *RegimeAnalyzer) SeedPrices(name string, prices []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := append(a.prices[name], prices...)
	if len(h) > priceHistoryKeep {
		h = h[len(h)-priceHistoryKeep:]
	}
	a.prices[name] = h
}

// Classify derives the market regime from a snapshot plus bond data.
func (a *RegimeAnalyzer) Classify(market collect.MarketSnapshot, bonds collect.BondSnapshot) Regime {
	reg := Regime{
		Volatility: VolNormal,
		Risk:       RiskNeutral,
		SPXTrend:   TrendNoHistory,
		CurveShape: bonds.Shape,
	}

	vix, hasVIX := market.FindQuote("VIX")
	if hasVIX {
		reg.Volatility = a.volRegime(vix.Price)
	}
	if spx, ok := market.FindQuote("SPX"); ok {
		reg.SPXTrend = a.trend(spx.Name, spx.Price)
	}

	// Risk scoring: VIX contributes +-2, the SPX trend +-1, an inverted
	// curve -1.
	score := 0
	if hasVIX {
		switch {
		case vix.Price < a.thresholds.Low:
			score += 2
		case vix.Price > a.thresholds.High:
			score -= 2
		}
	}
	switch reg.SPXTrend {
	case TrendStrongUp, TrendUp:
		score++
	case TrendStrongDown, TrendDown:
		score--
	}
	if bonds.Shape == collect.CurveInverted {
		score--
	}

	switch {
	case score >= 2:
		reg.Risk = RiskOn
	case score <= -2:
		reg.Risk = RiskOff
	}
	return reg
}

func (a *RegimeAnalyzer) volRegime(vix float64) VolRegime {
	switch {
	case vix < a.thresholds.Low:
		return VolLow
	case vix < a.thresholds.Elevated:
		return VolNormal
	case vix < a.thresholds.High:
		return VolElevated
	default:
		return VolHigh
	}
}

// trend compares the current price to its 20- and 50-period moving
// averages.
func (a *RegimeAnalyzer) trend(name string, price float64) PriceTrend {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.prices[name]
	if len(h) < 20 {
		return TrendNoHistory
	}
	ma20 := mean(h[len(h)-20:])
	ma50 := ma20
	if len(h) >= 50 {
		ma50 = mean(h[len(h)-50:])
	}

	switch {
	case price > ma20 && ma20 > ma50:
		return TrendStrongUp
	case price > ma20:
		return TrendUp
	case price < ma20 && ma20 < ma50:
		return TrendStrongDown
	case price < ma20:
		return TrendDown
	default:
		return TrendNeutral
	}
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
