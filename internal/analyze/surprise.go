package analyze

import "math"

// Impact classifies the direction of a release surprise.
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// Trend classifies the short-run direction of a series.
type Trend string

const (
	TrendImproving     Trend = "improving"
	TrendDeteriorating Trend = "deteriorating"
	TrendStable        Trend = "stable"
	TrendInsufficient  Trend = "insufficient_data"
)

// historyKeep caps how many past releases feed the surprise baseline.
const historyKeep = 12

// ReleaseRecord is one historical observation of an indicator.
type ReleaseRecord struct {
	Value    float64
	Surprise float64
}

// SurpriseResult is the scored outcome of one release.
type SurpriseResult struct {
	// Surprise is standardized: (actual-expected) divided by the stddev
	// of historical surprises when available, else by |expected|.
	Surprise float64
	Impact   Impact
	Trend    Trend
}

// ReleaseAnalyzer scores releases against per-indicator history.
// The zero threshold selects the default of 0.5.
type ReleaseAnalyzer struct {
	NeutralThreshold float64

	history map[string][]ReleaseRecord
}

func NewReleaseAnalyzer(neutralThreshold float64) *ReleaseAnalyzer {
	if neutralThreshold <= 0 {
		neutralThreshold = 0.5
	}
	return &ReleaseAnalyzer{
		NeutralThreshold: neutralThreshold,
		history:          make(map[string][]ReleaseRecord),
	}
}

// Analyze scores one release and records it into the history.
// expected may be NaN when no consensus estimate is known; the surprise
// is then 0 and the impact neutral.
func (a *ReleaseAnalyzer) Analyze(indicatorID string, actual, expected float64) SurpriseResult {
	surprise := a.standardizedSurprise(indicatorID, actual, expected)

	res := SurpriseResult{
		Surprise: surprise,
		Impact:   a.impactOf(surprise),
		Trend:    a.trendOf(indicatorID, actual),
	}

	a.record(indicatorID, ReleaseRecord{Value: actual, Surprise: surprise})
	return res
}

// Seed preloads history, e.g. from the persistence layer at startup.
func (a *ReleaseAnalyzer) Seed(indicatorID string, records []ReleaseRecord) {
	for _, r := range records {
		a.record(indicatorID, r)
	}
}

func (a *ReleaseAnalyzer) record(indicatorID string, r ReleaseRecord) {
	h := append(a.history[indicatorID], r)
	if len(h) > historyKeep {
		h = h[len(h)-historyKeep:]
	}
	a.history[indicatorID] = h
}

func (a *ReleaseAnalyzer) standardizedSurprise(indicatorID string, actual, expected float64) float64 {
	if math.IsNaN(expected) {
		return 0
	}

	if std := surpriseStddev(a.history[indicatorID]); std > 0 {
		return (actual - expected) / std
	}
	if expected != 0 {
		return (actual - expected) / math.Abs(expected)
	}
	return 0
}

func (a *ReleaseAnalyzer) impactOf(surprise float64) Impact {
	switch {
	case math.Abs(surprise) < a.NeutralThreshold:
		return ImpactNeutral
	case surprise > 0:
		return ImpactPositive
	default:
		return ImpactNegative
	}
}

// trendOf fits a slope through the last three observations (including
// the incoming one) and buckets it.
func (a *ReleaseAnalyzer) trendOf(indicatorID string, actual float64) Trend {
	h := a.history[indicatorID]
	if len(h) < 2 {
		return TrendInsufficient
	}
	values := []float64{h[len(h)-2].Value, h[len(h)-1].Value, actual}

	slope := fitSlope(values)
	switch {
	case math.Abs(slope) < 0.001:
		return TrendStable
	case slope > 0:
		return TrendImproving
	default:
		return TrendDeteriorating
	}
}

// fitSlope is the least-squares slope of values against 0..n-1.
func fitSlope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func surpriseStddev(records []ReleaseRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += r.Surprise
	}
	mean := sum / float64(len(records))

	var sq float64
	for _, r := range records {
		d := r.Surprise - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(records)))
}
