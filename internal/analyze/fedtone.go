// Package analyze turns raw collected data into the scored findings the
// daily report is built from: Fed communication tone, release surprise,
// and market regime classification.
package analyze

import "strings"

// PolicyBias is the coarse reading of a Fed communication.
type PolicyBias string

const (
	BiasHawkish PolicyBias = "hawkish"
	BiasDovish  PolicyBias = "dovish"
	BiasNeutral PolicyBias = "neutral"
)

// ToneResult is the keyword-weighted tone score of one communication.
type ToneResult struct {
	// Score is in [-1, 1]: -1 very dovish, +1 very hawkish.
	Score float64

	// Confidence in [0, 1], scaled by how many weighted terms matched.
	Confidence float64

	Bias PolicyBias

	// Matches counts total weighted term occurrences.
	Matches int
}

// Weighted policy vocabulary. Positive weights are hawkish, negative
// dovish; magnitudes reflect how strongly a term signals intent.
var toneTerms = map[string]float64{
	"inflation risk":  2.0,
	"price stability": 1.5,
	"vigilant":        1.5,
	"restrictive":     2.0,
	"higher rates":    1.5,
	"upside risk":     1.0,

	"patient":       -1.0,
	"accommodative": -2.0,
	"gradual":       -1.0,
	"downside risk": -1.0,
	"carefully":     -0.5,
	"mindful":       -0.5,
}

const (
	hawkishThreshold = 0.3
	dovishThreshold  = -0.3
)

// ScoreTone computes the weighted hawkish/dovish score of a text.
//
// The score is the weighted average over matched terms, clipped to
// [-1, 1]; confidence is matches/10 capped at 1. A text with no matches
// scores 0 with zero confidence.
func ScoreTone(text string) ToneResult {
	lower := strings.ToLower(text)

	var totalScore float64
	matches := 0
	for term, weight := range toneTerms {
		count := strings.Count(lower, term)
		totalScore += float64(count) * weight
		matches += count
	}

	denom := float64(matches)
	if denom < 1 {
		denom = 1
	}
	score := clip(totalScore/denom, -1, 1)

	confidence := float64(matches) / 10
	if confidence > 1 {
		confidence = 1
	}

	return ToneResult{
		Score:      score,
		Confidence: confidence,
		Bias:       biasOf(score),
		Matches:    matches,
	}
}

func biasOf(score float64) PolicyBias {
	switch {
	case score > hawkishThreshold:
		return BiasHawkish
	case score < dovishThreshold:
		return BiasDovish
	default:
		return BiasNeutral
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
