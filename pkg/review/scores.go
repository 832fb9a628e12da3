// Package review scores task outputs along fixed quality dimensions and
// derives an APPROVE/REVISE/REJECT verdict. Structural scoring is pure
// local heuristics; semantic scoring asks the model and falls back to
// structural when the call or the parse fails.
package review

// Quality dimensions scored for every output. Scores are clamped to
// [0, 10].
const (
	DimCompleteness      = "completeness"
	DimClarity           = "clarity"
	DimActionability     = "actionability"
	DimDataDriven        = "data_driven"
	DimTechnicalAccuracy = "technical_accuracy"
	DimBrandAlignment    = "brand_alignment"
	DimCreativity        = "creativity"
)

// Dimensions lists every scored dimension in a stable order.
var Dimensions = []string{
	DimCompleteness,
	DimClarity,
	DimActionability,
	DimDataDriven,
	DimTechnicalAccuracy,
	DimBrandAlignment,
	DimCreativity,
}

// neutralScore is assumed for dimensions the semantic scorer omits.
const neutralScore = 5.0

// Scores maps dimension name to a clamped [0, 10] value.
type Scores map[string]float64

// clamp bounds a score to [0, 10].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// Weighted computes the weighted average score. Dimensions without an
// explicit weight count with weight 1.
func (s Scores) Weighted(weights map[string]float64) float64 {
	var sum, totalWeight float64
	for _, dim := range Dimensions {
		score, ok := s[dim]
		if !ok {
			score = neutralScore
		}
		w := 1.0
		if weights != nil {
			if ww, ok := weights[dim]; ok {
				w = ww
			}
		}
		sum += score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return sum / totalWeight
}
