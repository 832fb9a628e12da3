package review

import (
	"regexp"
	"strings"
)

var (
	headingRe    = regexp.MustCompile(`(?m)^#{1,4}\s+\S`)
	listItemRe   = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+\S`)
	numberRe     = regexp.MustCompile(`\d[\d,.]*%?`)
	imperativeRe = regexp.MustCompile(`(?i)\b(launch|create|write|test|measure|ship|publish|schedule|run|review|update|optimi[sz]e|target|segment)\b`)
)

// superlatives are negative signals: marketing copy drowning in them
// reads as filler rather than substance.
var superlatives = []string{
	"revolutionary", "groundbreaking", "world-class", "best-in-class",
	"cutting-edge", "game-changing", "unparalleled", "incredible",
	"amazing", "ultimate",
}

// hedges weaken actionability.
var hedges = []string{
	"might", "maybe", "possibly", "perhaps", "could potentially",
	"it depends", "hard to say",
}

// ScoreStructural scores content with local heuristics only. No RPC is
// made; the result is deterministic for a given input.
func ScoreStructural(content string) Scores {
	words := len(strings.Fields(content))
	lower := strings.ToLower(content)
	headings := len(headingRe.FindAllString(content, -1))
	lists := len(listItemRe.FindAllString(content, -1))
	numbers := len(numberRe.FindAllString(content, -1))
	imperatives := len(imperativeRe.FindAllString(content, -1))

	superlativeHits := 0
	for _, s := range superlatives {
		superlativeHits += strings.Count(lower, s)
	}
	hedgeHits := 0
	for _, h := range hedges {
		hedgeHits += strings.Count(lower, h)
	}

	scores := Scores{}

	// Completeness: enough words and some structure.
	completeness := 2.0
	switch {
	case words >= 600:
		completeness = 8
	case words >= 300:
		completeness = 6.5
	case words >= 120:
		completeness = 5
	case words >= 40:
		completeness = 3.5
	}
	if headings >= 3 {
		completeness += 1.5
	} else if headings >= 1 {
		completeness += 0.5
	}
	scores[DimCompleteness] = clamp(completeness)

	// Clarity: headings and lists break walls of text; very long outputs
	// without structure read poorly.
	clarity := 5.0
	if headings > 0 {
		clarity += 1.5
	}
	if lists >= 3 {
		clarity += 1.5
	}
	if words > 400 && headings == 0 {
		clarity -= 2
	}
	scores[DimClarity] = clamp(clarity)

	// Actionability: imperative verbs and list items suggest concrete
	// next steps; hedging pulls the score down.
	actionability := 3.0
	if imperatives >= 5 {
		actionability += 3
	} else if imperatives >= 2 {
		actionability += 1.5
	}
	if lists >= 5 {
		actionability += 2
	} else if lists >= 2 {
		actionability += 1
	}
	actionability -= float64(hedgeHits) * 0.5
	scores[DimActionability] = clamp(actionability)

	// Data-drivenness: number density relative to length.
	dataDriven := 3.0
	if words > 0 {
		density := float64(numbers) / float64(words)
		switch {
		case density >= 0.03:
			dataDriven = 8
		case density >= 0.015:
			dataDriven = 6.5
		case density >= 0.005:
			dataDriven = 5
		}
	}
	scores[DimDataDriven] = clamp(dataDriven)

	// Technical accuracy is neutral unless the output is too thin to
	// have substance.
	technical := neutralScore
	if words < 40 {
		technical = 3
	}
	scores[DimTechnicalAccuracy] = clamp(technical)

	// Brand alignment: superlative stuffing is the strongest local
	// negative signal we have.
	brand := 6.0 - float64(superlativeHits)*0.75
	scores[DimBrandAlignment] = clamp(brand)

	// Creativity is hard to judge structurally; reward varied structure
	// a little.
	creativity := neutralScore
	if headings >= 2 && lists >= 2 {
		creativity = 6
	}
	scores[DimCreativity] = clamp(creativity)

	return scores
}
