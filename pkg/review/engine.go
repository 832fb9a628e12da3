package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/llm"
	"github.com/maestrohq/maestro/pkg/models"
)

// Evaluation is the engine's full output for one review.
type Evaluation struct {
	Verdict       models.Verdict
	Scores        Scores
	WeightedScore float64
	Findings      []models.Finding
	Mode          config.ReviewMode
	// SemanticFellBack is true when semantic mode was requested but the
	// scores came from the structural fallback.
	SemanticFellBack bool
}

// Engine scores outputs and derives verdicts.
type Engine struct {
	cfg       *config.ReviewConfig
	llm       llm.Client
	model     string
	maxTokens int
	log       *slog.Logger
}

// NewEngine creates a review engine. The LLM client may be nil when the
// mode is structural.
func NewEngine(cfg *config.ReviewConfig, client llm.Client, model string, maxTokens int) *Engine {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Engine{
		cfg:       cfg,
		llm:       client,
		model:     model,
		maxTokens: maxTokens,
		log:       slog.With("component", "review"),
	}
}

// Evaluate scores the content and derives the verdict. Semantic mode falls
// back to structural scoring when the call or the parse fails; Evaluate
// itself never fails.
func (e *Engine) Evaluate(ctx context.Context, content string) *Evaluation {
	eval := &Evaluation{Mode: e.cfg.Mode}
	var rationales map[string]string

	if e.cfg.Mode == config.ReviewModeSemantic && e.llm != nil {
		scores, r, err := scoreSemantic(ctx, e.llm, e.model, content, e.maxTokens)
		if err != nil {
			e.log.Warn("Semantic scoring failed, falling back to structural", "error", err)
			eval.SemanticFellBack = true
			eval.Scores = ScoreStructural(content)
		} else {
			eval.Scores = scores
			rationales = r
		}
	} else {
		eval.Scores = ScoreStructural(content)
	}

	eval.WeightedScore = eval.Scores.Weighted(e.cfg.Weights)
	eval.Verdict, eval.Findings = e.verdict(eval.Scores, eval.WeightedScore, rationales)
	return eval
}

// verdict applies per-dimension minimums first, then the weighted-average
// thresholds. A dimension under its minimum forces at least REVISE, and
// REJECT when it also sits under the reject threshold.
func (e *Engine) verdict(scores Scores, weighted float64, rationales map[string]string) (models.Verdict, []models.Finding) {
	var findings []models.Finding
	verdict := models.VerdictApprove

	for _, dim := range Dimensions {
		minimum, ok := e.cfg.DimensionMinimums[dim]
		if !ok {
			continue
		}
		score := scores[dim]
		if score >= minimum {
			continue
		}
		severity := models.SeverityMajor
		if score < e.cfg.RejectThreshold {
			severity = models.SeverityBlocker
			verdict = models.VerdictReject
		} else if verdict != models.VerdictReject {
			verdict = models.VerdictRevise
		}
		desc := fmt.Sprintf("%s scored %.1f, below the required minimum %.1f", dim, score, minimum)
		if r := rationales[dim]; r != "" {
			desc += ": " + r
		}
		findings = append(findings, models.Finding{
			Section:     dim,
			Severity:    severity,
			Description: desc,
		})
	}

	if verdict == models.VerdictApprove {
		switch {
		case weighted >= e.cfg.ApproveThreshold:
			// approved
		case weighted < e.cfg.RejectThreshold:
			verdict = models.VerdictReject
			findings = append(findings, models.Finding{
				Section:     "overall",
				Severity:    models.SeverityBlocker,
				Description: fmt.Sprintf("weighted score %.1f is below the reject threshold %.1f", weighted, e.cfg.RejectThreshold),
			})
		default:
			verdict = models.VerdictRevise
			findings = append(findings, models.Finding{
				Section:     "overall",
				Severity:    models.SeverityMajor,
				Description: fmt.Sprintf("weighted score %.1f is below the approve threshold %.1f", weighted, e.cfg.ApproveThreshold),
			})
		}
	}

	return verdict, findings
}

// NewReview packages an evaluation into the persisted review document.
func NewReview(taskID, reviewer string, eval *Evaluation, now time.Time) *models.Review {
	return &models.Review{
		ID:        models.NewIDAt(models.IDPrefixReview, now),
		TaskID:    taskID,
		Reviewer:  reviewer,
		Verdict:   eval.Verdict,
		Findings:  eval.Findings,
		CreatedAt: now.UTC(),
	}
}
