package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/llm"
	"github.com/maestrohq/maestro/pkg/models"
)

// fakeClient returns a canned response or error.
type fakeClient struct {
	resp *llm.Response
	err  error
}

func (f *fakeClient) CreateMessage(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testReviewConfig() *config.ReviewConfig {
	return &config.ReviewConfig{
		Mode:             config.ReviewModeStructural,
		ApproveThreshold: 7.0,
		RejectThreshold:  4.0,
	}
}

// strongContent is structured, numeric, and imperative enough to score
// well on every structural heuristic.
func strongContent() string {
	var b strings.Builder
	b.WriteString("# Q3 Campaign Plan\n\n")
	b.WriteString("## Objectives\n\n")
	b.WriteString("Launch the campaign and measure conversion against a 3.5% baseline. ")
	b.WriteString("Target 12000 signups in 6 weeks at under 4.20 per acquisition.\n\n")
	b.WriteString("## Steps\n\n")
	for i := 0; i < 8; i++ {
		b.WriteString("- Create the asset, test 2 variants, publish on day 3, review metrics weekly\n")
	}
	b.WriteString("\n## Measurement\n\n")
	for i := 0; i < 60; i++ {
		b.WriteString("Run the experiment, measure the 14% lift against the 250 user control group, and update the schedule to optimize spend across 3 channels. ")
	}
	return b.String()
}

func TestWeightedDefaultsMissingToNeutral(t *testing.T) {
	s := Scores{DimCompleteness: 10}
	// Six missing dimensions count at 5.0 with weight 1.
	assert.InDelta(t, (10+6*5.0)/7, s.Weighted(nil), 1e-9)
}

func TestWeightedHonorsWeights(t *testing.T) {
	s := Scores{}
	for _, dim := range Dimensions {
		s[dim] = 5
	}
	s[DimCompleteness] = 10
	weights := map[string]float64{DimCompleteness: 3}
	// (10*3 + 6*5) / 9
	assert.InDelta(t, 60.0/9.0, s.Weighted(weights), 1e-9)
}

func TestScoreStructuralRewardsStructure(t *testing.T) {
	strong := ScoreStructural(strongContent())
	weak := ScoreStructural("maybe we could possibly do something")

	for _, dim := range []string{DimCompleteness, DimClarity, DimActionability, DimDataDriven} {
		assert.Greater(t, strong[dim], weak[dim], dim)
	}
	for dim, score := range strong {
		assert.GreaterOrEqual(t, score, 0.0, dim)
		assert.LessOrEqual(t, score, 10.0, dim)
	}
}

func TestScoreStructuralPenalizesSuperlatives(t *testing.T) {
	base := strongContent()
	stuffed := base + strings.Repeat(" revolutionary groundbreaking game-changing", 20)
	assert.Less(t, ScoreStructural(stuffed)[DimBrandAlignment], ScoreStructural(base)[DimBrandAlignment])
}

func TestVerdictThresholds(t *testing.T) {
	e := NewEngine(testReviewConfig(), nil, "", 0)
	tests := []struct {
		name  string
		score float64
		want  models.Verdict
	}{
		{"at approve threshold", 7.0, models.VerdictApprove},
		{"between thresholds", 5.5, models.VerdictRevise},
		{"just under approve", 6.9, models.VerdictRevise},
		{"below reject threshold", 3.9, models.VerdictReject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := Scores{}
			for _, dim := range Dimensions {
				scores[dim] = tt.score
			}
			verdict, findings := e.verdict(scores, tt.score, nil)
			assert.Equal(t, tt.want, verdict)
			if tt.want != models.VerdictApprove {
				require.NotEmpty(t, findings)
			}
		})
	}
}

func TestVerdictDimensionMinimumForcesRevise(t *testing.T) {
	cfg := testReviewConfig()
	cfg.DimensionMinimums = map[string]float64{DimCompleteness: 6}
	e := NewEngine(cfg, nil, "", 0)

	scores := Scores{}
	for _, dim := range Dimensions {
		scores[dim] = 9
	}
	scores[DimCompleteness] = 5 // above reject threshold, below minimum

	verdict, findings := e.verdict(scores, scores.Weighted(nil), nil)
	assert.Equal(t, models.VerdictRevise, verdict)
	require.Len(t, findings, 1)
	assert.Equal(t, DimCompleteness, findings[0].Section)
	assert.Equal(t, models.SeverityMajor, findings[0].Severity)
}

func TestVerdictDimensionUnderRejectThresholdIsBlocker(t *testing.T) {
	cfg := testReviewConfig()
	cfg.DimensionMinimums = map[string]float64{DimTechnicalAccuracy: 6}
	e := NewEngine(cfg, nil, "", 0)

	scores := Scores{}
	for _, dim := range Dimensions {
		scores[dim] = 9
	}
	scores[DimTechnicalAccuracy] = 2

	verdict, findings := e.verdict(scores, scores.Weighted(nil), nil)
	assert.Equal(t, models.VerdictReject, verdict)
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityBlocker, findings[0].Severity)
}

func TestEvaluateSemanticParsesScores(t *testing.T) {
	cfg := testReviewConfig()
	cfg.Mode = config.ReviewModeSemantic
	client := &fakeClient{resp: &llm.Response{
		Content: "Here are the scores:\n" +
			`{"completeness": {"score": 9, "rationale": "covers everything"},` +
			`"clarity": {"score": 8}, "actionability": {"score": 8},` +
			`"data_driven": {"score": 8}, "technical_accuracy": {"score": 8},` +
			`"brand_alignment": {"score": 8}, "creativity": {"score": 8}}`,
		StopReason: llm.StopEndTurn,
	}}
	e := NewEngine(cfg, client, "model-x", 2048)

	eval := e.Evaluate(context.Background(), "anything")
	assert.False(t, eval.SemanticFellBack)
	assert.Equal(t, models.VerdictApprove, eval.Verdict)
	assert.InDelta(t, 9.0, eval.Scores[DimCompleteness], 1e-9)
}

func TestEvaluateSemanticFallsBackOnError(t *testing.T) {
	cfg := testReviewConfig()
	cfg.Mode = config.ReviewModeSemantic
	client := &fakeClient{err: errors.New("boom")}
	e := NewEngine(cfg, client, "model-x", 2048)

	eval := e.Evaluate(context.Background(), strongContent())
	assert.True(t, eval.SemanticFellBack)
	assert.NotEmpty(t, eval.Scores)
}

func TestEvaluateSemanticFallsBackOnGarbage(t *testing.T) {
	cfg := testReviewConfig()
	cfg.Mode = config.ReviewModeSemantic
	client := &fakeClient{resp: &llm.Response{Content: "no json here", StopReason: llm.StopEndTurn}}
	e := NewEngine(cfg, client, "model-x", 2048)

	eval := e.Evaluate(context.Background(), strongContent())
	assert.True(t, eval.SemanticFellBack)
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"prose wrapped", "Sure!\n```json\n{\"a\": {\"b\": 2}}\n```", `{"a": {"b": 2}}`},
		{"brace in string", `{"a": "}"}`, `{"a": "}"}`},
		{"escaped quote", `{"a": "\""}`, `{"a": "\""}`},
		{"no object", "nothing here", ""},
		{"unbalanced", `{"a": 1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSONObject(tt.in))
		})
	}
}
