package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestrohq/maestro/pkg/models"
)

func testTask() *models.Task {
	return &models.Task{
		ID:           "task-20260203-ab12cd",
		Skill:        "copywriting",
		Goal:         "Launch the Q2 campaign",
		Requirements: "Write three headline variants.",
	}
}

func TestBuildSectionOrder(t *testing.T) {
	in := Input{
		Task:           testTask(),
		SystemPrompt:   "You are a copywriter.",
		ProductContext: "Acme sells anvils.",
		Learnings: []models.Learning{
			{Agent: "copywriting", Outcome: "approved", Learning: "Short headlines win", Timestamp: time.Now()},
		},
		InputFiles:     []File{{Path: "outputs/strategy/positioning/task-1.md", Content: "Positioning doc"}},
		ReferenceFiles: []File{{Path: "context/product-marketing-context.md", Content: "Context doc"}},
	}
	res := Build(in)

	msg := res.UserMessage
	ctxIdx := strings.Index(msg, "<product_context>")
	learnIdx := strings.Index(msg, "<learnings>")
	reqIdx := strings.Index(msg, "<requirements>")
	inputIdx := strings.Index(msg, `<input path="outputs/strategy/positioning/task-1.md">`)
	refIdx := strings.Index(msg, `<reference path="context/product-marketing-context.md">`)

	require.GreaterOrEqual(t, ctxIdx, 0)
	assert.Less(t, ctxIdx, learnIdx)
	assert.Less(t, learnIdx, reqIdx)
	assert.Less(t, reqIdx, inputIdx)
	assert.Less(t, inputIdx, refIdx)

	assert.Equal(t, "You are a copywriter.", res.SystemPrompt)
	assert.Equal(t, 1, res.LearningsIncluded)
	assert.Contains(t, msg, "Goal: Launch the Q2 campaign")
	assert.Empty(t, res.Warnings)
}

func TestBuildPreviousOutputOnlyOnRevision(t *testing.T) {
	in := Input{
		Task:           testTask(),
		SystemPrompt:   "sys",
		PreviousOutput: "Old draft",
	}
	res := Build(in)
	assert.NotContains(t, res.UserMessage, "<previous_output>")

	in.Task.RevisionCount = 1
	res = Build(in)
	assert.Contains(t, res.UserMessage, "<previous_output>\nOld draft\n</previous_output>")
}

func TestBuildMissingInputsRecordedNotFatal(t *testing.T) {
	in := Input{
		Task:         testTask(),
		SystemPrompt: "sys",
		InputFiles: []File{
			{Path: "outputs/a.md", Content: "present"},
			{Path: "outputs/gone.md", Missing: true},
		},
	}
	res := Build(in)
	assert.Equal(t, []string{"outputs/gone.md"}, res.MissingInputs)
	assert.Contains(t, res.UserMessage, "present")
}

func TestBuildLearningsFilteredAndCapped(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	var learnings []models.Learning
	for i := 0; i < 15; i++ {
		learnings = append(learnings, models.Learning{
			Agent:     "copywriting",
			Outcome:   "approved",
			Learning:  "lesson",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}
	learnings = append(learnings, models.Learning{
		Agent: "seo-audit", Outcome: "approved", Learning: "other skill", Timestamp: base,
	})

	res := Build(Input{Task: testTask(), SystemPrompt: "sys", Learnings: learnings})
	assert.Equal(t, 10, res.LearningsIncluded)
	assert.NotContains(t, res.UserMessage, "other skill")
}

func TestBuildDropsReferencesUnderBudget(t *testing.T) {
	big := strings.Repeat("reference content ", 200)
	in := Input{
		Task:         testTask(),
		SystemPrompt: "sys",
		ReferenceFiles: []File{
			{Path: "ref/a.md", Content: "small"},
			{Path: "ref/b.md", Content: big},
		},
		TokenBudget: 120,
	}
	res := Build(in)

	// The tail reference is dropped first.
	assert.Contains(t, res.UserMessage, `<reference path="ref/a.md">`)
	assert.NotContains(t, res.UserMessage, `<reference path="ref/b.md">`)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "ref/b.md")
	assert.LessOrEqual(t, res.EstimatedTokens, 120)
}

func TestBuildImpossiblySmallBudgetStillReturnsPrompt(t *testing.T) {
	in := Input{
		Task:           testTask(),
		SystemPrompt:   strings.Repeat("system ", 100),
		ReferenceFiles: []File{{Path: "ref/a.md", Content: "ref"}},
		TokenBudget:    1,
	}
	res := Build(in)

	assert.NotContains(t, res.UserMessage, "<reference")
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[1], "exceeds the 1 token budget")
	assert.Contains(t, res.UserMessage, "<requirements>")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}
