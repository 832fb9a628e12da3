// Package prompt assembles the system and user content for one task's LLM
// call under a token budget with a deterministic drop order.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maestrohq/maestro/pkg/models"
)

// Tokens are estimated at four characters each. Close enough for budget
// gating; the API reports exact usage after the fact.
const charsPerToken = 4

// learningsBudgetShare caps how much of the token budget past learnings
// may consume.
const learningsBudgetShare = 0.05

// defaultLearningsLimit caps how many learnings a prompt carries when the
// caller does not override it.
const defaultLearningsLimit = 10

// File is one workspace document offered to the builder. Missing input
// files are recorded in the result but never fail the build.
type File struct {
	Path    string
	Content string
	Missing bool
}

// Input is everything the builder needs for one task.
type Input struct {
	Task           *models.Task
	SystemPrompt   string
	ProductContext string
	Learnings      []models.Learning
	PreviousOutput string
	InputFiles     []File
	ReferenceFiles []File
	TokenBudget    int
	LearningsLimit int
}

// Result is the assembled prompt.
type Result struct {
	SystemPrompt      string
	UserMessage       string
	EstimatedTokens   int
	MissingInputs     []string
	Warnings          []string
	LearningsIncluded int
}

// EstimateTokens approximates the token count of a string.
func EstimateTokens(s string) int {
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// Build assembles the prompt. The user message concatenates, in fixed
// order: product context, past learnings, task requirements, previous
// output (revisions only), input files, reference files. When the
// estimate exceeds the budget, reference files are dropped from the tail;
// if the core content alone still exceeds it, a warning is emitted and the
// build proceeds.
func Build(in Input) *Result {
	res := &Result{SystemPrompt: in.SystemPrompt}

	var core strings.Builder

	if in.ProductContext != "" {
		writeSection(&core, "product_context", in.ProductContext)
	}

	res.LearningsIncluded = writeLearnings(&core, in)

	writeSection(&core, "requirements", requirementsText(in.Task))

	if in.Task != nil && in.Task.RevisionCount > 0 && in.PreviousOutput != "" {
		writeSection(&core, "previous_output", in.PreviousOutput)
	}

	for _, file := range in.InputFiles {
		if file.Missing {
			res.MissingInputs = append(res.MissingInputs, file.Path)
			continue
		}
		writeTaggedSection(&core, "input", file.Path, file.Content)
	}

	// Reference files are the droppable tail.
	refs := make([]string, 0, len(in.ReferenceFiles))
	refPaths := make([]string, 0, len(in.ReferenceFiles))
	for _, file := range in.ReferenceFiles {
		if file.Missing {
			continue
		}
		var sb strings.Builder
		writeTaggedSection(&sb, "reference", file.Path, file.Content)
		refs = append(refs, sb.String())
		refPaths = append(refPaths, file.Path)
	}

	coreText := core.String()
	kept := len(refs)
	if in.TokenBudget > 0 {
		for kept > 0 && estimateAll(in.SystemPrompt, coreText, refs[:kept]) > in.TokenBudget {
			kept--
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("dropped reference file %s to fit the context budget", refPaths[kept]))
		}
		if kept == 0 && estimateAll(in.SystemPrompt, coreText, nil) > in.TokenBudget {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("core prompt content exceeds the %d token budget", in.TokenBudget))
		}
	}

	res.UserMessage = coreText + strings.Join(refs[:kept], "")
	res.EstimatedTokens = EstimateTokens(in.SystemPrompt + res.UserMessage)
	return res
}

func estimateAll(system, core string, refs []string) int {
	total := len(system) + len(core)
	for _, r := range refs {
		total += len(r)
	}
	return (total + charsPerToken - 1) / charsPerToken
}

func requirementsText(task *models.Task) string {
	if task == nil {
		return ""
	}
	var sb strings.Builder
	if task.Goal != "" {
		sb.WriteString("Goal: " + task.Goal + "\n\n")
	}
	sb.WriteString(task.Requirements)
	return sb.String()
}

// writeLearnings filters learnings to the task's skill, newest first,
// capped by count and by the learnings share of the token budget.
func writeLearnings(sb *strings.Builder, in Input) int {
	if in.Task == nil || len(in.Learnings) == 0 {
		return 0
	}

	filtered := make([]models.Learning, 0, len(in.Learnings))
	for _, l := range in.Learnings {
		if l.Agent == in.Task.Skill {
			filtered = append(filtered, l)
		}
	}
	if len(filtered) == 0 {
		return 0
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})

	limit := in.LearningsLimit
	if limit <= 0 {
		limit = defaultLearningsLimit
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	charBudget := -1
	if in.TokenBudget > 0 {
		charBudget = int(float64(in.TokenBudget) * learningsBudgetShare * charsPerToken)
	}

	var body strings.Builder
	included := 0
	for _, l := range filtered {
		line := fmt.Sprintf("- [%s] %s", l.Outcome, l.Learning)
		if l.ActionTaken != "" {
			line += " (action: " + l.ActionTaken + ")"
		}
		line += "\n"
		if charBudget >= 0 && body.Len()+len(line) > charBudget {
			break
		}
		body.WriteString(line)
		included++
	}
	if included == 0 {
		return 0
	}
	writeSection(sb, "learnings", strings.TrimRight(body.String(), "\n"))
	return included
}

func writeSection(sb *strings.Builder, tag, content string) {
	if content == "" {
		return
	}
	fmt.Fprintf(sb, "<%s>\n%s\n</%s>\n\n", tag, strings.TrimRight(content, "\n"), tag)
}

func writeTaggedSection(sb *strings.Builder, tag, path, content string) {
	fmt.Fprintf(sb, "<%s path=%q>\n%s\n</%s>\n\n", tag, path, strings.TrimRight(content, "\n"), tag)
}
