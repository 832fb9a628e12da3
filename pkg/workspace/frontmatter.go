package workspace

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/maestrohq/maestro/pkg/models"
)

const frontmatterDelim = "---\n"

// encodeFrontmatter renders a markdown document with a YAML frontmatter
// block followed by the body.
func encodeFrontmatter(meta any, body string) ([]byte, error) {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling frontmatter: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(frontmatterDelim)
	sb.Write(data)
	sb.WriteString(frontmatterDelim)
	if body != "" {
		sb.WriteString("\n")
		sb.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			sb.WriteString("\n")
		}
	}
	return []byte(sb.String()), nil
}

// decodeFrontmatter splits a markdown document into its YAML frontmatter
// and body. Documents without a frontmatter block decode into the zero
// metadata with the whole content as body.
func decodeFrontmatter(data []byte, meta any) (body string, err error) {
	content := string(data)
	if !strings.HasPrefix(content, frontmatterDelim) {
		return content, nil
	}
	rest := content[len(frontmatterDelim):]
	idx := strings.Index(rest, frontmatterDelim)
	if idx < 0 {
		return "", fmt.Errorf("unterminated frontmatter block")
	}
	if err := yaml.Unmarshal([]byte(rest[:idx]), meta); err != nil {
		return "", fmt.Errorf("parsing frontmatter: %w", err)
	}
	return strings.TrimPrefix(rest[idx+len(frontmatterDelim):], "\n"), nil
}

// sectionBody extracts the text under a markdown "## Heading" up to the
// next heading or end of document.
func sectionBody(body, heading string) string {
	marker := "## " + heading
	idx := strings.Index(body, marker)
	if idx < 0 {
		return ""
	}
	rest := body[idx+len(marker):]
	if next := strings.Index(rest, "\n## "); next >= 0 {
		rest = rest[:next]
	}
	return strings.TrimSpace(rest)
}

// encodeGoal renders the goal document: frontmatter metadata plus a
// Description section.
func encodeGoal(goal *models.Goal) ([]byte, error) {
	body := "## Description\n\n" + goal.Description
	return encodeFrontmatter(goal, body)
}

// decodeGoal parses a goal document.
func decodeGoal(data []byte) (*models.Goal, error) {
	var goal models.Goal
	body, err := decodeFrontmatter(data, &goal)
	if err != nil {
		return nil, err
	}
	goal.Description = sectionBody(body, "Description")
	return &goal, nil
}

// taskMeta mirrors models.Task for frontmatter, keeping the free-text
// requirements in the body instead.
type taskMeta struct {
	models.Task `yaml:",inline"`
}

// encodeTask renders the task document: full metadata in frontmatter and
// the requirements text as a body section.
func encodeTask(task *models.Task) ([]byte, error) {
	meta := taskMeta{Task: *task.Clone()}
	meta.Requirements = ""
	body := ""
	if task.Requirements != "" {
		body = "## Requirements\n\n" + task.Requirements
	}
	return encodeFrontmatter(&meta, body)
}

// decodeTask parses a task document.
func decodeTask(data []byte) (*models.Task, error) {
	var meta taskMeta
	body, err := decodeFrontmatter(data, &meta)
	if err != nil {
		return nil, err
	}
	task := meta.Task
	task.Requirements = sectionBody(body, "Requirements")
	return &task, nil
}

// encodeReview renders the review document: metadata in frontmatter and
// findings as a body section for human readers.
func encodeReview(review *models.Review) ([]byte, error) {
	var body strings.Builder
	if len(review.Findings) > 0 {
		body.WriteString("## Findings\n\n")
		for _, f := range review.Findings {
			fmt.Fprintf(&body, "- **%s** [%s]: %s\n", f.Section, f.Severity, f.Description)
		}
	}
	return encodeFrontmatter(review, body.String())
}

// decodeReview parses a review document. Findings round-trip through the
// frontmatter copy, not the rendered body.
func decodeReview(data []byte) (*models.Review, error) {
	var review models.Review
	if _, err := decodeFrontmatter(data, &review); err != nil {
		return nil, err
	}
	return &review, nil
}
