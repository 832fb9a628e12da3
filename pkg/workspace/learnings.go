package workspace

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/maestrohq/maestro/pkg/models"
)

// Learnings live in an append-only markdown log. Each entry is one line
// group: a bullet header followed by indented detail lines, e.g.
//
//	- 2026-02-03T10:00:00Z | agent=copywriting | goal=goal-20260203-ab12cd | outcome=approved
//	  learning: Short subject lines doubled open rate
//	  action: Reused the winning variant in the follow-up sequence

// encodeLearning renders one log entry.
func encodeLearning(l models.Learning) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- %s | agent=%s", l.Timestamp.UTC().Format(time.RFC3339), l.Agent)
	if l.GoalID != "" {
		fmt.Fprintf(&sb, " | goal=%s", l.GoalID)
	}
	fmt.Fprintf(&sb, " | outcome=%s\n", l.Outcome)
	fmt.Fprintf(&sb, "  learning: %s\n", sanitizeLine(l.Learning))
	if l.ActionTaken != "" {
		fmt.Fprintf(&sb, "  action: %s\n", sanitizeLine(l.ActionTaken))
	}
	return []byte(sb.String())
}

// sanitizeLine keeps one entry on one line group; embedded newlines would
// break the parser.
func sanitizeLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseLearnings reads the log back into entries. Lines that do not match
// the format are skipped; the log is a memory aid, not a ledger.
func parseLearnings(data []byte) []models.Learning {
	var out []models.Learning
	var current *models.Learning

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "- "):
			if current != nil {
				out = append(out, *current)
			}
			current = parseLearningHeader(strings.TrimPrefix(line, "- "))
		case strings.HasPrefix(line, "  learning: ") && current != nil:
			current.Learning = strings.TrimPrefix(line, "  learning: ")
		case strings.HasPrefix(line, "  action: ") && current != nil:
			current.ActionTaken = strings.TrimPrefix(line, "  action: ")
		}
	}
	if current != nil {
		out = append(out, *current)
	}
	return out
}

func parseLearningHeader(header string) *models.Learning {
	parts := strings.Split(header, " | ")
	if len(parts) < 2 {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[0]))
	if err != nil {
		return nil
	}
	l := &models.Learning{Timestamp: ts}
	for _, part := range parts[1:] {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "agent":
			l.Agent = value
		case "goal":
			l.GoalID = value
		case "outcome":
			l.Outcome = value
		}
	}
	return l
}
