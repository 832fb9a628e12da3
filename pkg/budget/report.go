package budget

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

// FileWriter is the slice of the workspace the report needs.
type FileWriter interface {
	WriteFile(path string, data []byte) error
}

// Flush writes a dated markdown cost report into dir: totals, per-skill,
// per-model, and daily breakdowns. Returns the report path.
func (t *Tracker) Flush(dir string, w FileWriter) (string, error) {
	t.mu.Lock()
	total := t.totalMicro
	bySkill := copyAggregate(t.bySkill)
	byModel := copyAggregate(t.byModel)
	byDay := copyAggregate(t.byDay)
	malformed := t.malformed
	t.mu.Unlock()

	day := t.now().UTC().Format("2006-01-02")
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Cost report %s\n\n", day)
	fmt.Fprintf(&sb, "Total spent: $%.6f of $%.2f monthly budget\n\n", float64(total)/microPerDollar, t.cfg.TotalMonthlyUSD)

	writeBreakdown(&sb, "By skill", bySkill)
	writeBreakdown(&sb, "By model", byModel)
	writeBreakdown(&sb, "By day", byDay)

	if malformed > 0 {
		fmt.Fprintf(&sb, "Note: %d entries had malformed timestamps and are excluded from the daily breakdown.\n", malformed)
	}

	reportPath := path.Join(dir, fmt.Sprintf("report-%s.md", day))
	if err := w.WriteFile(reportPath, []byte(sb.String())); err != nil {
		return "", fmt.Errorf("writing cost report: %w", err)
	}
	return reportPath, nil
}

func copyAggregate(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func writeBreakdown(sb *strings.Builder, title string, agg map[string]int64) {
	fmt.Fprintf(sb, "## %s\n\n", title)
	if len(agg) == 0 {
		sb.WriteString("(no spend recorded)\n\n")
		return
	}
	keys := make([]string, 0, len(agg))
	for k := range agg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb.WriteString("| Key | Spent |\n|---|---|\n")
	for _, k := range keys {
		name := k
		if name == "" {
			name = "(unattributed)"
		}
		fmt.Fprintf(sb, "| %s | $%.6f |\n", name, float64(agg[k])/microPerDollar)
	}
	sb.WriteString("\n")
}

// monthStart returns the first instant of the current month, the window
// SpentSince uses for monthly accounting.
func monthStart(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// SpentThisMonth sums spend since the start of the current month.
func (t *Tracker) SpentThisMonth() float64 {
	return t.SpentSince(monthStart(t.now()))
}
