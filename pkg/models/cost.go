package models

import "time"

// CostEntry records the spend of one LLM call. Timestamp is kept as an
// RFC3339 string because entries round-trip through the append-only ledger
// and may arrive malformed; consumers skip unparseable timestamps.
type CostEntry struct {
	Timestamp    string    `json:"timestamp"`
	TaskID       string    `json:"task_id"`
	Skill        string    `json:"skill"`
	Model        ModelTier `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
}

// ParsedTime returns the entry timestamp and whether it parsed cleanly.
func (e *CostEntry) ParsedTime() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
