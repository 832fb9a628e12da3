package models

import "time"

// Event is an externally sourced signal that may trigger pipelines or goals.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}
