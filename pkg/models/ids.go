package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ID prefixes for the entity families.
const (
	IDPrefixGoal     = "goal"
	IDPrefixTask     = "task"
	IDPrefixPipeline = "pipe"
	IDPrefixReview   = "rev"
	IDPrefixEvent    = "evt"
)

// NewID generates an identifier of the form {prefix}-{YYYYMMDD}-{hex6}:
// sortable by creation day, collision-resistant within a day.
func NewID(prefix string) string {
	return NewIDAt(prefix, time.Now().UTC())
}

// NewIDAt is NewID with an explicit timestamp, for deterministic tests.
func NewIDAt(prefix string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, t.Format("20060102"), uuid.NewString()[:6])
}
