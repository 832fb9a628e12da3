// Package budget implements the integer-microdollar cost tracker and the
// five-level degradation state that gates scheduling, queueing, and
// execution.
package budget

import "github.com/maestrohq/maestro/pkg/models"

// State is the derived budget snapshot components consult before doing
// work. It is a value: holders never share mutable tracker internals.
type State struct {
	Level             models.BudgetLevel
	PercentUsed       float64
	SpentUSD          float64
	TotalUSD          float64
	AllowedPriorities []models.Priority
	ModelOverride     models.ModelTier
}

// StateFunc is the read-only closure handed to components that need to
// observe the budget without sharing the tracker itself.
type StateFunc func() State

// Allows reports whether work at the given priority may proceed.
func (s State) Allows(p models.Priority) bool {
	for _, allowed := range s.AllowedPriorities {
		if allowed == p {
			return true
		}
	}
	return false
}

// Exhausted reports whether all work is gated off.
func (s State) Exhausted() bool {
	return s.Level == models.BudgetLevelExhausted
}

// allowedByLevel is the static level → allowed-priorities mapping. Sets
// shrink monotonically as the level degrades.
var allowedByLevel = map[models.BudgetLevel][]models.Priority{
	models.BudgetLevelNormal:    {models.PriorityP0, models.PriorityP1, models.PriorityP2, models.PriorityP3},
	models.BudgetLevelWarning:   {models.PriorityP0, models.PriorityP1, models.PriorityP2},
	models.BudgetLevelThrottle:  {models.PriorityP0, models.PriorityP1},
	models.BudgetLevelCritical:  {models.PriorityP0},
	models.BudgetLevelExhausted: {},
}

// AllowedPriorities returns the priorities permitted at a level.
func AllowedPriorities(level models.BudgetLevel) []models.Priority {
	return append([]models.Priority(nil), allowedByLevel[level]...)
}

// overrideLevels force a model tier regardless of squad defaults.
func levelForcesOverride(level models.BudgetLevel) bool {
	return level == models.BudgetLevelCritical || level == models.BudgetLevelExhausted
}
