package models

// Priority is an ordered task priority. P0 is the highest.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	default:
		return false
	}
}

// Rank returns the numeric rank of the priority: P0 → 0, P3 → 3.
// Invalid priorities rank below P3.
func (p Priority) Rank() int {
	switch p {
	case PriorityP0:
		return 0
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	case PriorityP3:
		return 3
	default:
		return 4
	}
}

// HigherOrEqual reports whether p is at least as urgent as other.
func (p Priority) HigherOrEqual(other Priority) bool {
	return p.Rank() <= other.Rank()
}

// BudgetLevel is the five-state degradation derived from cumulative spend.
type BudgetLevel string

const (
	BudgetLevelNormal    BudgetLevel = "normal"
	BudgetLevelWarning   BudgetLevel = "warning"
	BudgetLevelThrottle  BudgetLevel = "throttle"
	BudgetLevelCritical  BudgetLevel = "critical"
	BudgetLevelExhausted BudgetLevel = "exhausted"
)

// Rank returns the numeric rank of the level: normal → 0, exhausted → 4.
// Unknown levels rank as exhausted.
func (l BudgetLevel) Rank() int {
	switch l {
	case BudgetLevelNormal:
		return 0
	case BudgetLevelWarning:
		return 1
	case BudgetLevelThrottle:
		return 2
	case BudgetLevelCritical:
		return 3
	default:
		return 4
	}
}

// IsValid checks if the budget level is valid
func (l BudgetLevel) IsValid() bool {
	switch l {
	case BudgetLevelNormal, BudgetLevelWarning, BudgetLevelThrottle,
		BudgetLevelCritical, BudgetLevelExhausted:
		return true
	default:
		return false
	}
}

// ModelTier selects a model family for an LLM call.
type ModelTier string

const (
	ModelTierOpus   ModelTier = "opus"
	ModelTierSonnet ModelTier = "sonnet"
	ModelTierHaiku  ModelTier = "haiku"
)

// IsValid checks if the model tier is valid
func (t ModelTier) IsValid() bool {
	return t == ModelTierOpus || t == ModelTierSonnet || t == ModelTierHaiku
}

// TaskStatus tracks a task through its lifecycle.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusApproved   TaskStatus = "approved"
	TaskStatusRevision   TaskStatus = "revision"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusDeferred   TaskStatus = "deferred"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsValid checks if the task status is valid
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAssigned, TaskStatusInProgress,
		TaskStatusCompleted, TaskStatusApproved, TaskStatusRevision,
		TaskStatusFailed, TaskStatusBlocked, TaskStatusDeferred,
		TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsExecutable reports whether a task in this status may be handed to the
// executor. Only fresh, claimed, and revision-requested tasks run.
func (s TaskStatus) IsExecutable() bool {
	return s == TaskStatusPending || s == TaskStatusAssigned || s == TaskStatusRevision
}

// legalTransitions is the table of permitted status moves. The canonical
// path is pending → assigned → in_progress → completed → approved; revision
// loops a task back through execution. Terminal-pending-intervention states
// (failed, blocked, deferred) may be reopened to pending.
var legalTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusAssigned, TaskStatusInProgress, TaskStatusBlocked, TaskStatusDeferred, TaskStatusCancelled},
	TaskStatusAssigned:   {TaskStatusInProgress, TaskStatusPending, TaskStatusBlocked, TaskStatusDeferred, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled},
	TaskStatusCompleted:  {TaskStatusApproved, TaskStatusRevision, TaskStatusFailed},
	TaskStatusRevision:   {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusFailed:     {TaskStatusPending, TaskStatusCancelled},
	TaskStatusBlocked:    {TaskStatusPending, TaskStatusCancelled},
	TaskStatusDeferred:   {TaskStatusPending, TaskStatusCancelled},
}

// CanTransition reports whether moving a task from one status to another is
// legal. Self-transitions are permitted so status writes stay idempotent.
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// GoalCategory selects the decomposition routing for a goal.
type GoalCategory string

const (
	GoalCategoryStrategic    GoalCategory = "strategic"
	GoalCategoryContent      GoalCategory = "content"
	GoalCategoryOptimization GoalCategory = "optimization"
	GoalCategoryRetention    GoalCategory = "retention"
	GoalCategoryCompetitive  GoalCategory = "competitive"
	GoalCategoryMeasurement  GoalCategory = "measurement"
)

// IsValid checks if the goal category is valid
func (c GoalCategory) IsValid() bool {
	switch c {
	case GoalCategoryStrategic, GoalCategoryContent, GoalCategoryOptimization,
		GoalCategoryRetention, GoalCategoryCompetitive, GoalCategoryMeasurement:
		return true
	default:
		return false
	}
}

// Squad groups skills by marketing function. The squad determines the
// default model tier and the output directory for its skills.
type Squad string

const (
	SquadStrategy Squad = "strategy"
	SquadCreative Squad = "creative"
	SquadConvert  Squad = "convert"
	SquadActivate Squad = "activate"
	SquadMeasure  Squad = "measure"
)

// IsValid checks if the squad is valid
func (s Squad) IsValid() bool {
	switch s {
	case SquadStrategy, SquadCreative, SquadConvert, SquadActivate, SquadMeasure:
		return true
	default:
		return false
	}
}

// Verdict is a review outcome.
type Verdict string

const (
	VerdictApprove Verdict = "APPROVE"
	VerdictRevise  Verdict = "REVISE"
	VerdictReject  Verdict = "REJECT"
)

// IsValid checks if the verdict is valid
func (v Verdict) IsValid() bool {
	return v == VerdictApprove || v == VerdictRevise || v == VerdictReject
}

// Severity grades a review finding.
type Severity string

const (
	SeverityMinor   Severity = "minor"
	SeverityMajor   Severity = "major"
	SeverityBlocker Severity = "blocker"
)

// IsValid checks if the severity is valid
func (s Severity) IsValid() bool {
	return s == SeverityMinor || s == SeverityMajor || s == SeverityBlocker
}

// NextActionType routes a completed task through the completion router.
type NextActionType string

const (
	NextActionComplete         NextActionType = "complete"
	NextActionDirectorReview   NextActionType = "director_review"
	NextActionPipelineContinue NextActionType = "pipeline_continue"
)

// IsValid checks if the next action type is valid
func (t NextActionType) IsValid() bool {
	return t == NextActionComplete || t == NextActionDirectorReview || t == NextActionPipelineContinue
}
