package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/maestrohq/maestro/pkg/models"
)

// ConfigValidator validates configuration comprehensively. Errors are
// aggregated so one load reports every problem, not just the first.
type ConfigValidator struct {
	cfg  *Config
	errs []error
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation and returns all errors
// joined together.
func (v *ConfigValidator) ValidateAll() error {
	// Validate in dependency order: squads before the skills that
	// reference them, skills before tools/pipelines/schedules/mappings.
	v.validateSquads()
	v.validateSkills()
	v.validateTools()
	v.validatePipelines()
	v.validateSchedules()
	v.validateEventMappings()
	v.validateBudget()
	v.validateLLM()
	v.validateQueue()
	v.validateDirector()
	v.validateReview()

	return errors.Join(v.errs...)
}

func (v *ConfigValidator) addError(component, id, field string, err error) {
	v.errs = append(v.errs, NewValidationError(component, id, field, err))
}

func (v *ConfigValidator) validateSquads() {
	for name, squad := range v.cfg.SquadRegistry.GetAll() {
		if squad.ModelTier != "" && !squad.ModelTier.IsValid() {
			v.addError("squad", name, "model_tier", fmt.Errorf("invalid tier: %s", squad.ModelTier))
		}
	}
}

func (v *ConfigValidator) validateSkills() {
	skills := v.cfg.SkillRegistry.GetAll()

	foundationCount := 0
	for name, skill := range skills {
		if skill.Foundation {
			foundationCount++
			if skill.Squad != "" {
				v.addError("skill", name, "squad", fmt.Errorf("foundation skills have no squad"))
			}
		}

		if skill.SystemPrompt == "" {
			v.addError("skill", name, "system_prompt", fmt.Errorf("manifest body required"))
		}

		if skill.Squad != "" && !v.cfg.SquadRegistry.Has(skill.Squad) {
			v.addError("skill", name, "squad", fmt.Errorf("squad '%s' not found", skill.Squad))
		}

		for _, dep := range skill.DependsOn {
			other, exists := skills[dep]
			if !exists {
				v.addError("skill", name, "depends_on", fmt.Errorf("skill '%s' not found", dep))
				continue
			}
			// Bidirectional edges (e.g. copywriting ↔ page-cro) are
			// permitted at depth 1; surface them for operators.
			if name < dep && containsString(other.DependsOn, name) {
				slog.Warn("Bidirectional skill dependency",
					"skill", name,
					"peer", dep)
			}
		}

		for _, toolName := range skill.Tools {
			if !v.cfg.ToolRegistry.Has(toolName) {
				v.addError("skill", name, "tools", fmt.Errorf("tool '%s' not found", toolName))
			}
		}
	}

	if foundationCount > 1 {
		v.addError("skill", "foundation", "", fmt.Errorf("at most one foundation skill allowed, found %d", foundationCount))
	}
}

func (v *ConfigValidator) validateTools() {
	for name, tool := range v.cfg.ToolRegistry.GetAll() {
		if tool.Description == "" {
			v.addError("tool", name, "description", fmt.Errorf("required"))
		}
		if !tool.Provider.IsValid() {
			v.addError("tool", name, "provider", fmt.Errorf("invalid provider: %s", tool.Provider))
		}
		if len(tool.Actions) == 0 {
			v.addError("tool", name, "actions", fmt.Errorf("at least one action required"))
		}
		if tool.RateLimit != nil && tool.RateLimit.MaxPerMinute < 1 {
			v.addError("tool", name, "rate_limit.max_per_minute", fmt.Errorf("must be at least 1"))
		}

		for _, skill := range tool.Skills {
			if !v.cfg.SkillRegistry.Has(skill) {
				v.addError("tool", name, "skills", fmt.Errorf("skill '%s' not found", skill))
			}
		}

		for i, action := range tool.Actions {
			if action.Name == "" {
				v.addError("tool", name, fmt.Sprintf("actions[%d].name", i), fmt.Errorf("required"))
			}
			if action.Description == "" {
				v.addError("tool", name, fmt.Sprintf("actions[%d].description", i), fmt.Errorf("required"))
			}
			if action.Parameters.Type != "" && action.Parameters.Type != "object" {
				v.addError("tool", name, fmt.Sprintf("actions[%d].parameters.type", i),
					fmt.Errorf("must be \"object\", got %q", action.Parameters.Type))
			}
		}
	}
}

func (v *ConfigValidator) validatePipelines() {
	for name, pipeline := range v.cfg.PipelineRegistry.GetAll() {
		if len(pipeline.Steps) == 0 {
			v.addError("pipeline", name, "steps", fmt.Errorf("at least one step required"))
		}

		for i, step := range pipeline.Steps {
			field := fmt.Sprintf("steps[%d]", i)
			switch step.Type {
			case models.StepTypeSequential:
				if step.Skill == "" {
					v.addError("pipeline", name, field, fmt.Errorf("sequential step requires a skill"))
				} else if !v.cfg.SkillRegistry.Has(step.Skill) {
					v.addError("pipeline", name, field, fmt.Errorf("skill '%s' not found", step.Skill))
				}
			case models.StepTypeParallel:
				if len(step.Skills) == 0 {
					v.addError("pipeline", name, field, fmt.Errorf("parallel step requires at least one skill"))
				}
				for _, skill := range step.Skills {
					if !v.cfg.SkillRegistry.Has(skill) {
						v.addError("pipeline", name, field, fmt.Errorf("skill '%s' not found", skill))
					}
				}
			case models.StepTypeReview:
				if step.Reviewer == "" {
					v.addError("pipeline", name, field, fmt.Errorf("review step requires a reviewer"))
				}
			default:
				v.addError("pipeline", name, field, fmt.Errorf("invalid step type: %s", step.Type))
			}
		}
	}
}

func (v *ConfigValidator) validateSchedules() {
	seen := make(map[string]struct{}, len(v.cfg.Schedules))
	for _, schedule := range v.cfg.Schedules {
		if schedule.ID == "" {
			v.addError("schedule", schedule.Name, "id", fmt.Errorf("required"))
			continue
		}
		if _, dup := seen[schedule.ID]; dup {
			v.addError("schedule", schedule.ID, "id", fmt.Errorf("duplicate schedule id"))
		}
		seen[schedule.ID] = struct{}{}

		if _, err := cron.ParseStandard(schedule.Cron); err != nil {
			v.addError("schedule", schedule.ID, "cron", fmt.Errorf("invalid expression %q: %v", schedule.Cron, err))
		}

		if !schedule.Priority.IsValid() {
			v.addError("schedule", schedule.ID, "priority", fmt.Errorf("invalid priority: %s", schedule.Priority))
		}

		if schedule.GoalCategory != "" && !schedule.GoalCategory.IsValid() {
			v.addError("schedule", schedule.ID, "goal_category", fmt.Errorf("invalid category: %s", schedule.GoalCategory))
		}

		if schedule.Target == "" {
			v.addError("schedule", schedule.ID, "target", fmt.Errorf("required"))
			continue
		}
		if skill := schedule.GoalSkill(); skill != "" {
			if !v.cfg.SkillRegistry.Has(skill) {
				v.addError("schedule", schedule.ID, "target", fmt.Errorf("skill '%s' not found", skill))
			}
		} else if !v.cfg.PipelineRegistry.Has(schedule.Target) {
			v.addError("schedule", schedule.ID, "target", fmt.Errorf("pipeline template '%s' not found", schedule.Target))
		}
	}
}

func (v *ConfigValidator) validateEventMappings() {
	validOps := map[string]struct{}{
		"eq": {}, "ne": {}, "gt": {}, "gte": {}, "lt": {}, "lte": {}, "contains": {},
	}

	for i, mapping := range v.cfg.EventMappings {
		id := mapping.Type
		if id == "" {
			id = fmt.Sprintf("mappings[%d]", i)
			v.addError("event_mapping", id, "type", fmt.Errorf("required"))
		}

		hasPipeline := mapping.Pipeline != ""
		hasGoal := mapping.GoalSkill != ""
		if hasPipeline == hasGoal {
			v.addError("event_mapping", id, "", fmt.Errorf("exactly one of pipeline or goal_skill required"))
		}
		if hasPipeline && !v.cfg.PipelineRegistry.Has(mapping.Pipeline) {
			v.addError("event_mapping", id, "pipeline", fmt.Errorf("pipeline template '%s' not found", mapping.Pipeline))
		}
		if hasGoal && !v.cfg.SkillRegistry.Has(mapping.GoalSkill) {
			v.addError("event_mapping", id, "goal_skill", fmt.Errorf("skill '%s' not found", mapping.GoalSkill))
		}

		if mapping.Priority != "" && !mapping.Priority.IsValid() {
			v.addError("event_mapping", id, "priority", fmt.Errorf("invalid priority: %s", mapping.Priority))
		}
		if mapping.GoalCategory != "" && !mapping.GoalCategory.IsValid() {
			v.addError("event_mapping", id, "goal_category", fmt.Errorf("invalid category: %s", mapping.GoalCategory))
		}

		for j, cond := range mapping.Conditions {
			if cond.Field == "" {
				v.addError("event_mapping", id, fmt.Sprintf("conditions[%d].field", j), fmt.Errorf("required"))
			}
			if _, ok := validOps[cond.Op]; !ok {
				v.addError("event_mapping", id, fmt.Sprintf("conditions[%d].op", j), fmt.Errorf("invalid op: %s", cond.Op))
			}
		}
	}
}

func (v *ConfigValidator) validateBudget() {
	b := v.cfg.Budget
	if b.TotalMonthlyUSD < 0 {
		v.addError("budget", "budget", "total_monthly_usd", fmt.Errorf("must not be negative"))
	}
	if b.WarningPercent <= 0 {
		v.addError("budget", "budget", "warning_percent", fmt.Errorf("must be positive"))
	}
	if !(b.WarningPercent < b.ThrottlePercent &&
		b.ThrottlePercent < b.CriticalPercent &&
		b.CriticalPercent < b.ExhaustedPercent) {
		v.addError("budget", "budget", "", fmt.Errorf(
			"thresholds must be strictly ascending: warning %.f, throttle %.f, critical %.f, exhausted %.f",
			b.WarningPercent, b.ThrottlePercent, b.CriticalPercent, b.ExhaustedPercent))
	}
	if b.ModelOverride != "" && !b.ModelOverride.IsValid() {
		v.addError("budget", "budget", "model_override", fmt.Errorf("invalid tier: %s", b.ModelOverride))
	}
}

func (v *ConfigValidator) validateLLM() {
	l := v.cfg.LLM
	if l.APIKeyEnv == "" {
		v.addError("llm", "llm", "api_key_env", fmt.Errorf("required"))
	}
	if l.ModelID(models.ModelTierSonnet) == "" {
		v.addError("llm", "llm", "models", fmt.Errorf("a sonnet model id is required as fallback"))
	}
	for tier := range l.Models {
		if !tier.IsValid() {
			v.addError("llm", "llm", "models", fmt.Errorf("invalid tier: %s", tier))
		}
	}
	for tier, rate := range l.Rates {
		if !tier.IsValid() {
			v.addError("llm", "llm", "rates", fmt.Errorf("invalid tier: %s", tier))
		}
		if rate.InputPerMTok < 0 || rate.OutputPerMTok < 0 {
			v.addError("llm", "llm", "rates", fmt.Errorf("tier %s: rates must not be negative", tier))
		}
	}
	if l.MaxTokens < 1 {
		v.addError("llm", "llm", "max_tokens", fmt.Errorf("must be at least 1"))
	}
	if l.RequestTimeout <= 0 {
		v.addError("llm", "llm", "request_timeout", fmt.Errorf("must be positive"))
	}
	if l.MaxToolIterations < 1 {
		v.addError("llm", "llm", "max_tool_iterations", fmt.Errorf("must be at least 1"))
	}
	if l.ContextTokenBudget < 1 {
		v.addError("llm", "llm", "context_token_budget", fmt.Errorf("must be at least 1"))
	}
}

func (v *ConfigValidator) validateQueue() {
	q := v.cfg.Queue
	if !q.Backend.IsValid() {
		v.addError("queue", "queue", "backend", fmt.Errorf("invalid backend: %s", q.Backend))
	}
	if q.Backend == QueueBackendRedis && q.RedisAddr == "" {
		v.addError("queue", "queue", "redis_addr", fmt.Errorf("required for redis backend"))
	}
	if q.WorkerCount < 1 {
		v.addError("queue", "queue", "worker_count", fmt.Errorf("must be at least 1"))
	}
	if q.MaxConcurrentTasks < 1 {
		v.addError("queue", "queue", "max_concurrent_tasks", fmt.Errorf("must be at least 1"))
	}
	if q.TaskTimeout <= 0 {
		v.addError("queue", "queue", "task_timeout", fmt.Errorf("must be positive"))
	}
	if q.FailureThreshold < 1 {
		v.addError("queue", "queue", "failure_threshold", fmt.Errorf("must be at least 1"))
	}
	if q.FallbackDir == "" {
		v.addError("queue", "queue", "fallback_dir", fmt.Errorf("required"))
	}
}

func (v *ConfigValidator) validateDirector() {
	d := v.cfg.Director
	if d.MaxRevisions < 0 {
		v.addError("director", "director", "max_revisions", fmt.Errorf("must not be negative"))
	}
	if !d.DefaultPriority.IsValid() {
		v.addError("director", "director", "default_priority", fmt.Errorf("invalid priority: %s", d.DefaultPriority))
	}
}

func (v *ConfigValidator) validateReview() {
	r := v.cfg.Review
	if !r.Mode.IsValid() {
		v.addError("review", "review", "mode", fmt.Errorf("invalid mode: %s", r.Mode))
	}
	if r.RejectThreshold >= r.ApproveThreshold {
		v.addError("review", "review", "", fmt.Errorf(
			"reject_threshold %.1f must be below approve_threshold %.1f",
			r.RejectThreshold, r.ApproveThreshold))
	}
	for dim, w := range r.Weights {
		if w < 0 {
			v.addError("review", "review", "weights", fmt.Errorf("dimension %s: weight must not be negative", dim))
		}
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
