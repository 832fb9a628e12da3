package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maestrohq/maestro/pkg/director"
	"github.com/maestrohq/maestro/pkg/models"
)

func newRunCmd() *cobra.Command {
	var (
		category string
		priority string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "run <goal description>",
		Short: "Run a goal to completion inline, without the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := director.GoalSpec{
				Description: strings.Join(args, " "),
				Category:    models.GoalCategory(category),
				Priority:    models.Priority(priority),
			}
			if !spec.Category.IsValid() {
				return codedErr(exitConfig, fmt.Errorf("invalid goal category %q", category))
			}
			if priority != "" && !spec.Priority.IsValid() {
				return codedErr(exitConfig, fmt.Errorf("invalid priority %q", priority))
			}
			return runGoal(cmd.Context(), spec, dryRun)
		},
	}
	cmd.Flags().StringVar(&category, "category", string(models.GoalCategoryContent), "Goal category (strategic, content, optimization, retention, competitive, measurement)")
	cmd.Flags().StringVar(&priority, "priority", "", "Task priority (P0-P3); defaults to the configured director priority")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decompose and print the plan without executing anything")
	return cmd
}

// runGoal drives one goal through the full lifecycle on the calling
// goroutine: execute the current phase's tasks, review each output,
// re-execute revisions, and advance until the goal completes.
func runGoal(ctx context.Context, spec director.GoalSpec, dryRun bool) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cfg)
	if err != nil {
		return err
	}
	tracker := buildTracker(cfg, ws)
	if tracker.State().Exhausted() {
		return codedErr(exitBudget, fmt.Errorf("budget exhausted (%.2f%% used), refusing to start",
			tracker.State().PercentUsed))
	}

	c, err := buildCore(cfg, ws, tracker)
	if err != nil {
		return err
	}
	dir := c.director(nil, nil)

	if dryRun {
		goal, err := dir.CreateGoal(spec)
		if err != nil {
			return err
		}
		plan, err := dir.Decompose(goal)
		if err != nil {
			return err
		}
		fmt.Printf("Goal %s: %s\n", goal.ID, goal.Description)
		for i, phase := range plan.Phases {
			mode := "sequential"
			if phase.Parallel {
				mode = "parallel"
			}
			fmt.Printf("  phase %d  %-28s %-10s %s\n",
				i, phase.Name, mode, strings.Join(phase.Skills, ", "))
		}
		return nil
	}

	goal, plan, tasks, err := dir.StartGoal(ctx, spec)
	if err != nil {
		return err
	}
	slog.Info("Goal started", "goal_id", goal.ID, "phases", len(plan.Phases), "tasks", len(tasks))

	work := tasks
	for {
		var followUps []*models.Task
		for _, task := range work {
			result := c.executor.Execute(ctx, task)
			if result.Failed() {
				return fmt.Errorf("task %s (%s) failed: %w", task.ID, task.Skill, result.Err)
			}
			if result.OutputPath != "" && task.Output.Path == "" {
				task.Output.Path = result.OutputPath
				task.Status = result.Status
				if err := ws.WriteTask(task); err != nil {
					slog.Warn("Could not record task output path", "task_id", task.ID, "error", err)
				}
			}
			slog.Info("Task executed",
				"task_id", task.ID, "skill", task.Skill,
				"output", result.OutputPath, "cost_usd", result.CostUSD)

			decision, err := dir.ReviewTask(ctx, task.ID)
			if err != nil {
				return fmt.Errorf("reviewing task %s: %w", task.ID, err)
			}
			slog.Info("Task reviewed",
				"task_id", task.ID, "action", decision.Action, "reasoning", decision.Reasoning)
			if decision.Action == director.ActionEscalateHuman {
				fmt.Printf("Goal %s needs human attention: %s\n", goal.ID, decision.Escalation)
				return codedErr(1, fmt.Errorf("task %s escalated after repeated revisions", task.ID))
			}
			followUps = append(followUps, decision.NextTasks...)
		}

		// Revisions and reassignments run before the goal advances.
		if len(followUps) > 0 {
			work = followUps
			continue
		}

		adv, err := dir.AdvanceGoal(ctx, goal.ID)
		if err != nil {
			return fmt.Errorf("advancing goal %s: %w", goal.ID, err)
		}
		if adv.Complete {
			fmt.Printf("Goal %s completed (%.2f USD spent total)\n", goal.ID, tracker.TotalSpent())
			return nil
		}
		if len(adv.Tasks) == 0 {
			return fmt.Errorf("goal %s stalled: no tasks materialized for the next phase", goal.ID)
		}
		slog.Info("Phase advanced", "goal_id", goal.ID, "phase", adv.PhaseIndex, "tasks", len(adv.Tasks))
		work = adv.Tasks
	}
}
