package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maestrohq/maestro/pkg/director"
	"github.com/maestrohq/maestro/pkg/health"
	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// handleHealth runs the fused health probe. HTTP status maps from the
// derived level: healthy 200, degraded 207, paused/offline 503.
func (s *Server) handleHealth(c *gin.Context) {
	active, depth := s.poolStats(c)
	state := s.deps.Tracker.State()
	snapshot := s.deps.Monitor.CheckHealth(c.Request.Context(), active, depth, &state)

	status := http.StatusOK
	switch {
	case snapshot.Level >= health.LevelPaused:
		status = http.StatusServiceUnavailable
	case snapshot.Level >= health.LevelDegraded:
		status = http.StatusMultiStatus
	}
	c.JSON(status, snapshot)
}

// handleStatus reports budget, queue, and worker occupancy.
func (s *Server) handleStatus(c *gin.Context) {
	active, depth := s.poolStats(c)
	state := s.deps.Tracker.State()
	c.JSON(http.StatusOK, gin.H{
		"budget_level":   state.Level,
		"percent_used":   state.PercentUsed,
		"active_workers": active,
		"queue_depth":    depth,
		"time":           time.Now().UTC(),
	})
}

// handleBudget returns the full budget snapshot.
func (s *Server) handleBudget(c *gin.Context) {
	state := s.deps.Tracker.State()
	c.JSON(http.StatusOK, gin.H{
		"level":              state.Level,
		"percent_used":       state.PercentUsed,
		"spent_usd":          state.SpentUSD,
		"total_usd":          state.TotalUSD,
		"allowed_priorities": state.AllowedPriorities,
		"model_override":     state.ModelOverride,
		"spent_this_month":   s.deps.Tracker.SpentThisMonth(),
	})
}

func (s *Server) handleListGoals(c *gin.Context) {
	goals, err := s.deps.WS.ListGoals()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": goals})
}

func (s *Server) handleGetGoal(c *gin.Context) {
	id := c.Param("id")
	goal, err := s.deps.WS.ReadGoal(id)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) || errors.Is(err, workspace.ErrGoalNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "goal not found", "id": id})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{"goal": goal}
	if plan, err := s.deps.WS.ReadGoalPlan(id); err == nil {
		resp["plan"] = plan
	}
	c.JSON(http.StatusOK, resp)
}

// createGoalRequest is the POST /goals payload.
type createGoalRequest struct {
	Description string `json:"description" binding:"required"`
	Category    string `json:"category" binding:"required"`
	Priority    string `json:"priority"`
}

// handleCreateGoal starts a goal the same way the CLI run command does.
func (s *Server) handleCreateGoal(c *gin.Context) {
	if s.deps.Director == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "director not available"})
		return
	}
	var req createGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category := models.GoalCategory(req.Category)
	if !category.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category", "category": req.Category})
		return
	}
	priority := models.Priority(req.Priority)
	if req.Priority != "" && !priority.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid priority", "priority": req.Priority})
		return
	}

	goal, plan, tasks, err := s.deps.Director.StartGoal(c.Request.Context(), director.GoalSpec{
		Description: req.Description,
		Category:    category,
		Priority:    priority,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	taskIDs := make([]string, 0, len(tasks))
	for _, task := range tasks {
		taskIDs = append(taskIDs, task.ID)
	}
	c.JSON(http.StatusCreated, gin.H{
		"goal":     goal,
		"phases":   len(plan.Phases),
		"task_ids": taskIDs,
	})
}

// handleEmitEvent feeds an external event into the bus. Dedup, cooldown,
// and condition checks all happen bus-side; the response reports what
// each mapping decided.
func (s *Server) handleEmitEvent(c *gin.Context) {
	if s.deps.Bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus not available"})
		return
	}
	var event models.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if event.ID == "" || event.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event id and type are required"})
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	res := s.deps.Bus.Emit(c.Request.Context(), &event)
	c.JSON(http.StatusAccepted, gin.H{
		"pipelines_triggered": res.PipelinesTriggered,
		"pipeline_ids":        res.PipelineIDs,
		"skipped_reasons":     res.SkippedReasons,
	})
}

// poolStats reads worker occupancy and queue depth, tolerating a nil
// pool (inline mode).
func (s *Server) poolStats(c *gin.Context) (active, depth int) {
	if s.deps.Pool == nil {
		return 0, 0
	}
	ph := s.deps.Pool.Health(c.Request.Context())
	return ph.Active, ph.QueueDepth
}
