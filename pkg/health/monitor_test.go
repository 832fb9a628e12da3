package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestrohq/maestro/pkg/budget"
	"github.com/maestrohq/maestro/pkg/models"
)

func up(ctx context.Context) ComponentHealth {
	return ComponentHealth{Status: StatusUp}
}

func degraded(ctx context.Context) ComponentHealth {
	return ComponentHealth{Status: StatusDegraded, Details: "slow"}
}

func offline(ctx context.Context) ComponentHealth {
	return ComponentHealth{Status: StatusOffline, Details: "unreachable"}
}

func TestCheckHealthLevelDerivation(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   Level
	}{
		{"all up", map[string]CheckFunc{"a": up, "b": up, "c": up}, LevelHealthy},
		{"one degraded", map[string]CheckFunc{"a": up, "b": degraded, "c": up}, LevelDegraded},
		{"one offline", map[string]CheckFunc{"a": up, "b": offline, "c": up}, LevelReduced},
		{"two offline", map[string]CheckFunc{"a": offline, "b": offline, "c": up}, LevelPaused},
		{"all offline", map[string]CheckFunc{"a": offline, "b": offline, "c": offline}, LevelOffline},
		{"offline beats degraded", map[string]CheckFunc{"a": offline, "b": degraded}, LevelReduced},
		{"no checks", nil, LevelHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor()
			for name, check := range tt.checks {
				m.Register(name, check)
			}
			snapshot := m.CheckHealth(context.Background(), 0, 0, nil)
			assert.Equal(t, tt.want, snapshot.Level)
			assert.Len(t, snapshot.Components, len(tt.checks))
		})
	}
}

func TestCheckHealthBudgetFusion(t *testing.T) {
	tests := []struct {
		name  string
		level models.BudgetLevel
		want  Level
	}{
		{"normal budget leaves healthy", models.BudgetLevelNormal, LevelHealthy},
		{"warning budget leaves healthy", models.BudgetLevelWarning, LevelHealthy},
		{"critical budget forces reduced", models.BudgetLevelCritical, LevelReduced},
		{"exhausted budget forces paused", models.BudgetLevelExhausted, LevelPaused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor()
			m.Register("a", up)
			state := &budget.State{Level: tt.level}
			snapshot := m.CheckHealth(context.Background(), 0, 0, state)
			assert.Equal(t, tt.want, snapshot.Level)
			assert.Equal(t, tt.level, snapshot.BudgetLevel)
		})
	}
}

func TestCheckHealthBudgetNeverImproves(t *testing.T) {
	// A paused system stays paused even with a healthy budget.
	m := NewMonitor()
	m.Register("a", offline)
	m.Register("b", offline)
	m.Register("c", up)

	state := &budget.State{Level: models.BudgetLevelNormal}
	snapshot := m.CheckHealth(context.Background(), 0, 0, state)
	assert.Equal(t, LevelPaused, snapshot.Level)
}

func TestCheckHealthTimeoutIsOffline(t *testing.T) {
	m := NewMonitor(WithTimeout(20 * time.Millisecond))
	m.Register("stuck", func(ctx context.Context) ComponentHealth {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return ComponentHealth{Status: StatusUp}
	})

	snapshot := m.CheckHealth(context.Background(), 0, 0, nil)
	require.Contains(t, snapshot.Components, "stuck")
	assert.Equal(t, StatusOffline, snapshot.Components["stuck"].Status)
}

func TestCheckHealthPanicIsOffline(t *testing.T) {
	m := NewMonitor()
	m.Register("buggy", func(ctx context.Context) ComponentHealth {
		panic("probe bug")
	})
	m.Register("fine", up)

	snapshot := m.CheckHealth(context.Background(), 0, 0, nil)
	assert.Equal(t, StatusOffline, snapshot.Components["buggy"].Status)
	assert.Equal(t, StatusUp, snapshot.Components["fine"].Status)
	assert.Equal(t, LevelReduced, snapshot.Level)
}

func TestCheckHealthCarriesCounts(t *testing.T) {
	m := NewMonitor()
	m.Register("a", up)
	snapshot := m.CheckHealth(context.Background(), 2, 7, nil)
	assert.Equal(t, 2, snapshot.ActiveAgents)
	assert.Equal(t, 7, snapshot.QueueDepth)
	assert.Equal(t, "HEALTHY", snapshot.State)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "HEALTHY", LevelHealthy.String())
	assert.Equal(t, "DEGRADED", LevelDegraded.String())
	assert.Equal(t, "DEGRADED", LevelReduced.String())
	assert.Equal(t, "PAUSED", LevelPaused.String())
	assert.Equal(t, "OFFLINE", LevelOffline.String())
}
