package budget

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/workspace"
)

func testBudgetConfig(total float64) *config.BudgetConfig {
	cfg := config.DefaultBudgetConfig()
	cfg.TotalMonthlyUSD = total
	return cfg
}

func entry(cost float64) models.CostEntry {
	return models.CostEntry{
		Timestamp: "2026-02-03T10:00:00Z",
		TaskID:    "task-20260203-ab12cd",
		Skill:     "copywriting",
		Model:     models.ModelTierSonnet,
		CostUSD:   cost,
	}
}

func TestRecordAccumulatesMicrodollars(t *testing.T) {
	tr := NewTracker(testBudgetConfig(100))

	// Many small entries must not drift.
	for i := 0; i < 1000; i++ {
		tr.Record(entry(0.000001))
	}
	assert.InDelta(t, 0.001, tr.TotalSpent(), 1e-9)
}

func TestRecordClampsNegative(t *testing.T) {
	tr := NewTracker(testBudgetConfig(100))
	tr.Record(entry(5))
	tr.Record(entry(-3))
	assert.InDelta(t, 5.0, tr.TotalSpent(), 1e-9)
}

func TestStateLevels(t *testing.T) {
	tests := []struct {
		name      string
		total     float64
		spend     float64
		wantLevel models.BudgetLevel
	}{
		{"fresh budget", 100, 0, models.BudgetLevelNormal},
		{"below warning", 100, 79, models.BudgetLevelNormal},
		{"exactly at warning stays normal", 100, 80, models.BudgetLevelNormal},
		{"above warning", 100, 81, models.BudgetLevelWarning},
		{"above throttle", 100, 91, models.BudgetLevelThrottle},
		{"above critical", 100, 96, models.BudgetLevelCritical},
		{"exactly at exhausted stays critical", 100, 100, models.BudgetLevelCritical},
		{"above exhausted", 100, 101, models.BudgetLevelExhausted},
		{"zero budget with spend", 0, 0.01, models.BudgetLevelExhausted},
		{"zero budget no spend", 0, 0, models.BudgetLevelNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(testBudgetConfig(tt.total))
			if tt.spend > 0 {
				tr.Record(entry(tt.spend))
			}
			state := tr.State()
			assert.Equal(t, tt.wantLevel, state.Level)
		})
	}
}

func TestStateAllowedPrioritiesShrink(t *testing.T) {
	levels := []models.BudgetLevel{
		models.BudgetLevelNormal,
		models.BudgetLevelWarning,
		models.BudgetLevelThrottle,
		models.BudgetLevelCritical,
		models.BudgetLevelExhausted,
	}
	prev := AllowedPriorities(levels[0])
	for _, level := range levels[1:] {
		current := AllowedPriorities(level)
		assert.Less(t, len(current), len(prev), "allowed set must shrink at %s", level)
		for _, p := range current {
			assert.Contains(t, prev, p, "allowed set at %s must be a subset of the previous level", level)
		}
		prev = current
	}
	assert.Empty(t, AllowedPriorities(models.BudgetLevelExhausted))
}

func TestStateModelOverride(t *testing.T) {
	tr := NewTracker(testBudgetConfig(100))
	tr.Record(entry(96))

	state := tr.State()
	require.Equal(t, models.BudgetLevelCritical, state.Level)
	assert.Equal(t, models.ModelTierHaiku, state.ModelOverride)
	assert.Equal(t, []models.Priority{models.PriorityP0}, state.AllowedPriorities)
	assert.True(t, state.Allows(models.PriorityP0))
	assert.False(t, state.Allows(models.PriorityP1))
}

func TestStateDeterministic(t *testing.T) {
	tr := NewTracker(testBudgetConfig(100))
	tr.Record(entry(42.5))
	first := tr.State()
	second := tr.State()
	assert.Equal(t, first, second)
}

func TestRecordNeverLowersLevel(t *testing.T) {
	tr := NewTracker(testBudgetConfig(100))
	order := map[models.BudgetLevel]int{
		models.BudgetLevelNormal:    0,
		models.BudgetLevelWarning:   1,
		models.BudgetLevelThrottle:  2,
		models.BudgetLevelCritical:  3,
		models.BudgetLevelExhausted: 4,
	}
	prev := tr.State().Level
	for i := 0; i < 30; i++ {
		tr.Record(entry(4))
		level := tr.State().Level
		assert.GreaterOrEqual(t, order[level], order[prev])
		prev = level
	}
	assert.Equal(t, models.BudgetLevelExhausted, prev)
}

func TestSpentSinceSkipsMalformedTimestamps(t *testing.T) {
	tr := NewTracker(testBudgetConfig(100))
	tr.Record(models.CostEntry{Timestamp: "2026-02-01T00:00:00Z", Skill: "a", CostUSD: 1})
	tr.Record(models.CostEntry{Timestamp: "2026-02-10T00:00:00Z", Skill: "b", CostUSD: 2})
	tr.Record(models.CostEntry{Timestamp: "not-a-timestamp", Skill: "c", CostUSD: 4})

	since := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, 2.0, tr.SpentSince(since), 1e-9)
	assert.Equal(t, 1, tr.MalformedEntries())

	// Malformed entries still count toward the total.
	assert.InDelta(t, 7.0, tr.TotalSpent(), 1e-9)
}

func TestEstimateCost(t *testing.T) {
	rate := config.ModelRate{InputPerMTok: 3, OutputPerMTok: 15}
	got := EstimateCost(rate, 1000, 500)
	assert.InDelta(t, 1000*3.0/1e6+500*15.0/1e6, got, 1e-9)

	// Exact to six decimal places.
	assert.InDelta(t, 0.0105, got, 5e-7)
}

func TestFlushWritesReport(t *testing.T) {
	ws, err := workspace.NewFS(t.TempDir())
	require.NoError(t, err)

	fixed := time.Date(2026, 2, 3, 18, 0, 0, 0, time.UTC)
	tr := NewTracker(testBudgetConfig(100), WithClock(func() time.Time { return fixed }))
	tr.Record(entry(12.5))
	tr.Record(models.CostEntry{Timestamp: "garbage", Skill: "seo-audit", Model: models.ModelTierHaiku, CostUSD: 1})

	path, err := tr.Flush("costs", ws)
	require.NoError(t, err)
	assert.Equal(t, "costs/report-2026-02-03.md", path)

	data, err := ws.ReadFile(path)
	require.NoError(t, err)
	report := string(data)
	assert.Contains(t, report, "# Cost report 2026-02-03")
	assert.Contains(t, report, "copywriting")
	assert.Contains(t, report, "sonnet")
	assert.Contains(t, report, "2026-02-03")
	assert.Contains(t, report, "1 entries had malformed timestamps")
}

func TestRestoreKeepsLedgerAttached(t *testing.T) {
	ws, err := workspace.NewFS(t.TempDir())
	require.NoError(t, err)
	ledger := NewLedger(ws, "costs")

	replay := make([]models.CostEntry, 200)
	for i := range replay {
		replay[i] = entry(0.01)
	}
	tr := NewTracker(testBudgetConfig(100), WithLedger(ledger))

	// A Record racing a startup Restore must still reach the ledger.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tr.Restore(replay)
	}()
	go func() {
		defer wg.Done()
		tr.Record(entry(3))
	}()
	wg.Wait()

	persisted, err := ledger.Load()
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
	assert.InDelta(t, 5.0, tr.TotalSpent(), 1e-9)
}

func TestLedgerRoundTripAndRestore(t *testing.T) {
	ws, err := workspace.NewFS(t.TempDir())
	require.NoError(t, err)
	ledger := NewLedger(ws, "costs")

	tr := NewTracker(testBudgetConfig(100), WithLedger(ledger))
	tr.Record(entry(3))
	tr.Record(entry(4))

	entries, err := ledger.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	restored := NewTracker(testBudgetConfig(100), WithLedger(ledger))
	restored.Restore(entries)
	assert.InDelta(t, 7.0, restored.TotalSpent(), 1e-9)

	// Restore must not re-append to the ledger.
	again, err := ledger.Load()
	require.NoError(t, err)
	assert.Len(t, again, 2)
}
