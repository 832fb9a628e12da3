package budget

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/metrics"
	"github.com/maestrohq/maestro/pkg/models"
)

// microPerDollar converts between dollars and the integer microdollars the
// tracker accumulates. Integer accounting avoids float drift across many
// small entries.
const microPerDollar = 1_000_000

// Tracker is the process-wide cost accumulator. It is the only shared
// mutable singleton in the system; every mutation holds the lock because
// scheduler, executor, and queue read it concurrently.
type Tracker struct {
	cfg *config.BudgetConfig
	log *slog.Logger
	now func() time.Time

	mu         sync.Mutex
	totalMicro int64
	bySkill    map[string]int64
	byModel    map[string]int64
	byDay      map[string]int64
	entries    []models.CostEntry
	malformed  int

	// ledger receives every recorded entry, best-effort
	ledger *Ledger
}

// TrackerOption configures the tracker.
type TrackerOption func(*Tracker)

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithLedger attaches a persistent ledger appended on every Record.
func WithLedger(l *Ledger) TrackerOption {
	return func(t *Tracker) { t.ledger = l }
}

// NewTracker creates a cost tracker for the given budget configuration.
func NewTracker(cfg *config.BudgetConfig, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		cfg:     cfg,
		log:     slog.With("component", "budget"),
		now:     time.Now,
		bySkill: make(map[string]int64),
		byModel: make(map[string]int64),
		byDay:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// recordLocked applies one entry to the in-memory aggregates and returns
// the normalized entry plus its microdollar cost. Caller holds t.mu.
func (t *Tracker) recordLocked(entry models.CostEntry) (models.CostEntry, int64) {
	micro := int64(math.Round(entry.CostUSD * microPerDollar))
	if micro < 0 {
		micro = 0
		entry.CostUSD = 0
	}
	if entry.Timestamp == "" {
		entry.Timestamp = t.now().UTC().Format(time.RFC3339)
	}

	t.totalMicro += micro
	t.bySkill[entry.Skill] += micro
	t.byModel[string(entry.Model)] += micro
	if ts, ok := entry.ParsedTime(); ok {
		t.byDay[ts.UTC().Format("2006-01-02")] += micro
	} else {
		t.malformed++
	}
	t.entries = append(t.entries, entry)
	return entry, micro
}

// Record accumulates one entry's spend. Negative costs are clamped to
// zero. The entry is mirrored to the ledger when one is attached.
func (t *Tracker) Record(entry models.CostEntry) {
	t.mu.Lock()
	entry, micro := t.recordLocked(entry)
	ledger := t.ledger
	t.mu.Unlock()

	metrics.SpentMicrodollars.Add(float64(micro))

	if ledger != nil {
		if err := ledger.Append(entry); err != nil {
			t.log.Warn("Failed to append cost ledger entry",
				"task_id", entry.TaskID, "error", err)
		}
	}
}

// Restore replays previously persisted entries at startup. The entries
// came from the ledger, so they are not appended back to it; the whole
// replay runs under one critical section so concurrent readers never see
// a tracker with its ledger detached.
func (t *Tracker) Restore(entries []models.CostEntry) {
	var micro int64

	t.mu.Lock()
	for _, entry := range entries {
		_, m := t.recordLocked(entry)
		micro += m
	}
	t.mu.Unlock()

	metrics.SpentMicrodollars.Add(float64(micro))
}

// TotalSpent returns cumulative spend in dollars, reconstructed from the
// microdollar total.
func (t *Tracker) TotalSpent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.totalMicro) / microPerDollar
}

// SpentSince sums entries with parseable timestamps at or after the given
// time. Entries with malformed timestamps are skipped.
func (t *Tracker) SpentSince(since time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var micro int64
	for _, entry := range t.entries {
		ts, ok := entry.ParsedTime()
		if !ok {
			continue
		}
		if !ts.Before(since) {
			micro += int64(math.Round(entry.CostUSD * microPerDollar))
		}
	}
	return float64(micro) / microPerDollar
}

// State derives the budget snapshot from the microdollar total. Thresholds
// use strict greater-than comparisons: spend exactly at a boundary keeps
// the lower level.
func (t *Tracker) State() State {
	t.mu.Lock()
	spentMicro := t.totalMicro
	t.mu.Unlock()

	spent := float64(spentMicro) / microPerDollar
	total := t.cfg.TotalMonthlyUSD

	var percent float64
	var level models.BudgetLevel
	switch {
	case total <= 0 && spentMicro > 0:
		percent = 100
		level = models.BudgetLevelExhausted
	case total <= 0:
		level = models.BudgetLevelNormal
	default:
		percent = 100 * spent / total
		switch {
		case percent > t.cfg.ExhaustedPercent:
			level = models.BudgetLevelExhausted
		case percent > t.cfg.CriticalPercent:
			level = models.BudgetLevelCritical
		case percent > t.cfg.ThrottlePercent:
			level = models.BudgetLevelThrottle
		case percent > t.cfg.WarningPercent:
			level = models.BudgetLevelWarning
		default:
			level = models.BudgetLevelNormal
		}
	}

	state := State{
		Level:             level,
		PercentUsed:       percent,
		SpentUSD:          spent,
		TotalUSD:          total,
		AllowedPriorities: AllowedPriorities(level),
	}
	if levelForcesOverride(level) {
		state.ModelOverride = t.cfg.ModelOverride
	}
	return state
}

// StateFunc returns the read-only closure handed to consumers.
func (t *Tracker) StateFunc() StateFunc {
	return t.State
}

// MalformedEntries returns the count of recorded entries whose timestamps
// did not parse. Surfaced in the flush report footer.
func (t *Tracker) MalformedEntries() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.malformed
}

// EstimateCost prices an LLM call: tokens times the tier's per-million
// rates.
func EstimateCost(rate config.ModelRate, inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*rate.InputPerMTok + float64(outputTokens)*rate.OutputPerMTok) / 1e6
}
