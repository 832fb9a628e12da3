package config

import "github.com/maestrohq/maestro/pkg/models"

// BudgetConfig controls the cost tracker and the five-level degradation.
// A level engages only when percent used strictly exceeds its threshold:
// spend at or below WarningPercent stays normal, and spend must exceed
// ExhaustedPercent to exhaust.
type BudgetConfig struct {
	// TotalMonthlyUSD is the monthly spend ceiling. Zero means no budget:
	// any recorded spend immediately exhausts it.
	TotalMonthlyUSD float64 `yaml:"total_monthly_usd"`

	// Percent thresholds for level boundaries.
	WarningPercent   float64 `yaml:"warning_percent"`
	ThrottlePercent  float64 `yaml:"throttle_percent"`
	CriticalPercent  float64 `yaml:"critical_percent"`
	ExhaustedPercent float64 `yaml:"exhausted_percent"`

	// ModelOverride is forced at critical and exhausted levels.
	ModelOverride models.ModelTier `yaml:"model_override"`

	// ReportDir is where flush writes dated markdown cost reports,
	// relative to the workspace root.
	ReportDir string `yaml:"report_dir"`
}

// DefaultBudgetConfig returns the built-in budget defaults.
func DefaultBudgetConfig() *BudgetConfig {
	return &BudgetConfig{
		TotalMonthlyUSD:  1000,
		WarningPercent:   80,
		ThrottlePercent:  90,
		CriticalPercent:  95,
		ExhaustedPercent: 100,
		ModelOverride:    models.ModelTierHaiku,
		ReportDir:        "costs",
	}
}
