package config

import (
	"log/slog"
	"os"
	"strconv"
)

// Environment variable names honored at load time. These override YAML so
// deployments can reconfigure without editing config files.
const (
	EnvWorkspaceDir = "MAESTRO_WORKSPACE"
	EnvRedisAddr    = "REDIS_ADDR"
	EnvBudgetTotal  = "MAESTRO_BUDGET_TOTAL"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
)

// applyEnvOverrides applies the documented environment variables on top of
// the loaded configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvWorkspaceDir); v != "" {
		cfg.System.WorkspaceDir = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Queue.RedisAddr = v
		if cfg.Queue.Backend == "" {
			cfg.Queue.Backend = QueueBackendRedis
		}
	}
	if v := os.Getenv(EnvBudgetTotal); v != "" {
		total, err := strconv.ParseFloat(v, 64)
		if err != nil || total < 0 {
			slog.Warn("Ignoring invalid budget total from environment",
				"var", EnvBudgetTotal,
				"value", v)
		} else {
			cfg.Budget.TotalMonthlyUSD = total
		}
	}
}

// DefaultSystemConfig returns the built-in system defaults.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		WorkspaceDir: "./workspace",
	}
}
