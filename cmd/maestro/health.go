package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/maestrohq/maestro/pkg/health"
	"github.com/maestrohq/maestro/pkg/queue"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run a one-shot health check and print the fused snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			ws, err := openWorkspace(cfg)
			if err != nil {
				return err
			}
			tracker := buildTracker(cfg, ws)

			adapter := selectAdapter(ctx, cfg.Queue)
			manager := queue.NewManager(adapter, ws, tracker.StateFunc(), cfg.Queue, time.Now)

			monitor := health.NewMonitor()
			monitor.Register("workspace", workspaceCheck(ws))
			monitor.Register("queue", queueCheck(manager))
			monitor.Register("llm", llmCheck(cfg))

			depth, _ := manager.Depth(ctx)
			state := tracker.State()
			snapshot := monitor.CheckHealth(ctx, 0, depth, &state)

			out, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if snapshot.Level >= health.LevelPaused {
				return codedErr(1, fmt.Errorf("system %s", snapshot.State))
			}
			return nil
		},
	}
}
