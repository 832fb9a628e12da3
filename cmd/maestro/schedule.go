package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "List configured schedules with their firing state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			ws, err := openWorkspace(cfg)
			if err != nil {
				return err
			}

			now := time.Now()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCRON\tTARGET\tENABLED\tLAST FIRED\tNEXT\tFIRES")
			for _, sched := range cfg.Schedules {
				next := "invalid cron"
				if spec, err := cron.ParseStandard(sched.Cron); err == nil {
					next = spec.Next(now).Format(time.RFC3339)
				}
				lastFired, fires := "never", 0
				if state, err := ws.ReadScheduleState(sched.ID); err == nil {
					fires = state.FireCount
					if !state.LastFiredAt.IsZero() {
						lastFired = state.LastFiredAt.Format(time.RFC3339)
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\t%d\n",
					sched.ID, sched.Cron, sched.Target, sched.Enabled, lastFired, next, fires)
			}
			return w.Flush()
		},
	}
}
