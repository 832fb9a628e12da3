package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/maestrohq/maestro/pkg/events"
	"github.com/maestrohq/maestro/pkg/models"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect event mappings or emit an event",
	}
	cmd.AddCommand(newEventsListCmd(), newEventsEmitCmd())
	return cmd
}

func newEventsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured event mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tTARGET\tPRIORITY\tCOOLDOWN\tCONDITIONS")
			for _, m := range cfg.EventMappings {
				target := m.Pipeline
				if m.GoalSkill != "" {
					target = "goal:" + m.GoalSkill
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					m.Type, target, m.Priority, m.Cooldown, len(m.Conditions))
			}
			return w.Flush()
		},
	}
}

func newEventsEmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "emit [file]",
		Short: "Emit an event from a JSON file (or stdin) and run any triggered work inline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if len(args) == 0 || args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading event: %w", err)
			}

			var event models.Event
			if err := json.Unmarshal(raw, &event); err != nil {
				return fmt.Errorf("decoding event: %w", err)
			}
			if event.ID == "" || event.Type == "" {
				return fmt.Errorf("event id and type are required")
			}
			if event.Timestamp.IsZero() {
				event.Timestamp = time.Now().UTC()
			}

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
			if tracker.State().Exhausted() {
				return codedErr(exitBudget, fmt.Errorf("budget exhausted, refusing to trigger work"))
			}
			c, err := buildCore(cfg, ws, tracker)
			if err != nil {
				return err
			}

			bus := events.NewBus(cfg.Events, cfg.EventMappings, c.director(nil, nil))
			res := bus.Emit(ctx, &event)

			fmt.Printf("triggered: %d\n", res.PipelinesTriggered)
			for _, id := range res.PipelineIDs {
				fmt.Printf("  %s\n", id)
			}
			for _, reason := range res.SkippedReasons {
				fmt.Printf("skipped: %s\n", reason)
			}
			return nil
		},
	}
}
