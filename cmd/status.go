package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/docextract/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show job health metrics and any alerts they would trigger",
	Annotations: map[string]string{configMode: "store"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lookback, _ := cmd.Flags().GetInt("lookback")
		if lookback <= 0 {
			lookback = cfg.Monitoring.LookbackHours
		}

		collector := monitoring.NewCollector(st, stuckAfter())
		snap, err := collector.Collect(ctx, lookback)
		if err != nil {
			return err
		}

		out := struct {
			*monitoring.MetricsSnapshot
			Alerts []monitoring.Alert `json:"alerts,omitempty"`
		}{
			MetricsSnapshot: snap,
			Alerts:          monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap),
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func stuckAfter() time.Duration {
	return time.Duration(cfg.Monitoring.StuckJobThresholdMins) * time.Minute
}

func init() {
	statusCmd.Flags().Int("lookback", 0, "lookback window in hours (default from config)")
	rootCmd.AddCommand(statusCmd)
}
