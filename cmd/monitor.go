package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/domain-runner/internal/config"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the drift monitor once, or continuously with --loop",
	Long:  "Aggregates per-model drift into ensemble records, then alerts when the average drift of the lookback window exceeds the threshold.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, config.ModeMonitor)
		if err != nil {
			return err
		}
		defer env.Close()

		if loop, _ := cmd.Flags().GetBool("loop"); loop {
			env.Checker.Run(ctx)
			return nil
		}

		alerts := env.Checker.Check(ctx)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"alerts": alerts})
	},
}

func init() {
	monitorCmd.Flags().Bool("loop", false, "keep checking at monitoring.check_interval_secs")
	rootCmd.AddCommand(monitorCmd)
}
