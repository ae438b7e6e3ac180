package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/domain-runner/internal/config"
	"github.com/sells-group/domain-runner/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one batch over the tracked domains",
	Long:  "Queries every configured provider about each due domain, stores the answers and records drift against the previous answers.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, config.ModeRun)
		if err != nil {
			return err
		}
		defer env.Close()

		req := pipeline.Request{}
		req.BatchID, _ = cmd.Flags().GetString("batch")
		req.Domain, _ = cmd.Flags().GetString("domain")
		req.ForceRefresh, _ = cmd.Flags().GetBool("force")
		req.Limit, _ = cmd.Flags().GetInt("limit")

		batch, err := env.Pipeline.Run(ctx, req)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	},
}

func init() {
	runCmd.Flags().String("batch", "", "batch label (default: timestamped ID)")
	runCmd.Flags().String("domain", "", "process only this domain, creating it if unknown")
	runCmd.Flags().Bool("force", false, "include domains observed within the refresh window")
	runCmd.Flags().Int("limit", 0, "maximum domains to process (0 = configured limit)")
	rootCmd.AddCommand(runCmd)
}
