package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/domain-runner/internal/config"
)

var driftCmd = &cobra.Command{
	Use:   "drift <domain>",
	Short: "Show drift counts and the latest drift record for a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		domain := strings.ToLower(strings.TrimSpace(args[0]))
		stats, err := st.DriftStats(ctx, domain)
		if err != nil {
			return eris.Wrap(err, "drift stats")
		}
		latest, err := st.LatestDrift(ctx, domain)
		if err != nil {
			return eris.Wrap(err, "latest drift")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"domain":       domain,
			"drift_stats":  stats,
			"latest_drift": latest,
		})
	},
}

func init() {
	rootCmd.AddCommand(driftCmd)
}
