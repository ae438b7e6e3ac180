package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/domain-runner/internal/config"
	"github.com/sells-group/domain-runner/internal/model"
)

var batchesCmd = &cobra.Command{
	Use:   "batches [id]",
	Short: "List recent batches, or show one batch",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if len(args) == 1 {
			batch, err := st.GetBatch(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "get batch")
			}
			if batch == nil {
				return eris.Errorf("batch not found: %s", args[0])
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(batch)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		batches, err := st.ListBatches(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "list batches")
		}
		if len(batches) == 0 {
			fmt.Fprintln(os.Stderr, "No batches found.")
			return nil
		}
		return printBatches(os.Stdout, batches)
	},
}

func printBatches(out io.Writer, batches []model.BatchRun) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BATCH\tSTATUS\tSTARTED\tDURATION\tDOMAINS\tCALLS\tOK\tFAILED")
	for _, b := range batches {
		duration := "-"
		if b.CompletedAt != nil {
			duration = b.CompletedAt.Sub(b.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			b.ID, b.Status, b.StartedAt.Format(time.RFC3339), duration,
			b.SubjectsProcessed, b.TotalCalls, b.Successes, b.Failures)
	}
	return w.Flush()
}

func init() {
	batchesCmd.Flags().Int("limit", 20, "maximum batches to list")
	rootCmd.AddCommand(batchesCmd)
}
