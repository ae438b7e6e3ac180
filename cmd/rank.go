package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/domain-runner/internal/config"
	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/internal/ranking"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank domains by citations and answer stability",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cohort, _ := cmd.Flags().GetString("cohort")
		limit, _ := cmd.Flags().GetInt("limit")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")

		scores, err := ranking.NewEngine(st, cfg.Ranking.DefaultLimit).Compute(ctx, cohort, limit)
		if err != nil {
			return eris.Wrap(err, "rank")
		}

		if xlsxPath != "" {
			if err := ranking.WriteXLSX(xlsxPath, scores); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote %d rows to %s\n", len(scores), xlsxPath)
			return nil
		}

		if len(scores) == 0 {
			fmt.Fprintln(os.Stderr, "No ranked domains.")
			return nil
		}
		return printRanking(os.Stdout, scores)
	},
}

func printRanking(out io.Writer, scores []model.BrandScore) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tDOMAIN\tSCORE\tCITATIONS\tAVG DRIFT\tSTABILITY")
	for _, s := range scores {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%d\t%.3f\t%.3f\n",
			s.Rank, s.Subject, s.Score, s.CitationCount, s.AvgDrift, s.StabilityScore)
	}
	return w.Flush()
}

func init() {
	rankCmd.Flags().String("cohort", "", "only rank domains in this category")
	rankCmd.Flags().Int("limit", 0, "maximum rows (0 = configured default)")
	rankCmd.Flags().String("xlsx", "", "write the ranking to this spreadsheet instead of stdout")
	rootCmd.AddCommand(rankCmd)
}
