package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/domain-runner/internal/config"
	"github.com/sells-group/domain-runner/internal/model"
	"github.com/sells-group/domain-runner/internal/store"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "Manage tracked domains",
}

// -- subjects import --

var subjectsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import domains from a CSV file (domain[,category[,priority]])",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("csv")
		if path == "" {
			return eris.New("--csv is required")
		}

		f, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "open %s", path)
		}
		defer f.Close() //nolint:errcheck

		subjects, err := parseSubjectsCSV(f)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertSubjects(ctx, subjects)
		if err != nil {
			return eris.Wrap(err, "import subjects")
		}
		fmt.Fprintf(os.Stderr, "Imported %d domains (%d rows read).\n", n, len(subjects))
		return nil
	},
}

// parseSubjectsCSV reads domain[,category[,priority]] rows. A first row whose
// first column is "domain" is treated as a header.
func parseSubjectsCSV(r io.Reader) ([]model.Subject, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []model.Subject
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: line %d", line)
		}
		if len(rec) == 0 {
			continue
		}
		domain := strings.TrimSpace(rec[0])
		if line == 1 && strings.EqualFold(domain, "domain") {
			continue
		}
		if domain == "" {
			continue
		}

		sub := model.Subject{Domain: domain, Active: true}
		if len(rec) > 1 {
			sub.Category = strings.TrimSpace(rec[1])
		}
		if len(rec) > 2 && strings.TrimSpace(rec[2]) != "" {
			p, err := strconv.Atoi(strings.TrimSpace(rec[2]))
			if err != nil {
				return nil, eris.Errorf("csv: line %d: invalid priority %q", line, rec[2])
			}
			sub.Priority = p
		}
		out = append(out, sub)
	}
	return out, nil
}

// -- subjects list --

var subjectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active domains",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")

		subjects, err := st.ListActiveSubjects(ctx, store.SubjectFilter{Category: category, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "subjects list")
		}
		if len(subjects) == 0 {
			fmt.Fprintln(os.Stderr, "No domains found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DOMAIN\tCATEGORY\tPRIORITY\tCREATED")
		for _, s := range subjects {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Domain, s.Category, s.Priority, s.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

// -- subjects deactivate --

var subjectsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <domain>",
	Short: "Stop tracking a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		domain := strings.ToLower(strings.TrimSpace(args[0]))
		if err := st.DeactivateSubject(ctx, domain); err != nil {
			return eris.Wrap(err, "deactivate")
		}
		fmt.Fprintf(os.Stderr, "Deactivated %s.\n", domain)
		return nil
	},
}

func init() {
	subjectsImportCmd.Flags().String("csv", "", "path to the CSV file")
	subjectsListCmd.Flags().String("category", "", "filter by category")
	subjectsListCmd.Flags().Int("limit", 0, "maximum rows (0 = all)")

	subjectsCmd.AddCommand(subjectsImportCmd, subjectsListCmd, subjectsDeactivateCmd)
	rootCmd.AddCommand(subjectsCmd)
}
