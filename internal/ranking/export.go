package ranking

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/domain-runner/internal/model"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Ranking"

var exportHeader = []string{"rank", "domain", "score", "citation_count", "avg_drift", "stability_score"}

// WriteXLSX saves scores as a single-sheet workbook at path.
func WriteXLSX(path string, scores []model.BrandScore) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "ranking: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().SetString(h)
	}

	for _, s := range scores {
		row := sheet.AddRow()
		row.AddCell().SetInt(s.Rank)
		row.AddCell().SetString(s.Subject)
		row.AddCell().SetFloatWithFormat(s.Score, "0.00")
		row.AddCell().SetInt(s.CitationCount)
		row.AddCell().SetFloatWithFormat(s.AvgDrift, "0.000")
		row.AddCell().SetFloatWithFormat(s.StabilityScore, "0.0")
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "ranking: save %s", path)
	}
	return nil
}
