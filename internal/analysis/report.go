package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/danielpatrickdp/halluprobe/internal/records"
)

// #region summary-csv

var summaryHeader = []string{
	"condition", "category", "n", "correct", "abstained", "hallucinated",
	"accuracy", "hallucination_rate", "abstention_rate",
	"mean_confidence", "mean_confidence_when_correct", "mean_confidence_when_wrong",
	"mean_confidence_when_hallucinated", "brier_score", "expected_calibration_error",
	"confidence_coverage",
}

// WriteSummaryCSV writes summaries with a header row. Nil statistics are empty cells.
func WriteSummaryCSV(w io.Writer, sums []Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, s := range sums {
		row := []string{
			string(s.Condition),
			string(s.Category),
			strconv.Itoa(s.N),
			strconv.Itoa(s.Correct),
			strconv.Itoa(s.Abstained),
			strconv.Itoa(s.Hallucinated),
			formatRate(s.Accuracy),
			formatRate(s.HallucinationRate),
			formatRate(s.AbstentionRate),
			records.FormatOptional(s.MeanConfidence),
			records.FormatOptional(s.MeanConfidenceCorrect),
			records.FormatOptional(s.MeanConfidenceWrong),
			records.FormatOptional(s.MeanConfidenceHallucinated),
			records.FormatOptional(s.BrierScore),
			records.FormatOptional(s.CalibrationError),
			formatRate(s.ConfidenceCoverage),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write summary row %s: %w", s.Condition, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// #endregion

// #region table

// TableStyle selects console or markdown rendering.
type TableStyle int

const (
	StyleConsole TableStyle = iota
	StyleMarkdown
)

// RenderTable renders summaries as a table. A category column is added when
// any summary carries one.
func RenderTable(sums []Summary, style TableStyle) string {
	withCategory := false
	for _, s := range sums {
		if s.Category != "" {
			withCategory = true
			break
		}
	}

	w := table.NewWriter()
	w.SetStyle(table.StyleLight)

	header := table.Row{"Condition"}
	if withCategory {
		header = append(header, "Category")
	}
	header = append(header, "N", "Correct", "Abstained", "Halluc.", "Accuracy", "Halluc. rate", "Abstain rate", "Mean conf.", "Conf. wrong", "ECE")
	w.AppendHeader(header)

	var total, correct, abstained, halluc int
	for _, s := range sums {
		row := table.Row{string(s.Condition)}
		if withCategory {
			row = append(row, string(s.Category))
		}
		row = append(row,
			s.N, s.Correct, s.Abstained, s.Hallucinated,
			pct(s.Accuracy), pct(s.HallucinationRate), pct(s.AbstentionRate),
			optional(s.MeanConfidence), optional(s.MeanConfidenceWrong), optional(s.CalibrationError),
		)
		w.AppendRow(row)
		total += s.N
		correct += s.Correct
		abstained += s.Abstained
		halluc += s.Hallucinated
	}

	footer := table.Row{"total"}
	if withCategory {
		footer = append(footer, "")
	}
	footer = append(footer, total, correct, abstained, halluc)
	w.AppendFooter(footer)

	first := 2
	if withCategory {
		first = 3
	}
	cfgs := make([]table.ColumnConfig, 0, len(header)-first+1)
	for n := first; n <= len(header); n++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	w.SetColumnConfigs(cfgs)

	if style == StyleMarkdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

// #endregion
