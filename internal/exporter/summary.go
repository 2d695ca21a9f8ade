package exporter

import (
	"time"

	"ocrdash/pkg/contracts/domain"
)

// SummaryHeaders are the columns of a summary report row.
var SummaryHeaders = []string{
	"generated_at", "source", "filters",
	"total", "correct", "warning", "error", "unclassified", "missing_status", "graded",
	"correct_rate", "warning_rate", "error_rate", "unclassified_rate",
}

// SummaryRow renders one summary as a report row. Rates are left empty when
// nothing was graded.
func SummaryRow(at time.Time, source, filters string, s domain.Summary) []string {
	rate := func(r float64) string {
		if !s.RatesDefined() {
			return ""
		}
		return formatRate(r)
	}
	return []string{
		at.UTC().Format(time.RFC3339), source, filters,
		formatInt(s.Total), formatInt(s.Correct), formatInt(s.Warning), formatInt(s.Error),
		formatInt(s.Unclassified), formatInt(s.MissingStatus), formatInt(s.Graded),
		rate(s.CorrectRate), rate(s.WarningRate), rate(s.ErrorRate), rate(s.UnclassifiedRate),
	}
}

// GroupTable renders grouped accuracy as a header and rows, the group column
// named after field.
func GroupTable(field domain.Field, groups []domain.GroupStat) ([]string, [][]string) {
	headers := []string{string(field), "total", "graded", "correct", "rate"}
	rows := make([][]string, len(groups))
	for i, g := range groups {
		rate := ""
		if g.Graded > 0 {
			rate = formatRate(g.Rate)
		}
		rows[i] = []string{g.Value, formatInt(g.Total), formatInt(g.Graded), formatInt(g.Correct), rate}
	}
	return headers, rows
}
