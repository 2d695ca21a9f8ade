// Package report renders result views for the terminal. Rows are coloured by
// the severity of their status; colours are dropped automatically when the
// output is not a terminal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"ocrdash/pkg/contracts/domain"
)

// Report renders tables and notices for one output stream.
type Report struct {
	header   lipgloss.Style
	cell     lipgloss.Style
	border   lipgloss.Style
	title    lipgloss.Style
	notice   lipgloss.Style
	warning  lipgloss.Style
	severity map[domain.Severity]lipgloss.Style
}

// New creates a report whose colour profile follows w.
func New(w io.Writer) *Report {
	r := lipgloss.NewRenderer(w)
	cell := r.NewStyle().Padding(0, 1)
	return &Report{
		header:  cell.Bold(true).Foreground(lipgloss.Color("63")),
		cell:    cell,
		border:  r.NewStyle().Foreground(lipgloss.Color("240")),
		title:   r.NewStyle().Bold(true),
		notice:  r.NewStyle().Faint(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("178")),
		severity: map[domain.Severity]lipgloss.Style{
			domain.SeverityNormal:       cell,
			domain.SeverityWarning:      cell.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("#ffcccc")),
			domain.SeverityError:        cell.Foreground(lipgloss.Color("160")).Bold(true),
			domain.SeverityUnclassified: cell.Faint(true),
		},
	}
}

// Records renders records as a table of the given columns, each row styled
// by its severity. severities is parallel to records.
func (p *Report) Records(records []domain.ResultRecord, severities []domain.Severity, columns []domain.Field) string {
	if len(columns) == 0 {
		columns = domain.CanonicalFields()
	}
	headers := make([]string, len(columns))
	for i, f := range columns {
		headers[i] = string(f)
	}
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(columns))
		for j, f := range columns {
			row[j] = rec.Value(f)
		}
		rows[i] = row
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			if row >= 0 && row < len(severities) {
				if style, ok := p.severity[severities[row]]; ok {
					return style
				}
			}
			return p.cell
		}).
		String()
}

// Table renders a plain table.
func (p *Report) Table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			return p.cell
		}).
		String()
}

// Summary renders the counters of s under title. Rates read n/a when
// nothing was graded.
func (p *Report) Summary(title string, s domain.Summary) string {
	rate := func(r float64) string {
		if !s.RatesDefined() {
			return "n/a"
		}
		return strconv.FormatFloat(r*100, 'f', 1, 64) + "%"
	}
	lines := []string{
		p.title.Render(title),
		fmt.Sprintf("  records       %d", s.Total),
		fmt.Sprintf("  graded        %d", s.Graded),
		p.severity[domain.SeverityNormal].UnsetPadding().Render(fmt.Sprintf("  correct       %d (%s)", s.Correct, rate(s.CorrectRate))),
		p.severity[domain.SeverityWarning].UnsetPadding().Render(fmt.Sprintf("  partial       %d (%s)", s.Warning, rate(s.WarningRate))),
		p.severity[domain.SeverityError].UnsetPadding().Render(fmt.Sprintf("  error         %d (%s)", s.Error, rate(s.ErrorRate))),
		p.severity[domain.SeverityUnclassified].UnsetPadding().Render(fmt.Sprintf("  unclassified  %d (%s)", s.Unclassified, rate(s.UnclassifiedRate))),
	}
	if s.MissingStatus > 0 {
		lines = append(lines, fmt.Sprintf("  no status     %d", s.MissingStatus))
	}
	return strings.Join(lines, "\n")
}

// Notice renders an informational message.
func (p *Report) Notice(msg string) string {
	return p.notice.Render(msg)
}

// Warning renders a warning line.
func (p *Report) Warning(msg string) string {
	return p.warning.Render("warning: " + msg)
}
