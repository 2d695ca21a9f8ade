package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"ocrdash/internal/dataprocessing"
	"ocrdash/pkg/contracts/domain"
)

// ErrInvalidColumns is returned when the requested column list cannot be exported.
var ErrInvalidColumns = errors.New("invalid export columns")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ExportOptions configures a result export.
type ExportOptions struct {
	// Columns is the ordered subset of fields to write; empty means every
	// canonical field in canonical order.
	Columns []domain.Field
	// BOM prefixes CSV output with a UTF-8 byte order mark for Excel.
	BOM bool
	// FloatPrecision is the number of decimals of numeric fields; zero or
	// less writes the shortest representation that reads back exactly.
	FloatPrecision int
	// Sheet names the xlsx worksheet.
	Sheet string
	// Highlight fills xlsx rows by the severity of their status.
	Highlight bool
}

// DefaultExportOptions returns the options used when the caller has no preference.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{FloatPrecision: -1, Sheet: "Results"}
}

// ResultExporter serializes result sets as CSV or xlsx.
type ResultExporter struct {
	logger *slog.Logger
}

// NewResultExporter creates a result exporter
func NewResultExporter(logger *slog.Logger) *ResultExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultExporter{logger: logger.With(slog.String("component", "exporter"))}
}

// ContentType returns the MIME type of an export format.
func ContentType(format dataprocessing.Format) string {
	if format == dataprocessing.FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ResolveColumns validates a column subset and applies the default.
func ResolveColumns(columns []domain.Field) ([]domain.Field, error) {
	if len(columns) == 0 {
		return domain.CanonicalFields(), nil
	}
	known := make(map[domain.Field]bool)
	for _, f := range domain.CanonicalFields() {
		known[f] = true
	}
	seen := make(map[domain.Field]bool, len(columns))
	out := make([]domain.Field, 0, len(columns))
	for _, f := range columns {
		if !known[f] {
			return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidColumns, f)
		}
		if seen[f] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidColumns, f)
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

// Export writes set to w in the given format. Record order and column order
// are preserved. An empty set produces a header-only file. Cancelling ctx
// stops the export before the next row.
func (e *ResultExporter) Export(ctx context.Context, w io.Writer, set domain.ResultSet, format dataprocessing.Format, opts ExportOptions) error {
	columns, err := ResolveColumns(opts.Columns)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("export cancelled: %w", err)
	}

	switch format {
	case dataprocessing.FormatCSV:
		err = writeResultsCSV(ctx, w, set, columns, opts)
	case dataprocessing.FormatXLSX:
		err = writeResultsXLSX(ctx, w, set, columns, opts)
	default:
		return &dataprocessing.LoadError{Reason: dataprocessing.ReasonUnsupportedFormat, Detail: string(format)}
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "export failed",
			slog.String("format", string(format)),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to export %s: %w", format, err)
	}

	e.logger.InfoContext(ctx, "results exported",
		slog.String("format", string(format)),
		slog.Int("record_count", set.Len()),
		slog.Int("column_count", len(columns)))
	return nil
}

// ExportBytes is Export into a byte slice.
func (e *ResultExporter) ExportBytes(ctx context.Context, set domain.ResultSet, format dataprocessing.Format, opts ExportOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Export(ctx, &buf, set, format, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func headerRow(columns []domain.Field) []string {
	out := make([]string, len(columns))
	for i, f := range columns {
		out[i] = string(f)
	}
	return out
}

// cellText renders one field. A cell that failed to parse on load is written
// as it was read, so the record is neither lost nor silently cleared when the
// export is loaded again.
func cellText(rec domain.ResultRecord, f domain.Field, precision int) string {
	switch f {
	case domain.FieldTemperature:
		if rec.Temperature != nil {
			return formatFloat(rec.Temperature, precision)
		}
	case domain.FieldTopP:
		if rec.TopP != nil {
			return formatFloat(rec.TopP, precision)
		}
	}
	return rec.SourceValue(f)
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("export cancelled: %w", err)
	}
	return nil
}

func writeResultsCSV(ctx context.Context, w io.Writer, set domain.ResultSet, columns []domain.Field, opts ExportOptions) error {
	if opts.BOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(headerRow(columns)); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	row := make([]string, len(columns))
	for i := 0; i < set.Len(); i++ {
		if err := cancelled(ctx); err != nil {
			return err
		}
		rec := set.At(i)
		for j, f := range columns {
			row[j] = cellText(rec, f, opts.FloatPrecision)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// severityFills are the row fills of highlighted xlsx exports. Partial rows
// get the light red of the terminal report; wrong rows a stronger red.
var severityFills = map[domain.Severity]string{
	domain.SeverityWarning: "FFCCCC",
	domain.SeverityError:   "FF9999",
}

func writeResultsXLSX(ctx context.Context, w io.Writer, set domain.ResultSet, columns []domain.Field, opts ExportOptions) error {
	sheet := opts.Sheet
	if sheet == "" {
		sheet = DefaultExportOptions().Sheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	rowStyles := make(map[domain.Severity]int)
	if opts.Highlight {
		for sev, color := range severityFills {
			id, err := f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
			})
			if err != nil {
				return fmt.Errorf("failed to create row style: %w", err)
			}
			rowStyles[sev] = id
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, len(columns), 18); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, name := range headerRow(columns) {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i := 0; i < set.Len(); i++ {
		if err := cancelled(ctx); err != nil {
			return err
		}
		rec := set.At(i)
		style := rowStyles[dataprocessing.Classify(rec.Status)]

		row := make([]interface{}, len(columns))
		for j, col := range columns {
			row[j] = excelize.Cell{StyleID: style, Value: xlsxValue(rec, col, opts.FloatPrecision)}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// xlsxValue returns numbers as numeric cells and everything else as text.
// Unset numbers become empty cells, or the rejected text when they failed
// to parse.
func xlsxValue(rec domain.ResultRecord, f domain.Field, precision int) interface{} {
	var v *float64
	switch f {
	case domain.FieldTemperature:
		v = rec.Temperature
	case domain.FieldTopP:
		v = rec.TopP
	default:
		return rec.SourceValue(f)
	}
	if v == nil {
		if raw := rec.SourceValue(f); raw != "" {
			return raw
		}
		return nil
	}
	return roundTo(*v, precision)
}
