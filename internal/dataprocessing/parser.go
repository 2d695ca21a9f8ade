package dataprocessing

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"ocrdash/pkg/contracts/domain"
)

// Format is the declared tabular format of an upload.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseFormat resolves a format hint such as "csv", ".xlsx" or "XLSX".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	}
	return "", &LoadError{Reason: ReasonUnsupportedFormat, Detail: s}
}

// FormatFromFilename infers the format from a file name's extension.
func FormatFromFilename(name string) (Format, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", &LoadError{Reason: ReasonUnsupportedFormat, Detail: "no file extension in " + filepath.Base(name)}
	}
	return ParseFormat(ext)
}

// LoadOptions configures the loader.
type LoadOptions struct {
	Sheet          string         // xlsx sheet to read; empty selects the first sheet with a usable header
	Charset        string         // utf-8 (strict, default), windows-1252 or latin1; CSV only
	Required       []domain.Field // canonical columns that must be present
	HeaderScanRows int            // how many non-empty leading rows may hold the header
	Logger         *slog.Logger
}

// DefaultLoadOptions returns the options used when the caller has no preference.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Charset:        "utf-8",
		Required:       []domain.Field{domain.FieldQuestion, domain.FieldStatus},
		HeaderScanRows: 10,
	}
}

func (o LoadOptions) withDefaults() LoadOptions {
	def := DefaultLoadOptions()
	if o.Charset == "" {
		o.Charset = def.Charset
	}
	if len(o.Required) == 0 {
		o.Required = def.Required
	}
	if o.HeaderScanRows <= 0 {
		o.HeaderScanRows = def.HeaderScanRows
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// LoadResult is the outcome of a successful load.
type LoadResult struct {
	Set     domain.ResultSet
	Issues  []*FieldParseError
	Columns map[domain.Field]string // canonical field -> header as spelled in the file
	Ignored []string                // headers that matched no canonical field
	Sheet   string                  // sheet the records came from (xlsx only)
}

// sheetRows is the raw cell grid of one sheet (a CSV file is a single sheet).
type sheetRows struct {
	name   string
	rows   [][]string
	rowNum []int // 1-based source row of rows[i]
	serial bool  // numeric dates are Excel serials
}

// LoadFile opens path and loads it with the format implied by its extension.
func LoadFile(ctx context.Context, path string, opts LoadOptions) (*LoadResult, error) {
	format, err := FormatFromFilename(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Reason: ReasonRead, Detail: path, Err: err}
	}
	defer f.Close()
	return Load(ctx, f, format, opts)
}

// Load parses tabular bytes into a ResultSet.
//
// LoadError and SchemaError abort the load and no partial set is returned.
// Cells that fail coercion are reported in LoadResult.Issues and leave their
// field unset on an otherwise retained record.
func Load(ctx context.Context, r io.Reader, format Format, opts LoadOptions) (*LoadResult, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With(slog.String("component", "loader"))

	var sheets []sheetRows
	var err error
	switch format {
	case FormatCSV:
		var sheet sheetRows
		sheet, err = readCSV(r, opts.Charset)
		sheets = []sheetRows{sheet}
	case FormatXLSX:
		sheets, err = readXLSX(r, opts.Sheet)
	default:
		return nil, &LoadError{Reason: ReasonUnsupportedFormat, Detail: string(format)}
	}
	if err != nil {
		logger.WarnContext(ctx, "file could not be read",
			slog.String("format", string(format)),
			slog.String("error", err.Error()))
		return nil, err
	}

	var firstSchemaErr *SchemaError
	sawRows := false
	for _, sheet := range sheets {
		headerIdx, mapping, schemaErr := locateHeader(sheet.rows, opts.Required, opts.HeaderScanRows)
		if headerIdx < 0 && schemaErr == nil {
			continue
		}
		sawRows = true
		if schemaErr != nil {
			logger.DebugContext(ctx, "sheet has no usable header",
				slog.String("sheet", sheet.name),
				slog.String("error", schemaErr.Error()))
			if firstSchemaErr == nil {
				firstSchemaErr = schemaErr
			}
			continue
		}

		for _, dup := range mapping.dups {
			logger.WarnContext(ctx, "duplicate column ignored",
				slog.String("sheet", sheet.name),
				slog.String("header", dup))
		}

		result, err := buildResult(ctx, sheet, headerIdx, mapping)
		if err != nil {
			return nil, err
		}
		for _, issue := range result.Issues {
			logger.WarnContext(ctx, "field could not be parsed",
				slog.Int("row", issue.Row),
				slog.String("field", string(issue.Field)),
				slog.String("value", issue.Value),
				slog.String("error", issue.Err.Error()))
		}
		logger.InfoContext(ctx, "result file loaded",
			slog.String("format", string(format)),
			slog.String("sheet", sheet.name),
			slog.Int("record_count", result.Set.Len()),
			slog.Int("issue_count", len(result.Issues)),
			slog.Int("ignored_columns", len(result.Ignored)))
		return result, nil
	}

	if !sawRows {
		return nil, &LoadError{Reason: ReasonEmptyFile}
	}
	logger.WarnContext(ctx, "required columns missing",
		slog.String("error", firstSchemaErr.Error()),
		slog.Any("headers", firstSchemaErr.Headers))
	return nil, firstSchemaErr
}

func readCSV(r io.Reader, charset string) (sheetRows, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return sheetRows{}, &LoadError{Reason: ReasonRead, Err: err}
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	data, err = decodeCharset(data, charset)
	if err != nil {
		return sheetRows{}, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var sheet sheetRows
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sheetRows{}, &LoadError{Reason: ReasonMalformed, Err: err}
		}
		line, _ := cr.FieldPos(0)
		sheet.rows = append(sheet.rows, record)
		sheet.rowNum = append(sheet.rowNum, line)
	}
	return sheet, nil
}

func decodeCharset(data []byte, charset string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		if !utf8.Valid(data) {
			return nil, &LoadError{Reason: ReasonUnreadableEncoding, Detail: "input is not valid UTF-8"}
		}
		return data, nil
	case "windows-1252", "cp1252":
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, &LoadError{Reason: ReasonUnreadableEncoding, Err: err}
		}
		return out, nil
	case "latin1", "iso-8859-1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, &LoadError{Reason: ReasonUnreadableEncoding, Err: err}
		}
		return out, nil
	}
	return nil, &LoadError{Reason: ReasonUnreadableEncoding, Detail: "unsupported charset " + charset}
}

// delimiterSniffLines bounds how many lines holding a separator are polled
// by detectDelimiter.
const delimiterSniffLines = 10

// detectDelimiter picks ';' over ',' when most of the leading lines hold more
// of them, which is how spreadsheets saved under a pt-BR locale come out.
// Lines without either separator, such as a title row above the header, do
// not vote.
func detectDelimiter(data []byte) rune {
	semicolon, comma, polled := 0, 0, 0
	for len(data) > 0 && polled < delimiterSniffLines {
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			data = nil
		}
		semis, commas := bytes.Count(line, []byte{';'}), bytes.Count(line, []byte{','})
		switch {
		case semis == 0 && commas == 0:
			continue
		case semis > commas:
			semicolon++
		case commas > semis:
			comma++
		}
		polled++
	}
	if semicolon > comma {
		return ';'
	}
	return ','
}

func readXLSX(r io.Reader, sheetName string) ([]sheetRows, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &LoadError{Reason: ReasonMalformed, Err: err}
	}
	defer f.Close()

	names := f.GetSheetList()
	if sheetName != "" {
		idx, err := f.GetSheetIndex(sheetName)
		if err != nil || idx < 0 {
			return nil, &LoadError{Reason: ReasonSheetNotFound, Detail: sheetName, Err: err}
		}
		names = []string{sheetName}
	}

	sheets := make([]sheetRows, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, &LoadError{Reason: ReasonMalformed, Detail: "sheet " + name, Err: err}
		}
		nums := make([]int, len(rows))
		for i := range rows {
			nums[i] = i + 1
		}
		sheets = append(sheets, sheetRows{name: name, rows: rows, rowNum: nums, serial: true})
	}
	return sheets, nil
}

// locateHeader finds the header among the first scan non-empty rows. It returns
// -1 and a nil error when the grid has no non-empty row at all.
func locateHeader(rows [][]string, required []domain.Field, scan int) (int, headerMapping, *SchemaError) {
	var firstErr *SchemaError
	seen := 0
	for i, row := range rows {
		if isBlankRow(row) {
			continue
		}
		mapping := mapHeader(row)
		missing := mapping.missing(required)
		if len(missing) == 0 {
			return i, mapping, nil
		}
		if firstErr == nil {
			firstErr = &SchemaError{Missing: missing, Headers: trimmedCells(row)}
		}
		seen++
		if seen >= scan {
			break
		}
	}
	return -1, headerMapping{}, firstErr
}

func buildResult(ctx context.Context, sheet sheetRows, headerIdx int, mapping headerMapping) (*LoadResult, error) {
	result := &LoadResult{
		Columns: mapping.source,
		Ignored: mapping.ignored,
		Sheet:   sheet.name,
	}

	records := make([]domain.ResultRecord, 0, len(sheet.rows)-headerIdx-1)
	for i := headerIdx + 1; i < len(sheet.rows); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load cancelled: %w", err)
		}
		row := sheet.rows[i]
		if !mapping.hasContent(row) {
			continue
		}
		rec, issues := buildRecord(row, sheet.rowNum[i], mapping.index, sheet.serial)
		records = append(records, rec)
		result.Issues = append(result.Issues, issues...)
	}
	result.Set = domain.NewResultSet(records...)
	return result, nil
}

func buildRecord(row []string, rowNum int, idx map[domain.Field]int, serialDates bool) (domain.ResultRecord, []*FieldParseError) {
	cell := func(f domain.Field) (string, bool) {
		i, ok := idx[f]
		if !ok || i >= len(row) {
			return "", ok
		}
		return strings.TrimSpace(row[i]), true
	}
	text := func(f domain.Field) string {
		v, _ := cell(f)
		return v
	}

	rec := domain.ResultRecord{
		Row:            rowNum,
		TestID:         text(domain.FieldTestID),
		Question:       text(domain.FieldQuestion),
		ExtractedValue: text(domain.FieldExtractedValue),
		Status:         text(domain.FieldStatus),
		Note:           text(domain.FieldNote),
	}

	var issues []*FieldParseError
	fail := func(f domain.Field, raw string, err error) {
		issues = append(issues, &FieldParseError{Row: rowNum, Field: f, Value: raw, Err: err})
		rec.Issues = append(rec.Issues, domain.FieldIssue{Field: f, Value: raw, Reason: err.Error()})
	}

	if raw, ok := cell(domain.FieldTemperature); ok {
		if v, err := parseNumber(raw); err != nil {
			fail(domain.FieldTemperature, raw, err)
		} else {
			rec.Temperature = v
		}
	}
	if raw, ok := cell(domain.FieldTopP); ok {
		if v, err := parseNumber(raw); err != nil {
			fail(domain.FieldTopP, raw, err)
		} else {
			rec.TopP = v
		}
	}
	if raw, ok := cell(domain.FieldTimestamp); ok {
		if t, err := parseTimestamp(raw, serialDates); err != nil {
			fail(domain.FieldTimestamp, raw, err)
		} else {
			rec.Timestamp = t
		}
	}
	return rec, issues
}

var errNotFinite = errors.New("value is not a finite number")

// parseNumber accepts a decimal point or a single decimal comma. Empty cells
// are absent values, not errors.
func parseNumber(raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, errNotFinite
	}
	return &v, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	domain.DateTimeLayout,
	"2006-01-02T15:04:05",
	domain.DateLayout,
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

func parseTimestamp(raw string, serial bool) (*time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	if serial {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil {
				return &t, nil
			}
		}
	}
	return nil, fmt.Errorf("unrecognised date")
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// hasContent reports whether any mapped column of row holds a value. Rows
// whose only content sits in ignored columns carry no record.
func (m headerMapping) hasContent(row []string) bool {
	for _, i := range m.index {
		if i < len(row) && strings.TrimSpace(row[i]) != "" {
			return true
		}
	}
	return false
}

func trimmedCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
