package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field is the canonical, schema-stable name of a result column.
// Source files may spell their headers in many ways; the loader maps every
// recognised header onto one of these names before any record is built.
type Field string

const (
	FieldTestID         Field = "test_id"
	FieldTemperature    Field = "temperature"
	FieldTopP           Field = "top_p"
	FieldQuestion       Field = "question"
	FieldExtractedValue Field = "extracted_value"
	FieldStatus         Field = "status"
	FieldNote           Field = "note"
	FieldTimestamp      Field = "timestamp"
)

// DateLayout and DateTimeLayout are the layouts used when a timestamp is
// rendered as text (exports, JSON views, terminal tables).
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

var canonicalFields = []Field{
	FieldTestID,
	FieldTemperature,
	FieldTopP,
	FieldQuestion,
	FieldExtractedValue,
	FieldStatus,
	FieldNote,
	FieldTimestamp,
}

// CanonicalFields returns every canonical field in export order.
func CanonicalFields() []Field {
	out := make([]Field, len(canonicalFields))
	copy(out, canonicalFields)
	return out
}

// ParseField resolves a canonical field name. Surrounding whitespace and
// case are ignored; header aliases are not (see dataprocessing.NormalizeHeader).
func ParseField(s string) (Field, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for _, f := range canonicalFields {
		if string(f) == want {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", s)
}

// ParseFields resolves a comma separated list of canonical field names.
// An empty input yields a nil slice.
func ParseFields(s string) ([]Field, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	fields := make([]Field, 0, len(parts))
	for _, p := range parts {
		f, err := ParseField(p)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// IsText reports whether the field holds free text (as opposed to a number or date).
func (f Field) IsText() bool {
	switch f {
	case FieldTestID, FieldQuestion, FieldExtractedValue, FieldStatus, FieldNote:
		return true
	}
	return false
}

// IsNumeric reports whether the field holds a floating point value.
func (f Field) IsNumeric() bool {
	return f == FieldTemperature || f == FieldTopP
}

func (f Field) String() string { return string(f) }

// FieldIssue records why a single cell of a record could not be used.
// The record is kept; the offending field is left unset.
type FieldIssue struct {
	Field  Field  `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// ResultRecord is one row of a curated extraction test.
type ResultRecord struct {
	// Row is the 1-based row number in the source file, header included,
	// so it matches what a spreadsheet user sees.
	Row int `json:"row"`

	TestID         string     `json:"test_id"`
	Temperature    *float64   `json:"temperature,omitempty"`
	TopP           *float64   `json:"top_p,omitempty"`
	Question       string     `json:"question"`
	ExtractedValue string     `json:"extracted_value"`
	Status         string     `json:"status"`
	Note           string     `json:"note,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`

	Issues []FieldIssue `json:"issues,omitempty"`
}

// Text returns the value of a text field. Non-text fields yield "".
func (r ResultRecord) Text(f Field) string {
	switch f {
	case FieldTestID:
		return r.TestID
	case FieldQuestion:
		return r.Question
	case FieldExtractedValue:
		return r.ExtractedValue
	case FieldStatus:
		return r.Status
	case FieldNote:
		return r.Note
	}
	return ""
}

// Value renders any field as text. Unset numeric and date fields render as "".
func (r ResultRecord) Value(f Field) string {
	switch f {
	case FieldTemperature:
		return FormatFloat(r.Temperature, -1)
	case FieldTopP:
		return FormatFloat(r.TopP, -1)
	case FieldTimestamp:
		return FormatTimestamp(r.Timestamp)
	}
	return r.Text(f)
}

// SourceValue is Value, except that a field left unset by a parse failure
// yields the cell text that failed. Exports use it so the rejected cell
// survives a reload.
func (r ResultRecord) SourceValue(f Field) string {
	if v := r.Value(f); v != "" {
		return v
	}
	for _, issue := range r.Issues {
		if issue.Field == f {
			return issue.Value
		}
	}
	return ""
}

// HasIssues reports whether any cell of the record failed to parse.
func (r ResultRecord) HasIssues() bool {
	return len(r.Issues) > 0
}

// FormatFloat renders an optional float. A negative precision selects the
// shortest representation that parses back to the same value.
func FormatFloat(v *float64, precision int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', precision, 64)
}

// FormatTimestamp renders an optional timestamp, dropping the time of day when
// it is midnight. Times with a non-zero UTC offset are written as RFC3339 so
// the offset is kept.
func FormatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	if _, offset := t.Zone(); offset != 0 {
		return t.Format(time.RFC3339)
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format(DateTimeLayout)
}

// ResultSet is an ordered, read-only sequence of records. Order is the
// source row order and is preserved by every derived view.
type ResultSet struct {
	records []ResultRecord
}

// NewResultSet builds a set from the given records. The slice is copied.
func NewResultSet(records ...ResultRecord) ResultSet {
	if len(records) == 0 {
		return ResultSet{}
	}
	cp := make([]ResultRecord, len(records))
	copy(cp, records)
	return ResultSet{records: cp}
}

// Len returns the number of records.
func (s ResultSet) Len() int { return len(s.records) }

// IsEmpty reports whether the set holds no record.
func (s ResultSet) IsEmpty() bool { return len(s.records) == 0 }

// At returns the i-th record.
func (s ResultSet) At(i int) ResultRecord { return s.records[i] }

// Records returns a copy of the records in order.
func (s ResultSet) Records() []ResultRecord {
	out := make([]ResultRecord, len(s.records))
	copy(out, s.records)
	return out
}
