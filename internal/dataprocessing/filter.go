package dataprocessing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"ocrdash/pkg/contracts/domain"
)

// Range is an inclusive numeric interval. Use math.Inf for an open side.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NewRange builds a range from optional bounds. It returns nil, an inactive
// predicate, when both bounds are nil.
func NewRange(min, max *float64) *Range {
	if min == nil && max == nil {
		return nil
	}
	r := &Range{Min: math.Inf(-1), Max: math.Inf(1)}
	if min != nil {
		r.Min = *min
	}
	if max != nil {
		r.Max = *max
	}
	return r
}

// Contains reports whether v lies within the range. A nil value never does.
func (r Range) Contains(v *float64) bool {
	return v != nil && *v >= r.Min && *v <= r.Max
}

// DateRange is an inclusive interval of calendar days. A zero From or To
// leaves that side open.
type DateRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// Contains reports whether t falls on a day within the range. A nil timestamp never does.
func (d DateRange) Contains(t *time.Time) bool {
	if t == nil {
		return false
	}
	day := dayKey(*t)
	if !d.From.IsZero() && day < dayKey(d.From) {
		return false
	}
	if !d.To.IsZero() && day > dayKey(d.To) {
		return false
	}
	return true
}

func dayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// FilterSpec enumerates the active predicates of a view. A zero value field is
// inactive and matches every record; active predicates are combined with AND.
type FilterSpec struct {
	TestID   string `json:"test_id,omitempty"`
	Question string `json:"question,omitempty"`
	Status   string `json:"status,omitempty"`
	// Search is a case-insensitive substring of the extracted value.
	Search string `json:"search,omitempty"`

	Temperature *Range     `json:"temperature,omitempty"`
	TopP        *Range     `json:"top_p,omitempty"`
	Date        *DateRange `json:"date,omitempty"`

	// set by Merge
	extraSearch []string
	matchNone   bool
}

// IsEmpty reports whether no predicate is active.
func (s FilterSpec) IsEmpty() bool {
	return s.TestID == "" && s.Question == "" && s.Status == "" && s.Search == "" &&
		s.Temperature == nil && s.TopP == nil && s.Date == nil &&
		len(s.extraSearch) == 0 && !s.matchNone
}

// Validate rejects specs whose ranges are inverted or not numbers.
func (s FilterSpec) Validate() error {
	if s.matchNone {
		return nil
	}
	check := func(name string, r *Range) error {
		if r == nil {
			return nil
		}
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
			return fmt.Errorf("%w: %s bound is not a number", ErrInvalidFilter, name)
		}
		if r.Min > r.Max {
			return fmt.Errorf("%w: %s min %g exceeds max %g", ErrInvalidFilter, name, r.Min, r.Max)
		}
		return nil
	}
	if err := check("temperature", s.Temperature); err != nil {
		return err
	}
	if err := check("top_p", s.TopP); err != nil {
		return err
	}
	if d := s.Date; d != nil && !d.From.IsZero() && !d.To.IsZero() && dayKey(d.From) > dayKey(d.To) {
		return fmt.Errorf("%w: date from %s is after to %s", ErrInvalidFilter,
			d.From.Format(domain.DateLayout), d.To.Format(domain.DateLayout))
	}
	return nil
}

// Matches reports whether rec satisfies every active predicate.
func (s FilterSpec) Matches(rec domain.ResultRecord) bool {
	if s.matchNone {
		return false
	}
	if s.TestID != "" && rec.TestID != s.TestID {
		return false
	}
	if s.Question != "" && rec.Question != s.Question {
		return false
	}
	if s.Status != "" && rec.Status != s.Status {
		return false
	}
	if s.Search != "" || len(s.extraSearch) > 0 {
		value := foldText(rec.ExtractedValue)
		if s.Search != "" && !strings.Contains(value, foldText(s.Search)) {
			return false
		}
		for _, term := range s.extraSearch {
			if !strings.Contains(value, foldText(term)) {
				return false
			}
		}
	}
	if s.Temperature != nil && !s.Temperature.Contains(rec.Temperature) {
		return false
	}
	if s.TopP != nil && !s.TopP.Contains(rec.TopP) {
		return false
	}
	if s.Date != nil && !s.Date.Contains(rec.Timestamp) {
		return false
	}
	return true
}

// Apply returns the records of set that satisfy spec, in their original order.
// An empty spec returns set itself.
func Apply(set domain.ResultSet, spec FilterSpec) domain.ResultSet {
	if spec.IsEmpty() {
		return set
	}
	kept := make([]domain.ResultRecord, 0, set.Len())
	for i := 0; i < set.Len(); i++ {
		if rec := set.At(i); spec.Matches(rec) {
			kept = append(kept, rec)
		}
	}
	return domain.NewResultSet(kept...)
}

// Merge returns the conjunction of a and b, so that filtering with a and then
// with b selects exactly what filtering once with Merge(a, b) selects.
// Conflicting equality predicates or disjoint ranges produce a spec that
// matches nothing.
func Merge(a, b FilterSpec) FilterSpec {
	out := FilterSpec{matchNone: a.matchNone || b.matchNone}

	eq := func(x, y string) string {
		switch {
		case x == "":
			return y
		case y == "" || x == y:
			return x
		}
		out.matchNone = true
		return x
	}
	out.TestID = eq(a.TestID, b.TestID)
	out.Question = eq(a.Question, b.Question)
	out.Status = eq(a.Status, b.Status)

	out.Search, out.extraSearch = mergeSearch(a, b)

	var empty bool
	out.Temperature, empty = intersectRange(a.Temperature, b.Temperature)
	out.matchNone = out.matchNone || empty
	out.TopP, empty = intersectRange(a.TopP, b.TopP)
	out.matchNone = out.matchNone || empty
	out.Date, empty = intersectDates(a.Date, b.Date)
	out.matchNone = out.matchNone || empty
	return out
}

// mergeSearch keeps one term when it implies the others and carries the
// remaining ones as extra conjuncts.
func mergeSearch(a, b FilterSpec) (string, []string) {
	var terms []string
	for _, t := range append(append([]string{a.Search}, a.extraSearch...), append([]string{b.Search}, b.extraSearch...)...) {
		if t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return "", nil
	}
	// Drop any term implied by a longer one.
	var kept []string
	for i, t := range terms {
		ft := foldText(t)
		implied := false
		for j, u := range terms {
			if i == j {
				continue
			}
			fu := foldText(u)
			if strings.Contains(fu, ft) && (fu != ft || j < i) {
				implied = true
				break
			}
		}
		if !implied {
			kept = append(kept, t)
		}
	}
	return kept[0], kept[1:]
}

func intersectRange(a, b *Range) (*Range, bool) {
	switch {
	case a == nil && b == nil:
		return nil, false
	case a == nil:
		r := *b
		return &r, false
	case b == nil:
		r := *a
		return &r, false
	}
	r := Range{Min: math.Max(a.Min, b.Min), Max: math.Min(a.Max, b.Max)}
	return &r, r.Min > r.Max
}

func intersectDates(a, b *DateRange) (*DateRange, bool) {
	switch {
	case a == nil && b == nil:
		return nil, false
	case a == nil:
		d := *b
		return &d, false
	case b == nil:
		d := *a
		return &d, false
	}
	d := DateRange{From: a.From, To: a.To}
	if d.From.IsZero() || (!b.From.IsZero() && dayKey(b.From) > dayKey(d.From)) {
		d.From = b.From
	}
	if d.To.IsZero() || (!b.To.IsZero() && dayKey(b.To) < dayKey(d.To)) {
		d.To = b.To
	}
	empty := !d.From.IsZero() && !d.To.IsZero() && dayKey(d.From) > dayKey(d.To)
	return &d, empty
}

// DistinctValues lists the non-empty values of a text field in first-seen order.
func DistinctValues(set domain.ResultSet, field domain.Field) ([]string, error) {
	if !field.IsText() {
		return nil, fmt.Errorf("%w: %s is not a text field", ErrUnknownField, field)
	}
	seen := make(map[string]struct{})
	var values []string
	for i := 0; i < set.Len(); i++ {
		v := set.At(i).Text(field)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values, nil
}
