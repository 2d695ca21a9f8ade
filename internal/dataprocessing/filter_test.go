package dataprocessing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocrdash/pkg/contracts/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayPtr(y int, m time.Month, d int) *time.Time {
	t := day(y, m, d)
	return &t
}

func filterFixture() domain.ResultSet {
	return domain.NewResultSet(
		domain.ResultRecord{Row: 2, TestID: "A", Temperature: ptr(0.2), TopP: ptr(0.9), Question: "Nome", ExtractedValue: "Maria Silva", Status: "Correto", Timestamp: dayPtr(2024, 3, 1)},
		domain.ResultRecord{Row: 3, TestID: "A", Temperature: ptr(0.2), TopP: ptr(0.9), Question: "CPF", ExtractedValue: "123", Status: "Parcialmente", Timestamp: dayPtr(2024, 3, 1)},
		domain.ResultRecord{Row: 4, TestID: "B", Temperature: ptr(0.7), TopP: ptr(1), Question: "Nome", ExtractedValue: "JOÃO silva", Status: "Errado", Timestamp: dayPtr(2024, 3, 2)},
		domain.ResultRecord{Row: 5, TestID: "B", Temperature: nil, Question: "CPF", ExtractedValue: "", Status: "", Timestamp: nil},
		domain.ResultRecord{Row: 6, TestID: "C", Temperature: ptr(1), TopP: ptr(0.5), Question: "Nome", ExtractedValue: "Ana", Status: "Correto", Timestamp: func() *time.Time { t := time.Date(2024, 3, 3, 23, 59, 0, 0, time.UTC); return &t }()},
	)
}

func rows(set domain.ResultSet) []int {
	out := make([]int, set.Len())
	for i := range out {
		out[i] = set.At(i).Row
	}
	return out
}

func TestApply(t *testing.T) {
	set := filterFixture()
	tests := []struct {
		name string
		spec FilterSpec
		want []int
	}{
		{name: "empty spec", spec: FilterSpec{}, want: []int{2, 3, 4, 5, 6}},
		{name: "test id", spec: FilterSpec{TestID: "B"}, want: []int{4, 5}},
		{name: "question", spec: FilterSpec{Question: "Nome"}, want: []int{2, 4, 6}},
		{name: "status is exact", spec: FilterSpec{Status: "correto"}, want: []int{}},
		{name: "status", spec: FilterSpec{Status: "Correto"}, want: []int{2, 6}},
		{name: "search ignores case", spec: FilterSpec{Search: "silva"}, want: []int{2, 4}},
		{name: "search with accents", spec: FilterSpec{Search: "joão"}, want: []int{4}},
		{name: "temperature inclusive", spec: FilterSpec{Temperature: &Range{Min: 0.2, Max: 0.7}}, want: []int{2, 3, 4}},
		{name: "temperature open max", spec: FilterSpec{Temperature: NewRange(ptr(0.5), nil)}, want: []int{4, 6}},
		{name: "top p", spec: FilterSpec{TopP: &Range{Min: 0.95, Max: 1}}, want: []int{4}},
		{name: "date single day", spec: FilterSpec{Date: &DateRange{From: day(2024, 3, 1), To: day(2024, 3, 1)}}, want: []int{2, 3}},
		{name: "date to is whole day", spec: FilterSpec{Date: &DateRange{To: day(2024, 3, 3)}}, want: []int{2, 3, 4, 6}},
		{name: "date open from", spec: FilterSpec{Date: &DateRange{From: day(2024, 3, 2)}}, want: []int{4, 6}},
		{name: "conjunction", spec: FilterSpec{Question: "Nome", Status: "Correto", Temperature: &Range{Min: 0.5, Max: 1}}, want: []int{6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rows(Apply(set, tt.spec)))
		})
	}
}

func TestApply_Identity(t *testing.T) {
	set := filterFixture()
	got := Apply(set, FilterSpec{})
	assert.Equal(t, set, got)
	assert.Equal(t, set.Records(), got.Records())
}

func TestApply_Idempotent(t *testing.T) {
	set := filterFixture()
	specs := []FilterSpec{
		{TestID: "A"},
		{Search: "silva", Temperature: &Range{Min: 0, Max: 0.5}},
		{Date: &DateRange{From: day(2024, 3, 2)}},
		{Status: "nenhum"},
	}
	for _, spec := range specs {
		once := Apply(set, spec)
		assert.Equal(t, once, Apply(once, spec))
	}
}

func TestApply_DoesNotMutate(t *testing.T) {
	set := filterFixture()
	before := set.Records()
	_ = Apply(set, FilterSpec{TestID: "A"})
	assert.Equal(t, before, set.Records())
}

func TestMerge(t *testing.T) {
	set := filterFixture()
	pairs := []struct {
		name string
		a, b FilterSpec
		want []int
	}{
		{name: "disjoint kinds", a: FilterSpec{Question: "Nome"}, b: FilterSpec{Status: "Correto"}, want: []int{2, 6}},
		{name: "same equality", a: FilterSpec{TestID: "A"}, b: FilterSpec{TestID: "A"}, want: []int{2, 3}},
		{name: "conflicting equality", a: FilterSpec{TestID: "A"}, b: FilterSpec{TestID: "B"}, want: []int{}},
		{name: "ranges intersect", a: FilterSpec{Temperature: &Range{Min: 0, Max: 0.7}}, b: FilterSpec{Temperature: &Range{Min: 0.5, Max: 1}}, want: []int{4}},
		{name: "disjoint ranges", a: FilterSpec{TopP: &Range{Min: 0, Max: 0.5}}, b: FilterSpec{TopP: &Range{Min: 0.9, Max: 1}}, want: []int{}},
		{name: "dates intersect", a: FilterSpec{Date: &DateRange{From: day(2024, 3, 1)}}, b: FilterSpec{Date: &DateRange{To: day(2024, 3, 2)}}, want: []int{2, 3, 4}},
		{name: "nested search terms", a: FilterSpec{Search: "silva"}, b: FilterSpec{Search: "maria silva"}, want: []int{2}},
		{name: "independent search terms", a: FilterSpec{Search: "silva"}, b: FilterSpec{Search: "joão"}, want: []int{4}},
		{name: "with empty", a: FilterSpec{Question: "CPF"}, b: FilterSpec{}, want: []int{3, 5}},
	}
	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			merged := Merge(tt.a, tt.b)
			sequential := Apply(Apply(set, tt.a), tt.b)
			assert.Equal(t, tt.want, rows(Apply(set, merged)))
			assert.Equal(t, rows(sequential), rows(Apply(set, merged)))
			assert.NoError(t, merged.Validate())
		})
	}
}

func TestMerge_EmptyIsNeutral(t *testing.T) {
	assert.True(t, Merge(FilterSpec{}, FilterSpec{}).IsEmpty())
	assert.False(t, Merge(FilterSpec{TestID: "A"}, FilterSpec{TestID: "B"}).IsEmpty())
}

func TestFilterSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    FilterSpec
		wantErr bool
	}{
		{name: "empty", spec: FilterSpec{}},
		{name: "valid range", spec: FilterSpec{Temperature: &Range{Min: 0, Max: 1}}},
		{name: "degenerate range", spec: FilterSpec{TopP: &Range{Min: 0.5, Max: 0.5}}},
		{name: "inverted temperature", spec: FilterSpec{Temperature: &Range{Min: 0.8, Max: 0.2}}, wantErr: true},
		{name: "nan bound", spec: FilterSpec{TopP: &Range{Min: math.NaN(), Max: 1}}, wantErr: true},
		{name: "inverted dates", spec: FilterSpec{Date: &DateRange{From: day(2024, 3, 2), To: day(2024, 3, 1)}}, wantErr: true},
		{name: "same day", spec: FilterSpec{Date: &DateRange{From: day(2024, 3, 1), To: time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFilter)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewRange(t *testing.T) {
	assert.Nil(t, NewRange(nil, nil))

	r := NewRange(nil, ptr(0.5))
	require.NotNil(t, r)
	assert.True(t, math.IsInf(r.Min, -1))
	assert.Equal(t, 0.5, r.Max)
	assert.False(t, r.Contains(nil))
}

func TestDistinctValues(t *testing.T) {
	set := filterFixture()

	ids, err := DistinctValues(set, domain.FieldTestID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, ids)

	statuses, err := DistinctValues(set, domain.FieldStatus)
	require.NoError(t, err)
	assert.Equal(t, []string{"Correto", "Parcialmente", "Errado"}, statuses)

	_, err = DistinctValues(set, domain.FieldTemperature)
	assert.ErrorIs(t, err, ErrUnknownField)
}
