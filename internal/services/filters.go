package services

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ocrdash/internal/dataprocessing"
	"ocrdash/pkg/contracts/domain"
)

// FilterParams is the textual form of a filter as it arrives from query
// strings and command line flags. Empty values are inactive.
type FilterParams struct {
	TestID   string `query:"test_id" validate:"max=200"`
	Question string `query:"question" validate:"max=500"`
	Status   string `query:"status" validate:"max=200"`
	Search   string `query:"search" validate:"max=200"`
	TempMin  string `query:"temp_min" validate:"numeric_or_empty"`
	TempMax  string `query:"temp_max" validate:"numeric_or_empty"`
	TopPMin  string `query:"top_p_min" validate:"numeric_or_empty"`
	TopPMax  string `query:"top_p_max" validate:"numeric_or_empty"`
	From     string `query:"from" validate:"isodate"`
	To       string `query:"to" validate:"isodate"`
}

// FilterParamsFromQuery reads the filter parameters of a query string.
func FilterParamsFromQuery(q url.Values) FilterParams {
	return FilterParams{
		TestID:   q.Get("test_id"),
		Question: q.Get("question"),
		Status:   q.Get("status"),
		Search:   q.Get("search"),
		TempMin:  q.Get("temp_min"),
		TempMax:  q.Get("temp_max"),
		TopPMin:  q.Get("top_p_min"),
		TopPMax:  q.Get("top_p_max"),
		From:     q.Get("from"),
		To:       q.Get("to"),
	}
}

// Spec converts the parameters into a filter spec. Unparsable numbers and
// dates wrap dataprocessing.ErrInvalidFilter.
func (p FilterParams) Spec() (dataprocessing.FilterSpec, error) {
	spec := dataprocessing.FilterSpec{
		TestID:   p.TestID,
		Question: p.Question,
		Status:   p.Status,
		Search:   p.Search,
	}

	var err error
	if spec.Temperature, err = parseRange("temperature", p.TempMin, p.TempMax); err != nil {
		return spec, err
	}
	if spec.TopP, err = parseRange("top_p", p.TopPMin, p.TopPMax); err != nil {
		return spec, err
	}

	from, err := parseDay("from", p.From)
	if err != nil {
		return spec, err
	}
	to, err := parseDay("to", p.To)
	if err != nil {
		return spec, err
	}
	if !from.IsZero() || !to.IsZero() {
		spec.Date = &dataprocessing.DateRange{From: from, To: to}
	}

	return spec, spec.Validate()
}

func parseRange(name, min, max string) (*dataprocessing.Range, error) {
	lo, err := parseBound(name+" min", min)
	if err != nil {
		return nil, err
	}
	hi, err := parseBound(name+" max", max)
	if err != nil {
		return nil, err
	}
	return dataprocessing.NewRange(lo, hi), nil
}

func parseBound(name, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a number", dataprocessing.ErrInvalidFilter, name, raw)
	}
	return &v, nil
}

func parseDay(name, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not a YYYY-MM-DD date", dataprocessing.ErrInvalidFilter, name, raw)
	}
	return t, nil
}

// Describe renders the active parameters as "key=value" pairs for reports.
func (p FilterParams) Describe() string {
	var parts []string
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+value)
		}
	}
	add("test_id", p.TestID)
	add("question", p.Question)
	add("status", p.Status)
	add("search", p.Search)
	add("temp_min", p.TempMin)
	add("temp_max", p.TempMax)
	add("top_p_min", p.TopPMin)
	add("top_p_max", p.TopPMax)
	add("from", p.From)
	add("to", p.To)
	return strings.Join(parts, " ")
}
