package dataprocessing

import (
	"fmt"
	"sort"
	"strings"

	"ocrdash/pkg/contracts/domain"
)

// Summarize computes the counters and rates of set.
//
// Every record counts towards Total and towards exactly one severity counter;
// a record with no status is Unclassified and also MissingStatus. Rates are
// fractions of Graded, the records that carry a status, and are all zero
// when nothing is graded.
func Summarize(set domain.ResultSet) domain.Summary {
	var s domain.Summary
	for i := 0; i < set.Len(); i++ {
		rec := set.At(i)
		s.Total++
		if strings.TrimSpace(rec.Status) == "" {
			s.MissingStatus++
		}
		switch Classify(rec.Status) {
		case domain.SeverityNormal:
			s.Correct++
		case domain.SeverityWarning:
			s.Warning++
		case domain.SeverityError:
			s.Error++
		default:
			s.Unclassified++
		}
	}
	s.Graded = s.Total - s.MissingStatus
	if s.Graded > 0 {
		g := float64(s.Graded)
		s.CorrectRate = float64(s.Correct) / g
		s.WarningRate = float64(s.Warning) / g
		s.ErrorRate = float64(s.Error) / g
		s.UnclassifiedRate = float64(s.Unclassified-s.MissingStatus) / g
	}
	return s
}

// GroupAccuracy breaks set down by the values of a text field and reports the
// share of normal-classified records among the graded records of each group.
// Groups come in first-seen order unless sorted is true, in which case they
// are ordered by value. Records with an empty group value form the "" group.
func GroupAccuracy(set domain.ResultSet, field domain.Field, sorted bool) ([]domain.GroupStat, error) {
	if !field.IsText() {
		return nil, fmt.Errorf("%w: cannot group by %s", ErrUnknownField, field)
	}

	index := make(map[string]int)
	var groups []domain.GroupStat
	for i := 0; i < set.Len(); i++ {
		rec := set.At(i)
		key := rec.Text(field)
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, domain.GroupStat{Value: key})
		}
		g := &groups[pos]
		g.Total++
		if strings.TrimSpace(rec.Status) == "" {
			continue
		}
		g.Graded++
		if Classify(rec.Status) == domain.SeverityNormal {
			g.Correct++
		}
	}

	for i := range groups {
		if groups[i].Graded > 0 {
			groups[i].Rate = float64(groups[i].Correct) / float64(groups[i].Graded)
		}
	}
	if sorted {
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value < groups[j].Value })
	}
	return groups, nil
}
