package dataprocessing

import (
	"strings"

	"ocrdash/pkg/contracts/domain"
)

// severityRule is one row of the classification table. Rules are evaluated
// in order and the first rule with a matching keyword wins.
type severityRule struct {
	severity domain.Severity
	keywords []string
}

// severityRules is ordered error, warning, normal. "Parcialmente incorreto"
// must come out as an error, and "incorreto" contains "correto", so the
// order cannot change.
var severityRules = foldRules([]severityRule{
	{severity: domain.SeverityError, keywords: []string{"incorreto", "errado"}},
	{severity: domain.SeverityWarning, keywords: []string{"parcial", "não extra"}},
	{severity: domain.SeverityNormal, keywords: []string{"correto"}},
})

func foldRules(rules []severityRule) []severityRule {
	for i := range rules {
		for j, kw := range rules[i].keywords {
			rules[i].keywords[j] = foldText(kw)
		}
	}
	return rules
}

// Classify maps a status string onto its severity class by case-insensitive
// substring match. Empty and unrecognised statuses are unclassified.
func Classify(status string) domain.Severity {
	s := foldText(status)
	if s == "" {
		return domain.SeverityUnclassified
	}
	for _, rule := range severityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(s, kw) {
				return rule.severity
			}
		}
	}
	return domain.SeverityUnclassified
}

// ClassifySet classifies every record of set; the result is index-aligned with set.
func ClassifySet(set domain.ResultSet) []domain.Severity {
	out := make([]domain.Severity, set.Len())
	for i := 0; i < set.Len(); i++ {
		out[i] = Classify(set.At(i).Status)
	}
	return out
}
