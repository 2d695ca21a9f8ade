package exporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ocrdash/pkg/contracts/domain"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name      string
		value     *float64
		precision int
		want      string
	}{
		{"nil", nil, -1, ""},
		{"shortest", fptr(0.1), -1, "0.1"},
		{"shortest integer", fptr(1), 0, "1"},
		{"fixed", fptr(0.123456789), 4, "0.1235"},
		{"negative", fptr(-2.5), 1, "-2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatFloat(tt.value, tt.precision))
		})
	}
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 0.33, roundTo(1.0/3.0, 2))
	assert.Equal(t, 1.0/3.0, roundTo(1.0/3.0, -1))
}

func TestSummaryRow(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := domain.Summary{
		Total: 4, Correct: 2, Warning: 1, Error: 1, Graded: 4,
		CorrectRate: 0.5, WarningRate: 0.25, ErrorRate: 0.25,
	}

	row := SummaryRow(at, "results.csv", "status=correto", s)
	assert.Len(t, row, len(SummaryHeaders))
	assert.Equal(t, "2024-03-01T12:00:00Z", row[0])
	assert.Equal(t, "4", row[3])
	assert.Equal(t, "0.5000", row[10])

	empty := SummaryRow(at, "results.csv", "", domain.Summary{})
	assert.Equal(t, "", empty[10])
}

func TestGroupTable(t *testing.T) {
	headers, rows := GroupTable(domain.FieldQuestion, []domain.GroupStat{
		{Value: "CPF", Total: 3, Graded: 3, Correct: 2, Rate: 2.0 / 3.0},
		{Value: "Nome", Total: 1},
	})
	assert.Equal(t, []string{"question", "total", "graded", "correct", "rate"}, headers)
	assert.Equal(t, []string{"CPF", "3", "3", "2", "0.6667"}, rows[0])
	assert.Equal(t, []string{"Nome", "1", "0", "0", ""}, rows[1])
}
