package domain

// Summary holds the aggregate counters of a result set.
//
// Graded counts the records that carry a status at all; records without a
// status stay in Total but are left out of every rate. When Graded is zero
// all rates are zero and RatesDefined reports false.
type Summary struct {
	Total         int `json:"total"`
	Correct       int `json:"correct"`
	Warning       int `json:"warning"`
	Error         int `json:"error"`
	Unclassified  int `json:"unclassified"`
	MissingStatus int `json:"missing_status"`
	Graded        int `json:"graded"`

	CorrectRate      float64 `json:"correct_rate"`
	WarningRate      float64 `json:"warning_rate"`
	ErrorRate        float64 `json:"error_rate"`
	UnclassifiedRate float64 `json:"unclassified_rate"`
}

// RatesDefined reports whether the rates carry information.
func (s Summary) RatesDefined() bool {
	return s.Graded > 0
}

// GroupStat is the correctness of one group of a grouped breakdown.
type GroupStat struct {
	Value   string  `json:"value"`
	Total   int     `json:"total"`
	Graded  int     `json:"graded"`
	Correct int     `json:"correct"`
	Rate    float64 `json:"rate"`
}
