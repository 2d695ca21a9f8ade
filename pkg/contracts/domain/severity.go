package domain

import "fmt"

// Severity is the highlight class derived from a status string.
type Severity int

const (
	SeverityUnclassified Severity = iota
	SeverityNormal
	SeverityWarning
	SeverityError
)

var severityNames = map[Severity]string{
	SeverityUnclassified: "unclassified",
	SeverityNormal:       "normal",
	SeverityWarning:      "warning",
	SeverityError:        "error",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	for sev, name := range severityNames {
		if name == string(b) {
			*s = sev
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", string(b))
}
