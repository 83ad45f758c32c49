package domain

import "strings"

// Severity is the fixed three-level incident severity taxonomy.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Severities lists the taxonomy in ascending order of risk.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh}

// Numeric maps the taxonomy onto {1, 2, 3} for risk scoring and model
// targets. Unknown values count as 1 (Low), matching the normalizer default.
func (s Severity) Numeric() int {
	switch s {
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 1
	}
}

// NormalizeSeverity folds an upstream severity code into the three-level
// taxonomy. The mapping is total: every input yields exactly one bucket and
// unrecognized codes default to Low, so ingestion never fails solely because
// a feed invented a new severity value. Callers are expected to count the
// defaulted path.
//
// Recognized vocabularies:
//   - HERE criticality enums: low, minor, major, critical
//   - Legacy feed labels: Info, Low, Minor, Moderate, Medium, Major, High, Critical
//   - TomTom magnitude-of-delay codes: "0" through "4"
//
// "minor" reads as Low, not Medium: feeds use it for nuisance-level reports
// and the legacy label table already pinned it there.
func NormalizeSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "major", "high", "4", "3":
		return SeverityHigh, true
	case "moderate", "medium", "2":
		return SeverityMedium, true
	case "low", "minor", "info", "1", "0":
		return SeverityLow, true
	default:
		return SeverityLow, false
	}
}
