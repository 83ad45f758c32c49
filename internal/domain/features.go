package domain

import "time"

// FeatureVector holds the temporal/categorical features derived from a
// stored incident. Risk aggregation consumes it directly; the classifier
// uses everything except SeverityNumeric as model inputs (SeverityNumeric's
// underlying label is the target).
type FeatureVector struct {
	Hour       int  `json:"hour"`        // 0-23
	DayOfWeek  int  `json:"day_of_week"` // ISO weekday, Monday=1 .. Sunday=7
	IsWeekend  bool `json:"is_weekend"`
	IsRushHour bool `json:"is_rush_hour"`

	SeverityNumeric int `json:"severity_numeric"` // Low=1, Medium=2, High=3
}

// ExtractFeatures derives the feature vector from an incident. It is pure
// and total for any incident with a non-zero OccurredAt; callers exclude
// incidents with missing timestamps upstream.
func ExtractFeatures(inc Incident) FeatureVector {
	hour := inc.OccurredAt.Hour()
	dow := isoWeekday(inc.OccurredAt.Weekday())

	return FeatureVector{
		Hour:            hour,
		DayOfWeek:       dow,
		IsWeekend:       dow == 6 || dow == 7,
		IsRushHour:      IsRushHour(hour),
		SeverityNumeric: inc.Severity.Numeric(),
	}
}

// IsRushHour reports whether an hour of day falls in the morning (07-09) or
// evening (16-18) rush window, both bounds inclusive. Downstream tests and
// stored profiles depend on these exact boundaries.
func IsRushHour(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 18)
}

// isoWeekday converts Go's Sunday-based weekday to the ISO index (Monday=1).
func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}
