package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRushHour(t *testing.T) {
	tests := []struct {
		hour     int
		expected bool
	}{
		{0, false},
		{6, false},
		{7, true},
		{8, true},
		{9, true},
		{10, false},
		{15, false},
		{16, true},
		{17, true},
		{18, true},
		{19, false},
		{23, false},
	}

	for _, tt := range tests {
		t.Run(time.Date(2024, 1, 1, tt.hour, 0, 0, 0, time.UTC).Format("15:04"), func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRushHour(tt.hour))
		})
	}
}

func TestExtractFeatures(t *testing.T) {
	t.Run("weekday morning rush", func(t *testing.T) {
		// Tuesday 2024-04-23 08:15
		inc := Incident{
			OccurredAt: time.Date(2024, 4, 23, 8, 15, 0, 0, time.UTC),
			Severity:   SeverityHigh,
		}

		fv := ExtractFeatures(inc)

		assert.Equal(t, 8, fv.Hour)
		assert.Equal(t, 2, fv.DayOfWeek)
		assert.False(t, fv.IsWeekend)
		assert.True(t, fv.IsRushHour)
		assert.Equal(t, 3, fv.SeverityNumeric)
	})

	t.Run("saturday afternoon", func(t *testing.T) {
		// Saturday 2024-04-27 14:00
		inc := Incident{
			OccurredAt: time.Date(2024, 4, 27, 14, 0, 0, 0, time.UTC),
			Severity:   SeverityMedium,
		}

		fv := ExtractFeatures(inc)

		assert.Equal(t, 14, fv.Hour)
		assert.Equal(t, 6, fv.DayOfWeek)
		assert.True(t, fv.IsWeekend)
		assert.False(t, fv.IsRushHour)
		assert.Equal(t, 2, fv.SeverityNumeric)
	})

	t.Run("sunday maps to ISO 7", func(t *testing.T) {
		inc := Incident{
			OccurredAt: time.Date(2024, 4, 28, 17, 30, 0, 0, time.UTC),
			Severity:   SeverityLow,
		}

		fv := ExtractFeatures(inc)

		assert.Equal(t, 7, fv.DayOfWeek)
		assert.True(t, fv.IsWeekend)
		assert.True(t, fv.IsRushHour)
	})
}

func TestIsoWeekday(t *testing.T) {
	tests := []struct {
		day      time.Weekday
		expected int
	}{
		{time.Monday, 1},
		{time.Tuesday, 2},
		{time.Wednesday, 3},
		{time.Thursday, 4},
		{time.Friday, 5},
		{time.Saturday, 6},
		{time.Sunday, 7},
	}

	for _, tt := range tests {
		t.Run(tt.day.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, isoWeekday(tt.day))
		})
	}
}
