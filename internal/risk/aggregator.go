// Package risk derives per-road risk profiles from stored incidents.
//
// Grouping is by exact string equality on the incident's Location label.
// Two differently-spelled labels for the same physical road form distinct
// groups; this is a known limitation carried over from the upstream data
// model, where Location is free text rather than a road table key.
package risk

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
)

const (
	// DefaultMinSample is the incident-count floor below which a road is
	// excluded from the profile set. Rankings over fewer samples are
	// statistically meaningless.
	DefaultMinSample = 5

	// topHours is how many hour buckets appear in BestHours/WorstHours.
	topHours = 3
)

// weekdayNames maps the ISO weekday index (Monday=1) to its name.
var weekdayNames = [8]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Profile is the derived risk summary for one road, recomputed wholesale on
// each aggregation run.
type Profile struct {
	Road              string  `json:"road"`
	TotalIncidents    int     `json:"total_incidents"`
	AvgSeverity       float64 `json:"avg_severity"`
	RushHourIncidents int     `json:"rush_hour_incidents"`
	WeekendIncidents  int     `json:"weekend_incidents"`

	// RiskScore is TotalIncidents x AvgSeverity. It is a ranking heuristic,
	// not calibrated to any external scale, and its shape is relied on by
	// downstream ordering; do not change the formula.
	RiskScore float64 `json:"risk_score"`

	// BestHours/WorstHours are the lowest/highest-risk hour buckets, ranked
	// by severity-weighted incident load. Hours with zero incidents never
	// appear; a road confined to a single hour lists that hour in both.
	BestHours  []int `json:"best_hours"`
	WorstHours []int `json:"worst_hours"`

	BestDay  string `json:"best_day"`
	WorstDay string `json:"worst_day"`
}

// Aggregate groups incidents by road, drops groups below minSample, and
// computes each retained road's profile. Pass minSample <= 0 to use
// DefaultMinSample. The result is ordered by RiskScore descending (road name
// ascending on ties) so "most dangerous roads" reads need no extra sort.
func Aggregate(incidents []domain.Incident, minSample int) []Profile {
	if minSample <= 0 {
		minSample = DefaultMinSample
	}

	groups := make(map[string][]domain.Incident)
	for _, inc := range incidents {
		if inc.OccurredAt.IsZero() || inc.Location == "" {
			continue
		}
		groups[inc.Location] = append(groups[inc.Location], inc)
	}

	profiles := make([]Profile, 0, len(groups))
	for road, members := range groups {
		if len(members) < minSample {
			continue
		}
		profiles = append(profiles, profileRoad(road, members))
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].RiskScore != profiles[j].RiskScore {
			return profiles[i].RiskScore > profiles[j].RiskScore
		}
		return profiles[i].Road < profiles[j].Road
	})
	return profiles
}

func profileRoad(road string, members []domain.Incident) Profile {
	severities := make([]float64, 0, len(members))
	hourRisk := make(map[int]float64)
	dayRisk := make(map[int]float64)

	p := Profile{Road: road, TotalIncidents: len(members)}

	for _, inc := range members {
		fv := domain.ExtractFeatures(inc)
		severities = append(severities, float64(fv.SeverityNumeric))
		hourRisk[fv.Hour] += float64(fv.SeverityNumeric)
		dayRisk[fv.DayOfWeek] += float64(fv.SeverityNumeric)
		if fv.IsRushHour {
			p.RushHourIncidents++
		}
		if fv.IsWeekend {
			p.WeekendIncidents++
		}
	}

	p.AvgSeverity = stat.Mean(severities, nil)
	p.RiskScore = float64(p.TotalIncidents) * p.AvgSeverity
	p.BestHours, p.WorstHours = rankHours(hourRisk)
	p.BestDay, p.WorstDay = extremeDays(dayRisk)
	return p
}

// rankHours orders the non-empty hour buckets by accumulated severity and
// returns the top-N quietest and busiest hours. Hours with no incidents are
// excluded from both lists, never fabricated as "safe".
func rankHours(hourRisk map[int]float64) (best, worst []int) {
	hours := make([]int, 0, len(hourRisk))
	for h := range hourRisk {
		hours = append(hours, h)
	}

	byRisk := func(asc bool) []int {
		ranked := append([]int(nil), hours...)
		sort.Slice(ranked, func(i, j int) bool {
			ri, rj := hourRisk[ranked[i]], hourRisk[ranked[j]]
			if ri != rj {
				if asc {
					return ri < rj
				}
				return ri > rj
			}
			return ranked[i] < ranked[j]
		})
		if len(ranked) > topHours {
			ranked = ranked[:topHours]
		}
		return ranked
	}

	return byRisk(true), byRisk(false)
}

// extremeDays returns the weekday names with the lowest and highest
// accumulated severity. Ties break toward the earliest ISO weekday index,
// keeping results deterministic.
func extremeDays(dayRisk map[int]float64) (best, worst string) {
	bestDay, worstDay := 0, 0
	for d := 1; d <= 7; d++ {
		risk, ok := dayRisk[d]
		if !ok {
			continue
		}
		if bestDay == 0 || risk < dayRisk[bestDay] {
			bestDay = d
		}
		if worstDay == 0 || risk > dayRisk[worstDay] {
			worstDay = d
		}
	}
	return weekdayNames[bestDay], weekdayNames[worstDay]
}
