// Command seed populates the incident store with deterministic demo data
// for local development and analytics testing. Seeded rows carry no
// external ID, so they take the manual-seed ingestion path and are never
// deduplicated. Running seed twice doubles the rows, which is the
// documented behavior of that path.
//
// Usage:
//
//	go run ./cmd/seed -db data/incidents.db -days 14
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
	"github.com/couchcryptid/traffic-risk-etl/internal/store"
)

type road struct {
	name       string
	weight     int // relative incident frequency
	highChance float64
}

// roads are the demo road labels, weighted so aggregation produces a clear
// ranking: earlier entries accumulate more and more-severe incidents.
var roads = []road{
	{"I-40 @ Exit 209", 6, 0.5},
	{"I-24 @ Briley Pkwy", 5, 0.4},
	{"I-65 @ Wedgewood Ave", 4, 0.3},
	{"Briley Pkwy @ McGavock Pike", 3, 0.2},
	{"Charlotte Ave @ 21st Ave", 2, 0.1},
	{"Granny White Pike", 1, 0.05},
}

var incidentTypes = []string{"accident", "congestion", "roadworks", "disabledVehicle"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dbPath := flag.String("db", "data/incidents.db", "path to the incident database")
	days := flag.Int("days", 14, "number of past days to generate incidents for")
	perDay := flag.Int("per-day", 12, "average incidents per day across all roads")
	seed := flag.Int64("seed", 1, "random seed for reproducible demo data")
	flag.Parse()

	incidents, err := store.Open(*dbPath)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))
	end := time.Now().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -*days)

	total := 0
	ctx := context.Background()
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		n := *perDay/2 + rng.Intn(*perDay)
		for i := 0; i < n; i++ {
			inc := randomIncident(rng, day)
			if _, err := incidents.Insert(ctx, &inc); err != nil {
				return fmt.Errorf("insert seed incident: %w", err)
			}
			total++
		}
	}

	fmt.Printf("seeded %d incidents across %d roads into %s\n", total, len(roads), *dbPath)
	return nil
}

func randomIncident(rng *rand.Rand, day time.Time) domain.Incident {
	r := pickRoad(rng)

	// Bias hours toward rush windows so the derived profiles look like
	// real commute patterns.
	hour := rng.Intn(24)
	if rng.Float64() < 0.5 {
		rushHours := []int{7, 8, 9, 16, 17, 18}
		hour = rushHours[rng.Intn(len(rushHours))]
	}

	severity := domain.SeverityLow
	switch roll := rng.Float64(); {
	case roll < r.highChance:
		severity = domain.SeverityHigh
	case roll < r.highChance+0.3:
		severity = domain.SeverityMedium
	}

	occurred := day.Add(time.Duration(hour)*time.Hour + time.Duration(rng.Intn(60))*time.Minute)
	kind := incidentTypes[rng.Intn(len(incidentTypes))]

	return domain.Incident{
		OccurredAt:   occurred,
		Location:     r.name,
		Severity:     severity,
		IncidentType: kind,
		Description:  fmt.Sprintf("%s - %s reported", r.name, kind),
	}
}

func pickRoad(rng *rand.Rand) road {
	total := 0
	for _, r := range roads {
		total += r.weight
	}
	pick := rng.Intn(total)
	for _, r := range roads {
		pick -= r.weight
		if pick < 0 {
			return r
		}
	}
	return roads[0]
}
