// Package domain models third-party traffic incident data.
//
// # Data Sources
//
// Incidents originate from commercial traffic feeds (HERE Traffic API v8
// incidents, with a TomTom-compatible fallback shape). The ingestion engine
// fetches a bounding-box batch on a fixed schedule and upserts each record
// into the incident store, keyed by the feed's incident ID.
//
// # Severity Taxonomy
//
// Upstream feeds disagree about severity vocabularies: HERE reports a
// criticality enum (low, minor, major, critical), TomTom reports a numeric
// magnitude-of-delay code (0-4), and manually seeded rows carry free-form
// labels. [NormalizeSeverity] folds all of them into a fixed three-level
// taxonomy:
//
//	Low    - minor delays, informational reports
//	Medium - moderate delays, lane-level obstructions
//	High   - major or critical incidents, closures
//
// The mapping is total: unrecognized codes default to Low so ingestion never
// fails on an unknown severity value. Callers count defaulted values for
// observability.
//
// # Deduplication
//
// The feed's incident ID is stored as ExternalID and is the deduplication
// key. Feeds re-report active incidents on every poll; an upsert keyed by
// ExternalID keeps the store duplicate-free under the single-writer model.
// Manually seeded rows have no ExternalID and are intentionally never
// deduplicated.
//
// # Temporal Features
//
// Risk aggregation and classification both consume [FeatureVector], derived
// from an incident's timestamp and severity. Timestamps are stored as the
// feed-local naive time. Rush hour is defined as 07:00-09:59 and 16:00-18:59
// local (hours 7-9 and 16-18 inclusive); the boundary is load-bearing for
// downstream consumers and must not drift.
package domain
