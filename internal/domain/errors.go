package domain

import (
	"fmt"
	"strings"
)

// FeedUnavailableError reports that an upstream feed fetch failed outright
// (network, auth, rate limit, or an undecodable response). The ingestion run
// aborts; partial writes already committed are not rolled back.
type FeedUnavailableError struct {
	Endpoint string
	Status   int // HTTP status when the server answered, 0 otherwise
	Err      error
}

func (e *FeedUnavailableError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("feed unavailable: %s returned status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("feed unavailable: %s: %v", e.Endpoint, e.Err)
}

func (e *FeedUnavailableError) Unwrap() error { return e.Err }

// MalformedIncidentError reports a fetched record missing a required field.
// The single record is skipped and counted; the run continues.
type MalformedIncidentError struct {
	ExternalID string
	Missing    []string
}

func (e *MalformedIncidentError) Error() string {
	id := e.ExternalID
	if id == "" {
		id = "<no external id>"
	}
	return fmt.Sprintf("malformed incident %s: missing %s", id, strings.Join(e.Missing, ", "))
}

// InsufficientTrainingDataError reports that classifier training was refused
// because fewer labeled incidents were available than the configured floor.
// Any previously trained artifact is left untouched.
type InsufficientTrainingDataError struct {
	Have int
	Need int
}

func (e *InsufficientTrainingDataError) Error() string {
	return fmt.Sprintf("insufficient training data: have %d labeled incidents, need %d", e.Have, e.Need)
}

// FeatureShapeMismatchError reports an inference request whose feature vector
// does not match the feature list persisted with the trained model. Inference
// is refused rather than silently misaligned.
type FeatureShapeMismatchError struct {
	Want []string
	Got  []string
}

func (e *FeatureShapeMismatchError) Error() string {
	return fmt.Sprintf("feature shape mismatch: model expects [%s], got [%s]",
		strings.Join(e.Want, " "), strings.Join(e.Got, " "))
}
