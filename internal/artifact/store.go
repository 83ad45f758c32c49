// Package artifact holds the current analytics outputs: the per-road risk
// profile set and the trained classifier. Both are replaced wholesale by
// atomic swap, so readers never observe a partially updated retrain, and
// are optionally persisted as JSON files via write-to-temp-then-rename.
package artifact

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/couchcryptid/traffic-risk-etl/internal/classifier"
	"github.com/couchcryptid/traffic-risk-etl/internal/risk"
)

const (
	profilesFile   = "road_analysis.json"
	classifierFile = "metrics.json"
)

// Store is the in-process artifact snapshot store. The zero value is not
// usable; create it with New.
type Store struct {
	dir    string // empty disables file persistence
	logger *slog.Logger

	profiles atomic.Pointer[[]risk.Profile]
	model    atomic.Pointer[classifier.Artifact]
}

// New creates an artifact store. When dir is non-empty, each swap also
// writes the corresponding JSON file under dir for out-of-process readers.
func New(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// SwapProfiles replaces the current risk profile set.
func (s *Store) SwapProfiles(profiles []risk.Profile) error {
	s.profiles.Store(&profiles)
	return s.persist(profilesFile, profiles)
}

// Profiles returns the current profile set, or nil before the first
// aggregation run. The returned slice must not be mutated.
func (s *Store) Profiles() []risk.Profile {
	p := s.profiles.Load()
	if p == nil {
		return nil
	}
	return *p
}

// SwapClassifier replaces the current trained model and its metrics.
func (s *Store) SwapClassifier(a *classifier.Artifact) error {
	s.model.Store(a)
	return s.persist(classifierFile, a)
}

// Classifier returns the current trained artifact, or nil before the first
// successful training run.
func (s *Store) Classifier() *classifier.Artifact {
	return s.model.Load()
}

// persist writes v as indented JSON to name under the artifact directory.
// The write goes to a temp file first and is renamed into place, so external
// readers see either the old or the new snapshot, never a torn file.
func (s *Store) persist(name string, v any) error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", name, err)
	}

	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close artifact %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace artifact %s: %w", name, err)
	}

	s.logger.Debug("artifact persisted", "file", target, "bytes", len(data))
	return nil
}
