// Package classifier trains a supervised severity model on the temporal
// features of stored incidents and evaluates it on a held-out split.
//
// Training is a pure function of its inputs: the incident snapshot and a
// fixed random seed fully determine the split, the fitted ensemble, and the
// reported metrics. Persistence of the resulting artifact is the caller's
// concern.
package classifier

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
)

// FeatureNames is the exact, ordered feature list used at training time.
// Inference must reconstruct vectors in this order; the list is recorded in
// the artifact so a mismatch is detected instead of silently misaligning.
var FeatureNames = []string{"hour", "day_of_week", "is_weekend", "is_rush_hour"}

// Target is the label name the model predicts.
const Target = "severity"

// Config controls training. The zero value is not useful; start from
// DefaultConfig.
type Config struct {
	Seed         int64
	TestFraction float64
	MinSamples   int
	NumTrees     int
	MaxDepth     int
}

// DefaultConfig mirrors the established training setup: an 80/20 split with
// seed 42 and a 100-tree forest. Metrics are only comparable across retrains
// when these stay fixed.
func DefaultConfig() Config {
	return Config{
		Seed:         42,
		TestFraction: 0.2,
		MinSamples:   10,
		NumTrees:     100,
		MaxDepth:     10,
	}
}

// Artifact is the trained model plus its evaluation snapshot. It is replaced
// wholesale on every retrain; there is no versioning beyond "current".
// Precision, recall, and F1 are macro-averaged over the severity classes
// present in the held-out split.
type Artifact struct {
	Features  []string  `json:"features"`
	Target    string    `json:"target"`
	Classes   []string  `json:"classes"`
	NTrain    int       `json:"n_train"`
	NTest     int       `json:"n_test"`
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	TrainedAt time.Time `json:"trained_at"`

	model *forest
}

// Train fits the severity classifier on all incidents with a usable
// timestamp. It returns a typed InsufficientTrainingDataError, before any
// fitting, when fewer than Config.MinSamples labeled incidents are
// available; callers keep their previous artifact in that case.
func Train(incidents []domain.Incident, cfg Config) (*Artifact, error) {
	var x [][]float64
	var y []int
	for _, inc := range incidents {
		if inc.OccurredAt.IsZero() {
			continue
		}
		fv := domain.ExtractFeatures(inc)
		x = append(x, featureRow(fv))
		y = append(y, fv.SeverityNumeric-1)
	}

	n := len(x)
	if n < cfg.MinSamples {
		return nil, &domain.InsufficientTrainingDataError{Have: n, Need: cfg.MinSamples}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	perm := rng.Perm(n)
	nTest := int(math.Round(float64(n) * cfg.TestFraction))
	if nTest < 1 {
		nTest = 1
	}
	nTrain := n - nTest

	trainX := make([][]float64, 0, nTrain)
	trainY := make([]int, 0, nTrain)
	testX := make([][]float64, 0, nTest)
	testY := make([]int, 0, nTest)
	for i, p := range perm {
		if i < nTrain {
			trainX = append(trainX, x[p])
			trainY = append(trainY, y[p])
		} else {
			testX = append(testX, x[p])
			testY = append(testY, y[p])
		}
	}

	model := growForest(trainX, trainY, len(domain.Severities), forestParams{
		numTrees:      cfg.NumTrees,
		maxDepth:      cfg.MaxDepth,
		minLeaf:       1,
		featureSubset: 2,
	}, rng)

	predY := make([]int, len(testX))
	for i, row := range testX {
		predY[i] = model.predict(row)
	}

	classes := make([]string, len(domain.Severities))
	for i, s := range domain.Severities {
		classes[i] = string(s)
	}

	a := &Artifact{
		Features:  append([]string(nil), FeatureNames...),
		Target:    Target,
		Classes:   classes,
		NTrain:    nTrain,
		NTest:     nTest,
		TrainedAt: domain.Now(),
		model:     model,
	}
	a.Accuracy, a.Precision, a.Recall, a.F1 = evaluate(testY, predY, len(domain.Severities))
	return a, nil
}

// Predict classifies a named feature map. The map must carry exactly the
// features recorded in the artifact; anything else is refused with a typed
// FeatureShapeMismatchError rather than silently misaligned.
func (a *Artifact) Predict(features map[string]float64) (domain.Severity, error) {
	if err := a.validateShape(features); err != nil {
		return "", err
	}
	row := make([]float64, len(a.Features))
	for i, name := range a.Features {
		row[i] = features[name]
	}
	return domain.Severities[a.model.predict(row)], nil
}

// PredictVector classifies an extracted FeatureVector, the trusted internal
// path that builds the input in training order by construction.
func (a *Artifact) PredictVector(fv domain.FeatureVector) domain.Severity {
	return domain.Severities[a.model.predict(featureRow(fv))]
}

func (a *Artifact) validateShape(features map[string]float64) error {
	ok := len(features) == len(a.Features)
	if ok {
		for _, name := range a.Features {
			if _, present := features[name]; !present {
				ok = false
				break
			}
		}
	}
	if !ok {
		got := make([]string, 0, len(features))
		for name := range features {
			got = append(got, name)
		}
		sort.Strings(got)
		return &domain.FeatureShapeMismatchError{
			Want: append([]string(nil), a.Features...),
			Got:  got,
		}
	}
	return nil
}

// featureRow encodes a FeatureVector in FeatureNames order. SeverityNumeric
// is deliberately excluded: its label is the target.
func featureRow(fv domain.FeatureVector) []float64 {
	return []float64{
		float64(fv.Hour),
		float64(fv.DayOfWeek),
		boolFeature(fv.IsWeekend),
		boolFeature(fv.IsRushHour),
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// evaluate computes accuracy plus macro-averaged precision, recall, and F1
// over the classes that appear in the held-out labels or predictions.
func evaluate(actual, predicted []int, numClasses int) (accuracy, precision, recall, f1 float64) {
	correct := 0
	tp := make([]float64, numClasses)
	fp := make([]float64, numClasses)
	fn := make([]float64, numClasses)
	seen := make([]bool, numClasses)

	for i := range actual {
		seen[actual[i]] = true
		seen[predicted[i]] = true
		if actual[i] == predicted[i] {
			correct++
			tp[actual[i]]++
		} else {
			fp[predicted[i]]++
			fn[actual[i]]++
		}
	}
	accuracy = float64(correct) / float64(len(actual))

	var precisions, recalls, f1s []float64
	for c := 0; c < numClasses; c++ {
		if !seen[c] {
			continue
		}
		p := safeDiv(tp[c], tp[c]+fp[c])
		r := safeDiv(tp[c], tp[c]+fn[c])
		precisions = append(precisions, p)
		recalls = append(recalls, r)
		f1s = append(f1s, safeDiv(2*p*r, p+r))
	}
	return accuracy, stat.Mean(precisions, nil), stat.Mean(recalls, nil), stat.Mean(f1s, nil)
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
