package classifier

import (
	"math/rand"
	"sort"
)

// forest is a bootstrap-aggregated ensemble of CART decision trees over a
// small, fixed feature space. Trees split on Gini impurity with a random
// feature subset per split; prediction is a majority vote with ties broken
// toward the lower class index so results stay deterministic.
type forest struct {
	trees      []*node
	numClasses int
}

type node struct {
	leaf    bool
	class   int
	feature int
	thresh  float64
	left    *node
	right   *node
}

type forestParams struct {
	numTrees      int
	maxDepth      int
	minLeaf       int
	featureSubset int
}

// growForest trains the ensemble. All randomness (bootstrap sampling and
// feature subsets) flows from rng, so a fixed seed reproduces the forest.
func growForest(x [][]float64, y []int, numClasses int, p forestParams, rng *rand.Rand) *forest {
	f := &forest{numClasses: numClasses}
	n := len(x)
	for t := 0; t < p.numTrees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		f.trees = append(f.trees, growTree(x, y, sample, numClasses, p, rng, 0))
	}
	return f
}

func (f *forest) predict(row []float64) int {
	votes := make([]int, f.numClasses)
	for _, t := range f.trees {
		votes[predictTree(t, row)]++
	}
	best := 0
	for c := 1; c < f.numClasses; c++ {
		if votes[c] > votes[best] {
			best = c
		}
	}
	return best
}

func predictTree(n *node, row []float64) int {
	for !n.leaf {
		if row[n.feature] <= n.thresh {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.class
}

func growTree(x [][]float64, y []int, idx []int, numClasses int, p forestParams, rng *rand.Rand, depth int) *node {
	counts := classCounts(y, idx, numClasses)
	if depth >= p.maxDepth || len(idx) < 2*p.minLeaf || pure(counts) {
		return &node{leaf: true, class: majority(counts)}
	}

	feature, thresh, ok := bestSplit(x, y, idx, numClasses, p, rng)
	if !ok {
		return &node{leaf: true, class: majority(counts)}
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= thresh {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < p.minLeaf || len(right) < p.minLeaf {
		return &node{leaf: true, class: majority(counts)}
	}

	return &node{
		feature: feature,
		thresh:  thresh,
		left:    growTree(x, y, left, numClasses, p, rng, depth+1),
		right:   growTree(x, y, right, numClasses, p, rng, depth+1),
	}
}

// bestSplit scans a random subset of features and the midpoints between
// consecutive distinct values for the split minimizing weighted Gini
// impurity. Returns ok=false when no split separates the samples.
func bestSplit(x [][]float64, y []int, idx []int, numClasses int, p forestParams, rng *rand.Rand) (int, float64, bool) {
	numFeatures := len(x[idx[0]])
	features := rng.Perm(numFeatures)
	if p.featureSubset > 0 && p.featureSubset < numFeatures {
		features = features[:p.featureSubset]
	}
	sort.Ints(features) // evaluation order independent of perm order

	bestGini := -1.0
	bestFeature, bestThresh := -1, 0.0

	for _, f := range features {
		values := make([]float64, 0, len(idx))
		for _, i := range idx {
			values = append(values, x[i][f])
		}
		sort.Float64s(values)

		for v := 1; v < len(values); v++ {
			if values[v] == values[v-1] {
				continue
			}
			thresh := (values[v] + values[v-1]) / 2
			g := splitGini(x, y, idx, f, thresh, numClasses)
			if bestGini < 0 || g < bestGini {
				bestGini, bestFeature, bestThresh = g, f, thresh
			}
		}
	}

	return bestFeature, bestThresh, bestFeature >= 0
}

func splitGini(x [][]float64, y []int, idx []int, feature int, thresh float64, numClasses int) float64 {
	leftCounts := make([]int, numClasses)
	rightCounts := make([]int, numClasses)
	nLeft, nRight := 0, 0
	for _, i := range idx {
		if x[i][feature] <= thresh {
			leftCounts[y[i]]++
			nLeft++
		} else {
			rightCounts[y[i]]++
			nRight++
		}
	}
	total := float64(nLeft + nRight)
	return float64(nLeft)/total*gini(leftCounts, nLeft) + float64(nRight)/total*gini(rightCounts, nRight)
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		impurity -= p * p
	}
	return impurity
}

func classCounts(y []int, idx []int, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, i := range idx {
		counts[y[i]]++
	}
	return counts
}

func pure(counts []int) bool {
	nonzero := 0
	for _, c := range counts {
		if c > 0 {
			nonzero++
		}
	}
	return nonzero <= 1
}

func majority(counts []int) int {
	best := 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
