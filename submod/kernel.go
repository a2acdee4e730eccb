// Package submod implements similarity kernels, submodular conditional
// mutual information objectives, and the greedy maximizer family used to
// optimize them under a cardinality constraint.
package submod

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/shrey23812/trust/embeddings"
)

// Metric names a pairwise similarity measure for kernel construction.
type Metric string

const (
	// MetricCosine is cosine similarity. Zero vectors have similarity 0
	// to everything.
	MetricCosine Metric = "cosine"
	// MetricEuclidean converts the euclidean distance d into the
	// similarity 1/(1+d), so identical vectors score 1 and similarity
	// decays monotonically with distance.
	MetricEuclidean Metric = "euclidean"
)

// Valid reports whether m names a supported metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricEuclidean:
		return true
	}
	return false
}

// Kernel computes the square similarity kernel of x against itself.
func Kernel(x embeddings.Matrix, metric Metric) (*mat.Dense, error) {
	return CrossKernel(x, x, metric)
}

// CrossKernel computes the len(x) by len(y) kernel of pairwise
// similarities between two embedding sets.
func CrossKernel(x, y embeddings.Matrix, metric Metric) (*mat.Dense, error) {
	if len(x) == 0 || len(y) == 0 {
		return nil, errors.Errorf("cannot build kernel from empty embedding set (%d x %d)",
			len(x), len(y))
	}
	if x.Dimension() != y.Dimension() {
		return nil, errors.Errorf("embedding dimensions don't match: %d vs %d",
			x.Dimension(), y.Dimension())
	}

	var sim func(a, b []float32) float64
	switch metric {
	case MetricCosine:
		sim = cosineSim
	case MetricEuclidean:
		sim = euclideanSim
	default:
		return nil, errors.Errorf("unsupported metric %q", metric)
	}

	out := mat.NewDense(len(x), len(y), nil)
	for i, a := range x {
		for j, b := range y {
			out.Set(i, j, sim(a, b))
		}
	}
	return out, nil
}

func cosineSim(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func euclideanSim(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return 1 / (1 + math.Sqrt(sum))
}
