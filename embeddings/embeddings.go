// Package embeddings provides per-example embedding matrices for the
// dataset splits a selection strategy operates on. Embeddings are either
// read from a precomputed store (ann-benchmarks style HDF5 files) or
// fetched from a remote embedding service.
package embeddings

import (
	"context"

	"github.com/pkg/errors"
)

// Matrix holds one embedding vector per example, all of equal dimension.
type Matrix [][]float32

// Rows returns the number of examples in the matrix.
func (m Matrix) Rows() int {
	return len(m)
}

// Dimension returns the embedding dimension, or 0 for an empty matrix.
func (m Matrix) Dimension() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Validate checks that every row has the same dimension.
func (m Matrix) Validate() error {
	dims := m.Dimension()
	for i, row := range m {
		if len(row) != dims {
			return errors.Errorf("inconsistent embedding dimensions: row 0 has %d, row %d has %d",
				dims, i, len(row))
		}
	}
	return nil
}

// Dataset splits used by selection strategies.
const (
	SplitUnlabeled = "unlabeled"
	SplitQuery     = "query"
	SplitPrivate   = "private"
	SplitLabeled   = "labeled"
)

// GradType selects which gradient blocks make up a gradient embedding.
type GradType string

const (
	GradBias       GradType = "bias"
	GradLinear     GradType = "linear"
	GradBiasLinear GradType = "bias_linear"
)

// Valid reports whether g names a supported gradient composition.
func (g GradType) Valid() bool {
	switch g {
	case GradBias, GradLinear, GradBiasLinear:
		return true
	}
	return false
}

// Provider computes or retrieves embedding matrices for a dataset split.
//
// The hypothesized flag marks splits whose labels are not known, so a
// provider that computes true gradients must substitute the model's
// predicted labels. Providers serving precomputed embeddings may ignore
// it.
type Provider interface {
	GradientEmbeddings(ctx context.Context, split string, hypothesized bool, gradType GradType) (Matrix, error)
	FeatureEmbeddings(ctx context.Context, split string, hypothesized bool, layer string) (Matrix, error)
}
