package submod

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// FacilityLocationCMI is the facility-location based conditional mutual
// information objective. Each ground-set element i contributes its best
// coverage by the selected set, capped by eta-scaled query relevance and
// discounted by nu-scaled similarity to the private set:
//
//	f(A) = sum_i max(0, min(max_{j in A} s_ij, eta*qmax_i) - nu*pmax_i)
//
// where qmax_i is i's best similarity to any query point and pmax_i its
// best similarity to any private point. Raising eta makes selection more
// query-focused and less diverse; raising nu hardens the privacy
// constraint.
type FacilityLocationCMI struct {
	n     int
	data  *mat.Dense
	eta   float64
	nu    float64
	qmax  []float64
	pmax  []float64
	cover []float64
}

// NewFacilityLocationCMI builds the objective from the data-data (n x n),
// data-query (n x q) and data-private (n x p) similarity kernels.
func NewFacilityLocationCMI(data, query, private *mat.Dense, eta, nu float64) (*FacilityLocationCMI, error) {
	n, nCols := data.Dims()
	if n != nCols {
		return nil, errors.Errorf("data kernel must be square, got %dx%d", n, nCols)
	}
	qRows, numQueries := query.Dims()
	if qRows != n {
		return nil, errors.Errorf("query kernel has %d rows, want %d", qRows, n)
	}
	pRows, numPrivates := private.Dims()
	if pRows != n {
		return nil, errors.Errorf("private kernel has %d rows, want %d", pRows, n)
	}

	qmax := make([]float64, n)
	pmax := make([]float64, n)
	for i := 0; i < n; i++ {
		qmax[i] = math.Inf(-1)
		for q := 0; q < numQueries; q++ {
			qmax[i] = math.Max(qmax[i], query.At(i, q))
		}
		for p := 0; p < numPrivates; p++ {
			pmax[i] = math.Max(pmax[i], private.At(i, p))
		}
	}

	return &FacilityLocationCMI{
		n:     n,
		data:  data,
		eta:   eta,
		nu:    nu,
		qmax:  qmax,
		pmax:  pmax,
		cover: make([]float64, n),
	}, nil
}

func (f *FacilityLocationCMI) GroundSetSize() int {
	return f.n
}

// contribution of ground-set element i when its best coverage is c.
func (f *FacilityLocationCMI) contribution(i int, c float64) float64 {
	v := math.Min(c, f.eta*f.qmax[i]) - f.nu*f.pmax[i]
	if v < 0 {
		return 0
	}
	return v
}

func (f *FacilityLocationCMI) Gain(j int) float64 {
	var gain float64
	for i := 0; i < f.n; i++ {
		s := f.data.At(i, j)
		if s <= f.cover[i] {
			continue
		}
		gain += f.contribution(i, s) - f.contribution(i, f.cover[i])
	}
	return gain
}

func (f *FacilityLocationCMI) Add(j int) {
	for i := 0; i < f.n; i++ {
		if s := f.data.At(i, j); s > f.cover[i] {
			f.cover[i] = s
		}
	}
}
