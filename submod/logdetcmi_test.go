package submod

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/shrey23812/trust/embeddings"
)

func randomEmbeddings(rng *rand.Rand, rows, dims int) embeddings.Matrix {
	out := make(embeddings.Matrix, rows)
	for i := range out {
		out[i] = make([]float32, dims)
		for j := range out[i] {
			out[i][j] = rng.Float32()*2 - 1
		}
	}
	return out
}

type logDetFixture struct {
	n, q, p int
	lambda  float64
	obj     *LogDeterminantCMI
	joint   *mat.SymDense
}

// newLogDetFixture builds the objective plus an independently assembled
// joint kernel for brute-force evaluation.
func newLogDetFixture(t *testing.T, seed int64, n, q, p int) *logDetFixture {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	const dims = 5
	unlabeled := randomEmbeddings(rng, n, dims)
	query := randomEmbeddings(rng, q, dims)
	private := randomEmbeddings(rng, p, dims)

	data, err := Kernel(unlabeled, MetricCosine)
	require.NoError(t, err)
	dq, err := CrossKernel(unlabeled, query, MetricCosine)
	require.NoError(t, err)
	dp, err := CrossKernel(unlabeled, private, MetricCosine)
	require.NoError(t, err)
	qq, err := Kernel(query, MetricCosine)
	require.NoError(t, err)
	pp, err := Kernel(private, MetricCosine)
	require.NoError(t, err)
	qp, err := CrossKernel(query, private, MetricCosine)
	require.NoError(t, err)

	const lambda = 1.0
	obj, err := NewLogDeterminantCMI(data, dq, dp, qq, pp, qp, 1, 1, lambda)
	require.NoError(t, err)

	total := n + q + p
	joint := mat.NewSymDense(total, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			joint.SetSym(i, j, data.At(i, j))
		}
		for a := 0; a < q; a++ {
			joint.SetSym(i, n+a, dq.At(i, a))
		}
		for b := 0; b < p; b++ {
			joint.SetSym(i, n+q+b, dp.At(i, b))
		}
	}
	for a := 0; a < q; a++ {
		for a2 := a; a2 < q; a2++ {
			joint.SetSym(n+a, n+a2, qq.At(a, a2))
		}
		for b := 0; b < p; b++ {
			joint.SetSym(n+a, n+q+b, qp.At(a, b))
		}
	}
	for b := 0; b < p; b++ {
		for b2 := b; b2 < p; b2++ {
			joint.SetSym(n+q+b, n+q+b2, pp.At(b, b2))
		}
	}
	for i := 0; i < total; i++ {
		joint.SetSym(i, i, joint.At(i, i)+lambda)
	}

	return &logDetFixture{n: n, q: q, p: p, lambda: lambda, obj: obj, joint: joint}
}

func (f *logDetFixture) logDet(t *testing.T, members []int) float64 {
	t.Helper()
	if len(members) == 0 {
		return 0
	}
	sub := mat.NewSymDense(len(members), nil)
	for i, mi := range members {
		for j := i; j < len(members); j++ {
			sub.SetSym(i, j, f.joint.At(mi, members[j]))
		}
	}
	var chol mat.Cholesky
	require.True(t, chol.Factorize(sub))
	return chol.LogDet()
}

// cmi evaluates I(A;Q|P) = f(A∪P) + f(Q∪P) - f(P) - f(A∪Q∪P) by direct
// factorization.
func (f *logDetFixture) cmi(t *testing.T, selected []int) float64 {
	t.Helper()
	queries := make([]int, 0, f.q)
	for a := 0; a < f.q; a++ {
		queries = append(queries, f.n+a)
	}
	privates := make([]int, 0, f.p)
	for b := 0; b < f.p; b++ {
		privates = append(privates, f.n+f.q+b)
	}

	ap := append(append([]int{}, selected...), privates...)
	qp := append(append([]int{}, queries...), privates...)
	aqp := append(append([]int{}, selected...), qp...)

	return f.logDet(t, ap) + f.logDet(t, qp) - f.logDet(t, privates) - f.logDet(t, aqp)
}

func TestLogDeterminantCMIGainMatchesBruteForce(t *testing.T) {
	f := newLogDetFixture(t, 42, 6, 2, 2)
	require.Equal(t, 6, f.obj.GroundSetSize())

	empty := f.cmi(t, nil)
	for j := 0; j < f.n; j++ {
		expected := f.cmi(t, []int{j}) - empty
		assert.InDelta(t, expected, f.obj.Gain(j), 1e-8, "first gain of %d", j)
	}

	f.obj.Add(0)
	base := f.cmi(t, []int{0})
	for j := 1; j < f.n; j++ {
		expected := f.cmi(t, []int{0, j}) - base
		assert.InDelta(t, expected, f.obj.Gain(j), 1e-8, "second gain of %d", j)
	}

	f.obj.Add(3)
	base = f.cmi(t, []int{0, 3})
	for j := 1; j < f.n; j++ {
		if j == 3 {
			continue
		}
		expected := f.cmi(t, []int{0, 3, j}) - base
		assert.InDelta(t, expected, f.obj.Gain(j), 1e-8, "third gain of %d", j)
	}
}

func TestLogDeterminantCMIOrthogonalSetsHaveZeroGain(t *testing.T) {
	// Standard basis vectors: every pairwise cosine similarity is 0, so
	// the selected set carries no information about the query set and
	// every marginal CMI gain vanishes.
	const n, q, p = 3, 2, 1
	dims := n + q + p
	basis := make(embeddings.Matrix, dims)
	for i := range basis {
		basis[i] = make([]float32, dims)
		basis[i][i] = 1
	}

	unlabeled := basis[:n]
	query := basis[n : n+q]
	private := basis[n+q:]

	data, err := Kernel(unlabeled, MetricCosine)
	require.NoError(t, err)
	dq, err := CrossKernel(unlabeled, query, MetricCosine)
	require.NoError(t, err)
	dp, err := CrossKernel(unlabeled, private, MetricCosine)
	require.NoError(t, err)
	qq, err := Kernel(query, MetricCosine)
	require.NoError(t, err)
	pp, err := Kernel(private, MetricCosine)
	require.NoError(t, err)
	qp, err := CrossKernel(query, private, MetricCosine)
	require.NoError(t, err)

	obj, err := NewLogDeterminantCMI(data, dq, dp, qq, pp, qp, 1, 1, 1)
	require.NoError(t, err)

	for j := 0; j < n; j++ {
		assert.InDelta(t, 0.0, obj.Gain(j), 1e-9)
	}
}

func TestLogDeterminantCMIKernelShapeErrors(t *testing.T) {
	data := mat.NewDense(4, 4, nil)
	dq := mat.NewDense(4, 2, nil)
	dp := mat.NewDense(4, 2, nil)
	qq := mat.NewDense(2, 2, nil)
	pp := mat.NewDense(2, 2, nil)
	qp := mat.NewDense(2, 2, nil)

	tests := []struct {
		name string
		swap func() (d, q, p, aQQ, aPP, aQP *mat.Dense)
	}{
		{"non-square data", func() (*mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense) {
			return mat.NewDense(4, 3, nil), dq, dp, qq, pp, qp
		}},
		{"query rows", func() (*mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense) {
			return data, mat.NewDense(3, 2, nil), dp, qq, pp, qp
		}},
		{"query-query shape", func() (*mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense) {
			return data, dq, dp, mat.NewDense(3, 3, nil), pp, qp
		}},
		{"query-private shape", func() (*mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense) {
			return data, dq, dp, qq, pp, mat.NewDense(3, 2, nil)
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d, q, p, aQQ, aPP, aQP := test.swap()
			_, err := NewLogDeterminantCMI(d, q, p, aQQ, aPP, aQP, 1, 1, 1)
			require.Error(t, err)
		})
	}
}

func TestLogDeterminantCMIRejectsBadLambda(t *testing.T) {
	data := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	dq := mat.NewDense(3, 1, nil)
	dp := mat.NewDense(3, 1, nil)
	qq := mat.NewDense(1, 1, []float64{1})
	pp := mat.NewDense(1, 1, []float64{1})
	qp := mat.NewDense(1, 1, nil)

	_, err := NewLogDeterminantCMI(data, dq, dp, qq, pp, qp, 1, 1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lambda")
}
