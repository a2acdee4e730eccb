package submod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// A 3-point ground set, one query similar to points 0 and 1, one private
// point similar to point 2.
func smallFLCMIKernels() (data, query, private *mat.Dense) {
	data = mat.NewDense(3, 3, []float64{
		1, 0.2, 0.1,
		0.2, 1, 0.3,
		0.1, 0.3, 1,
	})
	query = mat.NewDense(3, 1, []float64{0.9, 0.5, 0.1})
	private = mat.NewDense(3, 1, []float64{0, 0, 0.8})
	return
}

func TestFacilityLocationCMIGains(t *testing.T) {
	data, query, private := smallFLCMIKernels()

	obj, err := NewFacilityLocationCMI(data, query, private, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 3, obj.GroundSetSize())

	// Element 0 covers itself (capped at its query relevance 0.9),
	// element 1 at 0.2 and element 2 contributes nothing, its privacy
	// discount swallows the capped coverage.
	assert.InDelta(t, 1.1, obj.Gain(0), 1e-9)
	assert.InDelta(t, 0.7, obj.Gain(1), 1e-9)
	assert.InDelta(t, 0.4, obj.Gain(2), 1e-9)

	obj.Add(0)

	// Point 0 is fully covered. Adding 1 lifts its own coverage from 0.2
	// to its cap 0.5; adding 2 contributes nothing for itself but still
	// lifts point 1's coverage from 0.2 to 0.3.
	assert.InDelta(t, 0.3, obj.Gain(1), 1e-9)
	assert.InDelta(t, 0.1, obj.Gain(2), 1e-9)
}

func TestFacilityLocationCMIEta(t *testing.T) {
	data, query, private := smallFLCMIKernels()

	base, err := NewFacilityLocationCMI(data, query, private, 1, 1)
	require.NoError(t, err)
	magnified, err := NewFacilityLocationCMI(data, query, private, 2, 1)
	require.NoError(t, err)

	// Raising eta lifts the query-relevance cap, so first gains can only
	// grow.
	for i := 0; i < 3; i++ {
		assert.GreaterOrEqual(t, magnified.Gain(i), base.Gain(i))
	}
}

func TestFacilityLocationCMINu(t *testing.T) {
	data, query, private := smallFLCMIKernels()

	soft, err := NewFacilityLocationCMI(data, query, private, 1, 0.1)
	require.NoError(t, err)
	hard, err := NewFacilityLocationCMI(data, query, private, 1, 10)
	require.NoError(t, err)

	// A harder privacy constraint cannot make any element more valuable.
	for i := 0; i < 3; i++ {
		assert.LessOrEqual(t, hard.Gain(i), soft.Gain(i))
	}
}

func TestFacilityLocationCMIMonotone(t *testing.T) {
	data, query, private := smallFLCMIKernels()

	obj, err := NewFacilityLocationCMI(data, query, private, 1, 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.GreaterOrEqual(t, obj.Gain(i), 0.0)
		obj.Add(i)
	}
}

func TestFacilityLocationCMIDimensionErrors(t *testing.T) {
	data, query, private := smallFLCMIKernels()

	tests := []struct {
		name    string
		d, q, p *mat.Dense
	}{
		{"non-square data", mat.NewDense(3, 2, nil), query, private},
		{"query rows", data, mat.NewDense(2, 1, nil), private},
		{"private rows", data, query, mat.NewDense(4, 1, nil)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewFacilityLocationCMI(test.d, test.q, test.p, 1, 1)
			require.Error(t, err)
		})
	}
}
