package submod

// Objective is a submodular set function defined over a ground set of
// candidate indices, evaluated incrementally: Gain reports the marginal
// gain of adding an element to the current selection, Add commits it.
// Implementations are not safe for concurrent use.
type Objective interface {
	// GroundSetSize returns the number of candidate elements.
	GroundSetSize() int
	// Gain returns the marginal gain of adding element i to the current
	// selection.
	Gain(i int) float64
	// Add commits element i to the current selection.
	Add(i int)
}
