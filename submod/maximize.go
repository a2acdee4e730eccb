package submod

import (
	"container/heap"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Optimizer names understood by NewOptimizer.
const (
	OptimizerNaiveGreedy      = "NaiveGreedy"
	OptimizerLazyGreedy       = "LazyGreedy"
	OptimizerStochasticGreedy = "StochasticGreedy"
	OptimizerLazierThanLazy   = "LazierThanLazyGreedy"
)

// Default sample-size control for the stochastic optimizers.
const defaultStochasticGreedyEps = 0.1

// Gain records one accepted element and its marginal gain at acceptance
// time.
type Gain struct {
	Index int
	Gain  float64
}

// Options control a maximization run.
type Options struct {
	// Budget is the cardinality constraint; at most Budget elements are
	// selected.
	Budget int
	// StopIfZeroGain halts as soon as the best marginal gain is zero.
	StopIfZeroGain bool
	// StopIfNegativeGain halts as soon as the best marginal gain is
	// negative.
	StopIfNegativeGain bool
	// Epsilon controls the sample size of the stochastic optimizers,
	// sampleSize = ceil((n/budget) * ln(1/Epsilon)). Defaults to 0.1.
	Epsilon float64
	// Seed seeds the stochastic optimizers; 0 uses the current time.
	Seed int64
	// Verbose logs every acceptance at debug level.
	Verbose bool
}

// Optimizer maximizes a submodular objective under a cardinality
// constraint, returning accepted elements in acceptance order.
type Optimizer interface {
	Maximize(obj Objective, opts Options) ([]Gain, error)
}

// NewOptimizer returns the optimizer registered under name.
func NewOptimizer(name string) (Optimizer, error) {
	switch name {
	case OptimizerNaiveGreedy:
		return naiveGreedy{}, nil
	case OptimizerLazyGreedy:
		return lazyGreedy{}, nil
	case OptimizerStochasticGreedy:
		return stochasticGreedy{}, nil
	case OptimizerLazierThanLazy:
		return lazierThanLazyGreedy{}, nil
	default:
		return nil, errors.Errorf("unsupported optimizer %q", name)
	}
}

func validateOptions(obj Objective, opts Options) error {
	if opts.Budget <= 0 {
		return errors.Errorf("budget must be positive, got %d", opts.Budget)
	}
	if obj.GroundSetSize() == 0 {
		return errors.Errorf("cannot maximize over an empty ground set")
	}
	return nil
}

// accept applies the early-stop flags to the best candidate of a round.
// It returns false when maximization should halt.
func accept(selected *[]Gain, obj Objective, best Gain, opts Options) bool {
	if opts.StopIfZeroGain && best.Gain == 0 {
		return false
	}
	if opts.StopIfNegativeGain && best.Gain < 0 {
		return false
	}
	obj.Add(best.Index)
	*selected = append(*selected, best)
	if opts.Verbose {
		log.WithFields(log.Fields{"index": best.Index, "gain": best.Gain,
			"selected": len(*selected)}).Debug("Accepted element")
	}
	return true
}

type naiveGreedy struct{}

func (naiveGreedy) Maximize(obj Objective, opts Options) ([]Gain, error) {
	if err := validateOptions(obj, opts); err != nil {
		return nil, err
	}

	n := obj.GroundSetSize()
	selected := make([]Gain, 0, opts.Budget)
	inSet := make([]bool, n)

	for len(selected) < opts.Budget && len(selected) < n {
		best := Gain{Index: -1, Gain: math.Inf(-1)}
		for i := 0; i < n; i++ {
			if inSet[i] {
				continue
			}
			if g := obj.Gain(i); g > best.Gain {
				best = Gain{Index: i, Gain: g}
			}
		}
		if best.Index < 0 || !accept(&selected, obj, best, opts) {
			break
		}
		inSet[best.Index] = true
	}

	return selected, nil
}

// candidateHeap is a max-heap of stale marginal-gain upper bounds.
type candidateHeap []Gain

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	// Ties resolve to the lower index, matching the scan order of the
	// naive variant.
	if h[i].Gain == h[j].Gain {
		return h[i].Index < h[j].Index
	}
	return h[i].Gain > h[j].Gain
}
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(Gain)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// staleBehind reports whether a refreshed gain must yield to the heap
// top before acceptance. A gain that merely ties the top defers to the
// lower index, like the ties inside the heap.
func staleBehind(fresh, top Gain) bool {
	if fresh.Gain == top.Gain {
		return fresh.Index > top.Index
	}
	return fresh.Gain < top.Gain
}

type lazyGreedy struct{}

// Maximize runs the lazy-greedy algorithm: cached gains are upper bounds
// by submodularity, so the top of the heap only needs re-evaluation
// until it stays on top, at which point it is the true argmax.
func (lazyGreedy) Maximize(obj Objective, opts Options) ([]Gain, error) {
	if err := validateOptions(obj, opts); err != nil {
		return nil, err
	}

	n := obj.GroundSetSize()
	h := make(candidateHeap, 0, n)
	for i := 0; i < n; i++ {
		h = append(h, Gain{Index: i, Gain: obj.Gain(i)})
	}
	heap.Init(&h)

	selected := make([]Gain, 0, opts.Budget)
	for len(selected) < opts.Budget && h.Len() > 0 {
		top := heap.Pop(&h).(Gain)
		fresh := Gain{Index: top.Index, Gain: obj.Gain(top.Index)}
		if h.Len() > 0 && staleBehind(fresh, h[0]) {
			heap.Push(&h, fresh)
			continue
		}
		if !accept(&selected, obj, fresh, opts) {
			break
		}
	}

	return selected, nil
}

func sampleSize(n, budget int, epsilon float64) int {
	if epsilon <= 0 || epsilon >= 1 {
		epsilon = defaultStochasticGreedyEps
	}
	s := int(math.Ceil(float64(n) / float64(budget) * math.Log(1/epsilon)))
	if s < 1 {
		s = 1
	}
	if s > n {
		s = n
	}
	return s
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// sampleCandidates draws up to size unselected indices without
// replacement.
func sampleCandidates(rng *rand.Rand, inSet []bool, size int) []int {
	remaining := make([]int, 0, len(inSet))
	for i, in := range inSet {
		if !in {
			remaining = append(remaining, i)
		}
	}
	rng.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})
	if size > len(remaining) {
		size = len(remaining)
	}
	return remaining[:size]
}

type stochasticGreedy struct{}

func (stochasticGreedy) Maximize(obj Objective, opts Options) ([]Gain, error) {
	if err := validateOptions(obj, opts); err != nil {
		return nil, err
	}

	n := obj.GroundSetSize()
	size := sampleSize(n, opts.Budget, opts.Epsilon)
	rng := newRand(opts.Seed)

	selected := make([]Gain, 0, opts.Budget)
	inSet := make([]bool, n)

	for len(selected) < opts.Budget && len(selected) < n {
		best := Gain{Index: -1, Gain: math.Inf(-1)}
		for _, i := range sampleCandidates(rng, inSet, size) {
			if g := obj.Gain(i); g > best.Gain {
				best = Gain{Index: i, Gain: g}
			}
		}
		if best.Index < 0 || !accept(&selected, obj, best, opts) {
			break
		}
		inSet[best.Index] = true
	}

	return selected, nil
}

type lazierThanLazyGreedy struct{}

// Maximize combines stochastic sampling with lazy evaluation: each round
// draws a random candidate sample and runs the lazy re-evaluation loop
// only within it, seeding the heap from gains cached across rounds.
func (lazierThanLazyGreedy) Maximize(obj Objective, opts Options) ([]Gain, error) {
	if err := validateOptions(obj, opts); err != nil {
		return nil, err
	}

	n := obj.GroundSetSize()
	size := sampleSize(n, opts.Budget, opts.Epsilon)
	rng := newRand(opts.Seed)

	cached := make([]float64, n)
	for i := range cached {
		cached[i] = math.Inf(1)
	}

	selected := make([]Gain, 0, opts.Budget)
	inSet := make([]bool, n)

	for len(selected) < opts.Budget && len(selected) < n {
		sample := sampleCandidates(rng, inSet, size)
		h := make(candidateHeap, 0, len(sample))
		for _, i := range sample {
			h = append(h, Gain{Index: i, Gain: cached[i]})
		}
		heap.Init(&h)

		best := Gain{Index: -1, Gain: math.Inf(-1)}
		for h.Len() > 0 {
			top := heap.Pop(&h).(Gain)
			fresh := Gain{Index: top.Index, Gain: obj.Gain(top.Index)}
			cached[top.Index] = fresh.Gain
			if h.Len() > 0 && staleBehind(fresh, h[0]) {
				heap.Push(&h, fresh)
				continue
			}
			best = fresh
			break
		}

		if best.Index < 0 || !accept(&selected, obj, best, opts) {
			break
		}
		inSet[best.Index] = true
	}

	return selected, nil
}
