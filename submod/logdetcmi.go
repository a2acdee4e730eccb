package submod

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// schurFloor guards the log against non-positive Schur complements that
// can appear through rounding once a candidate is almost linearly
// dependent on the selected set.
const schurFloor = 1e-12

// LogDeterminantCMI is the log-determinant based conditional mutual
// information objective. With f(S) = logdet(K_S + lambda*I) over the
// joint kernel of the ground, query and private sets, it maximizes
//
//	I(A; Q | P) = f(A∪P) + f(Q∪P) - f(P) - f(A∪Q∪P)
//
// The ground-query kernel block is magnified by eta and the private
// blocks by nu, mirroring their query-relevance and privacy-hardness
// roles in the facility-location variant.
type LogDeterminantCMI struct {
	n     int
	joint *mat.SymDense
	ap    *cholSet // A ∪ P, grows as elements are selected
	aqp   *cholSet // A ∪ Q ∪ P
}

// NewLogDeterminantCMI builds the objective from all six kernel blocks:
// data-data (n x n), data-query (n x q), data-private (n x p),
// query-query (q x q), private-private (p x p) and query-private
// (q x p). lambda is the diagonal regularizer keeping the joint kernel
// positive definite.
func NewLogDeterminantCMI(data, query, private, queryQuery, privatePrivate, queryPrivate *mat.Dense,
	eta, nu, lambda float64,
) (*LogDeterminantCMI, error) {
	n, nCols := data.Dims()
	if n != nCols {
		return nil, errors.Errorf("data kernel must be square, got %dx%d", n, nCols)
	}
	qRows, q := query.Dims()
	if qRows != n {
		return nil, errors.Errorf("query kernel has %d rows, want %d", qRows, n)
	}
	pRows, p := private.Dims()
	if pRows != n {
		return nil, errors.Errorf("private kernel has %d rows, want %d", pRows, n)
	}
	if r, c := queryQuery.Dims(); r != q || c != q {
		return nil, errors.Errorf("query-query kernel is %dx%d, want %dx%d", r, c, q, q)
	}
	if r, c := privatePrivate.Dims(); r != p || c != p {
		return nil, errors.Errorf("private-private kernel is %dx%d, want %dx%d", r, c, p, p)
	}
	if r, c := queryPrivate.Dims(); r != q || c != p {
		return nil, errors.Errorf("query-private kernel is %dx%d, want %dx%d", r, c, q, p)
	}
	if lambda <= 0 {
		return nil, errors.Errorf("lambda must be positive, got %f", lambda)
	}

	// Joint index space: ground elements first, then queries, then
	// privates.
	total := n + q + p
	joint := mat.NewSymDense(total, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			joint.SetSym(i, j, (data.At(i, j)+data.At(j, i))/2)
		}
		for a := 0; a < q; a++ {
			joint.SetSym(i, n+a, eta*query.At(i, a))
		}
		for b := 0; b < p; b++ {
			joint.SetSym(i, n+q+b, nu*private.At(i, b))
		}
	}
	for a := 0; a < q; a++ {
		for a2 := a; a2 < q; a2++ {
			joint.SetSym(n+a, n+a2, (queryQuery.At(a, a2)+queryQuery.At(a2, a))/2)
		}
		for b := 0; b < p; b++ {
			joint.SetSym(n+a, n+q+b, nu*queryPrivate.At(a, b))
		}
	}
	for b := 0; b < p; b++ {
		for b2 := b; b2 < p; b2++ {
			joint.SetSym(n+q+b, n+q+b2, (privatePrivate.At(b, b2)+privatePrivate.At(b2, b))/2)
		}
	}
	for i := 0; i < total; i++ {
		joint.SetSym(i, i, joint.At(i, i)+lambda)
	}

	apMembers := make([]int, 0, p)
	for b := 0; b < p; b++ {
		apMembers = append(apMembers, n+q+b)
	}
	aqpMembers := make([]int, 0, q+p)
	for a := 0; a < q; a++ {
		aqpMembers = append(aqpMembers, n+a)
	}
	aqpMembers = append(aqpMembers, apMembers...)

	ap, err := newCholSet(joint, apMembers)
	if err != nil {
		return nil, errors.Wrap(err, "factorize private kernel")
	}
	aqp, err := newCholSet(joint, aqpMembers)
	if err != nil {
		return nil, errors.Wrap(err, "factorize query-private kernel")
	}

	return &LogDeterminantCMI{n: n, joint: joint, ap: ap, aqp: aqp}, nil
}

func (l *LogDeterminantCMI) GroundSetSize() int {
	return l.n
}

// Gain returns the marginal CMI gain of adding ground element j:
// the log of j's Schur complement against A∪P minus the log of its
// Schur complement against A∪Q∪P.
func (l *LogDeterminantCMI) Gain(j int) float64 {
	return l.ap.logSchur(j) - l.aqp.logSchur(j)
}

func (l *LogDeterminantCMI) Add(j int) {
	l.ap.add(j)
	l.aqp.add(j)
}

// cholSet maintains the Cholesky factorization of the joint-kernel
// submatrix indexed by its members, extended one element at a time.
type cholSet struct {
	joint   *mat.SymDense
	members []int
	chol    mat.Cholesky
}

func newCholSet(joint *mat.SymDense, members []int) (*cholSet, error) {
	s := &cholSet{joint: joint, members: members}
	if len(members) == 0 {
		return s, nil
	}
	if ok := s.chol.Factorize(s.submatrix(members)); !ok {
		return nil, errors.Errorf("kernel submatrix of size %d is not positive definite, "+
			"increase the lambda regularizer", len(members))
	}
	return s, nil
}

func (s *cholSet) submatrix(members []int) *mat.SymDense {
	sub := mat.NewSymDense(len(members), nil)
	for i, mi := range members {
		for j := i; j < len(members); j++ {
			sub.SetSym(i, j, s.joint.At(mi, members[j]))
		}
	}
	return sub
}

// logSchur computes log of the Schur complement of element j against the
// current members, which equals f(members ∪ {j}) - f(members) for
// f = logdet.
func (s *cholSet) logSchur(j int) float64 {
	diag := s.joint.At(j, j)
	if len(s.members) == 0 {
		return math.Log(math.Max(diag, schurFloor))
	}

	c := s.crossVector(j)
	var x mat.VecDense
	// A Condition error still yields a usable solution; precision loss
	// is absorbed by the floor below.
	_ = s.chol.SolveVecTo(&x, c)

	schur := diag - mat.Dot(c, &x)
	return math.Log(math.Max(schur, schurFloor))
}

func (s *cholSet) crossVector(j int) *mat.VecDense {
	c := mat.NewVecDense(len(s.members), nil)
	for i, m := range s.members {
		c.SetVec(i, s.joint.At(m, j))
	}
	return c
}

func (s *cholSet) add(j int) {
	if len(s.members) == 0 {
		s.members = append(s.members, j)
		if ok := s.chol.Factorize(s.submatrix(s.members)); !ok {
			s.chol.Factorize(s.jittered(s.members))
		}
		return
	}

	// Column of the extended submatrix: cross similarities plus j's
	// diagonal entry.
	v := mat.NewVecDense(len(s.members)+1, nil)
	for i, m := range s.members {
		v.SetVec(i, s.joint.At(m, j))
	}
	v.SetVec(len(s.members), s.joint.At(j, j))

	next := make([]int, len(s.members)+1)
	copy(next, s.members)
	next[len(s.members)] = j

	var extended mat.Cholesky
	if ok := extended.ExtendVecSym(&s.chol, v); !ok {
		// Near-singular extension, refactorize with a touch of jitter.
		if ok := extended.Factorize(s.submatrix(next)); !ok {
			extended.Factorize(s.jittered(next))
		}
	}
	s.chol = extended
	s.members = next
}

func (s *cholSet) jittered(members []int) *mat.SymDense {
	sub := s.submatrix(members)
	for i := 0; i < len(members); i++ {
		sub.SetSym(i, i, sub.At(i, i)+schurFloor*float64(len(members)))
	}
	return sub
}
