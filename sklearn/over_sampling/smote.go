// Package over_sampling implements SMOTE, the Synthetic Minority
// Over-sampling Technique, with imbalanced-learn semantics.
package over_sampling

import (
	"math/rand/v2"
	"sort"

	"github.com/uemura/appendicitis/core/parallel"
	"github.com/uemura/appendicitis/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Option configures SMOTE.
type Option func(*SMOTE)

// WithKNeighbors sets the number of same-class neighbours to interpolate towards.
func WithKNeighbors(k int) Option {
	return func(s *SMOTE) { s.KNeighbors = k }
}

// WithRandomState seeds sample and gap selection.
func WithRandomState(seed int64) Option {
	return func(s *SMOTE) { s.RandomState = seed }
}

// SMOTE generates synthetic rows for every class smaller than the largest
// one until all classes have the majority count.
type SMOTE struct {
	KNeighbors  int
	RandomState int64
}

// NewSMOTE creates SMOTE with k=5 and random state 0.
func NewSMOTE(opts ...Option) *SMOTE {
	s := &SMOTE{KNeighbors: 5}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FitResample returns X and y with synthetic rows appended. The original
// rows come first, unchanged and in order, followed by the synthetic rows of
// each minority class in ascending label order.
//
// Every synthetic row is x + gap*(nn - x) where nn is one of the k nearest
// same-class neighbours of x and gap is uniform in [0, 1). A class with
// fewer than k+1 rows uses all its other rows as neighbours; a class with a
// single row is oversampled by copying it.
func (s *SMOTE) FitResample(X, y mat.Matrix) (*mat.Dense, *mat.Dense, error) {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return nil, nil, errors.NewModelError("SMOTE.FitResample", "empty data", errors.ErrEmptyData)
	}
	if yr, _ := y.Dims(); yr != n {
		return nil, nil, errors.NewDimensionError("SMOTE.FitResample", n, yr, 0)
	}
	if s.KNeighbors < 1 {
		return nil, nil, errors.NewValidationError("k_neighbors", "must be at least 1", s.KNeighbors)
	}

	byClass := make(map[float64][]int)
	for i := 0; i < n; i++ {
		label := y.At(i, 0)
		byClass[label] = append(byClass[label], i)
	}
	if len(byClass) < 2 {
		return nil, nil, errors.Wrap(errors.ErrSingleClass, "SMOTE.FitResample")
	}
	classes := make([]float64, 0, len(byClass))
	majority := 0
	for label, idx := range byClass {
		classes = append(classes, label)
		if len(idx) > majority {
			majority = len(idx)
		}
	}
	sort.Float64s(classes)

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}

	rng := rand.New(rand.NewPCG(uint64(s.RandomState), uint64(s.RandomState)))
	var synthX [][]float64
	var synthY []float64
	for _, label := range classes {
		members := byClass[label]
		need := majority - len(members)
		if need == 0 {
			continue
		}
		for _, r := range s.generate(rows, members, need, rng) {
			synthX = append(synthX, r)
			synthY = append(synthY, label)
		}
	}

	total := n + len(synthX)
	outX := mat.NewDense(total, d, nil)
	outY := mat.NewDense(total, 1, nil)
	for i := 0; i < n; i++ {
		outX.SetRow(i, rows[i])
		outY.Set(i, 0, y.At(i, 0))
	}
	for i, r := range synthX {
		outX.SetRow(n+i, r)
		outY.Set(n+i, 0, synthY[i])
	}
	return outX, outY, nil
}

func (s *SMOTE) generate(rows [][]float64, members []int, need int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, need)
	if len(members) == 1 {
		for i := range out {
			out[i] = append([]float64(nil), rows[members[0]]...)
		}
		return out
	}

	k := s.KNeighbors
	if k > len(members)-1 {
		k = len(members) - 1
	}
	neighbors := kNeighbors(rows, members, k)

	for i := range out {
		pick := rng.IntN(len(members) * k)
		base := members[pick/k]
		nn := members[neighbors[pick/k][pick%k]]
		gap := rng.Float64()

		r := make([]float64, len(rows[base]))
		copy(r, rows[nn])
		floats.Sub(r, rows[base])
		floats.Scale(gap, r)
		floats.Add(r, rows[base])
		out[i] = r
	}
	return out
}

// kNeighbors returns, for every member, the positions (within members) of
// its k nearest other members by Euclidean distance. Ties keep the lower
// position first.
func kNeighbors(rows [][]float64, members []int, k int) [][]int {
	m := len(members)
	out := make([][]int, m)
	parallel.ParallelizeWithThreshold(m, 128, func(start, end int) {
		order := make([]int, m)
		dist := make([]float64, m)
		for a := start; a < end; a++ {
			for b := 0; b < m; b++ {
				order[b] = b
				dist[b] = floats.Distance(rows[members[a]], rows[members[b]], 2)
			}
			sort.SliceStable(order, func(i, j int) bool { return dist[order[i]] < dist[order[j]] })
			nn := make([]int, 0, k)
			for _, b := range order {
				if b == a {
					continue
				}
				nn = append(nn, b)
				if len(nn) == k {
					break
				}
			}
			out[a] = nn
		}
	})
	return out
}
