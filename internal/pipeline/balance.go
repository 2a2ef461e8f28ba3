package pipeline

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/uemura/appendicitis/internal/schema"
	"github.com/uemura/appendicitis/pkg/errors"
	"github.com/uemura/appendicitis/pkg/log"
	"github.com/uemura/appendicitis/sklearn/over_sampling"
)

// Balanced is the SMOTE-balanced training set of one target. Y holds class
// indices into Labels, which are sorted.
type Balanced struct {
	Target   string
	Features []string
	X        *mat.Dense
	Y        *mat.Dense
	Labels   []string
	// Original is the row count before oversampling; rows from Original on
	// are synthetic.
	Original int
}

// Len returns the number of rows.
func (b *Balanced) Len() int {
	r, _ := b.Y.Dims()
	return r
}

// TargetColumn decodes Y back into label strings.
func (b *Balanced) TargetColumn() []string {
	out := make([]string, b.Len())
	for i := range out {
		out[i] = b.Labels[int(b.Y.At(i, 0))]
	}
	return out
}

// ClassCounts returns the number of rows per label.
func (b *Balanced) ClassCounts() map[string]int {
	counts := make(map[string]int, len(b.Labels))
	for _, l := range b.TargetColumn() {
		counts[l]++
	}
	return counts
}

// Balancer oversamples minority classes with SMOTE.
type Balancer struct {
	KNeighbors  int
	RandomState int64
	logger      log.Logger
}

// NewBalancer returns a Balancer with k neighbours and the given seed.
func NewBalancer(k int, seed int64) *Balancer {
	return &Balancer{
		KNeighbors:  k,
		RandomState: seed,
		logger:      log.GetLogger().With(log.ComponentKey, "balancer", log.PhaseKey, log.PhaseTraining),
	}
}

// Balance resamples the encoded features against one target column so that
// every class reaches the majority count. The other target columns are not
// carried over.
func (b *Balancer) Balance(e *Encoded, target string) (*Balanced, error) {
	if !schema.IsTarget(target) {
		return nil, errors.NewValidationError("target", "not a target column", target)
	}
	column, ok := e.Targets[target]
	if !ok {
		return nil, errors.NewMissingColumnsError("Balancer.Balance", []string{target})
	}
	n := e.Len()
	if n == 0 {
		return nil, errors.NewModelError("Balancer.Balance", "empty data", errors.ErrEmptyData)
	}

	seen := make(map[string]struct{})
	for _, v := range column {
		seen[v] = struct{}{}
	}
	labels := make([]string, 0, len(seen))
	for v := range seen {
		labels = append(labels, v)
	}
	sort.Strings(labels)
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	y := mat.NewDense(n, 1, nil)
	for i, v := range column {
		y.Set(i, 0, float64(index[v]))
	}

	smote := over_sampling.NewSMOTE(
		over_sampling.WithKNeighbors(b.KNeighbors),
		over_sampling.WithRandomState(b.RandomState),
	)
	X, Y, err := smote.FitResample(e.X, y)
	if err != nil {
		return nil, errors.Wrapf(err, "balance %s", target)
	}

	out := &Balanced{
		Target:   target,
		Features: append([]string(nil), e.Features...),
		X:        X,
		Y:        Y,
		Labels:   labels,
		Original: n,
	}
	b.logger.Info("Target balanced",
		log.OperationKey, log.OperationBalance,
		log.TargetKey, target,
		log.SamplesKey, out.Len(),
		log.ClassCountsKey, out.ClassCounts(),
	)
	return out, nil
}
