// Package ensemble provides tree ensembles built on sklearn/tree.
package ensemble

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand/v2"

	"github.com/uemura/appendicitis/core/model"
	"github.com/uemura/appendicitis/core/parallel"
	"github.com/uemura/appendicitis/pkg/errors"
	"github.com/uemura/appendicitis/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(f *RandomForestClassifier) { f.nEstimators = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(criterion string) Option {
	return func(f *RandomForestClassifier) { f.criterion = criterion }
}

// WithMaxDepth limits tree depth. Zero means unlimited.
func WithMaxDepth(depth int) Option {
	return func(f *RandomForestClassifier) { f.maxDepth = depth }
}

// WithMinSamplesSplit sets min_samples_split of every tree.
func WithMinSamplesSplit(n int) Option {
	return func(f *RandomForestClassifier) { f.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets min_samples_leaf of every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(f *RandomForestClassifier) { f.minSamplesLeaf = n }
}

// WithMaxFeatures sets the per-split feature subsampling strategy.
func WithMaxFeatures(strategy string) Option {
	return func(f *RandomForestClassifier) { f.maxFeatures = strategy }
}

// WithBootstrap toggles bootstrap sampling of the training rows.
func WithBootstrap(bootstrap bool) Option {
	return func(f *RandomForestClassifier) { f.bootstrap = bootstrap }
}

// WithRandomState seeds the forest. Tree i uses seed+i.
func WithRandomState(seed int64) Option {
	return func(f *RandomForestClassifier) { f.randomState = seed }
}

// WithNJobs sets the number of goroutines building trees. Zero or negative
// means one per CPU.
func WithNJobs(n int) Option {
	return func(f *RandomForestClassifier) { f.nJobs = n }
}

// RandomForestClassifier averages the class probabilities of bootstrapped
// decision trees.
type RandomForestClassifier struct {
	state *model.StateManager

	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	randomState     int64
	nJobs           int

	classes []float64
	trees   []*tree.DecisionTreeClassifier
}

// NewRandomForestClassifier creates a forest with scikit-learn defaults:
// 100 trees, gini, sqrt features, bootstrap on.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	f := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       tree.CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     tree.MaxFeaturesSqrt,
		bootstrap:       true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit builds nEstimators trees in parallel. The result only depends on the
// random state, not on scheduling.
func (f *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if f.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", f.nEstimators)
	}
	s, err := tree.NewSamples(X, y)
	if err != nil {
		return err
	}
	if f.state == nil {
		f.state = model.NewStateManager()
	}

	trees := make([]*tree.DecisionTreeClassifier, f.nEstimators)
	errs := make([]error, f.nEstimators)
	parallel.ParallelizeWorkers(f.nEstimators, f.nJobs, func(start, end int) {
		for i := start; i < end; i++ {
			trees[i], errs[i] = f.fitTree(s, i)
		}
	})
	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
	}

	f.trees = trees
	f.classes = append([]float64(nil), s.Classes...)
	f.state.SetFitted(s.NFeatures, s.NSamples)
	return nil
}

func (f *RandomForestClassifier) fitTree(s *tree.Samples, i int) (*tree.DecisionTreeClassifier, error) {
	seed := f.randomState + int64(i)
	indices := make([]int, s.NSamples)
	if f.bootstrap {
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
		for k := range indices {
			indices[k] = rng.IntN(s.NSamples)
		}
	} else {
		for k := range indices {
			indices[k] = k
		}
	}

	t := tree.NewDecisionTreeClassifier(
		tree.WithCriterion(f.criterion),
		tree.WithMaxDepth(f.maxDepth),
		tree.WithMinSamplesSplit(f.minSamplesSplit),
		tree.WithMinSamplesLeaf(f.minSamplesLeaf),
		tree.WithMaxFeatures(f.maxFeatures),
		tree.WithRandomState(seed),
	)
	if err := t.FitSamples(s, indices); err != nil {
		return nil, err
	}
	return t, nil
}

// PredictProba returns the mean of the trees' class probabilities
// (n_samples × n_classes), columns ordered like Classes().
func (f *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := f.checkFitted("PredictProba"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := f.state.RequireFeatures("RandomForestClassifier.PredictProba", c); err != nil {
		return nil, err
	}

	out := mat.NewDense(r, len(f.classes), nil)
	parallel.ParallelizeWithThreshold(r, 64, func(start, end int) {
		row := make([]float64, c)
		acc := make([]float64, len(f.classes))
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			for k := range acc {
				acc[k] = 0
			}
			for _, t := range f.trees {
				for k, p := range t.ProbaRow(row) {
					acc[k] += p
				}
			}
			for k := range acc {
				acc[k] /= float64(len(f.trees))
			}
			out.SetRow(i, acc)
		}
	})
	return out, nil
}

// Predict returns the class with the highest mean probability (n_samples × 1).
func (f *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, k := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, f.classes[best])
	}
	return out, nil
}

// Score returns the mean accuracy on X and y, 0 on error.
func (f *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := f.Predict(X)
	if err != nil {
		return 0
	}
	r, _ := pred.Dims()
	if r == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < r; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(r)
}

// Classes returns the sorted class labels seen during fitting.
func (f *RandomForestClassifier) Classes() []float64 {
	return append([]float64(nil), f.classes...)
}

// NEstimators returns the number of fitted trees.
func (f *RandomForestClassifier) NEstimators() int {
	return len(f.trees)
}

// FeatureImportances returns the mean impurity-based importance over trees,
// normalized to sum to 1.
func (f *RandomForestClassifier) FeatureImportances() []float64 {
	if !f.IsFitted() {
		return nil
	}
	nf, _ := f.state.GetDimensions()
	out := make([]float64, nf)
	total := 0.0
	for _, t := range f.trees {
		for j, v := range t.GetFeatureImportances() {
			out[j] += v
			total += v
		}
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// IsFitted reports whether Fit has completed.
func (f *RandomForestClassifier) IsFitted() bool {
	return f.state != nil && f.state.IsFitted()
}

func (f *RandomForestClassifier) checkFitted(method string) error {
	if !f.IsFitted() {
		return errors.NewNotFittedError("RandomForestClassifier", method)
	}
	return nil
}

// GetParams returns the hyperparameters in scikit-learn naming.
func (f *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.nEstimators,
		"criterion":         f.criterion,
		"max_depth":         f.maxDepth,
		"min_samples_split": f.minSamplesSplit,
		"min_samples_leaf":  f.minSamplesLeaf,
		"max_features":      f.maxFeatures,
		"bootstrap":         f.bootstrap,
		"random_state":      f.randomState,
		"n_jobs":            f.nJobs,
	}
}

// SetParams updates hyperparameters. Unknown keys are rejected.
func (f *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		ok := true
		switch key {
		case "n_estimators":
			f.nEstimators, ok = toInt(value)
		case "criterion":
			f.criterion, ok = value.(string)
		case "max_depth":
			f.maxDepth, ok = toInt(value)
		case "min_samples_split":
			f.minSamplesSplit, ok = toInt(value)
		case "min_samples_leaf":
			f.minSamplesLeaf, ok = toInt(value)
		case "max_features":
			f.maxFeatures, ok = value.(string)
		case "bootstrap":
			f.bootstrap, ok = value.(bool)
		case "random_state":
			var seed int
			seed, ok = toInt(value)
			f.randomState = int64(seed)
		case "n_jobs":
			f.nJobs, ok = toInt(value)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "unsupported value type", value)
		}
	}
	return nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

// forestSnapshot is the gob representation of a fitted forest.
type forestSnapshot struct {
	Params    map[string]interface{}
	Fitted    bool
	NFeatures int
	NSamples  int
	Classes   []float64
	Trees     []*tree.DecisionTreeClassifier
}

// GobEncode implements gob.GobEncoder.
func (f *RandomForestClassifier) GobEncode() ([]byte, error) {
	snap := forestSnapshot{
		Params:  f.GetParams(),
		Classes: f.classes,
		Trees:   f.trees,
	}
	if f.state != nil {
		snap.Fitted = f.state.IsFitted()
		snap.NFeatures, snap.NSamples = f.state.GetDimensions()
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, errors.Wrap(err, "failed to encode random forest")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (f *RandomForestClassifier) GobDecode(data []byte) error {
	var snap forestSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return errors.Wrap(err, "failed to decode random forest")
	}
	if err := f.SetParams(snap.Params); err != nil {
		return err
	}
	f.classes = snap.Classes
	f.trees = snap.Trees
	f.state = model.NewStateManager()
	if snap.Fitted {
		f.state.SetFitted(snap.NFeatures, snap.NSamples)
	}
	return nil
}

// String returns a short description of the forest.
func (f *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d, max_features=%s)",
		f.nEstimators, f.maxDepth, f.minSamplesSplit, f.minSamplesLeaf, f.maxFeatures)
}
