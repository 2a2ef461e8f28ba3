// Package tree implements a CART decision tree classifier compatible with
// scikit-learn's DecisionTreeClassifier.
package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/uemura/appendicitis/core/model"
	"github.com/uemura/appendicitis/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Split criteria.
const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

// Feature subsampling strategies for WithMaxFeatures.
const (
	MaxFeaturesAll  = "all"
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
)

// Node is one node of a fitted tree. Leaves have Feature == -1.
// Samples with x[Feature] <= Threshold go to Left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Depth     int
	NSamples  int
	Impurity  float64
	Value     []float64 // class fractions, ordered like Classes()
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.Feature < 0
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity measure ("gini" or "entropy").
func WithCriterion(criterion string) Option {
	return func(d *DecisionTreeClassifier) { d.criterion = criterion }
}

// WithMaxDepth limits the tree depth. Zero or negative means unlimited.
func WithMaxDepth(depth int) Option {
	return func(d *DecisionTreeClassifier) { d.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(d *DecisionTreeClassifier) { d.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples required in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(d *DecisionTreeClassifier) { d.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are considered per split
// ("all", "sqrt" or "log2").
func WithMaxFeatures(strategy string) Option {
	return func(d *DecisionTreeClassifier) { d.maxFeatures = strategy }
}

// WithRandomState seeds the feature permutation drawn at every split.
func WithRandomState(seed int64) Option {
	return func(d *DecisionTreeClassifier) { d.randomState = seed }
}

// DecisionTreeClassifier is a CART classifier.
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	randomState     int64

	classes_            []float64
	nClasses_           int
	nFeatures_          int
	nodes               []Node
	featureImportances_ []float64
}

// NewDecisionTreeClassifier creates a tree with scikit-learn defaults:
// gini, unlimited depth, min_samples_split=2, min_samples_leaf=1, all features.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	d := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     MaxFeaturesAll,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Samples is a row-major training set with labels encoded as class indices.
// It is read-only once built and may be shared by many trees.
type Samples struct {
	X         []float64
	NSamples  int
	NFeatures int
	Y         []int
	Classes   []float64
}

// NewSamples converts X (n_samples × n_features) and y (n_samples × 1)
// into Samples. Classes are the sorted distinct values of y.
func NewSamples(X, y mat.Matrix) (*Samples, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	yr, _ := y.Dims()
	if yr != r {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.Fit", r, yr, 0)
	}

	s := &Samples{X: make([]float64, r*c), NSamples: r, NFeatures: c, Y: make([]int, r)}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewValidationError("X", fmt.Sprintf("non-finite value at row %d column %d", i, j), v)
			}
			s.X[i*c+j] = v
		}
	}

	seen := make(map[float64]struct{})
	for i := 0; i < r; i++ {
		seen[y.At(i, 0)] = struct{}{}
	}
	for v := range seen {
		s.Classes = append(s.Classes, v)
	}
	sort.Float64s(s.Classes)
	for i := 0; i < r; i++ {
		s.Y[i] = sort.SearchFloat64s(s.Classes, y.At(i, 0))
	}
	return s, nil
}

// Fit builds the tree from X and y.
func (d *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	s, err := NewSamples(X, y)
	if err != nil {
		return err
	}
	indices := make([]int, s.NSamples)
	for i := range indices {
		indices[i] = i
	}
	return d.FitSamples(s, indices)
}

// FitSamples builds the tree from the rows of s listed in indices.
// Repeated indices count once per occurrence, as in a bootstrap sample.
// The tree's classes are s.Classes even when some do not occur in indices.
func (d *DecisionTreeClassifier) FitSamples(s *Samples, indices []int) error {
	if err := d.validateParams(); err != nil {
		return err
	}
	if len(indices) == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if d.state == nil {
		d.state = model.NewStateManager()
	}

	b := &builder{
		tree:        d,
		s:           s,
		rng:         rand.New(rand.NewPCG(uint64(d.randomState), uint64(d.randomState))),
		maxFeatures: resolveMaxFeatures(d.maxFeatures, s.NFeatures),
		importance:  make([]float64, s.NFeatures),
		order:       make([]int, s.NFeatures),
	}
	for i := range b.order {
		b.order[i] = i
	}

	d.classes_ = append([]float64(nil), s.Classes...)
	d.nClasses_ = len(s.Classes)
	d.nFeatures_ = s.NFeatures
	d.nodes = d.nodes[:0]
	b.build(append([]int(nil), indices...), 0)

	total := 0.0
	for _, v := range b.importance {
		total += v
	}
	if total > 0 {
		for i := range b.importance {
			b.importance[i] /= total
		}
	}
	d.featureImportances_ = b.importance

	d.state.SetFitted(s.NFeatures, len(indices))
	return nil
}

func (d *DecisionTreeClassifier) validateParams() error {
	switch d.criterion {
	case CriterionGini, CriterionEntropy:
	default:
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", d.criterion)
	}
	switch d.maxFeatures {
	case "", MaxFeaturesAll, MaxFeaturesSqrt, MaxFeaturesLog2:
	default:
		return errors.NewValidationError("max_features", "must be 'all', 'sqrt' or 'log2'", d.maxFeatures)
	}
	if d.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", d.minSamplesSplit)
	}
	if d.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", d.minSamplesLeaf)
	}
	return nil
}

func resolveMaxFeatures(strategy string, nFeatures int) int {
	var k int
	switch strategy {
	case MaxFeaturesSqrt:
		k = int(math.Sqrt(float64(nFeatures)))
	case MaxFeaturesLog2:
		k = int(math.Log2(float64(nFeatures)))
	default:
		k = nFeatures
	}
	if k < 1 {
		k = 1
	}
	return k
}

type builder struct {
	tree        *DecisionTreeClassifier
	s           *Samples
	rng         *rand.Rand
	maxFeatures int
	importance  []float64
	order       []int
}

// build appends the subtree for idx and returns its node index.
func (b *builder) build(idx []int, depth int) int {
	d := b.tree
	counts := make([]float64, d.nClasses_)
	for _, i := range idx {
		counts[b.s.Y[i]]++
	}
	n := len(idx)
	impurity := b.impurity(counts, float64(n))

	value := make([]float64, len(counts))
	for k, c := range counts {
		value[k] = c / float64(n)
	}

	id := len(d.nodes)
	d.nodes = append(d.nodes, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Depth:    depth,
		NSamples: n,
		Impurity: impurity,
		Value:    value,
	})

	if impurity <= 0 ||
		(d.maxDepth > 0 && depth >= d.maxDepth) ||
		n < d.minSamplesSplit ||
		n < 2*d.minSamplesLeaf {
		return id
	}

	feature, threshold, childImpurity, ok := b.bestSplit(idx, counts)
	if !ok {
		return id
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	nf := b.s.NFeatures
	for _, i := range idx {
		if b.s.X[i*nf+feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importance[feature] += float64(n)*impurity - childImpurity

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	d.nodes[id].Feature = feature
	d.nodes[id].Threshold = threshold
	d.nodes[id].Left = l
	d.nodes[id].Right = r
	return id
}

// bestSplit scans a random permutation of the features until maxFeatures
// non-constant ones have been evaluated. childImpurity is the sample-weighted
// sum of the children's impurities.
func (b *builder) bestSplit(idx []int, counts []float64) (feature int, threshold, childImpurity float64, ok bool) {
	nf := b.s.NFeatures
	n := len(idx)
	minLeaf := b.tree.minSamplesLeaf

	b.rng.Shuffle(len(b.order), func(i, j int) { b.order[i], b.order[j] = b.order[j], b.order[i] })

	sorted := make([]int, n)
	leftCounts := make([]float64, len(counts))
	rightCounts := make([]float64, len(counts))
	best := math.Inf(1)
	visited := 0

	for _, f := range b.order {
		if visited >= b.maxFeatures {
			break
		}
		copy(sorted, idx)
		x := func(i int) float64 { return b.s.X[sorted[i]*nf+f] }
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.s.X[sorted[i]*nf+f] < b.s.X[sorted[j]*nf+f]
		})
		if x(0) == x(n-1) {
			continue
		}
		visited++

		for k := range leftCounts {
			leftCounts[k] = 0
		}
		for i := 0; i < n-1; i++ {
			leftCounts[b.s.Y[sorted[i]]]++
			if x(i) == x(i+1) {
				continue
			}
			nl, nr := i+1, n-i-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			for k := range counts {
				rightCounts[k] = counts[k] - leftCounts[k]
			}
			weighted := float64(nl)*b.impurity(leftCounts, float64(nl)) +
				float64(nr)*b.impurity(rightCounts, float64(nr))
			if weighted < best {
				best = weighted
				feature = f
				threshold = (x(i) + x(i+1)) / 2
				if threshold == x(i+1) {
					threshold = x(i)
				}
				ok = true
			}
		}
	}
	return feature, threshold, best, ok
}

func (b *builder) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	switch b.tree.criterion {
	case CriterionEntropy:
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / n
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		g := 1.0
		for _, c := range counts {
			p := c / n
			g -= p * p
		}
		return g
	}
}

// PredictProba returns class probabilities (n_samples × n_classes),
// columns ordered like Classes().
func (d *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c, err := d.checkInput(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(r, d.nClasses_, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, d.ProbaRow(row))
	}
	return out, nil
}

// ProbaRow returns the class fractions of the leaf reached by row.
// The returned slice is owned by the tree and must not be modified.
func (d *DecisionTreeClassifier) ProbaRow(row []float64) []float64 {
	id := 0
	for {
		node := &d.nodes[id]
		if node.IsLeaf() {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			id = node.Left
		} else {
			id = node.Right
		}
	}
}

// Predict returns the most probable class per sample (n_samples × 1).
func (d *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, c, err := d.checkInput(X, "Predict")
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, d.classes_[argmax(d.ProbaRow(row))])
	}
	return out, nil
}

func (d *DecisionTreeClassifier) checkInput(X mat.Matrix, method string) (int, int, error) {
	if d.state == nil || !d.state.IsFitted() {
		return 0, 0, errors.NewNotFittedError("DecisionTreeClassifier", method)
	}
	r, c := X.Dims()
	if c != d.nFeatures_ {
		return 0, 0, errors.NewDimensionError("DecisionTreeClassifier."+method, d.nFeatures_, c, 1)
	}
	return r, c, nil
}

// Score returns the mean accuracy on X and y. Unfitted models or
// mismatched inputs score 0.
func (d *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := d.Predict(X)
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
func (d *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), d.classes_...)
}

// GetFeatureImportances returns the normalized impurity decrease per feature.
func (d *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), d.featureImportances_...)
}

// GetDepth returns the depth of the deepest leaf (a lone root has depth 0).
func (d *DecisionTreeClassifier) GetDepth() int {
	depth := 0
	for i := range d.nodes {
		if d.nodes[i].Depth > depth {
			depth = d.nodes[i].Depth
		}
	}
	return depth
}

// GetNLeaves returns the number of leaves.
func (d *DecisionTreeClassifier) GetNLeaves() int {
	n := 0
	for i := range d.nodes {
		if d.nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Nodes returns the fitted nodes; index 0 is the root.
func (d *DecisionTreeClassifier) Nodes() []Node {
	return d.nodes
}

// GetParams returns the hyperparameters in scikit-learn naming.
func (d *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         d.criterion,
		"max_depth":         d.maxDepth,
		"min_samples_split": d.minSamplesSplit,
		"min_samples_leaf":  d.minSamplesLeaf,
		"max_features":      d.maxFeatures,
		"random_state":      d.randomState,
	}
}

// SetParams updates hyperparameters. Unknown keys are rejected.
func (d *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			d.criterion, ok = value.(string)
		case "max_depth":
			d.maxDepth, ok = toInt(value)
		case "min_samples_split":
			d.minSamplesSplit, ok = toInt(value)
		case "min_samples_leaf":
			d.minSamplesLeaf, ok = toInt(value)
		case "max_features":
			d.maxFeatures, ok = value.(string)
		case "random_state":
			var seed int
			seed, ok = toInt(value)
			d.randomState = int64(seed)
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

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// treeSnapshot is the gob representation of a fitted tree.
type treeSnapshot struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	RandomState     int64

	Fitted      bool
	Classes     []float64
	NFeatures   int
	NSamples    int
	Nodes       []Node
	Importances []float64
}

// GobEncode implements gob.GobEncoder.
func (d *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	snap := treeSnapshot{
		Criterion:       d.criterion,
		MaxDepth:        d.maxDepth,
		MinSamplesSplit: d.minSamplesSplit,
		MinSamplesLeaf:  d.minSamplesLeaf,
		MaxFeatures:     d.maxFeatures,
		RandomState:     d.randomState,
		Classes:         d.classes_,
		NFeatures:       d.nFeatures_,
		Nodes:           d.nodes,
		Importances:     d.featureImportances_,
	}
	if d.state != nil {
		snap.Fitted = d.state.IsFitted()
		_, snap.NSamples = d.state.GetDimensions()
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, errors.Wrap(err, "failed to encode decision tree")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (d *DecisionTreeClassifier) GobDecode(data []byte) error {
	var snap treeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return errors.Wrap(err, "failed to decode decision tree")
	}
	d.criterion = snap.Criterion
	d.maxDepth = snap.MaxDepth
	d.minSamplesSplit = snap.MinSamplesSplit
	d.minSamplesLeaf = snap.MinSamplesLeaf
	d.maxFeatures = snap.MaxFeatures
	d.randomState = snap.RandomState
	d.classes_ = snap.Classes
	d.nClasses_ = len(snap.Classes)
	d.nFeatures_ = snap.NFeatures
	d.nodes = snap.Nodes
	d.featureImportances_ = snap.Importances
	d.state = model.NewStateManager()
	if snap.Fitted {
		d.state.SetFitted(snap.NFeatures, snap.NSamples)
	}
	return nil
}

// String returns a short description of the tree.
func (d *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d, max_features=%s)",
		d.criterion, d.maxDepth, d.minSamplesSplit, d.minSamplesLeaf, d.maxFeatures)
}
