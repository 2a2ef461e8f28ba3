package model_selection

import (
	"math"
	"reflect"
	"testing"

	"github.com/uemura/appendicitis/sklearn/ensemble"
	"gonum.org/v1/gonum/mat"
)

// constantClassifier always predicts the "label" parameter.
type constantClassifier struct {
	label  float64
	fitted bool
}

func (c *constantClassifier) Fit(X, y mat.Matrix) error { c.fitted = true; return nil }

func (c *constantClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, c.label)
	}
	return out, nil
}

func (c *constantClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 2, nil)
	for i := 0; i < r; i++ {
		out.Set(i, int(c.label), 1)
	}
	return out, nil
}

func (c *constantClassifier) Classes() []float64 { return []float64{0, 1} }

func (c *constantClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{"label": c.label}
}

func (c *constantClassifier) SetParams(p map[string]interface{}) error {
	if v, ok := p["label"]; ok {
		c.label = v.(float64)
	}
	return nil
}

func labels(values ...float64) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(len(values), 1, nil)
	for i := range values {
		X.Set(i, 0, float64(i))
	}
	return X, mat.NewDense(len(values), 1, values)
}

func TestKFoldSplit(t *testing.T) {
	X, y := labels(0, 0, 0, 0, 0, 0, 0)
	folds, err := NewKFold(3, false, 0).Split(X, y)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	want := [][]int{{0, 1, 2}, {3, 4}, {5, 6}}
	for f, fold := range folds {
		if !reflect.DeepEqual(fold.TestIndices, want[f]) {
			t.Errorf("fold %d test = %v, want %v", f, fold.TestIndices, want[f])
		}
		if len(fold.TrainIndices)+len(fold.TestIndices) != 7 {
			t.Errorf("fold %d does not partition the samples", f)
		}
	}

	if _, err := NewKFold(10, false, 0).Split(X, y); err == nil {
		t.Error("expected error when n_splits exceeds n_samples")
	}
}

func TestStratifiedKFoldPreservesProportions(t *testing.T) {
	// 12 of class 1, 6 of class 0, interleaved
	values := make([]float64, 18)
	for i := range values {
		if i%3 != 2 {
			values[i] = 1
		}
	}
	X, y := labels(values...)

	folds, err := NewStratifiedKFold(3, false, 0).Split(X, y)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	seen := make(map[int]int)
	for f, fold := range folds {
		ones := 0
		for _, idx := range fold.TestIndices {
			seen[idx]++
			if y.At(idx, 0) == 1 {
				ones++
			}
		}
		if len(fold.TestIndices) != 6 || ones != 4 {
			t.Errorf("fold %d: %d test samples with %d positives, want 6 and 4", f, len(fold.TestIndices), ones)
		}
	}
	if len(seen) != 18 {
		t.Errorf("test folds cover %d samples, want 18", len(seen))
	}
	for idx, n := range seen {
		if n != 1 {
			t.Errorf("sample %d appears in %d test folds", idx, n)
		}
	}
}

func TestStratifiedKFoldNoShuffleIsOrdered(t *testing.T) {
	X, y := labels(0, 0, 0, 1, 1, 1)
	folds, err := NewStratifiedKFold(3, false, 0).Split(X, y)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]int{{0, 3}, {1, 4}, {2, 5}}
	for f, fold := range folds {
		if !reflect.DeepEqual(fold.TestIndices, want[f]) {
			t.Errorf("fold %d test = %v, want %v", f, fold.TestIndices, want[f])
		}
	}
}

func TestStratifiedKFoldTooManySplits(t *testing.T) {
	X, y := labels(0, 1, 0, 1)
	if _, err := NewStratifiedKFold(3, false, 0).Split(X, y); err == nil {
		t.Error("expected error when every class has fewer members than n_splits")
	}
}

func TestParamGridCandidates(t *testing.T) {
	grid := ParamGrid{
		"n_estimators":      {100, 200, 300},
		"max_depth":         {10, 20, nil},
		"min_samples_split": {2, 5},
		"min_samples_leaf":  {1, 2},
		"max_features":      {"sqrt", "log2"},
	}
	cands := grid.Candidates()
	if len(cands) != 72 {
		t.Fatalf("len(candidates) = %d, want 72", len(cands))
	}
	// sorted keys: max_depth, max_features, min_samples_leaf, min_samples_split, n_estimators
	if cands[0]["max_depth"] != 10 || cands[0]["n_estimators"] != 100 || cands[1]["n_estimators"] != 200 {
		t.Errorf("unexpected enumeration order: %v, %v", cands[0], cands[1])
	}
	seen := make(map[string]bool)
	for _, c := range cands {
		seen[c.String()] = true
	}
	if len(seen) != 72 {
		t.Errorf("candidates are not unique: %d distinct", len(seen))
	}
}

func TestGridSearchCVSelectsBest(t *testing.T) {
	X, y := labels(1, 1, 1, 0, 1, 1, 0, 1, 1, 1)
	gs := NewGridSearchCV(
		func() Estimator { return &constantClassifier{} },
		ParamGrid{"label": {0.0, 1.0}},
		NewKFold(5, false, 0),
	)
	if err := gs.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if gs.BestParams["label"] != 1.0 {
		t.Errorf("BestParams = %v, want label=1", gs.BestParams)
	}
	if math.Abs(gs.BestScore-0.8) > 1e-9 {
		t.Errorf("BestScore = %v, want 0.8", gs.BestScore)
	}
	if gs.Results[gs.BestIndex].Rank != 1 || len(gs.Results) != 2 {
		t.Errorf("unexpected results: %+v", gs.Results)
	}
	best, ok := gs.BestEstimator.(*constantClassifier)
	if !ok || !best.fitted || best.label != 1 {
		t.Errorf("BestEstimator not refit with winning params: %+v", gs.BestEstimator)
	}
}

func TestGridSearchCVTieGoesToFirst(t *testing.T) {
	X, y := labels(0, 1, 0, 1)
	gs := NewGridSearchCV(
		func() Estimator { return &constantClassifier{} },
		ParamGrid{"label": {1.0, 0.0}},
		NewKFold(2, false, 0),
	)
	gs.Refit = false
	if err := gs.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if gs.BestIndex != 0 || gs.BestEstimator != nil {
		t.Errorf("BestIndex = %d, BestEstimator = %v", gs.BestIndex, gs.BestEstimator)
	}
}

func TestCrossValidateWithForest(t *testing.T) {
	n := 30
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		class := float64(i % 2)
		X.SetRow(i, []float64{class*5 + float64(i%4)*0.1, float64(i % 3)})
		y.Set(i, 0, class)
	}

	res, err := CrossValidate(
		func() Estimator {
			return ensemble.NewRandomForestClassifier(ensemble.WithNEstimators(5), ensemble.WithRandomState(42))
		},
		X, y, NewStratifiedKFold(5, false, 0), DiagnosticScorers, 0,
	)
	if err != nil {
		t.Fatalf("CrossValidate failed: %v", err)
	}
	if !reflect.DeepEqual(res.Names(), []string{"accuracy", "f1_macro", "precision_macro", "recall_macro"}) {
		t.Errorf("Names = %v", res.Names())
	}
	for _, name := range res.Names() {
		if len(res.Scores[name]) != 5 {
			t.Errorf("%s has %d fold scores, want 5", name, len(res.Scores[name]))
		}
		if res.Mean(name) != 1 {
			t.Errorf("%s mean = %v, want 1 on separable data", name, res.Mean(name))
		}
	}
}

func TestCrossValPredict(t *testing.T) {
	X, y := labels(0, 1, 0, 1, 0, 1, 0, 1, 0, 1)

	pred, err := CrossValPredict(func() Estimator { return &constantClassifier{label: 1} }, X, y, NewKFold(5, false, 0), 2)
	if err != nil {
		t.Fatalf("CrossValPredict failed: %v", err)
	}
	if pred.Len() != 10 {
		t.Fatalf("got %d predictions, want 10", pred.Len())
	}
	for i := 0; i < pred.Len(); i++ {
		if pred.AtVec(i) != 1 {
			t.Errorf("row %d predicted %v, want 1", i, pred.AtVec(i))
		}
	}

	if _, err := CrossValPredict(nil, X, y, NewKFold(5, false, 0), 1); err == nil {
		t.Error("expected an error without a factory")
	}
}

func TestCrossValPredictRejectsPanickingFactory(t *testing.T) {
	X, y := labels(0, 1, 0, 1, 0, 1)
	_, err := CrossValPredict(func() Estimator { panic("bad parameters") }, X, y, NewKFold(3, false, 0), 1)
	if err == nil {
		t.Fatal("expected the factory panic to surface as an error")
	}
}

func TestMeanStdIsPopulationStd(t *testing.T) {
	tests := []struct {
		xs        []float64
		mean, std float64
	}{
		{nil, 0, 0},
		{[]float64{0.5}, 0.5, 0},
		{[]float64{1, 0, 1, 0}, 0.5, 0.5},
		{[]float64{2, 4, 4, 4, 5, 5, 7, 9}, 5, 2},
	}
	for _, tt := range tests {
		mean, std := meanStd(tt.xs)
		if math.Abs(mean-tt.mean) > 1e-12 || math.Abs(std-tt.std) > 1e-12 {
			t.Errorf("meanStd(%v) = (%v, %v), want (%v, %v)", tt.xs, mean, std, tt.mean, tt.std)
		}
	}
}
