package preprocessing

import (
	"bytes"
	"math"
	"reflect"
	"testing"

	"github.com/uemura/appendicitis/core/model"
	"gonum.org/v1/gonum/mat"
)

func TestMinMaxScalerFitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 10,
		6, 20,
		12, 30,
		18, 40,
	})
	scaler := NewMinMaxScalerDefault()
	out, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	want := []float64{0, 1.0 / 3, 2.0 / 3, 1}
	for i, w := range want {
		for j := 0; j < 2; j++ {
			if got := out.At(i, j); math.Abs(got-w) > 1e-12 {
				t.Errorf("out[%d,%d] = %v, want %v", i, j, got, w)
			}
		}
	}

	back, err := scaler.InverseTransform(out)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	if !mat.EqualApprox(back, X, 1e-9) {
		t.Errorf("InverseTransform did not restore input")
	}
}

func TestMinMaxScalerDoesNotClipOrRefit(t *testing.T) {
	scaler := NewMinMaxScalerDefault()
	if err := scaler.FitNamed(mat.NewDense(2, 1, []float64{0, 10}), []string{"Age"}); err != nil {
		t.Fatalf("FitNamed failed: %v", err)
	}
	row, err := scaler.TransformRow([]float64{20})
	if err != nil {
		t.Fatalf("TransformRow failed: %v", err)
	}
	if row[0] != 2 {
		t.Errorf("out of range value scaled to %v, want 2", row[0])
	}
	if scaler.DataMax[0] != 10 {
		t.Errorf("Transform must not change fitted bounds, DataMax = %v", scaler.DataMax[0])
	}
	if !reflect.DeepEqual(scaler.FeatureNames, []string{"Age"}) {
		t.Errorf("FeatureNames = %v", scaler.FeatureNames)
	}
}

func TestMinMaxScalerConstantColumn(t *testing.T) {
	scaler := NewMinMaxScalerDefault()
	out, err := scaler.FitTransform(mat.NewDense(3, 1, []float64{5, 5, 5}))
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if out.At(i, 0) != 0 {
			t.Errorf("constant column should scale to 0, got %v", out.At(i, 0))
		}
	}
}

func TestMinMaxScalerErrors(t *testing.T) {
	scaler := NewMinMaxScalerDefault()
	if _, err := scaler.Transform(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("expected NotFittedError")
	}
	if err := scaler.FitNamed(mat.NewDense(1, 2, []float64{1, 2}), []string{"a"}); err == nil {
		t.Error("expected error for mismatched names")
	}
	if err := scaler.Fit(mat.NewDense(2, 1, []float64{1, math.NaN()})); err == nil {
		t.Error("expected error for NaN input")
	}
	_ = scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	if _, err := scaler.Transform(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("expected DimensionError")
	}
}

func TestMinMaxScalerPersistence(t *testing.T) {
	scaler := NewMinMaxScalerDefault()
	if err := scaler.FitNamed(mat.NewDense(2, 2, []float64{0, 1, 10, 3}), []string{"Age", "CRP"}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := model.SaveModelToWriter(scaler, &buf); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	var loaded MinMaxScaler
	if err := model.LoadModelFromReader(&loaded, &buf); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	a, _ := scaler.TransformRow([]float64{5, 2})
	b, err := loaded.TransformRow([]float64{5, 2})
	if err != nil {
		t.Fatalf("loaded scaler failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("loaded scaler output %v, want %v", b, a)
	}
	if !reflect.DeepEqual(loaded.FeatureNames, []string{"Age", "CRP"}) {
		t.Errorf("FeatureNames = %v", loaded.FeatureNames)
	}
}

func TestOneHotEncoder(t *testing.T) {
	columns := []string{"Sex", "Stool"}
	rows := [][]string{
		{"male", "normal"},
		{"female", "constipation, diarrhea"},
		{"male", ""},
	}
	enc := NewOneHotEncoder()
	out, err := enc.FitTransform(columns, rows)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	wantNames := []string{"Sex_female", "Sex_male", "Stool_constipation, diarrhea", "Stool_normal"}
	if got := enc.FeatureNames(); !reflect.DeepEqual(got, wantNames) {
		t.Fatalf("FeatureNames = %v, want %v", got, wantNames)
	}

	want := mat.NewDense(3, 4, []float64{
		0, 1, 0, 1,
		1, 0, 1, 0,
		0, 1, 0, 0,
	})
	if !mat.Equal(out, want) {
		t.Errorf("encoded =\n%v\nwant\n%v", mat.Formatted(out), mat.Formatted(want))
	}

	unseen, err := enc.Transform([][]string{{"other", "diarrhea"}})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if mat.Sum(unseen) != 0 {
		t.Errorf("unseen categories must encode to zeros, got %v", mat.Formatted(unseen))
	}
}

func TestOneHotEncoderErrors(t *testing.T) {
	enc := NewOneHotEncoder()
	if _, err := enc.Transform([][]string{{"a"}}); err == nil {
		t.Error("expected NotFittedError")
	}
	if err := enc.Fit([]string{"a", "b"}, [][]string{{"x"}}); err == nil {
		t.Error("expected DimensionError for ragged rows")
	}
}

func TestSimpleImputer(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(4, 2, []float64{
		1, nan,
		nan, 2,
		3, 2,
		4, 7,
	})

	tests := []struct {
		strategy string
		want     []float64
	}{
		{StrategyMedian, []float64{3, 2}},
		{StrategyMean, []float64{8.0 / 3, 11.0 / 3}},
		{StrategyMostFrequent, []float64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			imp := NewSimpleImputer(tt.strategy)
			out, err := imp.FitTransform(X)
			if err != nil {
				t.Fatalf("FitTransform failed: %v", err)
			}
			if math.Abs(out.At(1, 0)-tt.want[0]) > 1e-12 || math.Abs(out.At(0, 1)-tt.want[1]) > 1e-12 {
				t.Errorf("imputed (%v, %v), want %v", out.At(1, 0), out.At(0, 1), tt.want)
			}
			if !math.IsNaN(X.At(0, 1)) {
				t.Error("input matrix was modified")
			}
		})
	}

	if err := NewSimpleImputer("constant").Fit(X); err == nil {
		t.Error("expected error for unknown strategy")
	}
	if err := NewSimpleImputer(StrategyMedian).Fit(mat.NewDense(2, 1, []float64{nan, nan})); err == nil {
		t.Error("expected error for all-missing column")
	}
}

func TestMedianAndMostFrequent(t *testing.T) {
	if got := Median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Errorf("Median even = %v, want 2.5", got)
	}
	if got := Median([]float64{5, math.NaN(), 1, 3}); got != 3 {
		t.Errorf("Median with NaN = %v, want 3", got)
	}
	if !math.IsNaN(Median(nil)) {
		t.Error("Median of empty input should be NaN")
	}

	mode, ok := MostFrequent([]string{"yes", "no", "", "no", "yes"})
	if !ok || mode != "no" {
		t.Errorf("MostFrequent tie = %q, want \"no\"", mode)
	}
	if _, ok := MostFrequent([]string{"", ""}); ok {
		t.Error("MostFrequent of all-missing should report ok=false")
	}
}

func TestReindex(t *testing.T) {
	X := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	out, dropped, err := Reindex(X, []string{"a", "b", "x"}, []string{"b", "c", "a"})
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	want := mat.NewDense(2, 3, []float64{
		2, 0, 1,
		5, 0, 4,
	})
	if !mat.Equal(out, want) {
		t.Errorf("Reindex = %v, want %v", mat.Formatted(out), mat.Formatted(want))
	}
	if !reflect.DeepEqual(dropped, []string{"x"}) {
		t.Errorf("dropped = %v, want [x]", dropped)
	}

	if _, _, err := Reindex(X, []string{"a", "b"}, []string{"a"}); err == nil {
		t.Error("expected dimension error")
	}
	if _, _, err := Reindex(X, []string{"a", "a", "b"}, []string{"a"}); err == nil {
		t.Error("expected duplicate column error")
	}
}
