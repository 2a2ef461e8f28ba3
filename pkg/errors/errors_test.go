package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "appendicitis: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "PredictProba",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "appendicitis: PredictProba: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("MinMaxScaler.Transform", 16, 15, 1)

	want := "appendicitis: MinMaxScaler.Transform: dimension mismatch on axis 1 (features). Expected 16, got 15"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 16 || dimErr.Got != 15 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("RandomForestClassifier", "PredictProba")

	want := "appendicitis: RandomForestClassifier: this model is not fitted yet. Call Fit() before using PredictProba()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestMissingColumnsError(t *testing.T) {
	cols := []string{"Nausea", "Stool"}
	err := NewMissingColumnsError("Align", cols)

	// 呼び出し側のスライスを書き換えても影響しないこと
	cols[0] = "changed"

	var missing *MissingColumnsError
	if !As(Wrap(err, "infer patient"), &missing) {
		t.Fatal("wrapped error should still be a *MissingColumnsError")
	}
	if got := strings.Join(missing.Columns, ","); got != "Nausea,Stool" {
		t.Errorf("Columns = %s, want Nausea,Stool", got)
	}
	if !strings.Contains(err.Error(), "missing columns: Nausea, Stool") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestSchemaMismatchError(t *testing.T) {
	err := NewSchemaMismatchError("modelo_diagnosis.gob", 3, "Weight", "Height")

	var mismatch *SchemaMismatchError
	if !As(err, &mismatch) {
		t.Fatal("Error should be castable to *SchemaMismatchError")
	}
	if mismatch.Index != 3 {
		t.Errorf("Index = %d, want 3", mismatch.Index)
	}
	if !strings.Contains(err.Error(), `expected "Weight", got "Height"`) {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestLoadErrorUnwrap(t *testing.T) {
	base := fmt.Errorf("unexpected EOF")
	err := NewLoadError("scaler", "models/scaler.gob", base)

	if !Is(err, base) {
		t.Error("LoadError should unwrap to the underlying cause")
	}

	var loadErr *LoadError
	if !As(err, &loadErr) {
		t.Fatal("Error should be castable to *LoadError")
	}
	if loadErr.Path != "models/scaler.gob" {
		t.Errorf("Path = %s", loadErr.Path)
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrScalerUnavailable, "align patient")

	if !Is(wrapped, ErrScalerUnavailable) {
		t.Error("Expected Is(wrapped, ErrScalerUnavailable) to be true")
	}

	if !strings.Contains(wrapped.Error(), "align patient") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d rows, got %d", "Balance", 10, 0)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	expectedMsg := "in Balance: expected 10 rows, got 0"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestWithHint(t *testing.T) {
	err := WithHint(ErrScalerUnavailable, "run the training pipeline first")
	if !strings.Contains(FlattenHints(err), "run the training pipeline first") {
		t.Errorf("hint not found in %q", FlattenHints(err))
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("align", []float64{0, 0.5, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := CheckNumericalStability("align", []float64{0, nan(), 1})
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if numErr.Index != 1 {
		t.Errorf("Index = %d, want 1", numErr.Index)
	}
}

func TestWarnUsesZerologFunc(t *testing.T) {
	var got error
	SetZerologWarnFunc(func(w error) { got = w })
	defer SetZerologWarnFunc(nil)

	w := NewUndefinedMetricWarning("precision", "no predicted samples", 0)
	Warn(w)

	if got != w {
		t.Errorf("warning was not routed to the zerolog func")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
