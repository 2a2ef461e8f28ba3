package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "PredictProba")
		panic("index out of range")
	}

	err := testFunc()

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "PredictProba" {
		t.Errorf("Expected operation 'PredictProba', got '%s'", panicErr.Operation)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}
	if panicErr.Error() != "panic in PredictProba: index out of range" {
		t.Errorf("unexpected message '%s'", panicErr.Error())
	}
}

func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "PredictProba")
		return nil
	}

	if err := testFunc(); err != nil {
		t.Fatalf("Expected no error when no panic occurs, got: %v", err)
	}
}

func TestRecover_WithExistingError(t *testing.T) {
	originalErr := fmt.Errorf("original error")

	testFunc := func() (err error) {
		defer Recover(&err, "PredictProba")
		err = originalErr
		panic("panic after error")
	}

	err := testFunc()
	if !strings.Contains(err.Error(), "panic in PredictProba") {
		t.Errorf("Error message should contain panic info: %s", err)
	}
	if !errors.Is(err, originalErr) {
		t.Error("original error should stay in the chain")
	}
}

func TestSafeExecute(t *testing.T) {
	if err := SafeExecute("ok", func() error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	fnErr := fmt.Errorf("boom")
	if err := SafeExecute("fails", func() error { return fnErr }); !errors.Is(err, fnErr) {
		t.Errorf("expected function error, got %v", err)
	}

	err := SafeExecute("panics", func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if !strings.Contains(panicErr.String(), "Stack trace:") {
		t.Error("String() should include the stack trace")
	}
}

func TestSafeValue(t *testing.T) {
	v, err := SafeValue("proba", func() (float64, error) { return 0.75, nil })
	if err != nil || v != 0.75 {
		t.Fatalf("got (%v, %v), want (0.75, nil)", v, err)
	}

	v, err = SafeValue("proba", func() (float64, error) {
		var s []float64
		return s[3], nil
	})
	if err == nil {
		t.Fatal("expected error from panic")
	}
	if v != 0 {
		t.Errorf("value should be zero after panic, got %v", v)
	}
}
