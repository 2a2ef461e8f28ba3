package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	apperrors "github.com/uemura/appendicitis/pkg/errors"
)

func TestTestLoggerLevels(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelInfo)

	testLogger.Debug("hidden debug")
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message", ErrorCodeKey, ErrorInvalidInput)
	testLogger.Error("error message", fmt.Errorf("boom"), TargetKey, "Severity")

	if buffer.Len() == 0 {
		t.Fatal("Expected log output, got empty string")
	}
	if testLogger.ContainsMessage("hidden debug") {
		t.Error("Debug message should not appear when level is Info")
	}
	for _, msg := range []string{"info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !testLogger.ContainsField(ErrAttrKey, "boom") {
		t.Error("leading error should be stored under the error key")
	}
	if !testLogger.ContainsField(TargetKey, "Severity") {
		t.Error("target field not found")
	}
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ComponentKey, "trainer",
		TargetKey, "Diagnosis",
	)
	contextLogger.Info("grid search finished", CandidatesKey, 72, AccuracyKey, 0.93)

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("Failed to parse log entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}

	expected := map[string]interface{}{
		ComponentKey:  "trainer",
		TargetKey:     "Diagnosis",
		CandidatesKey: 72.0,
		AccuracyKey:   0.93,
	}
	for key, want := range expected {
		if got := entries[0][key]; got != want {
			t.Errorf("Field %s: expected %v, got %v", key, want, got)
		}
	}
}

func TestZerologLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo, "json")

	logger.Debug("not emitted")
	logger.With(ComponentKey, "aligner").Info("patient aligned", FeaturesKey, 63)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["message"] != "patient aligned" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry[ComponentKey] != "aligner" {
		t.Errorf("component = %v", entry[ComponentKey])
	}
	if entry[FeaturesKey] != 63.0 {
		t.Errorf("features = %v", entry[FeaturesKey])
	}
}

func TestZerologLoggerErrorDetail(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug, "json")

	err := apperrors.NewMissingColumnsError("Align", []string{"Stool"})
	logger.Error("alignment failed", err)

	var entry map[string]interface{}
	if jerr := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); jerr != nil {
		t.Fatalf("invalid JSON: %v", jerr)
	}
	if !strings.Contains(fmt.Sprint(entry[ErrAttrKey]), "missing columns: Stool") {
		t.Errorf("error field = %v", entry[ErrAttrKey])
	}
	detail, ok := entry[ErrAttrKey+"_detail"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected structured error detail, got %v", entry)
	}
	if detail["type"] != "MissingColumnsError" {
		t.Errorf("detail type = %v", detail["type"])
	}
}

func TestZerologLoggerEnabled(t *testing.T) {
	logger := NewZerologLogger(&bytes.Buffer{}, LevelWarn, "json")
	ctx := context.Background()

	if logger.Enabled(ctx, LevelInfo) {
		t.Error("Info should be disabled at Warn level")
	}
	if !logger.Enabled(ctx, LevelError) {
		t.Error("Error should be enabled at Warn level")
	}
}

func TestSetupLoggerRejectsUnknownLevel(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)
	defer apperrors.SetZerologWarnFunc(nil)

	if err := SetupLogger("verbose", "json"); err == nil {
		t.Fatal("expected validation error for unknown level")
	}
	if err := SetupLogger("debug", "json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := GetLogger().(*ZerologLogger); !ok {
		t.Errorf("expected a *ZerologLogger, got %T", GetLogger())
	}
}
