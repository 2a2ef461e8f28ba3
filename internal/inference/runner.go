package inference

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/uemura/appendicitis/internal/schema"
	"github.com/uemura/appendicitis/internal/store"
	"github.com/uemura/appendicitis/pkg/errors"
	"github.com/uemura/appendicitis/pkg/log"
)

// ModelLoader reads a persisted model bundle by name.
type ModelLoader interface {
	LoadBundle(name string) (*store.ModelBundle, error)
}

// Prediction is the outcome of one target.
type Prediction struct {
	Target      string
	Probability float64
	Label       string
}

// Result is a scored patient.
type Result struct {
	Record      schema.Record
	Predictions []Prediction
}

// Label returns the predicted label of a target column.
func (r *Result) Label(target string) string {
	for _, p := range r.Predictions {
		if p.Target == target {
			return p.Label
		}
	}
	return ""
}

// Row returns the results file header and values: the raw fields followed
// by one label per target.
func (r *Result) Row() (header, row []string) {
	header, row = r.Record.Fields()
	for _, p := range r.Predictions {
		header = append(header, p.Target)
		row = append(row, p.Label)
	}
	return header, row
}

// Runner scores patients with every target's model and records the results.
type Runner struct {
	models  ModelLoader
	results ResultsFile
	logger  log.Logger
}

// NewRunner returns a Runner reading models from models and appending to
// the CSV at resultsPath.
func NewRunner(models ModelLoader, resultsPath string) *Runner {
	return &Runner{
		models:  models,
		results: ResultsFile{Path: resultsPath},
		logger:  log.GetLogger().With(log.ComponentKey, "runner", log.PhaseKey, log.PhaseInference),
	}
}

// Infer validates and aligns a copy of the record, scores it against Diagnosis,
// Severity and Management in that order and appends the patient to the
// results file. A failure at any step aborts the patient: nothing is
// written and no partial result is returned.
func (r *Runner) Infer(ctx context.Context, c *Context, record schema.Record) (*Result, error) {
	started := time.Now()
	rec := record.Clone()
	if err := rec.Validate(); err != nil {
		r.logFailure("Record rejected", err)
		return nil, err
	}
	aligned, err := c.Align(rec)
	if err != nil {
		r.logFailure("Alignment failed", err)
		return nil, err
	}
	X := aligned.Matrix()

	res := &Result{Record: rec}
	for _, target := range schema.Targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bundle, err := r.models.LoadBundle(target.Name)
		if err != nil {
			r.logFailure("Model load failed", err, log.TargetKey, target.Column)
			return nil, err
		}
		if err := c.CheckBundle(bundle); err != nil {
			r.logFailure("Model rejected", err, log.TargetKey, target.Column)
			return nil, err
		}
		proba, err := bundle.Forest.PredictProba(X)
		if err != nil {
			r.logFailure("Prediction failed", err, log.TargetKey, target.Column)
			return nil, errors.Wrapf(err, "predict %s", target.Column)
		}
		if err := errors.CheckNumericalStability(log.OperationPredictProba, mat.Row(nil, 0, proba)); err != nil {
			r.logFailure("Prediction failed", err, log.TargetKey, target.Column)
			return nil, err
		}
		col, _ := positiveColumn(bundle)
		p := proba.At(0, col)
		label := target.Label(p)
		r.logger.Debug("Target scored",
			log.TargetKey, target.Column,
			log.OperationKey, log.OperationPredictProba,
			log.ConfidenceKey, p,
			log.ThresholdKey, schema.Threshold,
			log.LabelKey, label,
		)
		res.Predictions = append(res.Predictions, Prediction{Target: target.Column, Probability: p, Label: label})
	}

	header, row := res.Row()
	if err := r.results.Append(header, row); err != nil {
		r.logFailure("Results not written", err, log.PathKey, r.results.Path)
		return nil, err
	}
	r.logger.Info("Patient inferred",
		log.PathKey, r.results.Path,
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)
	return res, nil
}

func (r *Runner) logFailure(msg string, err error, fields ...any) {
	code := log.ErrorInvalidInput
	var (
		missing  *errors.MissingColumnsError
		mismatch *errors.SchemaMismatchError
		load     *errors.LoadError
	)
	switch {
	case errors.Is(err, errors.ErrScalerUnavailable):
		code = log.ErrorScalerUnavailable
	case errors.As(err, &missing):
		code = log.ErrorMissingColumns
	case errors.As(err, &mismatch):
		code = log.ErrorSchemaMismatch
	case errors.As(err, &load):
		code = log.ErrorLoadFailure
	}
	r.logger.Error(msg, append([]any{err, log.ErrorCodeKey, code}, fields...)...)
}
