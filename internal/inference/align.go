// Package inference scores a single patient against the persisted models.
//
// The training pipeline and the inference path share one contract: the
// feature vector of a patient must be laid out exactly like the training
// matrix. Context reconstructs that vector from a raw record using the
// persisted scaler, and rejects records or models that cannot honour it.
package inference

import (
	"gonum.org/v1/gonum/mat"

	"github.com/uemura/appendicitis/internal/schema"
	"github.com/uemura/appendicitis/internal/store"
	"github.com/uemura/appendicitis/pkg/errors"
	"github.com/uemura/appendicitis/pkg/log"
	"github.com/uemura/appendicitis/preprocessing"
)

// ScalerLoader reads the persisted scaler.
type ScalerLoader interface {
	LoadScaler() (*preprocessing.MinMaxScaler, error)
}

// Aligned is a patient's feature vector in expected feature order.
type Aligned struct {
	Names  []string
	Values []float64
}

// Matrix returns the vector as a 1 x n matrix.
func (a *Aligned) Matrix() *mat.Dense {
	return mat.NewDense(1, len(a.Values), append([]float64(nil), a.Values...))
}

// Context is the preprocessing state an inference run aligns records with.
// It is read-only after construction and safe for concurrent use.
type Context struct {
	scaler   *preprocessing.MinMaxScaler
	expected []string
	loadErr  error
	logger   log.Logger
}

// NewContext builds a context from a fitted scaler whose features are the
// numeric columns, and the expected feature list.
func NewContext(scaler *preprocessing.MinMaxScaler, expected []string) (*Context, error) {
	if scaler == nil || !scaler.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "NewContext")
	}
	if err := compareNames("scaler", schema.NumericColumns, scaler.FeatureNames); err != nil {
		return nil, err
	}
	if len(expected) == 0 {
		return nil, errors.NewValueError("NewContext", "empty expected feature list")
	}
	return &Context{
		scaler:   scaler,
		expected: append([]string(nil), expected...),
		logger:   log.GetLogger().With(log.ComponentKey, "aligner", log.PhaseKey, log.PhaseInference),
	}, nil
}

// LoadContext loads the persisted scaler. It never fails: when the scaler
// cannot be loaded the returned context rejects every record with
// ErrScalerUnavailable, and LoadErr reports why.
func LoadContext(loader ScalerLoader) *Context {
	logger := log.GetLogger().With(log.ComponentKey, "aligner", log.PhaseKey, log.PhaseInference)
	scaler, err := loader.LoadScaler()
	if err == nil {
		var c *Context
		if c, err = NewContext(scaler, schema.ExpectedFeatures()); err == nil {
			return c
		}
	}
	logger.Error("Scaler could not be loaded", err, log.ErrorCodeKey, log.ErrorScalerUnavailable)
	return &Context{loadErr: err, logger: logger}
}

// Available reports whether the context holds a scaler.
func (c *Context) Available() bool { return c.scaler != nil }

// LoadErr returns the error that made the scaler unavailable, if any.
func (c *Context) LoadErr() error { return c.loadErr }

// Expected returns a copy of the expected feature list.
func (c *Context) Expected() []string {
	return append([]string(nil), c.expected...)
}

// Align rebuilds the training feature vector of one record:
//
//  1. every categorical and numeric feature column must be present,
//     otherwise a MissingColumnsError names exactly the absent ones;
//  2. numeric values are scaled with the persisted scaler, never refitted;
//  3. categorical values are one-hot encoded from this row alone;
//  4. the columns are reindexed onto the expected list, absent ones set to
//     0 and unknown ones ignored.
//
// The record is not modified and the same record always yields the same
// vector.
func (c *Context) Align(record schema.Record) (*Aligned, error) {
	if c.scaler == nil {
		return nil, errors.WithStack(errors.ErrScalerUnavailable)
	}
	if missing := record.MissingCategorical(); len(missing) > 0 {
		return nil, errors.NewMissingColumnsError(log.OperationAlign, missing)
	}
	if missing := record.MissingNumeric(); len(missing) > 0 {
		return nil, errors.NewMissingColumnsError(log.OperationAlign, missing)
	}

	raw := make([]float64, len(c.scaler.FeatureNames))
	for j, col := range c.scaler.FeatureNames {
		raw[j] = record.Numeric[col]
	}
	scaled, err := c.scaler.TransformRow(raw)
	if err != nil {
		return nil, errors.Wrap(err, "scale record")
	}

	row := make([]string, len(schema.CategoricalColumns))
	for j, col := range schema.CategoricalColumns {
		row[j] = record.Categorical[col]
	}
	encoder := preprocessing.NewOneHotEncoder()
	dummies, err := encoder.FitTransform(schema.CategoricalColumns, [][]string{row})
	if err != nil {
		return nil, errors.Wrap(err, "encode record")
	}

	names := append(append([]string(nil), c.scaler.FeatureNames...), encoder.FeatureNames()...)
	values := append([]float64(nil), scaled...)
	if !dummies.IsEmpty() {
		values = append(values, dummies.RawRowView(0)...)
	}
	out, dropped, err := preprocessing.Reindex(mat.NewDense(1, len(values), values), names, c.expected)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		c.logger.Warn("Values outside the vocabulary were ignored", log.ColumnsKey, dropped)
	}
	if err := errors.CheckNumericalStability(log.OperationAlign, out.RawRowView(0)); err != nil {
		return nil, err
	}
	return &Aligned{
		Names:  c.Expected(),
		Values: append([]float64(nil), out.RawRowView(0)...),
	}, nil
}

// CheckBundle verifies that a model was trained on the expected feature
// vector and that its positive label is one of its classes.
func (c *Context) CheckBundle(b *store.ModelBundle) error {
	if err := compareNames("model "+b.Name, c.expected, b.FeatureNames); err != nil {
		return err
	}
	if b.PositiveLabel() == "" {
		return errors.NewValueError("CheckBundle", "model "+b.Name+" has no positive label")
	}
	if _, ok := positiveColumn(b); !ok {
		return errors.NewValueError("CheckBundle", "model "+b.Name+" never saw its positive class")
	}
	return nil
}

func compareNames(artifact string, expected, got []string) error {
	n := min(len(expected), len(got))
	for i := 0; i < n; i++ {
		if expected[i] != got[i] {
			return errors.NewSchemaMismatchError(artifact, i, expected[i], got[i])
		}
	}
	if len(expected) != len(got) {
		var e, g string
		if n < len(expected) {
			e = expected[n]
		}
		if n < len(got) {
			g = got[n]
		}
		return errors.NewSchemaMismatchError(artifact, n, e, g)
	}
	return nil
}

// positiveColumn returns the predict_proba column of the bundle's positive
// class.
func positiveColumn(b *store.ModelBundle) (int, bool) {
	for j, c := range b.Forest.Classes() {
		if int(c) == b.PositiveIndex {
			return j, true
		}
	}
	return 0, false
}
