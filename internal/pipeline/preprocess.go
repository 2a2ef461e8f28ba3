// Package pipeline turns the raw dataset into one persisted model per
// target: cleaning, normalisation, class balancing, hyperparameter search
// and cross-validated diagnostics.
package pipeline

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/uemura/appendicitis/internal/dataset"
	"github.com/uemura/appendicitis/internal/schema"
	"github.com/uemura/appendicitis/pkg/errors"
	"github.com/uemura/appendicitis/pkg/log"
	"github.com/uemura/appendicitis/preprocessing"
)

// ScalerSaver persists the scaler fitted during normalisation.
type ScalerSaver interface {
	SaveScaler(*preprocessing.MinMaxScaler) error
}

// Encoded is the normalised training table: the feature matrix in expected
// feature order plus the untouched target columns.
type Encoded struct {
	Features []string
	X        *mat.Dense
	Targets  map[string][]string
}

// Len returns the number of rows.
func (e *Encoded) Len() int {
	if e.X == nil || e.X.IsEmpty() {
		return 0
	}
	r, _ := e.X.Dims()
	return r
}

// Subset returns the rows for which keep is true.
func (e *Encoded) Subset(keep func(row int) bool) *Encoded {
	var indices []int
	for i := 0; i < e.Len(); i++ {
		if keep(i) {
			indices = append(indices, i)
		}
	}
	out := &Encoded{
		Features: append([]string(nil), e.Features...),
		Targets:  make(map[string][]string, len(e.Targets)),
		X:        &mat.Dense{},
	}
	if len(indices) > 0 {
		out.X = mat.NewDense(len(indices), len(e.Features), nil)
		for k, i := range indices {
			out.X.SetRow(k, e.X.RawRowView(i))
		}
	}
	for name, values := range e.Targets {
		picked := make([]string, len(indices))
		for k, i := range indices {
			picked[k] = values[i]
		}
		out.Targets[name] = picked
	}
	return out
}

// Preprocessor cleans and normalises the raw dataset.
type Preprocessor struct {
	store  ScalerSaver
	logger log.Logger
}

// NewPreprocessor returns a Preprocessor persisting its scaler to store.
func NewPreprocessor(store ScalerSaver) *Preprocessor {
	return &Preprocessor{
		store:  store,
		logger: log.GetLogger().With(log.ComponentKey, "preprocessor", log.PhaseKey, log.PhasePreprocessing),
	}
}

// Clean drops the irrelevant columns and imputes missing cells: the mode for
// categorical and target columns, the median for numeric columns. The input
// frame is not modified.
func (p *Preprocessor) Clean(raw *dataset.Frame) (*dataset.Frame, error) {
	f, err := raw.Drop(schema.DroppedColumns...)
	if err != nil {
		return nil, err
	}
	required := append(append(append([]string(nil), schema.NumericColumns...), schema.CategoricalColumns...), schema.TargetColumns...)
	if err := f.Require("Preprocessor.Clean", required...); err != nil {
		return nil, err
	}

	if err := p.imputeNumeric(f); err != nil {
		return nil, err
	}

	for _, col := range append(append([]string(nil), schema.CategoricalColumns...), schema.TargetColumns...) {
		values, ok := f.Categorical(col)
		if !ok {
			return nil, errors.NewValueError("Preprocessor.Clean", "column "+col+" is not categorical")
		}
		mode, ok := preprocessing.MostFrequent(values)
		if !ok {
			return nil, errors.NewValueError("Preprocessor.Clean", "column "+col+" has no values")
		}
		filled := 0
		for i, v := range values {
			if v == "" {
				values[i] = mode
				filled++
			}
		}
		if filled > 0 {
			p.logger.Debug("Imputed categorical column", log.ColumnsKey, col, log.SamplesKey, filled)
		}
	}

	p.logger.Info("Dataset cleaned", log.SamplesKey, f.Len(), log.FeaturesKey, len(f.Columns()))
	return f, nil
}

// imputeNumeric fills NaN cells of the numeric block with the column medians
// of a SimpleImputer fitted on the frame.
func (p *Preprocessor) imputeNumeric(f *dataset.Frame) error {
	n := f.Len()
	if n == 0 {
		return errors.NewValueError("Preprocessor.Clean", "dataset has no rows")
	}
	block := mat.NewDense(n, len(schema.NumericColumns), nil)
	missing := make([]int, len(schema.NumericColumns))
	for j, col := range schema.NumericColumns {
		values, ok := f.Numeric(col)
		if !ok {
			return errors.NewValueError("Preprocessor.Clean", "column "+col+" is not numeric")
		}
		for i, v := range values {
			if math.IsNaN(v) {
				missing[j]++
			}
			block.Set(i, j, v)
		}
		if missing[j] == n {
			return errors.NewValueError("Preprocessor.Clean", "column "+col+" has no values")
		}
	}

	imputer := preprocessing.NewSimpleImputer(preprocessing.StrategyMedian)
	filled, err := imputer.FitTransform(block)
	if err != nil {
		return errors.Wrap(err, "impute numeric columns")
	}
	for j, col := range schema.NumericColumns {
		if err := f.SetNumeric(col, mat.Col(nil, j, filled)); err != nil {
			return err
		}
		if missing[j] > 0 {
			p.logger.Debug("Imputed numeric column",
				log.ColumnsKey, col,
				log.SamplesKey, missing[j],
				"median", imputer.Statistics[j],
			)
		}
	}
	return nil
}

// Normalize fits a new min-max scaler on the numeric columns, one-hot
// encodes the categorical columns and lays the result out in the expected
// feature order. Targets are carried over unchanged. The fitted scaler
// overwrites the persisted one.
func (p *Preprocessor) Normalize(clean *dataset.Frame) (*Encoded, error) {
	if err := clean.Require("Preprocessor.Normalize", schema.NumericColumns...); err != nil {
		return nil, err
	}
	if err := clean.Require("Preprocessor.Normalize", schema.CategoricalColumns...); err != nil {
		return nil, err
	}
	if err := clean.Require("Preprocessor.Normalize", schema.TargetColumns...); err != nil {
		return nil, err
	}
	n := clean.Len()
	if n == 0 {
		return nil, errors.NewModelError("Preprocessor.Normalize", "empty data", errors.ErrEmptyData)
	}

	numeric := mat.NewDense(n, len(schema.NumericColumns), nil)
	for j, col := range schema.NumericColumns {
		values, ok := clean.Numeric(col)
		if !ok {
			return nil, errors.NewValueError("Preprocessor.Normalize", "column "+col+" is not numeric")
		}
		numeric.SetCol(j, values)
	}
	scaler := preprocessing.NewMinMaxScalerDefault()
	if err := scaler.FitNamed(numeric, schema.NumericColumns); err != nil {
		return nil, errors.Wrap(err, "fit scaler")
	}
	scaled, err := scaler.Transform(numeric)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, n)
	for i := range rows {
		rows[i] = make([]string, len(schema.CategoricalColumns))
	}
	for j, col := range schema.CategoricalColumns {
		values, ok := clean.Categorical(col)
		if !ok {
			return nil, errors.NewValueError("Preprocessor.Normalize", "column "+col+" is not categorical")
		}
		for i, v := range values {
			rows[i][j] = v
		}
	}
	encoder := preprocessing.NewOneHotEncoder()
	dummies, err := encoder.FitTransform(schema.CategoricalColumns, rows)
	if err != nil {
		return nil, errors.Wrap(err, "one-hot encode")
	}

	names := append(append([]string(nil), schema.NumericColumns...), encoder.FeatureNames()...)
	var combined mat.Dense
	if dummies.IsEmpty() {
		combined.CloneFrom(scaled)
	} else {
		combined.Augment(scaled, dummies)
	}
	expected := schema.ExpectedFeatures()
	X, dropped, err := preprocessing.Reindex(&combined, names, expected)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		sort.Strings(dropped)
		p.logger.Warn("Categories outside the vocabulary were ignored", log.ColumnsKey, dropped)
	}

	targets := make(map[string][]string, len(schema.TargetColumns))
	for _, col := range schema.TargetColumns {
		values, _ := clean.Categorical(col)
		targets[col] = append([]string(nil), values...)
	}

	if err := p.store.SaveScaler(scaler); err != nil {
		return nil, errors.Wrap(err, "persist scaler")
	}
	p.logger.Info("Dataset normalised",
		log.OperationKey, log.OperationFitTransform,
		log.SamplesKey, n,
		log.FeaturesKey, len(expected),
	)
	return &Encoded{Features: expected, X: X, Targets: targets}, nil
}
