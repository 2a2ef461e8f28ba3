package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/uemura/appendicitis/internal/schema"
	"github.com/uemura/appendicitis/internal/store"
	"github.com/uemura/appendicitis/metrics"
	"github.com/uemura/appendicitis/pkg/errors"
	"github.com/uemura/appendicitis/pkg/log"
	"github.com/uemura/appendicitis/sklearn/ensemble"
	"github.com/uemura/appendicitis/sklearn/model_selection"
)

// BundleSaver persists trained models.
type BundleSaver interface {
	SaveBundle(*store.ModelBundle) error
}

// DefaultGrid is the full hyperparameter grid (72 candidates).
func DefaultGrid() model_selection.ParamGrid {
	return model_selection.ParamGrid{
		"n_estimators":      {100, 200, 300},
		"max_depth":         {10, 20, nil},
		"min_samples_split": {2, 5},
		"min_samples_leaf":  {1, 2},
		"max_features":      {"sqrt", "log2"},
	}
}

// QuickGrid is a reduced grid for smoke runs.
func QuickGrid() model_selection.ParamGrid {
	return model_selection.ParamGrid{
		"n_estimators":      {20},
		"max_depth":         {10, nil},
		"min_samples_split": {2},
		"min_samples_leaf":  {1},
		"max_features":      {"sqrt"},
	}
}

// Trainer searches hyperparameters for one target, reports cross-validated
// diagnostics of the winner and persists it.
type Trainer struct {
	Grid        model_selection.ParamGrid
	SearchFolds int
	ReportFolds int
	RandomState int64
	NJobs       int

	store  BundleSaver
	logger log.Logger
}

// NewTrainer returns a Trainer with the default grid, 5 search folds and
// 10 report folds.
func NewTrainer(store BundleSaver) *Trainer {
	return &Trainer{
		Grid:        DefaultGrid(),
		SearchFolds: 5,
		ReportFolds: 10,
		RandomState: 42,
		store:       store,
		logger:      log.GetLogger().With(log.ComponentKey, "trainer", log.PhaseKey, log.PhaseTraining),
	}
}

// Outcome is the result of training one target.
type Outcome struct {
	Bundle      *store.ModelBundle
	Search      *model_selection.GridSearchCV
	Diagnostics *model_selection.CVResult
}

func (t *Trainer) factory(params model_selection.Params) model_selection.EstimatorFactory {
	return func() model_selection.Estimator {
		f := ensemble.NewRandomForestClassifier(
			ensemble.WithRandomState(t.RandomState),
			ensemble.WithNJobs(1),
		)
		// Train has checked every grid candidate; a rejection here is a bug.
		if err := f.SetParams(params); err != nil {
			panic(err)
		}
		return f
	}
}

// Train runs the grid search on the balanced data, refits the best candidate
// on every row, computes the diagnostics and saves the bundle.
func (t *Trainer) Train(ctx context.Context, data *Balanced, target schema.Target, runID string) (*Outcome, error) {
	if data.Target != target.Column {
		return nil, errors.NewValueError("Trainer.Train", fmt.Sprintf("data balanced for %s, not %s", data.Target, target.Column))
	}
	positive := -1
	for i, l := range data.Labels {
		if l == target.Positive {
			positive = i
		}
	}
	if positive < 0 {
		return nil, errors.WithHint(
			errors.NewValueError("Trainer.Train", fmt.Sprintf("positive label %q absent from %s", target.Positive, target.Column)),
			"check the target column values of the dataset",
		)
	}
	if err := t.checkGrid(); err != nil {
		return nil, err
	}
	logger := t.logger.With(log.TargetKey, target.Column, log.RunIDKey, runID)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	search := model_selection.NewGridSearchCV(
		t.factory(nil),
		t.Grid,
		model_selection.NewStratifiedKFold(t.SearchFolds, false, 0),
	)
	search.NJobs = t.NJobs
	search.Logger = logger
	if err := search.Fit(data.X, data.Y); err != nil {
		return nil, errors.Wrapf(err, "grid search for %s", target.Column)
	}
	forest, ok := search.BestEstimator.(*ensemble.RandomForestClassifier)
	if !ok {
		return nil, errors.Newf("grid search returned %T", search.BestEstimator)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cv, err := model_selection.CrossValidate(
		t.factory(search.BestParams),
		data.X, data.Y,
		model_selection.NewStratifiedKFold(t.ReportFolds, false, 0),
		model_selection.DiagnosticScorers,
		t.NJobs,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "cross-validation for %s", target.Column)
	}
	diagnostics := make(map[string]float64, len(cv.Scores))
	for _, name := range cv.Names() {
		diagnostics[name] = cv.Mean(name)
	}
	logger.Info("Cross-validation diagnostics",
		log.OperationKey, log.OperationScore,
		log.FoldsKey, t.ReportFolds,
		log.AccuracyKey, diagnostics["accuracy"],
		log.PrecisionKey, diagnostics["precision_macro"],
		log.RecallKey, diagnostics["recall_macro"],
		log.F1Key, diagnostics["f1_macro"],
	)

	confusion, oofError, err := t.outOfFold(search.BestParams, data)
	if err != nil {
		return nil, errors.Wrapf(err, "out-of-fold predictions for %s", target.Column)
	}
	logger.Info("Out-of-fold confusion matrix",
		log.OperationKey, log.OperationScore,
		"confusion", confusion,
		"error_rate", oofError,
	)

	bundle := &store.ModelBundle{
		Name:          target.Name,
		Target:        target.Column,
		Forest:        forest,
		FeatureNames:  append([]string(nil), data.Features...),
		ClassLabels:   append([]string(nil), data.Labels...),
		PositiveIndex: positive,
		BestParams:    renderParams(search.BestParams),
		BestScore:     search.BestScore,
		Diagnostics:   diagnostics,
		Confusion:     confusion,
		OOFError:      oofError,
		Samples:       data.Len(),
		RunID:         runID,
		Created:       time.Now().UTC(),
	}
	if err := t.store.SaveBundle(bundle); err != nil {
		return nil, err
	}
	return &Outcome{Bundle: bundle, Search: search, Diagnostics: cv}, nil
}

// outOfFold cross-predicts every row with the winning parameters and
// returns the confusion matrix over all labels plus the misclassification
// rate.
func (t *Trainer) outOfFold(params model_selection.Params, data *Balanced) ([][]int, float64, error) {
	pred, err := model_selection.CrossValPredict(
		t.factory(params),
		data.X, data.Y,
		model_selection.NewStratifiedKFold(t.ReportFolds, false, 0),
		t.NJobs,
	)
	if err != nil {
		return nil, 0, err
	}
	yTrue, err := metrics.MatrixToVec(data.Y)
	if err != nil {
		return nil, 0, err
	}
	errRate, err := metrics.ClassificationError(yTrue, pred)
	if err != nil {
		return nil, 0, err
	}
	cm, present, err := metrics.ConfusionMatrix(yTrue, pred)
	if err != nil {
		return nil, 0, err
	}

	// Spread over every label so absent classes keep their row and column.
	full := make([][]int, len(data.Labels))
	for i := range full {
		full[i] = make([]int, len(data.Labels))
	}
	for i, ti := range present {
		for j, pj := range present {
			full[int(ti)][int(pj)] = int(cm.At(i, j))
		}
	}
	return full, errRate, nil
}

// checkGrid rejects candidates the forest cannot take before any fit runs.
func (t *Trainer) checkGrid() error {
	forest := ensemble.NewRandomForestClassifier()
	for _, c := range t.Grid.Candidates() {
		if err := forest.SetParams(c); err != nil {
			return errors.Wrapf(err, "grid candidate %s", c)
		}
	}
	return nil
}

func renderParams(p model_selection.Params) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		if v == nil {
			out[k] = "None"
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
