package model_selection

import (
	"fmt"
	"sort"

	"github.com/uemura/appendicitis/core/model"
	"github.com/uemura/appendicitis/core/parallel"
	"github.com/uemura/appendicitis/metrics"
	"github.com/uemura/appendicitis/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Scorer evaluates a fitted estimator on held-out data. Higher is better.
type Scorer func(est model.Predictor, X, y mat.Matrix) (float64, error)

// metricScorer adapts a metrics function to a Scorer.
func metricScorer(metric func(yTrue, yPred *mat.VecDense) (float64, error)) Scorer {
	return func(est model.Predictor, X, y mat.Matrix) (float64, error) {
		pred, err := est.Predict(X)
		if err != nil {
			return 0, err
		}
		yTrue, err := metrics.MatrixToVec(y)
		if err != nil {
			return 0, err
		}
		yPred, err := metrics.MatrixToVec(pred)
		if err != nil {
			return 0, err
		}
		return metric(yTrue, yPred)
	}
}

// Built-in scorers, named as in scikit-learn.
var (
	AccuracyScorer       = metricScorer(metrics.Accuracy)
	PrecisionMacroScorer = metricScorer(metrics.PrecisionMacro)
	RecallMacroScorer    = metricScorer(metrics.RecallMacro)
	F1MacroScorer        = metricScorer(metrics.F1Macro)

	// DiagnosticScorers are the metrics reported after training.
	DiagnosticScorers = map[string]Scorer{
		"accuracy":        AccuracyScorer,
		"precision_macro": PrecisionMacroScorer,
		"recall_macro":    RecallMacroScorer,
		"f1_macro":        F1MacroScorer,
	}
)

// CVResult holds per-fold test scores keyed by scorer name.
type CVResult struct {
	Scores map[string][]float64
}

// Mean returns the mean test score of the named scorer.
func (r *CVResult) Mean(name string) float64 {
	m, _ := meanStd(r.Scores[name])
	return m
}

// Names returns the scorer names in sorted order.
func (r *CVResult) Names() []string {
	names := make([]string, 0, len(r.Scores))
	for n := range r.Scores {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CrossValidate fits a fresh estimator per fold and evaluates every scorer
// on the fold's test rows. Folds run in parallel with at most nJobs workers.
func CrossValidate(factory EstimatorFactory, X, y mat.Matrix, cv Splitter, scorers map[string]Scorer, nJobs int) (*CVResult, error) {
	if factory == nil || cv == nil || len(scorers) == 0 {
		return nil, errors.NewValueError("CrossValidate", "estimator factory, splitter and scorers are required")
	}
	folds, err := cv.Split(X, y)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(scorers))
	for n := range scorers {
		names = append(names, n)
	}
	sort.Strings(names)

	perFold := make([][]float64, len(folds))
	errs := make([]error, len(folds))
	parallel.ParallelizeWorkers(len(folds), nJobs, func(start, end int) {
		for f := start; f < end; f++ {
			errs[f] = errors.SafeExecute("CrossValidate.fold", func() error {
				fold := folds[f]
				est := factory()
				if err := est.Fit(SelectRows(X, fold.TrainIndices), SelectRows(y, fold.TrainIndices)); err != nil {
					return err
				}
				xTest, yTest := SelectRows(X, fold.TestIndices), SelectRows(y, fold.TestIndices)
				perFold[f] = make([]float64, len(names))
				for k, n := range names {
					s, err := scorers[n](est, xTest, yTest)
					if err != nil {
						return errors.Wrapf(err, "scorer %s", n)
					}
					perFold[f][k] = s
				}
				return nil
			})
		}
	})

	res := &CVResult{Scores: make(map[string][]float64, len(names))}
	for f := range folds {
		if errs[f] != nil {
			return nil, errors.Wrapf(errs[f], "fold %d", f)
		}
		for k, n := range names {
			res.Scores[n] = append(res.Scores[n], perFold[f][k])
		}
	}
	return res, nil
}

// CrossValPredict returns, for every row, the prediction of the estimator
// fitted on the folds that do not contain it. The splitter must place each
// row in exactly one test fold.
func CrossValPredict(factory EstimatorFactory, X, y mat.Matrix, cv Splitter, nJobs int) (*mat.VecDense, error) {
	if factory == nil || cv == nil {
		return nil, errors.NewValueError("CrossValPredict", "estimator factory and splitter are required")
	}
	folds, err := cv.Split(X, y)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	seen := make([]int, n)
	for _, fold := range folds {
		for _, i := range fold.TestIndices {
			seen[i]++
		}
	}
	for i, c := range seen {
		if c != 1 {
			return nil, errors.NewValueError("CrossValPredict", fmt.Sprintf("row %d is in %d test folds", i, c))
		}
	}

	out := make([]float64, n)
	errs := make([]error, len(folds))
	parallel.ParallelizeWorkers(len(folds), nJobs, func(start, end int) {
		for f := start; f < end; f++ {
			errs[f] = errors.SafeExecute("CrossValPredict.fold", func() error {
				fold := folds[f]
				est := factory()
				if err := est.Fit(SelectRows(X, fold.TrainIndices), SelectRows(y, fold.TrainIndices)); err != nil {
					return err
				}
				pred, err := est.Predict(SelectRows(X, fold.TestIndices))
				if err != nil {
					return err
				}
				for k, i := range fold.TestIndices {
					out[i] = pred.At(k, 0)
				}
				return nil
			})
		}
	})
	for f := range folds {
		if errs[f] != nil {
			return nil, errors.Wrapf(errs[f], "fold %d", f)
		}
	}
	return mat.NewVecDense(n, out), nil
}
