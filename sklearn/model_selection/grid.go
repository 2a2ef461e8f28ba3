package model_selection

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/uemura/appendicitis/core/model"
	"github.com/uemura/appendicitis/core/parallel"
	"github.com/uemura/appendicitis/pkg/errors"
	"github.com/uemura/appendicitis/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Estimator is a classifier whose hyperparameters can be set by name.
type Estimator interface {
	model.Classifier
	model.ParamsAccessor
}

// EstimatorFactory returns a fresh, unfitted estimator.
type EstimatorFactory func() Estimator

// Params is one hyperparameter combination.
type Params map[string]interface{}

// String renders the parameters sorted by name.
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := p[k]
		if v == nil {
			v = "None"
		}
		parts[i] = fmt.Sprintf("%s=%v", k, v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ParamGrid maps parameter names to the values to try.
type ParamGrid map[string][]interface{}

// Candidates expands the grid into every combination. Keys are iterated
// in sorted order and the last key varies fastest.
func (g ParamGrid) Candidates() []Params {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []Params{{}}
	for _, k := range keys {
		values := g[k]
		next := make([]Params, 0, len(out)*len(values))
		for _, base := range out {
			for _, v := range values {
				p := make(Params, len(base)+1)
				for bk, bv := range base {
					p[bk] = bv
				}
				p[k] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out
}

// CandidateResult holds the cross-validation outcome of one candidate.
type CandidateResult struct {
	Params     Params
	FoldScores []float64
	MeanScore  float64
	StdScore   float64
	Rank       int
}

// GridSearchCV performs an exhaustive search over a ParamGrid, scoring every
// candidate with cross-validated accuracy and refitting the best one on the
// full data.
type GridSearchCV struct {
	Factory EstimatorFactory
	Grid    ParamGrid
	CV      Splitter
	// Scoring defaults to accuracy.
	Scoring Scorer
	// NJobs bounds the number of concurrently evaluated (candidate, fold)
	// pairs. Zero or negative means one per CPU.
	NJobs  int
	Refit  bool
	Logger log.Logger

	BestParams    Params
	BestScore     float64
	BestIndex     int
	BestEstimator Estimator
	Results       []CandidateResult
}

// NewGridSearchCV creates a grid search with refit enabled.
func NewGridSearchCV(factory EstimatorFactory, grid ParamGrid, cv Splitter) *GridSearchCV {
	return &GridSearchCV{
		Factory: factory,
		Grid:    grid,
		CV:      cv,
		Refit:   true,
	}
}

// Fit evaluates every candidate. The winner is the highest mean score;
// ties go to the candidate enumerated first.
func (g *GridSearchCV) Fit(X, y mat.Matrix) error {
	if g.Factory == nil || g.CV == nil {
		return errors.NewValueError("GridSearchCV.Fit", "estimator factory and splitter are required")
	}
	candidates := g.Grid.Candidates()
	if len(candidates) == 0 {
		return errors.NewValueError("GridSearchCV.Fit", "empty parameter grid")
	}
	folds, err := g.CV.Split(X, y)
	if err != nil {
		return err
	}
	scoring := g.Scoring
	if scoring == nil {
		scoring = AccuracyScorer
	}
	logger := g.Logger
	if logger == nil {
		logger = log.GetLogger()
	}

	logger.Info("Grid search started",
		log.OperationKey, log.OperationFit,
		log.CandidatesKey, len(candidates),
		log.FoldsKey, len(folds),
	)
	started := time.Now()

	// Split the data once; every task only reads it.
	type foldData struct{ xTrain, yTrain, xTest, yTest *mat.Dense }
	data := make([]foldData, len(folds))
	for f, fold := range folds {
		data[f] = foldData{
			xTrain: SelectRows(X, fold.TrainIndices),
			yTrain: SelectRows(y, fold.TrainIndices),
			xTest:  SelectRows(X, fold.TestIndices),
			yTest:  SelectRows(y, fold.TestIndices),
		}
	}

	nTasks := len(candidates) * len(folds)
	scores := make([]float64, nTasks)
	errs := make([]error, nTasks)
	parallel.ParallelizeWorkers(nTasks, g.NJobs, func(start, end int) {
		for t := start; t < end; t++ {
			c, f := t/len(folds), t%len(folds)
			scores[t], errs[t] = errors.SafeValue("GridSearchCV.evaluate", func() (float64, error) {
				est := g.Factory()
				if err := est.SetParams(candidates[c]); err != nil {
					return 0, err
				}
				if err := est.Fit(data[f].xTrain, data[f].yTrain); err != nil {
					return 0, err
				}
				return scoring(est, data[f].xTest, data[f].yTest)
			})
		}
	})

	g.Results = make([]CandidateResult, len(candidates))
	for c := range candidates {
		fs := make([]float64, len(folds))
		for f := range folds {
			t := c*len(folds) + f
			if errs[t] != nil {
				return errors.Wrapf(errs[t], "candidate %s fold %d", candidates[c], f)
			}
			fs[f] = scores[t]
		}
		mean, std := meanStd(fs)
		g.Results[c] = CandidateResult{Params: candidates[c], FoldScores: fs, MeanScore: mean, StdScore: std}
	}
	rankResults(g.Results)

	g.BestIndex = 0
	for c := range g.Results {
		if g.Results[c].MeanScore > g.Results[g.BestIndex].MeanScore {
			g.BestIndex = c
		}
	}
	g.BestParams = g.Results[g.BestIndex].Params
	g.BestScore = g.Results[g.BestIndex].MeanScore

	logger.Info("Grid search finished",
		log.OperationKey, log.OperationFit,
		log.AccuracyKey, g.BestScore,
		log.HyperParamsKey, g.BestParams.String(),
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)

	if !g.Refit {
		return nil
	}
	best := g.Factory()
	if err := best.SetParams(g.BestParams); err != nil {
		return err
	}
	if err := best.Fit(X, y); err != nil {
		return errors.Wrap(err, "refit of best candidate failed")
	}
	g.BestEstimator = best
	return nil
}

// rankResults assigns competition ranks (1 = best, ties share the lowest rank).
func rankResults(results []CandidateResult) {
	for i := range results {
		rank := 1
		for j := range results {
			if results[j].MeanScore > results[i].MeanScore {
				rank++
			}
		}
		results[i].Rank = rank
	}
}

func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(xs, nil)
}
