package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/uemura/appendicitis/core/model"
	"github.com/uemura/appendicitis/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Imputation strategies.
const (
	StrategyMean         = "mean"
	StrategyMedian       = "median"
	StrategyMostFrequent = "most_frequent"
)

// SimpleImputer は欠損値(NaN)を列ごとの統計量で補完する
type SimpleImputer struct {
	State *model.StateManager

	// Strategy は "mean", "median", "most_frequent" のいずれか
	Strategy string

	// Statistics は各列の補完値
	Statistics []float64
}

// NewSimpleImputer は新しいSimpleImputerを作成する
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{
		State:    model.NewStateManager(),
		Strategy: strategy,
	}
}

// Fit は各列の補完値を計算する。すべて欠損の列はエラー。
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	switch s.Strategy {
	case StrategyMean, StrategyMedian, StrategyMostFrequent:
	default:
		return errors.NewValidationError("strategy", "must be one of mean, median, most_frequent", s.Strategy)
	}
	if s.State == nil {
		s.State = model.NewStateManager()
	}

	s.Statistics = make([]float64, c)
	col := make([]float64, 0, r)
	for j := 0; j < c; j++ {
		col = col[:0]
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		if len(col) == 0 {
			return errors.NewValueError("SimpleImputer.Fit", fmt.Sprintf("column %d has no observed values", j))
		}
		switch s.Strategy {
		case StrategyMean:
			s.Statistics[j] = stat.Mean(col, nil)
		case StrategyMedian:
			s.Statistics[j] = Median(col)
		case StrategyMostFrequent:
			s.Statistics[j] = mostFrequentFloat(col)
		}
	}

	s.State.SetFitted(c, r)
	return nil
}

// Transform は欠損値を補完した新しい行列を返す
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if s.State == nil || !s.State.IsFitted() {
		return nil, errors.NewNotFittedError("SimpleImputer", "Transform")
	}
	r, c := X.Dims()
	if err := s.State.RequireFeatures("SimpleImputer.Transform", c); err != nil {
		return nil, err
	}

	out := mat.DenseCopyOf(X)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(out.At(i, j)) {
				out.Set(i, j, s.Statistics[j])
			}
		}
	}
	return out, nil
}

// FitTransform はFitとTransformを同時に実行する
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// Median は値の中央値を返す。要素数が偶数の場合は中央2値の平均。
// NaN は除外される。すべて NaN の場合は NaN を返す。
func Median(values []float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MostFrequent はカテゴリ値の最頻値を返す。
// 同数の場合は辞書順で最小の値（pandas の mode()[0] と同じ）。
// 空文字列は欠損として数えない。観測値がなければ ok=false。
func MostFrequent(values []string) (mode string, ok bool) {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	best := -1
	for v, n := range counts {
		if n > best || (n == best && v < mode) {
			mode, best = v, n
		}
	}
	return mode, best > 0
}

// mostFrequentFloat returns the smallest of the most common values.
func mostFrequentFloat(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	best, bestCount := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		if j-i > bestCount {
			best, bestCount = sorted[i], j-i
		}
		i = j
	}
	return best
}
