// Package metrics provides classification metrics with scikit-learn semantics.
package metrics

import (
	"sort"

	"github.com/uemura/appendicitis/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - 正解率）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// ConfusionMatrix は混同行列を計算する
//
// 戻り値:
//   - *mat.Dense: C[i][j] は真のクラスが labels[i]、予測が labels[j] のサンプル数
//   - []float64: yTrue と yPred に現れるラベル（昇順）
func ConfusionMatrix(yTrue, yPred *mat.VecDense) (*mat.Dense, []float64, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}

	labels := uniqueLabels(yTrue, yPred)
	index := make(map[float64]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		r, c := index[yTrue.AtVec(i)], index[yPred.AtVec(i)]
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return cm, labels, nil
}

// PrecisionMacro はクラスごとの適合率の単純平均を計算する
//
// 予測が一つもないクラスの適合率は0とし、UndefinedMetricWarning を発生させる。
func PrecisionMacro(yTrue, yPred *mat.VecDense) (float64, error) {
	scores, err := perClass("PrecisionMacro", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return mean(scores.precision), nil
}

// RecallMacro はクラスごとの再現率の単純平均を計算する
//
// 真のサンプルが一つもないクラスの再現率は0とし、UndefinedMetricWarning を発生させる。
func RecallMacro(yTrue, yPred *mat.VecDense) (float64, error) {
	scores, err := perClass("RecallMacro", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return mean(scores.recall), nil
}

// F1Macro はクラスごとのF1スコアの単純平均を計算する
func F1Macro(yTrue, yPred *mat.VecDense) (float64, error) {
	scores, err := perClass("F1Macro", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return mean(scores.f1), nil
}

// MatrixToVec は n×1 行列を VecDense に変換する
func MatrixToVec(m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError("MatrixToVec", "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError("MatrixToVec", "must be a column vector (n×1 matrix)")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

type classScores struct {
	precision []float64
	recall    []float64
	f1        []float64
}

func perClass(op string, yTrue, yPred *mat.VecDense) (*classScores, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	k := len(labels)
	s := &classScores{
		precision: make([]float64, k),
		recall:    make([]float64, k),
		f1:        make([]float64, k),
	}
	warnedPrecision, warnedRecall := false, false
	for c := 0; c < k; c++ {
		tp := cm.At(c, c)
		predicted := mat.Sum(cm.ColView(c))
		actual := mat.Sum(cm.RowView(c))

		if predicted > 0 {
			s.precision[c] = tp / predicted
		} else if !warnedPrecision {
			errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples for a label", 0))
			warnedPrecision = true
		}
		if actual > 0 {
			s.recall[c] = tp / actual
		} else if !warnedRecall {
			errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples for a label", 0))
			warnedRecall = true
		}
		if p, r := s.precision[c], s.recall[c]; p+r > 0 {
			s.f1[c] = 2 * p * r / (p + r)
		}
	}
	return s, nil
}

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func uniqueLabels(vs ...*mat.VecDense) []float64 {
	seen := make(map[float64]struct{})
	for _, v := range vs {
		for i := 0; i < v.Len(); i++ {
			seen[v.AtVec(i)] = struct{}{}
		}
	}
	labels := make([]float64, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Float64s(labels)
	return labels
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
