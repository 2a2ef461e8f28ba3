package preprocessing

import (
	"fmt"
	"math"

	"github.com/uemura/appendicitis/core/model"
	"github.com/uemura/appendicitis/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// データを指定した範囲（デフォルト[0,1]）にスケーリングする
//
// 学習済みの状態はすべて公開フィールドに保持されるため、
// model.SaveModel でそのまま永続化できる。
type MinMaxScaler struct {
	State *model.StateManager

	// Scale は各特徴量のスケール (max - min、定数特徴量は1)
	Scale []float64

	// DataMin は学習データの最小値
	DataMin []float64

	// DataMax は学習データの最大値
	DataMax []float64

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64

	// FeatureNames は学習時の列名（列順）。FitNamed で設定される。
	FeatureNames []string
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
//
// パラメータ:
//   - featureRange: スケーリング後の範囲 [min, max] (デフォルト: [0, 1])
//
// 使用例:
//
//	scaler := preprocessing.NewMinMaxScaler([2]float64{0.0, 1.0})
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		State:        model.NewStateManager(),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit は訓練データから最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return errors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.FeatureRange)
	}
	if m.State == nil {
		m.State = model.NewStateManager()
	}

	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		lo := X.At(0, j)
		hi := lo
		for i := 1; i < r; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				return errors.NewValidationError("X", fmt.Sprintf("NaN in column %d row %d", j, i), v)
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if math.IsNaN(lo) {
			return errors.NewValidationError("X", fmt.Sprintf("NaN in column %d row 0", j), lo)
		}

		m.DataMin[j] = lo
		m.DataMax[j] = hi

		// 定数特徴量の場合、スケールを1に設定
		if dataRange := hi - lo; math.Abs(dataRange) < 1e-12 {
			m.Scale[j] = 1.0
		} else {
			m.Scale[j] = dataRange
		}
	}

	m.State.SetFitted(c, r)
	return nil
}

// FitNamed は列名付きで学習する。names の長さは X の列数と一致しなければならない。
func (m *MinMaxScaler) FitNamed(X mat.Matrix, names []string) error {
	_, c := X.Dims()
	if len(names) != c {
		return errors.NewDimensionError("MinMaxScaler.FitNamed", c, len(names), 1)
	}
	if err := m.Fit(X); err != nil {
		return err
	}
	m.FeatureNames = append([]string(nil), names...)
	return nil
}

// Transform は学習済みの統計情報を使ってデータをスケーリングする。
// 学習範囲外の値はクリップされない（scikit-learnのclip=Falseと同じ）。
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.requireFitted("Transform"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if err := m.State.RequireFeatures("MinMaxScaler.Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	featureRange := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			// X_scaled = (X - X.min) / (X.max - X.min) * (max - min) + min
			scaled := (X.At(i, j)-m.DataMin[j])/m.Scale[j]*featureRange + m.FeatureRange[0]
			result.Set(i, j, scaled)
		}
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// TransformRow は1行分の値をスケーリングする
func (m *MinMaxScaler) TransformRow(row []float64) ([]float64, error) {
	out, err := m.Transform(mat.NewDense(1, len(row), append([]float64(nil), row...)))
	if err != nil {
		return nil, err
	}
	return mat.Row(nil, 0, out), nil
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.requireFitted("InverseTransform"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if err := m.State.RequireFeatures("MinMaxScaler.InverseTransform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	featureRange := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			original := ((X.At(i, j)-m.FeatureRange[0])/featureRange)*m.Scale[j] + m.DataMin[j]
			result.Set(i, j, original)
		}
	}
	return result, nil
}

// IsFitted は学習済みかどうかを返す
func (m *MinMaxScaler) IsFitted() bool {
	return m.State != nil && m.State.IsFitted()
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
	}
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])",
			m.FeatureRange[0], m.FeatureRange[1])
	}
	nf, _ := m.State.GetDimensions()
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], nf)
}

func (m *MinMaxScaler) requireFitted(method string) error {
	if !m.IsFitted() {
		return errors.NewNotFittedError("MinMaxScaler", method)
	}
	return nil
}
