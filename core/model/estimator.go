package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う（n_samples × 1 のクラスラベル）
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Classifier は確率を出力できる分類器のインターフェース
type Classifier interface {
	Fitter
	Predictor

	// PredictProba は各クラスの確率を返す（n_samples × n_classes）。
	// 列の順序は Classes() の順序に一致する。
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes は学習時に観測したクラスラベルを昇順で返す
	Classes() []float64
}

// ParamsAccessor はハイパーパラメータを取得・設定できるモデルのインターフェース
type ParamsAccessor interface {
	// GetParams はモデルのハイパーパラメータを取得する
	GetParams() map[string]interface{}

	// SetParams はモデルのハイパーパラメータを設定する
	SetParams(params map[string]interface{}) error
}
