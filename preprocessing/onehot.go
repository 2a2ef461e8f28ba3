package preprocessing

import (
	"sort"

	"github.com/uemura/appendicitis/core/model"
	"github.com/uemura/appendicitis/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// OneHotEncoder はカテゴリ列をダミー変数に展開するエンコーダー
//
// pandas.get_dummies と同じ規則に従う:
//   - カテゴリは学習データに現れた値のみ、辞書順に並べる
//   - 出力列名は "<列名>_<値>"
//   - 空文字列は欠損として扱い、どの列も立てない
//
// 学習時に存在しなかった値は Transform ですべて0の行になる。
type OneHotEncoder struct {
	State *model.StateManager

	// Columns は入力列名（列順）
	Columns []string

	// Categories は各入力列のカテゴリ（辞書順）
	Categories [][]string
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{State: model.NewStateManager()}
}

// Fit は各列のカテゴリを学習する
//
// パラメータ:
//   - columns: 入力列名
//   - rows: rows[i][j] が i 行目・j 列目の値
func (e *OneHotEncoder) Fit(columns []string, rows [][]string) error {
	if len(columns) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := checkRowWidths("OneHotEncoder.Fit", len(columns), rows); err != nil {
		return err
	}
	if e.State == nil {
		e.State = model.NewStateManager()
	}

	categories := make([][]string, len(columns))
	for j := range columns {
		seen := make(map[string]struct{})
		for _, row := range rows {
			if row[j] == "" {
				continue
			}
			seen[row[j]] = struct{}{}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		categories[j] = values
	}

	e.Columns = append([]string(nil), columns...)
	e.Categories = categories
	e.State.SetFitted(len(columns), len(rows))
	return nil
}

// Transform は学習済みカテゴリでダミー行列を作成する
func (e *OneHotEncoder) Transform(rows [][]string) (*mat.Dense, error) {
	if e.State == nil || !e.State.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if err := checkRowWidths("OneHotEncoder.Transform", len(e.Columns), rows); err != nil {
		return nil, err
	}

	offsets := make([]int, len(e.Categories))
	width := 0
	for j, cats := range e.Categories {
		offsets[j] = width
		width += len(cats)
	}
	if len(rows) == 0 || width == 0 {
		return &mat.Dense{}, nil
	}

	out := mat.NewDense(len(rows), width, nil)
	for i, row := range rows {
		for j, v := range row {
			k := sort.SearchStrings(e.Categories[j], v)
			if k < len(e.Categories[j]) && e.Categories[j][k] == v {
				out.Set(i, offsets[j]+k, 1)
			}
		}
	}
	return out, nil
}

// FitTransform はFitとTransformを同時に実行する
func (e *OneHotEncoder) FitTransform(columns []string, rows [][]string) (*mat.Dense, error) {
	if err := e.Fit(columns, rows); err != nil {
		return nil, err
	}
	return e.Transform(rows)
}

// FeatureNames は出力列名を Transform の列順で返す
func (e *OneHotEncoder) FeatureNames() []string {
	var names []string
	for j, col := range e.Columns {
		for _, v := range e.Categories[j] {
			names = append(names, DummyName(col, v))
		}
	}
	return names
}

// DummyName はダミー列名 "<列名>_<値>" を返す
func DummyName(column, value string) string {
	return column + "_" + value
}

func checkRowWidths(op string, width int, rows [][]string) error {
	for _, row := range rows {
		if len(row) != width {
			return errors.NewDimensionError(op, width, len(row), 1)
		}
	}
	return nil
}
