package preprocessing

import (
	"github.com/uemura/appendicitis/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Reindex は列名 names を持つ行列 X を target の列順に並べ替える
//
// pandas の DataFrame.reindex(columns=target, fill_value=0) と同じ規則:
//   - target にあって names にない列は0で埋める
//   - names にあって target にない列は捨て、dropped として返す
func Reindex(X mat.Matrix, names, target []string) (out *mat.Dense, dropped []string, err error) {
	r, c := X.Dims()
	if c != len(names) {
		return nil, nil, errors.NewDimensionError("Reindex", len(names), c, 1)
	}

	index := make(map[string]int, len(names))
	for j, name := range names {
		if _, dup := index[name]; dup {
			return nil, nil, errors.NewValueError("Reindex", "duplicate column "+name)
		}
		index[name] = j
	}
	wanted := make(map[string]struct{}, len(target))
	for _, name := range target {
		wanted[name] = struct{}{}
	}
	for _, name := range names {
		if _, ok := wanted[name]; !ok {
			dropped = append(dropped, name)
		}
	}

	if r == 0 || len(target) == 0 {
		return &mat.Dense{}, dropped, nil
	}
	out = mat.NewDense(r, len(target), nil)
	for k, name := range target {
		j, ok := index[name]
		if !ok {
			continue
		}
		for i := 0; i < r; i++ {
			out.Set(i, k, X.At(i, j))
		}
	}
	return out, dropped, nil
}
