package schema

import (
	"sort"
)

// Record is one patient's raw attributes.
type Record struct {
	Numeric     map[string]float64
	Categorical map[string]string
}

// NewRecord returns an empty record.
func NewRecord() Record {
	return Record{
		Numeric:     make(map[string]float64),
		Categorical: make(map[string]string),
	}
}

// MissingCategorical returns the categorical feature columns absent from
// the record, sorted.
func (r Record) MissingCategorical() []string {
	var missing []string
	for _, col := range CategoricalColumns {
		if _, ok := r.Categorical[col]; !ok {
			missing = append(missing, col)
		}
	}
	sort.Strings(missing)
	return missing
}

// MissingNumeric returns the numeric feature columns absent from the
// record, sorted.
func (r Record) MissingNumeric() []string {
	var missing []string
	for _, col := range NumericColumns {
		if _, ok := r.Numeric[col]; !ok {
			missing = append(missing, col)
		}
	}
	sort.Strings(missing)
	return missing
}

// Fields returns the raw values keyed by column: numeric columns first,
// then categorical, each in registry order. Extra keys are ignored.
func (r Record) Fields() (names []string, values []string) {
	for _, col := range NumericColumns {
		if v, ok := r.Numeric[col]; ok {
			names = append(names, col)
			values = append(values, FormatNumber(v))
		}
	}
	for _, col := range CategoricalColumns {
		if v, ok := r.Categorical[col]; ok {
			names = append(names, col)
			values = append(values, v)
		}
	}
	return names, values
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := NewRecord()
	for k, v := range r.Numeric {
		out.Numeric[k] = v
	}
	for k, v := range r.Categorical {
		out.Categorical[k] = v
	}
	return out
}
