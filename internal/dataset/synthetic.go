package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/uemura/appendicitis/internal/schema"
)

// Synthetic generates a frame with every raw column of the registry
// (features, targets and the dropped columns) for smoke runs without the
// real dataset. Numeric values stay inside the validation ranges and shift
// with the diagnosis so that the targets are learnable. Roughly missingRate
// of the feature cells are left missing.
func Synthetic(rows int, seed int64, missingRate float64) *Frame {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)+1))
	f := NewFrame(rows)

	diagnosis := make([]string, rows)
	severity := make([]string, rows)
	management := make([]string, rows)
	sick := make([]bool, rows)
	for i := range diagnosis {
		sick[i] = rng.Float64() < 0.6
		switch {
		case !sick[i]:
			diagnosis[i], severity[i], management[i] = "no appendicitis", "uncomplicated", "conservative"
		default:
			diagnosis[i] = "appendicitis"
			severity[i] = pick(rng, 0.35, "complicated", "uncomplicated")
			if severity[i] == "complicated" {
				management[i] = pick(rng, 0.1, "conservative", "primary surgical")
			} else {
				management[i] = pick(rng, 0.55, "conservative", "primary surgical")
			}
		}
	}

	for _, col := range schema.NumericColumns {
		rule := schema.Rules[col]
		span := rule.Max - rule.Min
		values := make([]float64, rows)
		for i := range values {
			if rng.Float64() < missingRate {
				values[i] = math.NaN()
				continue
			}
			centre := 0.4
			if sick[i] {
				centre = 0.6
			}
			u := centre + 0.15*rng.NormFloat64()
			values[i] = math.Round((rule.Min+span*math.Min(math.Max(u, 0), 1))*10) / 10
		}
		_ = f.SetNumeric(col, values)
	}

	for _, col := range schema.CategoricalColumns {
		domain := schema.Domains[col]
		values := make([]string, rows)
		for i := range values {
			if rng.Float64() < missingRate {
				continue
			}
			k := rng.IntN(len(domain))
			// "yes"-like values come later in the vocabularies; skew sick rows towards them.
			if sick[i] && rng.Float64() < 0.5 {
				k = len(domain) - 1
			}
			values[i] = domain[k]
		}
		_ = f.SetCategorical(col, values)
	}

	for _, col := range schema.DroppedColumns {
		values := make([]string, rows)
		for i := range values {
			values[i] = pick(rng, 0.2, "yes", "no")
		}
		_ = f.SetCategorical(col, values)
	}

	_ = f.SetCategorical(schema.Diagnosis, diagnosis)
	_ = f.SetCategorical(schema.Severity, severity)
	_ = f.SetCategorical(schema.Management, management)
	return f
}

func pick(rng *rand.Rand, p float64, a, b string) string {
	if rng.Float64() < p {
		return a
	}
	return b
}
