package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/uemura/appendicitis/pkg/errors"
)

// Kind distinguishes numeric from categorical rules.
type Kind int

const (
	KindNumeric Kind = iota
	KindCategorical
)

// Rule validates one input field.
type Rule struct {
	Column string
	Kind   Kind

	// Min and Max bound numeric values, inclusive.
	Min, Max float64

	// Values is the categorical vocabulary.
	Values []string
	// Aliases maps lower-cased input spellings to vocabulary values.
	Aliases map[string]string
	// Hint is shown next to the prompt, e.g. "M/F".
	Hint string
}

// CheckNumeric validates a numeric value against the inclusive range.
func (r Rule) CheckNumeric(v float64) error {
	if math.IsNaN(v) || v < r.Min || v > r.Max {
		return errors.NewValidationError(r.Column,
			fmt.Sprintf("must be between %s and %s", FormatNumber(r.Min), FormatNumber(r.Max)), v)
	}
	return nil
}

// ParseNumeric parses and validates a numeric answer.
func (r Rule) ParseNumeric(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, errors.NewValidationError(r.Column, "not a valid number", raw)
	}
	return v, r.CheckNumeric(v)
}

// Normalize maps a categorical answer onto the vocabulary. Matching is
// case-insensitive and ignores surrounding spaces.
func (r Rule) Normalize(raw string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := r.Aliases[v]; ok {
		v = alias
	}
	for _, allowed := range r.Values {
		if v == allowed {
			return v, nil
		}
	}
	return "", errors.NewValidationError(r.Column,
		fmt.Sprintf("must be one of %s", strings.Join(r.Values, "/")), raw)
}

// Prompt returns the text shown when asking for the field.
func (r Rule) Prompt() string {
	if r.Kind == KindNumeric {
		return fmt.Sprintf("%s [%s-%s]: ", r.Column, FormatNumber(r.Min), FormatNumber(r.Max))
	}
	return fmt.Sprintf("%s (%s): ", r.Column, r.Hint)
}

func numeric(col string, lo, hi float64) Rule {
	return Rule{Column: col, Kind: KindNumeric, Min: lo, Max: hi}
}

func categorical(col string) Rule {
	values := Domains[col]
	return Rule{Column: col, Kind: KindCategorical, Values: values, Hint: strings.Join(values, "/")}
}

// Rules maps every feature column to its validation rule.
var Rules = func() map[string]Rule {
	rules := map[string]Rule{
		"Age":                           numeric("Age", 0, 18),
		"BMI":                           numeric("BMI", 10, 40),
		"Height":                        numeric("Height", 50, 200),
		"Weight":                        numeric("Weight", 5, 100),
		"Length_of_Stay":                numeric("Length_of_Stay", 0, 30),
		"Alvarado_Score":                numeric("Alvarado_Score", 0, 10),
		"Paedriatic_Appendicitis_Score": numeric("Paedriatic_Appendicitis_Score", 0, 10),
		"Appendix_Diameter":             numeric("Appendix_Diameter", 0, 20),
		"Body_Temperature":              numeric("Body_Temperature", 35, 42),
		"WBC_Count":                     numeric("WBC_Count", 1000, 50000),
		"Neutrophil_Percentage":         numeric("Neutrophil_Percentage", 0, 100),
		"RBC_Count":                     numeric("RBC_Count", 1, 10),
		"Hemoglobin":                    numeric("Hemoglobin", 5, 20),
		"RDW":                           numeric("RDW", 10, 20),
		"Thrombocyte_Count":             numeric("Thrombocyte_Count", 50000, 500000),
		"CRP":                           numeric("CRP", 0, 200),
	}
	for _, col := range CategoricalColumns {
		rules[col] = categorical(col)
	}
	sex := rules["Sex"]
	sex.Aliases = map[string]string{"f": "female", "m": "male"}
	sex.Hint = "M/F"
	rules["Sex"] = sex
	return rules
}()

// Validate checks a complete record: every feature column present, numeric
// values in range, categorical values in their vocabulary. Categorical
// values are normalised in place.
func (r Record) Validate() error {
	missing := append(r.MissingNumeric(), r.MissingCategorical()...)
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.NewMissingColumnsError("validate", missing)
	}
	for _, col := range NumericColumns {
		if err := Rules[col].CheckNumeric(r.Numeric[col]); err != nil {
			return err
		}
	}
	for _, col := range CategoricalColumns {
		v, err := Rules[col].Normalize(r.Categorical[col])
		if err != nil {
			return err
		}
		r.Categorical[col] = v
	}
	return nil
}

// FormatNumber renders a float without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
