// Package schema is the registry shared by training and inference: the
// column lists, the categorical vocabularies, the target definitions and
// the expected feature vector every trained model consumes.
package schema

import (
	"sort"
)

// Target column names.
const (
	Diagnosis  = "Diagnosis"
	Severity   = "Severity"
	Management = "Management"
)

// Threshold is the decision threshold applied to a positive-class probability.
const Threshold = 0.5

// NumericColumns lists the numeric features in feature-vector order.
var NumericColumns = []string{
	"Age", "BMI", "Height", "Weight", "Length_of_Stay", "Alvarado_Score",
	"Paedriatic_Appendicitis_Score", "Appendix_Diameter", "Body_Temperature",
	"WBC_Count", "Neutrophil_Percentage", "RBC_Count", "Hemoglobin", "RDW",
	"Thrombocyte_Count", "CRP",
}

// CategoricalColumns lists the categorical features in feature-vector order.
var CategoricalColumns = []string{
	"Sex", "Appendix_on_US", "Migratory_Pain", "Lower_Right_Abd_Pain",
	"Contralateral_Rebound_Tenderness", "Coughing_Pain", "Nausea",
	"Loss_of_Appetite", "Neutrophilia", "Ketones_in_Urine", "RBC_in_Urine",
	"WBC_in_Urine", "Dysuria", "Stool", "Peritonitis", "Psoas_Sign",
	"Ipsilateral_Rebound_Tenderness", "US_Performed", "Free_Fluids",
}

// TargetColumns lists the three prediction targets.
var TargetColumns = []string{Diagnosis, Severity, Management}

// DroppedColumns are removed from the raw dataset before any processing.
var DroppedColumns = []string{
	"Segmented_Neutrophils", "Appendix_Wall_Layers", "Target_Sign", "Appendicolith",
	"Perfusion", "Perforation", "Surrounding_Tissue_Reaction", "Appendicular_Abscess",
	"Abscess_Location", "Pathological_Lymph_Nodes", "Lymph_Nodes_Location",
	"Bowel_Wall_Thickening", "Conglomerate_of_Bowel_Loops", "Ileus", "Coprostasis",
	"Meteorism", "Enteritis", "Gynecological_Findings",
}

var (
	yesNo      = []string{"no", "yes"}
	urineGrade = []string{"no", "+", "++", "+++"}
)

// Domains maps every categorical feature to its accepted values.
var Domains = map[string][]string{
	"Sex":                              {"female", "male"},
	"Appendix_on_US":                   yesNo,
	"Migratory_Pain":                   yesNo,
	"Lower_Right_Abd_Pain":             yesNo,
	"Contralateral_Rebound_Tenderness": yesNo,
	"Coughing_Pain":                    yesNo,
	"Nausea":                           yesNo,
	"Loss_of_Appetite":                 yesNo,
	"Neutrophilia":                     yesNo,
	"Ketones_in_Urine":                 urineGrade,
	"RBC_in_Urine":                     urineGrade,
	"WBC_in_Urine":                     urineGrade,
	"Dysuria":                          yesNo,
	"Stool":                            {"normal", "constipation", "diarrhea", "constipation, diarrhea"},
	"Peritonitis":                      {"no", "local", "generalized"},
	"Psoas_Sign":                       yesNo,
	"Ipsilateral_Rebound_Tenderness":   yesNo,
	"US_Performed":                     yesNo,
	"Free_Fluids":                      yesNo,
}

// Target describes one prediction target and how its probability is labelled.
type Target struct {
	// Column is the dataset column, e.g. "Diagnosis".
	Column string
	// Name keys the persisted model: modelo_<Name>.
	Name string
	// Positive is the label reported when its probability exceeds Threshold.
	Positive string
	Negative string
	// AppendicitisOnly restricts training to rows diagnosed with appendicitis.
	AppendicitisOnly bool
}

// Label maps a positive-class probability to the target's label.
func (t Target) Label(p float64) string {
	if p > Threshold {
		return t.Positive
	}
	return t.Negative
}

// Targets lists the targets in training and inference order.
var Targets = []Target{
	{Column: Diagnosis, Name: "diagnosis", Positive: "appendicitis", Negative: "no appendicitis"},
	{Column: Severity, Name: "severity", Positive: "complicated", Negative: "uncomplicated", AppendicitisOnly: true},
	{Column: Management, Name: "management", Positive: "conservative", Negative: "primary surgical", AppendicitisOnly: true},
}

// TargetByColumn returns the target definition for a target column.
func TargetByColumn(column string) (Target, bool) {
	for _, t := range Targets {
		if t.Column == column {
			return t, true
		}
	}
	return Target{}, false
}

// DummyColumn returns the one-hot column name of a categorical value.
func DummyColumn(column, value string) string {
	return column + "_" + value
}

// ExpectedFeatures returns the feature vector every model is trained on:
// the numeric columns followed by the one-hot columns of every categorical
// column, values in lexical order. A fresh slice is returned on every call.
func ExpectedFeatures() []string {
	names := append([]string(nil), NumericColumns...)
	for _, col := range CategoricalColumns {
		values := append([]string(nil), Domains[col]...)
		sort.Strings(values)
		for _, v := range values {
			names = append(names, DummyColumn(col, v))
		}
	}
	return names
}

// IsTarget reports whether column is one of the target columns.
func IsTarget(column string) bool {
	for _, t := range TargetColumns {
		if t == column {
			return true
		}
	}
	return false
}
