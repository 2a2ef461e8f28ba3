// Package log defines standard attribute keys for pipeline operations.
//
// Keys follow a dotted hierarchical convention ("ml.operation",
// "data.samples") so that training and inference logs can be filtered the
// same way regardless of which component emitted them.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestClassifier", "MinMaxScaler".
	ModelNameKey = "model.name"

	// ModelFileKey is the artifact file a model or scaler was read from or written to.
	ModelFileKey = "model.file"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict_proba", "transform", "align", "balance"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is performing the operation.
	// Examples: "preprocessor", "balancer", "trainer", "aligner", "runner"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the pipeline: "training" or "inference".
	PhaseKey = "ml.phase"

	// TargetKey names the target column a model predicts (Diagnosis, Severity, Management).
	TargetKey = "ml.target"

	// RunIDKey identifies one training run; every artifact of the run carries it.
	RunIDKey = "ml.run_id"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// ClassCountsKey holds the per-class row counts of a target column.
	ClassCountsKey = "data.class_counts"

	// ColumnsKey lists column names, e.g. the missing ones of a schema error.
	ColumnsKey = "data.columns"

	// PathKey is a dataset or results file path.
	PathKey = "data.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records accuracy in [0, 1].
	AccuracyKey = "metrics.accuracy"

	// PrecisionKey records macro-averaged precision.
	PrecisionKey = "metrics.precision_macro"

	// RecallKey records macro-averaged recall.
	RecallKey = "metrics.recall_macro"

	// F1Key records macro-averaged F1.
	F1Key = "metrics.f1_macro"

	// FoldsKey records the number of cross-validation folds.
	FoldsKey = "cv.folds"

	// CandidatesKey records the number of grid-search candidates.
	CandidatesKey = "cv.candidates"
)

// Prediction and Output Context
const (
	// ConfidenceKey records a positive-class probability.
	ConfidenceKey = "preds.confidence"

	// ThresholdKey records the decision threshold applied to a probability.
	ThresholdKey = "preds.threshold"

	// LabelKey records a predicted categorical label.
	LabelKey = "preds.label"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"

	// SuggestionKey provides a hint for resolving the issue.
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredictProba = "predict_proba"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationAlign        = "align"
	OperationBalance      = "balance"
	OperationScore        = "score"

	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorMissingColumns    = "MISSING_COLUMNS"
	ErrorSchemaMismatch    = "SCHEMA_MISMATCH"
	ErrorLoadFailure       = "LOAD_FAILURE"
	ErrorScalerUnavailable = "SCALER_UNAVAILABLE"
	ErrorInvalidInput      = "INVALID_INPUT"
)
