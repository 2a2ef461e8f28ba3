// Package appendicitis is a clinical decision-support pipeline for pediatric
// appendicitis.
//
// It trains one random forest per target (Diagnosis, Severity and
// Management) from a tabular export of the Regensburg pediatric
// appendicitis dataset and scores single new patients with the persisted
// models.
//
// # Quick Start
//
// Train on a local export, then score a patient interactively:
//
//	appendicitis --dataset data/app_data.xlsx train
//	appendicitis infer
//
// Without a command the interactive menu is shown. Settings come from
// defaults, an optional appendicitis.yaml, APPENDICITIS_* environment
// variables and flags, in increasing order of precedence.
//
// # Packages
//
// The repository is organized into library and application packages:
//
//   - core/model: Fitter, Predictor, Classifier and Transformer interfaces, gob persistence
//   - core/parallel: chunked goroutine fan-out
//   - preprocessing: MinMaxScaler, OneHotEncoder, SimpleImputer, Reindex
//   - sklearn/tree: DecisionTreeClassifier
//   - sklearn/ensemble: RandomForestClassifier
//   - sklearn/model_selection: KFold, StratifiedKFold, GridSearchCV, CrossValidate
//   - sklearn/over_sampling: SMOTE
//   - metrics: accuracy and macro-averaged precision, recall and F1
//   - internal/schema: column registry, expected feature vector, validation rules
//   - internal/pipeline: cleaning, normalisation, balancing and training
//   - internal/inference: feature alignment and single-patient scoring
//   - internal/store: scaler and model bundles on disk
//
// # Feature alignment
//
// Training and inference share one contract: the feature vector of a
// patient is laid out exactly like the training matrix, 16 scaled numeric
// columns followed by 47 one-hot columns in a fixed order. The order is
// derived from the schema registry, never from data, and every persisted
// model records the feature names it was trained on.
package appendicitis
