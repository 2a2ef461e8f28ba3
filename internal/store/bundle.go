package store

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uemura/appendicitis/core/model"
	"github.com/uemura/appendicitis/pkg/errors"
	"github.com/uemura/appendicitis/pkg/log"
	"github.com/uemura/appendicitis/sklearn/ensemble"
)

// ModelBundle is the trained model of one target together with the metadata
// needed to score a new patient against it.
type ModelBundle struct {
	Name          string
	Target        string
	Forest        *ensemble.RandomForestClassifier
	FeatureNames  []string
	ClassLabels   []string
	PositiveIndex int
	BestParams    map[string]string
	BestScore     float64
	Diagnostics   map[string]float64
	// Confusion counts out-of-fold predictions: row = true class, column =
	// predicted class, both in ClassLabels order.
	Confusion [][]int
	OOFError  float64
	Samples   int
	RunID     string
	Created   time.Time
}

// PositiveLabel returns the class label whose probability is thresholded.
func (b *ModelBundle) PositiveLabel() string {
	if b.PositiveIndex < 0 || b.PositiveIndex >= len(b.ClassLabels) {
		return ""
	}
	return b.ClassLabels[b.PositiveIndex]
}

// FeatureWeight pairs a feature with its importance.
type FeatureWeight struct {
	Feature    string  `yaml:"feature"`
	Importance float64 `yaml:"importance"`
}

// Card is the human readable summary written next to each bundle.
type Card struct {
	Name          string             `yaml:"name"`
	Target        string             `yaml:"target"`
	RunID         string             `yaml:"run_id"`
	Created       time.Time          `yaml:"created"`
	Samples       int                `yaml:"samples"`
	Features      int                `yaml:"n_features"`
	Classes       []string           `yaml:"classes"`
	PositiveLabel string             `yaml:"positive_label"`
	BestParams    map[string]string  `yaml:"best_params"`
	BestScore     float64            `yaml:"best_score"`
	Diagnostics   map[string]float64 `yaml:"cv_diagnostics"`
	Confusion     [][]int            `yaml:"confusion_matrix,flow"`
	OOFError      float64            `yaml:"out_of_fold_error"`
	TopFeatures   []FeatureWeight    `yaml:"top_features"`
}

// TopFeatures returns the n most important features, highest first. Ties
// keep the feature vector order.
func (b *ModelBundle) TopFeatures(n int) []FeatureWeight {
	if b.Forest == nil {
		return nil
	}
	imp := b.Forest.FeatureImportances()
	weights := make([]FeatureWeight, 0, len(imp))
	for i, v := range imp {
		if i < len(b.FeatureNames) {
			weights = append(weights, FeatureWeight{Feature: b.FeatureNames[i], Importance: v})
		}
	}
	sort.SliceStable(weights, func(i, j int) bool { return weights[i].Importance > weights[j].Importance })
	if n > 0 && n < len(weights) {
		weights = weights[:n]
	}
	return weights
}

// Card builds the bundle's card.
func (b *ModelBundle) Card() Card {
	return Card{
		Name:          b.Name,
		Target:        b.Target,
		RunID:         b.RunID,
		Created:       b.Created,
		Samples:       b.Samples,
		Features:      len(b.FeatureNames),
		Classes:       b.ClassLabels,
		PositiveLabel: b.PositiveLabel(),
		BestParams:    b.BestParams,
		BestScore:     b.BestScore,
		Diagnostics:   b.Diagnostics,
		Confusion:     b.Confusion,
		OOFError:      b.OOFError,
		TopFeatures:   b.TopFeatures(10),
	}
}

// SaveBundle writes modelo_<name>.gob and its card, overwriting both.
func (s *Store) SaveBundle(b *ModelBundle) error {
	if b.Name == "" {
		return errors.NewValueError("SaveBundle", "bundle has no name")
	}
	if b.Forest == nil || !b.Forest.IsFitted() {
		return errors.NewNotFittedError("RandomForestClassifier", "SaveBundle")
	}
	path := s.ModelPath(b.Name)
	if err := model.SaveModel(b, path); err != nil {
		return errors.Wrapf(err, "save model %s", b.Name)
	}

	data, err := yaml.Marshal(b.Card())
	if err != nil {
		return errors.Wrap(err, "marshal model card")
	}
	if err := os.WriteFile(s.CardPath(b.Name), data, 0o644); err != nil {
		return errors.Wrap(err, "write model card")
	}

	s.logger.Info("Model saved",
		log.TargetKey, b.Target,
		log.ModelFileKey, path,
		log.RunIDKey, b.RunID,
	)
	return nil
}

// LoadBundle reads modelo_<name>.gob. Failures are LoadErrors.
func (s *Store) LoadBundle(name string) (*ModelBundle, error) {
	path := s.ModelPath(name)
	var b ModelBundle
	if err := model.LoadModel(&b, path); err != nil {
		return nil, errors.NewLoadError(fmt.Sprintf("model %s", name), path, err)
	}
	if b.Forest == nil || !b.Forest.IsFitted() {
		return nil, errors.NewLoadError(fmt.Sprintf("model %s", name), path,
			errors.NewNotFittedError("RandomForestClassifier", "LoadBundle"))
	}
	return &b, nil
}

// LoadCard reads the YAML card of a bundle.
func (s *Store) LoadCard(name string) (*Card, error) {
	path := s.CardPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewLoadError("model card", path, err)
	}
	var c Card
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.NewLoadError("model card", path, err)
	}
	return &c, nil
}
