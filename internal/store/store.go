// Package store persists the training artifacts: the fitted scaler, one model
// bundle per target and a YAML card describing each bundle.
package store

import (
	"os"
	"path/filepath"

	"github.com/uemura/appendicitis/core/model"
	"github.com/uemura/appendicitis/pkg/errors"
	"github.com/uemura/appendicitis/pkg/log"
	"github.com/uemura/appendicitis/preprocessing"
)

// Artifact file names inside the models directory.
const (
	ScalerFile    = "scaler.gob"
	TelemetryFile = "training.prom"
)

// Store reads and writes artifacts below a single directory.
type Store struct {
	dir    string
	logger log.Logger
}

// New returns a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "models"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create models dir %s", dir)
	}
	return &Store{
		dir:    dir,
		logger: log.GetLogger().With(log.ComponentKey, "store"),
	}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Path joins name onto the root directory.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

// ModelPath is modelo_<name>.gob.
func (s *Store) ModelPath(name string) string { return s.Path("modelo_" + name + ".gob") }

// CardPath is modelo_<name>.yaml.
func (s *Store) CardPath(name string) string { return s.Path("modelo_" + name + ".yaml") }

// SaveScaler overwrites the persisted scaler.
func (s *Store) SaveScaler(scaler *preprocessing.MinMaxScaler) error {
	if !scaler.IsFitted() {
		return errors.NewNotFittedError("MinMaxScaler", "SaveScaler")
	}
	path := s.Path(ScalerFile)
	if err := model.SaveModel(scaler, path); err != nil {
		return err
	}
	s.logger.Debug("Scaler saved", log.ModelFileKey, path, log.FeaturesKey, len(scaler.FeatureNames))
	return nil
}

// LoadScaler reads the persisted scaler. Any failure is reported as a
// LoadError.
func (s *Store) LoadScaler() (*preprocessing.MinMaxScaler, error) {
	path := s.Path(ScalerFile)
	scaler := preprocessing.NewMinMaxScalerDefault()
	if err := model.LoadModel(scaler, path); err != nil {
		return nil, errors.NewLoadError("scaler", path, err)
	}
	if !scaler.IsFitted() {
		return nil, errors.NewLoadError("scaler", path, errors.NewNotFittedError("MinMaxScaler", "LoadScaler"))
	}
	return scaler, nil
}
