// Package config loads the runtime configuration from defaults, an optional
// appendicitis.yaml, APPENDICITIS_* environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/uemura/appendicitis/pkg/errors"
)

// Config is the complete runtime configuration.
type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Training TrainingConfig `mapstructure:"training"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// Command is the first positional argument ("train", "infer", "check"); empty
	// means the interactive menu.
	Command string `mapstructure:"-"`
}

// PathsConfig locates the dataset and the artifacts.
type PathsConfig struct {
	DataDir     string `mapstructure:"data_dir"`
	ModelsDir   string `mapstructure:"models_dir"`
	Dataset     string `mapstructure:"dataset"`
	ResultsFile string `mapstructure:"results_file"`
}

// TrainingConfig holds the training hyperparameters that are not searched.
type TrainingConfig struct {
	RandomState   int64 `mapstructure:"random_state"`
	SearchFolds   int   `mapstructure:"search_folds"`
	ReportFolds   int   `mapstructure:"report_folds"`
	SMOTEK        int   `mapstructure:"smote_k"`
	NJobs         int   `mapstructure:"n_jobs"`
	Quick         bool  `mapstructure:"quick"`
	SyntheticRows int   `mapstructure:"synthetic_rows"`
}

// LoggingConfig configures pkg/log.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ResultsPath returns the results CSV path. A bare file name is placed in
// the data directory.
func (c *Config) ResultsPath() string {
	if filepath.Dir(c.Paths.ResultsFile) == "." {
		return filepath.Join(c.Paths.DataDir, c.Paths.ResultsFile)
	}
	return c.Paths.ResultsFile
}

// Load parses args (without the program name) and merges every source.
func Load(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("appendicitis", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to a configuration file")
	fs.String("data-dir", "", "directory for the results file")
	fs.String("models-dir", "", "directory for the scaler and models")
	fs.String("dataset", "", "CSV or XLSX export of the dataset")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("log-format", "", "console or json")
	fs.Bool("quick", false, "train with a reduced grid")
	fs.Int("synthetic-rows", 0, "train on generated rows instead of the dataset")
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "parse flags")
	}
	for key, flag := range map[string]string{
		"paths.data_dir":          "data-dir",
		"paths.models_dir":        "models-dir",
		"paths.dataset":           "dataset",
		"logging.level":           "log-level",
		"logging.format":          "log-format",
		"training.quick":          "quick",
		"training.synthetic_rows": "synthetic-rows",
	} {
		// Only flags given on the command line override lower layers.
		if f := fs.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "bind flag %s", flag)
			}
		}
	}

	v.SetEnvPrefix("APPENDICITIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName("appendicitis")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if *configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg.Command = fs.Arg(0)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.models_dir", "models")
	v.SetDefault("paths.dataset", "data/app_data.xlsx")
	v.SetDefault("paths.results_file", "pacientes_inferidos.csv")

	v.SetDefault("training.random_state", 42)
	v.SetDefault("training.search_folds", 5)
	v.SetDefault("training.report_folds", 10)
	v.SetDefault("training.smote_k", 5)
	v.SetDefault("training.n_jobs", 0)
	v.SetDefault("training.quick", false)
	v.SetDefault("training.synthetic_rows", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Training.SearchFolds < 2:
		return errors.NewValidationError("training.search_folds", "must be at least 2", c.Training.SearchFolds)
	case c.Training.ReportFolds < 2:
		return errors.NewValidationError("training.report_folds", "must be at least 2", c.Training.ReportFolds)
	case c.Training.SMOTEK < 1:
		return errors.NewValidationError("training.smote_k", "must be at least 1", c.Training.SMOTEK)
	case c.Training.SyntheticRows < 0:
		return errors.NewValidationError("training.synthetic_rows", "must not be negative", c.Training.SyntheticRows)
	case c.Logging.Format != "console" && c.Logging.Format != "json":
		return errors.NewValidationError("logging.format", "must be console or json", c.Logging.Format)
	}
	switch c.Command {
	case "", "train", "infer", "check":
	default:
		return errors.NewValidationError("command", "must be train, infer or check", c.Command)
	}
	return nil
}
