// Package config loads and validates the run configuration.
package config

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/estatelab/rentfold/features"
	"github.com/estatelab/rentfold/gbdt"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
	"github.com/estatelab/rentfold/preprocessing"
	"github.com/estatelab/rentfold/validation"
)

// Config is the full configuration of a training run
type Config struct {
	Data       DataConfig       `yaml:"data"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Features   FeatureConfig    `yaml:"features"`
	Model      gbdt.Params      `yaml:"model"`
	CV         CVConfig         `yaml:"cv"`
	FullFit    FullFitConfig    `yaml:"full_fit"`
	Output     OutputConfig     `yaml:"output"`
	Log        LogConfig        `yaml:"log"`
}

// DataConfig holds input paths and the cache directory
type DataConfig struct {
	Train            string `yaml:"train"`
	Test             string `yaml:"test"`
	SampleSubmission string `yaml:"sample_submission"`
	CacheDir         string `yaml:"cache_dir"` // empty disables the cache
}

// PreprocessConfig holds the schema pass settings
type PreprocessConfig struct {
	TargetColumn         string  `yaml:"target_column"`
	LogTarget            bool    `yaml:"log_target"`
	AddressColumn        string  `yaml:"address_column"`
	TagDelimiter         string  `yaml:"tag_delimiter"`
	CardinalityThreshold int     `yaml:"cardinality_threshold"`
	FillValue            float64 `yaml:"fill_value"`
}

// FeatureConfig holds the geo feature settings
type FeatureConfig struct {
	NClusters       int      `yaml:"n_clusters"`
	NInit           int      `yaml:"n_init"`
	MaxIter         int      `yaml:"max_iter"`
	Tol             float64  `yaml:"tol"`
	Init            string   `yaml:"init"`
	ClusterSeed     uint64   `yaml:"cluster_seed"`
	EncodingColumns []string `yaml:"encoding_columns"`
	Smoothing       float64  `yaml:"smoothing"`
	ReferenceYear   int      `yaml:"reference_year"`
}

// CVConfig holds the k-fold settings
type CVConfig struct {
	NSplits int    `yaml:"n_splits"`
	Shuffle bool   `yaml:"shuffle"`
	Seed    uint64 `yaml:"seed"`
}

// FullFitConfig switches prediction from the fold ensemble to one model
// trained on every train row after cross validation.
//
// CVIterations sets the rounds to the mean best iteration of the folds
// instead of model.iterations.
type FullFitConfig struct {
	Enabled      bool `yaml:"enabled"`
	CVIterations bool `yaml:"cv_iterations"`
}

// OutputConfig holds output locations
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	Submission  string `yaml:"submission"`
	Importance  string `yaml:"importance"`
	Charts      bool   `yaml:"charts"`
	TopFeatures int    `yaml:"top_features"`
	MetricsFile string `yaml:"metrics_file"` // prometheus text format, empty disables
}

// LogConfig holds logger settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns the configuration of the reference run
func Default() Config {
	pre := preprocessing.DefaultOptions()
	feat := features.DefaultOptions()
	return Config{
		Data: DataConfig{
			Train:            "data/raw/train.csv",
			Test:             "data/raw/test.csv",
			SampleSubmission: "data/raw/sample_submit.csv",
			CacheDir:         "data/processed",
		},
		Preprocess: PreprocessConfig{
			TargetColumn:         pre.TargetColumn,
			LogTarget:            pre.LogTarget,
			AddressColumn:        pre.AddressColumn,
			TagDelimiter:         pre.TagDelimiter,
			CardinalityThreshold: pre.CardinalityThreshold,
			FillValue:            pre.FillValue,
		},
		Features: FeatureConfig{
			NClusters:       feat.Cluster.NClusters,
			NInit:           feat.Cluster.NInit,
			MaxIter:         feat.Cluster.MaxIter,
			Tol:             feat.Cluster.Tol,
			Init:            feat.Cluster.Init,
			ClusterSeed:     feat.Cluster.Seed,
			EncodingColumns: feat.EncodingColumns,
			Smoothing:       feat.Smoothing,
			ReferenceYear:   feat.Derived.ReferenceYear,
		},
		Model:   gbdt.DefaultParams(),
		CV:      CVConfig{NSplits: 5, Shuffle: true, Seed: 42},
		FullFit: FullFitConfig{CVIterations: true},
		Output: OutputConfig{
			Dir:         "output",
			Submission:  "submission.csv",
			Importance:  "feature_importance.csv",
			Charts:      true,
			TopFeatures: 30,
			MetricsFile: "metrics.prom",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML file on top of Default. Keys absent from the file keep
// their default values; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}

// Validate checks the configuration and returns the first problem found
func (c Config) Validate() error {
	switch {
	case c.Data.Train == "":
		return errors.NewValidationError("data.train", "must not be empty", c.Data.Train)
	case c.Data.Test == "":
		return errors.NewValidationError("data.test", "must not be empty", c.Data.Test)
	case c.Data.SampleSubmission == "":
		return errors.NewValidationError("data.sample_submission", "must not be empty", c.Data.SampleSubmission)
	case c.Preprocess.TargetColumn == "":
		return errors.NewValidationError("preprocess.target_column", "must not be empty", c.Preprocess.TargetColumn)
	case c.Preprocess.CardinalityThreshold < 1:
		return errors.NewValidationError("preprocess.cardinality_threshold", "must be positive", c.Preprocess.CardinalityThreshold)
	case c.Features.NClusters < 1:
		return errors.NewValidationError("features.n_clusters", "must be positive", c.Features.NClusters)
	case c.Features.NInit < 1:
		return errors.NewValidationError("features.n_init", "must be positive", c.Features.NInit)
	case c.Features.MaxIter < 1:
		return errors.NewValidationError("features.max_iter", "must be positive", c.Features.MaxIter)
	case c.Features.Tol < 0:
		return errors.NewValidationError("features.tol", "must be non-negative", c.Features.Tol)
	case c.Features.Init != "k-means++" && c.Features.Init != "random":
		return errors.NewValidationError("features.init", "must be k-means++ or random", c.Features.Init)
	case c.Features.Smoothing < 0:
		return errors.NewValidationError("features.smoothing", "must be non-negative", c.Features.Smoothing)
	case c.CV.NSplits < 2:
		return errors.NewValidationError("cv.n_splits", "must be at least 2", c.CV.NSplits)
	case c.Output.Dir == "":
		return errors.NewValidationError("output.dir", "must not be empty", c.Output.Dir)
	case c.Output.Submission == "":
		return errors.NewValidationError("output.submission", "must not be empty", c.Output.Submission)
	}
	if _, ok := log.ParseLevel(c.Log.Level); !ok {
		return errors.NewValidationError("log.level", "must be one of debug, info, warn, error", c.Log.Level)
	}
	return c.Model.Validate()
}

// PreprocessOptions maps the config onto the schema pass options
func (c Config) PreprocessOptions() preprocessing.Options {
	opts := preprocessing.DefaultOptions()
	opts.TargetColumn = c.Preprocess.TargetColumn
	opts.LogTarget = c.Preprocess.LogTarget
	opts.AddressColumn = c.Preprocess.AddressColumn
	opts.TagDelimiter = c.Preprocess.TagDelimiter
	opts.CardinalityThreshold = c.Preprocess.CardinalityThreshold
	opts.FillValue = c.Preprocess.FillValue
	return opts
}

// FeatureOptions maps the config onto the geo feature options
func (c Config) FeatureOptions() features.Options {
	opts := features.DefaultOptions()
	opts.Cluster.NClusters = c.Features.NClusters
	opts.Cluster.NInit = c.Features.NInit
	opts.Cluster.MaxIter = c.Features.MaxIter
	opts.Cluster.Tol = c.Features.Tol
	opts.Cluster.Init = c.Features.Init
	opts.Cluster.Seed = c.Features.ClusterSeed
	opts.Cluster.Sentinel = c.Preprocess.FillValue
	opts.Aggregate.Sentinel = c.Preprocess.FillValue
	opts.EncodingColumns = append([]string{}, c.Features.EncodingColumns...)
	opts.Smoothing = c.Features.Smoothing
	opts.Derived.ReferenceYear = c.Features.ReferenceYear
	opts.Derived.PriceColumn = c.Preprocess.TargetColumn
	opts.Derived.Sentinel = c.Preprocess.FillValue
	return opts
}

// Splitter returns the configured k-fold splitter
func (c Config) Splitter() *validation.KFold {
	return validation.NewKFold(c.CV.NSplits, c.CV.Shuffle, c.CV.Seed)
}

// OutputPath joins name onto the output directory
func (c Config) OutputPath(name string) string {
	return filepath.Join(c.Output.Dir, name)
}
