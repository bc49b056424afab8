package gbdt

import (
	"github.com/estatelab/rentfold/pkg/errors"
)

// Loss names
const (
	LossMAE  = "MAE"
	LossRMSE = "RMSE"
)

// Params contains all training hyperparameters
type Params struct {
	// Basic parameters
	Iterations    int     `json:"iterations" yaml:"iterations"`
	LearningRate  float64 `json:"learning_rate" yaml:"learning_rate"`
	Depth         int     `json:"depth" yaml:"depth"`
	MinDataInLeaf int     `json:"min_data_in_leaf" yaml:"min_data_in_leaf"`

	// Objective and evaluation
	Loss       string `json:"loss_function" yaml:"loss_function"`
	EvalMetric string `json:"eval_metric" yaml:"eval_metric"`

	// Regularization
	L2Reg     float64 `json:"l2_leaf_reg" yaml:"l2_leaf_reg"`
	CatSmooth float64 `json:"cat_smooth" yaml:"cat_smooth"`

	// Histogram and sampling
	MaxBin    int     `json:"max_bin" yaml:"max_bin"`
	Subsample float64 `json:"subsample" yaml:"subsample"`

	// Categorical features (column indices holding integer category codes)
	CategoricalFeatures []int `json:"categorical_features" yaml:"-"`

	// Other
	RandomSeed          uint64 `json:"random_seed" yaml:"random_seed"`
	EarlyStoppingRounds int    `json:"early_stopping_rounds" yaml:"early_stopping_rounds"`
	NumThreads          int    `json:"num_threads" yaml:"num_threads"`
	Verbose             int    `json:"verbose" yaml:"verbose"` // progress log interval, 0 = silent
}

// DefaultParams returns the parameters used by the rent model
func DefaultParams() Params {
	return Params{
		Iterations:          1000,
		LearningRate:        0.05,
		Depth:               6,
		MinDataInLeaf:       20,
		Loss:                LossMAE,
		EvalMetric:          LossMAE,
		L2Reg:               3,
		CatSmooth:           10,
		MaxBin:              254,
		Subsample:           1,
		RandomSeed:          42,
		EarlyStoppingRounds: 50,
		Verbose:             100,
	}
}

// withDefaults fills zero values from DefaultParams
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Iterations == 0 {
		p.Iterations = d.Iterations
	}
	if p.LearningRate == 0 {
		p.LearningRate = d.LearningRate
	}
	if p.Depth == 0 {
		p.Depth = d.Depth
	}
	if p.MinDataInLeaf == 0 {
		p.MinDataInLeaf = d.MinDataInLeaf
	}
	if p.Loss == "" {
		p.Loss = d.Loss
	}
	if p.EvalMetric == "" {
		p.EvalMetric = p.Loss
	}
	if p.MaxBin == 0 {
		p.MaxBin = d.MaxBin
	}
	if p.Subsample == 0 {
		p.Subsample = 1
	}
	return p
}

// Validate checks parameter ranges
func (p Params) Validate() error {
	switch {
	case p.Iterations < 1:
		return errors.NewValidationError("iterations", "must be at least 1", p.Iterations)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.Depth < 1:
		return errors.NewValidationError("depth", "must be at least 1", p.Depth)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be at least 1", p.MinDataInLeaf)
	case p.L2Reg < 0:
		return errors.NewValidationError("l2_leaf_reg", "must be non-negative", p.L2Reg)
	case p.CatSmooth < 0:
		return errors.NewValidationError("cat_smooth", "must be non-negative", p.CatSmooth)
	case p.MaxBin < 2 || p.MaxBin > 65000:
		return errors.NewValidationError("max_bin", "must be in [2, 65000]", p.MaxBin)
	case p.Subsample <= 0 || p.Subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.Subsample)
	case p.EarlyStoppingRounds < 0:
		return errors.NewValidationError("early_stopping_rounds", "must be non-negative", p.EarlyStoppingRounds)
	}
	if _, err := newObjective(p.Loss); err != nil {
		return err
	}
	if _, err := newMetric(p.EvalMetric); err != nil {
		return err
	}
	return nil
}
