package validation

import (
	"math"

	"github.com/estatelab/rentfold/core/model"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Ensemble averages the raw predictions of the fold models
type Ensemble struct {
	Models []model.Regressor
	// ExpM1 inverts a log1p target after averaging
	ExpM1 bool
}

// NewEnsemble builds the predictor from a trained fold set
func NewEnsemble(set *FoldModelSet, expm1 bool) *Ensemble {
	return &Ensemble{Models: set.Regressors(), ExpM1: expm1}
}

// Predict returns one value per row of X.
//
// Predictions are averaged in log space and then passed through expm1.
// Negative results are reported through a NegativePredictionWarning and
// returned unchanged.
func (e *Ensemble) Predict(X mat.Matrix) ([]float64, error) {
	if len(e.Models) == 0 {
		return nil, errors.NewValueError("Ensemble.Predict", "no fold models")
	}
	nRows, _ := X.Dims()
	sum := make([]float64, nRows)
	for i, m := range e.Models {
		pred, err := m.Predict(X)
		if err != nil {
			return nil, errors.Wrapf(err, "fold model %d", i)
		}
		if len(pred) != nRows {
			return nil, errors.NewDimensionError("Ensemble.Predict", nRows, len(pred), 0)
		}
		floats.Add(sum, pred)
	}
	floats.Scale(1/float64(len(e.Models)), sum)

	if e.ExpM1 {
		for i, v := range sum {
			sum[i] = math.Expm1(v)
		}
	}

	negative := 0
	minValue := math.Inf(1)
	for _, v := range sum {
		if v < 0 {
			negative++
		}
		minValue = math.Min(minValue, v)
	}
	if negative > 0 {
		errors.Warn(errors.NewNegativePredictionWarning(negative, minValue))
	}

	log.GetLoggerWithName("validation").Debug("Ensemble prediction",
		log.OperationKey, log.OperationPredict,
		log.PredsKey, nRows,
		log.NFoldsKey, len(e.Models),
	)
	return sum, nil
}
