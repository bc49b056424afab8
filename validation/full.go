package validation

import (
	"context"
	"time"

	"github.com/estatelab/rentfold/core/model"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// FitFull trains one regressor on every row of X. No rows are held out, so
// early stopping never triggers and the factory's iteration count is used
// as is.
func FitFull(ctx context.Context, X mat.Matrix, y []float64, factory model.Factory) (model.Regressor, error) {
	if factory == nil {
		return nil, errors.NewValueError("FitFull", "factory is required")
	}
	nRows, _ := X.Dims()
	if len(y) != nRows {
		return nil, errors.NewDimensionError("FitFull", nRows, len(y), 0)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]int, nRows)
	for i := range rows {
		rows[i] = i
	}
	start := time.Now()
	reg := factory()
	if err := reg.Fit(X, y, rows, nil); err != nil {
		return nil, errors.NewTrainingError(-1, err)
	}

	log.GetLoggerWithName("validation").Info("Full model fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nRows,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return reg, nil
}
