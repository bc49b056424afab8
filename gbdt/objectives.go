package gbdt

import (
	"math"
	"sort"

	"github.com/estatelab/rentfold/metrics"
	"github.com/estatelab/rentfold/pkg/errors"
)

// objective defines the loss being minimized by boosting
type objective interface {
	// gradient and hessian of the loss with respect to the prediction
	gradient(prediction, target float64) float64
	hessian(prediction, target float64) float64
	loss(prediction, target float64) float64
	// initScore is the constant prediction before the first tree
	initScore(targets []float64) float64
	// renewsLeaves reports whether leaf outputs are replaced by residual medians
	renewsLeaves() bool
	name() string
}

func newObjective(name string) (objective, error) {
	switch name {
	case LossMAE:
		return l1Objective{}, nil
	case LossRMSE:
		return l2Objective{}, nil
	default:
		return nil, errors.NewValidationError("loss_function", "unsupported loss (MAE or RMSE)", name)
	}
}

// l2Objective implements squared error loss
type l2Objective struct{}

func (l2Objective) gradient(prediction, target float64) float64 { return prediction - target }
func (l2Objective) hessian(_, _ float64) float64               { return 1 }

func (l2Objective) loss(prediction, target float64) float64 {
	diff := prediction - target
	return 0.5 * diff * diff
}

func (l2Objective) initScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range targets {
		sum += t
	}
	return sum / float64(len(targets))
}

func (l2Objective) renewsLeaves() bool { return false }
func (l2Objective) name() string       { return LossRMSE }

// l1Objective implements absolute error loss.
// Gradients are signs, so split search behaves like least squares on signs
// and leaf values are recomputed as residual medians after the tree is grown.
type l1Objective struct{}

func (l1Objective) gradient(prediction, target float64) float64 {
	diff := prediction - target
	switch {
	case diff > 0:
		return 1
	case diff < 0:
		return -1
	}
	return 0
}

func (l1Objective) hessian(_, _ float64) float64 { return 1 }

func (l1Objective) loss(prediction, target float64) float64 {
	return math.Abs(prediction - target)
}

func (l1Objective) initScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0
	}
	return calculateMedian(targets)
}

func (l1Objective) renewsLeaves() bool { return true }
func (l1Objective) name() string       { return LossMAE }

// calculateMedian returns the median without modifying values
func calculateMedian(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// metricFunc scores raw predictions on the validation rows, lower is better
type metricFunc func(yTrue, yPred []float64) (float64, error)

func newMetric(name string) (metricFunc, error) {
	switch name {
	case LossMAE:
		return metrics.MAE, nil
	case LossRMSE:
		return metrics.RMSE, nil
	default:
		return nil, errors.NewValidationError("eval_metric", "unsupported metric (MAE or RMSE)", name)
	}
}
