package errors

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// NumericalInstabilityError は勾配や予測値にNaN/Infが現れた場合のエラーです。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("rentfold: numerical instability in %s at iteration %d (sample: %v)", e.Operation, e.Iteration, e.Values)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Int("iteration", e.Iteration).
		Int("unstable_values", len(e.Values)).
		Str("type", "NumericalInstabilityError")
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
// 値は先頭10件までに切り詰められます。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	if len(values) > 10 {
		values = values[:10]
	}
	sample := make([]float64, len(values))
	copy(sample, values)
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: sample, Iteration: iteration})
}

// CheckNumericalStability は values に NaN/Inf が含まれていればエラーを返す
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	var unstable []float64
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			unstable = append(unstable, v)
			if len(unstable) >= 10 {
				break
			}
		}
	}
	if len(unstable) > 0 {
		return NewNumericalInstabilityError(operation, unstable, iteration)
	}
	return nil
}

// SafeDivide は分母がほぼ0、またはどちらかが NaN のとき NaN を返す
func SafeDivide(numerator, denominator float64) float64 {
	if math.IsNaN(numerator) || math.IsNaN(denominator) || math.Abs(denominator) < 1e-10 {
		return math.NaN()
	}
	return numerator / denominator
}
