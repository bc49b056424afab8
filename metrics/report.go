package metrics

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
)

// Report はまとめて計算した回帰指標
type Report struct {
	MAE   float64 `json:"mae" yaml:"mae"`
	RMSE  float64 `json:"rmse" yaml:"rmse"`
	RMSLE float64 `json:"rmsle" yaml:"rmsle"`
	MAPE  float64 `json:"mape" yaml:"mape"`
	R2    float64 `json:"r2" yaml:"r2"`
}

// Calculate は元のスケールの真値と予測値から全指標を計算する
//
// RMSLE（-1 以下の値がある）と R²（真値の分散が0）が定義できない場合は
// NaN を入れ、エラーにはしない。
func Calculate(yTrue, yPred []float64) (Report, error) {
	var r Report
	var err error
	if r.MAE, err = MAE(yTrue, yPred); err != nil {
		return Report{}, err
	}
	if r.RMSE, err = RMSE(yTrue, yPred); err != nil {
		return Report{}, err
	}
	if r.MAPE, err = MAPE(yTrue, yPred); err != nil {
		return Report{}, err
	}
	if r.RMSLE, err = RMSLE(yTrue, yPred); err != nil {
		r.RMSLE = math.NaN()
	}
	if r.R2, err = R2Score(yTrue, yPred); err != nil {
		r.R2 = math.NaN()
	}
	return r, nil
}

// Expm1 は log1p 空間の値を元のスケールに戻した新しいスライスを返す
func Expm1(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Expm1(v)
	}
	return out
}

// MarshalZerologObject はログに指標を埋め込む
func (r Report) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("mae", r.MAE).
		Float64("rmse", r.RMSE).
		Float64("rmsle", r.RMSLE).
		Float64("mape", r.MAPE).
		Float64("r2", r.R2)
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "MAE:   %.4f\n", r.MAE)
	fmt.Fprintf(&b, "RMSE:  %.4f\n", r.RMSE)
	fmt.Fprintf(&b, "RMSLE: %.4f\n", r.RMSLE)
	fmt.Fprintf(&b, "MAPE:  %.4f%%\n", r.MAPE)
	fmt.Fprintf(&b, "R2:    %.4f\n", r.R2)
	return b.String()
}
