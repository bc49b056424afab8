package metrics

import (
	"math"

	"github.com/estatelab/rentfold/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// checkPair は長さの一致と空でないことを確認する
func checkPair(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MSE", yTrue, yPred); err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		sum += diff * diff
	}
	return sum / float64(len(yTrue)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MAE", yTrue, yPred); err != nil {
		return 0, err
	}
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue)), nil
}

// RMSLE は log1p 空間での RMSE を計算する。-1 以下の値は定義できないのでエラー
func RMSLE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("RMSLE", yTrue, yPred); err != nil {
		return 0, err
	}
	lt := make([]float64, len(yTrue))
	lp := make([]float64, len(yPred))
	for i := range yTrue {
		if yTrue[i] <= -1 || yPred[i] <= -1 {
			return 0, errors.NewValueError("RMSLE", "values must be greater than -1")
		}
		lt[i] = math.Log1p(yTrue[i])
		lp[i] = math.Log1p(yPred[i])
	}
	return RMSE(lt, lp)
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}
	yMean := stat.Mean(yTrue, nil)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := range yTrue {
		tss += (yTrue[i] - yMean) * (yTrue[i] - yMean)
		rss += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
	}
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// MAPE は平均絶対パーセンテージ誤差（%）を計算する
//
// yTrue が0の行はゼロ除算になるため集計から除く。
func MAPE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MAPE", yTrue, yPred); err != nil {
		return 0, err
	}
	// MAPE = (100/n) * Σ|yTrue - yPred|/|yTrue|
	var sum float64
	validCount := 0
	for i := range yTrue {
		if yTrue[i] != 0 {
			sum += math.Abs(yTrue[i]-yPred[i]) / math.Abs(yTrue[i])
			validCount++
		}
	}
	if validCount == 0 {
		return 0, errors.Newf("MAPE: all yTrue values are zero")
	}
	return sum / float64(validCount) * 100, nil
}

// LogMAPE は log1p 空間の真値と予測値を expm1 で元に戻してから MAPE を計算する
func LogMAPE(logTrue, logPred []float64) (float64, error) {
	if err := checkPair("LogMAPE", logTrue, logPred); err != nil {
		return 0, err
	}
	return MAPE(Expm1(logTrue), Expm1(logPred))
}
