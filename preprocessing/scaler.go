package preprocessing

import (
	"math"

	"github.com/estatelab/rentfold/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler は学習済みの標準化パラメータ
//
// FitStandardScaler が返す値は不変で、Transform は何度呼んでも同じ結果になる。
// 分散は母分散（ddof=0）。
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// FitStandardScaler は訓練データから平均と標準偏差を計算する
//
// パラメータ:
//   - X: 訓練データ (n_samples × n_features の行列)
//
// 戻り値:
//   - *StandardScaler: 学習済みスケーラー
//   - error: 空データの場合
//
// 使用例:
//
//	scaler, err := preprocessing.FitStandardScaler(coords)
//	scaled, err := scaler.Transform(coords)
func FitStandardScaler(X mat.Matrix) (*StandardScaler, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s := &StandardScaler{mean: make([]float64, c), scale: make([]float64, c)}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		m := stat.Mean(col, nil)
		ss := 0.0
		for _, v := range col {
			d := v - m
			ss += d * d
		}
		s.mean[j] = m
		s.scale[j] = math.Sqrt(ss / float64(r))

		// 標準偏差が0に近い場合は1に設定（ゼロ除算を避ける）
		if s.scale[j] < 1e-8 {
			s.scale[j] = 1.0
		}
	}
	return s, nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if c != len(s.mean) {
		return nil, errors.NewDimensionError("StandardScaler.Transform", len(s.mean), c, 1)
	}
	if r == 0 {
		return &mat.Dense{}, nil
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.mean[j]) / s.scale[j]
	}, X)
	return result, nil
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if c != len(s.mean) {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", len(s.mean), c, 1)
	}
	if r == 0 {
		return &mat.Dense{}, nil
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.scale[j] + s.mean[j]
	}, X)
	return result, nil
}

// Mean は各特徴量の平均を返す
func (s *StandardScaler) Mean() []float64 { return append([]float64(nil), s.mean...) }

// Scale は各特徴量の標準偏差を返す
func (s *StandardScaler) Scale() []float64 { return append([]float64(nil), s.scale...) }
