package model

import "gonum.org/v1/gonum/mat"

// Regressor はフォールド学習で使う回帰器の契約
//
// 行は X 全体へのインデックスで渡される。valid が空でなければ
// 早期終了の評価に使い、学習には使わない。
type Regressor interface {
	// Fit は X の train 行で学習する
	Fit(X mat.Matrix, y []float64, train, valid []int) error

	// Predict は X の全行に対する予測を返す
	Predict(X mat.Matrix) ([]float64, error)

	// FeatureImportance は特徴量ごとの重要度を返す（合計 100）
	FeatureImportance() []float64
}

// IterationReporter は早期終了で選ばれた反復回数を返せる回帰器
type IterationReporter interface {
	BestIteration() int
}

// Factory はフォールドごとに未学習の Regressor を作る
type Factory func() Regressor
