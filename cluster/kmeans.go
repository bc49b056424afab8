// Package cluster は座標のクラスタリングに使う k-means を提供します。
package cluster

import (
	"math"
	"math/rand/v2"

	"github.com/estatelab/rentfold/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// KMeans は k-means の設定
//
// Fit は学習済みの KMeansModel を返し、KMeans 自身は変更しない。
type KMeans struct {
	nClusters int     // クラスタ数
	init      string  // 初期化方法: "k-means++", "random"
	maxIter   int     // 1回の実行の最大イテレーション数
	nInit     int     // 異なる初期化での実行回数
	tol       float64 // 中心移動量の収束判定
	seed      uint64  // 乱数シード
}

// KMeansOption は KMeans の設定オプション
type KMeansOption func(*KMeans)

// NewKMeans は新しい KMeans を作成
func NewKMeans(options ...KMeansOption) *KMeans {
	km := &KMeans{
		nClusters: 8,
		init:      "k-means++",
		maxIter:   300,
		nInit:     10,
		tol:       1e-4,
		seed:      42,
	}
	for _, opt := range options {
		opt(km)
	}
	return km
}

// WithNClusters はクラスタ数を設定
func WithNClusters(n int) KMeansOption {
	return func(km *KMeans) { km.nClusters = n }
}

// WithInit は初期化方法を設定
func WithInit(init string) KMeansOption {
	return func(km *KMeans) { km.init = init }
}

// WithMaxIter は最大イテレーション数を設定
func WithMaxIter(maxIter int) KMeansOption {
	return func(km *KMeans) { km.maxIter = maxIter }
}

// WithNInit は初期化のやり直し回数を設定
func WithNInit(n int) KMeansOption {
	return func(km *KMeans) { km.nInit = n }
}

// WithTol は収束判定の許容誤差を設定
func WithTol(tol float64) KMeansOption {
	return func(km *KMeans) { km.tol = tol }
}

// WithSeed は乱数シードを設定
func WithSeed(seed uint64) KMeansOption {
	return func(km *KMeans) { km.seed = seed }
}

// KMeansModel は学習済みのクラスタ中心
type KMeansModel struct {
	centers [][]float64
	labels  []int
	inertia float64
	nIter   int
}

// Fit は X の行をクラスタリングする
//
// nInit 回の実行のうち慣性が最小のものを採用する。同じシードなら結果は常に同じ。
func (km *KMeans) Fit(X mat.Matrix) (*KMeansModel, error) {
	rows, cols := X.Dims()
	if km.nClusters < 1 {
		return nil, errors.NewValidationError("n_clusters", "must be positive", km.nClusters)
	}
	if rows < km.nClusters {
		return nil, errors.Newf("サンプル数がクラスタ数より少ないです: %d < %d", rows, km.nClusters)
	}

	data := make([][]float64, rows)
	for i := range data {
		data[i] = mat.Row(nil, i, X)
	}

	rng := rand.New(rand.NewPCG(km.seed, km.seed))
	nInit := km.nInit
	if nInit < 1 {
		nInit = 1
	}

	var best *KMeansModel
	for run := 0; run < nInit; run++ {
		m := km.fitSingleRun(data, cols, rng)
		if best == nil || m.inertia < best.inertia {
			best = m
		}
	}
	return best, nil
}

// fitSingleRun は Lloyd 法を1回実行
func (km *KMeans) fitSingleRun(data [][]float64, cols int, rng *rand.Rand) *KMeansModel {
	centers := km.initializeCenters(data, cols, rng)
	labels := make([]int, len(data))
	sums := make([][]float64, km.nClusters)
	for c := range sums {
		sums[c] = make([]float64, cols)
	}
	counts := make([]int, km.nClusters)

	iter := 0
	for ; iter < km.maxIter; iter++ {
		for i, x := range data {
			labels[i] = nearest(x, centers)
		}

		for c := range sums {
			for j := range sums[c] {
				sums[c][j] = 0
			}
			counts[c] = 0
		}
		for i, x := range data {
			floats.Add(sums[labels[i]], x)
			counts[labels[i]]++
		}

		shift := 0.0
		for c := range centers {
			if counts[c] == 0 {
				// 空クラスタは現在の中心から最も遠い点に移す
				far := farthest(data, centers, labels)
				copy(centers[c], data[far])
				labels[far] = c
				shift = math.Inf(1)
				continue
			}
			next := make([]float64, cols)
			floats.ScaleTo(next, 1/float64(counts[c]), sums[c])
			d := floats.Distance(next, centers[c], 2)
			shift += d * d
			centers[c] = next
		}
		if shift <= km.tol {
			iter++
			break
		}
	}

	inertia := 0.0
	for i, x := range data {
		labels[i] = nearest(x, centers)
		d := floats.Distance(x, centers[labels[i]], 2)
		inertia += d * d
	}
	return &KMeansModel{centers: centers, labels: labels, inertia: inertia, nIter: iter}
}

// initializeCenters はクラスタ中心を初期化
func (km *KMeans) initializeCenters(data [][]float64, cols int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, km.nClusters)
	if km.init == "random" {
		for c, idx := range rng.Perm(len(data))[:km.nClusters] {
			centers[c] = append(make([]float64, 0, cols), data[idx]...)
		}
		return centers
	}

	// k-means++
	centers[0] = append(make([]float64, 0, cols), data[rng.IntN(len(data))]...)
	distances := make([]float64, len(data))
	for i, x := range data {
		d := floats.Distance(x, centers[0], 2)
		distances[i] = d * d
	}
	for c := 1; c < km.nClusters; c++ {
		total := floats.Sum(distances)
		selected := rng.IntN(len(data))
		if total > 0 {
			target := rng.Float64() * total
			cum := 0.0
			for i, d := range distances {
				cum += d
				if cum >= target && d > 0 {
					selected = i
					break
				}
			}
		}
		centers[c] = append(make([]float64, 0, cols), data[selected]...)
		for i, x := range data {
			d := floats.Distance(x, centers[c], 2)
			if d*d < distances[i] {
				distances[i] = d * d
			}
		}
	}
	return centers
}

func nearest(x []float64, centers [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		d := floats.Distance(x, center, 2)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func farthest(data, centers [][]float64, labels []int) int {
	far, farDist := 0, -1.0
	for i, x := range data {
		d := floats.Distance(x, centers[labels[i]], 2)
		if d > farDist {
			far, farDist = i, d
		}
	}
	return far
}

// Predict は各行に最も近いクラスタ番号を返す
func (m *KMeansModel) Predict(X mat.Matrix) ([]int, error) {
	rows, cols := X.Dims()
	if cols != len(m.centers[0]) {
		return nil, errors.NewDimensionError("KMeansModel.Predict", len(m.centers[0]), cols, 1)
	}
	out := make([]int, rows)
	row := make([]float64, cols)
	for i := range out {
		mat.Row(row, i, X)
		out[i] = nearest(row, m.centers)
	}
	return out, nil
}

// PredictRow は1点に最も近いクラスタ番号を返す
func (m *KMeansModel) PredictRow(x []float64) int {
	return nearest(x, m.centers)
}

// Centers は学習されたクラスタ中心のコピーを返す
func (m *KMeansModel) Centers() [][]float64 {
	out := make([][]float64, len(m.centers))
	for i, c := range m.centers {
		out[i] = append([]float64(nil), c...)
	}
	return out
}

// Labels は学習データのクラスタラベルを返す
func (m *KMeansModel) Labels() []int {
	return append([]int(nil), m.labels...)
}

// Inertia は慣性（クラスタ内平方和誤差）を返す
func (m *KMeansModel) Inertia() float64 { return m.inertia }

// NIter は採用した実行のイテレーション数を返す
func (m *KMeansModel) NIter() int { return m.nIter }

// NClusters はクラスタ数を返す
func (m *KMeansModel) NClusters() int { return len(m.centers) }
