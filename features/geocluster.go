// Package features は地理空間特徴量を生成します。
//
// 各変換は訓練データだけで学習する Fit 関数と、学習済みの値を
// 訓練・テスト双方に適用する Apply/Assign に分かれています。
// 学習済みの値は不変で、テストデータで再学習されることはありません。
package features

import (
	"math"

	"github.com/estatelab/rentfold/cluster"
	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
	"github.com/estatelab/rentfold/preprocessing"
	"gonum.org/v1/gonum/mat"
)

// UnassignedCluster は座標が欠損している行のクラスタ番号
const UnassignedCluster = -1

// ClusterOptions は座標クラスタリングの設定
type ClusterOptions struct {
	LatColumn string
	LonColumn string
	Column    string // 出力列名
	NClusters int
	NInit     int
	MaxIter   int
	Tol       float64
	Init      string // "k-means++" または "random"
	Seed      uint64
	// Sentinel は前処理の欠損埋め値。座標がこの値なら欠損として扱う
	Sentinel float64
}

// DefaultClusterOptions はデフォルトのクラスタリング設定を返す
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		LatColumn: "lat",
		LonColumn: "lon",
		Column:    "geo_cluster",
		NClusters: 50,
		NInit:     10,
		MaxIter:   300,
		Tol:       1e-4,
		Init:      "k-means++",
		Seed:      42,
		Sentinel:  -999,
	}
}

// ClusterModel は学習済みの標準化とクラスタ中心
type ClusterModel struct {
	opts   ClusterOptions
	scaler *preprocessing.StandardScaler
	kmeans *cluster.KMeansModel
}

// FitClusters は訓練データの有効な座標だけで標準化と k-means を学習する
func FitClusters(train *frame.Frame, opts ClusterOptions) (*ClusterModel, error) {
	coords, rows, err := validCoordinates(train, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewModelError("FitClusters", "no rows with valid coordinates", errors.ErrEmptyData)
	}

	scaler, err := preprocessing.FitStandardScaler(coords)
	if err != nil {
		return nil, err
	}
	scaled, err := scaler.Transform(coords)
	if err != nil {
		return nil, err
	}
	km, err := cluster.NewKMeans(
		cluster.WithNClusters(opts.NClusters),
		cluster.WithNInit(opts.NInit),
		cluster.WithMaxIter(opts.MaxIter),
		cluster.WithTol(opts.Tol),
		cluster.WithInit(opts.Init),
		cluster.WithSeed(opts.Seed),
	).Fit(scaled)
	if err != nil {
		return nil, errors.Wrap(err, "fit geo clusters")
	}

	log.GetLoggerWithName("features").Info("Geo clusters fitted",
		log.ModelNameKey, "ClusterModel",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(rows),
		log.ClustersKey, km.NClusters(),
		log.ClusterIterKey, km.NIter(),
		log.InertiaKey, km.Inertia(),
	)
	return &ClusterModel{opts: opts, scaler: scaler, kmeans: km}, nil
}

// Labels は各行のクラスタ番号を返す。座標欠損は UnassignedCluster
func (m *ClusterModel) Labels(f *frame.Frame) ([]int, error) {
	coords, rows, err := validCoordinates(f, m.opts)
	if err != nil {
		return nil, err
	}
	labels := make([]int, f.Len())
	for i := range labels {
		labels[i] = UnassignedCluster
	}
	if len(rows) == 0 {
		return labels, nil
	}
	scaled, err := m.scaler.Transform(coords)
	if err != nil {
		return nil, err
	}
	pred, err := m.kmeans.Predict(scaled)
	if err != nil {
		return nil, err
	}
	for k, i := range rows {
		labels[i] = pred[k]
	}
	return labels, nil
}

// Assign はクラスタ番号の整数列を追加した Frame を返す
func (m *ClusterModel) Assign(f *frame.Frame) (*frame.Frame, error) {
	labels, err := m.Labels(f)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(labels))
	for i, l := range labels {
		values[i] = float64(l)
	}
	return f.With(frame.NewInteger(m.opts.Column, values))
}

// Column はクラスタ番号の列名を返す
func (m *ClusterModel) Column() string { return m.opts.Column }

// NClusters はクラスタ数を返す
func (m *ClusterModel) NClusters() int { return m.kmeans.NClusters() }

// Centers はクラスタ中心を緯度・経度で返す
func (m *ClusterModel) Centers() [][2]float64 {
	scaled := m.kmeans.Centers()
	data := make([]float64, 0, 2*len(scaled))
	for _, c := range scaled {
		data = append(data, c...)
	}
	back, err := m.scaler.InverseTransform(mat.NewDense(len(scaled), 2, data))
	if err != nil {
		return nil
	}
	out := make([][2]float64, len(scaled))
	for i := range out {
		out[i] = [2]float64{back.At(i, 0), back.At(i, 1)}
	}
	return out
}

// validCoordinates は座標が揃っている行だけを (lat, lon) 行列にする
func validCoordinates(f *frame.Frame, opts ClusterOptions) (*mat.Dense, []int, error) {
	lat, ok := f.Column(opts.LatColumn)
	if !ok {
		return nil, nil, errors.NewColumnNotFoundError("geo cluster", opts.LatColumn)
	}
	lon, ok := f.Column(opts.LonColumn)
	if !ok {
		return nil, nil, errors.NewColumnNotFoundError("geo cluster", opts.LonColumn)
	}
	var rows []int
	var data []float64
	for i := 0; i < f.Len(); i++ {
		la, okLat := present(lat, i, opts.Sentinel)
		lo, okLon := present(lon, i, opts.Sentinel)
		if !okLat || !okLon {
			continue
		}
		rows = append(rows, i)
		data = append(data, la, lo)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return mat.NewDense(len(rows), 2, data), rows, nil
}

// present は i 行目の数値を返す。NaN・無限大・埋め値は欠損とみなす
func present(c *frame.Column, i int, sentinel float64) (float64, bool) {
	v := c.Float(i)
	if math.IsNaN(v) || math.IsInf(v, 0) || v == sentinel {
		return 0, false
	}
	return v, true
}
