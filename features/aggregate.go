package features

import (
	"math"
	"sort"

	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultAggColumns はクラスタごとに平均・中央値を取る数値列
var DefaultAggColumns = []string{"house_area", "year_built", "walk_distance1", "money_kyoueki"}

// AggregateOptions はクラスタ集約の設定
type AggregateOptions struct {
	ClusterColumn string
	AggColumns    []string
	Sentinel      float64
}

// DefaultAggregateOptions はデフォルトの集約設定を返す
func DefaultAggregateOptions() AggregateOptions {
	return AggregateOptions{
		ClusterColumn: "geo_cluster",
		AggColumns:    append([]string{}, DefaultAggColumns...),
		Sentinel:      -999,
	}
}

// ClusterStats は1クラスタ分の訓練データの統計量
type ClusterStats struct {
	TargetMean   float64
	TargetMedian float64
	TargetStd    float64 // 不偏標準偏差。1件なら NaN
	TargetMin    float64
	TargetMax    float64
	Count        int
	ColumnMean   map[string]float64
	ColumnMedian map[string]float64
}

// ClusterAggregates はクラスタ番号ごとの統計量の表
type ClusterAggregates struct {
	clusterColumn string
	columns       []string
	stats         map[int]ClusterStats
}

// FitClusterAggregates は訓練データのクラスタごとに統計量を計算する
//
// 未割り当てのクラスタ番号 -1 も1つのグループとして扱う。
// AggColumns のうち訓練データに無い列は黙って除外する。
func FitClusterAggregates(train *frame.Frame, target []float64, opts AggregateOptions) (*ClusterAggregates, error) {
	if len(target) != train.Len() {
		return nil, errors.NewDimensionError("FitClusterAggregates", train.Len(), len(target), 0)
	}
	ids, err := clusterIDs(train, opts.ClusterColumn)
	if err != nil {
		return nil, err
	}

	var cols []*frame.Column
	var names []string
	for _, name := range opts.AggColumns {
		if c, ok := train.Column(name); ok && c.Kind() == frame.Numeric {
			cols = append(cols, c)
			names = append(names, name)
		}
	}

	groups := make(map[int][]int)
	for i, id := range ids {
		groups[id] = append(groups[id], i)
	}

	stats := make(map[int]ClusterStats, len(groups))
	for id, rows := range groups {
		ys := make([]float64, 0, len(rows))
		for _, i := range rows {
			if !math.IsNaN(target[i]) {
				ys = append(ys, target[i])
			}
		}
		s := ClusterStats{
			TargetMean:   mean(ys),
			TargetMedian: median(ys),
			TargetStd:    sampleStd(ys),
			TargetMin:    math.NaN(),
			TargetMax:    math.NaN(),
			Count:        len(rows),
			ColumnMean:   make(map[string]float64, len(cols)),
			ColumnMedian: make(map[string]float64, len(cols)),
		}
		if len(ys) > 0 {
			s.TargetMin = floats.Min(ys)
			s.TargetMax = floats.Max(ys)
		}
		for k, c := range cols {
			vals := make([]float64, 0, len(rows))
			for _, i := range rows {
				if v, ok := present(c, i, opts.Sentinel); ok {
					vals = append(vals, v)
				}
			}
			s.ColumnMean[names[k]] = mean(vals)
			s.ColumnMedian[names[k]] = median(vals)
		}
		stats[id] = s
	}
	return &ClusterAggregates{clusterColumn: opts.ClusterColumn, columns: names, stats: stats}, nil
}

// Stats はクラスタ番号の統計量を返す
func (a *ClusterAggregates) Stats(id int) (ClusterStats, bool) {
	s, ok := a.stats[id]
	return s, ok
}

// FeatureNames は Apply が追加する列名を順序通りに返す
func (a *ClusterAggregates) FeatureNames() []string {
	names := []string{
		"cluster_target_mean",
		"cluster_target_median",
		"cluster_target_std",
		"cluster_target_min",
		"cluster_target_max",
		"cluster_count",
	}
	for _, c := range a.columns {
		names = append(names, "cluster_"+c+"_mean", "cluster_"+c+"_median")
	}
	return names
}

// Apply はクラスタ番号で統計量を結合した Frame を返す
//
// 学習時に無かったクラスタ番号の行は全て NaN になる。
func (a *ClusterAggregates) Apply(f *frame.Frame) (*frame.Frame, error) {
	ids, err := clusterIDs(f, a.clusterColumn)
	if err != nil {
		return nil, err
	}
	names := a.FeatureNames()
	out := make([][]float64, len(names))
	for k := range out {
		out[k] = make([]float64, f.Len())
	}
	for i, id := range ids {
		s, ok := a.stats[id]
		if !ok {
			for k := range out {
				out[k][i] = math.NaN()
			}
			continue
		}
		row := []float64{s.TargetMean, s.TargetMedian, s.TargetStd, s.TargetMin, s.TargetMax, float64(s.Count)}
		for _, c := range a.columns {
			row = append(row, s.ColumnMean[c], s.ColumnMedian[c])
		}
		for k, v := range row {
			out[k][i] = v
		}
	}
	cols := make([]*frame.Column, len(names))
	for k, name := range names {
		cols[k] = frame.NewNumeric(name, out[k])
	}
	return f.With(cols...)
}

func clusterIDs(f *frame.Frame, column string) ([]int, error) {
	c, ok := f.Column(column)
	if !ok {
		return nil, errors.NewColumnNotFoundError("cluster aggregates", column)
	}
	ids := make([]int, f.Len())
	for i := range ids {
		v := c.Float(i)
		if math.IsNaN(v) {
			ids[i] = UnassignedCluster
			continue
		}
		ids[i] = int(v)
	}
	return ids, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// median は偶数件なら中央2値の平均を返す
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}
