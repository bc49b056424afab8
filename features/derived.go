package features

import (
	"math"
	"strconv"

	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/pkg/errors"
)

// DerivedOptions は派生特徴量の設定
type DerivedOptions struct {
	ReferenceYear int
	PriceColumn   string
	Sentinel      float64
}

// DefaultDerivedOptions はデフォルトの派生特徴量設定を返す
func DefaultDerivedOptions() DerivedOptions {
	return DerivedOptions{ReferenceYear: 2023, PriceColumn: "money_room", Sentinel: -999}
}

type derivedFeature struct {
	name    string
	sources []string
	integer bool
	compute func(v []float64) float64
}

func derivedFeatures(opts DerivedOptions) []derivedFeature {
	ref := float64(opts.ReferenceYear)
	month := func(ym float64) float64 { return math.Mod(math.Trunc(ym), 100) }
	flag := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}
	return []derivedFeature{
		{name: "building_age", sources: []string{"year_built"}, compute: func(v []float64) float64 {
			return math.Max(ref-v[0], 0)
		}},
		{name: "price_per_area", sources: []string{opts.PriceColumn, "house_area"}, compute: func(v []float64) float64 {
			return errors.SafeDivide(v[0], v[1]+1)
		}},
		{name: "kyoueki_ratio", sources: []string{"money_kyoueki", opts.PriceColumn}, compute: func(v []float64) float64 {
			return errors.SafeDivide(v[0], v[1]+1)
		}},
		{name: "target_year", sources: []string{"target_ym"}, integer: true, compute: func(v []float64) float64 {
			return math.Floor(math.Trunc(v[0]) / 100)
		}},
		{name: "target_month", sources: []string{"target_ym"}, integer: true, compute: func(v []float64) float64 {
			return month(v[0])
		}},
		{name: "is_january", sources: []string{"target_ym"}, integer: true, compute: func(v []float64) float64 {
			return flag(month(v[0]) == 1)
		}},
		{name: "is_july", sources: []string{"target_ym"}, integer: true, compute: func(v []float64) float64 {
			return flag(month(v[0]) == 7)
		}},
		{name: "log_walk_distance1", sources: []string{"walk_distance1"}, compute: func(v []float64) float64 {
			return math.Log1p(v[0])
		}},
	}
}

// DerivedFeatures は築年数・比率・対象年月・徒歩距離の対数などを追加する
//
// 各特徴量は元になる列が訓練・テストの両方にある場合だけ作られ、
// 無い場合は黙ってスキップする。元の値が欠損なら結果も NaN。
func DerivedFeatures(train, test *frame.Frame, opts DerivedOptions) (*frame.Frame, *frame.Frame, error) {
	var trainCols, testCols []*frame.Column
	for _, feat := range derivedFeatures(opts) {
		if !hasAll(train, feat.sources) || !hasAll(test, feat.sources) {
			continue
		}
		trainCols = append(trainCols, computeDerived(train, feat, opts.Sentinel))
		testCols = append(testCols, computeDerived(test, feat, opts.Sentinel))
	}
	if len(trainCols) == 0 {
		return train, test, nil
	}
	trainOut, err := train.With(trainCols...)
	if err != nil {
		return nil, nil, err
	}
	testOut, err := test.With(testCols...)
	if err != nil {
		return nil, nil, err
	}
	return trainOut, testOut, nil
}

func hasAll(f *frame.Frame, names []string) bool {
	for _, n := range names {
		if !f.HasColumn(n) {
			return false
		}
	}
	return true
}

func computeDerived(f *frame.Frame, feat derivedFeature, sentinel float64) *frame.Column {
	srcs := make([]*frame.Column, len(feat.sources))
	for k, n := range feat.sources {
		srcs[k], _ = f.Column(n)
	}
	out := make([]float64, f.Len())
	args := make([]float64, len(srcs))
	for i := range out {
		ok := true
		for k, c := range srcs {
			args[k], ok = numericAt(c, i, sentinel)
			if !ok {
				break
			}
		}
		if !ok {
			out[i] = math.NaN()
			continue
		}
		out[i] = feat.compute(args)
	}
	if feat.integer {
		return frame.NewInteger(feat.name, out)
	}
	return frame.NewNumeric(feat.name, out)
}

// numericAt はカテゴリ化された整数列も数値として読む
func numericAt(c *frame.Column, i int, sentinel float64) (float64, bool) {
	if c.Kind() == frame.Numeric {
		return present(c, i, sentinel)
	}
	v, err := strconv.ParseFloat(c.Str(i), 64)
	if err != nil || v == sentinel {
		return 0, false
	}
	return v, true
}
