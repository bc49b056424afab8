package features

import (
	"math"

	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
)

// DefaultEncodingColumns はターゲットエンコーディングするカテゴリ列
var DefaultEncodingColumns = []string{"city", "prefecture", "eki_name1"}

// Stat はカテゴリ1値分の訓練データの統計量
type Stat struct {
	Mean    float64
	Count   int
	Encoded float64
}

// EncodingTable は1列分のエンコーディング表
type EncodingTable struct {
	Column     string
	Values     map[string]Stat
	GlobalMean float64
}

// Lookup はカテゴリ値の平滑化済みの値と訓練件数を返す
//
// 訓練に無かった値は全体平均と件数0になる。
func (t *EncodingTable) Lookup(value string) (float64, int) {
	if s, ok := t.Values[value]; ok {
		return s.Encoded, s.Count
	}
	return t.GlobalMean, 0
}

// TargetEncoding は学習済みのターゲットエンコーディング
type TargetEncoding struct {
	Smoothing float64
	Tables    []EncodingTable
}

// Smooth は平滑化した値を計算する
//
//	(categoryMean*count + globalMean*smoothing) / (count + smoothing)
func Smooth(categoryMean float64, count int, globalMean, smoothing float64) float64 {
	n := float64(count)
	return (categoryMean*n + globalMean*smoothing) / (n + smoothing)
}

// FitTargetEncoding は訓練データだけからカテゴリごとの統計量を計算する
//
// 訓練データに無い列は黙って除外する。欠損値の行は集計しない。
func FitTargetEncoding(train *frame.Frame, target []float64, columns []string, smoothing float64) (*TargetEncoding, error) {
	if len(target) != train.Len() {
		return nil, errors.NewDimensionError("FitTargetEncoding", train.Len(), len(target), 0)
	}
	if smoothing < 0 {
		return nil, errors.NewValidationError("smoothing", "must be non-negative", smoothing)
	}

	sum, n := 0.0, 0
	for _, y := range target {
		if !math.IsNaN(y) {
			sum += y
			n++
		}
	}
	if n == 0 {
		return nil, errors.NewModelError("FitTargetEncoding", "no finite target values", errors.ErrDegenerateTarget)
	}
	globalMean := sum / float64(n)

	te := &TargetEncoding{Smoothing: smoothing}
	for _, name := range columns {
		c, ok := train.Column(name)
		if !ok {
			continue
		}
		sums := make(map[string]float64)
		counts := make(map[string]int)
		for i := 0; i < c.Len(); i++ {
			if c.IsMissing(i) || math.IsNaN(target[i]) {
				continue
			}
			v := c.Str(i)
			sums[v] += target[i]
			counts[v]++
		}
		table := EncodingTable{Column: name, Values: make(map[string]Stat, len(counts)), GlobalMean: globalMean}
		for v, cnt := range counts {
			m := sums[v] / float64(cnt)
			table.Values[v] = Stat{Mean: m, Count: cnt, Encoded: Smooth(m, cnt, globalMean, smoothing)}
		}
		te.Tables = append(te.Tables, table)
	}

	log.GetLoggerWithName("features").Info("Target encoding fitted",
		log.ModelNameKey, "TargetEncoding",
		log.OperationKey, log.OperationFit,
		log.FeaturesKey, len(te.Tables),
		"smoothing", smoothing,
	)
	return te, nil
}

// Apply は "<col>_target_encoded" と "<col>_count" を追加した Frame を返す
func (te *TargetEncoding) Apply(f *frame.Frame) (*frame.Frame, error) {
	var cols []*frame.Column
	for k := range te.Tables {
		table := &te.Tables[k]
		c, ok := f.Column(table.Column)
		if !ok {
			return nil, errors.NewColumnNotFoundError("TargetEncoding.Apply", table.Column)
		}
		encoded := make([]float64, f.Len())
		counts := make([]float64, f.Len())
		for i := 0; i < f.Len(); i++ {
			if c.IsMissing(i) {
				encoded[i] = table.GlobalMean
				continue
			}
			e, n := table.Lookup(c.Str(i))
			encoded[i], counts[i] = e, float64(n)
		}
		cols = append(cols,
			frame.NewNumeric(table.Column+"_target_encoded", encoded),
			frame.NewInteger(table.Column+"_count", counts),
		)
	}
	if len(cols) == 0 {
		return f, nil
	}
	return f.With(cols...)
}

// Table は列名のエンコーディング表を返す
func (te *TargetEncoding) Table(column string) (*EncodingTable, bool) {
	for k := range te.Tables {
		if te.Tables[k].Column == column {
			return &te.Tables[k], true
		}
	}
	return nil, false
}
