package features

import (
	"sort"

	"github.com/estatelab/rentfold/core/frame"
)

// OverlapReport は1列分の訓練・テスト間のカテゴリ重複
type OverlapReport struct {
	Column         string
	TrainUnique    int
	TestUnique     int
	Overlap        int
	TestOnly       int
	TrainOnly      int
	TestOnlyValues []string // ソート済み
	// ValueCoverage はテストの異なり値のうち訓練にもある割合（%）
	ValueCoverage float64
	// RecordCoverage はテストの行のうち値が訓練にもある割合（%）
	RecordCoverage float64
}

// CategoryOverlap はターゲットエンコーディングがテストでどれだけ効くかを調べる
//
// 欠損値は数えない。どちらかに無い列は結果に含めない。
func CategoryOverlap(train, test *frame.Frame, columns []string) []OverlapReport {
	var reports []OverlapReport
	for _, name := range columns {
		tc, ok1 := train.Column(name)
		sc, ok2 := test.Column(name)
		if !ok1 || !ok2 {
			continue
		}
		trainSet := uniqueValues(tc)
		testSet := uniqueValues(sc)

		r := OverlapReport{Column: name, TrainUnique: len(trainSet), TestUnique: len(testSet)}
		for v := range testSet {
			if _, ok := trainSet[v]; ok {
				r.Overlap++
			} else {
				r.TestOnlyValues = append(r.TestOnlyValues, v)
			}
		}
		sort.Strings(r.TestOnlyValues)
		r.TestOnly = len(r.TestOnlyValues)
		r.TrainOnly = r.TrainUnique - r.Overlap
		if r.TestUnique > 0 {
			r.ValueCoverage = float64(r.Overlap) / float64(r.TestUnique) * 100
		}

		covered := 0
		for i := 0; i < sc.Len(); i++ {
			if sc.IsMissing(i) {
				continue
			}
			if _, ok := trainSet[sc.Str(i)]; ok {
				covered++
			}
		}
		if sc.Len() > 0 {
			r.RecordCoverage = float64(covered) / float64(sc.Len()) * 100
		}
		reports = append(reports, r)
	}
	return reports
}

func uniqueValues(c *frame.Column) map[string]struct{} {
	set := make(map[string]struct{})
	for i := 0; i < c.Len(); i++ {
		if !c.IsMissing(i) {
			set[c.Str(i)] = struct{}{}
		}
	}
	return set
}
