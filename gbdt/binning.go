package gbdt

import (
	"math"
	"sort"
)

// missingBin holds NaN values and categories not seen while fitting
const missingBin = 0

// binMapper discretizes one feature. Bins are fitted on the training rows only.
//
// Numeric features: bin 0 is missing, bin k (k >= 1) holds values in
// (bounds[k-2], bounds[k-1]]. Categorical features: bin 0 is missing or
// unseen, bin c+1 holds category code c.
type binMapper struct {
	categorical bool
	bounds      []float64
	seen        []bool
}

func (m *binMapper) numBins() int {
	if m.categorical {
		return len(m.seen) + 1
	}
	return len(m.bounds) + 2
}

func (m *binMapper) bin(v float64) int {
	if m.categorical {
		return m.categoryKey(v) + 1
	}
	if math.IsNaN(v) {
		return missingBin
	}
	return 1 + sort.SearchFloat64s(m.bounds, v)
}

// categoryKey maps a raw value to its category code, or -1 when missing or unseen
func (m *binMapper) categoryKey(v float64) int {
	if math.IsNaN(v) || v < 0 || v != math.Trunc(v) || v >= float64(len(m.seen)) {
		return -1
	}
	c := int(v)
	if !m.seen[c] {
		return -1
	}
	return c
}

// threshold returns the raw split value for "bins 0..k go left"
func (m *binMapper) threshold(k int) float64 {
	if k == 0 {
		return math.Inf(-1)
	}
	return m.bounds[k-1]
}

func fitCategoricalBins(values []float64) *binMapper {
	maxCode := -1
	for _, v := range values {
		if math.IsNaN(v) || v < 0 || v != math.Trunc(v) {
			continue
		}
		if int(v) > maxCode {
			maxCode = int(v)
		}
	}
	m := &binMapper{categorical: true, seen: make([]bool, maxCode+1)}
	for _, v := range values {
		if math.IsNaN(v) || v < 0 || v != math.Trunc(v) {
			continue
		}
		m.seen[int(v)] = true
	}
	return m
}

// fitNumericBins finds at most maxBin-1 bin boundaries.
// Few distinct values get one bin each; otherwise boundaries follow quantiles.
func fitNumericBins(values []float64, maxBin int) *binMapper {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	sort.Float64s(sorted)
	if len(sorted) == 0 {
		return &binMapper{}
	}

	unique := []float64{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			unique = append(unique, sorted[i])
		}
	}

	if len(unique) <= maxBin {
		bounds := make([]float64, len(unique)-1)
		for i := range bounds {
			bounds[i] = midpoint(unique[i], unique[i+1])
		}
		return &binMapper{bounds: bounds}
	}

	var bounds []float64
	n := len(sorted)
	for k := 1; k < maxBin; k++ {
		q := sorted[k*n/maxBin]
		pos := sort.SearchFloat64s(unique, q)
		if pos == 0 {
			continue
		}
		b := midpoint(unique[pos-1], unique[pos])
		if len(bounds) == 0 || b > bounds[len(bounds)-1] {
			bounds = append(bounds, b)
		}
	}
	return &binMapper{bounds: bounds}
}

func midpoint(a, b float64) float64 {
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a
	}
	return a + (b-a)/2
}
