package gbdt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumericBinsFewValues(t *testing.T) {
	m := fitNumericBins([]float64{3, 1, 2, 2, math.NaN()}, 10)
	assert.Equal(t, []float64{1.5, 2.5}, m.bounds)
	assert.Equal(t, 4, m.numBins())

	assert.Equal(t, missingBin, m.bin(math.NaN()))
	assert.Equal(t, 1, m.bin(1))
	assert.Equal(t, 1, m.bin(-100))
	assert.Equal(t, 2, m.bin(2))
	assert.Equal(t, 3, m.bin(3))
	assert.Equal(t, 3, m.bin(100))

	assert.True(t, math.IsInf(m.threshold(0), -1))
	assert.Equal(t, 1.5, m.threshold(1))
}

func TestNumericBinsQuantiles(t *testing.T) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}
	m := fitNumericBins(values, 4)
	assert.Len(t, m.bounds, 3)
	assert.Equal(t, []float64{249.5, 499.5, 749.5}, m.bounds)
}

func TestNumericBinsAllMissing(t *testing.T) {
	m := fitNumericBins([]float64{math.NaN(), math.NaN()}, 10)
	assert.Equal(t, 2, m.numBins())
	assert.Equal(t, missingBin, m.bin(math.NaN()))
}

func TestCategoricalBins(t *testing.T) {
	m := fitCategoricalBins([]float64{0, 2, 2, -1, math.NaN()})
	assert.Equal(t, 4, m.numBins())
	assert.Equal(t, 0, m.categoryKey(0))
	assert.Equal(t, -1, m.categoryKey(1), "code never seen in training")
	assert.Equal(t, 2, m.categoryKey(2))
	assert.Equal(t, -1, m.categoryKey(9))
	assert.Equal(t, -1, m.categoryKey(1.5))
	assert.Equal(t, missingBin, m.bin(math.NaN()))
	assert.Equal(t, 3, m.bin(2))
}

func TestNodeRouting(t *testing.T) {
	num := Node{Threshold: 1.5}
	assert.True(t, num.goesLeft(math.NaN(), nil), "missing goes left")
	assert.True(t, num.goesLeft(1.5, nil))
	assert.False(t, num.goesLeft(2, nil))

	m := fitCategoricalBins([]float64{0, 1, 2})
	cat := Node{Categorical: true, Categories: []int{-1, 2}}
	assert.True(t, cat.goesLeft(2, m))
	assert.True(t, cat.goesLeft(7, m), "unseen codes follow missing")
	assert.False(t, cat.goesLeft(0, m))
}
