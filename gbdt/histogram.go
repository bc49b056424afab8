package gbdt

import (
	"math"
)

// histBin accumulates gradient statistics of one bin
type histBin struct {
	grad  float64
	hess  float64
	count int
}

// splitInfo contains information about a candidate split
type splitInfo struct {
	feature    int
	gain       float64
	leftBins   []bool // indexed by bin; true = goes left
	threshold  float64
	categories []int
	leftCount  int
	rightCount int
}

func (s *splitInfo) valid() bool {
	return s.leftBins != nil && s.gain > 0 && !math.IsNaN(s.gain)
}

// buildHistogram sums gradients per bin over the node's rows
func buildHistogram(bins []int32, rows []int, grad, hess []float64, numBins int) []histBin {
	h := make([]histBin, numBins)
	for _, r := range rows {
		b := &h[bins[r]]
		b.grad += grad[r]
		b.hess += hess[r]
		b.count++
	}
	return h
}

// leafScore is G^2/(H+lambda)
func leafScore(g, h, lambda float64) float64 {
	return g * g / (h + lambda)
}

// splitGain calculates the gain from a split
func splitGain(lg, lh, rg, rh, lambda float64) float64 {
	return 0.5 * (leafScore(lg, lh, lambda) + leafScore(rg, rh, lambda) - leafScore(lg+rg, lh+rh, lambda))
}

// findNumericSplit scans bin boundaries left to right. The missing bin is
// always on the left side.
func (t *trainer) findNumericSplit(feature int, h []histBin) splitInfo {
	best := splitInfo{feature: feature, gain: math.Inf(-1)}
	var totalGrad, totalHess float64
	total := 0
	for _, b := range h {
		totalGrad += b.grad
		totalHess += b.hess
		total += b.count
	}

	var leftGrad, leftHess float64
	leftCount := 0
	bestK := -1
	for k := 0; k < len(h)-1; k++ {
		leftGrad += h[k].grad
		leftHess += h[k].hess
		leftCount += h[k].count
		if h[k].count == 0 {
			continue
		}
		rightCount := total - leftCount
		if leftCount < t.params.MinDataInLeaf {
			continue
		}
		if rightCount < t.params.MinDataInLeaf {
			break
		}
		gain := splitGain(leftGrad, leftHess, totalGrad-leftGrad, totalHess-leftHess, t.params.L2Reg)
		if gain > best.gain {
			best.gain = gain
			best.leftCount = leftCount
			best.rightCount = rightCount
			bestK = k
		}
	}
	if bestK < 0 {
		return best
	}
	best.threshold = t.mappers[feature].threshold(bestK)
	best.leftBins = make([]bool, len(h))
	for k := 0; k <= bestK; k++ {
		best.leftBins[k] = true
	}
	return best
}
