package gbdt

import (
	"math"
	"sort"
)

// categoryInfo stores gradient statistics of one category
type categoryInfo struct {
	bin     int
	count   int
	sumGrad float64
	sumHess float64
}

// isCategoricalFeature checks if a feature is categorical
func (p Params) isCategoricalFeature(feature int) bool {
	for _, c := range p.CategoricalFeatures {
		if c == feature {
			return true
		}
	}
	return false
}

// findCategoricalSplit orders the node's categories by smoothed gradient
// ratio and scans prefixes of that order.
func (t *trainer) findCategoricalSplit(feature int, h []histBin) splitInfo {
	best := splitInfo{feature: feature, gain: math.Inf(-1)}

	cats := make([]categoryInfo, 0, len(h))
	var totalGrad, totalHess float64
	total := 0
	for b, s := range h {
		if s.count == 0 {
			continue
		}
		cats = append(cats, categoryInfo{bin: b, count: s.count, sumGrad: s.grad, sumHess: s.hess})
		totalGrad += s.grad
		totalHess += s.hess
		total += s.count
	}
	if len(cats) < 2 {
		return best
	}

	smooth := t.params.CatSmooth
	sort.Slice(cats, func(i, j int) bool {
		ri := cats[i].sumGrad / (cats[i].sumHess + smooth)
		rj := cats[j].sumGrad / (cats[j].sumHess + smooth)
		if ri != rj {
			return ri < rj
		}
		return cats[i].bin < cats[j].bin
	})

	var leftGrad, leftHess float64
	leftCount := 0
	bestPrefix := -1
	for i := 0; i < len(cats)-1; i++ {
		leftGrad += cats[i].sumGrad
		leftHess += cats[i].sumHess
		leftCount += cats[i].count
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
			bestPrefix = i
		}
	}
	if bestPrefix < 0 {
		return best
	}

	best.leftBins = make([]bool, len(h))
	for i := 0; i <= bestPrefix; i++ {
		best.leftBins[cats[i].bin] = true
		// bin 0 is the missing/unseen key -1
		best.categories = append(best.categories, cats[i].bin-1)
	}
	sort.Ints(best.categories)
	return best
}
