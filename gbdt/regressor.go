package gbdt

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/estatelab/rentfold/core/model"
	"github.com/estatelab/rentfold/core/parallel"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Regressor is a gradient-boosted ensemble of regression trees.
//
// Numeric features are binned on the training rows with NaN kept in its own
// bin on the left side of every split. Columns listed in
// Params.CategoricalFeatures hold integer category codes and are split by
// grouping categories instead of by threshold.
type Regressor struct {
	model.BaseEstimator

	params     Params
	mappers    []*binMapper
	initScore  float64
	trees      []Tree
	importance []float64
	bestIter   int
	history    []float64
}

// NewRegressor creates a regressor. Zero-valued fields take their defaults.
func NewRegressor(params Params) *Regressor {
	return &Regressor{params: params.withDefaults(), bestIter: -1}
}

// Factory returns a model.Factory producing fresh regressors with params
func Factory(params Params) model.Factory {
	return func() model.Regressor { return NewRegressor(params) }
}

// Params returns the effective parameters
func (r *Regressor) Params() Params { return r.params }

// trainer holds the per-fit working state
type trainer struct {
	params  Params
	obj     objective
	mappers []*binMapper
	bins    [][]int32 // [feature][training position]
	y       []float64
	pred    []float64
	grad    []float64
	hess    []float64
	rng     *rand.Rand
}

// Fit trains on the rows listed in train. When valid is non-empty the
// validation metric is tracked each round and the ensemble is truncated to
// the best round; EarlyStoppingRounds > 0 additionally stops training early.
func (r *Regressor) Fit(X mat.Matrix, y []float64, train, valid []int) (err error) {
	defer errors.Recover(&err, "gbdt.Fit")

	r.Reset()
	r.trees, r.importance, r.history, r.bestIter = nil, nil, nil, -1

	if err := r.params.Validate(); err != nil {
		return err
	}
	nRows, nCols := X.Dims()
	if len(y) != nRows {
		return errors.NewDimensionError("gbdt.Fit", nRows, len(y), 0)
	}
	if len(train) == 0 {
		return errors.NewTrainingError(-1, errors.ErrEmptyData)
	}
	for _, idx := range [][]int{train, valid} {
		for _, i := range idx {
			if i < 0 || i >= nRows {
				return errors.NewValueError("gbdt.Fit", "row index out of range")
			}
		}
	}
	for _, i := range train {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return errors.NewTrainingError(-1, errors.Wrapf(errors.ErrDegenerateTarget, "row %d has target %v", i, y[i]))
		}
	}
	for _, c := range r.params.CategoricalFeatures {
		if c < 0 || c >= nCols {
			return errors.NewValidationError("categorical_features", "index out of range", c)
		}
	}

	start := time.Now()
	logger := log.GetLoggerWithName("gbdt")
	dense := asDense(X)
	obj, _ := newObjective(r.params.Loss)
	metric, _ := newMetric(r.params.EvalMetric)

	t := &trainer{
		params: r.params,
		obj:    obj,
		y:      make([]float64, len(train)),
		pred:   make([]float64, len(train)),
		grad:   make([]float64, len(train)),
		hess:   make([]float64, len(train)),
		rng:    rand.New(rand.NewPCG(r.params.RandomSeed, r.params.RandomSeed)),
	}
	for p, i := range train {
		t.y[p] = y[i]
	}
	t.buildBins(dense, train, nCols)

	r.mappers = t.mappers
	r.initScore = obj.initScore(t.y)
	for p := range t.pred {
		t.pred[p] = r.initScore
	}

	validY := make([]float64, len(valid))
	validPred := make([]float64, len(valid))
	for k, i := range valid {
		validY[k] = y[i]
		validPred[k] = r.initScore
	}
	es := newEarlyStopping(r.params.EarlyStoppingRounds)

	for iter := 0; iter < r.params.Iterations; iter++ {
		for p := range t.y {
			t.grad[p] = obj.gradient(t.pred[p], t.y[p])
			t.hess[p] = obj.hessian(t.pred[p], t.y[p])
		}

		tree := t.growTree(t.sample())
		if err := errors.CheckNumericalStability("gbdt.leaf_values", tree.leafValues(), iter); err != nil {
			return errors.NewTrainingError(-1, err)
		}
		r.trees = append(r.trees, tree)

		r.accumulate(&tree, dense, train, t.pred)

		if len(valid) > 0 {
			r.accumulate(&tree, dense, valid, validPred)
			score, err := metric(validY, validPred)
			if err != nil {
				return errors.NewTrainingError(-1, err)
			}
			r.history = append(r.history, score)
			if es.update(iter, score) {
				logger.Debug("Early stopping",
					log.IterationKey, iter,
					log.BestIterationKey, es.bestIteration,
					log.LossKey, es.bestScore,
				)
				break
			}
		}

		if r.params.Verbose > 0 && iter%r.params.Verbose == 0 {
			logger.Debug("Training progress",
				log.IterationKey, iter,
				log.LossKey, t.trainLoss(),
			)
		}
	}

	if len(valid) > 0 && es.bestIteration >= 0 {
		r.trees = r.trees[:es.bestIteration+1]
		r.bestIter = es.bestIteration
	} else {
		r.bestIter = len(r.trees) - 1
	}
	r.importance = gainImportance(r.trees, nCols)
	r.SetFitted(nCols)

	leaves, depth := 0, 0
	for k := range r.trees {
		leaves += r.trees[k].NumLeaves()
		depth = max(depth, r.trees[k].Depth())
	}

	logger.Info("GBDT fitted",
		log.ModelNameKey, "GBDTRegressor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(train),
		log.FeaturesKey, nCols,
		log.IterationsKey, len(r.trees),
		log.BestIterationKey, r.bestIter,
		log.LeavesKey, leaves,
		log.TreeDepthKey, depth,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict returns the raw ensemble output for every row of X
func (r *Regressor) Predict(X mat.Matrix) ([]float64, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("GBDTRegressor", "Predict")
	}
	nRows, nCols := X.Dims()
	if nCols != r.NFeatures() {
		return nil, errors.NewDimensionError("gbdt.Predict", r.NFeatures(), nCols, 1)
	}
	out := make([]float64, nRows)
	rows := make([]int, nRows)
	for i := range rows {
		rows[i] = i
		out[i] = r.initScore
	}
	dense := asDense(X)
	for k := range r.trees {
		r.accumulate(&r.trees[k], dense, rows, out)
	}
	return out, nil
}

// accumulate adds the tree output of dense rows idx to pred (pred is aligned with idx)
func (r *Regressor) accumulate(tree *Tree, dense *mat.Dense, idx []int, pred []float64) {
	parallel.ParallelizeWithThreshold(r.params.NumThreads, len(idx), 4096, func(start, end int) {
		for k := start; k < end; k++ {
			pred[k] += tree.predict(dense.RawRowView(idx[k]), r.mappers)
		}
	})
}

// FeatureImportance returns each feature's share (in percent) of the total split gain
func (r *Regressor) FeatureImportance() []float64 {
	out := make([]float64, len(r.importance))
	copy(out, r.importance)
	return out
}

// BestIteration returns the zero-based round kept as the last tree
func (r *Regressor) BestIteration() int { return r.bestIter }

// NumTrees returns the number of trees in the ensemble
func (r *Regressor) NumTrees() int { return len(r.trees) }

// EvalHistory returns the validation metric of each round that was trained
func (r *Regressor) EvalHistory() []float64 {
	out := make([]float64, len(r.history))
	copy(out, r.history)
	return out
}

// InitScore returns the constant prediction before the first tree
func (r *Regressor) InitScore() float64 { return r.initScore }

// Trees returns the fitted trees
func (r *Regressor) Trees() []Tree { return r.trees }

func (t *trainer) buildBins(dense *mat.Dense, train []int, nCols int) {
	t.mappers = make([]*binMapper, nCols)
	t.bins = make([][]int32, nCols)
	parallel.ParallelizeN(t.params.NumThreads, nCols, func(start, end int) {
		values := make([]float64, len(train))
		for j := start; j < end; j++ {
			for p, i := range train {
				values[p] = dense.At(i, j)
			}
			var m *binMapper
			if t.params.isCategoricalFeature(j) {
				m = fitCategoricalBins(values)
			} else {
				m = fitNumericBins(values, t.params.MaxBin)
			}
			b := make([]int32, len(train))
			for p, v := range values {
				b[p] = int32(m.bin(v))
			}
			t.mappers[j] = m
			t.bins[j] = b
		}
	})
}

// sample returns the training positions used to grow the next tree
func (t *trainer) sample() []int {
	n := len(t.y)
	rows := make([]int, 0, n)
	if t.params.Subsample >= 1 {
		for p := 0; p < n; p++ {
			rows = append(rows, p)
		}
		return rows
	}
	for p := 0; p < n; p++ {
		if t.rng.Float64() < t.params.Subsample {
			rows = append(rows, p)
		}
	}
	if len(rows) == 0 {
		rows = append(rows, t.rng.IntN(n))
	}
	return rows
}

// growTree builds one depth-limited tree on the given training positions
func (t *trainer) growTree(rows []int) Tree {
	var tree Tree
	t.growNode(&tree, rows, 0)
	return tree
}

func (t *trainer) growNode(tree *Tree, rows []int, depth int) int {
	idx := len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, Node{Left: -1, Right: -1, Count: len(rows)})

	if depth < t.params.Depth && len(rows) >= 2*t.params.MinDataInLeaf {
		if split := t.findBestSplit(rows); split.valid() {
			left, right := t.partition(rows, split)
			n := &tree.Nodes[idx]
			n.Feature = split.feature
			n.Gain = split.gain
			n.Categorical = split.categories != nil
			n.Threshold = split.threshold
			n.Categories = split.categories

			l := t.growNode(tree, left, depth+1)
			r := t.growNode(tree, right, depth+1)
			tree.Nodes[idx].Left = l
			tree.Nodes[idx].Right = r
			return idx
		}
	}
	tree.Nodes[idx].Value = t.params.LearningRate * t.leafValue(rows)
	return idx
}

// findBestSplit searches all features in parallel; ties keep the lower feature index
func (t *trainer) findBestSplit(rows []int) splitInfo {
	splits := make([]splitInfo, len(t.mappers))
	parallel.ParallelizeWithThreshold(t.params.NumThreads, len(t.mappers), 8, func(start, end int) {
		for j := start; j < end; j++ {
			m := t.mappers[j]
			h := buildHistogram(t.bins[j], rows, t.grad, t.hess, m.numBins())
			if m.categorical {
				splits[j] = t.findCategoricalSplit(j, h)
			} else {
				splits[j] = t.findNumericSplit(j, h)
			}
		}
	})

	best := splitInfo{gain: math.Inf(-1)}
	for _, s := range splits {
		if s.valid() && s.gain > best.gain {
			best = s
		}
	}
	return best
}

func (t *trainer) partition(rows []int, split splitInfo) (left, right []int) {
	bins := t.bins[split.feature]
	for _, p := range rows {
		if split.leftBins[bins[p]] {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	return left, right
}

// leafValue is the Newton step for smooth losses, and the residual median
// when the objective renews leaves.
func (t *trainer) leafValue(rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	if t.obj.renewsLeaves() {
		residuals := make([]float64, len(rows))
		for k, p := range rows {
			residuals[k] = t.y[p] - t.pred[p]
		}
		return calculateMedian(residuals)
	}
	var sumGrad, sumHess float64
	for _, p := range rows {
		sumGrad += t.grad[p]
		sumHess += t.hess[p]
	}
	return -sumGrad / (sumHess + t.params.L2Reg)
}

func (t *trainer) trainLoss() float64 {
	sum := 0.0
	for p := range t.y {
		sum += t.obj.loss(t.pred[p], t.y[p])
	}
	return sum / float64(len(t.y))
}

func (t *Tree) leafValues() []float64 {
	var out []float64
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			out = append(out, t.Nodes[i].Value)
		}
	}
	return out
}

// gainImportance sums split gains per feature and scales them to 100
func gainImportance(trees []Tree, nFeatures int) []float64 {
	imp := make([]float64, nFeatures)
	total := 0.0
	for k := range trees {
		for _, n := range trees[k].Nodes {
			if !n.IsLeaf() {
				imp[n.Feature] += n.Gain
				total += n.Gain
			}
		}
	}
	if total > 0 {
		for j := range imp {
			imp[j] = imp[j] / total * 100
		}
	}
	return imp
}

func asDense(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(X)
}
