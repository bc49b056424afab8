package gbdt

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/estatelab/rentfold/core/model"
	"github.com/estatelab/rentfold/pkg/errors"
)

func allRows(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func smallParams() Params {
	p := DefaultParams()
	p.Iterations = 200
	p.LearningRate = 0.1
	p.MinDataInLeaf = 1
	p.EarlyStoppingRounds = 0
	p.Verbose = 0
	return p
}

func TestRegressorImplementsContracts(t *testing.T) {
	var _ model.Regressor = (*Regressor)(nil)
	var _ model.IterationReporter = (*Regressor)(nil)

	reg := Factory(smallParams())()
	assert.IsType(t, &Regressor{}, reg)
}

func TestRegressorFitsStepFunction(t *testing.T) {
	for _, loss := range []string{LossRMSE, LossMAE} {
		t.Run(loss, func(t *testing.T) {
			n := 100
			X := mat.NewDense(n, 1, nil)
			y := make([]float64, n)
			for i := 0; i < n; i++ {
				x := float64(i) / float64(n)
				X.Set(i, 0, x)
				if x > 0.5 {
					y[i] = 10
				}
			}

			p := smallParams()
			p.Loss = loss
			reg := NewRegressor(p)
			require.NoError(t, reg.Fit(X, y, allRows(n), nil))

			pred, err := reg.Predict(X)
			require.NoError(t, err)
			require.Len(t, pred, n)
			for i := range pred {
				assert.InDelta(t, y[i], pred[i], 0.1, "row %d", i)
			}
			assert.Equal(t, reg.NumTrees()-1, reg.BestIteration())

			first := reg.Trees()[0]
			assert.GreaterOrEqual(t, first.NumLeaves(), 2, "the step must be split")
			for _, tree := range reg.Trees() {
				assert.LessOrEqual(t, tree.Depth(), p.Depth)
				assert.Equal(t, len(tree.Nodes), 2*tree.NumLeaves()-1)
			}
		})
	}
}

func TestRegressorInitScore(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := []float64{1, 2, 3, 4, 100}

	p := smallParams()
	p.Iterations = 1

	l1 := NewRegressor(p)
	require.NoError(t, l1.Fit(X, y, allRows(5), nil))
	assert.Equal(t, 3.0, l1.InitScore(), "MAE starts from the median")

	p.Loss = LossRMSE
	l2 := NewRegressor(p)
	require.NoError(t, l2.Fit(X, y, allRows(5), nil))
	assert.Equal(t, 22.0, l2.InitScore(), "RMSE starts from the mean")
}

func TestRegressorCategoricalSplit(t *testing.T) {
	n := 100
	X := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		code := i % 4
		X.Set(i, 0, float64(code))
		if code%2 == 0 {
			y[i] = 5
		} else {
			y[i] = 1
		}
	}

	p := smallParams()
	p.Loss = LossRMSE
	p.Depth = 1
	p.LearningRate = 0.3
	p.CategoricalFeatures = []int{0}
	reg := NewRegressor(p)
	require.NoError(t, reg.Fit(X, y, allRows(n), nil))

	root := reg.Trees()[0].Nodes[0]
	require.False(t, root.IsLeaf())
	assert.True(t, root.Categorical)
	assert.Equal(t, []int{0, 2}, root.Categories)

	pred, err := reg.Predict(mat.NewDense(4, 1, []float64{0, 1, 2, 3}))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{5, 1, 5, 1}, pred, 0.05)
}

func TestRegressorMissingValues(t *testing.T) {
	n := 60
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i)
		if i%5 == 0 {
			v = math.NaN()
		}
		X.Set(i, 0, v)
		X.Set(i, 1, float64(i%3))
		y[i] = float64(i % 7)
	}

	reg := NewRegressor(smallParams())
	require.NoError(t, reg.Fit(X, y, allRows(n), nil))

	pred, err := reg.Predict(mat.NewDense(2, 2, []float64{math.NaN(), 1, 1e9, math.NaN()}))
	require.NoError(t, err)
	for _, v := range pred {
		assert.False(t, math.IsNaN(v))
		assert.False(t, math.IsInf(v, 0))
	}
}

func TestRegressorEarlyStopping(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	n := 300
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b := rng.Float64(), rng.Float64()
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		y[i] = 3*a + rng.NormFloat64()
	}
	train, valid := allRows(200), allRows(n)[200:]

	p := smallParams()
	p.Iterations = 300
	p.LearningRate = 0.3
	p.EarlyStoppingRounds = 10
	reg := NewRegressor(p)
	require.NoError(t, reg.Fit(X, y, train, valid))

	history := reg.EvalHistory()
	best := reg.BestIteration()
	require.NotEmpty(t, history)
	assert.Equal(t, best+1, reg.NumTrees(), "ensemble is truncated to the best round")
	assert.Equal(t, floats.Min(history), history[best])
	assert.LessOrEqual(t, len(history), best+1+p.EarlyStoppingRounds)
}

func TestRegressorValidSetWithoutEarlyStopping(t *testing.T) {
	X := mat.NewDense(40, 1, nil)
	y := make([]float64, 40)
	for i := range y {
		X.Set(i, 0, float64(i))
		y[i] = float64(i % 4)
	}
	p := smallParams()
	p.Iterations = 20
	reg := NewRegressor(p)
	require.NoError(t, reg.Fit(X, y, allRows(30), allRows(40)[30:]))

	assert.Len(t, reg.EvalHistory(), 20, "no early stop without rounds")
	assert.Equal(t, reg.BestIteration()+1, reg.NumTrees())
}

func TestRegressorFeatureImportance(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	n := 200
	X := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			X.Set(i, j, rng.Float64())
		}
		y[i] = 10 * X.At(i, 1)
	}

	p := smallParams()
	p.Loss = LossRMSE
	p.Iterations = 50
	reg := NewRegressor(p)
	require.NoError(t, reg.Fit(X, y, allRows(n), nil))

	imp := reg.FeatureImportance()
	require.Len(t, imp, 3)
	assert.InDelta(t, 100, floats.Sum(imp), 1e-9)
	assert.Equal(t, 1, floats.MaxIdx(imp))
}

func TestRegressorDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	n := 120
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, rng.Float64())
		X.Set(i, 1, float64(rng.IntN(5)))
		y[i] = X.At(i, 0)*4 + X.At(i, 1)
	}

	p := smallParams()
	p.Iterations = 30
	p.Subsample = 0.7
	p.CategoricalFeatures = []int{1}

	fit := func() []float64 {
		reg := NewRegressor(p)
		require.NoError(t, reg.Fit(X, y, allRows(n), nil))
		pred, err := reg.Predict(X)
		require.NoError(t, err)
		return pred
	}
	assert.Equal(t, fit(), fit())
}

func TestRegressorErrors(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})

	t.Run("empty training rows", func(t *testing.T) {
		err := NewRegressor(smallParams()).Fit(X, []float64{1, 2, 3}, nil, nil)
		var te *errors.TrainingError
		require.True(t, errors.As(err, &te))
		assert.True(t, errors.Is(err, errors.ErrEmptyData))
	})

	t.Run("non-finite target", func(t *testing.T) {
		err := NewRegressor(smallParams()).Fit(X, []float64{1, math.NaN(), 3}, allRows(3), nil)
		var te *errors.TrainingError
		require.True(t, errors.As(err, &te))
		assert.True(t, errors.Is(err, errors.ErrDegenerateTarget))
	})

	t.Run("target length", func(t *testing.T) {
		err := NewRegressor(smallParams()).Fit(X, []float64{1, 2}, allRows(2), nil)
		var de *errors.DimensionError
		assert.True(t, errors.As(err, &de))
	})

	t.Run("row index out of range", func(t *testing.T) {
		err := NewRegressor(smallParams()).Fit(X, []float64{1, 2, 3}, []int{0, 5}, nil)
		assert.Error(t, err)
	})

	t.Run("invalid params", func(t *testing.T) {
		p := smallParams()
		p.Loss = "Huber"
		assert.Error(t, NewRegressor(p).Fit(X, []float64{1, 2, 3}, allRows(3), nil))
	})

	t.Run("predict before fit", func(t *testing.T) {
		_, err := NewRegressor(smallParams()).Predict(X)
		var nf *errors.NotFittedError
		assert.True(t, errors.As(err, &nf))
	})

	t.Run("predict wrong width", func(t *testing.T) {
		reg := NewRegressor(smallParams())
		require.NoError(t, reg.Fit(X, []float64{1, 2, 3}, allRows(3), nil))
		_, err := reg.Predict(mat.NewDense(1, 2, nil))
		var de *errors.DimensionError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, 1, de.Axis)
	})
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{"iterations", func(p *Params) { p.Iterations = 0 }},
		{"learning rate", func(p *Params) { p.LearningRate = -1 }},
		{"depth", func(p *Params) { p.Depth = 0 }},
		{"subsample", func(p *Params) { p.Subsample = 1.5 }},
		{"max bin", func(p *Params) { p.MaxBin = 1 }},
		{"metric", func(p *Params) { p.EvalMetric = "AUC" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.modify(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestParamsWithDefaults(t *testing.T) {
	p := Params{Loss: LossRMSE}.withDefaults()
	assert.Equal(t, 1000, p.Iterations)
	assert.Equal(t, 0.05, p.LearningRate)
	assert.Equal(t, 6, p.Depth)
	assert.Equal(t, LossRMSE, p.EvalMetric, "metric follows the loss")
}
