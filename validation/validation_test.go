package validation

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/estatelab/rentfold/core/model"
	"github.com/estatelab/rentfold/gbdt"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
)

// constRegressor predicts a fixed vector, or the mean training target per row
type constRegressor struct {
	preds      []float64
	importance []float64
	fitErr     error
	mean       float64
}

func (c *constRegressor) Fit(_ mat.Matrix, y []float64, train, _ []int) error {
	if c.fitErr != nil {
		return c.fitErr
	}
	for _, i := range train {
		c.mean += y[i] / float64(len(train))
	}
	return nil
}

func (c *constRegressor) Predict(X mat.Matrix) ([]float64, error) {
	if c.preds != nil {
		return c.preds, nil
	}
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = c.mean
	}
	return out, nil
}

func (c *constRegressor) FeatureImportance() []float64 { return c.importance }

func TestKFoldPartition(t *testing.T) {
	for _, n := range []int{2, 5, 17, 100} {
		for k := 2; k <= n && k <= 10; k++ {
			for _, shuffle := range []bool{false, true} {
				folds, err := NewKFold(k, shuffle, 42).Split(n)
				require.NoError(t, err)
				require.Len(t, folds, k)

				seen := make([]int, n)
				for i, f := range folds {
					assert.Equal(t, i, f.Index)
					assert.NotEmpty(t, f.Test)
					assert.Equal(t, n, len(f.Train)+len(f.Test))
					assert.True(t, sort.IntsAreSorted(f.Test))
					assert.True(t, sort.IntsAreSorted(f.Train))
					for _, idx := range f.Test {
						seen[idx]++
					}
					inTest := map[int]bool{}
					for _, idx := range f.Test {
						inTest[idx] = true
					}
					for _, idx := range f.Train {
						assert.False(t, inTest[idx], "train and test overlap")
					}
				}
				for idx, c := range seen {
					assert.Equal(t, 1, c, "row %d must be held out exactly once (n=%d k=%d)", idx, n, k)
				}
			}
		}
	}
}

func TestKFoldSizesAndDeterminism(t *testing.T) {
	folds, err := NewKFold(3, false, 0).Split(10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].Test)
	assert.Equal(t, []int{4, 5, 6}, folds[1].Test)
	assert.Equal(t, []int{7, 8, 9}, folds[2].Test)

	a, _ := NewKFold(5, true, 42).Split(50)
	b, _ := NewKFold(5, true, 42).Split(50)
	c, _ := NewKFold(5, true, 7).Split(50)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestKFoldErrors(t *testing.T) {
	_, err := NewKFold(1, false, 0).Split(10)
	assert.Error(t, err)
	_, err = NewKFold(11, false, 0).Split(10)
	assert.Error(t, err)
}

func TestFoldTrainerRun(t *testing.T) {
	n := 20
	X := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := range y {
		y[i] = math.Log1p(100)
	}

	logger, _ := log.NewTestLogger(log.LevelDebug)
	var observed []int
	ft := &FoldTrainer{
		Splitter:  NewKFold(4, true, 42),
		Factory:   func() model.Regressor { return &constRegressor{importance: []float64{10, 30}} },
		LogTarget: true,
		Logger:    logger,
		OnFold:    func(fm FoldModel) { observed = append(observed, fm.Index) },
	}
	assert.Equal(t, StateInitialized, ft.State())

	set, err := ft.Run(X, y)
	require.NoError(t, err)
	assert.Equal(t, StateAggregated, ft.State())
	assert.Equal(t, []int{0, 1, 2, 3}, observed)

	require.Len(t, set.Models, 4)
	for _, fm := range set.Models {
		assert.InDelta(t, 0, fm.Score, 1e-9)
		assert.Equal(t, -1, fm.BestIteration)
		assert.Equal(t, 15, fm.TrainRows)
		assert.Equal(t, 5, fm.ValidRows)
		assert.InDelta(t, 0, fm.Report.MAE, 1e-9)
		assert.InDelta(t, 0, fm.Report.RMSE, 1e-9)
	}
	assert.InDelta(t, 0, set.MeanScore(), 1e-9)
	assert.Equal(t, []float64{10, 30}, set.FeatureImportance())
	assert.True(t, logger.ContainsMessage("Fold validated"))
	assert.True(t, logger.ContainsMessage("Cross validation finished"))

	entries, err := logger.Entries()
	require.NoError(t, err)
	var reports int
	for _, e := range entries {
		if e["message"] != "Fold validated" {
			continue
		}
		report, ok := e[log.ReportKey].(map[string]any)
		require.True(t, ok, "fold log carries the metric report")
		assert.Contains(t, report, "rmsle")
		reports++
	}
	assert.Equal(t, 4, reports)
}

func TestFoldModelSetStatistics(t *testing.T) {
	set := &FoldModelSet{Models: []FoldModel{
		{Score: 10, Model: &constRegressor{importance: []float64{1, 0}}},
		{Score: 20, Model: &constRegressor{importance: []float64{3, 2}}},
	}}
	assert.Equal(t, []float64{10, 20}, set.Scores())
	assert.Equal(t, 15.0, set.MeanScore())
	assert.Equal(t, 5.0, set.StdScore(), "population std")
	assert.Equal(t, []float64{2, 1}, set.FeatureImportance())
}

func TestRefitIterations(t *testing.T) {
	set := &FoldModelSet{Models: []FoldModel{
		{BestIteration: 9},
		{BestIteration: 14},
		{BestIteration: -1},
	}}
	assert.Equal(t, 13, set.RefitIterations(), "mean of 10 and 15, rounded half away from zero")
	assert.Equal(t, 0, (&FoldModelSet{Models: []FoldModel{{BestIteration: -1}}}).RefitIterations())
}

func TestFitFull(t *testing.T) {
	var fitted *constRegressor
	factory := func() model.Regressor {
		fitted = &constRegressor{}
		return fitted
	}
	reg, err := FitFull(context.Background(), mat.NewDense(4, 1, nil), []float64{1, 2, 3, 6}, factory)
	require.NoError(t, err)
	assert.Same(t, fitted, reg)
	assert.InDelta(t, 3, fitted.mean, 1e-12, "every row is used for training")

	_, err = FitFull(context.Background(), mat.NewDense(4, 1, nil), []float64{1}, factory)
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	failing := func() model.Regressor { return &constRegressor{fitErr: errors.ErrDegenerateTarget} }
	_, err = FitFull(context.Background(), mat.NewDense(2, 1, nil), []float64{1, 2}, failing)
	var te *errors.TrainingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, -1, te.Fold)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FitFull(ctx, mat.NewDense(2, 1, nil), []float64{1, 2}, factory)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFoldTrainerFailFast(t *testing.T) {
	calls := 0
	ft := &FoldTrainer{
		Splitter: NewKFold(3, false, 0),
		Factory: func() model.Regressor {
			calls++
			if calls == 2 {
				return &constRegressor{fitErr: errors.ErrDegenerateTarget}
			}
			return &constRegressor{}
		},
	}
	set, err := ft.Run(mat.NewDense(6, 1, nil), []float64{1, 2, 3, 4, 5, 6})
	assert.Nil(t, set)

	var te *errors.TrainingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 1, te.Fold)
	assert.True(t, errors.Is(err, errors.ErrDegenerateTarget))
	assert.Equal(t, 2, calls, "no fold runs after a failure")
	assert.Equal(t, StateFit, ft.State())
}

func TestFoldTrainerInputErrors(t *testing.T) {
	ft := &FoldTrainer{Splitter: NewKFold(2, false, 0), Factory: func() model.Regressor { return &constRegressor{} }}
	_, err := ft.Run(mat.NewDense(4, 1, nil), []float64{1, 2})
	assert.Error(t, err)

	_, err = (&FoldTrainer{}).Run(mat.NewDense(4, 1, nil), []float64{1, 2, 3, 4})
	assert.Error(t, err)
}

func TestFoldTrainerWithGBDT(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 42))
	n := 200
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		area := 15 + rng.Float64()*60
		code := float64(rng.IntN(3))
		X.Set(i, 0, area)
		X.Set(i, 1, code)
		y[i] = math.Log1p(2000*area + 20000*code)
	}

	params := gbdt.DefaultParams()
	params.Iterations = 150
	params.LearningRate = 0.2
	params.MinDataInLeaf = 5
	params.EarlyStoppingRounds = 20
	params.Verbose = 0
	params.CategoricalFeatures = []int{1}

	ft := &FoldTrainer{Splitter: NewKFold(4, true, 42), Factory: gbdt.Factory(params), LogTarget: true}
	set, err := ft.Run(X, y)
	require.NoError(t, err)
	require.Len(t, set.Models, 4)
	assert.Less(t, set.MeanScore(), 10.0, "MAPE in percent")
	for _, fm := range set.Models {
		assert.GreaterOrEqual(t, fm.BestIteration, 0)
		assert.InDelta(t, fm.Score, fm.Report.MAPE, 1e-9, "report is in price space")
		assert.Greater(t, fm.Report.R2, 0.8)
		assert.Greater(t, fm.Report.MAE, 0.0)
	}
	assert.Positive(t, set.RefitIterations())

	pred, err := NewEnsemble(set, true).Predict(X)
	require.NoError(t, err)
	require.Len(t, pred, n)
	for i := range pred {
		assert.InEpsilon(t, math.Expm1(y[i]), pred[i], 0.2)
	}
}

func TestEnsembleAveragesThenInverts(t *testing.T) {
	e := &Ensemble{
		Models: []model.Regressor{
			&constRegressor{preds: []float64{1.0, 2.0}},
			&constRegressor{preds: []float64{1.2, 2.2}},
		},
		ExpM1: true,
	}
	pred, err := e.Predict(mat.NewDense(2, 1, nil))
	require.NoError(t, err)
	require.Len(t, pred, 2)
	assert.InDelta(t, math.Expm1(1.1), pred[0], 1e-12)
	assert.InDelta(t, math.Expm1(2.1), pred[1], 1e-12)

	e.ExpM1 = false
	raw, err := e.Predict(mat.NewDense(2, 1, nil))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.1, 2.1}, raw, 1e-12)
}

func TestEnsembleReportsNegativePredictions(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })

	e := &Ensemble{
		Models: []model.Regressor{&constRegressor{preds: []float64{-1, 0.5, -3}}},
		ExpM1:  true,
	}
	pred, err := e.Predict(mat.NewDense(3, 1, nil))
	require.NoError(t, err)
	assert.Less(t, pred[0], 0.0, "negative values are not clamped")

	require.Len(t, warnings, 1)
	var npw *errors.NegativePredictionWarning
	require.True(t, errors.As(warnings[0], &npw))
	assert.Equal(t, 2, npw.Count)
	assert.InDelta(t, math.Expm1(-3), npw.Min, 1e-12)
}

func TestEnsembleErrors(t *testing.T) {
	_, err := (&Ensemble{}).Predict(mat.NewDense(1, 1, nil))
	assert.Error(t, err)

	e := &Ensemble{Models: []model.Regressor{&constRegressor{preds: []float64{1}}}}
	_, err = e.Predict(mat.NewDense(2, 1, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}
