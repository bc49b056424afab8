package validation

import (
	"math"
	"time"

	"github.com/estatelab/rentfold/core/model"
	"github.com/estatelab/rentfold/metrics"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// State is the lifecycle position of a FoldTrainer
type State int

const (
	StateInitialized State = iota
	StateFit
	StateValidate
	StateAggregated
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateFit:
		return "fit"
	case StateValidate:
		return "validate"
	case StateAggregated:
		return "aggregated"
	}
	return "unknown"
}

// FoldModel is one trained regressor with its held-out score
type FoldModel struct {
	Index         int
	Model         model.Regressor
	Score         float64
	Report        metrics.Report // held-out metrics in price space
	BestIteration int            // -1 when the regressor does not report one
	TrainRows     int
	ValidRows     int
}

// FoldModelSet holds the k fold models of one run. It is not modified after Run returns.
type FoldModelSet struct {
	Models []FoldModel
}

// Scores returns the per-fold held-out errors in fold order
func (s *FoldModelSet) Scores() []float64 {
	out := make([]float64, len(s.Models))
	for i, m := range s.Models {
		out[i] = m.Score
	}
	return out
}

// MeanScore is the cross-validation estimate
func (s *FoldModelSet) MeanScore() float64 {
	return stat.Mean(s.Scores(), nil)
}

// StdScore is the population standard deviation of the fold scores
func (s *FoldModelSet) StdScore() float64 {
	return stat.PopStdDev(s.Scores(), nil)
}

// Regressors returns the fold models in fold order
func (s *FoldModelSet) Regressors() []model.Regressor {
	out := make([]model.Regressor, len(s.Models))
	for i, m := range s.Models {
		out[i] = m.Model
	}
	return out
}

// RefitIterations is the number of boosting rounds for a full-data refit:
// the mean of BestIteration+1 over the folds that report one, rounded.
// It is 0 when no fold reports a best iteration.
func (s *FoldModelSet) RefitIterations() int {
	sum, n := 0, 0
	for _, m := range s.Models {
		if m.BestIteration >= 0 {
			sum += m.BestIteration + 1
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}

// FeatureImportance averages the fold models' importances
func (s *FoldModelSet) FeatureImportance() []float64 {
	var out []float64
	for _, m := range s.Models {
		imp := m.Model.FeatureImportance()
		if out == nil {
			out = make([]float64, len(imp))
		}
		for j := range imp {
			out[j] += imp[j] / float64(len(s.Models))
		}
	}
	return out
}

// FoldTrainer trains one regressor per fold, scores it on the held-out rows
// and collects the results. Any fold failure aborts the whole run.
type FoldTrainer struct {
	Splitter  Splitter
	Factory   model.Factory
	LogTarget bool // y is log1p-transformed; scores are computed after expm1
	Logger    log.Logger

	// OnFold is called after each fold is validated
	OnFold func(FoldModel)

	state State
}

// State returns the current lifecycle state
func (ft *FoldTrainer) State() State { return ft.state }

func (ft *FoldTrainer) transition(s State, fold int) {
	ft.state = s
	ft.logger().Debug("Fold trainer state", log.PhaseKey, s.String(), log.FoldKey, fold)
}

func (ft *FoldTrainer) logger() log.Logger {
	if ft.Logger == nil {
		ft.Logger = log.GetLoggerWithName("validation")
	}
	return ft.Logger
}

// Run executes Initialized → {Fit → Validate}×k → Aggregated
func (ft *FoldTrainer) Run(X mat.Matrix, y []float64) (*FoldModelSet, error) {
	ft.state = StateInitialized
	if ft.Splitter == nil || ft.Factory == nil {
		return nil, errors.NewValueError("FoldTrainer.Run", "splitter and factory are required")
	}
	nRows, _ := X.Dims()
	if len(y) != nRows {
		return nil, errors.NewDimensionError("FoldTrainer.Run", nRows, len(y), 0)
	}
	folds, err := ft.Splitter.Split(nRows)
	if err != nil {
		return nil, err
	}

	logger := ft.logger()
	score := metrics.MAPE
	if ft.LogTarget {
		score = metrics.LogMAPE
	}

	set := &FoldModelSet{Models: make([]FoldModel, 0, len(folds))}
	for _, f := range folds {
		start := time.Now()

		ft.transition(StateFit, f.Index)
		reg := ft.Factory()
		if err := reg.Fit(X, y, f.Train, f.Test); err != nil {
			return nil, errors.NewTrainingError(f.Index, err)
		}

		ft.transition(StateValidate, f.Index)
		pred, err := reg.Predict(selectRows(X, f.Test))
		if err != nil {
			return nil, errors.NewTrainingError(f.Index, err)
		}
		yTest := make([]float64, len(f.Test))
		for k, i := range f.Test {
			yTest[k] = y[i]
		}
		s, err := score(yTest, pred)
		if err != nil {
			return nil, errors.NewTrainingError(f.Index, err)
		}
		trueScale, predScale := yTest, pred
		if ft.LogTarget {
			trueScale, predScale = metrics.Expm1(yTest), metrics.Expm1(pred)
		}
		report, err := metrics.Calculate(trueScale, predScale)
		if err != nil {
			return nil, errors.NewTrainingError(f.Index, err)
		}

		fm := FoldModel{
			Index:         f.Index,
			Model:         reg,
			Score:         s,
			Report:        report,
			BestIteration: -1,
			TrainRows:     len(f.Train),
			ValidRows:     len(f.Test),
		}
		if ir, ok := reg.(model.IterationReporter); ok {
			fm.BestIteration = ir.BestIteration()
		}
		set.Models = append(set.Models, fm)
		if ft.OnFold != nil {
			ft.OnFold(fm)
		}

		logger.Info("Fold validated",
			log.FoldKey, f.Index,
			log.MAPEKey, s,
			log.ReportKey, report,
			log.BestIterationKey, fm.BestIteration,
			log.SamplesKey, len(f.Train),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}

	ft.transition(StateAggregated, -1)
	logger.Info("Cross validation finished",
		log.NFoldsKey, len(set.Models),
		log.MAPEKey, set.MeanScore(),
		log.MAPEStdKey, set.StdScore(),
	)
	return set, nil
}

// selectRows copies the listed rows of X into a new matrix
func selectRows(X mat.Matrix, rows []int) *mat.Dense {
	_, c := X.Dims()
	if len(rows) == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(rows), c, nil)
	for k, i := range rows {
		for j := 0; j < c; j++ {
			out.Set(k, j, X.At(i, j))
		}
	}
	return out
}
