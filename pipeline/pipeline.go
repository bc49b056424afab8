// Package pipeline wires the stages of a training run together in a fixed
// order: input checks, preprocessing (or the cache), geo features, design
// matrix, fold training, ensemble prediction and the output files.
package pipeline

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/estatelab/rentfold/config"
	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/core/model"
	"github.com/estatelab/rentfold/dataio"
	"github.com/estatelab/rentfold/features"
	"github.com/estatelab/rentfold/gbdt"
	"github.com/estatelab/rentfold/monitoring"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
	"github.com/estatelab/rentfold/preprocessing"
	"github.com/estatelab/rentfold/validation"
)

// Output file names written next to the submission
const (
	EffectiveConfigFile = "config.yaml"
	ClusterChartFile    = "geo_clusters.png"
	ImportanceChartFile = "feature_importance.png"
)

// Result summarizes a finished run
type Result struct {
	RunID        string
	CacheHit     bool
	Folds        *validation.FoldModelSet
	FullFit      bool // predictions come from one model refitted on all train rows
	FeatureNames []string
	Importance   []float64
	Predictions  []float64
	Submission   string
}

// Run executes the whole pipeline described by cfg
func Run(ctx context.Context, cfg config.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, runID)
	mon := monitoring.New(runID)
	start := time.Now()
	logger.Info("Run started", log.NFoldsKey, cfg.CV.NSplits, log.PathKey, cfg.Output.Dir)

	if err := CheckInputs(cfg.Data); err != nil {
		logger.Error("Input check failed", err)
		return nil, err
	}

	stop := mon.StageTimer("preprocess")
	pre, hit, err := LoadOrPreprocess(ctx, cfg, logger)
	stop()
	if err != nil {
		return nil, err
	}
	mon.SetRows("train", pre.Train.Len())
	mon.SetRows("test", pre.Test.Len())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop = mon.StageTimer("features")
	geo, err := features.Generate(pre.Train, pre.Test, pre.Target, cfg.FeatureOptions())
	stop()
	if err != nil {
		return nil, err
	}

	design, err := prepareDesign(geo, cfg.Preprocess.FillValue)
	if err != nil {
		return nil, err
	}
	mon.SetFeatures(len(design.Names))
	logger.Info("Design matrix built",
		log.SamplesKey, pre.Train.Len(),
		log.FeaturesKey, len(design.Names),
		log.CategoricalKey, len(design.Categorical),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := cfg.Model
	params.CategoricalFeatures = design.Categorical
	trainer := &validation.FoldTrainer{
		Splitter:  cfg.Splitter(),
		Factory:   gbdt.Factory(params),
		LogTarget: cfg.Preprocess.LogTarget,
		Logger:    logger,
		OnFold: func(fm validation.FoldModel) {
			mon.RecordFold(fm.Index, fm.Score, fm.BestIteration)
			mon.RecordFoldReport(fm.Index, fm.Report)
		},
	}
	stop = mon.StageTimer("train")
	set, err := trainer.Run(design.Train, pre.Target)
	stop()
	if err != nil {
		logger.Error("Fold training failed", err)
		return nil, err
	}
	mon.RecordCV(set.MeanScore(), set.StdScore())

	if design.Test == nil {
		return nil, errors.NewValueError("Run", "test set has no rows")
	}
	predictor := validation.NewEnsemble(set, cfg.Preprocess.LogTarget)
	importance := set.FeatureImportance()
	if cfg.FullFit.Enabled {
		stop = mon.StageTimer("full_fit")
		full, iterations, err := fitFull(ctx, cfg, params, set, design, pre.Target)
		stop()
		if err != nil {
			logger.Error("Full-data fit failed", err)
			return nil, err
		}
		mon.SetFullFitIterations(iterations)
		logger.Info("Predicting with the full-data model", log.IterationsKey, iterations)
		predictor = &validation.Ensemble{Models: []model.Regressor{full}, ExpM1: cfg.Preprocess.LogTarget}
		importance = full.FeatureImportance()
	}

	stop = mon.StageTimer("predict")
	preds, err := predictor.Predict(design.Test)
	stop()
	if err != nil {
		return nil, err
	}
	mon.AddNegativePredictions(countNegative(preds))

	res := &Result{
		RunID:        runID,
		CacheHit:     hit,
		Folds:        set,
		FullFit:      cfg.FullFit.Enabled,
		FeatureNames: design.Names,
		Importance:   importance,
		Predictions:  preds,
	}

	stop = mon.StageTimer("write")
	err = writeOutputs(cfg, geo, res, mon, logger)
	stop()
	if err != nil {
		return nil, err
	}

	logger.Info("Run finished",
		log.MAPEKey, set.MeanScore(),
		log.MAPEStdKey, set.StdScore(),
		log.PredsKey, len(preds),
		log.PathKey, res.Submission,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// CheckInputs verifies every required input file before any work starts
func CheckInputs(data config.DataConfig) error {
	for _, in := range []struct{ role, path string }{
		{"train", data.Train},
		{"test", data.Test},
		{"sample_submission", data.SampleSubmission},
	} {
		if _, err := os.Stat(in.path); err != nil {
			return errors.NewMissingFileError(in.role, in.path)
		}
	}
	return nil
}

// LoadOrPreprocess returns the cached schema pass when the cache is complete,
// otherwise reads the raw CSVs, preprocesses them and rewrites the cache.
func LoadOrPreprocess(ctx context.Context, cfg config.Config, logger log.Logger) (*preprocessing.Result, bool, error) {
	var cache *dataio.Cache
	if cfg.Data.CacheDir != "" {
		cache = dataio.NewCache(cfg.Data.CacheDir)
		if cache.Exists() {
			res, err := cache.Load(ctx)
			if err != nil {
				return nil, false, err
			}
			logger.Info("Using cached preprocessing", log.CacheHitKey, true, log.PathKey, cfg.Data.CacheDir)
			return res, true, nil
		}
	}

	res, err := Preprocess(cfg)
	if err != nil {
		return nil, false, err
	}
	if cache != nil {
		if err := cache.Save(res); err != nil {
			return nil, false, err
		}
	}
	logger.Info("Preprocessing finished", log.CacheHitKey, false,
		log.SamplesKey, res.Train.Len(),
		log.FeaturesKey, res.Train.Width(),
		log.CategoricalKey, len(res.Categorical),
	)
	return res, false, nil
}

// Preprocess reads the raw CSVs and runs the schema pass without the cache
func Preprocess(cfg config.Config) (*preprocessing.Result, error) {
	train, err := dataio.ReadCSV(cfg.Data.Train)
	if err != nil {
		return nil, err
	}
	test, err := dataio.ReadCSV(cfg.Data.Test)
	if err != nil {
		return nil, err
	}
	return preprocessing.Preprocess(train, test, cfg.PreprocessOptions())
}

// prepareDesign treats the cluster id as a category, fills the NaNs the
// feature stage introduced and encodes both frames.
func prepareDesign(geo *features.Result, fill float64) (*Design, error) {
	cluster := geo.Clusters.Column()
	train, err := asCategorical(geo.Train, cluster)
	if err != nil {
		return nil, err
	}
	test, err := asCategorical(geo.Test, cluster)
	if err != nil {
		return nil, err
	}
	if train, err = preprocessing.FillMissing(train, fill); err != nil {
		return nil, err
	}
	if test, err = preprocessing.FillMissing(test, fill); err != nil {
		return nil, err
	}
	return BuildDesign(train, test)
}

// fitFull refits on every train row. The rounds come from the folds when
// configured and reported, otherwise from model.iterations.
func fitFull(ctx context.Context, cfg config.Config, params gbdt.Params, set *validation.FoldModelSet, design *Design, y []float64) (model.Regressor, int, error) {
	if cfg.FullFit.CVIterations {
		if n := set.RefitIterations(); n > 0 {
			params.Iterations = n
		}
	}
	reg, err := validation.FitFull(ctx, design.Train, y, gbdt.Factory(params))
	if err != nil {
		return nil, 0, err
	}
	return reg, params.Iterations, nil
}

func countNegative(values []float64) int {
	n := 0
	for _, v := range values {
		if v < 0 {
			n++
		}
	}
	return n
}

func writeOutputs(cfg config.Config, geo *features.Result, res *Result, mon *monitoring.Metrics, logger log.Logger) error {
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "create output dir %s", cfg.Output.Dir)
	}

	ids, err := dataio.ReadSampleSubmission(cfg.Data.SampleSubmission)
	if err != nil {
		return err
	}
	if len(ids) != len(res.Predictions) {
		return errors.NewDimensionError("WriteSubmission", len(ids), len(res.Predictions), 0)
	}
	res.Submission = cfg.OutputPath(cfg.Output.Submission)
	if err := dataio.WriteSubmission(res.Submission, ids, res.Predictions); err != nil {
		return err
	}

	if cfg.Output.Importance != "" {
		if err := dataio.WriteImportance(cfg.OutputPath(cfg.Output.Importance), res.FeatureNames, res.Importance); err != nil {
			return err
		}
	}

	if cfg.Output.Charts {
		if err := writeCharts(cfg, geo, res); err != nil {
			// chart failures are logged, not fatal
			logger.Warn("Chart rendering failed", err)
		}
	}

	if err := cfg.Save(cfg.OutputPath(EffectiveConfigFile)); err != nil {
		return err
	}
	if cfg.Output.MetricsFile != "" {
		if err := mon.WriteToTextfile(cfg.OutputPath(cfg.Output.MetricsFile)); err != nil {
			return err
		}
	}
	return nil
}

func writeCharts(cfg config.Config, geo *features.Result, res *Result) error {
	opts := cfg.FeatureOptions().Cluster
	lat, ok1 := geo.Train.Column(opts.LatColumn)
	lon, ok2 := geo.Train.Column(opts.LonColumn)
	labels, ok3 := geo.Train.Column(geo.Clusters.Column())
	if ok1 && ok2 && ok3 {
		if err := dataio.ClusterScatter(cfg.OutputPath(ClusterChartFile),
			lat.Floats(), lon.Floats(), clusterLabels(labels), geo.Clusters.Centers()); err != nil {
			return err
		}
	}
	return dataio.ImportanceChart(cfg.OutputPath(ImportanceChartFile), res.FeatureNames, res.Importance, cfg.Output.TopFeatures)
}

func clusterLabels(c *frame.Column) []int {
	out := make([]int, c.Len())
	for i, v := range c.Floats() {
		if math.IsNaN(v) {
			out[i] = -1
			continue
		}
		out[i] = int(v)
	}
	return out
}
