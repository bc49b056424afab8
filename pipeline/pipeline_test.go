package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatelab/rentfold/config"
	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/dataio"
	"github.com/estatelab/rentfold/pkg/errors"
)

var (
	regionLat  = []float64{35.68, 34.69, 35.18}
	regionLon  = []float64{139.69, 135.50, 136.90}
	regionAddr = []string{"東京都港区芝", "大阪府大阪市北区梅田", "愛知県名古屋市中区栄"}
)

func row(i int, withPrice bool) string {
	r := i % 3
	area := 20 + float64(i%7)*5
	fields := []string{fmt.Sprint(1000 + i)}
	if withPrice {
		price := 2000*area + 10000*float64(r) + 50000
		fields = append(fields, fmt.Sprintf("%.0f", price))
	}
	fields = append(fields,
		fmt.Sprintf("%.4f", regionLat[r]+0.01*float64(i%5)),
		fmt.Sprintf("%.4f", regionLon[r]+0.01*float64(i%4)),
		fmt.Sprintf("%.1f", area),
		fmt.Sprint(1990+i%20),
		fmt.Sprint(3+i%9),
		fmt.Sprint(202001+i%12),
		regionAddr[r],
	)
	return strings.Join(fields, ",")
}

// writeDataset writes a small synthetic competition layout and returns a
// config pointing at it.
func writeDataset(t *testing.T, nTrain, nTest int) config.Config {
	t.Helper()
	dir := t.TempDir()
	header := "lat,lon,house_area,year_built,walk_distance1,target_ym,full_address"

	var train, test, sample strings.Builder
	train.WriteString("bukken_id,money_room," + header + "\n")
	for i := 0; i < nTrain; i++ {
		train.WriteString(row(i, true) + "\n")
	}
	test.WriteString("bukken_id," + header + "\n")
	for i := 0; i < nTest; i++ {
		test.WriteString(row(nTrain+i, false) + "\n")
		fmt.Fprintf(&sample, "%d,0\n", 1000+nTrain+i)
	}

	cfg := config.Default()
	cfg.Data.Train = filepath.Join(dir, "train.csv")
	cfg.Data.Test = filepath.Join(dir, "test.csv")
	cfg.Data.SampleSubmission = filepath.Join(dir, "sample_submit.csv")
	cfg.Data.CacheDir = filepath.Join(dir, "processed")
	cfg.Output.Dir = filepath.Join(dir, "output")
	require.NoError(t, os.WriteFile(cfg.Data.Train, []byte(train.String()), 0o644))
	require.NoError(t, os.WriteFile(cfg.Data.Test, []byte(test.String()), 0o644))
	require.NoError(t, os.WriteFile(cfg.Data.SampleSubmission, []byte(sample.String()), 0o644))

	cfg.Features.NClusters = 3
	cfg.Features.NInit = 2
	cfg.Model.Iterations = 40
	cfg.Model.LearningRate = 0.3
	cfg.Model.Depth = 3
	cfg.Model.MinDataInLeaf = 2
	cfg.Model.EarlyStoppingRounds = 10
	cfg.Model.Verbose = 0
	cfg.CV.NSplits = 3
	cfg.Output.TopFeatures = 5
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	cfg := writeDataset(t, 60, 9)

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Folds.Models, 3)
	assert.Less(t, res.Folds.MeanScore(), 50.0)

	require.Len(t, res.Predictions, 9)
	for _, p := range res.Predictions {
		assert.False(t, math.IsNaN(p))
		assert.Greater(t, p, 0.0)
	}
	assert.Len(t, res.Importance, len(res.FeatureNames))
	assert.Contains(t, res.FeatureNames, "geo_cluster")

	data, err := os.ReadFile(res.Submission)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, fmt.Sprintf("1060,%d", int(res.Predictions[0])), lines[0])

	for _, name := range []string{cfg.Output.Importance, EffectiveConfigFile, cfg.Output.MetricsFile, ImportanceChartFile, ClusterChartFile} {
		_, err := os.Stat(cfg.OutputPath(name))
		assert.NoError(t, err, name)
	}
	metrics, err := os.ReadFile(cfg.OutputPath(cfg.Output.MetricsFile))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "rentfold_fold_mape")
	for _, name := range []string{"mae", "rmse", "rmsle", "mape", "r2"} {
		assert.Contains(t, string(metrics), fmt.Sprintf(`fold="0",metric=%q`, name))
	}
	assert.Contains(t, string(metrics), "rentfold_full_fit_iterations")
	assert.False(t, res.FullFit)
	for _, fm := range res.Folds.Models {
		assert.InDelta(t, fm.Score, fm.Report.MAPE, 1e-9)
	}
	assert.True(t, dataio.NewCache(cfg.Data.CacheDir).Exists())

	again, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
	assert.InDeltaSlice(t, res.Predictions, again.Predictions, 1e-9)
}

func TestRunFullFit(t *testing.T) {
	cfg := writeDataset(t, 60, 9)
	cfg.Data.CacheDir = ""
	cfg.Output.Charts = false
	cfg.FullFit.Enabled = true

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, res.FullFit)
	require.Len(t, res.Predictions, 9)
	for _, p := range res.Predictions {
		assert.Greater(t, p, 0.0)
	}
	assert.Len(t, res.Importance, len(res.FeatureNames))

	metrics, err := os.ReadFile(cfg.OutputPath(cfg.Output.MetricsFile))
	require.NoError(t, err)
	want := fmt.Sprintf(`rentfold_full_fit_iterations{run_id=%q} %d`, res.RunID, res.Folds.RefitIterations())
	assert.Contains(t, string(metrics), want)

	cfg.FullFit.CVIterations = false
	fixed, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Contains(t, mustRead(t, cfg.OutputPath(cfg.Output.MetricsFile)),
		fmt.Sprintf(`rentfold_full_fit_iterations{run_id=%q} %d`, fixed.RunID, cfg.Model.Iterations))
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunMissingInput(t *testing.T) {
	cfg := writeDataset(t, 10, 2)
	require.NoError(t, os.Remove(cfg.Data.Test))

	_, err := Run(context.Background(), cfg)
	var missing *errors.MissingFileError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "test", missing.Role)

	_, statErr := os.Stat(cfg.Output.Dir)
	assert.True(t, os.IsNotExist(statErr), "nothing is written before the input check passes")
}

func TestRunMissingTarget(t *testing.T) {
	cfg := writeDataset(t, 10, 2)
	cfg.Preprocess.TargetColumn = "rent"
	cfg.Features.NClusters = 2

	_, err := Run(context.Background(), cfg)
	var notFound *errors.ColumnNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "rent", notFound.Column)
}

func TestRunCancelled(t *testing.T) {
	cfg := writeDataset(t, 30, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildDesign(t *testing.T) {
	train := frame.MustNew(
		frame.NewNumeric("area", []float64{20, 30}),
		frame.NewCategorical("city", []string{"b", "a"}),
	)
	test := frame.MustNew(
		frame.NewCategorical("city", []string{"c"}),
		frame.NewNumeric("area", []float64{25}),
		frame.NewNumeric("extra", []float64{1}),
	)

	d, err := BuildDesign(train, test)
	require.NoError(t, err)
	assert.Equal(t, []string{"area", "city"}, d.Names)
	assert.Equal(t, []int{1}, d.Categorical)
	assert.Equal(t, []string{"a", "b", "c"}, d.Vocab["city"])
	assert.Equal(t, []float64{20, 1}, d.Train.RawRowView(0))
	assert.Equal(t, []float64{30, 0}, d.Train.RawRowView(1))
	assert.Equal(t, []float64{25, 2}, d.Test.RawRowView(0))
}

func TestBuildDesignErrors(t *testing.T) {
	train := frame.MustNew(frame.NewNumeric("area", []float64{1}))

	_, err := BuildDesign(train, frame.MustNew(frame.NewNumeric("other", []float64{1})))
	var notFound *errors.ColumnNotFoundError
	assert.True(t, errors.As(err, &notFound))

	_, err = BuildDesign(train, frame.MustNew(frame.NewCategorical("area", []string{"x"})))
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))

	_, err = BuildDesign(
		frame.MustNew(frame.NewText("memo", []string{"x"}), frame.NewText("note", []string{"x"})),
		frame.MustNew(frame.NewText("memo", []string{"y"}), frame.NewText("note", []string{"y"})),
	)
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.Error(), "memo, note")
}

func TestEncodeUnknown(t *testing.T) {
	c := frame.NewCategorical("city", []string{"a", "z", "b"})
	assert.Equal(t, []float64{0, -1, 1}, Encode(c, []string{"a", "b"}))
}

func TestAsCategorical(t *testing.T) {
	f := frame.MustNew(frame.NewInteger("geo_cluster", []float64{0, -1, 12}))
	out, err := asCategorical(f, "geo_cluster")
	require.NoError(t, err)
	c, _ := out.Column("geo_cluster")
	assert.Equal(t, frame.Categorical, c.Kind())
	assert.Equal(t, []string{"0", "-1", "12"}, c.Strings())

	_, err = asCategorical(f, "missing")
	assert.Error(t, err)
}
