// Package monitoring collects run telemetry in a prometheus registry and
// exports it in the text exposition format at the end of a run.
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/estatelab/rentfold/metrics"
	"github.com/estatelab/rentfold/pkg/errors"
)

// Metrics is a per-run registry. Every series carries the run id as a
// constant label.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration       *prometheus.HistogramVec
	rows                *prometheus.GaugeVec
	features            prometheus.Gauge
	foldScore           *prometheus.GaugeVec
	foldBestIteration   *prometheus.GaugeVec
	foldMetric          *prometheus.GaugeVec
	cvScore             *prometheus.GaugeVec
	fullFitIterations   prometheus.Gauge
	negativePredictions prometheus.Counter
}

// New creates the metric set for one run
func New(runID string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"run_id": runID}, reg))

	return &Metrics{
		registry: reg,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentfold_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage",
			Buckets: []float64{0.1, 1, 10, 60, 300, 1800},
		}, []string{"stage"}),
		rows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rentfold_rows",
			Help: "Rows per dataset",
		}, []string{"dataset"}),
		features: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rentfold_features",
			Help: "Columns in the design matrix",
		}),
		foldScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rentfold_fold_mape",
			Help: "Held-out MAPE per fold, in percent",
		}, []string{"fold"}),
		foldBestIteration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rentfold_fold_best_iteration",
			Help: "Best boosting iteration per fold",
		}, []string{"fold"}),
		foldMetric: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rentfold_fold_metric",
			Help: "Held-out regression metrics per fold in price space (NaN when undefined)",
		}, []string{"fold", "metric"}),
		fullFitIterations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rentfold_full_fit_iterations",
			Help: "Boosting rounds of the full-data model, 0 when the fold ensemble predicts",
		}),
		cvScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rentfold_cv_mape",
			Help: "Cross-validated MAPE summary, in percent",
		}, []string{"stat"}),
		negativePredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "rentfold_negative_predictions_total",
			Help: "Predictions below zero after the inverse transform",
		}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// StageTimer starts timing a stage; call the returned func when it ends.
func (m *Metrics) StageTimer(stage string) func() time.Duration {
	timer := prometheus.NewTimer(m.stageDuration.WithLabelValues(stage))
	return timer.ObserveDuration
}

// SetRows records the row count of a dataset
func (m *Metrics) SetRows(dataset string, n int) {
	m.rows.WithLabelValues(dataset).Set(float64(n))
}

// SetFeatures records the width of the design matrix
func (m *Metrics) SetFeatures(n int) { m.features.Set(float64(n)) }

// RecordFold records one validated fold
func (m *Metrics) RecordFold(fold int, score float64, bestIteration int) {
	label := strconv.Itoa(fold)
	m.foldScore.WithLabelValues(label).Set(score)
	m.foldBestIteration.WithLabelValues(label).Set(float64(bestIteration))
}

// RecordFoldReport records the full metric set of one validated fold
func (m *Metrics) RecordFoldReport(fold int, r metrics.Report) {
	label := strconv.Itoa(fold)
	for name, v := range map[string]float64{
		"mae":   r.MAE,
		"rmse":  r.RMSE,
		"rmsle": r.RMSLE,
		"mape":  r.MAPE,
		"r2":    r.R2,
	} {
		m.foldMetric.WithLabelValues(label, name).Set(v)
	}
}

// SetFullFitIterations records the rounds of the full-data refit
func (m *Metrics) SetFullFitIterations(n int) { m.fullFitIterations.Set(float64(n)) }

// RecordCV records the cross-validation summary
func (m *Metrics) RecordCV(mean, std float64) {
	m.cvScore.WithLabelValues("mean").Set(mean)
	m.cvScore.WithLabelValues("std").Set(std)
}

// AddNegativePredictions counts predictions left negative
func (m *Metrics) AddNegativePredictions(n int) {
	if n > 0 {
		m.negativePredictions.Add(float64(n))
	}
}

// WriteToTextfile writes every series to path in the text exposition format
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
