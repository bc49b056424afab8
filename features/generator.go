package features

import (
	"time"

	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
)

// Options は地理空間特徴量の全体設定
type Options struct {
	Cluster         ClusterOptions
	Aggregate       AggregateOptions
	EncodingColumns []string
	Smoothing       float64
	References      []ReferencePoint
	Derived         DerivedOptions
}

// DefaultOptions はデフォルトの設定を返す
func DefaultOptions() Options {
	return Options{
		Cluster:         DefaultClusterOptions(),
		Aggregate:       DefaultAggregateOptions(),
		EncodingColumns: append([]string{}, DefaultEncodingColumns...),
		Smoothing:       10,
		References:      append([]ReferencePoint{}, MajorCities...),
		Derived:         DefaultDerivedOptions(),
	}
}

// Result は特徴量生成の出力と学習済みの値
type Result struct {
	Train      *frame.Frame
	Test       *frame.Frame
	Clusters   *ClusterModel
	Aggregates *ClusterAggregates
	Encoding   *TargetEncoding
}

// Generate はクラスタ → クラスタ集約 → ターゲットエンコーディング → 距離 → 派生特徴量
// の順に適用する。学習は全て train と target だけで行う。
func Generate(train, test *frame.Frame, target []float64, opts Options) (*Result, error) {
	logger := log.GetLoggerWithName("features")
	start := time.Now()

	clusters, err := FitClusters(train, opts.Cluster)
	if err != nil {
		return nil, err
	}
	if train, err = clusters.Assign(train); err != nil {
		return nil, err
	}
	if test, err = clusters.Assign(test); err != nil {
		return nil, err
	}

	aggOpts := opts.Aggregate
	aggOpts.ClusterColumn = clusters.Column()
	aggregates, err := FitClusterAggregates(train, target, aggOpts)
	if err != nil {
		return nil, err
	}
	if train, err = aggregates.Apply(train); err != nil {
		return nil, err
	}
	if test, err = aggregates.Apply(test); err != nil {
		return nil, err
	}

	encoding, err := FitTargetEncoding(train, target, opts.EncodingColumns, opts.Smoothing)
	if err != nil {
		return nil, err
	}
	if train, err = encoding.Apply(train); err != nil {
		return nil, err
	}
	if test, err = encoding.Apply(test); err != nil {
		return nil, errors.Wrap(err, "apply target encoding to test")
	}

	lat, lon := opts.Cluster.LatColumn, opts.Cluster.LonColumn
	if train, err = DistanceFeatures(train, lat, lon, opts.References, opts.Cluster.Sentinel); err != nil {
		return nil, err
	}
	if test, err = DistanceFeatures(test, lat, lon, opts.References, opts.Cluster.Sentinel); err != nil {
		return nil, err
	}

	if train, test, err = DerivedFeatures(train, test, opts.Derived); err != nil {
		return nil, err
	}

	logger.Info("Geo features generated",
		log.PhaseKey, log.PhaseFeatures,
		log.FeaturesKey, train.Width(),
		log.ClustersKey, clusters.NClusters(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return &Result{Train: train, Test: test, Clusters: clusters, Aggregates: aggregates, Encoding: encoding}, nil
}
