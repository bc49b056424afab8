// Attribute keys shared by every log line in the pipeline. Keys are
// hierarchical ("data.rows", "cv.fold") so log output can be filtered by prefix.

package log

// Operation context
const (
	// ModelNameKey identifies the component type.
	// Examples: "Preprocessor", "GeoFeatureGenerator", "GBDTRegressor"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the pipeline stage.
	PhaseKey = "ml.phase"

	// RunIDKey carries the unique identifier of one pipeline run.
	RunIDKey = "run.id"
)

// Data shape
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"

	// ColumnKey names a single column being processed.
	ColumnKey = "data.column"

	// CategoricalKey counts categorical columns in a design.
	CategoricalKey = "data.categorical"

	// MissingKey counts missing cells.
	MissingKey = "data.missing"

	// PathKey is the file being read or written.
	PathKey = "io.path"

	// CacheHitKey reports whether the preprocessing cache was used.
	CacheHitKey = "io.cache_hit"
)

// Training and evaluation
const (
	DurationMsKey = "perf.duration_ms"

	// FoldKey is the zero-based fold index.
	FoldKey = "cv.fold"

	// NFoldsKey is the configured number of folds.
	NFoldsKey = "cv.n_folds"

	// IterationKey is the boosting round.
	IterationKey = "training.iteration"

	// BestIterationKey is the round selected by early stopping.
	BestIterationKey = "training.best_iteration"

	// LossKey is the objective value on the validation rows.
	LossKey = "metrics.loss"

	// MAPEKey is the mean absolute percentage error in price space.
	MAPEKey = "metrics.mape"

	// ReportKey holds the full held-out metric set (MAE, RMSE, RMSLE, MAPE, R²).
	ReportKey = "metrics.report"

	// MAPEStdKey is the population std of per-fold MAPE.
	MAPEStdKey = "metrics.mape_std"

	// ClustersKey is the number of geographic clusters.
	ClustersKey = "geo.clusters"

	// InertiaKey is the k-means within-cluster sum of squares.
	InertiaKey = "geo.inertia"

	// ClusterIterKey is the number of Lloyd iterations of the kept k-means run.
	ClusterIterKey = "geo.iterations"

	PredsKey = "preds.count"

	// LeavesKey is the total leaf count of a fitted ensemble.
	LeavesKey = "model.leaves"

	// TreeDepthKey is the deepest root-to-leaf path of a fitted ensemble.
	TreeDepthKey = "model.tree_depth"
)

// Error context
const (
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters
const (
	LearningRateKey = "hyperparams.learning_rate"
	DepthKey        = "hyperparams.depth"
	IterationsKey   = "hyperparams.iterations"
	RandomSeedKey   = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"

	PhasePreprocessing = "preprocessing"
	PhaseFeatures      = "features"
	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhaseOutput        = "output"
)
