// Package rentfold predicts monthly rent (money_room) for Japanese rental
// listings with gradient-boosted trees trained under k-fold cross validation.
//
// A run reads the raw train and test CSVs, normalizes their schema, adds
// location features, trains one model per fold and averages the fold models
// to predict the test set. With full_fit.enabled (or run --full) one model
// refitted on every train row predicts instead.
//
// # Quick Start
//
//	go run ./cmd/rentfold run --config config.yaml
//
// Without --config the defaults from package config are used, which expect
// data/raw/train.csv, data/raw/test.csv and data/raw/sample_submit.csv.
//
// # Packages
//
//   - core/frame: immutable columnar table used by every stage
//   - core/model: fitted-state base type and the Regressor contract
//   - core/parallel: range parallelism
//   - preprocessing: tag expansion, address and date parsing, column classification
//   - cluster: seeded k-means
//   - features: geo clusters, cluster aggregates, target encoding, distances, derived features
//   - gbdt: histogram GBDT with native categorical splits and early stopping
//   - metrics: MAE, RMSE, RMSLE, MAPE, R²
//   - validation: KFold, FoldTrainer, Ensemble
//   - dataio: CSV input, parquet cache, submission files, charts
//   - pipeline: the stages in order
//   - config, monitoring, pkg/errors, pkg/log: configuration, telemetry, errors and logging
//
// # Outputs
//
// The output directory receives the headerless submission, a feature
// importance CSV, the effective config, a prometheus text file with fold
// metrics (MAE, RMSE, RMSLE, MAPE, R²) and stage timings, and PNG charts of
// the geo clusters and the top features.
//
// # Determinism
//
// Every random choice (k-means initialization, fold shuffling, row
// subsampling) takes an explicit seed, so two runs with the same config and
// inputs produce the same submission.
package rentfold
