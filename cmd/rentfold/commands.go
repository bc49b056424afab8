package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/estatelab/rentfold/dataio"
	"github.com/estatelab/rentfold/features"
	"github.com/estatelab/rentfold/pipeline"
	"github.com/estatelab/rentfold/pkg/log"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Preprocess, build features, train all folds and write the submission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("full") {
				cfg.FullFit.Enabled = full
			}
			res, err := pipeline.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s\n", res.RunID)
			for _, fm := range res.Folds.Models {
				fmt.Fprintf(out, "fold %d: MAPE %.4f%% MAE %.0f RMSE %.0f RMSLE %.4f R2 %.4f (best iteration %d)\n",
					fm.Index, fm.Score, fm.Report.MAE, fm.Report.RMSE, fm.Report.RMSLE, fm.Report.R2, fm.BestIteration)
			}
			fmt.Fprintf(out, "CV MAPE: %.4f%% ± %.4f%%\n", res.Folds.MeanScore(), res.Folds.StdScore())
			if res.FullFit {
				fmt.Fprintln(out, "predictions from the full-data model")
			}
			fmt.Fprintf(out, "submission: %s\n", res.Submission)
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "predict with one model refitted on all train rows instead of the fold ensemble")
	return cmd
}

func newPreprocessCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess",
		Short: "Run the schema pass and rewrite the parquet cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if err := pipeline.CheckInputs(cfg.Data); err != nil {
				return err
			}
			res, err := pipeline.Preprocess(cfg)
			if err != nil {
				return err
			}
			if cfg.Data.CacheDir != "" {
				if err := dataio.NewCache(cfg.Data.CacheDir).Save(res); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "train %dx%d, test %dx%d, %d categorical columns\n",
				res.Train.Len(), res.Train.Width(), res.Test.Len(), res.Test.Width(), len(res.Categorical))
			return nil
		},
	}
}

func newAnalyzeEncodingCmd(opts *globalOptions) *cobra.Command {
	var columns []string
	cmd := &cobra.Command{
		Use:   "analyze-encoding",
		Short: "Report how many test categories the target encoding has seen in train",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if err := pipeline.CheckInputs(cfg.Data); err != nil {
				return err
			}
			pre, _, err := pipeline.LoadOrPreprocess(cmd.Context(), cfg, log.GetLoggerWithName("cli"))
			if err != nil {
				return err
			}
			if len(columns) == 0 {
				columns = cfg.Features.EncodingColumns
			}
			return printOverlap(cmd.OutOrStdout(), features.CategoryOverlap(pre.Train, pre.Test, columns))
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to analyze (default: the target-encoded columns)")
	return cmd
}

func printOverlap(w io.Writer, reports []features.OverlapReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "column\ttrain\ttest\toverlap\ttest only\tvalue coverage\trow coverage")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.1f%%\t%.1f%%\n",
			r.Column, r.TrainUnique, r.TestUnique, r.Overlap, r.TestOnly, r.ValueCoverage, r.RecordCoverage)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, r := range reports {
		if len(r.TestOnlyValues) == 0 {
			continue
		}
		shown := r.TestOnlyValues
		if len(shown) > 10 {
			shown = shown[:10]
		}
		fmt.Fprintf(w, "%s test-only values: %v\n", r.Column, shown)
	}
	return nil
}
