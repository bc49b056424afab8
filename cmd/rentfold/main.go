// Command rentfold trains the rent model with k-fold cross validation and
// writes a submission for the test set.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/estatelab/rentfold/config"
	"github.com/estatelab/rentfold/pkg/log"
)

type globalOptions struct {
	configPath string
	logLevel   string
	console    bool

	train      string
	test       string
	sample     string
	cacheDir   string
	noCache    bool
	outputDir  string
	folds      int
	iterations int
}

func newRootCmd(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "rentfold",
		Short:         "Rent price regression with geo features and k-fold GBDT",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (defaults are used when empty)")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&opts.console, "console", false, "human-readable log output")
	pf.StringVar(&opts.train, "train", "", "train CSV")
	pf.StringVar(&opts.test, "test", "", "test CSV")
	pf.StringVar(&opts.sample, "sample", "", "headerless sample submission CSV")
	pf.StringVar(&opts.cacheDir, "cache-dir", "", "directory for the preprocessed parquet cache")
	pf.BoolVar(&opts.noCache, "no-cache", false, "neither read nor write the cache")
	pf.StringVarP(&opts.outputDir, "output", "o", "", "output directory")
	pf.IntVar(&opts.folds, "folds", 0, "number of CV folds")
	pf.IntVar(&opts.iterations, "iterations", 0, "boosting iterations per fold")

	root.AddCommand(
		newRunCmd(opts),
		newPreprocessCmd(opts),
		newAnalyzeEncodingCmd(opts),
	)
	return root
}

// loadConfig reads the config file, applies flags that were set explicitly
// and installs the logger.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("console") {
		cfg.Log.Console = opts.console
	}
	if flags.Changed("train") {
		cfg.Data.Train = opts.train
	}
	if flags.Changed("test") {
		cfg.Data.Test = opts.test
	}
	if flags.Changed("sample") {
		cfg.Data.SampleSubmission = opts.sample
	}
	if flags.Changed("cache-dir") {
		cfg.Data.CacheDir = opts.cacheDir
	}
	if opts.noCache {
		cfg.Data.CacheDir = ""
	}
	if flags.Changed("output") {
		cfg.Output.Dir = opts.outputDir
	}
	if flags.Changed("folds") {
		cfg.CV.NSplits = opts.folds
	}
	if flags.Changed("iterations") {
		cfg.Model.Iterations = opts.iterations
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if err := log.SetupLogger(cfg.Log.Level, cfg.Log.Console); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(&globalOptions{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		log.GetLogger().Error("rentfold failed", err)
		os.Exit(1)
	}
}
