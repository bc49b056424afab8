// Package dataio reads and writes the files around a run: raw CSV input,
// the parquet feature cache, submission and importance CSVs, and charts.
package dataio

import (
	"math"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
)

// nanValues are the cell contents treated as missing when reading CSV
var nanValues = []string{"", "NA", "NaN", "nan", "<nil>", "null"}

// ReadCSV loads a CSV file with a header row into a Frame.
//
// Column types are inferred from the values: integer columns become Numeric
// with the Integer flag when no cell is missing, float columns become Numeric
// and everything else becomes Text.
func ReadCSV(path string) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(nanValues),
		dataframe.WithLazyQuotes(true),
	)
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "parse %s", path)
	}

	cols := make([]*frame.Column, 0, df.Ncol())
	for _, name := range df.Names() {
		cols = append(cols, seriesToColumn(df.Col(name)))
	}
	out, err := frame.New(cols...)
	if err != nil {
		return nil, err
	}

	log.GetLoggerWithName("dataio").Info("CSV loaded",
		log.PathKey, path,
		log.SamplesKey, out.Len(),
		log.FeaturesKey, out.Width(),
	)
	return out, nil
}

func seriesToColumn(s series.Series) *frame.Column {
	switch s.Type() {
	case series.Int:
		return frame.NewInteger(s.Name, s.Float())
	case series.Float:
		return frame.NewNumeric(s.Name, s.Float())
	default:
		values := make([]string, s.Len())
		for i := range values {
			e := s.Elem(i)
			if !e.IsNA() {
				values[i] = e.String()
			}
		}
		return frame.NewText(s.Name, values)
	}
}

// ReadSampleSubmission reads the headerless (id, money_room) CSV and returns
// the ids in file order. Ids are kept as their original text.
func ReadSampleSubmission(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(false),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "parse %s", path)
	}
	if df.Ncol() < 2 {
		return nil, errors.NewDimensionError("ReadSampleSubmission", 2, df.Ncol(), 1)
	}
	ids := make([]string, df.Nrow())
	for i := range ids {
		ids[i] = df.Elem(i, 0).String()
	}
	return ids, nil
}

// WriteSubmission writes the headerless (id, money_room) CSV. Predictions
// are truncated toward zero to whole yen.
func WriteSubmission(path string, ids []string, preds []float64) error {
	if len(ids) != len(preds) {
		return errors.NewDimensionError("WriteSubmission", len(ids), len(preds), 0)
	}
	values := make([]int, len(preds))
	for i, p := range preds {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return errors.NewValueError("WriteSubmission", "prediction for id "+ids[i]+" is not finite")
		}
		values[i] = int(p)
	}
	df := dataframe.New(
		series.New(ids, series.String, "id"),
		series.New(values, series.Int, "money_room"),
	)
	return writeCSV(path, df, false)
}

// WriteImportance writes "feature,importance" rows sorted by importance, highest first
func WriteImportance(path string, names []string, importance []float64) error {
	if len(names) != len(importance) {
		return errors.NewDimensionError("WriteImportance", len(names), len(importance), 0)
	}
	df := dataframe.New(
		series.New(names, series.String, "feature"),
		series.New(importance, series.Float, "importance"),
	).Arrange(dataframe.RevSort("importance"))
	if df.Err != nil {
		return errors.Wrap(df.Err, "sort importance")
	}
	return writeCSV(path, df, true)
}

func writeCSV(path string, df dataframe.DataFrame, header bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := df.WriteCSV(f, dataframe.WriteHeader(header)); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	log.GetLoggerWithName("dataio").Info("CSV written",
		log.PathKey, path,
		log.SamplesKey, df.Nrow(),
	)
	return nil
}
