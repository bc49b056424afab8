package dataio

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
	"github.com/estatelab/rentfold/preprocessing"
)

// Cache file names inside the cache directory.
const (
	TrainCacheFile       = "train_processed.parquet"
	TestCacheFile        = "test_processed.parquet"
	TargetCacheFile      = "target.parquet"
	CategoricalCacheFile = "cat_features.json"

	targetColumn = "target"
)

// Cache stores preprocessed frames as parquet so later runs can skip the
// schema pass. A cache is usable only when all four files exist; their
// contents are trusted as-is.
type Cache struct {
	Dir string
	mem memory.Allocator
}

// NewCache returns a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{Dir: dir, mem: memory.NewGoAllocator()}
}

func (c *Cache) path(name string) string { return filepath.Join(c.Dir, name) }

// Exists reports whether every cache file is present.
func (c *Cache) Exists() bool {
	for _, name := range []string{TrainCacheFile, TestCacheFile, TargetCacheFile, CategoricalCacheFile} {
		if _, err := os.Stat(c.path(name)); err != nil {
			return false
		}
	}
	return true
}

// Save writes all four cache files, replacing any previous cache.
func (c *Cache) Save(res *preprocessing.Result) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "create cache dir %s", c.Dir)
	}
	if err := c.writeFrame(c.path(TrainCacheFile), res.Train); err != nil {
		return err
	}
	if err := c.writeFrame(c.path(TestCacheFile), res.Test); err != nil {
		return err
	}
	target := frame.MustNew(frame.NewNumeric(targetColumn, res.Target))
	if err := c.writeFrame(c.path(TargetCacheFile), target); err != nil {
		return err
	}

	cats := res.Categorical
	if cats == nil {
		cats = []string{}
	}
	data, err := json.MarshalIndent(cats, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode categorical list")
	}
	if err := os.WriteFile(c.path(CategoricalCacheFile), data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", c.path(CategoricalCacheFile))
	}

	log.GetLoggerWithName("cache").Info("Cache written",
		log.PathKey, c.Dir,
		"train.fingerprint", res.Train.Fingerprint(),
		"test.fingerprint", res.Test.Fingerprint(),
		log.CategoricalKey, len(res.Categorical),
	)
	return nil
}

// Load reads the cache back. The caller is expected to have checked Exists.
func (c *Cache) Load(ctx context.Context) (*preprocessing.Result, error) {
	train, err := c.readFrame(ctx, c.path(TrainCacheFile))
	if err != nil {
		return nil, err
	}
	test, err := c.readFrame(ctx, c.path(TestCacheFile))
	if err != nil {
		return nil, err
	}
	tf, err := c.readFrame(ctx, c.path(TargetCacheFile))
	if err != nil {
		return nil, err
	}
	tc, ok := tf.Column(targetColumn)
	if !ok {
		return nil, errors.NewColumnNotFoundError("Cache.Load", targetColumn)
	}
	if tc.Len() != train.Len() {
		return nil, errors.NewDimensionError("Cache.Load", train.Len(), tc.Len(), 0)
	}

	data, err := os.ReadFile(c.path(CategoricalCacheFile))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", c.path(CategoricalCacheFile))
	}
	var cats []string
	if err := json.Unmarshal(data, &cats); err != nil {
		return nil, errors.Wrapf(err, "decode %s", c.path(CategoricalCacheFile))
	}

	log.GetLoggerWithName("cache").Info("Cache loaded",
		log.PathKey, c.Dir,
		log.CacheHitKey, true,
		"train.fingerprint", train.Fingerprint(),
		"test.fingerprint", test.Fingerprint(),
	)
	return &preprocessing.Result{Train: train, Test: test, Target: tc.Floats(), Categorical: cats}, nil
}

func (c *Cache) writeFrame(path string, f *frame.Frame) (err error) {
	table, err := c.frameToTable(f)
	if err != nil {
		return err
	}
	defer table.Release()

	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		// the parquet writer closes the file on success
		if cerr := out.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(c.mem))
	w, err := pqarrow.NewFileWriter(table.Schema(), out, props, arrowProps)
	if err != nil {
		return errors.Wrapf(err, "create parquet writer for %s", path)
	}
	if err := w.WriteTable(table, max(int64(f.Len()), 1)); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return w.Close()
}

// frameToTable maps Integer numeric columns to int64, other numeric columns
// to float64 with NaN kept as a value, and categorical columns to utf8.
func (c *Cache) frameToTable(f *frame.Frame) (arrow.Table, error) {
	fields := make([]arrow.Field, 0, f.Width())
	columns := make([]arrow.Column, 0, f.Width())
	for i := 0; i < f.Width(); i++ {
		col := f.Col(i)
		var arr arrow.Array
		switch {
		case col.Kind() == frame.Numeric && col.Integer():
			b := array.NewInt64Builder(c.mem)
			for _, v := range col.Floats() {
				b.Append(int64(v))
			}
			arr = b.NewArray()
			b.Release()
		case col.Kind() == frame.Numeric:
			b := array.NewFloat64Builder(c.mem)
			b.AppendValues(col.Floats(), nil)
			arr = b.NewArray()
			b.Release()
		case col.Kind() == frame.Categorical:
			b := array.NewStringBuilder(c.mem)
			b.AppendValues(col.Strings(), nil)
			arr = b.NewArray()
			b.Release()
		default:
			return nil, errors.NewValueError("Cache.Save", "column "+col.Name()+" has not been classified")
		}

		field := arrow.Field{Name: col.Name(), Type: arr.DataType()}
		chunked := arrow.NewChunked(arr.DataType(), []arrow.Array{arr})
		arr.Release()
		fields = append(fields, field)
		columns = append(columns, *arrow.NewColumn(field, chunked))
		chunked.Release()
	}
	schema := arrow.NewSchema(fields, nil)
	return array.NewTable(schema, columns, int64(f.Len())), nil
}

func (c *Cache) readFrame(ctx context.Context, path string) (*frame.Frame, error) {
	pqReader, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer pqReader.Close()

	reader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{Parallel: true}, c.mem)
	if err != nil {
		return nil, errors.Wrapf(err, "create arrow reader for %s", path)
	}
	table, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	defer table.Release()

	cols := make([]*frame.Column, 0, table.NumCols())
	schema := table.Schema()
	for i := 0; i < int(table.NumCols()); i++ {
		field := schema.Field(i)
		col, err := columnFromChunks(field, table.Column(i).Data())
		if err != nil {
			return nil, errors.Wrapf(err, "column %s in %s", field.Name, path)
		}
		cols = append(cols, col)
	}
	return frame.New(cols...)
}

func columnFromChunks(field arrow.Field, data *arrow.Chunked) (*frame.Column, error) {
	n := data.Len()
	switch field.Type.ID() {
	case arrow.INT64:
		values := make([]float64, 0, n)
		for _, chunk := range data.Chunks() {
			arr := chunk.(*array.Int64)
			for j := 0; j < arr.Len(); j++ {
				values = append(values, float64(arr.Value(j)))
			}
		}
		return frame.NewInteger(field.Name, values), nil
	case arrow.FLOAT64:
		values := make([]float64, 0, n)
		for _, chunk := range data.Chunks() {
			values = append(values, chunk.(*array.Float64).Float64Values()...)
		}
		return frame.NewNumeric(field.Name, values), nil
	case arrow.STRING:
		values := make([]string, 0, n)
		for _, chunk := range data.Chunks() {
			arr := chunk.(*array.String)
			for j := 0; j < arr.Len(); j++ {
				values = append(values, arr.Value(j))
			}
		}
		return frame.NewCategorical(field.Name, values), nil
	default:
		return nil, errors.Newf("unsupported arrow type %s", field.Type)
	}
}
