package preprocessing

import (
	"math"
	"strconv"

	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/pkg/errors"
)

// MissingCategory は欠損カテゴリを表す文字列
const MissingCategory = "missing"

// Field は分類済みの列
type Field struct {
	Name string
	Kind frame.Kind // frame.Numeric または frame.Categorical
}

// Schema は列ごとの分類結果。列順を保持する
type Schema []Field

// Classify は訓練データの各列を Numeric か Categorical に分類する
//
// 文字列の列、および訓練側の異なり数が threshold 未満の整数列は Categorical。
// それ以外は Numeric。
func Classify(train *frame.Frame, threshold int) Schema {
	schema := make(Schema, 0, train.Width())
	for i := 0; i < train.Width(); i++ {
		c := train.Col(i)
		kind := frame.Numeric
		switch {
		case c.Kind() != frame.Numeric:
			kind = frame.Categorical
		case c.Integer() && distinctFloats(c.Floats(), threshold) < threshold:
			kind = frame.Categorical
		}
		schema = append(schema, Field{Name: c.Name(), Kind: kind})
	}
	return schema
}

// distinctFloats は異なり数を数える。limit に達したら打ち切る
func distinctFloats(values []float64, limit int) int {
	seen := make(map[float64]struct{})
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		seen[v] = struct{}{}
		if len(seen) >= limit {
			break
		}
	}
	return len(seen)
}

// Categorical はカテゴリ列の名前を返す
func (s Schema) Categorical() []string {
	var out []string
	for _, f := range s {
		if f.Kind == frame.Categorical {
			out = append(out, f.Name)
		}
	}
	return out
}

// Apply は分類に従って列を変換した Frame を返す
//
// Categorical 列は文字列化し、欠損は "missing"（数値由来なら fill の文字列）。
// Numeric 列の欠損は fill で埋める。
func (s Schema) Apply(f *frame.Frame, fill float64) (*frame.Frame, error) {
	cols := make([]*frame.Column, 0, len(s))
	for _, field := range s {
		c, ok := f.Column(field.Name)
		if !ok {
			return nil, errors.NewColumnNotFoundError("Schema.Apply", field.Name)
		}
		if field.Kind == frame.Categorical {
			cols = append(cols, toCategorical(c, fill))
			continue
		}
		nc, err := toNumeric(c, fill)
		if err != nil {
			return nil, err
		}
		cols = append(cols, nc)
	}
	return frame.New(cols...)
}

func toCategorical(c *frame.Column, fill float64) *frame.Column {
	out := make([]string, c.Len())
	fillStr := strconv.FormatFloat(fill, 'f', -1, 64)
	for i := range out {
		switch {
		case !c.IsMissing(i):
			out[i] = c.Str(i)
		case c.Kind() == frame.Numeric:
			out[i] = fillStr
		default:
			out[i] = MissingCategory
		}
	}
	return frame.NewCategorical(c.Name(), out)
}

func toNumeric(c *frame.Column, fill float64) (*frame.Column, error) {
	if c.Kind() != frame.Numeric {
		return nil, errors.NewValueError("Schema.Apply", "column "+c.Name()+" is not numeric")
	}
	src := c.Floats()
	out := make([]float64, len(src))
	for i, v := range src {
		if math.IsNaN(v) {
			v = fill
		}
		out[i] = v
	}
	if c.Integer() {
		return frame.NewInteger(c.Name(), out), nil
	}
	return frame.NewNumeric(c.Name(), out), nil
}

// FillMissing は全ての数値列の NaN を fill で埋める
func FillMissing(f *frame.Frame, fill float64) (*frame.Frame, error) {
	var cols []*frame.Column
	for i := 0; i < f.Width(); i++ {
		c := f.Col(i)
		if c.Kind() != frame.Numeric || c.MissingCount() == 0 {
			continue
		}
		nc, err := toNumeric(c, fill)
		if err != nil {
			return nil, err
		}
		cols = append(cols, nc)
	}
	if len(cols) == 0 {
		return f, nil
	}
	return f.With(cols...)
}
