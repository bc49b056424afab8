package pipeline

import (
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/pkg/errors"
)

// Design is the numeric view of the train and test frames handed to the
// regressor. Categorical columns become integer codes.
type Design struct {
	Names       []string
	Categorical []int // column indices holding category codes
	Vocab       map[string][]string
	Train       *mat.Dense
	Test        *mat.Dense
}

// BuildDesign encodes train and test with the same column order (train's).
//
// Category codes index the sorted union of the train and test values, so a
// value only seen in test still gets a code; values outside the vocabulary
// map to -1.
func BuildDesign(train, test *frame.Frame) (*Design, error) {
	names := train.Columns()
	if len(names) == 0 {
		return nil, errors.NewValueError("BuildDesign", "no feature columns")
	}
	if train.Len() == 0 {
		return nil, errors.ErrEmptyData
	}
	if text := train.ColumnsOfKind(frame.Text); len(text) > 0 {
		return nil, errors.NewValueError("BuildDesign", "unclassified text columns: "+strings.Join(text, ", "))
	}
	d := &Design{
		Names: names,
		Vocab: make(map[string][]string),
		Train: mat.NewDense(train.Len(), len(names), nil),
	}
	if test.Len() > 0 {
		d.Test = mat.NewDense(test.Len(), len(names), nil)
	}

	for j, name := range names {
		tc, _ := train.Column(name)
		sc, ok := test.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFoundError("BuildDesign", name)
		}
		if tc.Kind() != sc.Kind() {
			return nil, errors.NewValueError("BuildDesign", "column "+name+" has kind "+tc.Kind().String()+" in train but "+sc.Kind().String()+" in test")
		}

		switch tc.Kind() {
		case frame.Numeric:
			d.Train.SetCol(j, tc.Floats())
			if d.Test != nil {
				d.Test.SetCol(j, sc.Floats())
			}
		case frame.Categorical:
			vocab := Vocabulary(tc, sc)
			d.Vocab[name] = vocab
			d.Categorical = append(d.Categorical, j)
			d.Train.SetCol(j, Encode(tc, vocab))
			if d.Test != nil {
				d.Test.SetCol(j, Encode(sc, vocab))
			}
		default:
			return nil, errors.NewValueError("BuildDesign", "column "+name+" has not been classified")
		}
	}
	return d, nil
}

// Vocabulary returns the sorted distinct values of the given columns
func Vocabulary(cols ...*frame.Column) []string {
	seen := make(map[string]struct{})
	for _, c := range cols {
		for _, v := range c.Strings() {
			seen[v] = struct{}{}
		}
	}
	vocab := make([]string, 0, len(seen))
	for v := range seen {
		vocab = append(vocab, v)
	}
	sort.Strings(vocab)
	return vocab
}

// Encode maps each value to its index in the sorted vocab, -1 when absent
func Encode(c *frame.Column, vocab []string) []float64 {
	out := make([]float64, c.Len())
	for i, v := range c.Strings() {
		k := sort.SearchStrings(vocab, v)
		if k < len(vocab) && vocab[k] == v {
			out[i] = float64(k)
		} else {
			out[i] = -1
		}
	}
	return out
}

// asCategorical turns integer-valued numeric columns into categorical
// columns holding the decimal value.
func asCategorical(f *frame.Frame, names ...string) (*frame.Frame, error) {
	cols := make([]*frame.Column, 0, len(names))
	for _, name := range names {
		c, ok := f.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFoundError("asCategorical", name)
		}
		if c.Kind() == frame.Categorical {
			continue
		}
		values := make([]string, c.Len())
		for i, v := range c.Floats() {
			values[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		cols = append(cols, frame.NewCategorical(name, values))
	}
	if len(cols) == 0 {
		return f, nil
	}
	return f.With(cols...)
}
