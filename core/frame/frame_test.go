package frame

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatelab/rentfold/pkg/errors"
)

func TestNew(t *testing.T) {
	t.Run("rejects ragged columns", func(t *testing.T) {
		_, err := New(
			NewNumeric("a", []float64{1, 2}),
			NewNumeric("b", []float64{1}),
		)
		var dimErr *errors.DimensionError
		require.True(t, errors.As(err, &dimErr))
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		_, err := New(
			NewNumeric("a", []float64{1}),
			NewText("a", []string{"x"}),
		)
		require.Error(t, err)
	})
}

func TestIntegerFlag(t *testing.T) {
	assert.True(t, NewInteger("n", []float64{1, 2, 3}).Integer())
	assert.False(t, NewInteger("n", []float64{1, math.NaN()}).Integer())
	assert.False(t, NewInteger("n", []float64{1.5}).Integer())
	assert.False(t, NewNumeric("n", []float64{1, 2}).Integer())
}

func TestWithAndDrop(t *testing.T) {
	f := MustNew(
		NewNumeric("a", []float64{1, 2}),
		NewText("b", []string{"x", ""}),
	)

	g, err := f.With(NewNumeric("c", []float64{3, 4}), NewNumeric("a", []float64{9, 9}))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, g.Columns())
	a, _ := g.Column("a")
	assert.Equal(t, []float64{9, 9}, a.Floats())

	orig, _ := f.Column("a")
	assert.Equal(t, []float64{1, 2}, orig.Floats(), "input frame must not change")
	assert.Equal(t, 2, f.Width())

	h := g.Drop("b", "missing")
	assert.Equal(t, []string{"a", "c"}, h.Columns())
	assert.Equal(t, 2, h.Len())

	_, err = f.With(NewNumeric("d", []float64{1}))
	assert.Error(t, err)
}

func TestConcatAndSlice(t *testing.T) {
	train := MustNew(
		NewInteger("rooms", []float64{1, 2}),
		NewText("city", []string{"A", "B"}),
		NewNumeric("money_room", []float64{100, 200}),
	)
	test := MustNew(
		NewInteger("rooms", []float64{3}),
		NewText("city", []string{"C"}),
	)

	all, err := Concat(train, test)
	require.NoError(t, err)
	require.Equal(t, 3, all.Len())
	assert.Equal(t, []string{"rooms", "city", "money_room"}, all.Columns())

	rooms, _ := all.Column("rooms")
	assert.True(t, rooms.Integer())
	target, _ := all.Column("money_room")
	assert.True(t, math.IsNaN(target.Float(2)))

	back := all.Slice(0, 2)
	city, _ := back.Column("city")
	assert.Empty(t, cmp.Diff([]string{"A", "B"}, city.Strings()))

	tail := all.Slice(2, 3)
	assert.Equal(t, 1, tail.Len())
}

func TestConcatMixedKinds(t *testing.T) {
	a := MustNew(NewNumeric("x", []float64{1, math.NaN()}))
	b := MustNew(NewText("x", []string{"foo"}))

	all, err := Concat(a, b)
	require.NoError(t, err)
	x, _ := all.Column("x")
	assert.Equal(t, Text, x.Kind())
	assert.Equal(t, []string{"1", "", "foo"}, x.Strings())
}

func TestTake(t *testing.T) {
	f := MustNew(NewNumeric("a", []float64{10, 20, 30}), NewCategorical("c", []string{"x", "y", "z"}))
	g := f.Take([]int{2, 0})

	a, _ := g.Column("a")
	c, _ := g.Column("c")
	assert.Equal(t, []float64{30, 10}, a.Floats())
	assert.Equal(t, []string{"z", "x"}, c.Strings())
	assert.Equal(t, 2, g.Len())
}

func TestSelect(t *testing.T) {
	f := MustNew(NewNumeric("a", []float64{1}), NewNumeric("b", []float64{2}))

	g, err := f.Select("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, g.Columns())

	_, err = f.Select("zzz")
	var colErr *errors.ColumnNotFoundError
	assert.True(t, errors.As(err, &colErr))
}

func TestFingerprint(t *testing.T) {
	build := func(v float64) *Frame {
		return MustNew(
			NewNumeric("a", []float64{1, math.NaN(), v}),
			NewCategorical("c", []string{"x", "missing", "y"}),
		)
	}

	assert.Equal(t, build(3).Fingerprint(), build(3).Fingerprint())
	assert.NotEqual(t, build(3).Fingerprint(), build(4).Fingerprint())

	renamed := MustNew(
		NewNumeric("b", []float64{1, math.NaN(), 3}),
		NewCategorical("c", []string{"x", "missing", "y"}),
	)
	assert.NotEqual(t, build(3).Fingerprint(), renamed.Fingerprint())

	asText := MustNew(
		NewNumeric("a", []float64{1, math.NaN(), 3}),
		NewText("c", []string{"x", "missing", "y"}),
	)
	assert.NotEqual(t, build(3).Fingerprint(), asText.Fingerprint())
}

func TestColumnHelpers(t *testing.T) {
	c := NewNumeric("walk", []float64{1.5, math.NaN(), 3})
	assert.Equal(t, 1, c.MissingCount())
	assert.Equal(t, "1.5", c.Str(0))
	assert.Equal(t, "", c.Str(1))
	assert.True(t, c.IsMissing(1))
	assert.Equal(t, "distance", c.Rename("distance").Name())
	assert.Equal(t, "walk", c.Name())

	s := NewText("addr", []string{"", "東京都"})
	assert.True(t, s.IsMissing(0))
	assert.True(t, math.IsNaN(s.Float(1)))
}

func TestColumnsOfKind(t *testing.T) {
	f := MustNew(
		NewNumeric("area", []float64{1}),
		NewText("memo", []string{"x"}),
		NewCategorical("city", []string{"a"}),
		NewInteger("year", []float64{2000}),
	)
	assert.Equal(t, []string{"area", "year"}, f.ColumnsOfKind(Numeric))
	assert.Equal(t, []string{"memo"}, f.ColumnsOfKind(Text))
	assert.Nil(t, f.Drop("memo").ColumnsOfKind(Text))
}
