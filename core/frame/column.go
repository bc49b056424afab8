package frame

import (
	"math"
	"strconv"
)

// Kind は列の型分類を表す
type Kind int

const (
	// Numeric は float64 の列。NaN が欠損
	Numeric Kind = iota
	// Categorical は文字列カテゴリの列
	Categorical
	// Text は分類前の生文字列の列。"" が欠損
	Text
)

// String は Kind の名前を返す
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Column は名前付きの不変な列
//
// Numeric 列は nums、それ以外は strs を保持する。
// integer は全値が存在しかつ整数であることを示す（整数 dtype 相当）。
type Column struct {
	name    string
	kind    Kind
	integer bool
	nums    []float64
	strs    []string
}

// NewNumeric は浮動小数点の数値列を作成する
func NewNumeric(name string, values []float64) *Column {
	return &Column{name: name, kind: Numeric, nums: values}
}

// NewInteger は整数列を作成する
//
// 欠損や非整数値が含まれる場合は通常の数値列として扱われる。
func NewInteger(name string, values []float64) *Column {
	return &Column{name: name, kind: Numeric, nums: values, integer: allIntegral(values)}
}

// NewCategorical はカテゴリ列を作成する
func NewCategorical(name string, values []string) *Column {
	return &Column{name: name, kind: Categorical, strs: values}
}

// NewText は生文字列列を作成する
func NewText(name string, values []string) *Column {
	return &Column{name: name, kind: Text, strs: values}
}

func allIntegral(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return false
		}
	}
	return true
}

// Name は列名を返す
func (c *Column) Name() string { return c.name }

// Kind は列の型分類を返す
func (c *Column) Kind() Kind { return c.kind }

// Integer は整数 dtype 相当かどうかを返す
func (c *Column) Integer() bool { return c.integer }

// Len は行数を返す
func (c *Column) Len() int {
	if c.kind == Numeric {
		return len(c.nums)
	}
	return len(c.strs)
}

// Float は i 行目の数値を返す。数値列以外では NaN
func (c *Column) Float(i int) float64 {
	if c.kind != Numeric {
		return math.NaN()
	}
	return c.nums[i]
}

// Str は i 行目を文字列として返す。数値の欠損は ""
func (c *Column) Str(i int) string {
	if c.kind == Numeric {
		return formatFloat(c.nums[i])
	}
	return c.strs[i]
}

// Floats は数値の裏配列を返す。呼び出し側は変更してはならない
func (c *Column) Floats() []float64 { return c.nums }

// Strings は文字列の裏配列を返す。呼び出し側は変更してはならない
func (c *Column) Strings() []string { return c.strs }

// IsMissing は i 行目が欠損かどうかを返す
func (c *Column) IsMissing(i int) bool {
	if c.kind == Numeric {
		return math.IsNaN(c.nums[i])
	}
	return c.strs[i] == ""
}

// MissingCount は欠損セル数を返す
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Rename は名前だけを変えた列を返す
func (c *Column) Rename(name string) *Column {
	out := *c
	out.name = name
	return &out
}

// Take は idx の行だけを持つ新しい列を返す
func (c *Column) Take(idx []int) *Column {
	out := &Column{name: c.name, kind: c.kind, integer: c.integer}
	if c.kind == Numeric {
		out.nums = make([]float64, len(idx))
		for j, i := range idx {
			out.nums[j] = c.nums[i]
		}
		return out
	}
	out.strs = make([]string, len(idx))
	for j, i := range idx {
		out.strs[j] = c.strs[i]
	}
	return out
}

// Slice は [start, end) の行を共有する列を返す
func (c *Column) Slice(start, end int) *Column {
	out := &Column{name: c.name, kind: c.kind}
	if c.kind == Numeric {
		out.nums = c.nums[start:end:end]
		out.integer = c.integer
		return out
	}
	out.strs = c.strs[start:end:end]
	return out
}

// AsText は列を生文字列列に変換する
func (c *Column) AsText() *Column {
	if c.kind != Numeric {
		return &Column{name: c.name, kind: Text, strs: c.strs}
	}
	strs := make([]string, len(c.nums))
	for i, v := range c.nums {
		strs[i] = formatFloat(v)
	}
	return NewText(c.name, strs)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func missingColumn(name string, kind Kind, n int) *Column {
	if kind == Numeric {
		nums := make([]float64, n)
		for i := range nums {
			nums[i] = math.NaN()
		}
		return NewNumeric(name, nums)
	}
	return &Column{name: name, kind: kind, strs: make([]string, n)}
}
