// Package frame は前処理・特徴量生成で使う不変の列指向テーブルを提供します。
//
// 全ての操作は新しい Frame を返し、入力は変更しません。
// 列の裏配列は共有されるため、読み取り専用として扱う必要があります。
package frame

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/estatelab/rentfold/pkg/errors"
)

// Frame は名前が一意で長さの揃った列の順序付き集合
type Frame struct {
	cols  []*Column
	index map[string]int
	nrows int
}

// New は列から Frame を作成する
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{cols: make([]*Column, 0, len(cols)), index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if i == 0 {
			f.nrows = c.Len()
		} else if c.Len() != f.nrows {
			return nil, errors.NewDimensionError("frame.New", f.nrows, c.Len(), 0)
		}
		if _, dup := f.index[c.Name()]; dup {
			return nil, errors.NewValueError("frame.New", "duplicate column "+c.Name())
		}
		f.index[c.Name()] = len(f.cols)
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// MustNew は New と同じだがエラー時に panic する
func MustNew(cols ...*Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// Len は行数を返す
func (f *Frame) Len() int { return f.nrows }

// Width は列数を返す
func (f *Frame) Width() int { return len(f.cols) }

// Columns は列名を順序通りに返す
func (f *Frame) Columns() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name()
	}
	return names
}

// Col は i 番目の列を返す
func (f *Frame) Col(i int) *Column { return f.cols[i] }

// Column は名前で列を取得する
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// HasColumn は列が存在するかどうかを返す
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// With は列を追加した Frame を返す。同名の列は置き換える
func (f *Frame) With(cols ...*Column) (*Frame, error) {
	out := make([]*Column, len(f.cols))
	copy(out, f.cols)
	pos := make(map[string]int, len(f.index))
	for k, v := range f.index {
		pos[k] = v
	}
	for _, c := range cols {
		if i, ok := pos[c.Name()]; ok {
			out[i] = c
			continue
		}
		pos[c.Name()] = len(out)
		out = append(out, c)
	}
	if f.Width() == 0 {
		return New(out...)
	}
	for _, c := range cols {
		if c.Len() != f.nrows {
			return nil, errors.NewDimensionError("frame.With("+c.Name()+")", f.nrows, c.Len(), 0)
		}
	}
	return &Frame{cols: out, index: pos, nrows: f.nrows}, nil
}

// Drop は指定した列を除いた Frame を返す。存在しない名前は無視する
func (f *Frame) Drop(names ...string) *Frame {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := make([]*Column, 0, len(f.cols))
	for _, c := range f.cols {
		if _, ok := drop[c.Name()]; !ok {
			kept = append(kept, c)
		}
	}
	return f.rebuild(kept)
}

// Select は指定した列だけを順序通りに持つ Frame を返す
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := f.Column(n)
		if !ok {
			return nil, errors.NewColumnNotFoundError("frame.Select", n)
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Take は idx の行だけを持つ Frame を返す
func (f *Frame) Take(idx []int) *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.Take(idx)
	}
	out := f.rebuild(cols)
	out.nrows = len(idx)
	return out
}

// Slice は [start, end) の行を持つ Frame を返す
func (f *Frame) Slice(start, end int) *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.Slice(start, end)
	}
	out := f.rebuild(cols)
	out.nrows = end - start
	return out
}

func (f *Frame) rebuild(cols []*Column) *Frame {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c.Name()] = i
	}
	return &Frame{cols: cols, index: idx, nrows: f.nrows}
}

// Concat は行方向に連結する
//
// 列は a の順序に b だけにある列を続けた和集合になり、
// 片側にしかない列は欠損で埋められる。型が食い違う列は Text に揃える。
func Concat(a, b *Frame) (*Frame, error) {
	names := a.Columns()
	for _, n := range b.Columns() {
		if !a.HasColumn(n) {
			names = append(names, n)
		}
	}
	cols := make([]*Column, len(names))
	for i, n := range names {
		ca, okA := a.Column(n)
		cb, okB := b.Column(n)
		switch {
		case !okA:
			ca = missingColumn(n, cb.Kind(), a.Len())
		case !okB:
			cb = missingColumn(n, ca.Kind(), b.Len())
		}
		cols[i] = concatColumns(ca, cb)
	}
	return New(cols...)
}

func concatColumns(a, b *Column) *Column {
	if a.Kind() != b.Kind() {
		if a.Kind() == Numeric {
			a = a.AsText()
		}
		if b.Kind() == Numeric {
			b = b.AsText()
		}
		kind := Text
		if a.Kind() == Categorical && b.Kind() == Categorical {
			kind = Categorical
		}
		return &Column{name: a.Name(), kind: kind, strs: append(append(make([]string, 0, a.Len()+b.Len()), a.strs...), b.strs...)}
	}
	if a.Kind() == Numeric {
		nums := append(append(make([]float64, 0, a.Len()+b.Len()), a.nums...), b.nums...)
		return &Column{name: a.Name(), kind: Numeric, nums: nums, integer: a.integer && b.integer}
	}
	strs := append(append(make([]string, 0, a.Len()+b.Len()), a.strs...), b.strs...)
	return &Column{name: a.Name(), kind: a.Kind(), strs: strs}
}

// Fingerprint は列名・型・値から内容のハッシュを計算する
//
// 同じ内容の Frame は常に同じ値になる。NaN は全て同一視する。
func (f *Frame) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, c := range f.cols {
		_, _ = h.WriteString(c.Name())
		buf[0] = byte(c.Kind())
		if c.Integer() {
			buf[1] = 1
		} else {
			buf[1] = 0
		}
		_, _ = h.Write(buf[:2])
		if c.Kind() == Numeric {
			for _, v := range c.nums {
				bits := math.Float64bits(v)
				if math.IsNaN(v) {
					bits = 0x7ff8000000000001
				}
				binary.LittleEndian.PutUint64(buf[:], bits)
				_, _ = h.Write(buf[:])
			}
			continue
		}
		for _, s := range c.strs {
			binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
			_, _ = h.Write(buf[:])
			_, _ = h.WriteString(s)
		}
	}
	return h.Sum64()
}

// ColumnsOfKind は指定した型の列名を返す
func (f *Frame) ColumnsOfKind(k Kind) []string {
	var out []string
	for _, c := range f.cols {
		if c.Kind() == k {
			out = append(out, c.Name())
		}
	}
	return out
}
