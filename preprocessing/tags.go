package preprocessing

import (
	"sort"
	"strings"

	"github.com/estatelab/rentfold/core/frame"
)

// TagTokens は区切り文字で分割したトークンの語彙をソート済みで返す
func TagTokens(c *frame.Column, delimiter string) []string {
	seen := make(map[string]struct{})
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			continue
		}
		for _, tok := range strings.Split(c.Str(i), delimiter) {
			seen[tok] = struct{}{}
		}
	}
	tokens := make([]string, 0, len(seen))
	for tok := range seen {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

// ExpandTags は複数値のテキスト列をトークンごとの 0/1 整数列に展開する
//
// 新しい列名は "<col>_<token>"。元の列は残す。
// 存在しない列や数値列は対象外。
func ExpandTags(f *frame.Frame, columns []string, delimiter string) (*frame.Frame, error) {
	var added []*frame.Column
	for _, name := range columns {
		c, ok := f.Column(name)
		if !ok || c.Kind() == frame.Numeric {
			continue
		}
		tokens := TagTokens(c, delimiter)
		if len(tokens) == 0 {
			continue
		}
		pos := make(map[string]int, len(tokens))
		indicators := make([][]float64, len(tokens))
		for k, tok := range tokens {
			pos[tok] = k
			indicators[k] = make([]float64, f.Len())
		}
		for i := 0; i < c.Len(); i++ {
			if c.IsMissing(i) {
				continue
			}
			for _, tok := range strings.Split(c.Str(i), delimiter) {
				indicators[pos[tok]][i] = 1
			}
		}
		for k, tok := range tokens {
			added = append(added, frame.NewInteger(name+"_"+tok, indicators[k]))
		}
	}
	if len(added) == 0 {
		return f, nil
	}
	return f.With(added...)
}
