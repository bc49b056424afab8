package preprocessing

import (
	"strings"

	"github.com/estatelab/rentfold/core/frame"
)

const (
	prefectureRunes   = 3
	cityFallbackRunes = 10
)

// citySuffixes は市区町村の区切りとして調べる順序。最初に見つかった接尾辞が優先される
var citySuffixes = []string{"市", "区", "町", "村"}

// SplitAddress は住所から都道府県トークンと市区町村トークンを取り出す
//
// 都道府県は先頭3文字。市区町村は citySuffixes を順に調べ、最初に含まれていた
// 接尾辞の最初の出現位置までの部分文字列。どれも無ければ先頭10文字。
// "東京都町田市" は "町" が先に現れるが "市" が優先されるので "東京都町田市" になる。
func SplitAddress(addr string) (prefecture, city string) {
	prefecture = headRunes(addr, prefectureRunes)
	for _, suffix := range citySuffixes {
		if i := strings.Index(addr, suffix); i >= 0 {
			return prefecture, addr[:i+len(suffix)]
		}
	}
	return prefecture, headRunes(addr, cityFallbackRunes)
}

func headRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// AddAddressParts は住所列から "prefecture" と "city" のテキスト列を追加する
//
// 住所が欠損していれば両方欠損になる。住所列が無ければ何もしない。
func AddAddressParts(f *frame.Frame, column string) (*frame.Frame, error) {
	c, ok := f.Column(column)
	if !ok {
		return f, nil
	}
	prefs := make([]string, f.Len())
	cities := make([]string, f.Len())
	for i := 0; i < f.Len(); i++ {
		if c.IsMissing(i) {
			continue
		}
		prefs[i], cities[i] = SplitAddress(c.Str(i))
	}
	return f.With(frame.NewText("prefecture", prefs), frame.NewText("city", cities))
}
