package preprocessing

import (
	"math"
	"strings"
	"time"

	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/pkg/errors"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006/1/2",
	"20060102",
	"2006-01",
	"200601",
}

// ParseDate は日付文字列から年と月を取り出す
//
// 解釈できない値（"2024-13-45" など）は ok=false を返し、エラーにはしない。
func ParseDate(s string) (year, month int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, false
	}
	for _, layout := range dateLayouts {
		if len(layout) != len(s) && layout != time.RFC3339 && layout != "2006/1/2" {
			continue
		}
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Year(), int(t.Month()), true
		}
	}
	return 0, 0, false
}

// ExpandDates は日付列を "<col>_year", "<col>_month", "<col>_ym" に置き換える
//
// ym は year*100+month。解釈できない値は3列とも NaN。
// 数値列は 20190801 のような整数表現として解釈する。
func ExpandDates(f *frame.Frame, columns []string) (*frame.Frame, error) {
	out := f
	for _, name := range columns {
		c, ok := out.Column(name)
		if !ok {
			continue
		}
		n := c.Len()
		years := make([]float64, n)
		months := make([]float64, n)
		yms := make([]float64, n)
		invalid := 0
		for i := 0; i < n; i++ {
			y, m, ok := ParseDate(c.Str(i))
			if !ok {
				if !c.IsMissing(i) {
					invalid++
				}
				years[i], months[i], yms[i] = math.NaN(), math.NaN(), math.NaN()
				continue
			}
			years[i], months[i], yms[i] = float64(y), float64(m), float64(y*100+m)
		}
		if invalid > 0 {
			errors.Warn(errors.NewDataConversionWarning(name, invalid, "unparseable date set to missing"))
		}

		var err error
		out, err = out.Drop(name).With(
			frame.NewInteger(name+"_year", years),
			frame.NewInteger(name+"_month", months),
			frame.NewInteger(name+"_ym", yms),
		)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
