package features

import (
	"math"

	"github.com/estatelab/rentfold/core/frame"
)

// ReferencePoint は距離の基準点
type ReferencePoint struct {
	Name string
	Lat  float64
	Lon  float64
}

// MajorCities は距離特徴量の基準となる主要都市
var MajorCities = []ReferencePoint{
	{Name: "tokyo", Lat: 35.6762, Lon: 139.6503},
	{Name: "osaka", Lat: 34.6937, Lon: 135.5023},
	{Name: "nagoya", Lat: 35.1815, Lon: 136.9066},
}

// DistanceFeatures は各基準点までの距離 "distance_to_<name>" を追加する
//
// 距離は緯度経度をそのまま使ったユークリッド距離（度単位）で、測地線距離ではない。
// 座標が欠損なら NaN。座標列が無ければ何もしない。
func DistanceFeatures(f *frame.Frame, latColumn, lonColumn string, refs []ReferencePoint, sentinel float64) (*frame.Frame, error) {
	lat, okLat := f.Column(latColumn)
	lon, okLon := f.Column(lonColumn)
	if !okLat || !okLon || len(refs) == 0 {
		return f, nil
	}
	cols := make([]*frame.Column, len(refs))
	for k, ref := range refs {
		d := make([]float64, f.Len())
		for i := range d {
			la, ok1 := present(lat, i, sentinel)
			lo, ok2 := present(lon, i, sentinel)
			if !ok1 || !ok2 {
				d[i] = math.NaN()
				continue
			}
			d[i] = math.Hypot(la-ref.Lat, lo-ref.Lon)
		}
		cols[k] = frame.NewNumeric("distance_to_"+ref.Name, d)
	}
	return f.With(cols...)
}
