package dataio

import (
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
)

// ClusterScatter draws rows coloured by geo cluster with the centroids on top.
// Rows labelled -1 (no coordinates) are skipped. The image format follows the
// file extension.
func ClusterScatter(path string, lat, lon []float64, labels []int, centers [][2]float64) error {
	if len(lat) != len(lon) || len(lat) != len(labels) {
		return errors.NewDimensionError("ClusterScatter", len(lat), len(labels), 0)
	}

	p := plot.New()
	p.Title.Text = "Geo clusters"
	p.X.Label.Text = "longitude"
	p.Y.Label.Text = "latitude"

	groups := make(map[int]plotter.XYs)
	for i, k := range labels {
		if k < 0 {
			continue
		}
		groups[k] = append(groups[k], plotter.XY{X: lon[i], Y: lat[i]})
	}
	ids := make([]int, 0, len(groups))
	for k := range groups {
		ids = append(ids, k)
	}
	sort.Ints(ids)
	for _, k := range ids {
		s, err := plotter.NewScatter(groups[k])
		if err != nil {
			return errors.Wrapf(err, "scatter for cluster %d", k)
		}
		s.Color = plotutil.Color(k)
		s.Radius = vg.Points(1)
		p.Add(s)
	}

	if len(centers) > 0 {
		pts := make(plotter.XYs, len(centers))
		for i, c := range centers {
			pts[i] = plotter.XY{X: c[1], Y: c[0]}
		}
		c, err := plotter.NewScatter(pts)
		if err != nil {
			return errors.Wrap(err, "centroid scatter")
		}
		c.Color = color.RGBA{A: 255}
		c.Shape = draw.CrossGlyph{}
		c.Radius = vg.Points(5)
		p.Add(c)
	}

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	log.GetLoggerWithName("dataio").Info("Chart saved", log.PathKey, path, log.ClustersKey, len(ids))
	return nil
}

// ImportanceChart draws a horizontal bar chart of the top features, the most
// important one at the top. top <= 0 plots every feature.
func ImportanceChart(path string, names []string, importance []float64, top int) error {
	if len(names) != len(importance) {
		return errors.NewDimensionError("ImportanceChart", len(names), len(importance), 0)
	}
	if len(names) == 0 {
		return errors.NewValueError("ImportanceChart", "no features to plot")
	}

	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return importance[order[a]] > importance[order[b]] })
	if top > 0 && top < len(order) {
		order = order[:top]
	}

	// NominalY puts index 0 at the bottom
	n := len(order)
	values := make(plotter.Values, n)
	labels := make([]string, n)
	for i, idx := range order {
		values[n-1-i] = importance[idx]
		labels[n-1-i] = names[idx]
	}

	p := plot.New()
	p.Title.Text = "Feature importance"
	p.X.Label.Text = "importance (%)"

	bars, err := plotter.NewBarChart(values, vg.Points(8))
	if err != nil {
		return errors.Wrap(err, "importance bars")
	}
	bars.Horizontal = true
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(labels...)

	height := vg.Points(float64(12*n)) + 1*vg.Inch
	if err := p.Save(8*vg.Inch, height, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	log.GetLoggerWithName("dataio").Info("Chart saved", log.PathKey, path, log.FeaturesKey, n)
	return nil
}
