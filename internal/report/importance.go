// Package report renders training summaries as images.
package report

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/uemura/appendicitis/internal/store"
	"github.com/uemura/appendicitis/pkg/errors"
)

// ImportanceChart draws the given feature importances as a horizontal bar
// chart, most important feature on top, and saves it to path. The image
// format follows the file extension.
func ImportanceChart(title string, weights []store.FeatureWeight, path string) error {
	if len(weights) == 0 {
		return errors.NewValueError("ImportanceChart", "no feature importances to plot")
	}

	// plot draws the first nominal value at the bottom.
	values := make(plotter.Values, len(weights))
	names := make([]string, len(weights))
	for i, w := range weights {
		j := len(weights) - 1 - i
		values[j] = w.Importance
		names[j] = w.Feature
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Importance"
	p.X.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return errors.Wrap(err, "build bar chart")
	}
	bars.Horizontal = true
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalY(names...)

	height := vg.Points(float64(40 + 18*len(weights)))
	if err := p.Save(7*vg.Inch, height, path); err != nil {
		return errors.Wrapf(err, "save chart %s", path)
	}
	return nil
}
