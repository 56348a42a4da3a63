package analysis

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// #region charts

// ChartMetrics are the metrics RenderCharts draws, one PNG each.
var ChartMetrics = []Metric{MetricAccuracy, MetricHallucinationRate, MetricAbstentionRate}

var chartFiles = map[Metric]string{
	MetricAccuracy:          "accuracy_by_condition.png",
	MetricHallucinationRate: "hallucination_rate_by_condition.png",
	MetricAbstentionRate:    "abstain_rate_by_condition.png",
}

var barColor = color.RGBA{R: 0x4c, G: 0x72, B: 0xb0, A: 0xff}

// RenderCharts writes one bar chart per metric into dir and returns the file
// paths. Per-category summaries are ignored.
func RenderCharts(dir string, sums []Summary) ([]string, error) {
	var conds []Summary
	for _, s := range sums {
		if s.Category == "" {
			conds = append(conds, s)
		}
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("render charts: no condition summaries")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	paths := make([]string, 0, len(ChartMetrics))
	for _, m := range ChartMetrics {
		path := filepath.Join(dir, chartFiles[m])
		if err := renderBarChart(path, m, conds); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func renderBarChart(path string, m Metric, sums []Summary) error {
	p := plot.New()
	p.Title.Text = m.Title() + " by condition"
	p.Y.Label.Text = m.Title()
	p.Y.Min = 0
	p.Y.Max = 1

	values := make(plotter.Values, len(sums))
	names := make([]string, len(sums))
	for i, s := range sums {
		values[i] = m.Value(s)
		names[i] = string(s.Condition)
	}

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return fmt.Errorf("bar chart %s: %w", m, err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	return nil
}

// #endregion
