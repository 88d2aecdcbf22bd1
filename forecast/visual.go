package forecast

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveComparisonPlot writes a PDF charting ground truth against the
// prediction for one window: each series is the lead-in input followed by its
// respective horizon, so the forecast divergence is visible in context.
func SaveComparisonPlot(groundTruth, prediction []float64, path string) error {
	p := plot.New()
	p.Title.Text = "Forecast vs Ground Truth"
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Value"

	truthLine, err := plotter.NewLine(toXYs(groundTruth))
	if err != nil {
		return fmt.Errorf("failed to build ground-truth line: %v", err)
	}
	predLine, err := plotter.NewLine(toXYs(prediction))
	if err != nil {
		return fmt.Errorf("failed to build prediction line: %v", err)
	}
	predLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(truthLine, predLine)
	p.Legend.Add("GroundTruth", truthLine)
	p.Legend.Add("Prediction", predLine)
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %v", err)
	}
	return nil
}

func toXYs(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	return pts
}
