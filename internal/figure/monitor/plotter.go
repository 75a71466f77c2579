package monitor

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/skintrack/internal/figure/series"
)

var axisColors = [3]color.Color{
	color.RGBA{R: 220, G: 60, B: 60, A: 255},
	color.RGBA{R: 60, G: 170, B: 80, A: 255},
	color.RGBA{R: 60, G: 110, B: 220, A: 255},
}

// GroupPlot builds the static plot of one group: X, Y and Z against frame.
func GroupPlot(snap series.Snapshot, g series.Group) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = groupTitles[g]
	p.X.Label.Text = "frame"
	p.Y.Label.Text = g.String()

	for i, values := range snap.Group(g) {
		pts := make(plotter.XYs, len(values))
		for k, v := range values {
			pts[k] = plotter.XY{X: float64(snap.Frames[k]), Y: v}
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = axisColors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(axisNames[i], line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteGroupPNG renders one group as PNG.
func WriteGroupPNG(w io.Writer, snap series.Snapshot, g series.Group) error {
	p, err := GroupPlot(snap, g)
	if err != nil {
		return fmt.Errorf("plot %s: %w", g, err)
	}
	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("plot %s: %w", g, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePlots writes one PNG per group into dir, named after the group.
func SavePlots(dir string, snap series.Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	for _, g := range series.Groups {
		p, err := GroupPlot(snap, g)
		if err != nil {
			return err
		}
		file := filepath.Join(dir, g.String()+".png")
		if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
			return fmt.Errorf("save %s plot: %w", g, err)
		}
	}
	return nil
}
