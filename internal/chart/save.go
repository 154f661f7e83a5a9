package chart

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/verte-zerg/countline/internal/model"
)

const (
	defaultImageWidth  = 10.0
	defaultImageHeight = 5.0
)

var (
	bandFill      = color.NRGBA{R: 128, G: 128, B: 128, A: 64}
	eventColorRGB = color.NRGBA{R: 200, G: 30, B: 30, A: 255}
)

// Save renders the request to an image file. The format follows the
// extension of path: .png or .svg.
func Save(path string, req Request, widthInches, heightInches float64) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".png" && ext != ".svg" {
		return &model.ConfigurationError{Field: "out", Value: path, Reason: "expected a .png or .svg file"}
	}
	if widthInches <= 0 {
		widthInches = defaultImageWidth
	}
	if heightInches <= 0 {
		heightInches = defaultImageHeight
	}
	p, err := NewPlot(req)
	if err != nil {
		return err
	}
	if err := p.Save(vg.Length(widthInches)*vg.Inch, vg.Length(heightInches)*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	return nil
}

// NewPlot builds the gonum plot for the request.
func NewPlot(req Request) (*plot.Plot, error) {
	lines := req.lines()
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: nothing to plot", model.ErrEmptyInput)
	}
	first, last, maxVal := span(lines)
	if !last.After(first) {
		last = first.AddDate(0, 0, 7)
	}
	top := niceCeil(maxVal)

	p := plot.New()
	p.Title.Text = req.Title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Counts"
	p.X.Tick.Marker = plot.TimeTicks{Format: tickLayout}
	p.X.Min, p.X.Max = unix(first), unix(last)
	p.Y.Min, p.Y.Max = 0, top
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for _, b := range req.Annotations.Bands {
		start, end := b.Start, bandEnd(b, last)
		if end.Before(first) || start.After(last) || end.Before(start) {
			continue
		}
		poly, err := plotter.NewPolygon(plotter.XYs{
			{X: unix(start), Y: 0},
			{X: unix(end), Y: 0},
			{X: unix(end), Y: top},
			{X: unix(start), Y: top},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to draw band %q: %w", b.Label, err)
		}
		poly.Color = bandFill
		poly.LineStyle.Width = 0
		p.Add(poly)
		p.Legend.Add(b.Label, poly)
	}

	for i, l := range lines {
		xys := make(plotter.XYs, len(l.Values))
		for j, v := range l.Values {
			xys[j] = plotter.XY{X: unix(l.Weeks[j]), Y: v}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to draw line %q: %w", l.Name, err)
		}
		line.LineStyle.Color = plotutil.Color(i)
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(l.Name, line)
	}

	var events []model.Event
	for _, ev := range req.Annotations.Events {
		if ev.Date.Before(first) || ev.Date.After(last) {
			continue
		}
		events = append(events, ev)
	}
	if len(events) > 0 {
		labels := plotter.XYLabels{}
		for i, ev := range events {
			rule, err := plotter.NewLine(plotter.XYs{{X: unix(ev.Date), Y: 0}, {X: unix(ev.Date), Y: top}})
			if err != nil {
				return nil, fmt.Errorf("failed to draw event %q: %w", ev.Label, err)
			}
			rule.LineStyle.Color = eventColorRGB
			rule.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(rule)
			labels.XYs = append(labels.XYs, plotter.XY{X: unix(ev.Date), Y: top * (0.95 - 0.06*float64(i%3))})
			labels.Labels = append(labels.Labels, ev.Label)
		}
		eventLabels, err := plotter.NewLabels(labels)
		if err != nil {
			return nil, fmt.Errorf("failed to label events: %w", err)
		}
		eventLabels.Offset = vg.Point{X: vg.Points(2)}
		p.Add(eventLabels)
	}
	return p, nil
}

func unix(t time.Time) float64 {
	return float64(t.Unix())
}
