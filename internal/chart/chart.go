// Package chart renders weekly traffic series as terminal charts, tables and images.
package chart

import (
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/countline/internal/model"
)

// Line is one plotted series. Weeks and Values are index-aligned.
type Line struct {
	Name   string
	Weeks  []time.Time
	Values []float64
}

// Request describes a chart to render.
type Request struct {
	Title       string
	Lines       []Line
	Annotations model.Annotations
}

// Selection picks which directions become chart lines.
type Selection struct {
	In    bool
	Out   bool
	Total bool
}

// DefaultSelection plots the total only.
var DefaultSelection = Selection{Total: true}

// ParseSelection parses direction names such as "in", "out" and "total".
// "all" selects every direction.
func ParseSelection(values []string) (Selection, error) {
	var sel Selection
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			switch strings.ToLower(strings.TrimSpace(part)) {
			case "":
			case "in":
				sel.In = true
			case "out":
				sel.Out = true
			case "total":
				sel.Total = true
			case "all":
				sel = Selection{In: true, Out: true, Total: true}
			default:
				return Selection{}, &model.ConfigurationError{Field: "direction", Value: part, Reason: "expected in, out, total or all"}
			}
		}
	}
	if sel.Empty() {
		return Selection{}, &model.ConfigurationError{Field: "direction", Value: strings.Join(values, ","), Reason: "no direction selected"}
	}
	return sel, nil
}

// Empty reports whether no direction is selected.
func (s Selection) Empty() bool {
	return !s.In && !s.Out && !s.Total
}

// LinesFromSeries builds one line per selected direction. Each weekly
// value is the sum over all modes of the series, so the plotted values
// agree with the "Sum of [modes]" title rather than showing only the
// first mode.
func LinesFromSeries(label string, series model.WeeklySeries, sel Selection) []Line {
	var lines []Line
	add := func(suffix string, values [][]int64) {
		line := Line{
			Name:   fmt.Sprintf("%s (%s)", label, suffix),
			Weeks:  append([]time.Time(nil), series.Weeks...),
			Values: make([]float64, len(values)),
		}
		for i, v := range values {
			line.Values[i] = float64(model.Sum(v))
		}
		lines = append(lines, line)
	}
	if sel.In {
		add("in", series.In)
	}
	if sel.Out {
		add("out", series.Out)
	}
	if sel.Total {
		add("total", series.Total)
	}
	return lines
}

// Title returns the chart heading for an area and mode set.
func Title(area string, modes []model.Mode) string {
	return fmt.Sprintf("Traffic Counts %s (Sum of [%s])", area, model.ModeList(modes))
}

func (r Request) lines() []Line {
	out := make([]Line, 0, len(r.Lines))
	for _, l := range r.Lines {
		if len(l.Values) == 0 || len(l.Values) != len(l.Weeks) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// span returns the first and last plotted week and the largest value.
func span(lines []Line) (time.Time, time.Time, float64) {
	var first, last time.Time
	var maxVal float64
	for _, l := range lines {
		for i, week := range l.Weeks {
			if first.IsZero() || week.Before(first) {
				first = week
			}
			if week.After(last) {
				last = week
			}
			if l.Values[i] > maxVal {
				maxVal = l.Values[i]
			}
		}
	}
	return first, last, maxVal
}

// bandEnd resolves an open-ended band to the last plotted week.
func bandEnd(b model.Band, last time.Time) time.Time {
	if b.OpenEnded() {
		return last
	}
	return b.End
}
