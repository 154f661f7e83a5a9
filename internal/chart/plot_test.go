package chart

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/countline/internal/model"
)

func weeksOf2020() ([]time.Time, []float64) {
	start := time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)
	weeks := make([]time.Time, 0, 52)
	values := make([]float64, 0, 52)
	for i := 0; i < 52; i++ {
		weeks = append(weeks, start.AddDate(0, 0, 7*i))
		values = append(values, float64(100+i*10))
	}
	return weeks, values
}

func testRequest() Request {
	weeks, values := weeksOf2020()
	return Request{
		Title: "Traffic Counts Cambridge (Sum of [Car])",
		Lines: []Line{
			{Name: "Mill Road (total)", Weeks: weeks, Values: values},
			{Name: "Mill Road (in)", Weeks: weeks, Values: values[:len(values)-1]},
		},
		Annotations: model.Annotations{
			Events: []model.Event{
				{Date: time.Date(2020, 3, 23, 0, 0, 0, 0, time.UTC), Label: "1st Lockdown"},
				{Date: time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC), Label: "Out of range"},
			},
			Bands: []model.Band{
				{Start: time.Date(2020, 6, 23, 0, 0, 0, 0, time.UTC), Label: "Bridge Closed '20"},
			},
		},
	}
}

func TestRender(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	if err := Render(&buf, testRequest(), 40, 6, false); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Traffic Counts Cambridge (Sum of [Car])",
		"Legend:",
		"Mill Road (total) (solid)",
		"1st Lockdown (23/03/2020)",
		"Bridge Closed '20 (23/06/2020-)",
		"  1.0k │ ",
		"     0 │ ",
		"04/2020",
		"└",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Out of range") {
		t.Fatalf("expected out-of-range event to be skipped:\n%s", out)
	}
	if strings.Contains(out, "Mill Road (in)") {
		t.Fatalf("expected misaligned line to be skipped:\n%s", out)
	}
	if !strings.ContainsRune(out, eventRune) || !strings.ContainsRune(out, bandRune) {
		t.Fatalf("expected event rule and band shading:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no color codes for a buffer")
	}
}

func TestRenderColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	if err := Render(&buf, testRequest(), 40, 6, true); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), colorPalette[0].code) {
		t.Fatalf("expected forced color output")
	}

	t.Setenv("NO_COLOR", "1")
	buf.Reset()
	if err := Render(&buf, testRequest(), 40, 6, true); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected NO_COLOR to disable color")
	}
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Request{Title: "empty"}, 40, 6, false); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestPlotWidthFor(t *testing.T) {
	total := 80
	expected := total - axisLabelWidth - 3
	if got := PlotWidthFor(total); got != expected {
		t.Fatalf("expected width %d, got %d", expected, got)
	}
	if got := PlotWidthFor(0); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
}

func TestNiceCeil(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 1},
		{7, 10},
		{950, 1000},
		{1800, 2000},
		{2100, 2500},
		{4200, 5000},
		{5000, 5000},
	}
	for _, tt := range tests {
		if got := niceCeil(tt.in); got != tt.want {
			t.Fatalf("niceCeil(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatAxisValue(t *testing.T) {
	tests := map[float64]string{
		0:       "0",
		250:     "250",
		2500:    "2.5k",
		25000:   "25k",
		2500000: "2.5M",
	}
	for in, want := range tests {
		if got := formatAxisValue(in); got != want {
			t.Fatalf("formatAxisValue(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestLinesFromSeries(t *testing.T) {
	series := model.WeeklySeries{
		Modes: []model.Mode{model.ModeCar, model.ModeBus},
		Weeks: []time.Time{
			time.Date(2020, 3, 16, 0, 0, 0, 0, time.UTC),
			time.Date(2020, 3, 23, 0, 0, 0, 0, time.UTC),
		},
		In:    [][]int64{{1, 2}, {3, 4}},
		Out:   [][]int64{{5, 6}, {7, 8}},
		Total: [][]int64{{6, 8}, {10, 12}},
	}
	lines := LinesFromSeries("Mill Road", series, Selection{In: true, Total: true})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Name != "Mill Road (in)" || lines[1].Name != "Mill Road (total)" {
		t.Fatalf("unexpected names: %q, %q", lines[0].Name, lines[1].Name)
	}
	if lines[0].Values[0] != 3 || lines[0].Values[1] != 7 {
		t.Fatalf("unexpected in values: %v", lines[0].Values)
	}
	if lines[1].Values[0] != 14 || lines[1].Values[1] != 22 {
		t.Fatalf("unexpected total values: %v", lines[1].Values)
	}
}

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection([]string{"in,Total"})
	if err != nil {
		t.Fatalf("ParseSelection failed: %v", err)
	}
	if !sel.In || sel.Out || !sel.Total {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	sel, err = ParseSelection([]string{"all"})
	if err != nil || !sel.In || !sel.Out || !sel.Total {
		t.Fatalf("expected all directions, got %+v (%v)", sel, err)
	}
	var cfgErr *model.ConfigurationError
	if _, err := ParseSelection([]string{"sideways"}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if _, err := ParseSelection(nil); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for empty selection, got %v", err)
	}
}

func TestTitle(t *testing.T) {
	got := Title("Cambridge", []model.Mode{model.ModeCar, model.ModeMotorbike})
	if got != "Traffic Counts Cambridge (Sum of [Car, Motorbike])" {
		t.Fatalf("unexpected title: %q", got)
	}
}
