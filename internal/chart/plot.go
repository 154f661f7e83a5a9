package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/verte-zerg/countline/internal/model"
)

type lineStyle struct {
	name   string
	period int
	on     int
}

type ansiColor struct {
	name string
	code string
}

const (
	defaultPlotHeight   = 12
	minPlotWidth        = 10
	axisLabelWidth      = 6
	axisSeparator       = " │ "
	axisNote            = "Weekly counts; y axis starts at 0."
	tickLayout          = "01/2006"
	detailLayout        = "02/01/2006"
	eventRune           = '┊'
	bandRune            = '░'
	colorReset          = "\x1b[0m"
	eventColor          = "\x1b[31m"
	bandColor           = "\x1b[90m"
	terminalWidthBackup = 80
)

var lineStyles = []lineStyle{
	{name: "solid", period: 1, on: 1},
	{name: "dashed", period: 6, on: 3},
	{name: "dotted", period: 4, on: 1},
	{name: "dashdot", period: 8, on: 3},
}

var colorPalette = []ansiColor{
	{name: "cyan", code: "\x1b[36m"},
	{name: "magenta", code: "\x1b[35m"},
	{name: "yellow", code: "\x1b[33m"},
	{name: "green", code: "\x1b[32m"},
	{name: "blue", code: "\x1b[34m"},
}

const (
	eventSymbols = "123456789"
	bandSymbols  = "ABCDEFGHIJ"
)

// grid maps weeks and counts onto braille pixels. Each cell is 2x4 pixels.
type grid struct {
	first  time.Time
	last   time.Time
	width  int
	height int
	top    float64
}

func (g grid) pixelX(t time.Time) int {
	maxPx := g.width*2 - 1
	frac := float64(t.Sub(g.first)) / float64(g.last.Sub(g.first))
	px := int(math.Round(frac * float64(maxPx)))
	if px < 0 {
		px = 0
	}
	if px > maxPx {
		px = maxPx
	}
	return px
}

func (g grid) column(t time.Time) int {
	return g.pixelX(t) / 2
}

type marker struct {
	symbol rune
	label  string
	detail string
	event  bool
}

// overlay holds the annotation markers and the columns they cover.
type overlay struct {
	markers []marker
	eventAt []int
	bandAt  []int
	row     []rune
}

// Render draws the request as a braille line chart with a date axis.
// All lines share one y axis that starts at 0. Events are drawn as
// vertical rules and bands as shaded columns.
func Render(w io.Writer, req Request, width, height int, forceColor bool) error {
	lines := req.lines()
	if len(lines) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = autoPlotWidth()
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	first, last, maxVal := span(lines)
	if !last.After(first) {
		last = first.AddDate(0, 0, 7)
	}
	g := grid{first: first, last: last, width: width, height: height, top: niceCeil(maxVal)}

	seriesCells := make([][][]uint8, 0, len(lines))
	for si, l := range lines {
		cells := makeCells(height, width)
		style := lineStyles[si%len(lineStyles)]
		prevX, prevY := -1, -1
		for i, v := range l.Values {
			px := g.pixelX(l.Weeks[i])
			py := valueToRow(v, 0, g.top, height*4)
			if prevX >= 0 {
				drawLine(prevX, prevY, px, py, func(dx, dy int) {
					if style.shouldPlot(dx) {
						setBrailleDot(cells, dx, dy)
					}
				})
			}
			setBrailleDot(cells, px, py)
			prevX, prevY = px, py
		}
		seriesCells = append(seriesCells, cells)
	}

	ov := g.annotate(req.Annotations)
	useColor := shouldUseColor(w, forceColor)
	axisLabels := makeAxisLabels(height, g.top)
	pad := strings.Repeat(" ", axisLabelWidth+runewidth.StringWidth(axisSeparator))

	if req.Title != "" {
		if _, err := fmt.Fprintln(w, req.Title); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, axisNote); err != nil {
		return err
	}
	if len(ov.markers) > 0 {
		if _, err := fmt.Fprintln(w, strings.TrimRight(pad+string(ov.row), " ")); err != nil {
			return err
		}
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		fmt.Fprintf(&row, "%*s%s", axisLabelWidth, axisLabels[y], axisSeparator)
		for x := 0; x < width; x++ {
			mask, colorIdx := composeCell(seriesCells, x, y)
			ch, color := brailleFromMask(mask), ""
			switch {
			case mask != 0:
				color = colorPalette[colorIdx%len(colorPalette)].code
			case ov.eventAt[x] >= 0:
				ch, color = eventRune, eventColor
			case ov.bandAt[x] >= 0:
				ch, color = bandRune, bandColor
			}
			if useColor && color != "" {
				row.WriteString(color)
				row.WriteRune(ch)
				row.WriteString(colorReset)
			} else {
				row.WriteRune(ch)
			}
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	axis, ticks := g.xAxis()
	if _, err := fmt.Fprintf(w, "%*s %s\n", axisLabelWidth, "", axis); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.TrimRight(pad+ticks, " ")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, renderLegend(lines, useColor)); err != nil {
		return err
	}
	if len(ov.markers) > 0 {
		if _, err := fmt.Fprintln(w, renderAnnotations(ov.markers, useColor)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return nil
}

// annotate places events and bands that intersect the plotted range.
func (g grid) annotate(a model.Annotations) overlay {
	ov := overlay{
		eventAt: make([]int, g.width),
		bandAt:  make([]int, g.width),
		row:     []rune(strings.Repeat(" ", g.width)),
	}
	for i := range ov.eventAt {
		ov.eventAt[i] = -1
		ov.bandAt[i] = -1
	}

	bands := 0
	for _, b := range a.Bands {
		start, end := b.Start, bandEnd(b, g.last)
		if end.Before(g.first) || start.After(g.last) || end.Before(start) {
			continue
		}
		if start.Before(g.first) {
			start = g.first
		}
		if end.After(g.last) {
			end = g.last
		}
		symbol := '*'
		if bands < len(bandSymbols) {
			symbol = rune(bandSymbols[bands])
		}
		bands++
		idx := len(ov.markers)
		detail := b.Start.Format(detailLayout) + "-"
		if !b.OpenEnded() {
			detail += b.End.Format(detailLayout)
		}
		ov.markers = append(ov.markers, marker{symbol: symbol, label: b.Label, detail: detail})
		c0, c1 := g.column(start), g.column(end)
		for c := c0; c <= c1; c++ {
			if ov.bandAt[c] < 0 {
				ov.bandAt[c] = idx
			}
		}
		ov.row[c0] = symbol
	}

	events := 0
	for _, ev := range a.Events {
		if ev.Date.Before(g.first) || ev.Date.After(g.last) {
			continue
		}
		symbol := '*'
		if events < len(eventSymbols) {
			symbol = rune(eventSymbols[events])
		}
		events++
		col := g.column(ev.Date)
		ov.eventAt[col] = len(ov.markers)
		ov.markers = append(ov.markers, marker{symbol: symbol, label: ev.Label, detail: ev.Date.Format(detailLayout), event: true})
		ov.row[col] = symbol
	}
	return ov
}

// xAxis returns the axis rule and the month tick labels below it.
func (g grid) xAxis() (string, string) {
	rule := []rune("└─" + strings.Repeat("─", g.width))
	labels := []rune(strings.Repeat(" ", g.width+len(tickLayout)))

	months := (g.last.Year()-g.first.Year())*12 + int(g.last.Month()-g.first.Month()) + 1
	step := 1
	for _, s := range []int{1, 2, 3, 4, 6, 12, 24, 60} {
		step = s
		if months/s*(len(tickLayout)+1) <= g.width {
			break
		}
	}
	t := time.Date(g.first.Year(), g.first.Month(), 1, 0, 0, 0, 0, g.first.Location())
	if t.Before(g.first) {
		t = t.AddDate(0, 1, 0)
	}
	for step <= 12 && int(t.Month()-1)%step != 0 {
		t = t.AddDate(0, 1, 0)
	}
	next := 0
	for ; !t.After(g.last); t = t.AddDate(0, step, 0) {
		col := g.column(t)
		if col < next {
			continue
		}
		rule[col+2] = '┬'
		copy(labels[col:], []rune(t.Format(tickLayout)))
		next = col + len(tickLayout) + 1
	}
	return string(rule), string(labels)
}

func autoPlotWidth() int {
	return PlotWidthFor(terminalWidth())
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - axisLabelWidth - runewidth.StringWidth(axisSeparator)
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func makeAxisLabels(height int, top float64) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = formatAxisValue(top)
	if height > 2 {
		mid := valueToRow(top/2, 0, top, height*4) / 4
		if mid > 0 && mid < height-1 {
			labels[mid] = formatAxisValue(top / 2)
		}
	}
	if height > 1 {
		labels[height-1] = "0"
	}
	return labels
}

func formatAxisValue(v float64) string {
	switch {
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e4:
		return fmt.Sprintf("%.0fk", v/1e3)
	case v >= 1e3:
		return fmt.Sprintf("%.1fk", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// niceCeil rounds v up to 1, 2, 2.5 or 5 times a power of ten.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 2.5, 5} {
		if m*exp >= v {
			return m * exp
		}
	}
	return 10 * exp
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]uint8, width)
	}
	return cells
}

func composeCell(seriesCells [][][]uint8, x, y int) (uint8, int) {
	var mask uint8
	colorIdx := -1
	for i, cells := range seriesCells {
		if y < 0 || y >= len(cells) {
			continue
		}
		if x < 0 || x >= len(cells[y]) {
			continue
		}
		cellMask := cells[y][x]
		if cellMask == 0 {
			continue
		}
		if colorIdx == -1 {
			colorIdx = i
		}
		mask |= cellMask
	}
	return mask, colorIdx
}

func (ls lineStyle) shouldPlot(x int) bool {
	if ls.period <= 1 {
		return true
	}
	if x < 0 {
		x = -x
	}
	return x%ls.period < ls.on
}

func valueToRow(v, minVal, maxVal float64, height int) int {
	if height <= 1 || maxVal <= minVal {
		return 0
	}
	pos := (v - minVal) / (maxVal - minVal)
	row := int(math.Round((1 - pos) * float64(height-1)))
	if row < 0 {
		row = 0
	}
	if row >= height {
		row = height - 1
	}
	return row
}

func renderLegend(lines []Line, useColor bool) string {
	parts := make([]string, 0, len(lines))
	dot := brailleFromMask(0x01)
	for i, l := range lines {
		styleName := lineStyles[i%len(lineStyles)].name
		label := fmt.Sprintf("%c %s (%s)", dot, l.Name, styleName)
		if useColor {
			color := colorPalette[i%len(colorPalette)].code
			label = color + label + colorReset
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}

func renderAnnotations(markers []marker, useColor bool) string {
	parts := make([]string, 0, len(markers))
	for _, m := range markers {
		label := fmt.Sprintf("%c %s (%s)", m.symbol, m.label, m.detail)
		if useColor {
			color := bandColor
			if m.event {
				color = eventColor
			}
			label = color + label + colorReset
		}
		parts = append(parts, label)
	}
	return "Annotations: " + strings.Join(parts, "  ")
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY := y / 4
	cellX := x / 2
	if cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}
