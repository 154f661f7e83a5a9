package chart

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/countline/internal/model"
	"github.com/verte-zerg/countline/internal/weekly"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// WeekLabel formats a week start with its week-of-year number.
func WeekLabel(series model.WeeklySeries, i int) string {
	start := series.Weeks[i]
	return fmt.Sprintf("%s W%02d", start.Format("2006-01-02"), weekly.WeekOfYear(start))
}

// TableHeaders returns the column names used by RenderTable.
func TableHeaders(modes []model.Mode) []string {
	headers := []string{"Week", "In", "Out", "Total"}
	for _, m := range modes {
		headers = append(headers, string(m))
	}
	return headers
}

// TableRows returns one row per week: in, out and total summed over
// modes, then the total of each mode.
func TableRows(series model.WeeklySeries) [][]string {
	rows := make([][]string, 0, series.Len())
	for i := range series.Weeks {
		row := []string{
			WeekLabel(series, i),
			strconv.FormatInt(model.Sum(series.In[i]), 10),
			strconv.FormatInt(model.Sum(series.Out[i]), 10),
			strconv.FormatInt(model.Sum(series.Total[i]), 10),
		}
		for _, v := range series.Total[i] {
			row = append(row, strconv.FormatInt(v, 10))
		}
		rows = append(rows, row)
	}
	return rows
}

// RenderTable writes the weekly table followed by a sparkline of totals.
func RenderTable(w io.Writer, series model.WeeklySeries) error {
	headers := TableHeaders(series.Modes)
	rightAlign := map[int]bool{}
	for i := 1; i < len(headers); i++ {
		rightAlign[i] = true
	}
	for _, line := range FormatTable(headers, TableRows(series), rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	totals := make([]float64, series.Len())
	for i, v := range series.Total {
		totals[i] = float64(model.Sum(v))
	}
	if _, err := fmt.Fprintf(w, "Trend: %s\n", Sparkline(totals)); err != nil {
		return err
	}
	return nil
}

// Sparkline renders values as block characters scaled from 0 to the maximum.
func Sparkline(values []float64) string {
	maxVal := 0.0
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if maxVal > 0 && v > 0 {
			idx = int(v / maxVal * float64(len(sparkRunes)-1))
		}
		if idx >= len(sparkRunes) {
			idx = len(sparkRunes) - 1
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

// FormatTable aligns rows under headers. Columns in rightAlignCols are
// right-aligned; display width accounts for wide runes.
func FormatTable(headers []string, rows [][]string, rightAlignCols map[int]bool) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, formatRow(headers, widths, rightAlignCols))
	}
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool) string {
	var b strings.Builder
	for i := 0; i < len(widths); i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(padCell(cell, widths[i], rightAlignCols[i]))
	}
	return strings.TrimRight(b.String(), " ")
}

func padCell(value string, width int, rightAlign bool) string {
	if rightAlign {
		return runewidth.FillLeft(value, width)
	}
	return runewidth.FillRight(value, width)
}
