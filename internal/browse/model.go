// Package browse provides the Bubble Tea report browser.
package browse

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/countline/internal/chart"
	"github.com/verte-zerg/countline/internal/model"
	"github.com/verte-zerg/countline/internal/report"
)

const (
	plotHeight   = 12
	defaultWidth = 80
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Options configures the browser.
type Options struct {
	Area        string
	Annotations model.Annotations
	Selection   chart.Selection
}

// Model implements the Bubble Tea report browser.
type Model struct {
	report report.Report
	opts   Options

	activeTab int
	showTable bool
	viewport  viewport.Model
	table     table.Model
	errMsg    string

	width  int
	height int
}

// NewModel constructs a browser over an already built report.
func NewModel(rep report.Report, opts Options) *Model {
	if opts.Selection.Empty() {
		opts.Selection = chart.DefaultSelection
	}
	m := &Model{
		report:   rep,
		opts:     opts,
		viewport: viewport.New(0, 0),
		table:    table.New(table.WithStyles(tableStyles())),
	}
	m.refresh()
	return m
}

// Run starts the browser and blocks until the user quits.
func Run(ctx context.Context, rep report.Report, opts Options) error {
	if len(rep.Sensors) == 0 {
		return model.ErrEmptyInput
	}
	program := tea.NewProgram(NewModel(rep, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "t":
			m.showTable = !m.showTable
			m.syncFocus()
			return m, nil
		case "i", "o", "a":
			m.toggleDirection(msg.String())
			return m, nil
		case "g", "home":
			if m.showTable {
				m.table.GotoTop()
			} else {
				m.viewport.GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.showTable {
				m.table.GotoBottom()
			} else {
				m.viewport.GotoBottom()
			}
			return m, nil
		default:
			var cmd tea.Cmd
			if m.showTable {
				m.table, cmd = m.table.Update(msg)
			} else {
				m.viewport, cmd = m.viewport.Update(msg)
			}
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.viewport.Width = m.width
	m.viewport.Height = bodyHeight
	m.table.SetWidth(m.width)
	m.table.SetHeight(maxInt(1, bodyHeight-1))
}

func (m *Model) moveTab(delta int) {
	count := len(m.report.Sensors)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	m.refresh()
}

func (m *Model) toggleDirection(key string) {
	sel := m.opts.Selection
	switch key {
	case "i":
		sel.In = !sel.In
	case "o":
		sel.Out = !sel.Out
	case "a":
		sel.Total = !sel.Total
	}
	if sel.Empty() {
		m.errMsg = "at least one direction must stay selected"
		return
	}
	m.errMsg = ""
	m.opts.Selection = sel
	m.updateLayout()
	m.refresh()
}

func (m *Model) syncFocus() {
	if m.showTable {
		m.table.Focus()
	} else {
		m.table.Blur()
	}
}

// refresh re-renders the chart and table of the active sensor.
func (m *Model) refresh() {
	if len(m.report.Sensors) == 0 {
		m.viewport.SetContent("No sensors loaded.")
		m.table.SetRows(nil)
		return
	}
	sensor := m.report.Sensors[m.activeTab]
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	m.viewport.SetContent(renderChart(sensor, m.report.Modes, m.opts, width))
	m.viewport.GotoTop()

	cols, rows := tableData(sensor.Series)
	m.table.SetRows(nil)
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
	m.table.GotoTop()
	m.syncFocus()
}

func renderChart(sensor report.SensorSeries, modes []model.Mode, opts Options, width int) string {
	req := chart.Request{
		Title:       chart.Title(opts.Area, modes),
		Lines:       chart.LinesFromSeries(sensor.Label, sensor.Series, opts.Selection),
		Annotations: opts.Annotations,
	}
	var buf bytes.Buffer
	if err := chart.Render(&buf, req, chart.PlotWidthFor(width), plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render chart: %v", err)
	}
	totals := make([]float64, sensor.Series.Len())
	for i, v := range sensor.Series.Total {
		totals[i] = float64(model.Sum(v))
	}
	summary := fmt.Sprintf("Weeks: %d  Trend: %s", sensor.Series.Len(), chart.Sparkline(totals))
	return strings.TrimRight(buf.String(), "\n") + "\n" + summary
}

func tableData(series model.WeeklySeries) ([]table.Column, []table.Row) {
	headers := chart.TableHeaders(series.Modes)
	body := chart.TableRows(series)
	columns := make([]table.Column, len(headers))
	for i, h := range headers {
		width := lipgloss.Width(h)
		for _, row := range body {
			width = maxInt(width, lipgloss.Width(row[i]))
		}
		columns[i] = table.Column{Title: h, Width: width}
	}
	rows := make([]table.Row, len(body))
	for i, row := range body {
		rows[i] = table.Row(row)
	}
	return columns, rows
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.report.Sensors))
	for i, s := range m.report.Sensors {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(s.Label))
		} else {
			parts = append(parts, inactiveNavStyle.Render(s.Label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	return tabs + "\n" + padLine(m.renderSummary(), m.width)
}

func (m *Model) renderSummary() string {
	if len(m.report.Sensors) == 0 {
		return ""
	}
	sensor := m.report.Sensors[m.activeTab]
	summary := fmt.Sprintf("Sensor: %s  Modes: %s  Directions: %s",
		sensor.Name, model.ModeList(m.report.Modes), selectionLabel(m.opts.Selection))
	return headerStyle.Render(truncateLine(summary, m.width))
}

func selectionLabel(sel chart.Selection) string {
	var parts []string
	if sel.In {
		parts = append(parts, "in")
	}
	if sel.Out {
		parts = append(parts, "out")
	}
	if sel.Total {
		parts = append(parts, "total")
	}
	return strings.Join(parts, ",")
}

func (m *Model) renderHelp() string {
	view := "Table: t"
	if m.showTable {
		view = "Chart: t"
	}
	return headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  " + view + "  In/Out/Total: i/o/a  Quit: q")
}

func (m *Model) renderFooter() string {
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderBody() string {
	if m.showTable {
		return tableMutedStyle.Render(m.table.View())
	}
	return m.viewport.View()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
