// Package tui provides the Bubble Tea planner interface.
package tui

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/caffdose/internal/config"
	"github.com/verte-zerg/caffdose/internal/model"
	"github.com/verte-zerg/caffdose/internal/regimen"
	"github.com/verte-zerg/caffdose/internal/report"
	"github.com/verte-zerg/caffdose/internal/simulate"
)

const (
	tabOverview = iota
	tabSchedule
	tabChart
)

const (
	fieldMax = iota
	fieldMin
	fieldStart
	fieldEnd
	fieldSleep
	fieldAbsorption
	fieldElimination
)

const defaultPlotHeight = 12

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
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// PlanFunc computes a regimen for a configuration.
type PlanFunc func(model.PlanConfig) (regimen.Result, error)

// SaveFunc persists a computed plan.
type SaveFunc func(model.PlanRecord) error

// Options tunes rendering and persistence.
type Options struct {
	PlotHeight int
	Color      bool
	Save       SaveFunc
}

// Model implements the Bubble Tea planner UI.
type Model struct {
	plan PlanFunc
	opts Options
	cfg  model.PlanConfig

	result    regimen.Result
	hasResult bool
	errMsg    string

	tabs      []string
	activeTab int
	viewports []viewport.Model
	doseTable table.Model

	width  int
	height int

	formMode   bool
	formInputs []textinput.Model
	formIndex  int
	formError  string
}

// NewModel constructs a planner model and computes the initial plan.
func NewModel(plan PlanFunc, cfg model.PlanConfig, opts Options) *Model {
	if opts.PlotHeight <= 0 {
		opts.PlotHeight = defaultPlotHeight
	}
	m := &Model{
		plan: plan,
		opts: opts,
		cfg:  cfg,
		tabs: []string{"Overview", "Schedule", "Chart"},
	}
	m.initInputs()
	m.doseTable = buildDoseTable(nil, 0, 1)
	m.initViewports()
	m.replan()
	return m
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
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.formMode {
			return m.updateForm(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/", "s":
			return m.startForm()
		case "g", "home":
			if m.activeTab == tabSchedule {
				m.doseTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabSchedule {
				m.doseTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabSchedule {
				var cmd tea.Cmd
				m.doseTable, cmd = m.doseTable.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
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
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

// Config returns the configuration of the current plan.
func (m *Model) Config() model.PlanConfig {
	return m.cfg
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initInputs() {
	m.formInputs = []textinput.Model{
		newFormInput("Max level (mg): "),
		newFormInput("Min level (mg): "),
		newFormInput("Start (HH:MM): "),
		newFormInput("End (HH:MM): "),
		newFormInput("Bedtime (HH:MM): "),
		newFormInput("Absorption half-life (h): "),
		newFormInput("Elimination half-life (h): "),
	}
	m.setInputsFromConfig()
}

func newFormInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	if len(m.formInputs) == 0 {
		return
	}
	m.formInputs[fieldMax].SetValue(formatFloat(m.cfg.Max))
	m.formInputs[fieldMin].SetValue(formatFloat(m.cfg.Min))
	m.formInputs[fieldStart].SetValue(formatHours(m.cfg.Start))
	m.formInputs[fieldEnd].SetValue(formatHours(m.cfg.End))
	m.formInputs[fieldSleep].SetValue(formatHours(m.cfg.Sleep))
	m.formInputs[fieldAbsorption].SetValue(formatFloat(m.cfg.AbsorptionHalfLife))
	m.formInputs[fieldElimination].SetValue(formatFloat(m.cfg.EliminationHalfLife))
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.formMode && m.errMsg != "" {
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
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.doseTable.SetWidth(m.width)
	m.doseTable.SetHeight(maxInt(1, vpHeight-1))
	for i := range m.formInputs {
		promptWidth := lipgloss.Width(m.formInputs[i].Prompt)
		m.formInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
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
	if m.activeTab == tabSchedule {
		m.doseTable.Focus()
	} else {
		m.doseTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	summary := padLines(m.renderSettingsSummary(), m.width)
	return tabs + "\n" + summary
}

func (m *Model) renderSettingsSummary() string {
	summary := fmt.Sprintf("Settings: max=%s mg  min=%s mg  window=%s-%s  bedtime=%s  t½=%sh/%sh",
		formatFloat(m.cfg.Max), formatFloat(m.cfg.Min),
		report.Clock(m.cfg.Start), report.Clock(m.cfg.End), report.Clock(m.cfg.Sleep),
		formatFloat(m.cfg.AbsorptionHalfLife), formatFloat(m.cfg.EliminationHalfLife))
	summary = truncateLine(summary, m.width)
	return headerStyle.Render(summary)
}

func (m *Model) renderHelp() string {
	return headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Settings: /  Quit: q")
}

func (m *Model) renderFormHelp() string {
	return headerStyle.Render("tab/shift+tab: next field  enter: replan  esc: cancel  quit: ctrl+c")
}

func (m *Model) renderFooter() string {
	if m.formMode {
		return m.renderFormHelp()
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderForm() string {
	lines := []string{"Settings (enter to replan, esc to cancel)"}
	for _, input := range m.formInputs {
		lines = append(lines, input.View())
	}
	if m.formError != "" {
		lines = append(lines, errorStyle.Render(m.formError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.formMode {
		return fitLines(m.renderForm(), m.width, height)
	}
	if m.activeTab == tabSchedule {
		switch {
		case !m.hasResult:
			return fitLines("No plan computed.", m.width, height)
		case m.result.Regimen.Empty():
			return fitLines("No doses scheduled.", m.width, height)
		default:
			view := tableMutedStyle.Render(m.doseTable.View())
			return fitLines(view, m.width, height)
		}
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

// replan recomputes the regimen for the current configuration. A failed
// plan keeps the last good result off screen and reports the error.
func (m *Model) replan() {
	res, err := m.plan(m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.hasResult = false
		m.result = regimen.Result{}
		m.doseTable.SetRows(nil)
		m.renderTabContents()
		return
	}
	m.errMsg = ""
	m.result = res
	m.hasResult = true
	m.doseTable.SetRows(doseRows(res.Regimen.Schedule))
	if m.opts.Save != nil {
		if err := m.opts.Save(res.Record(m.cfg)); err != nil {
			m.errMsg = fmt.Sprintf("history: %v", err)
		}
	}
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	if !m.hasResult {
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to compute plan.")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.result, m.cfg.Sleep, width))
	m.viewports[tabSchedule].SetContent("")
	m.viewports[tabChart].SetContent(renderChart(m.result, m.cfg.Sleep, width, m.opts.PlotHeight, m.opts.Color))
}

func renderOverview(res regimen.Result, sleep float64, width int) string {
	var buf bytes.Buffer
	if err := report.RenderRegimen(&buf, res.Regimen, res.Trace, sleep); err != nil {
		return fmt.Sprintf("Failed to render regimen: %v", err)
	}
	cards := renderSummaryCards(res, sleep, width)
	parts := []string{cards}
	for _, note := range report.Notes(res.Regimen) {
		parts = append(parts, noteStyle.Render("Note: "+note))
	}
	parts = append(parts, strings.TrimRight(buf.String(), "\n"))
	return strings.Join(parts, "\n\n")
}

func renderSummaryCards(res regimen.Result, sleep float64, width int) string {
	r := res.Regimen
	cards := []string{
		metricCard("First dose", fmt.Sprintf("%.0f mg @ %s", r.DFirst, report.Clock(r.FirstDoseTime))),
		metricCard("Next doses", fmt.Sprintf("%.0f mg", r.DNext)),
		metricCard("Interval", fmt.Sprintf("%.2f h", r.SubsequentInterval)),
		metricCard("Intakes", strconv.Itoa(len(r.Schedule))),
		metricCard("Bedtime", fmt.Sprintf("%.1f mg", levelAt(res, sleep))),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderChart(res regimen.Result, sleep float64, width, height int, color bool) string {
	var buf bytes.Buffer
	c := report.ChartFor(res.Regimen, res.Trace, sleep)
	if err := report.RenderChart(&buf, c, report.PlotWidthFor(width), height, color); err != nil {
		return fmt.Sprintf("Failed to render chart: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func buildDoseTable(rows []table.Row, width, height int) table.Model {
	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Intake", Width: 7},
		{Title: "Time", Width: 6},
		{Title: "Hours", Width: 7},
		{Title: "Dose (mg)", Width: 10},
		{Title: "Note", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(maxInt(1, height-1)),
	)
	if width > 0 {
		t.SetWidth(width)
	}
	t.SetStyles(doseTableStyles())
	return t
}

func doseRows(sched model.Schedule) []table.Row {
	rows := make([]table.Row, 0, len(sched))
	for i, d := range sched {
		note := ""
		if d.Adjusted {
			note = "adjusted"
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%02d", i+1),
			report.Ordinal(i + 1),
			report.Clock(d.Time),
			fmt.Sprintf("%.2f", d.Time),
			fmt.Sprintf("%.2f", d.Amount),
			note,
		})
	}
	return rows
}

func doseTableStyles() table.Styles {
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

func (m *Model) startForm() (tea.Model, tea.Cmd) {
	m.formMode = true
	m.formError = ""
	m.setInputsFromConfig()
	return m, m.setFormIndex(0)
}

func (m *Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.formMode = false
		m.formError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyForm(); err != nil {
			m.formError = err.Error()
			return m, nil
		}
		m.formMode = false
		m.formError = ""
		m.replan()
		m.updateLayout()
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		return m, m.setFormIndex(m.formIndex + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.setFormIndex(m.formIndex - 1)
	}
	var cmd tea.Cmd
	m.formInputs[m.formIndex], cmd = m.formInputs[m.formIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFormIndex(idx int) tea.Cmd {
	count := len(m.formInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.formIndex = idx
	var cmd tea.Cmd
	for i := range m.formInputs {
		if i == m.formIndex {
			cmd = m.formInputs[i].Focus()
		} else {
			m.formInputs[i].Blur()
		}
	}
	return cmd
}

// applyForm validates the form and stores it in cfg. The planner reports
// domain errors; this only rejects values that do not parse.
func (m *Model) applyForm() error {
	cfg := m.cfg
	var err error
	if cfg.Max, err = parseLevel(m.formInputs[fieldMax].Value(), "max level"); err != nil {
		return err
	}
	if cfg.Min, err = parseLevel(m.formInputs[fieldMin].Value(), "min level"); err != nil {
		return err
	}
	times := []struct {
		field int
		name  string
		dst   *float64
	}{
		{fieldStart, "start", &cfg.Start},
		{fieldEnd, "end", &cfg.End},
		{fieldSleep, "bedtime", &cfg.Sleep},
	}
	for _, tf := range times {
		v, err := config.ParseHours(m.formInputs[tf.field].Value())
		if err != nil {
			return fmt.Errorf("%s: %w", tf.name, err)
		}
		*tf.dst = v
	}
	if cfg.AbsorptionHalfLife, err = parseHalfLife(m.formInputs[fieldAbsorption].Value(), "absorption half-life"); err != nil {
		return err
	}
	if cfg.EliminationHalfLife, err = parseHalfLife(m.formInputs[fieldElimination].Value(), "elimination half-life"); err != nil {
		return err
	}
	m.cfg = cfg
	return nil
}

func parseLevel(input, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s (use a number in mg)", name)
	}
	return v, nil
}

func parseHalfLife(input, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil || !(v > 0) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s (use hours > 0)", name)
	}
	return v, nil
}

func levelAt(res regimen.Result, t float64) float64 {
	if len(res.Trace) == 0 {
		return 0
	}
	return simulate.At(res.Trace, t)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatHours renders whole minutes inside a day as HH:MM so the form
// round-trips through config.ParseHours.
func formatHours(v float64) string {
	minutes := v * 60
	if v >= 0 && v < 24 && math.Abs(minutes-math.Round(minutes)) < 1e-9 {
		return report.Clock(v)
	}
	return formatFloat(v)
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
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}
