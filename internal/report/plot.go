package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/verte-zerg/caffdose/internal/model"
	"github.com/verte-zerg/caffdose/internal/simulate"
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
	axisLabelWidth      = 7
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
	headroom            = 1.2
)

const (
	markerDose  = '▲'
	markerEnd   = 'E'
	markerSleep = 'Z'
)

var (
	styleSolid  = lineStyle{name: "solid", period: 1, on: 1}
	styleDashed = lineStyle{name: "dashed", period: 6, on: 3}
	styleDotted = lineStyle{name: "dotted", period: 4, on: 1}

	colorLevel = ansiColor{name: "cyan", code: "\x1b[36m"}
	colorMax   = ansiColor{name: "red", code: "\x1b[31m"}
	colorMin   = ansiColor{name: "green", code: "\x1b[32m"}
	colorMark  = ansiColor{name: "magenta", code: "\x1b[35m"}
)

// Chart describes a concentration plot.
type Chart struct {
	Title   string
	Trace   model.Trace
	Targets model.Targets
	Doses   model.Schedule
	End     float64
	Sleep   float64
	From    float64
	To      float64
}

// ChartFor builds a chart spanning two hours before the first dose (not
// before 0) to two hours after bedtime.
func ChartFor(r model.Regimen, trace model.Trace, sleep float64) Chart {
	from := 0.0
	if len(r.Schedule) > 0 {
		from = math.Max(0, r.Schedule[0].Time-2)
	}
	to := sleep + 2
	if to <= from {
		to = from + 1
	}
	return Chart{
		Title:   "Caffeine Dosing Schedule",
		Trace:   trace,
		Targets: r.Targets,
		Doses:   r.Schedule,
		End:     r.Window.End,
		Sleep:   sleep,
		From:    from,
		To:      to,
	}
}

type plotSeries struct {
	name   string
	style  lineStyle
	color  ansiColor
	values []float64
}

// RenderChart draws the chart with braille cells. width <= 0 sizes the plot
// to the terminal.
func RenderChart(w io.Writer, c Chart, width, height int, forceColor bool) error {
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = autoPlotWidth()
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	times := columnTimes(c.From, c.To, width)
	levels := make([]float64, width)
	peak := 0.0
	for i, t := range times {
		levels[i] = simulate.At(c.Trace, t)
		peak = math.Max(peak, levels[i])
	}
	yMax := math.Max(peak, c.Targets.Max) * headroom
	if yMax <= 0 {
		yMax = 1
	}

	series := []plotSeries{
		{name: "Caffeine level", style: styleSolid, color: colorLevel, values: levels},
		{name: "Target MAX", style: styleDashed, color: colorMax, values: constant(c.Targets.Max, width)},
		{name: "Target MIN", style: styleDotted, color: colorMin, values: constant(c.Targets.Min, width)},
	}

	seriesCells := make([][][]uint8, len(series))
	for si, s := range series {
		seriesCells[si] = makeCells(height, width)
		prevX, prevY := -1, -1
		for x, v := range s.values {
			py := valueToRow(v, 0, yMax, height*4)
			px := x * 2
			if prevX >= 0 {
				drawLine(prevX, prevY, px, py, func(dx, dy int) {
					if s.style.shouldPlot(dx) {
						setBrailleDot(seriesCells[si], dx, dy)
					}
				})
			} else if s.style.shouldPlot(px) {
				setBrailleDot(seriesCells[si], px, py)
			}
			prevX, prevY = px, py
		}
	}

	useColor := shouldUseColor(w, forceColor)
	axisLabels := makeAxisLabels(height, yMax)
	pad := strings.Repeat(" ", axisLabelWidth) + axisSeparator

	var out strings.Builder
	if c.Title != "" {
		out.WriteString(c.Title + "\n")
	}
	for y := 0; y < height; y++ {
		fmt.Fprintf(&out, "%*s%s", axisLabelWidth, axisLabels[y], axisSeparator)
		for x := 0; x < width; x++ {
			mask, idx := composeCell(seriesCells, x, y)
			ch := brailleFromMask(mask)
			if useColor && idx >= 0 {
				out.WriteString(series[idx].color.code)
				out.WriteRune(ch)
				out.WriteString(colorReset)
			} else {
				out.WriteRune(ch)
			}
		}
		out.WriteByte('\n')
	}
	markers := markerRow(c, width)
	if useColor {
		markers = colorMark.code + markers + colorReset
	}
	out.WriteString(pad + markers + "\n")
	out.WriteString(pad + tickRow(c.From, c.To, width) + "\n")
	out.WriteString(renderLegend(series, useColor) + "\n")
	if c.Sleep > c.From && c.Sleep < c.To {
		fmt.Fprintf(&out, "Bedtime caffeine: %.1f mg at %s\n", simulate.At(c.Trace, c.Sleep), Clock(c.Sleep))
	}
	out.WriteByte('\n')
	_, err := io.WriteString(w, out.String())
	return err
}

func columnTimes(from, to float64, width int) []float64 {
	out := make([]float64, width)
	if width == 1 {
		out[0] = from
		return out
	}
	for i := range out {
		out[i] = from + float64(i)*(to-from)/float64(width-1)
	}
	return out
}

func column(t, from, to float64, width int) int {
	if to <= from || width <= 1 {
		return 0
	}
	return int(math.Round((t - from) / (to - from) * float64(width-1)))
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func markerRow(c Chart, width int) string {
	row := []rune(strings.Repeat(" ", width))
	place := func(t float64, r rune) {
		if t < c.From || t > c.To {
			return
		}
		if x := column(t, c.From, c.To, width); x >= 0 && x < width {
			row[x] = r
		}
	}
	place(c.End, markerEnd)
	place(c.Sleep, markerSleep)
	for _, d := range c.Doses {
		place(d.Time, markerDose)
	}
	return strings.TrimRight(string(row), " ")
}

// tickRow places hourly HH:00 labels left-aligned at their column, skipping
// any that would overlap the previous label.
func tickRow(from, to float64, width int) string {
	row := []rune(strings.Repeat(" ", width))
	next := 0
	for h := math.Ceil(from); h <= to; h++ {
		x := column(h, from, to, width)
		if x < next {
			continue
		}
		label := []rune(fmt.Sprintf("%02d:00", int(h)%24))
		if x+len(label) > width {
			break
		}
		copy(row[x:], label)
		next = x + len(label) + 1
	}
	return strings.TrimRight(string(row), " ")
}

func autoPlotWidth() int {
	return PlotWidthFor(terminalWidth())
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - axisLabelWidth - len([]rune(axisSeparator))
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

func makeAxisLabels(height int, yMax float64) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = fmt.Sprintf("%.0f mg", yMax)
	if height > 2 {
		labels[height/2] = fmt.Sprintf("%.0f mg", yMax*float64(height-1-height/2)/float64(height-1))
	}
	if height > 1 {
		labels[height-1] = "0 mg"
	}
	return labels
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := range cells {
		cells[y] = make([]uint8, width)
	}
	return cells
}

// composeCell merges the dots of every series; the first series with a dot
// in the cell picks the colour.
func composeCell(seriesCells [][][]uint8, x, y int) (uint8, int) {
	var mask uint8
	colorIdx := -1
	for i, cells := range seriesCells {
		if y < 0 || y >= len(cells) || x < 0 || x >= len(cells[y]) {
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

func renderLegend(series []plotSeries, useColor bool) string {
	parts := make([]string, 0, len(series)+1)
	marker := brailleFromMask(0x01)
	for _, s := range series {
		label := fmt.Sprintf("%c %s (%s)", marker, s.name, s.style.name)
		if useColor {
			label = s.color.code + label + colorReset
		}
		parts = append(parts, label)
	}
	parts = append(parts, fmt.Sprintf("%c intake  %c end  %c bedtime", markerDose, markerEnd, markerSleep))
	return "Legend: " + strings.Join(parts, "  ")
}

// drawLine walks a Bresenham line between two dot coordinates.
func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := absInt(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -absInt(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY, cellX := y/4, x/2
	if cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

// brailleBits[x][y] is the Unicode braille bit for a dot inside a 2x4 cell.
var brailleBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func brailleDotMask(x, y int) uint8 {
	if x < 0 || x > 1 || y < 0 || y > 3 {
		return 0
	}
	return brailleBits[x][y]
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
