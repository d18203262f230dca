package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/verte-zerg/caffdose/internal/model"
	"github.com/verte-zerg/caffdose/internal/simulate"
)

// Notes lists the conditions a reader should be warned about.
func Notes(r model.Regimen) []string {
	var notes []string
	if r.Empty() {
		notes = append(notes, fmt.Sprintf("No doses scheduled: window end %s precedes the first dose time %s.",
			Clock(r.Window.End), Clock(r.FirstDoseTime)))
		return notes
	}
	if r.NextClamped {
		notes = append(notes, "No subsequent dose needed: the first dose's residual already holds the minimum.")
	}
	if r.Correction.Skipped {
		notes = append(notes, fmt.Sprintf("Last dose at %s could not be resized; level at %s is %.2f mg (target %.2f mg).",
			Clock(r.Schedule[r.Correction.Index].Time), Clock(r.Window.End), r.Correction.EndLevel, r.Targets.Min))
	}
	return notes
}

// RenderRegimen prints the computed regimen, second-interval checks and
// the dose table.
func RenderRegimen(w io.Writer, r model.Regimen, trace model.Trace, sleep float64) error {
	var b strings.Builder
	b.WriteString("--- Computed Regimen ---\n")
	writeField(&b, "First dose (to hit max)", fmt.Sprintf("%.2f mg", r.DFirst))
	writeField(&b, "Subsequent fixed dose", fmt.Sprintf("%.2f mg", r.DNext))
	writeField(&b, "First upward crossing shift", fmt.Sprintf("%.2f h earlier", r.Shift))
	writeField(&b, "Actual first dose time", fmt.Sprintf("%.2f h (%s)", r.FirstDoseTime, Clock(r.FirstDoseTime)))
	writeField(&b, "First interval", fmt.Sprintf("%.2f h", r.FirstInterval))
	writeField(&b, "Subsequent repeating interval", fmt.Sprintf("%.2f h", r.SubsequentInterval))
	b.WriteString("\nSecond-interval checks (after 2nd dose):\n")
	writeField(&b, "  Peak within 2nd interval", fmt.Sprintf("%.2f mg at t+%.2f h", r.SecondInterval.Peak, r.SecondInterval.PeakOffset))
	writeField(&b, "  Level at next dose time", fmt.Sprintf("%.2f mg (target %.2f mg)", r.SecondInterval.Trough, r.Targets.Min))
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, "\nDose times & amounts:"); err != nil {
		return err
	}
	if err := RenderDoses(w, r.Schedule); err != nil {
		return err
	}

	if !r.Empty() {
		if _, err := fmt.Fprintf(w, "\nLevel at end (%s): %.2f mg\n", Clock(r.Window.End), r.Correction.EndLevel); err != nil {
			return err
		}
	}
	if len(trace) > 0 {
		if _, err := fmt.Fprintf(w, "Bedtime caffeine (%s): %.1f mg\n", Clock(sleep), simulate.At(trace, sleep)); err != nil {
			return err
		}
	}
	for _, note := range Notes(r) {
		if _, err := fmt.Fprintf(w, "Note: %s\n", note); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderDoses prints the dose table.
func RenderDoses(w io.Writer, sched model.Schedule) error {
	if len(sched) == 0 {
		_, err := fmt.Fprintln(w, "  (none)")
		return err
	}
	headers := []string{"#", "Intake", "Time", "Hours", "Dose (mg)", ""}
	rows := make([][]string, 0, len(sched))
	for i, d := range sched {
		flag := ""
		if d.Adjusted {
			flag = "(adjusted)"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%02d", i+1),
			Ordinal(i + 1),
			Clock(d.Time),
			fmt.Sprintf("%.2f", d.Time),
			fmt.Sprintf("%.2f", d.Amount),
			flag,
		})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{3: true, 4: true}) {
		if _, err := fmt.Fprintln(w, "  "+line); err != nil {
			return err
		}
	}
	return nil
}

// RenderHistory prints stored plans as a table.
func RenderHistory(w io.Writer, plans []model.PlanRecord) error {
	if len(plans) == 0 {
		_, err := fmt.Fprintln(w, "No plans found.")
		return err
	}
	headers := []string{"ID", "Created", "Max", "Min", "Window", "First", "Next", "Interval", "End level"}
	rows := make([][]string, 0, len(plans))
	for _, p := range plans {
		end := fmt.Sprintf("%.2f", p.EndLevel)
		if p.CorrectionSkipped {
			end += "*"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", p.ID),
			p.CreatedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%.0f", p.Config.Max),
			fmt.Sprintf("%.0f", p.Config.Min),
			Clock(p.Config.Start) + "-" + Clock(p.Config.End),
			fmt.Sprintf("%.2f", p.DFirst),
			fmt.Sprintf("%.2f", p.DNext),
			fmt.Sprintf("%.2f h", p.SubsequentInterval),
			end,
		})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{0: true, 2: true, 3: true, 5: true, 6: true, 7: true, 8: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderPlanRecord prints a stored plan's inputs and doses.
func RenderPlanRecord(w io.Writer, p model.PlanRecord) error {
	cfg := p.Config
	if _, err := fmt.Fprintf(w, "Plan %d (%s)\n", p.ID, p.CreatedAt.Local().Format("2006-01-02 15:04")); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Targets: %.2f-%.2f mg  Window: %s-%s  Sleep: %s  Half-lives: %.2f h / %.2f h\n",
		cfg.Min, cfg.Max, Clock(cfg.Start), Clock(cfg.End), Clock(cfg.Sleep), cfg.AbsorptionHalfLife, cfg.EliminationHalfLife); err != nil {
		return err
	}
	if err := RenderDoses(w, p.Doses); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Level at end: %.2f mg\n", p.EndLevel)
	return err
}

func writeField(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%-37s%s\n", label+":", value)
}
