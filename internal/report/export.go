package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/caffdose/internal/model"
	"github.com/verte-zerg/caffdose/internal/simulate"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ParseFormat normalizes an output format name.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected text, json or yaml)", s)
	}
}

// Export is the machine-readable form of a plan.
type Export struct {
	ID                 int64        `json:"id,omitempty" yaml:"id,omitempty"`
	CreatedAt          string       `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Inputs             ExportInputs `json:"inputs" yaml:"inputs"`
	FirstDose          float64      `json:"first_dose_mg" yaml:"first_dose_mg"`
	NextDose           float64      `json:"next_dose_mg" yaml:"next_dose_mg"`
	FirstDoseTime      string       `json:"first_dose_time" yaml:"first_dose_time"`
	FirstInterval      float64      `json:"first_interval_h" yaml:"first_interval_h"`
	SubsequentInterval float64      `json:"subsequent_interval_h" yaml:"subsequent_interval_h"`
	Doses              []ExportDose `json:"doses" yaml:"doses"`
	EndLevel           float64      `json:"end_level_mg" yaml:"end_level_mg"`
	BedtimeLevel       *float64     `json:"bedtime_level_mg,omitempty" yaml:"bedtime_level_mg,omitempty"`
	CorrectionSkipped  bool         `json:"correction_skipped" yaml:"correction_skipped"`
	Notes              []string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// ExportInputs echoes the planning inputs.
type ExportInputs struct {
	Max                 float64 `json:"max_mg" yaml:"max_mg"`
	Min                 float64 `json:"min_mg" yaml:"min_mg"`
	Start               string  `json:"start" yaml:"start"`
	End                 string  `json:"end" yaml:"end"`
	Sleep               string  `json:"sleep" yaml:"sleep"`
	AbsorptionHalfLife  float64 `json:"absorption_half_life_h" yaml:"absorption_half_life_h"`
	EliminationHalfLife float64 `json:"elimination_half_life_h" yaml:"elimination_half_life_h"`
}

// ExportDose is one intake.
type ExportDose struct {
	Intake   string  `json:"intake" yaml:"intake"`
	Time     string  `json:"time" yaml:"time"`
	Hours    float64 `json:"hours" yaml:"hours"`
	Amount   float64 `json:"amount_mg" yaml:"amount_mg"`
	Adjusted bool    `json:"adjusted,omitempty" yaml:"adjusted,omitempty"`
}

// NewExport builds an export from a freshly computed regimen.
func NewExport(cfg model.PlanConfig, r model.Regimen, trace model.Trace) Export {
	e := Export{
		Inputs:             exportInputs(cfg),
		FirstDose:          round2(r.DFirst),
		NextDose:           round2(r.DNext),
		FirstDoseTime:      Clock(r.FirstDoseTime),
		FirstInterval:      round2(r.FirstInterval),
		SubsequentInterval: round2(r.SubsequentInterval),
		Doses:              exportDoses(r.Schedule),
		EndLevel:           round2(r.Correction.EndLevel),
		CorrectionSkipped:  r.Correction.Skipped,
		Notes:              Notes(r),
	}
	if len(trace) > 0 {
		level := round2(simulate.At(trace, cfg.Sleep))
		e.BedtimeLevel = &level
	}
	return e
}

// ExportRecord builds an export from a stored plan.
func ExportRecord(p model.PlanRecord) Export {
	return Export{
		ID:                 p.ID,
		CreatedAt:          p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Inputs:             exportInputs(p.Config),
		FirstDose:          round2(p.DFirst),
		NextDose:           round2(p.DNext),
		FirstDoseTime:      Clock(p.FirstDoseTime),
		FirstInterval:      round2(p.FirstInterval),
		SubsequentInterval: round2(p.SubsequentInterval),
		Doses:              exportDoses(p.Doses),
		EndLevel:           round2(p.EndLevel),
		CorrectionSkipped:  p.CorrectionSkipped,
	}
}

// WriteExport encodes v as JSON or YAML.
func WriteExport(w io.Writer, v any, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q is not a data format", format)
	}
}

func exportInputs(cfg model.PlanConfig) ExportInputs {
	return ExportInputs{
		Max:                 cfg.Max,
		Min:                 cfg.Min,
		Start:               Clock(cfg.Start),
		End:                 Clock(cfg.End),
		Sleep:               Clock(cfg.Sleep),
		AbsorptionHalfLife:  cfg.AbsorptionHalfLife,
		EliminationHalfLife: cfg.EliminationHalfLife,
	}
}

func exportDoses(sched model.Schedule) []ExportDose {
	out := make([]ExportDose, 0, len(sched))
	for i, d := range sched {
		out = append(out, ExportDose{
			Intake:   Ordinal(i + 1),
			Time:     Clock(d.Time),
			Hours:    round2(d.Time),
			Amount:   round2(d.Amount),
			Adjusted: d.Adjusted,
		})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
