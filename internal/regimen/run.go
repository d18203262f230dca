package regimen

import (
	"github.com/verte-zerg/caffdose/internal/model"
	"github.com/verte-zerg/caffdose/internal/pk"
	"github.com/verte-zerg/caffdose/internal/simulate"
)

// Result bundles a regimen with its simulated trace.
type Result struct {
	Regimen model.Regimen
	Trace   model.Trace
}

// Run builds the PK model from half-lives, plans the regimen and simulates
// the concentration trace.
func Run(cfg model.PlanConfig, opts Options) (Result, error) {
	m, err := pk.FromHalfLives(cfg.AbsorptionHalfLife, cfg.EliminationHalfLife)
	if err != nil {
		return Result{}, err
	}
	r, err := NewPlanner(m, opts).Plan(
		model.Targets{Max: cfg.Max, Min: cfg.Min},
		model.Window{Start: cfg.Start, End: cfg.End},
	)
	if err != nil {
		return Result{}, err
	}
	trace := simulate.Simulate(m, r.Schedule, simulate.GridFor(cfg.End, r.SubsequentInterval))
	return Result{Regimen: r, Trace: trace}, nil
}

// Record converts a result into a history row.
func (res Result) Record(cfg model.PlanConfig) model.PlanRecord {
	r := res.Regimen
	doses := make([]model.Dose, len(r.Schedule))
	copy(doses, r.Schedule)
	return model.PlanRecord{
		Config:             cfg,
		DFirst:             r.DFirst,
		DNext:              r.DNext,
		FirstDoseTime:      r.FirstDoseTime,
		FirstInterval:      r.FirstInterval,
		SubsequentInterval: r.SubsequentInterval,
		EndLevel:           r.Correction.EndLevel,
		CorrectionSkipped:  r.Correction.Skipped,
		Doses:              doses,
	}
}
