// Package model defines shared data structures.
package model

import "time"

// RateConstants holds first-order absorption and elimination rates (1/h).
type RateConstants struct {
	Ka float64
	K  float64
}

// Targets defines the desired peak and trough levels (mg).
type Targets struct {
	Max float64
	Min float64
}

// Window is the time range (hours) the trough must be held over.
type Window struct {
	Start float64
	End   float64
}

// Dose is a single administration event.
type Dose struct {
	Time     float64
	Amount   float64
	Adjusted bool
}

// Schedule is an ordered list of doses with strictly increasing times.
type Schedule []Dose

// Sample is one point of a concentration trace.
type Sample struct {
	Time  float64
	Level float64
}

// Trace is a concentration curve sampled on a uniform grid.
type Trace []Sample

// SecondInterval summarizes the superposed response of doses 1 and 2.
type SecondInterval struct {
	Peak       float64
	PeakOffset float64
	Trough     float64
}

// Correction describes what happened to the last dose of a schedule.
type Correction struct {
	Index     int
	Previous  float64
	Amount    float64
	UnitAtEnd float64
	// Skipped is set when the last dose could not be resized and the level
	// at the window end is whatever superposition yields.
	Skipped  bool
	EndLevel float64
}

// Regimen is the full output of a planning run.
type Regimen struct {
	Rates   RateConstants
	Targets Targets
	Window  Window

	DFirst             float64
	DNext              float64
	NextClamped        bool
	Shift              float64
	FirstDoseTime      float64
	FirstInterval      float64
	SubsequentInterval float64
	TimeToPeak         float64

	SecondInterval SecondInterval
	Schedule       Schedule
	Correction     Correction
}

// Empty reports whether the planner produced no doses.
func (r Regimen) Empty() bool {
	return len(r.Schedule) == 0
}

// PlanConfig defines planner inputs collected from flags and config.
type PlanConfig struct {
	AbsorptionHalfLife  float64
	EliminationHalfLife float64
	Max                 float64
	Min                 float64
	Start               float64
	End                 float64
	Sleep               float64
}

// PlanRecord is a stored planning run.
type PlanRecord struct {
	ID                 int64
	CreatedAt          time.Time
	Config             PlanConfig
	DFirst             float64
	DNext              float64
	FirstDoseTime      float64
	FirstInterval      float64
	SubsequentInterval float64
	EndLevel           float64
	CorrectionSkipped  bool
	Doses              []Dose
}
