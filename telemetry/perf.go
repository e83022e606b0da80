package telemetry

import (
	"log/slog"
	"sort"
	"time"
)

// Phase names for the simulation step, matching the kernel dispatch order
// plus the host-side bookkeeping phases.
const (
	PhaseClearGrid  = "clear_grid"
	PhaseP2G1       = "p2g1"
	PhaseP2G2       = "p2g2"
	PhaseUpdateGrid = "update_grid"
	PhaseG2P        = "g2p"
	PhaseEmit       = "emit"
	PhaseTelemetry  = "telemetry"
)

// PerfSample holds timing data for a single step.
type PerfSample struct {
	StepDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks performance metrics over a rolling window.
type PerfCollector struct {
	windowSize  int
	samples     []PerfSample
	writeIndex  int
	sampleCount int

	currentPhases map[string]time.Duration
	stepStart     time.Time
}

// NewPerfCollector creates a performance collector averaging over
// windowSize steps.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartStep begins timing a new simulation step.
func (p *PerfCollector) StartStep() {
	p.stepStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
}

// RecordPhase records one phase's duration within the current step.
func (p *PerfCollector) RecordPhase(phase string, d time.Duration) {
	p.currentPhases[phase] += d
}

// EndStep finishes the current step and records the sample.
func (p *PerfCollector) EndStep() {
	sample := PerfSample{
		StepDuration: time.Since(p.stepStart),
		Phases:       p.currentPhases,
	}
	p.samples[p.writeIndex] = sample
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	p.currentPhases = make(map[string]time.Duration)
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgStepDuration time.Duration
	MinStepDuration time.Duration
	MaxStepDuration time.Duration

	// Average phase durations and their share of the step
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	StepsPerSecond float64
}

// Stats aggregates the rolling window.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p.sampleCount == 0 {
		return stats
	}

	var total time.Duration
	phaseTotals := make(map[string]time.Duration)
	stats.MinStepDuration = time.Duration(1<<63 - 1)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.StepDuration
		if s.StepDuration < stats.MinStepDuration {
			stats.MinStepDuration = s.StepDuration
		}
		if s.StepDuration > stats.MaxStepDuration {
			stats.MaxStepDuration = s.StepDuration
		}
		for name, d := range s.Phases {
			phaseTotals[name] += d
		}
	}

	stats.AvgStepDuration = total / time.Duration(p.sampleCount)
	if stats.AvgStepDuration > 0 {
		stats.StepsPerSecond = float64(time.Second) / float64(stats.AvgStepDuration)
	}
	for name, d := range phaseTotals {
		avg := d / time.Duration(p.sampleCount)
		stats.PhaseAvg[name] = avg
		if stats.AvgStepDuration > 0 {
			stats.PhasePct[name] = float64(avg) / float64(stats.AvgStepDuration) * 100
		}
	}
	return stats
}

// SortedPhases returns the phase names sorted by average duration,
// longest first.
func (s PerfStats) SortedPhases() []string {
	names := make([]string, 0, len(s.PhaseAvg))
	for name := range s.PhaseAvg {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return s.PhaseAvg[names[i]] > s.PhaseAvg[names[j]]
	})
	return names
}

// Log writes the aggregated stats through slog.
func (s PerfStats) Log(logger *slog.Logger, step int) {
	logger.Info("perf",
		"step", step,
		"avg_step", s.AvgStepDuration.Round(time.Microsecond),
		"steps_per_sec", s.StepsPerSecond,
	)
	for _, name := range s.SortedPhases() {
		logger.Info("perf_phase",
			"phase", name,
			"avg", s.PhaseAvg[name].Round(time.Microsecond),
			"pct", s.PhasePct[name],
		)
	}
}

// PerfStatsCSV is the flat CSV row of a perf window.
type PerfStatsCSV struct {
	WindowEnd      int     `csv:"window_end"`
	AvgStepUs      int64   `csv:"avg_step_us"`
	MinStepUs      int64   `csv:"min_step_us"`
	MaxStepUs      int64   `csv:"max_step_us"`
	StepsPerSecond float64 `csv:"steps_per_sec"`
	ClearGridUs    int64   `csv:"clear_grid_us"`
	P2G1Us         int64   `csv:"p2g1_us"`
	P2G2Us         int64   `csv:"p2g2_us"`
	UpdateGridUs   int64   `csv:"update_grid_us"`
	G2PUs          int64   `csv:"g2p_us"`
}

// ToCSV flattens the stats into a CSV row.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:      windowEnd,
		AvgStepUs:      s.AvgStepDuration.Microseconds(),
		MinStepUs:      s.MinStepDuration.Microseconds(),
		MaxStepUs:      s.MaxStepDuration.Microseconds(),
		StepsPerSecond: s.StepsPerSecond,
		ClearGridUs:    s.PhaseAvg[PhaseClearGrid].Microseconds(),
		P2G1Us:         s.PhaseAvg[PhaseP2G1].Microseconds(),
		P2G2Us:         s.PhaseAvg[PhaseP2G2].Microseconds(),
		UpdateGridUs:   s.PhaseAvg[PhaseUpdateGrid].Microseconds(),
		G2PUs:          s.PhaseAvg[PhaseG2P].Microseconds(),
	}
}
