// Package telemetry aggregates per-step simulation statistics into windows
// and writes them to structured CSV output.
package telemetry

import (
	"math"

	"github.com/pthm-cable/flux/sim"
)

// Collector accumulates events within step windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationSteps int
	dt                  float64

	windowStartStep int

	// Event counters for the current window
	expired          int
	droppedEmissions int
	skippedFrames    int
}

// NewCollector creates a stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds.
// dt: seconds per step (used for step-to-time conversion).
func NewCollector(windowDurationSec, dt float64) *Collector {
	stepsPerWindow := int(windowDurationSec / dt)
	if stepsPerWindow < 1 {
		stepsPerWindow = 1
	}
	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationSteps: stepsPerWindow,
		dt:                  dt,
	}
}

// RecordExpired records particles that exceeded their lifetime this step.
func (c *Collector) RecordExpired(n int) {
	c.expired += n
}

// RecordDroppedEmission records an emission dropped at capacity.
func (c *Collector) RecordDroppedEmission() {
	c.droppedEmissions++
}

// RecordSkippedFrame records a frame abandoned after a dispatch failure.
func (c *Collector) RecordSkippedFrame() {
	c.skippedFrames++
}

// ShouldFlush returns true once enough steps have passed to close the
// current window.
func (c *Collector) ShouldFlush(currentStep int) bool {
	return currentStep-c.windowStartStep >= c.windowDurationSteps
}

// Flush samples the simulator, produces a WindowStats and resets the event
// counters for the next window.
func (c *Collector) Flush(currentStep int, s *sim.Simulator) WindowStats {
	n := s.NumParticles()

	var kinetic, meanSpeed, maxSpeed float64
	densities := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		p := s.ReadParticle(i)
		speed := float64(p.Velocity.Len())
		kinetic += 0.5 * float64(p.Mass) * speed * speed
		meanSpeed += speed
		if speed > maxSpeed {
			maxSpeed = speed
		}
		densities = append(densities, float64(p.Density))
	}
	if n > 0 {
		meanSpeed /= float64(n)
	}

	dMean, dStd, p10, p50, p90 := ComputeDensityStats(densities)
	if math.IsNaN(dStd) {
		dStd = 0
	}

	stats := WindowStats{
		WindowStartStep: c.windowStartStep,
		WindowEndStep:   currentStep,
		SimTimeSec:      float64(currentStep) * c.dt,

		ParticleCount: n,

		Expired:          c.expired,
		DroppedEmissions: c.droppedEmissions,
		SkippedFrames:    c.skippedFrames,

		TotalMass:     s.TotalParticleMass(),
		GridMass:      s.TotalGridMass(),
		KineticEnergy: kinetic,
		MeanSpeed:     meanSpeed,
		MaxSpeed:      maxSpeed,

		DensityMean: dMean,
		DensityStd:  dStd,
		DensityP10:  p10,
		DensityP50:  p50,
		DensityP90:  p90,
	}

	c.windowStartStep = currentStep
	c.expired = 0
	c.droppedEmissions = 0
	c.skippedFrames = 0

	return stats
}

// WindowDurationSteps returns the number of steps per window.
func (c *Collector) WindowDurationSteps() int {
	return c.windowDurationSteps
}
