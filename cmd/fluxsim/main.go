// Command fluxsim runs the particle fluid engine headless: it seeds a block
// of particles, steps the simulation, and writes telemetry.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/flux/boundary"
	"github.com/pthm-cable/flux/config"
	"github.com/pthm-cable/flux/forcefield"
	"github.com/pthm-cable/flux/material"
	"github.com/pthm-cable/flux/sim"
	"github.com/pthm-cable/flux/telemetry"
)

var (
	configPath   = flag.String("config", "", "Path to config YAML (empty = embedded defaults)")
	numParticles = flag.Int("particles", 8192, "Number of particles to seed")
	maxSteps     = flag.Int("steps", 600, "Number of simulation steps")
	outDir       = flag.String("out", "", "Output directory for CSV telemetry (empty = disabled)")
	logInterval  = flag.Int("log", 60, "Log world state every N steps (0 = disabled)")
	seed         = flag.Int64("seed", 42, "RNG seed for the initial condition")
	shapeName    = flag.String("shape", "box", "Boundary shape: none, box, sphere, tube, dodecahedron")
	snapshotPath = flag.String("snapshot", "", "Write a final particle snapshot JSON")
	vortex       = flag.Bool("vortex", false, "Add a central vortex force field")
)

func parseShape(name string) (boundary.Shape, error) {
	switch name {
	case "none":
		return boundary.ShapeNone, nil
	case "box":
		return boundary.ShapeBox, nil
	case "sphere":
		return boundary.ShapeSphere, nil
	case "tube":
		return boundary.ShapeTube, nil
	case "dodecahedron":
		return boundary.ShapeDodecahedron, nil
	}
	return boundary.ShapeNone, fmt.Errorf("unknown shape %q", name)
}

// seedBlock fills the first n slots with a jittered block of fluid centered
// in the grid. Positions and masses are uniform random; OpenSimplex noise
// sampled at each position sets the initial velocity, so neighbouring
// particles start with coherent motion instead of white noise.
func seedBlock(s *sim.Simulator, cfg *config.Config, n int, rng *rand.Rand) int {
	ns := opensimplex.New(rng.Int63())
	size := s.GridSize()
	center := size.Mul(0.5)
	half := size.Mul(0.25)

	jitter := float32(cfg.Particles.MassJitter)

	written := 0
	for i := 0; i < n; i++ {
		p := mgl32.Vec3{
			center.X() + (rng.Float32()*2-1)*half.X(),
			center.Y() + (rng.Float32()*2-1)*half.Y(),
			center.Z() + (rng.Float32()*2-1)*half.Z(),
		}
		lump := float32(ns.Eval3(float64(p.X())*0.08, float64(p.Y())*0.08, float64(p.Z())*0.08))
		v := mgl32.Vec3{
			lump * 0.5,
			float32(ns.Eval3(float64(p.Y())*0.08, float64(p.Z())*0.08, float64(p.X())*0.08)) * 0.5,
			float32(ns.Eval3(float64(p.Z())*0.08, float64(p.X())*0.08, float64(p.Y())*0.08)) * 0.5,
		}

		err := s.WriteParticle(i, sim.Particle{
			Position: p,
			Velocity: v,
			Mass:     1 + (rng.Float32()*2-1)*jitter,
			Material: material.Fluid,
		})
		if err != nil {
			break
		}
		written++
	}
	return written
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	shape, err := parseShape(*shapeName)
	if err != nil {
		return err
	}

	s, err := sim.New(cfg)
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}

	b := boundary.New(s.GridSize(), cfg.Derived.WallThickness)
	b.SetShape(shape)
	b.SetEnabled(shape != boundary.ShapeNone)
	s.SetBoundaries(b)

	if *vortex {
		fm := forcefield.NewManager(cfg.Fields.Max)
		fm.Add(forcefield.Field{
			Kind:     forcefield.Vortex,
			Position: s.GridSize().Mul(0.5),
			Axis:     mgl32.Vec3{0, 1, 0},
			Strength: 15,
			Radius:   s.GridSize().X() * 0.6,
			Falloff:  forcefield.FalloffSmooth,
			Enabled:  true,
		})
		if err := s.UpdateForceFields(fm); err != nil {
			return err
		}
	}

	rng := rand.New(rand.NewSource(*seed))
	n := seedBlock(s, cfg, *numParticles, rng)
	logger.Info("seeded", "particles", n, "shape", shape.String())

	out, err := telemetry.NewOutputManager(*outDir)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		return err
	}

	const frameDt = 1.0 / 60.0
	params := sim.DefaultParams(cfg)
	params.NumParticles = n

	// Effective step length for the telemetry clock.
	stepDt := frameDt * 6 * float64(params.DT)

	collector := telemetry.NewCollector(cfg.Telemetry.StatsWindow, stepDt)
	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)

	elapsed := float32(0)
	for step := 1; step <= *maxSteps; step++ {
		perf.StartStep()
		if err := s.Update(params, frameDt, elapsed); err != nil {
			// A failed dispatch abandons the frame; the run continues.
			logger.Error("frame skipped", "step", step, "err", err)
			collector.RecordSkippedFrame()
			continue
		}
		timings := s.PhaseTimings()
		for i, name := range sim.PhaseNames {
			perf.RecordPhase(name, timings[i])
		}
		perf.EndStep()

		collector.RecordExpired(s.ExpiredCount())
		elapsed += float32(stepDt)

		if collector.ShouldFlush(step) {
			stats := collector.Flush(step, s)
			if err := out.WriteTelemetry(stats); err != nil {
				return err
			}
			if err := out.WritePerf(perf.Stats(), step); err != nil {
				return err
			}
		}

		if *logInterval > 0 && step%*logInterval == 0 {
			logWorldState(logger, s, step)
		}
	}

	if *snapshotPath != "" {
		snap := telemetry.TakeSnapshot(s, *maxSteps, 0)
		if err := snap.Save(*snapshotPath); err != nil {
			return err
		}
		logger.Info("snapshot written", "path", *snapshotPath)
	}

	return nil
}

func logWorldState(logger *slog.Logger, s *sim.Simulator, step int) {
	n := s.NumParticles()
	var meanSpeed, maxSpeed float64
	for i := 0; i < n; i++ {
		speed := float64(s.ReadParticle(i).Velocity.Len())
		meanSpeed += speed
		if speed > maxSpeed {
			maxSpeed = speed
		}
	}
	if n > 0 {
		meanSpeed /= float64(n)
	}
	logger.Info("world",
		"step", step,
		"particles", n,
		"mean_speed", meanSpeed,
		"max_speed", maxSpeed,
		"grid_mass", s.TotalGridMass(),
	)
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fluxsim: %v\n", err)
		os.Exit(1)
	}
}
