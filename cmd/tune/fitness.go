package main

import (
	"math"
	"math/rand"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/flux/boundary"
	"github.com/pthm-cable/flux/config"
	"github.com/pthm-cable/flux/material"
	"github.com/pthm-cable/flux/sim"
)

// FitnessEvaluator runs headless drop scenes and scores how quickly and how
// calmly the fluid settles.
type FitnessEvaluator struct {
	params    *ParamVector
	steps     int
	particles int
	seeds     []int64
	baseCfg   *config.Config

	mu           sync.Mutex
	lastResidual float64
}

// NewFitnessEvaluator creates an evaluator.
func NewFitnessEvaluator(params *ParamVector, steps, particles int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:    params,
		steps:     steps,
		particles: particles,
		seeds:     seeds,
		baseCfg:   baseCfg,
	}
}

// LastResidual returns the residual kinetic energy of the most recent
// evaluation.
func (fe *FitnessEvaluator) LastResidual() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastResidual
}

// tailWindow is the fraction of the run whose kinetic energy counts as
// residual motion.
const tailWindow = 0.2

// Evaluate computes fitness for a raw parameter vector (lower = better):
// the mean kinetic energy over the tail of a box-drop run, averaged across
// seeds, plus a hard penalty for numerical blowups.
func (fe *FitnessEvaluator) Evaluate(raw []float64) float64 {
	clamped := fe.params.Clamp(raw)

	total := 0.0
	for _, seed := range fe.seeds {
		total += fe.runOnce(clamped, seed)
	}
	fitness := total / float64(len(fe.seeds))

	fe.mu.Lock()
	fe.lastResidual = fitness
	fe.mu.Unlock()
	return fitness
}

func (fe *FitnessEvaluator) runOnce(raw []float64, seed int64) float64 {
	cfg := *fe.baseCfg
	cfg.Particles.Max = fe.particles
	fe.params.ApplyToConfig(&cfg, raw)

	s, err := sim.New(&cfg)
	if err != nil {
		return math.Inf(1)
	}
	if err := s.Init(); err != nil {
		return math.Inf(1)
	}

	b := boundary.New(s.GridSize(), cfg.Derived.WallThickness)
	b.SetShape(boundary.ShapeBox)
	b.SetEnabled(true)
	s.SetBoundaries(b)

	rng := rand.New(rand.NewSource(seed))
	size := s.GridSize()
	for i := 0; i < fe.particles; i++ {
		s.WriteParticle(i, sim.Particle{
			Position: mgl32.Vec3{
				size.X()*0.3 + rng.Float32()*size.X()*0.4,
				size.Y()*0.5 + rng.Float32()*size.Y()*0.35,
				size.Z()*0.3 + rng.Float32()*size.Z()*0.4,
			},
			Mass:     1,
			Material: material.Fluid,
		})
	}

	params := sim.DefaultParams(&cfg)
	params.NumParticles = fe.particles
	params.GravityType = sim.GravityVector
	params.Gravity = mgl32.Vec3{0, -2, 0}

	const frameDt = 1.0 / 60.0
	tailStart := int(float64(fe.steps) * (1 - tailWindow))

	residual := 0.0
	tailSamples := 0
	for step := 0; step < fe.steps; step++ {
		if err := s.Update(params, frameDt, float32(step)*frameDt); err != nil {
			return math.Inf(1)
		}
		if step < tailStart {
			continue
		}
		ke := 0.0
		for i := 0; i < fe.particles; i++ {
			p := s.ReadParticle(i)
			v := float64(p.Velocity.Len())
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return math.Inf(1)
			}
			ke += 0.5 * float64(p.Mass) * v * v
		}
		residual += ke
		tailSamples++
	}
	if tailSamples == 0 {
		return math.Inf(1)
	}
	return residual / float64(tailSamples)
}
