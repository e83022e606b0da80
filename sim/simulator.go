// Package sim implements the MLS-MPM particle fluid simulator: a five-pass
// transfer/update pipeline over a fixed background grid, with force fields,
// mouse interaction, ambient noise and container collisions resolved in the
// grid-to-particle pass.
package sim

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/flux/boundary"
	"github.com/pthm-cable/flux/buffer"
	"github.com/pthm-cable/flux/config"
	"github.com/pthm-cable/flux/forcefield"
	"github.com/pthm-cable/flux/material"
)

// debugChecks enables in-kernel invariant assertions. Compile-time switch;
// release builds run with bounded-but-unchecked state.
const debugChecks = false

// Smoothing coefficients for per-particle state estimates. These control how
// quickly a particle forgets its previous local estimate; they are design
// constants, not user knobs.
const (
	densitySmoothing   float32 = 0.05
	directionSmoothing float32 = 0.1
)

// Phase names of the five-pass pipeline, in dispatch order.
var PhaseNames = [...]string{"clear_grid", "p2g1", "p2g2", "update_grid", "g2p"}

// Particle is the host-facing view of one particle slot. Emitters fill
// Position, Velocity, Mass, Material, Lifetime and Color when spawning;
// the remaining fields are kernel state.
type Particle struct {
	Position  mgl32.Vec3
	Velocity  mgl32.Vec3
	C         mgl32.Mat3
	Density   float32
	Mass      float32
	Direction mgl32.Vec3
	Color     mgl32.Vec3
	Material  material.Type
	Age       float32
	Lifetime  float32 // seconds; 0 means no expiry
}

// particleFields holds the resolved accessor handles for the particle
// buffer, bound once at kernel-build time.
type particleFields struct {
	position  buffer.Field
	velocity  buffer.Field
	c         buffer.Field
	density   buffer.Field
	mass      buffer.Field
	direction buffer.Field
	color     buffer.Field
	material  buffer.Field
	age       buffer.Field
	lifetime  buffer.Field
}

// gridFields holds the handles for the integer accumulator cells and the
// decoded float cells.
type gridFields struct {
	x, y, z, mass buffer.Field // fixed-point accumulators
	cell          buffer.Field // decoded (vx, vy, vz, mass)
}

// uniforms is the per-step uniform block visible to every kernel.
type uniforms struct {
	params     Params
	dt         float32
	elapsed    float32
	gridSize   mgl32.Vec3
	fields     forcefield.Snapshot
	bound      boundary.Snapshot
	mouseForce mgl32.Vec3
	rayOrigin  mgl32.Vec3
	rayDir     mgl32.Vec3
	mouseOn    bool
}

// Simulator owns the particle buffer, the grid buffers and the uniform
// block, and runs the five-pass update.
type Simulator struct {
	gridW, gridH, gridD int
	cellCount           int
	multiplier          float32
	wallThickness       float32
	maxParticles        int

	particles *buffer.Buffer
	gridInt   *buffer.Buffer
	gridFloat *buffer.Buffer

	pf particleFields
	gf gridFields

	disp *dispatcher
	u    uniforms

	numParticles int
	colorMode    ColorMode

	// one-shot boundary wiring; the simulator only ever sees the snapshot
	boundarySnap func() boundary.Snapshot

	fieldSnap forcefield.Snapshot

	mouseHistory [3]mgl32.Vec3
	mouseSamples int
	mouseForce   mgl32.Vec3
	rayOrigin    mgl32.Vec3
	rayDir       mgl32.Vec3
	mouseOn      bool

	expired      int64
	phaseTimings [len(PhaseNames)]time.Duration
	built        bool
}

// New creates a simulator for the configured grid and capacity. The
// configuration is validated here; a bad one refuses to start.
func New(cfg *config.Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	s := &Simulator{
		gridW:         cfg.Grid.Width,
		gridH:         cfg.Grid.Height,
		gridD:         cfg.Grid.Depth,
		cellCount:     cfg.Derived.CellCount,
		multiplier:    cfg.Derived.Multiplier,
		wallThickness: cfg.Derived.WallThickness,
		maxParticles:  cfg.Particles.Max,
		disp:          newDispatcher(cfg.Workers.Count),
	}
	return s, nil
}

// Init allocates the buffers and resolves every field handle. It is the
// kernel-build step; call it once before the first Update.
func (s *Simulator) Init() error {
	if s.built {
		return nil
	}

	particleLayout, err := buffer.NewLayout(
		buffer.FieldSpec{Name: "position", Type: buffer.Float, Arity: buffer.ArityVec3},
		buffer.FieldSpec{Name: "density", Type: buffer.Float, Arity: buffer.ArityScalar},
		buffer.FieldSpec{Name: "velocity", Type: buffer.Float, Arity: buffer.ArityVec3},
		buffer.FieldSpec{Name: "mass", Type: buffer.Float, Arity: buffer.ArityScalar},
		buffer.FieldSpec{Name: "C", Type: buffer.Float, Arity: buffer.ArityMat3},
		buffer.FieldSpec{Name: "direction", Type: buffer.Float, Arity: buffer.ArityVec3},
		buffer.FieldSpec{Name: "color", Type: buffer.Float, Arity: buffer.ArityVec3},
		buffer.FieldSpec{Name: "materialType", Type: buffer.Int, Arity: buffer.ArityScalar},
		buffer.FieldSpec{Name: "age", Type: buffer.Float, Arity: buffer.ArityScalar},
		buffer.FieldSpec{Name: "lifetime", Type: buffer.Float, Arity: buffer.ArityScalar},
	)
	if err != nil {
		return fmt.Errorf("%w: particle layout: %v", ErrConfiguration, err)
	}

	gridIntLayout, err := buffer.NewLayout(
		buffer.FieldSpec{Name: "x", Type: buffer.Int, Arity: buffer.ArityScalar, Atomic: true},
		buffer.FieldSpec{Name: "y", Type: buffer.Int, Arity: buffer.ArityScalar, Atomic: true},
		buffer.FieldSpec{Name: "z", Type: buffer.Int, Arity: buffer.ArityScalar, Atomic: true},
		buffer.FieldSpec{Name: "mass", Type: buffer.Int, Arity: buffer.ArityScalar, Atomic: true},
	)
	if err != nil {
		return fmt.Errorf("%w: grid layout: %v", ErrConfiguration, err)
	}

	gridFloatLayout, err := buffer.NewLayout(
		buffer.FieldSpec{Name: "cell", Type: buffer.Float, Arity: buffer.ArityVec4},
	)
	if err != nil {
		return fmt.Errorf("%w: grid float layout: %v", ErrConfiguration, err)
	}

	s.particles = buffer.New(particleLayout, s.maxParticles)
	s.gridInt = buffer.New(gridIntLayout, s.cellCount)
	s.gridFloat = buffer.New(gridFloatLayout, s.cellCount)

	s.pf = particleFields{
		position:  particleLayout.MustField("position"),
		velocity:  particleLayout.MustField("velocity"),
		c:         particleLayout.MustField("C"),
		density:   particleLayout.MustField("density"),
		mass:      particleLayout.MustField("mass"),
		direction: particleLayout.MustField("direction"),
		color:     particleLayout.MustField("color"),
		material:  particleLayout.MustField("materialType"),
		age:       particleLayout.MustField("age"),
		lifetime:  particleLayout.MustField("lifetime"),
	}
	s.gf = gridFields{
		x:    gridIntLayout.MustField("x"),
		y:    gridIntLayout.MustField("y"),
		z:    gridIntLayout.MustField("z"),
		mass: gridIntLayout.MustField("mass"),
		cell: gridFloatLayout.MustField("cell"),
	}

	s.built = true
	return nil
}

// SetBoundaries wires the boundary module. Called once after construction;
// from then on the G2P tail sees the boundary's current uniforms.
func (s *Simulator) SetBoundaries(b *boundary.Boundary) {
	s.boundarySnap = b.Snapshot
}

// UpdateForceFields copies the manager's packed uniforms into the
// simulator's uniform block.
func (s *Simulator) UpdateForceFields(m *forcefield.Manager) error {
	snap, err := m.Pack()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	s.fieldSnap = snap
	return nil
}

// SetMouseRay sets the interaction ray; origin, direction and pos are
// pre-scaled to grid space. The last three pos samples yield the mouse
// force as the average per-step displacement.
func (s *Simulator) SetMouseRay(origin, dir, pos mgl32.Vec3) {
	s.rayOrigin = origin
	if l := dir.Len(); l > 1e-6 {
		s.rayDir = dir.Mul(1 / l)
	} else {
		s.rayDir = mgl32.Vec3{0, 0, 1}
	}

	if s.mouseSamples < len(s.mouseHistory) {
		s.mouseHistory[s.mouseSamples] = pos
		s.mouseSamples++
	} else {
		s.mouseHistory[0] = s.mouseHistory[1]
		s.mouseHistory[1] = s.mouseHistory[2]
		s.mouseHistory[2] = pos
	}

	if s.mouseSamples >= 2 {
		first := s.mouseHistory[0]
		last := s.mouseHistory[s.mouseSamples-1]
		s.mouseForce = last.Sub(first).Mul(1 / float32(s.mouseSamples-1))
	} else {
		s.mouseForce = mgl32.Vec3{}
	}
	s.mouseOn = true
}

// ClearMouseRay disables mouse interaction until the next SetMouseRay.
func (s *Simulator) ClearMouseRay() {
	s.mouseOn = false
	s.mouseSamples = 0
	s.mouseForce = mgl32.Vec3{}
}

// SetColorMode chooses which quantity G2P writes into the color channel.
func (s *Simulator) SetColorMode(m ColorMode) { s.colorMode = m }

// NumParticles returns the active particle count.
func (s *Simulator) NumParticles() int { return s.numParticles }

// MaxParticles returns the buffer capacity.
func (s *Simulator) MaxParticles() int { return s.maxParticles }

// Particles exposes the SoA particle buffer for the renderer.
func (s *Simulator) Particles() *buffer.Buffer { return s.particles }

// GridSize returns the grid dimensions.
func (s *Simulator) GridSize() mgl32.Vec3 {
	return mgl32.Vec3{float32(s.gridW), float32(s.gridH), float32(s.gridD)}
}

// ExpiredCount returns how many particles exceeded their lifetime during
// the last update. The host shrinks the count; slots are recycled on the
// next spawn.
func (s *Simulator) ExpiredCount() int { return int(s.expired) }

// PhaseTimings returns the kernel durations of the last update, indexed
// like PhaseNames.
func (s *Simulator) PhaseTimings() [len(PhaseNames)]time.Duration {
	return s.phaseTimings
}

// WriteParticle fills a buffer slot through the emitter interface. Writes
// beyond capacity are dropped with a warning; the simulation continues.
func (s *Simulator) WriteParticle(i int, p Particle) error {
	if !s.built {
		if err := s.Init(); err != nil {
			return err
		}
	}
	if i < 0 || i >= s.maxParticles {
		slog.Warn("sim: dropped emission beyond capacity", "slot", i, "max", s.maxParticles)
		return fmt.Errorf("%w: slot %d of %d", ErrCapacityExceeded, i, s.maxParticles)
	}
	if !p.Material.Valid() {
		return fmt.Errorf("%w: %v", ErrConfiguration, p.Material)
	}

	mass := p.Mass
	if mass <= 0 {
		mass = 1
	}
	density := p.Density
	if density <= 0 {
		density = material.Lookup(p.Material).Density
	}
	lifetime := p.Lifetime
	if lifetime <= 0 {
		lifetime = float32(math.Inf(1))
	}

	e := s.particles.Element(i)
	e.SetVec3(s.pf.position, p.Position)
	e.SetVec3(s.pf.velocity, p.Velocity)
	e.SetMat3(s.pf.c, mgl32.Mat3{})
	e.SetFloat(s.pf.density, density)
	e.SetFloat(s.pf.mass, mass)
	e.SetVec3(s.pf.direction, p.Velocity)
	e.SetVec3(s.pf.color, p.Color)
	e.SetInt(s.pf.material, int32(p.Material))
	e.SetFloat(s.pf.age, 0)
	e.SetFloat(s.pf.lifetime, lifetime)
	return nil
}

// ReadParticle returns the full state of one slot.
func (s *Simulator) ReadParticle(i int) Particle {
	e := s.particles.Element(i)
	return Particle{
		Position:  e.Vec3(s.pf.position),
		Velocity:  e.Vec3(s.pf.velocity),
		C:         e.Mat3(s.pf.c),
		Density:   e.Float(s.pf.density),
		Mass:      e.Float(s.pf.mass),
		Direction: e.Vec3(s.pf.direction),
		Color:     e.Vec3(s.pf.color),
		Material:  material.Type(e.Int(s.pf.material)),
		Age:       e.Float(s.pf.age),
		Lifetime:  e.Float(s.pf.lifetime),
	}
}

// TotalGridMass sums the decoded mass accumulator over all cells. After an
// update this is the post-scatter grid mass; it matches the summed particle
// mass to within fixed-point rounding.
func (s *Simulator) TotalGridMass() float64 {
	total := 0.0
	for i := 0; i < s.cellCount; i++ {
		total += float64(buffer.Decode(s.gridInt.Element(i).Int(s.gf.mass), s.multiplier))
	}
	return total
}

// TotalParticleMass sums the mass of the active particles.
func (s *Simulator) TotalParticleMass() float64 {
	total := 0.0
	for i := 0; i < s.numParticles; i++ {
		total += float64(s.particles.Element(i).Float(s.pf.mass))
	}
	return total
}

// Update runs one simulation step: clear, P2G1, P2G2, grid update, G2P.
// Each pass completes before the next starts. frameDt is the wall frame
// time in seconds; elapsed is the simulation clock driving noise and color
// cycling.
func (s *Simulator) Update(params Params, frameDt, elapsed float32) error {
	if !s.built {
		if err := s.Init(); err != nil {
			return err
		}
	}
	if params.RestDensity <= 0 {
		return fmt.Errorf("%w: rest density %g", ErrConfiguration, params.RestDensity)
	}

	n := params.NumParticles
	if n > s.maxParticles {
		slog.Warn("sim: particle count clamped to capacity", "requested", n, "max", s.maxParticles)
		n = s.maxParticles
	}
	if n < 0 {
		n = 0
	}
	s.numParticles = n

	capped := frameDt
	if capped > 1.0/60.0 {
		capped = 1.0 / 60.0
	}
	dt := capped * 6 * params.DT

	s.u = uniforms{
		params:     params,
		dt:         dt,
		elapsed:    elapsed,
		gridSize:   s.GridSize(),
		fields:     s.fieldSnap,
		mouseForce: s.mouseForce,
		rayOrigin:  s.rayOrigin,
		rayDir:     s.rayDir,
		mouseOn:    s.mouseOn,
	}
	if s.boundarySnap != nil {
		s.u.bound = s.boundarySnap()
	} else {
		s.u.bound = boundary.Snapshot{ShapeInt: int32(boundary.ShapeNone)}
	}

	s.expired = 0

	passes := []struct {
		name   string
		n      int
		atomic bool
		kern   func(i int)
	}{
		{"clear_grid", s.cellCount, false, s.kernClearGrid},
		{"p2g1", n, true, s.kernP2G1},
		{"p2g2", n, true, s.kernP2G2},
		{"update_grid", s.cellCount, false, s.kernUpdateGrid},
		{"g2p", n, false, s.kernG2P},
	}

	for i, pass := range passes {
		s.gridInt.SetAtomic(pass.atomic)
		start := time.Now()
		if err := s.disp.run(pass.n, pass.kern); err != nil {
			return fmt.Errorf("%s: %w", pass.name, err)
		}
		s.phaseTimings[i] = time.Since(start)
	}
	s.gridInt.SetAtomic(false)

	return nil
}
