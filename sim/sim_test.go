package sim

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/flux/boundary"
	"github.com/pthm-cable/flux/config"
	"github.com/pthm-cable/flux/forcefield"
	"github.com/pthm-cable/flux/material"
)

// newTestSim builds a default-config simulator with a small capacity.
func newTestSim(t *testing.T, maxParticles int) (*Simulator, *config.Config) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Particles.Max = maxParticles
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s, cfg
}

// step runs one update with frameDt pinned above the 60 Hz cap, so the
// effective timestep is 0.1 * params.DT.
func step(t *testing.T, s *Simulator, params Params, elapsed float32) {
	t.Helper()
	if err := s.Update(params, 1.0, elapsed); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func quietParams(n int) Params {
	return Params{
		NumParticles:     n,
		DT:               1,
		Stiffness:        3,
		RestDensity:      1,
		DynamicViscosity: 0.1,
		GravityType:      GravityNone,
	}
}

func TestWeightPartitionOfUnity(t *testing.T) {
	for d := float32(-0.5); d <= 0.5; d += 0.01 {
		w := splineWeights(d)
		sum := w[0] + w[1] + w[2]
		if math.Abs(float64(sum-1)) > 1e-5 {
			t.Fatalf("weights at d=%v sum to %v", d, sum)
		}
	}

	// Full 27-cell product weights also partition unity.
	_, diff := particleCell(mgl32.Vec3{31.3, 40.7, 12.1})
	wx := splineWeights(diff.X())
	wy := splineWeights(diff.Y())
	wz := splineWeights(diff.Z())
	total := float32(0)
	for gx := 0; gx < 3; gx++ {
		for gy := 0; gy < 3; gy++ {
			for gz := 0; gz < 3; gz++ {
				total += wx[gx] * wy[gy] * wz[gz]
			}
		}
	}
	if math.Abs(float64(total-1)) > 1e-5 {
		t.Errorf("27-cell weights sum to %v", total)
	}
}

func TestMassConservation(t *testing.T) {
	s, _ := newTestSim(t, 512)
	rng := rand.New(rand.NewSource(7))

	n := 300
	for i := 0; i < n; i++ {
		s.WriteParticle(i, Particle{
			Position: mgl32.Vec3{
				8 + rng.Float32()*48,
				8 + rng.Float32()*48,
				8 + rng.Float32()*48,
			},
			Velocity: mgl32.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5},
			Mass:     0.9 + rng.Float32()*0.2,
			Material: material.Fluid,
		})
	}

	step(t, s, quietParams(n), 0)

	gridMass := s.TotalGridMass()
	particleMass := s.TotalParticleMass()
	if diff := math.Abs(gridMass - particleMass); diff > 1e-3 {
		t.Errorf("grid mass %v vs particle mass %v (diff %v)", gridMass, particleMass, diff)
	}
}

func TestDensityNonNegative(t *testing.T) {
	s, _ := newTestSim(t, 256)
	rng := rand.New(rand.NewSource(3))

	n := 200
	for i := 0; i < n; i++ {
		s.WriteParticle(i, Particle{
			Position: mgl32.Vec3{20 + rng.Float32()*8, 20 + rng.Float32()*8, 20 + rng.Float32()*8},
			Material: material.Fluid,
		})
	}

	params := quietParams(n)
	for k := 0; k < 20; k++ {
		step(t, s, params, float32(k)*0.1)
		for i := 0; i < n; i++ {
			if rho := s.ReadParticle(i).Density; rho < 0 {
				t.Fatalf("particle %d density %v after step %d", i, rho, k)
			}
		}
	}
}

func TestTimestepScaling(t *testing.T) {
	s, _ := newTestSim(t, 8)
	s.WriteParticle(0, Particle{Position: mgl32.Vec3{32, 32, 32}, Material: material.Fluid})

	params := quietParams(1)
	params.GravityType = GravityVector
	params.Gravity = mgl32.Vec3{0, -1, 0}

	// frameDt above the cap: dt = (1/60)*6*DT = 0.1
	if err := s.Update(params, 1.0, 0); err != nil {
		t.Fatalf("Update: %v", err)
	}
	vy := s.ReadParticle(0).Velocity.Y()
	if math.Abs(float64(vy)-(-0.1)) > 1e-4 {
		t.Errorf("vy = %v after one capped step, want -0.1", vy)
	}

	// A fast frame scales down: frameDt = 1/120 -> dt = 0.05
	s.WriteParticle(0, Particle{Position: mgl32.Vec3{32, 32, 32}, Material: material.Fluid})
	if err := s.Update(params, 1.0/120.0, 0); err != nil {
		t.Fatalf("Update: %v", err)
	}
	vy = s.ReadParticle(0).Velocity.Y()
	if math.Abs(float64(vy)-(-0.05)) > 1e-4 {
		t.Errorf("vy = %v after a half-frame step, want -0.05", vy)
	}
}

func TestStationaryParticleStaysPut(t *testing.T) {
	// Scenario: one particle at the grid center, no gravity, no noise, no
	// fields, boundary NONE. It must not drift.
	s, _ := newTestSim(t, 8)
	start := mgl32.Vec3{32, 32, 32}
	s.WriteParticle(0, Particle{Position: start, Material: material.Fluid})

	params := quietParams(1)
	for k := 0; k < 100; k++ {
		step(t, s, params, float32(k)*0.01)
	}

	got := s.ReadParticle(0)
	if d := got.Position.Sub(start).Len(); d > 0.01 {
		t.Errorf("particle drifted %v from center", d)
	}
	if v := got.Velocity.Len(); v > 0.01 {
		t.Errorf("|v| = %v, want < 0.01", v)
	}
}

func TestFreefallInBox(t *testing.T) {
	// Scenario: a particle dropped in a box settles near the floor and
	// stays contained. The wall spring bounds the terminal speed at
	// |g| / (3 * stiffness); we assert containment and that bound.
	s, cfg := newTestSim(t, 8)

	b := boundary.New(mgl32.Vec3{64, 64, 64}, cfg.Derived.WallThickness)
	b.SetShape(boundary.ShapeBox)
	b.SetEnabled(true)
	b.SetStiffness(0.3)
	s.SetBoundaries(b)

	s.WriteParticle(0, Particle{Position: mgl32.Vec3{32, 55, 32}, Material: material.Fluid})

	params := quietParams(1)
	params.GravityType = GravityVector
	params.Gravity = mgl32.Vec3{0, -10, 0}

	for k := 0; k < 600; k++ {
		step(t, s, params, float32(k)*0.1)

		p := s.ReadParticle(0).Position
		if p.Y() < 3-1e-4 || p.Y() > 61+1e-4 {
			t.Fatalf("escaped the box at step %d: %v", k, p)
		}
	}

	got := s.ReadParticle(0)
	if got.Position.Y() > 10 {
		t.Errorf("particle did not settle near the floor: y = %v", got.Position.Y())
	}
	springBound := 10.0/(3*0.3) + 1
	if vy := math.Abs(float64(got.Velocity.Y())); vy > springBound {
		t.Errorf("|vy| = %v exceeds the wall-spring bound %v", vy, springBound)
	}
}

func TestCentralVortex(t *testing.T) {
	// Scenario: a horizontal sheet of particles under a Y-axis vortex
	// acquires positive angular velocity and spirals inward.
	const n = 500
	s, _ := newTestSim(t, n)
	rng := rand.New(rand.NewSource(11))

	center := mgl32.Vec3{32, 32, 32}
	radial0 := 0.0
	for i := 0; i < n; i++ {
		ang := rng.Float64() * 2 * math.Pi
		r := 5 + rng.Float64()*15
		p := mgl32.Vec3{
			center.X() + float32(r*math.Cos(ang)),
			center.Y(),
			center.Z() + float32(r*math.Sin(ang)),
		}
		radial0 += r
		s.WriteParticle(i, Particle{Position: p, Material: material.Fluid})
	}
	radial0 /= n

	fm := forcefield.NewManager(0)
	fm.Add(forcefield.Field{
		Kind:     forcefield.Vortex,
		Position: center,
		Axis:     mgl32.Vec3{0, 1, 0},
		Strength: 20,
		Radius:   40,
		Falloff:  forcefield.FalloffSmooth,
		Enabled:  true,
	})
	if err := s.UpdateForceFields(fm); err != nil {
		t.Fatalf("UpdateForceFields: %v", err)
	}

	params := quietParams(n)
	for k := 0; k < 10; k++ { // 1 simulated second
		step(t, s, params, float32(k)*0.1)
	}

	angular := 0.0
	radial1 := 0.0
	for i := 0; i < n; i++ {
		pt := s.ReadParticle(i)
		rel := pt.Position.Sub(center)
		// angular momentum about +Y
		angular += float64(rel.Cross(pt.Velocity).Y())
		radial1 += math.Hypot(float64(rel.X()), float64(rel.Z()))
	}
	angular /= n
	radial1 /= n

	if angular <= 0 {
		t.Errorf("mean angular momentum about Y = %v, want > 0", angular)
	}
	if radial1 >= radial0 {
		t.Errorf("radial distance grew: %v -> %v, want inward spiral", radial0, radial1)
	}
}

func TestSphereContainment(t *testing.T) {
	// Scenario: particles with random velocities inside an enabled sphere
	// boundary are all inside it after the run.
	const n = 1000
	s, cfg := newTestSim(t, n)
	rng := rand.New(rand.NewSource(23))

	b := boundary.New(mgl32.Vec3{64, 64, 64}, cfg.Derived.WallThickness)
	b.SetShape(boundary.ShapeSphere)
	b.SetEnabled(true)
	s.SetBoundaries(b)
	radius := b.Radius()
	center := b.Center()

	for i := 0; i < n; i++ {
		dir := mgl32.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}
		if dir.Len() < 1e-3 {
			dir = mgl32.Vec3{1, 0, 0}
		}
		p := center.Add(dir.Normalize().Mul(rng.Float32() * radius * 0.9))
		v := mgl32.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}.Mul(40)
		s.WriteParticle(i, Particle{Position: p, Velocity: v, Material: material.Fluid})
	}

	params := quietParams(n)
	for k := 0; k < 200; k++ {
		step(t, s, params, float32(k)*0.1)
	}

	for i := 0; i < n; i++ {
		p := s.ReadParticle(i).Position
		if d := p.Sub(center).Len(); d > radius+1e-3 {
			t.Fatalf("particle %d at distance %v, radius %v", i, d, radius)
		}
	}
}

func TestAttractorRepellerCorridor(t *testing.T) {
	// Scenario: an attractor and a repeller on either side of x=32 gather
	// particles near the attractor and evacuate the mid-plane corridor.
	const n = 1500
	s, _ := newTestSim(t, n)
	rng := rand.New(rand.NewSource(31))

	attractor := mgl32.Vec3{20, 32, 32}
	repeller := mgl32.Vec3{44, 32, 32}

	corridor := func(p mgl32.Vec3) bool {
		return p.X() > 29 && p.X() < 35
	}
	nearAttractor := func(p mgl32.Vec3) bool {
		return p.Sub(attractor).Len() < 7
	}

	corridor0, near0 := 0, 0
	for i := 0; i < n; i++ {
		p := mgl32.Vec3{
			10 + rng.Float32()*44,
			27 + rng.Float32()*10,
			27 + rng.Float32()*10,
		}
		if corridor(p) {
			corridor0++
		}
		if nearAttractor(p) {
			near0++
		}
		s.WriteParticle(i, Particle{Position: p, Material: material.Fluid})
	}

	fm := forcefield.NewManager(0)
	fm.Add(forcefield.Field{
		Kind: forcefield.Attractor, Position: attractor,
		Strength: 30, Radius: 15, Falloff: forcefield.FalloffLinear, Enabled: true,
	})
	fm.Add(forcefield.Field{
		Kind: forcefield.Repeller, Position: repeller,
		Strength: 30, Radius: 15, Falloff: forcefield.FalloffLinear, Enabled: true,
	})
	if err := s.UpdateForceFields(fm); err != nil {
		t.Fatalf("UpdateForceFields: %v", err)
	}

	params := quietParams(n)
	for k := 0; k < 20; k++ { // 2 simulated seconds
		step(t, s, params, float32(k)*0.1)
	}

	corridor1, near1 := 0, 0
	for i := 0; i < n; i++ {
		p := s.ReadParticle(i).Position
		if corridor(p) {
			corridor1++
		}
		if nearAttractor(p) {
			near1++
		}
	}

	if corridor1 >= corridor0 {
		t.Errorf("corridor population %d -> %d, want evacuation", corridor0, corridor1)
	}
	if near1 <= near0 {
		t.Errorf("attractor population %d -> %d, want gathering", near0, near1)
	}
}

func TestMaterialColorMode(t *testing.T) {
	// Scenario: with colorMode MATERIAL, one G2P pass paints each particle
	// with its material's LUT entry.
	mats := []material.Type{material.Fluid, material.Sand, material.Plasma}
	s, _ := newTestSim(t, 16)
	for i := 0; i < 9; i++ {
		s.WriteParticle(i, Particle{
			Position: mgl32.Vec3{20 + float32(i)*2, 32, 32},
			Material: mats[i%3],
		})
	}
	s.SetColorMode(ColorMaterial)

	step(t, s, quietParams(9), 0)

	for i := 0; i < 9; i++ {
		want := material.Color(mats[i%3])
		if got := s.ReadParticle(i).Color; got != want {
			t.Errorf("particle %d color = %v, want %v", i, got, want)
		}
	}
}

func TestVelocityColorModeInRange(t *testing.T) {
	s, _ := newTestSim(t, 8)
	s.WriteParticle(0, Particle{Position: mgl32.Vec3{32, 32, 32}, Velocity: mgl32.Vec3{3, 0, 0}, Material: material.Fluid})
	s.SetColorMode(ColorVelocity)

	step(t, s, quietParams(1), 2.5)

	c := s.ReadParticle(0).Color
	for k := 0; k < 3; k++ {
		if c[k] < 0 || c[k] > 1 {
			t.Fatalf("color component out of range: %v", c)
		}
	}
	if c == (mgl32.Vec3{}) {
		t.Error("velocity mode should write a color")
	}
}

func TestUnimplementedColorModeLeavesColor(t *testing.T) {
	s, _ := newTestSim(t, 8)
	seed := mgl32.Vec3{0.25, 0.5, 0.75}
	s.WriteParticle(0, Particle{Position: mgl32.Vec3{32, 32, 32}, Color: seed, Material: material.Fluid})
	s.SetColorMode(ColorMode(2)) // resolved by downstream visual code

	step(t, s, quietParams(1), 0)

	if got := s.ReadParticle(0).Color; got != seed {
		t.Errorf("color = %v, want untouched %v", got, seed)
	}
}

func TestMouseForce(t *testing.T) {
	s, _ := newTestSim(t, 8)
	s.WriteParticle(0, Particle{Position: mgl32.Vec3{32, 32, 32}, Material: material.Fluid})

	origin := mgl32.Vec3{32, 32, 0}
	dir := mgl32.Vec3{0, 0, 1}
	s.SetMouseRay(origin, dir, mgl32.Vec3{30, 32, 32})
	s.SetMouseRay(origin, dir, mgl32.Vec3{32, 32, 32})
	s.SetMouseRay(origin, dir, mgl32.Vec3{34, 32, 32})

	step(t, s, quietParams(1), 0)

	// Average per-step displacement is (2,0,0); the particle sits on the
	// ray so the force factor is 1.
	vx := s.ReadParticle(0).Velocity.X()
	if math.Abs(float64(vx)-2) > 1e-3 {
		t.Errorf("vx = %v, want 2", vx)
	}
}

func TestMouseForceFadesWithDistance(t *testing.T) {
	s, _ := newTestSim(t, 8)
	s.WriteParticle(0, Particle{Position: mgl32.Vec3{32, 32, 32}, Material: material.Fluid})
	s.WriteParticle(1, Particle{Position: mgl32.Vec3{40, 32, 32}, Material: material.Fluid})

	origin := mgl32.Vec3{32, 32, 0}
	dir := mgl32.Vec3{0, 0, 1}
	s.SetMouseRay(origin, dir, mgl32.Vec3{30, 32, 32})
	s.SetMouseRay(origin, dir, mgl32.Vec3{34, 32, 32})

	step(t, s, quietParams(2), 0)

	near := math.Abs(float64(s.ReadParticle(0).Velocity.X()))
	far := math.Abs(float64(s.ReadParticle(1).Velocity.X()))
	if far >= near {
		t.Errorf("mouse force should fade with ray distance: near %v, far %v", near, far)
	}
}

func TestWriteParticleCapacity(t *testing.T) {
	s, _ := newTestSim(t, 4)
	if err := s.WriteParticle(3, Particle{Position: mgl32.Vec3{32, 32, 32}, Material: material.Fluid}); err != nil {
		t.Errorf("in-range write failed: %v", err)
	}
	err := s.WriteParticle(4, Particle{Position: mgl32.Vec3{32, 32, 32}, Material: material.Fluid})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("out-of-range write error = %v, want ErrCapacityExceeded", err)
	}
}

func TestWriteParticleUnknownMaterial(t *testing.T) {
	s, _ := newTestSim(t, 4)
	err := s.WriteParticle(0, Particle{Position: mgl32.Vec3{32, 32, 32}, Material: material.Type(42)})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("unknown material error = %v, want ErrConfiguration", err)
	}
}

func TestParticleCountClamped(t *testing.T) {
	s, _ := newTestSim(t, 4)
	params := quietParams(100)
	step(t, s, params, 0)
	if got := s.NumParticles(); got != 4 {
		t.Errorf("NumParticles = %d, want clamped to 4", got)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Physics.RestDensity = -1
	if _, err := New(cfg); !errors.Is(err, ErrConfiguration) {
		t.Errorf("New with bad config = %v, want ErrConfiguration", err)
	}
}

func TestDispatchFailurePropagates(t *testing.T) {
	d := newDispatcher(4)
	err := d.run(100, func(i int) {
		if i == 42 {
			panic("boom")
		}
	})
	if !errors.Is(err, ErrDispatchFailure) {
		t.Errorf("err = %v, want ErrDispatchFailure", err)
	}
}

func TestLifetimeExpiry(t *testing.T) {
	s, _ := newTestSim(t, 8)
	s.WriteParticle(0, Particle{Position: mgl32.Vec3{32, 32, 32}, Material: material.Fluid, Lifetime: 0.25})
	s.WriteParticle(1, Particle{Position: mgl32.Vec3{30, 32, 32}, Material: material.Fluid})

	params := quietParams(2)
	for k := 0; k < 5; k++ { // 0.5 simulated seconds
		step(t, s, params, float32(k)*0.1)
	}

	if got := s.ExpiredCount(); got != 1 {
		t.Errorf("ExpiredCount = %d, want 1 (the default lifetime never expires)", got)
	}
}

func TestMassImmutableAcrossSteps(t *testing.T) {
	s, _ := newTestSim(t, 8)
	s.WriteParticle(0, Particle{Position: mgl32.Vec3{32, 32, 32}, Mass: 1.1, Material: material.Fluid})

	params := quietParams(1)
	params.GravityType = GravityVector
	params.Gravity = mgl32.Vec3{0, -1, 0}
	for k := 0; k < 10; k++ {
		step(t, s, params, float32(k)*0.1)
	}
	if got := s.ReadParticle(0).Mass; got != 1.1 {
		t.Errorf("mass = %v after stepping, want 1.1", got)
	}
}
