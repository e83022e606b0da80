package sim

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/flux/boundary"
	"github.com/pthm-cable/flux/buffer"
	"github.com/pthm-cable/flux/material"
	"github.com/pthm-cable/flux/noise"
)

// splineWeights returns the quadratic B-spline weights for one axis given
// the fractional offset from the cell center. The three weights sum to 1.
func splineWeights(d float32) [3]float32 {
	return [3]float32{
		0.5 * (0.5 - d) * (0.5 - d),
		0.75 - d*d,
		0.5 * (0.5 + d) * (0.5 + d),
	}
}

// particleCell returns the base cell of the 3x3x3 neighborhood and the
// fractional offset of the particle within its cell.
func particleCell(p mgl32.Vec3) (base [3]int, diff mgl32.Vec3) {
	for a := 0; a < 3; a++ {
		f := float32(math.Floor(float64(p[a])))
		base[a] = int(f) - 1
		diff[a] = p[a] - f - 0.5
	}
	return base, diff
}

// cellIndex flattens a 3D cell coordinate, x fastest. ok is false outside
// the grid; walls keep particles clear of the border but a single extreme
// step must not corrupt memory.
func (s *Simulator) cellIndex(cx, cy, cz int) (int, bool) {
	if cx < 0 || cy < 0 || cz < 0 || cx >= s.gridW || cy >= s.gridH || cz >= s.gridD {
		return 0, false
	}
	return cx + cy*s.gridW + cz*s.gridW*s.gridH, true
}

// kernClearGrid zeroes one cell's accumulators and its decoded float cell.
func (s *Simulator) kernClearGrid(i int) {
	ci := s.gridInt.Element(i)
	ci.SetInt(s.gf.x, 0)
	ci.SetInt(s.gf.y, 0)
	ci.SetInt(s.gf.z, 0)
	ci.SetInt(s.gf.mass, 0)
	s.gridFloat.Element(i).SetVec4(s.gf.cell, mgl32.Vec4{})
}

// kernP2G1 scatters mass and APIC momentum into the 27-cell neighborhood.
func (s *Simulator) kernP2G1(i int) {
	e := s.particles.Element(i)
	p := e.Vec3(s.pf.position)
	v := e.Vec3(s.pf.velocity)
	C := e.Mat3(s.pf.c)
	mass := e.Float(s.pf.mass)

	base, diff := particleCell(p)
	wx := splineWeights(diff.X())
	wy := splineWeights(diff.Y())
	wz := splineWeights(diff.Z())

	for gx := 0; gx < 3; gx++ {
		for gy := 0; gy < 3; gy++ {
			for gz := 0; gz < 3; gz++ {
				idx, ok := s.cellIndex(base[0]+gx, base[1]+gy, base[2]+gz)
				if !ok {
					continue
				}
				weight := wx[gx] * wy[gy] * wz[gz]
				cellDist := mgl32.Vec3{
					float32(base[0]+gx) + 0.5 - p.X(),
					float32(base[1]+gy) + 0.5 - p.Y(),
					float32(base[2]+gz) + 0.5 - p.Z(),
				}

				q := C.Mul3x1(cellDist)
				contrib := v.Add(q).Mul(weight * mass)

				cell := s.gridInt.Element(idx)
				cell.AddInt(s.gf.x, buffer.Encode(contrib.X(), s.multiplier))
				cell.AddInt(s.gf.y, buffer.Encode(contrib.Y(), s.multiplier))
				cell.AddInt(s.gf.z, buffer.Encode(contrib.Z(), s.multiplier))
				cell.AddInt(s.gf.mass, buffer.Encode(weight*mass, s.multiplier))
			}
		}
	}
}

// kernP2G2 estimates local density from the scattered mass, smooths it into
// the particle, and scatters the stress momentum term.
func (s *Simulator) kernP2G2(i int) {
	e := s.particles.Element(i)
	p := e.Vec3(s.pf.position)
	C := e.Mat3(s.pf.c)
	mat := material.Type(e.Int(s.pf.material))

	base, diff := particleCell(p)
	wx := splineWeights(diff.X())
	wy := splineWeights(diff.Y())
	wz := splineWeights(diff.Z())

	density := float32(0)
	for gx := 0; gx < 3; gx++ {
		for gy := 0; gy < 3; gy++ {
			for gz := 0; gz < 3; gz++ {
				idx, ok := s.cellIndex(base[0]+gx, base[1]+gy, base[2]+gz)
				if !ok {
					continue
				}
				weight := wx[gx] * wy[gy] * wz[gz]
				density += weight * buffer.Decode(s.gridInt.Element(idx).AtomicInt(s.gf.mass), s.multiplier)
			}
		}
	}

	stored := e.Float(s.pf.density)
	rho := stored + (density-stored)*densitySmoothing
	if rho < 0 {
		rho = 0
	}
	e.SetFloat(s.pf.density, rho)

	if debugChecks && rho < 0 {
		panic("sim: negative particle density")
	}

	volume := 1 / max32(rho, 1e-6)
	rel := rho / s.u.params.RestDensity
	rel5 := rel * rel * rel * rel * rel
	pressure := max32(0, rel5-1) * s.u.params.Stiffness

	strain := C.Add(C.Transpose())
	stress := material.Stress(mat, pressure, strain, s.u.params.DynamicViscosity)
	eq16Term0 := stress.Mul(-4 * volume * s.u.dt)

	for gx := 0; gx < 3; gx++ {
		for gy := 0; gy < 3; gy++ {
			for gz := 0; gz < 3; gz++ {
				idx, ok := s.cellIndex(base[0]+gx, base[1]+gy, base[2]+gz)
				if !ok {
					continue
				}
				weight := wx[gx] * wy[gy] * wz[gz]
				cellDist := mgl32.Vec3{
					float32(base[0]+gx) + 0.5 - p.X(),
					float32(base[1]+gy) + 0.5 - p.Y(),
					float32(base[2]+gz) + 0.5 - p.Z(),
				}

				momentum := eq16Term0.Mul3x1(cellDist).Mul(weight)

				cell := s.gridInt.Element(idx)
				cell.AddInt(s.gf.x, buffer.Encode(momentum.X(), s.multiplier))
				cell.AddInt(s.gf.y, buffer.Encode(momentum.Y(), s.multiplier))
				cell.AddInt(s.gf.z, buffer.Encode(momentum.Z(), s.multiplier))
			}
		}
	}
}

// kernUpdateGrid decodes one cell: momentum over mass becomes velocity.
// Empty cells keep their zeroed float view. Wall handling lives in G2P via
// the boundary module, not here.
func (s *Simulator) kernUpdateGrid(i int) {
	ci := s.gridInt.Element(i)
	m := buffer.Decode(ci.Int(s.gf.mass), s.multiplier)
	if m <= 0 {
		return
	}
	inv := 1 / m
	vx := buffer.Decode(ci.Int(s.gf.x), s.multiplier) * inv
	vy := buffer.Decode(ci.Int(s.gf.y), s.multiplier) * inv
	vz := buffer.Decode(ci.Int(s.gf.z), s.multiplier) * inv
	s.gridFloat.Element(i).SetVec4(s.gf.cell, mgl32.Vec4{vx, vy, vz, m})
}

// kernG2P gathers grid velocity back to the particle, applies the external
// forces, integrates, and resolves the container collision.
func (s *Simulator) kernG2P(i int) {
	e := s.particles.Element(i)
	p := e.Vec3(s.pf.position)
	mass := e.Float(s.pf.mass)
	mat := material.Type(e.Int(s.pf.material))
	dt := s.u.dt

	var v mgl32.Vec3

	switch s.u.params.GravityType {
	case GravityRadial:
		dir := mgl32.Vec3{
			p.X()/s.u.gridSize.X() - 0.5,
			p.Y()/s.u.gridSize.Y() - 0.5,
			p.Z()/s.u.gridSize.Z() - 0.5,
		}
		if l := dir.Len(); l > 1e-6 {
			v = v.Sub(dir.Mul(0.3 * dt / l))
		}
	case GravityVector:
		v = v.Add(s.u.params.Gravity.Mul(dt))
	}

	if s.u.params.Noise != 0 {
		n := noise.TriNoise3D(p.Mul(0.015), s.u.elapsed, 0.11)
		n = n.Sub(mgl32.Vec3{0.285, 0.285, 0.285})
		if l := n.Len(); l > 1e-6 {
			n = n.Mul(0.28 / l)
			v = v.Sub(n.Mul(s.u.params.Noise * dt))
		}
	}

	base, diff := particleCell(p)
	wx := splineWeights(diff.X())
	wy := splineWeights(diff.Y())
	wz := splineWeights(diff.Z())

	var b mgl32.Mat3
	for gx := 0; gx < 3; gx++ {
		for gy := 0; gy < 3; gy++ {
			for gz := 0; gz < 3; gz++ {
				idx, ok := s.cellIndex(base[0]+gx, base[1]+gy, base[2]+gz)
				if !ok {
					continue
				}
				weight := wx[gx] * wy[gy] * wz[gz]
				cell := s.gridFloat.Element(idx).Vec4(s.gf.cell)
				cellDist := mgl32.Vec3{
					float32(base[0]+gx) + 0.5 - p.X(),
					float32(base[1]+gy) + 0.5 - p.Y(),
					float32(base[2]+gz) + 0.5 - p.Z(),
				}

				weightedVel := mgl32.Vec3{cell.X(), cell.Y(), cell.Z()}.Mul(weight)
				v = v.Add(weightedVel)
				b = b.Add(weightedVel.OuterProd3(cellDist))
			}
		}
	}
	e.SetMat3(s.pf.c, b.Mul(4))

	mouseFactor := float32(0)
	if s.u.mouseOn {
		rel := p.Sub(s.u.rayOrigin)
		along := rel.Dot(s.u.rayDir)
		diffRay := p.Sub(s.u.rayOrigin.Add(s.u.rayDir.Mul(along)))
		diffRay[2] *= 0.4
		d := diffRay.Len()
		f := max32(0, 1-d*0.1)
		mouseFactor = f * f
		v = v.Add(s.u.mouseForce.Mul(mouseFactor))
	}

	v = v.Mul(mass)
	p = p.Add(v.Mul(dt))

	if s.u.fields.Count > 0 {
		force := s.u.fields.Evaluate(p, s.u.elapsed)
		v = v.Add(force.Mul(dt))
	}

	boundary.Collide(&s.u.bound, &p, &v, dt)

	e.SetVec3(s.pf.position, p)
	e.SetVec3(s.pf.velocity, v)

	dir := e.Vec3(s.pf.direction)
	dir = dir.Add(v.Sub(dir).Mul(directionSmoothing))
	e.SetVec3(s.pf.direction, dir)

	age := e.Float(s.pf.age) + dt
	e.SetFloat(s.pf.age, age)
	lifetime := e.Float(s.pf.lifetime)
	if lifetime > 0 && !math.IsInf(float64(lifetime), 1) && age > lifetime {
		atomic.AddInt64(&s.expired, 1)
	}

	rho := e.Float(s.pf.density)
	relDensity := rho / s.u.params.RestDensity
	switch s.colorMode {
	case ColorVelocity:
		h := relDensity*0.25 + s.u.elapsed*0.05
		sat := clamp01(v.Len()*0.5)*0.3 + 0.7
		val := mouseFactor*0.3 + 0.7
		e.SetVec3(s.pf.color, material.HSVToRGB(h, sat, val))
	case ColorDensity:
		e.SetVec3(s.pf.color, material.HSVToRGB(relDensity*0.5, 0.8, 1.0))
	case ColorMaterial:
		e.SetVec3(s.pf.color, material.Color(mat))
	}
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
