package boundary

import (
	"github.com/go-gl/mathgl/mgl32"
)

// lookAheadFactor predicts where the particle will be a few substeps out so
// the wall spring engages before penetration.
const lookAheadFactor float32 = 3

// Collide applies the container response to one particle, updating position
// and velocity in place. This is the routine wired into the tail of the
// grid-to-particle kernel; a particle already inside the container passes
// through unchanged.
func Collide(s *Snapshot, p, v *mgl32.Vec3, dt float32) {
	xN := p.Add(v.Mul(dt * lookAheadFactor))

	if !s.Enabled || Shape(s.ShapeInt) == ShapeNone {
		collideSoftViewport(s, p, v, xN, dt)
		return
	}

	switch Shape(s.ShapeInt) {
	case ShapeBox, ShapeCustom:
		collideBox(s, p, v, xN)
	case ShapeSphere, ShapeDodecahedron:
		// The dodecahedron uses the spherical approximation; exact face
		// planes are not worth the per-particle cost.
		collideSphere(s, p, v, xN)
	case ShapeTube:
		collideTube(s, p, v, xN)
	}
}

// collideSoftViewport keeps particles gently inside the visible area when no
// hard container is active. The pulse widens the safe sphere.
func collideSoftViewport(s *Snapshot, p, v *mgl32.Vec3, xN mgl32.Vec3, dt float32) {
	r := s.Radius
	if r <= 0 {
		return
	}

	offset := xN.Sub(s.Center)
	d := offset.Len()

	safeRadius := r*0.95 + s.ViewportPulse*r*0.15
	softZone := 0.7 * r

	if d > softZone && d > 1e-6 {
		dir := offset.Mul(1 / d)
		k := 0.04 + s.ViewportPulse*0.08 + (d-softZone)/(safeRadius-softZone)*0.12
		*v = v.Sub(dir.Mul((d - softZone) * k))
	}

	if s.AttractorStrength != 0 && d > 1e-6 {
		*v = v.Sub(offset.Mul(1 / d).Mul(s.AttractorStrength * dt))
	}

	// Hard backstop for particles that outran the spring.
	cur := p.Sub(s.Center)
	cd := cur.Len()
	limit := 1.05 * safeRadius
	if cd > limit && cd > 1e-6 {
		*p = s.Center.Add(cur.Mul(limit / cd))
	}
}

// collideBox applies six axis-aligned half-space springs, then clamps the
// position into the walls.
func collideBox(s *Snapshot, p, v *mgl32.Vec3, xN mgl32.Vec3) {
	for axis := 0; axis < 3; axis++ {
		if xN[axis] < s.WallMin[axis] {
			v[axis] += (s.WallMin[axis] - xN[axis]) * s.Stiffness
		}
		if xN[axis] > s.WallMax[axis] {
			v[axis] += (s.WallMax[axis] - xN[axis]) * s.Stiffness
		}
	}
	for axis := 0; axis < 3; axis++ {
		if p[axis] < s.WallMin[axis] {
			p[axis] = s.WallMin[axis]
		} else if p[axis] > s.WallMax[axis] {
			p[axis] = s.WallMax[axis]
		}
	}
}

// collideSphere applies a radial spring against the boundary radius and
// projects escapees back onto the sphere.
func collideSphere(s *Snapshot, p, v *mgl32.Vec3, xN mgl32.Vec3) {
	offset := xN.Sub(s.Center)
	d := offset.Len()
	if d > s.Radius && d > 1e-6 {
		normal := offset.Mul(1 / d)
		penetration := d - s.Radius
		*v = v.Sub(normal.Mul(penetration * s.Stiffness))
	}

	cur := p.Sub(s.Center)
	cd := cur.Len()
	if cd > s.Radius && cd > 1e-6 {
		*p = s.Center.Add(cur.Mul(s.Radius / cd))
	}
}

// collideTube constrains the XY radius and applies the box's Z walls.
func collideTube(s *Snapshot, p, v *mgl32.Vec3, xN mgl32.Vec3) {
	offX := xN.X() - s.Center.X()
	offY := xN.Y() - s.Center.Y()
	d := sqrt32(offX*offX + offY*offY)
	if d > s.Radius && d > 1e-6 {
		nx := offX / d
		ny := offY / d
		penetration := d - s.Radius
		v[0] -= nx * penetration * s.Stiffness
		v[1] -= ny * penetration * s.Stiffness
	}

	curX := p.X() - s.Center.X()
	curY := p.Y() - s.Center.Y()
	cd := sqrt32(curX*curX + curY*curY)
	if cd > s.Radius && cd > 1e-6 {
		p[0] = s.Center.X() + curX*s.Radius/cd
		p[1] = s.Center.Y() + curY*s.Radius/cd
	}

	// Axial caps, identical to the box's Z walls.
	if xN.Z() < s.WallMin.Z() {
		v[2] += (s.WallMin.Z() - xN.Z()) * s.Stiffness
	}
	if xN.Z() > s.WallMax.Z() {
		v[2] += (s.WallMax.Z() - xN.Z()) * s.Stiffness
	}
	if p[2] < s.WallMin.Z() {
		p[2] = s.WallMin.Z()
	} else if p[2] > s.WallMax.Z() {
		p[2] = s.WallMax.Z()
	}
}
