package boundary

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// CheckCollision reports whether p violates the container geometry. This is
// the host-side predicate used by tests and by emitters validating spawn
// positions.
func CheckCollision(s *Snapshot, p mgl32.Vec3) bool {
	switch Shape(s.ShapeInt) {
	case ShapeBox, ShapeCustom:
		for axis := 0; axis < 3; axis++ {
			if p[axis] < s.WallMin[axis] || p[axis] > s.WallMax[axis] {
				return true
			}
		}
		return false
	case ShapeSphere, ShapeDodecahedron:
		return p.Sub(s.Center).Len() > s.Radius
	case ShapeTube:
		dx := p.X() - s.Center.X()
		dy := p.Y() - s.Center.Y()
		if sqrt32(dx*dx+dy*dy) > s.Radius {
			return true
		}
		return p.Z() < s.WallMin.Z() || p.Z() > s.WallMax.Z()
	}
	return false
}

// ApplyCollisionResponse resolves a box-wall violation in the requested
// collision mode, updating position and velocity in place. It returns true
// when the particle was killed; the caller removes it. Unlike the in-kernel
// spring, reflect applies restitution and friction here.
func ApplyCollisionResponse(s *Snapshot, mode CollisionMode, p, v *mgl32.Vec3, restitution, friction float32) bool {
	for axis := 0; axis < 3; axis++ {
		lo := s.WallMin[axis]
		hi := s.WallMax[axis]
		if p[axis] >= lo && p[axis] <= hi {
			continue
		}

		switch mode {
		case ModeReflect:
			if p[axis] < lo {
				p[axis] = 2*lo - p[axis]
			} else {
				p[axis] = 2*hi - p[axis]
			}
			v[axis] = -v[axis] * restitution
			for t := 0; t < 3; t++ {
				if t != axis {
					v[t] *= 1 - friction
				}
			}

		case ModeClamp:
			if p[axis] < lo {
				p[axis] = lo
			} else {
				p[axis] = hi
			}
			v[axis] = 0

		case ModeWrap:
			span := hi - lo
			if span <= 0 {
				p[axis] = lo
				break
			}
			for p[axis] < lo {
				p[axis] += span
			}
			for p[axis] > hi {
				p[axis] -= span
			}

		case ModeKill:
			return true
		}
	}
	return false
}
