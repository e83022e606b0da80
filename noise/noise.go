// Package noise provides the triangle-wave vector noise used for ambient
// particle agitation and turbulence force fields.
package noise

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

func fract(x float32) float32 {
	return x - float32(math.Floor(float64(x)))
}

// tri is the triangle-wave primitive: a zigzag over the unit interval.
func tri(x float32) float32 {
	f := fract(x) - 0.5
	if f < 0 {
		return -f
	}
	return f
}

// tri3 folds the triangle wave across axes so each component picks up the
// other two coordinates.
func tri3(p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		tri(p.Z() + tri(p.Y())),
		tri(p.Z() + tri(p.X())),
		tri(p.Y() + tri(p.X())),
	}
}

// TriNoise3D returns a vec3 of fractal triangle noise in roughly [0,1].
// Three octaves; each octave scales position by 1.2 and the frequency weight
// by 1.5. Deterministic for identical inputs.
func TriNoise3D(p mgl32.Vec3, speed, t float32) mgl32.Vec3 {
	var rz mgl32.Vec3
	bp := p
	z := float32(1.4)
	drift := t * 0.1 * speed
	for i := 0; i < 3; i++ {
		dg := tri3(bp.Mul(2))
		p = p.Add(dg).Add(mgl32.Vec3{drift, drift, drift})
		bp = bp.Mul(1.2)
		z *= 1.5
		rz = rz.Add(tri3(p).Mul(1 / z))
		bp = bp.Add(mgl32.Vec3{0.14, 0.14, 0.14})
		p = p.Mul(1.2)
	}
	return rz
}

// CurlEpsilon is the central-difference step for Curl.
const CurlEpsilon float32 = 0.1

// Curl computes the central-difference curl of the TriNoise3D field at p.
// The result is divergence-free up to discretization error.
func Curl(p mgl32.Vec3, speed, t float32) mgl32.Vec3 {
	const e = CurlEpsilon
	dx := mgl32.Vec3{e, 0, 0}
	dy := mgl32.Vec3{0, e, 0}
	dz := mgl32.Vec3{0, 0, e}

	px0 := TriNoise3D(p.Sub(dx), speed, t)
	px1 := TriNoise3D(p.Add(dx), speed, t)
	py0 := TriNoise3D(p.Sub(dy), speed, t)
	py1 := TriNoise3D(p.Add(dy), speed, t)
	pz0 := TriNoise3D(p.Sub(dz), speed, t)
	pz1 := TriNoise3D(p.Add(dz), speed, t)

	inv := 1 / (2 * e)
	return mgl32.Vec3{
		((py1.Z() - py0.Z()) - (pz1.Y() - pz0.Y())) * inv,
		((pz1.X() - pz0.X()) - (px1.Z() - px0.Z())) * inv,
		((px1.Y() - px0.Y()) - (py1.X() - py0.X())) * inv,
	}
}
