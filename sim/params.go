package sim

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/flux/config"
)

// GravityType selects how gravity is applied in the grid-to-particle pass.
type GravityType int32

const (
	GravityNone   GravityType = 0
	GravityVector GravityType = 1
	GravityRadial GravityType = 2
)

// ColorMode selects which quantity the grid-to-particle pass writes into the
// per-particle color channel. Modes the core does not implement leave the
// color untouched for downstream visual code.
type ColorMode int32

const (
	ColorVelocity ColorMode = 0
	ColorDensity  ColorMode = 1
	ColorMaterial ColorMode = 3
)

// Params is the per-frame uniform block supplied by the host.
type Params struct {
	NumParticles int

	// DT is the user's time-scale knob, not seconds; the effective step is
	// min(frameDt, 1/60) * 6 * DT.
	DT float32

	Noise            float32
	Stiffness        float32
	RestDensity      float32
	DynamicViscosity float32

	GravityType GravityType
	Gravity     mgl32.Vec3
}

// DefaultParams seeds a Params block from configuration.
func DefaultParams(cfg *config.Config) Params {
	return Params{
		DT:               float32(cfg.Physics.DT),
		Noise:            float32(cfg.Physics.Noise),
		Stiffness:        float32(cfg.Physics.Stiffness),
		RestDensity:      float32(cfg.Physics.RestDensity),
		DynamicViscosity: float32(cfg.Physics.DynamicViscosity),
		GravityType:      GravityType(cfg.Physics.GravityType),
		Gravity: mgl32.Vec3{
			float32(cfg.Physics.Gravity[0]),
			float32(cfg.Physics.Gravity[1]),
			float32(cfg.Physics.Gravity[2]),
		},
	}
}
