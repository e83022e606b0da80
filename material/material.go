// Package material defines the per-material constitutive rules and the
// material parameter table shared by the simulator and the renderer.
package material

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Type indexes the material table.
type Type int32

const (
	Fluid Type = iota
	Elastic
	Sand
	Snow
	Foam
	Viscous
	Rigid
	Plasma

	numTypes
)

// Count is the number of known material types.
const Count = int(numTypes)

var typeNames = [...]string{"fluid", "elastic", "sand", "snow", "foam", "viscous", "rigid", "plasma"}

func (t Type) String() string {
	if t < 0 || t >= numTypes {
		return fmt.Sprintf("material(%d)", int32(t))
	}
	return typeNames[t]
}

// Valid reports whether t indexes a known material.
func (t Type) Valid() bool { return t >= 0 && t < numTypes }

// FromInt converts an integer tag to a Type, rejecting unknown values.
func FromInt(i int32) (Type, error) {
	t := Type(i)
	if !t.Valid() {
		return 0, fmt.Errorf("material: unknown type %d", i)
	}
	return t, nil
}

// Params holds the physical and visual parameters of one material. The
// visual and thermal fields are passed through to the renderer untouched.
type Params struct {
	Density         float32
	Stiffness       float32
	Viscosity       float32
	Friction        float32
	Cohesion        float32
	Elasticity      float32
	Plasticity      float32
	Compressibility float32
	SurfaceTension  float32

	HeatCapacity float32
	Conductivity float32

	BaseColor mgl32.Vec3
	Metalness float32
	Roughness float32
	Emissive  float32
}

// table holds the preset parameters, indexed by Type.
var table = [numTypes]Params{
	Fluid: {
		Density: 1.0, Stiffness: 3.0, Viscosity: 0.1,
		Friction: 0.05, Cohesion: 0.1, Elasticity: 0, Plasticity: 0,
		Compressibility: 0.2, SurfaceTension: 0.5,
		HeatCapacity: 4.2, Conductivity: 0.6,
		BaseColor: mgl32.Vec3{0.12, 0.42, 0.92}, Metalness: 0.0, Roughness: 0.15,
	},
	Elastic: {
		Density: 1.2, Stiffness: 4.0, Viscosity: 0.8,
		Friction: 0.3, Cohesion: 0.9, Elasticity: 0.9, Plasticity: 0.05,
		Compressibility: 0.05, SurfaceTension: 0.2,
		HeatCapacity: 1.8, Conductivity: 0.2,
		BaseColor: mgl32.Vec3{0.25, 0.85, 0.35}, Metalness: 0.0, Roughness: 0.5,
	},
	Sand: {
		Density: 1.6, Stiffness: 2.0, Viscosity: 0.4,
		Friction: 0.8, Cohesion: 0.02, Elasticity: 0.05, Plasticity: 0.7,
		Compressibility: 0.1, SurfaceTension: 0,
		HeatCapacity: 0.8, Conductivity: 0.25,
		BaseColor: mgl32.Vec3{0.86, 0.72, 0.45}, Metalness: 0.0, Roughness: 0.95,
	},
	Snow: {
		Density: 0.4, Stiffness: 1.5, Viscosity: 0.5,
		Friction: 0.5, Cohesion: 0.4, Elasticity: 0.2, Plasticity: 0.9,
		Compressibility: 0.6, SurfaceTension: 0.1,
		HeatCapacity: 2.1, Conductivity: 0.05,
		BaseColor: mgl32.Vec3{0.93, 0.95, 1.0}, Metalness: 0.0, Roughness: 0.7,
	},
	Foam: {
		Density: 0.2, Stiffness: 0.8, Viscosity: 0.3,
		Friction: 0.2, Cohesion: 0.3, Elasticity: 0.4, Plasticity: 0.2,
		Compressibility: 0.9, SurfaceTension: 0.8,
		HeatCapacity: 1.0, Conductivity: 0.03,
		BaseColor: mgl32.Vec3{0.85, 0.95, 0.9}, Metalness: 0.0, Roughness: 0.4,
	},
	Viscous: {
		Density: 1.3, Stiffness: 2.5, Viscosity: 3.0,
		Friction: 0.6, Cohesion: 0.7, Elasticity: 0.1, Plasticity: 0.3,
		Compressibility: 0.1, SurfaceTension: 0.9,
		HeatCapacity: 2.0, Conductivity: 0.3,
		BaseColor: mgl32.Vec3{0.95, 0.68, 0.12}, Metalness: 0.0, Roughness: 0.25,
	},
	Rigid: {
		Density: 2.5, Stiffness: 8.0, Viscosity: 2.0,
		Friction: 0.9, Cohesion: 1.0, Elasticity: 0.95, Plasticity: 0.01,
		Compressibility: 0.01, SurfaceTension: 0,
		HeatCapacity: 0.5, Conductivity: 0.8,
		BaseColor: mgl32.Vec3{0.62, 0.64, 0.68}, Metalness: 0.6, Roughness: 0.35,
	},
	Plasma: {
		Density: 0.1, Stiffness: 1.0, Viscosity: 0.05,
		Friction: 0, Cohesion: 0, Elasticity: 0, Plasticity: 0,
		Compressibility: 1.0, SurfaceTension: 0,
		HeatCapacity: 5.0, Conductivity: 1.0,
		BaseColor: mgl32.Vec3{0.95, 0.25, 0.85}, Metalness: 0.0, Roughness: 0.05,
		Emissive: 2.0,
	},
}

// Lookup returns the parameter table entry for t. Unknown types fall back to
// the fluid entry so a corrupt tag cannot crash a kernel.
func Lookup(t Type) Params {
	if !t.Valid() {
		return table[Fluid]
	}
	return table[t]
}

// Stiffness returns the preset stiffness for t.
func Stiffness(t Type) float32 { return Lookup(t).Stiffness }

// Viscosity returns the preset viscosity for t.
func Viscosity(t Type) float32 { return Lookup(t).Viscosity }

// strainScale is the per-material weight of the viscous strain term.
var strainScale = [numTypes]float32{
	Fluid:   0.1,
	Elastic: 2.0,
	Sand:    0.5,
	Snow:    0.3,
	Foam:    0.2,
	Viscous: 5.0,
	Rigid:   10.0,
	Plasma:  0.05,
}

// Stress builds the Cauchy stress tensor for a particle: an isotropic
// pressure term plus a per-material viscous strain term. Sand carries no
// tension (zero tensor under negative pressure); foam's full tensor is
// softened by 0.3. Unknown types use the fluid rule.
func Stress(t Type, pressure float32, strain mgl32.Mat3, viscosity float32) mgl32.Mat3 {
	if !t.Valid() {
		t = Fluid
	}
	if t == Sand && pressure < 0 {
		return mgl32.Mat3{}
	}

	s := mgl32.Ident3().Mul(-pressure)
	s = s.Add(strain.Mul(strainScale[t] * viscosity))

	if t == Foam {
		s = s.Mul(0.3)
	}
	return s
}
