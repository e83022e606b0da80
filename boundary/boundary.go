// Package boundary provides the container shapes and collision responses
// applied at the tail of the grid-to-particle pass.
package boundary

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/flux/viewport"
)

// Shape identifies the active container. The integer values are the wire
// format of the boundary snapshot.
type Shape int32

const (
	ShapeNone         Shape = -1
	ShapeBox          Shape = 0
	ShapeSphere       Shape = 1
	ShapeTube         Shape = 2
	ShapeDodecahedron Shape = 3
	ShapeCustom       Shape = 4
)

func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeBox:
		return "box"
	case ShapeSphere:
		return "sphere"
	case ShapeTube:
		return "tube"
	case ShapeDodecahedron:
		return "dodecahedron"
	case ShapeCustom:
		return "custom"
	}
	return "unknown"
}

// CollisionMode selects the CPU-mirror response for the box shape.
type CollisionMode int32

const (
	ModeReflect CollisionMode = iota
	ModeClamp
	ModeWrap
	ModeKill
)

// uiSafetyMargin shrinks curved boundaries away from UI exclusions.
const uiSafetyMargin float32 = 5

// Snapshot is the uniform view the collision kernel consumes.
type Snapshot struct {
	Enabled           bool
	ShapeInt          int32
	WallMin           mgl32.Vec3
	WallMax           mgl32.Vec3
	Stiffness         float32
	Center            mgl32.Vec3
	Radius            float32
	ViewportPulse     float32
	AttractorStrength float32
}

// Boundary holds the authored container state and derives the snapshot.
// Shape transitions go through SetShape, which releases the previous
// shape's derived geometry before rebuilding.
type Boundary struct {
	gridSize      mgl32.Vec3
	wallThickness float32

	shape   Shape
	enabled bool

	wallMin mgl32.Vec3
	wallMax mgl32.Vec3
	center  mgl32.Vec3
	radius  float32

	stiffness         float32
	restitution       float32
	friction          float32
	collisionMode     CollisionMode
	viewportPulse     float32
	attractorStrength float32
}

// New creates a boundary for a grid of the given size. The initial shape is
// None (soft viewport containment, disabled hard walls).
func New(gridSize mgl32.Vec3, wallThickness float32) *Boundary {
	b := &Boundary{
		gridSize:      gridSize,
		wallThickness: wallThickness,
		shape:         ShapeNone,
		stiffness:     0.3,
		restitution:   0.5,
		friction:      0.1,
	}
	b.init(ShapeNone)
	return b
}

// Shape returns the active shape.
func (b *Boundary) Shape() Shape { return b.shape }

// Enabled reports whether hard containment is active. None always reads
// disabled regardless of the flag.
func (b *Boundary) Enabled() bool { return b.enabled && b.shape != ShapeNone }

// SetEnabled flips hard containment on shapes other than None.
func (b *Boundary) SetEnabled(on bool) { b.enabled = on }

// SetStiffness sets the wall spring stiffness.
func (b *Boundary) SetStiffness(k float32) { b.stiffness = k }

// SetRestitution sets the CPU-mirror bounce factor.
func (b *Boundary) SetRestitution(r float32) { b.restitution = r }

// SetFriction sets the CPU-mirror tangential damping.
func (b *Boundary) SetFriction(f float32) { b.friction = f }

// SetCollisionMode selects the CPU-mirror response mode.
func (b *Boundary) SetCollisionMode(m CollisionMode) { b.collisionMode = m }

// SetViewportPulse widens the soft containment sphere; driven by external
// audio-reactive producers, zero otherwise.
func (b *Boundary) SetViewportPulse(p float32) {
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	b.viewportPulse = p
}

// SetAttractorStrength sets the gentle center pull of the soft viewport
// containment.
func (b *Boundary) SetAttractorStrength(s float32) { b.attractorStrength = s }

// SetShape transitions the state machine: the previous shape's derived
// geometry is released, then the new shape's rebuilt.
func (b *Boundary) SetShape(s Shape) {
	if s == b.shape {
		return
	}
	b.release()
	b.init(s)
}

// release drops the derived geometry of the current shape.
func (b *Boundary) release() {
	b.wallMin = mgl32.Vec3{}
	b.wallMax = mgl32.Vec3{}
	b.center = mgl32.Vec3{}
	b.radius = 0
}

// init derives the geometry for the new shape from the grid dimensions.
func (b *Boundary) init(s Shape) {
	b.shape = s

	w := b.wallThickness
	b.wallMin = mgl32.Vec3{w, w, w}
	b.wallMax = b.gridSize.Sub(mgl32.Vec3{w, w, w})
	b.center = b.gridSize.Mul(0.5)

	half := minComponent(b.gridSize) * 0.5
	b.radius = half - (w + uiSafetyMargin)
	if b.radius < 0 {
		b.radius = 0
	}
}

// ApplyViewport resizes the boundary to the tracked safe zone: wall corners
// follow the scaled grid, curved radii follow the smallest safe dimension.
func (b *Boundary) ApplyViewport(vb viewport.Bounds) {
	b.gridSize = mgl32.Vec3{vb.Grid.W, vb.Grid.H, vb.Grid.D}
	b.init(b.shape)
	b.center = vb.Grid.Center
}

// Snapshot packs the uniform view for the collision kernel.
func (b *Boundary) Snapshot() Snapshot {
	return Snapshot{
		Enabled:           b.Enabled(),
		ShapeInt:          int32(b.shape),
		WallMin:           b.wallMin,
		WallMax:           b.wallMax,
		Stiffness:         b.stiffness,
		Center:            b.center,
		Radius:            b.radius,
		ViewportPulse:     b.viewportPulse,
		AttractorStrength: b.attractorStrength,
	}
}

// WallMin returns the lower wall corner.
func (b *Boundary) WallMin() mgl32.Vec3 { return b.wallMin }

// WallMax returns the upper wall corner.
func (b *Boundary) WallMax() mgl32.Vec3 { return b.wallMax }

// Center returns the container center.
func (b *Boundary) Center() mgl32.Vec3 { return b.center }

// Radius returns the curved-shape radius.
func (b *Boundary) Radius() float32 { return b.radius }

func minComponent(v mgl32.Vec3) float32 {
	m := v.X()
	if v.Y() < m {
		m = v.Y()
	}
	if v.Z() < m {
		m = v.Z()
	}
	return m
}
