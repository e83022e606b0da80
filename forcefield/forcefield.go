// Package forcefield evaluates user-defined force fields over particle
// positions. Fields are packed into a flat snapshot of parallel arrays, the
// uniform format the simulator consumes.
package forcefield

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/flux/noise"
)

// Kind selects a field's behavior.
type Kind int32

const (
	Attractor Kind = iota
	Repeller
	Vortex
	Turbulence
	Directional
	VortexTube
	Spherical
	CurlNoise
)

// Falloff selects how a field tapers toward its radius.
type Falloff int32

const (
	FalloffConstant Falloff = iota
	FalloffLinear
	FalloffQuadratic
	FalloffSmooth
)

// MaxFields is the snapshot capacity; the evaluator never sees more.
const MaxFields = 8

// Field is one authored force field.
type Field struct {
	Kind       Kind
	Position   mgl32.Vec3
	Direction  mgl32.Vec3
	Axis       mgl32.Vec3
	Strength   float32
	Radius     float32
	Falloff    Falloff
	TurbScale  float32
	NoiseSpeed float32
	Enabled    bool
}

// Weight returns the falloff weight for a distance d inside radius r.
// All modes satisfy f(0)=1, f(r)=0 (except constant) and decrease
// monotonically on [0,r].
func (f Falloff) Weight(d, r float32) float32 {
	if r <= 0 {
		return 0
	}
	t := d / r
	if t > 1 {
		t = 1
	}
	switch f {
	case FalloffLinear:
		return 1 - t
	case FalloffQuadratic:
		return (1 - t) * (1 - t)
	case FalloffSmooth:
		return 1 - t*t*(3-2*t)
	default:
		return 1
	}
}

// Snapshot is the packed uniform view of the enabled fields. Parallel
// arrays, compacted: entries [0, Count) are live.
type Snapshot struct {
	Count      int
	Kind       [MaxFields]int32
	Pos        [MaxFields]mgl32.Vec3
	Dir        [MaxFields]mgl32.Vec3
	Axis       [MaxFields]mgl32.Vec3
	Strength   [MaxFields]float32
	Radius     [MaxFields]float32
	Falloff    [MaxFields]int32
	TurbScale  [MaxFields]float32
	NoiseSpeed [MaxFields]float32
}

// Evaluate sums the force of every live field at position p and time t.
// Contributions are commutative additions, so field order is unobservable.
func (s *Snapshot) Evaluate(p mgl32.Vec3, t float32) mgl32.Vec3 {
	var total mgl32.Vec3
	for i := 0; i < s.Count; i++ {
		total = total.Add(s.evalOne(i, p, t))
	}
	return total
}

func (s *Snapshot) evalOne(i int, p mgl32.Vec3, t float32) mgl32.Vec3 {
	r := s.Radius[i]
	toField := s.Pos[i].Sub(p)
	d := toField.Len()
	if r <= 0 || d > r {
		return mgl32.Vec3{}
	}

	strength := s.Strength[i]
	w := Falloff(s.Falloff[i]).Weight(d, r)

	switch Kind(s.Kind[i]) {
	case Attractor:
		if d < 1e-6 {
			return mgl32.Vec3{}
		}
		return toField.Mul(1 / d).Mul(strength * w)

	case Repeller:
		if d < 1e-6 {
			return mgl32.Vec3{}
		}
		return toField.Mul(-1 / d).Mul(strength * w)

	case Vortex:
		return vortexForce(p.Sub(s.Pos[i]), s.Axis[i], strength, w, r, 1, 0.3, 0.2, false)

	case VortexTube:
		return vortexForce(p.Sub(s.Pos[i]), s.Axis[i], strength, w, r, 2, 0.24, 0.1, true)

	case Turbulence:
		n := noise.TriNoise3D(p.Mul(s.TurbScale[i]), s.NoiseSpeed[i], t)
		n = n.Sub(mgl32.Vec3{0.5, 0.5, 0.5}).Mul(2)
		return n.Mul(strength * w)

	case Directional:
		dir := s.Dir[i]
		if l := dir.Len(); l > 1e-6 {
			dir = dir.Mul(1 / l)
		}
		return dir.Mul(strength * w)

	case Spherical:
		if d < 1e-6 {
			return mgl32.Vec3{}
		}
		pulse := 0.5 + 0.5*float32(math.Sin(float64(2*t)))
		return toField.Mul(-1 / d).Mul(strength * w * pulse)

	case CurlNoise:
		c := noise.Curl(p.Mul(s.TurbScale[i]), s.NoiseSpeed[i], t)
		return c.Mul(strength * w)
	}
	return mgl32.Vec3{}
}

// vortexForce decomposes the offset from the field center around the axis:
// tangential spin, radial spiral (negative = inward) and axial lift. The
// tube variant fades the lift toward the caps.
func vortexForce(offset, axis mgl32.Vec3, strength, w, radius, tangentK, inwardK, liftK float32, capFade bool) mgl32.Vec3 {
	a := axis
	if l := a.Len(); l > 1e-6 {
		a = a.Mul(1 / l)
	} else {
		a = mgl32.Vec3{0, 1, 0}
	}

	axialDist := offset.Dot(a)
	radial := offset.Sub(a.Mul(axialDist))
	rl := radial.Len()
	if rl < 1e-6 {
		return a.Mul(liftK * strength * w)
	}
	radialDir := radial.Mul(1 / rl)
	tangentDir := a.Cross(radialDir)

	lift := liftK
	if capFade {
		hf := 1 - float32(math.Abs(float64(axialDist)))/radius
		if hf < 0 {
			hf = 0
		}
		lift *= hf
	}

	out := tangentDir.Mul(tangentK * strength * w)
	out = out.Add(radialDir.Mul(-inwardK * strength * w))
	out = out.Add(a.Mul(lift * strength * w))
	return out
}

// Manager owns the authored field set and produces packed snapshots.
type Manager struct {
	fields []Field
	max    int
}

// NewManager creates a manager that packs at most max fields (MaxFields
// when max is zero or negative).
func NewManager(max int) *Manager {
	if max <= 0 || max > MaxFields {
		max = MaxFields
	}
	return &Manager{max: max}
}

// Add appends a field and returns its index.
func (m *Manager) Add(f Field) int {
	m.fields = append(m.fields, f)
	return len(m.fields) - 1
}

// Set replaces the field at index i; out-of-range indexes are ignored.
func (m *Manager) Set(i int, f Field) {
	if i >= 0 && i < len(m.fields) {
		m.fields[i] = f
	}
}

// SetEnabled flips one field; out-of-range indexes are ignored.
func (m *Manager) SetEnabled(i int, on bool) {
	if i >= 0 && i < len(m.fields) {
		m.fields[i].Enabled = on
	}
}

// Remove deletes the field at index i, preserving order.
func (m *Manager) Remove(i int) {
	if i >= 0 && i < len(m.fields) {
		m.fields = append(m.fields[:i], m.fields[i+1:]...)
	}
}

// Clear removes all fields.
func (m *Manager) Clear() { m.fields = m.fields[:0] }

// Len returns the number of authored fields, enabled or not.
func (m *Manager) Len() int { return len(m.fields) }

// Pack compacts the enabled fields into a snapshot. More enabled fields
// than the manager's capacity is a configuration error.
func (m *Manager) Pack() (Snapshot, error) {
	var s Snapshot
	for _, f := range m.fields {
		if !f.Enabled {
			continue
		}
		if s.Count >= m.max {
			return Snapshot{}, fmt.Errorf("forcefield: %d enabled fields exceed capacity %d", enabledCount(m.fields), m.max)
		}
		i := s.Count
		s.Kind[i] = int32(f.Kind)
		s.Pos[i] = f.Position
		s.Dir[i] = f.Direction
		s.Axis[i] = f.Axis
		s.Strength[i] = f.Strength
		s.Radius[i] = f.Radius
		s.Falloff[i] = int32(f.Falloff)
		s.TurbScale[i] = f.TurbScale
		s.NoiseSpeed[i] = f.NoiseSpeed
		s.Count++
	}
	return s, nil
}

func enabledCount(fields []Field) int {
	n := 0
	for _, f := range fields {
		if f.Enabled {
			n++
		}
	}
	return n
}
