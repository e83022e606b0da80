package material

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// HSVToRGB converts an HSV triple to RGB. Hue wraps; saturation and value
// are clamped to [0,1]. Near-zero saturation short-circuits to gray.
func HSVToRGB(h, s, v float32) mgl32.Vec3 {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	if s < 1e-4 {
		return mgl32.Vec3{v, v, v}
	}
	if s > 1 {
		s = 1
	}

	h = h - float32(math.Floor(float64(h)))
	h *= 6
	sector := int(h) % 6
	f := h - float32(int(h))

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	switch sector {
	case 0:
		return mgl32.Vec3{v, t, p}
	case 1:
		return mgl32.Vec3{q, v, p}
	case 2:
		return mgl32.Vec3{p, v, t}
	case 3:
		return mgl32.Vec3{p, q, v}
	case 4:
		return mgl32.Vec3{t, p, v}
	default:
		return mgl32.Vec3{v, p, q}
	}
}

// Color returns the preset base RGB for a material. Unknown types fall back
// to the fluid color.
func Color(t Type) mgl32.Vec3 {
	return Lookup(t).BaseColor
}
