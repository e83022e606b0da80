// Package buffer provides typed, aligned storage for particle and grid state.
//
// A Buffer is a single flat int32 backing with a field layout over it, the
// way a GPU structured buffer would be laid out. Float fields are stored as
// raw IEEE-754 bits in the same word array so one backing can serve both the
// plain float particle fields and the atomically-accumulated integer grid
// fields. The atomic flag is flipped by the kernel before a dispatch; while
// it is on, AddInt goes through sync/atomic.
package buffer

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// ScalarType is the element type of a field.
type ScalarType int

const (
	Float ScalarType = iota
	Int
)

// Arity constants for the supported field shapes.
const (
	ArityScalar = 1
	ArityVec3   = 3
	ArityVec4   = 4
	ArityMat3   = 9
)

// FieldSpec describes one field of a layout.
type FieldSpec struct {
	Name   string
	Type   ScalarType
	Arity  int
	Atomic bool
}

// alignment returns the word alignment for a field arity.
// Scalars pack tightly; all vector and matrix shapes align to 4 words.
func alignment(arity int) int {
	if arity == ArityScalar {
		return 1
	}
	return 4
}

type fieldInfo struct {
	FieldSpec
	Offset int // in words, relative to the element base
}

// Layout assigns word offsets to a list of fields and pads the element
// stride to a multiple of 4 words.
type Layout struct {
	fields []fieldInfo
	index  map[string]int
	stride int
}

// NewLayout builds a layout from the given field specs in order.
func NewLayout(specs ...FieldSpec) (*Layout, error) {
	l := &Layout{index: make(map[string]int, len(specs))}
	offset := 0
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("buffer: field with empty name")
		}
		if _, dup := l.index[s.Name]; dup {
			return nil, fmt.Errorf("buffer: duplicate field %q", s.Name)
		}
		switch s.Arity {
		case ArityScalar, ArityVec3, ArityVec4, ArityMat3:
		default:
			return nil, fmt.Errorf("buffer: field %q has unsupported arity %d", s.Name, s.Arity)
		}
		a := alignment(s.Arity)
		offset = (offset + a - 1) / a * a
		l.index[s.Name] = len(l.fields)
		l.fields = append(l.fields, fieldInfo{FieldSpec: s, Offset: offset})
		offset += s.Arity
	}
	l.stride = (offset + 3) / 4 * 4
	return l, nil
}

// MustLayout is like NewLayout but panics on error. Intended for the static
// layouts declared at kernel-build time.
func MustLayout(specs ...FieldSpec) *Layout {
	l, err := NewLayout(specs...)
	if err != nil {
		panic(err)
	}
	return l
}

// Stride returns the element stride in words.
func (l *Layout) Stride() int { return l.stride }

// Field is a resolved accessor handle for one field. Resolve handles once at
// kernel-build time; per-element access is then pure index arithmetic.
type Field struct {
	offset int
	arity  int
	typ    ScalarType
	atomic bool
}

// Field resolves a field handle by name.
func (l *Layout) Field(name string) (Field, bool) {
	i, ok := l.index[name]
	if !ok {
		return Field{}, false
	}
	f := l.fields[i]
	return Field{offset: f.Offset, arity: f.Arity, typ: f.Type, atomic: f.Atomic}, true
}

// MustField resolves a field handle by name, panicking if absent.
func (l *Layout) MustField(name string) Field {
	f, ok := l.Field(name)
	if !ok {
		panic(fmt.Sprintf("buffer: unknown field %q", name))
	}
	return f
}

// Offset returns the word offset of a field, for layout inspection.
func (l *Layout) Offset(name string) (int, bool) {
	i, ok := l.index[name]
	if !ok {
		return 0, false
	}
	return l.fields[i].Offset, true
}

// Buffer is a typed view over a flat int32 backing.
type Buffer struct {
	layout *Layout
	count  int
	data   []int32

	// atomicMode gates AddInt between plain and atomic adds. Toggled by the
	// kernel between dispatches; never written while a dispatch is running.
	atomicMode bool
}

// New allocates a zeroed buffer with count elements of the given layout.
func New(layout *Layout, count int) *Buffer {
	return &Buffer{
		layout: layout,
		count:  count,
		data:   make([]int32, count*layout.stride),
	}
}

// Layout returns the buffer's layout.
func (b *Buffer) Layout() *Layout { return b.layout }

// Count returns the number of elements.
func (b *Buffer) Count() int { return b.count }

// SetAtomic toggles atomic accumulation for fields declared Atomic.
func (b *Buffer) SetAtomic(on bool) { b.atomicMode = on }

// Zero clears the whole backing.
func (b *Buffer) Zero() {
	clear(b.data)
}

// Set performs a host-side write of a field by name. Unknown field names are
// silently ignored. A vector value whose length does not match the field
// arity aborts the write; no words are touched.
func (b *Buffer) Set(i int, name string, value any) {
	f, ok := b.layout.Field(name)
	if !ok {
		return
	}
	e := b.Element(i)
	switch v := value.(type) {
	case float32:
		if f.arity != ArityScalar || f.typ != Float {
			return
		}
		e.SetFloat(f, v)
	case float64:
		if f.arity != ArityScalar || f.typ != Float {
			return
		}
		e.SetFloat(f, float32(v))
	case int:
		if f.arity != ArityScalar || f.typ != Int {
			return
		}
		e.SetInt(f, int32(v))
	case int32:
		if f.arity != ArityScalar || f.typ != Int {
			return
		}
		e.SetInt(f, v)
	case mgl32.Vec3:
		if f.arity != ArityVec3 {
			return
		}
		e.SetVec3(f, v)
	case mgl32.Vec4:
		if f.arity != ArityVec4 {
			return
		}
		e.SetVec4(f, v)
	case mgl32.Mat3:
		if f.arity != ArityMat3 {
			return
		}
		e.SetMat3(f, v)
	case []float32:
		if len(v) != f.arity {
			return
		}
		base := e.base + f.offset
		for k, x := range v {
			b.data[base+k] = int32(math.Float32bits(x))
		}
	}
}

// Element returns an accessor handle for element i.
func (b *Buffer) Element(i int) Element {
	return Element{b: b, base: i * b.layout.stride}
}

// Element addresses one element of a buffer. The zero Element is invalid.
type Element struct {
	b    *Buffer
	base int
}

// Float reads a scalar float field.
func (e Element) Float(f Field) float32 {
	return math.Float32frombits(uint32(e.b.data[e.base+f.offset]))
}

// SetFloat writes a scalar float field.
func (e Element) SetFloat(f Field, v float32) {
	e.b.data[e.base+f.offset] = int32(math.Float32bits(v))
}

// Int reads a scalar int field.
func (e Element) Int(f Field) int32 {
	return e.b.data[e.base+f.offset]
}

// SetInt writes a scalar int field.
func (e Element) SetInt(f Field, v int32) {
	e.b.data[e.base+f.offset] = v
}

// AtomicInt reads a scalar int field with an atomic load. Use when another
// dispatch may still be accumulating into the word.
func (e Element) AtomicInt(f Field) int32 {
	return atomic.LoadInt32(&e.b.data[e.base+f.offset])
}

// AddInt accumulates delta into a scalar int field. The add is atomic iff
// the field is declared Atomic and the buffer's atomic flag is on.
func (e Element) AddInt(f Field, delta int32) {
	p := &e.b.data[e.base+f.offset]
	if f.atomic && e.b.atomicMode {
		atomic.AddInt32(p, delta)
		return
	}
	*p += delta
}

// Vec3 reads a vec3 field.
func (e Element) Vec3(f Field) mgl32.Vec3 {
	d := e.b.data[e.base+f.offset:]
	return mgl32.Vec3{
		math.Float32frombits(uint32(d[0])),
		math.Float32frombits(uint32(d[1])),
		math.Float32frombits(uint32(d[2])),
	}
}

// SetVec3 writes a vec3 field.
func (e Element) SetVec3(f Field, v mgl32.Vec3) {
	d := e.b.data[e.base+f.offset:]
	d[0] = int32(math.Float32bits(v[0]))
	d[1] = int32(math.Float32bits(v[1]))
	d[2] = int32(math.Float32bits(v[2]))
}

// Vec4 reads a vec4 field.
func (e Element) Vec4(f Field) mgl32.Vec4 {
	d := e.b.data[e.base+f.offset:]
	return mgl32.Vec4{
		math.Float32frombits(uint32(d[0])),
		math.Float32frombits(uint32(d[1])),
		math.Float32frombits(uint32(d[2])),
		math.Float32frombits(uint32(d[3])),
	}
}

// SetVec4 writes a vec4 field.
func (e Element) SetVec4(f Field, v mgl32.Vec4) {
	d := e.b.data[e.base+f.offset:]
	d[0] = int32(math.Float32bits(v[0]))
	d[1] = int32(math.Float32bits(v[1]))
	d[2] = int32(math.Float32bits(v[2]))
	d[3] = int32(math.Float32bits(v[3]))
}

// Mat3 reads a mat3 field (column-major, 9 words).
func (e Element) Mat3(f Field) mgl32.Mat3 {
	d := e.b.data[e.base+f.offset:]
	var m mgl32.Mat3
	for k := 0; k < 9; k++ {
		m[k] = math.Float32frombits(uint32(d[k]))
	}
	return m
}

// SetMat3 writes a mat3 field.
func (e Element) SetMat3(f Field, m mgl32.Mat3) {
	d := e.b.data[e.base+f.offset:]
	for k := 0; k < 9; k++ {
		d[k] = int32(math.Float32bits(m[k]))
	}
}
