package buffer

import (
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestLayoutOffsets(t *testing.T) {
	l, err := NewLayout(
		FieldSpec{Name: "mass", Type: Float, Arity: ArityScalar},
		FieldSpec{Name: "position", Type: Float, Arity: ArityVec3},
		FieldSpec{Name: "age", Type: Float, Arity: ArityScalar},
		FieldSpec{Name: "C", Type: Float, Arity: ArityMat3},
		FieldSpec{Name: "material", Type: Int, Arity: ArityScalar},
	)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}

	tests := []struct {
		name string
		want int
	}{
		{"mass", 0},
		{"position", 4}, // vec3 aligns to 4
		{"age", 7},      // scalar packs right after the vec3
		{"C", 8},        // mat3 aligns to 4
		{"material", 17},
	}
	for _, tt := range tests {
		got, ok := l.Offset(tt.name)
		if !ok {
			t.Errorf("Offset(%q) missing", tt.name)
			continue
		}
		if got != tt.want {
			t.Errorf("Offset(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}

	// 18 words used, padded to a multiple of 4
	if l.Stride() != 20 {
		t.Errorf("Stride() = %d, want 20", l.Stride())
	}
}

func TestLayoutDuplicateField(t *testing.T) {
	_, err := NewLayout(
		FieldSpec{Name: "x", Type: Int, Arity: ArityScalar},
		FieldSpec{Name: "x", Type: Int, Arity: ArityScalar},
	)
	if err == nil {
		t.Error("duplicate field name should be rejected")
	}
}

func TestSetUnknownFieldIgnored(t *testing.T) {
	l := MustLayout(FieldSpec{Name: "mass", Type: Float, Arity: ArityScalar})
	b := New(l, 4)
	b.Set(0, "nope", float32(1)) // must not panic or write
	if got := b.Element(0).Float(l.MustField("mass")); got != 0 {
		t.Errorf("mass = %v after unknown-field write, want 0", got)
	}
}

func TestSetArityMismatchAborts(t *testing.T) {
	l := MustLayout(FieldSpec{Name: "position", Type: Float, Arity: ArityVec3})
	b := New(l, 1)
	f := l.MustField("position")
	b.Element(0).SetVec3(f, mgl32.Vec3{1, 2, 3})

	// Wrong-length slice: the whole write is dropped, no partial words.
	b.Set(0, "position", []float32{9, 9})
	if got := b.Element(0).Vec3(f); got != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("position = %v after mismatched write, want {1 2 3}", got)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	l := MustLayout(
		FieldSpec{Name: "v3", Type: Float, Arity: ArityVec3},
		FieldSpec{Name: "v4", Type: Float, Arity: ArityVec4},
		FieldSpec{Name: "m", Type: Float, Arity: ArityMat3},
	)
	b := New(l, 2)
	e := b.Element(1)

	v3 := mgl32.Vec3{1.5, -2.25, 3.125}
	v4 := mgl32.Vec4{0.5, 1, -1, 42}
	m := mgl32.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9}

	e.SetVec3(l.MustField("v3"), v3)
	e.SetVec4(l.MustField("v4"), v4)
	e.SetMat3(l.MustField("m"), m)

	if got := e.Vec3(l.MustField("v3")); got != v3 {
		t.Errorf("Vec3 = %v, want %v", got, v3)
	}
	if got := e.Vec4(l.MustField("v4")); got != v4 {
		t.Errorf("Vec4 = %v, want %v", got, v4)
	}
	if got := e.Mat3(l.MustField("m")); got != m {
		t.Errorf("Mat3 = %v, want %v", got, m)
	}

	// Element 0 must be untouched
	if got := b.Element(0).Vec3(l.MustField("v3")); got != (mgl32.Vec3{}) {
		t.Errorf("element 0 polluted: %v", got)
	}
}

func TestAtomicAccumulation(t *testing.T) {
	l := MustLayout(FieldSpec{Name: "mass", Type: Int, Arity: ArityScalar, Atomic: true})
	b := New(l, 8)
	b.SetAtomic(true)
	f := l.MustField("mass")

	const workers = 8
	const perWorker = 1000
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < perWorker; k++ {
				b.Element(3).AddInt(f, 2)
			}
		}()
	}
	wg.Wait()

	if got := b.Element(3).Int(f); got != workers*perWorker*2 {
		t.Errorf("accumulated = %d, want %d", got, workers*perWorker*2)
	}
}

func TestFixedPointRoundTrip(t *testing.T) {
	// decode(encode(x)) = x within 1/multiplier for representable x in [-10, 10]
	for x := float32(-10); x <= 10; x += 0.0625 {
		got := Decode(Encode(x, DefaultMultiplier), DefaultMultiplier)
		if diff := float64(got - x); math.Abs(diff) > 1.0/float64(DefaultMultiplier) {
			t.Fatalf("round trip %v -> %v, error %v", x, got, diff)
		}
	}
}

func TestZero(t *testing.T) {
	l := MustLayout(FieldSpec{Name: "v", Type: Float, Arity: ArityVec4})
	b := New(l, 3)
	f := l.MustField("v")
	for i := 0; i < 3; i++ {
		b.Element(i).SetVec4(f, mgl32.Vec4{1, 2, 3, 4})
	}
	b.Zero()
	for i := 0; i < 3; i++ {
		if got := b.Element(i).Vec4(f); got != (mgl32.Vec4{}) {
			t.Errorf("element %d = %v after Zero, want zero", i, got)
		}
	}
}
