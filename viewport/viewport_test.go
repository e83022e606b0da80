package viewport

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestBoundsFullScreen(t *testing.T) {
	tr := NewTracker(FixedSource{W: 1920, H: 1080}, mgl32.Vec3{64, 64, 64})
	b := tr.Bounds()

	if b.Screen.W != 1920 || b.Screen.H != 1080 {
		t.Errorf("screen = %dx%d, want 1920x1080", b.Screen.W, b.Screen.H)
	}
	if math.Abs(float64(b.Screen.Aspect-1920.0/1080.0)) > 1e-5 {
		t.Errorf("aspect = %v", b.Screen.Aspect)
	}
	if b.Safe.MinX != 0 || b.Safe.MaxX != 1920 {
		t.Errorf("safe X = [%v,%v], want [0,1920]", b.Safe.MinX, b.Safe.MaxX)
	}
	// Grid width scales with aspect, height and depth stay at base.
	if b.Grid.H != 64 || b.Grid.D != 64 {
		t.Errorf("grid H,D = %v,%v, want 64,64", b.Grid.H, b.Grid.D)
	}
	wantW := 64 * 1920.0 / 1080.0
	if math.Abs(float64(b.Grid.W)-wantW) > 1e-3 {
		t.Errorf("grid W = %v, want %v", b.Grid.W, wantW)
	}
}

func TestExclusionShrinksSafeZone(t *testing.T) {
	tr := NewTracker(FixedSource{W: 1000, H: 1000}, mgl32.Vec3{64, 64, 64})

	// A control panel docked to the right edge, full height.
	tr.Exclude("panel", Rect{X: 700, Y: 0, W: 300, H: 1000})
	b := tr.Bounds()

	if b.Safe.MaxX != 700 {
		t.Errorf("safe MaxX = %v, want 700", b.Safe.MaxX)
	}
	if b.Safe.Center.X() != 350 {
		t.Errorf("safe center X = %v, want 350", b.Safe.Center.X())
	}
	// Narrower safe area narrows the grid.
	if b.Grid.W >= 64 {
		t.Errorf("grid W = %v, should shrink below 64", b.Grid.W)
	}

	tr.ClearExclusion("panel")
	if got := tr.Bounds().Safe.MaxX; got != 1000 {
		t.Errorf("safe MaxX after clear = %v, want 1000", got)
	}
}

func TestSubscribersCoalesced(t *testing.T) {
	tr := NewTracker(FixedSource{W: 800, H: 600}, mgl32.Vec3{64, 64, 64})

	calls := 0
	var reentered bool
	tr.Subscribe(func(b Bounds) {
		calls++
		// One re-entrant update from inside the notification: must coalesce,
		// not recurse.
		if !reentered {
			reentered = true
			tr.Update()
		}
	})

	tr.Update()
	if calls != 2 {
		t.Errorf("subscriber called %d times, want 2 (initial + one coalesced)", calls)
	}
}

func TestSubscriberNotifiedOnExclude(t *testing.T) {
	tr := NewTracker(FixedSource{W: 800, H: 600}, mgl32.Vec3{64, 64, 64})

	var got *Bounds
	tr.Subscribe(func(b Bounds) { got = &b })

	tr.Exclude("dock", Rect{X: 0, Y: 0, W: 200, H: 600})
	if got == nil {
		t.Fatal("subscriber not notified on Exclude")
	}
	if got.Safe.MinX != 200 {
		t.Errorf("safe MinX = %v, want 200", got.Safe.MinX)
	}
}
