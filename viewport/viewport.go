// Package viewport tracks the visible screen area and maps it into grid
// space so the simulation domain matches what the user actually sees. The
// tracker is a pure observer: the simulator only ever consumes the resulting
// Bounds, and headless hosts can substitute a fixed source.
package viewport

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Rect is a screen-space rectangle in pixels.
type Rect struct {
	X, Y, W, H float32
}

// Screen describes the raw window.
type Screen struct {
	W, H   int
	Aspect float32
}

// Safe is the screen area left after UI exclusions, in pixels.
type Safe struct {
	MinX, MaxX float32
	MinY, MaxY float32
	Center     mgl32.Vec2
}

// Grid is the simulation domain derived from the safe area.
type Grid struct {
	W, H, D float32
	Center  mgl32.Vec3
}

// Bounds is the full tracker output.
type Bounds struct {
	Screen Screen
	Safe   Safe
	Grid   Grid
}

// ScreenSource supplies window dimensions. Implementations: FixedSource for
// headless hosts and tests, RaylibSource for a real window.
type ScreenSource interface {
	Dimensions() (w, h int)
}

// FixedSource is a constant-size screen.
type FixedSource struct {
	W, H int
}

// Dimensions returns the fixed size.
func (f FixedSource) Dimensions() (int, int) { return f.W, f.H }

// Tracker observes a screen source and registered UI exclusion zones and
// publishes coalesced Bounds updates to subscribers.
type Tracker struct {
	mu         sync.Mutex
	source     ScreenSource
	baseGrid   mgl32.Vec3
	exclusions map[string]Rect
	subs       []func(Bounds)
	bounds     Bounds

	// re-entrancy guard: updates triggered from inside a notification are
	// coalesced into one follow-up pass
	updating bool
	pending  bool
}

// NewTracker creates a tracker for the given source and base grid
// dimensions, computing initial bounds immediately.
func NewTracker(source ScreenSource, baseGrid mgl32.Vec3) *Tracker {
	t := &Tracker{
		source:     source,
		baseGrid:   baseGrid,
		exclusions: make(map[string]Rect),
	}
	t.Update()
	return t
}

// Subscribe registers a bounds listener. It fires on the next coalesced
// update, not retroactively.
func (t *Tracker) Subscribe(fn func(Bounds)) {
	t.mu.Lock()
	t.subs = append(t.subs, fn)
	t.mu.Unlock()
}

// Exclude registers (or replaces) a UI exclusion zone and refreshes bounds.
func (t *Tracker) Exclude(id string, r Rect) {
	t.mu.Lock()
	t.exclusions[id] = r
	t.mu.Unlock()
	t.Update()
}

// ClearExclusion removes an exclusion zone and refreshes bounds.
func (t *Tracker) ClearExclusion(id string) {
	t.mu.Lock()
	delete(t.exclusions, id)
	t.mu.Unlock()
	t.Update()
}

// Bounds returns the last computed bounds.
func (t *Tracker) Bounds() Bounds {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bounds
}

// Update re-reads the source, recomputes bounds, and notifies subscribers.
// Re-entrant calls (from inside a subscriber) coalesce into a single
// follow-up recompute; each subscriber sees one call per coalesced update.
func (t *Tracker) Update() {
	t.mu.Lock()
	if t.updating {
		t.pending = true
		t.mu.Unlock()
		return
	}
	t.updating = true

	for {
		t.bounds = t.compute()
		subs := make([]func(Bounds), len(t.subs))
		copy(subs, t.subs)
		b := t.bounds
		t.mu.Unlock()

		for _, fn := range subs {
			fn(b)
		}

		t.mu.Lock()
		if !t.pending {
			break
		}
		t.pending = false
	}
	t.updating = false
	t.mu.Unlock()
}

// compute derives bounds from the current source and exclusions.
// Caller holds the lock.
func (t *Tracker) compute() Bounds {
	w, h := t.source.Dimensions()
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}

	safe := Safe{MinX: 0, MaxX: float32(w), MinY: 0, MaxY: float32(h)}

	// Panels dock to a screen edge; shrink the safe zone past any exclusion
	// touching that edge.
	for _, r := range t.exclusions {
		touchesLeft := r.X <= 0
		touchesRight := r.X+r.W >= float32(w)
		touchesTop := r.Y <= 0
		touchesBottom := r.Y+r.H >= float32(h)

		fullHeight := r.H >= float32(h)*0.5
		fullWidth := r.W >= float32(w)*0.5

		switch {
		case touchesLeft && fullHeight:
			if e := r.X + r.W; e > safe.MinX {
				safe.MinX = e
			}
		case touchesRight && fullHeight:
			if e := r.X; e < safe.MaxX {
				safe.MaxX = e
			}
		case touchesTop && fullWidth:
			if e := r.Y + r.H; e > safe.MinY {
				safe.MinY = e
			}
		case touchesBottom && fullWidth:
			if e := r.Y; e < safe.MaxY {
				safe.MaxY = e
			}
		}
	}
	if safe.MaxX < safe.MinX {
		safe.MaxX = safe.MinX
	}
	if safe.MaxY < safe.MinY {
		safe.MaxY = safe.MinY
	}
	safe.Center = mgl32.Vec2{(safe.MinX + safe.MaxX) / 2, (safe.MinY + safe.MaxY) / 2}

	safeW := safe.MaxX - safe.MinX
	safeH := safe.MaxY - safe.MinY
	aspect := float32(1)
	if safeH > 0 {
		aspect = safeW / safeH
	}

	// Scale the grid width by the safe aspect so the domain fills the
	// visible area; height and depth stay at the configured base.
	grid := Grid{
		W: t.baseGrid.Y() * aspect,
		H: t.baseGrid.Y(),
		D: t.baseGrid.Z(),
	}
	grid.Center = mgl32.Vec3{grid.W / 2, grid.H / 2, grid.D / 2}

	return Bounds{
		Screen: Screen{W: w, H: h, Aspect: float32(w) / float32(h)},
		Safe:   safe,
		Grid:   grid,
	}
}
