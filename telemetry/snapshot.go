package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/flux/sim"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the particle ensemble state for offline analysis.
type Snapshot struct {
	Version int `json:"version"`

	GridW float32 `json:"grid_w"`
	GridH float32 `json:"grid_h"`
	GridD float32 `json:"grid_d"`

	Step      int             `json:"step"`
	Particles []ParticleState `json:"particles"`
}

// ParticleState holds one particle's state.
type ParticleState struct {
	X  float32 `json:"x"`
	Y  float32 `json:"y"`
	Z  float32 `json:"z"`
	VX float32 `json:"vel_x"`
	VY float32 `json:"vel_y"`
	VZ float32 `json:"vel_z"`

	Density  float32 `json:"density"`
	Mass     float32 `json:"mass"`
	Material int32   `json:"material"`
	Age      float32 `json:"age"`
}

// TakeSnapshot captures up to limit particles from the simulator
// (0 = all active).
func TakeSnapshot(s *sim.Simulator, step, limit int) Snapshot {
	n := s.NumParticles()
	if limit > 0 && limit < n {
		n = limit
	}

	size := s.GridSize()
	snap := Snapshot{
		Version:   SnapshotVersion,
		GridW:     size.X(),
		GridH:     size.Y(),
		GridD:     size.Z(),
		Step:      step,
		Particles: make([]ParticleState, n),
	}
	for i := 0; i < n; i++ {
		p := s.ReadParticle(i)
		snap.Particles[i] = ParticleState{
			X: p.Position.X(), Y: p.Position.Y(), Z: p.Position.Z(),
			VX: p.Velocity.X(), VY: p.Velocity.Y(), VZ: p.Velocity.Z(),
			Density:  p.Density,
			Mass:     p.Mass,
			Material: int32(p.Material),
			Age:      p.Age,
		}
	}
	return snap
}

// Save writes the snapshot as JSON.
func (s Snapshot) Save(path string) error {
	if !strings.HasSuffix(path, ".json") {
		path += ".json"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("reading snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return snap, fmt.Errorf("snapshot version %d, want %d", snap.Version, SnapshotVersion)
	}
	return snap, nil
}
