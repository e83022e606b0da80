package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollectorAggregates(t *testing.T) {
	p := NewPerfCollector(4)

	for i := 0; i < 4; i++ {
		p.StartStep()
		p.RecordPhase(PhaseP2G1, 2*time.Millisecond)
		p.RecordPhase(PhaseG2P, 6*time.Millisecond)
		p.EndStep()
	}

	stats := p.Stats()
	if stats.PhaseAvg[PhaseP2G1] != 2*time.Millisecond {
		t.Errorf("p2g1 avg = %v, want 2ms", stats.PhaseAvg[PhaseP2G1])
	}
	if stats.PhaseAvg[PhaseG2P] != 6*time.Millisecond {
		t.Errorf("g2p avg = %v, want 6ms", stats.PhaseAvg[PhaseG2P])
	}

	order := stats.SortedPhases()
	if len(order) != 2 || order[0] != PhaseG2P {
		t.Errorf("SortedPhases = %v, want g2p first", order)
	}
}

func TestPerfCollectorRollingWindow(t *testing.T) {
	p := NewPerfCollector(2)
	for i := 0; i < 5; i++ {
		p.StartStep()
		p.RecordPhase(PhaseP2G1, time.Duration(i)*time.Millisecond)
		p.EndStep()
	}
	// Only the last two samples (3ms, 4ms) remain in the window.
	stats := p.Stats()
	want := 3500 * time.Microsecond
	if stats.PhaseAvg[PhaseP2G1] != want {
		t.Errorf("rolling avg = %v, want %v", stats.PhaseAvg[PhaseP2G1], want)
	}
}

func TestPerfStatsEmpty(t *testing.T) {
	p := NewPerfCollector(8)
	stats := p.Stats()
	if stats.AvgStepDuration != 0 || stats.StepsPerSecond != 0 {
		t.Error("empty collector should aggregate to zeros")
	}
}

func TestPerfToCSV(t *testing.T) {
	p := NewPerfCollector(1)
	p.StartStep()
	p.RecordPhase(PhaseClearGrid, time.Millisecond)
	p.RecordPhase(PhaseP2G1, 2*time.Millisecond)
	p.RecordPhase(PhaseP2G2, 3*time.Millisecond)
	p.RecordPhase(PhaseUpdateGrid, 4*time.Millisecond)
	p.RecordPhase(PhaseG2P, 5*time.Millisecond)
	p.EndStep()

	row := p.Stats().ToCSV(120)
	if row.WindowEnd != 120 {
		t.Errorf("WindowEnd = %d", row.WindowEnd)
	}
	if row.ClearGridUs != 1000 || row.P2G1Us != 2000 || row.P2G2Us != 3000 ||
		row.UpdateGridUs != 4000 || row.G2PUs != 5000 {
		t.Errorf("phase columns wrong: %+v", row)
	}
}
