package telemetry

import (
	"math"
	"testing"
)

func TestComputeDensityStats(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	mean, std, p10, p50, p90 := ComputeDensityStats(values)

	if math.Abs(mean-0.55) > 0.001 {
		t.Errorf("mean = %v, want 0.55", mean)
	}
	if std <= 0 {
		t.Errorf("std = %v, want > 0", std)
	}
	if p10 > p50 || p50 > p90 {
		t.Errorf("percentiles not ordered: %v %v %v", p10, p50, p90)
	}
	if p10 < 0.1 || p90 > 1.0 {
		t.Errorf("percentiles outside data range: %v %v", p10, p90)
	}
}

func TestComputeDensityStatsEmpty(t *testing.T) {
	mean, std, p10, p50, p90 := ComputeDensityStats(nil)
	if mean != 0 || std != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty input should return all zeros")
	}
}

func TestComputeDensityStatsSingle(t *testing.T) {
	mean, std, p10, p50, p90 := ComputeDensityStats([]float64{2.5})
	if mean != 2.5 || p10 != 2.5 || p50 != 2.5 || p90 != 2.5 {
		t.Errorf("single value: mean=%v p10=%v p50=%v p90=%v, want all 2.5", mean, p10, p50, p90)
	}
	if std != 0 {
		t.Errorf("std = %v for a single sample, want 0", std)
	}
}

func TestCollectorWindowing(t *testing.T) {
	c := NewCollector(1.0, 0.1) // 10 steps per window
	if c.WindowDurationSteps() != 10 {
		t.Fatalf("WindowDurationSteps = %d, want 10", c.WindowDurationSteps())
	}
	if c.ShouldFlush(9) {
		t.Error("should not flush before the window closes")
	}
	if !c.ShouldFlush(10) {
		t.Error("should flush at the window boundary")
	}
}

func TestCollectorTinyWindowClampsToOneStep(t *testing.T) {
	c := NewCollector(0.001, 0.1)
	if c.WindowDurationSteps() != 1 {
		t.Errorf("WindowDurationSteps = %d, want 1", c.WindowDurationSteps())
	}
}
