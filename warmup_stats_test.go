package cameracapture

import (
	"math"
	"testing"
	"time"
)

func steadyFrameTimes(n int, fps float64) []time.Time {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	interval := time.Duration(float64(time.Second) / fps)
	ts := make([]time.Time, n)
	for i := range ts {
		ts[i] = base.Add(time.Duration(i) * interval)
	}
	return ts
}

func TestCalculateFPSStats_Target(t *testing.T) {
	tests := []struct {
		name       string
		fps        float64
		target     float64
		wantTarget bool
	}{
		{"on target", 30, 30, true},
		{"within tolerance", 25, 30, true},
		{"half rate", 15, 30, false},
		{"no target", 30, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := 60
			ts := steadyFrameTimes(frames, tt.fps)
			duration := time.Duration(float64(frames) / tt.fps * float64(time.Second))

			stats := CalculateFPSStats(ts, duration, tt.target)
			if stats.MeetsTarget != tt.wantTarget {
				t.Errorf("MeetsTarget = %v, want %v (mean %.2f)", stats.MeetsTarget, tt.wantTarget, stats.FPSMean)
			}
			if stats.TargetFPS != tt.target {
				t.Errorf("TargetFPS = %.1f, want %.1f", stats.TargetFPS, tt.target)
			}
			if !stats.IsStable {
				t.Errorf("steady cadence reported unstable: %+v", stats)
			}
			if stats.FramesReceived != frames || stats.Duration != duration {
				t.Errorf("FramesReceived=%d Duration=%v", stats.FramesReceived, stats.Duration)
			}
			if math.Abs(stats.FPSMean-tt.fps) > 0.01 {
				t.Errorf("FPSMean = %.3f, want %.1f", stats.FPSMean, tt.fps)
			}
		})
	}
}

func TestCalculateFPSStats_TooFewFrames(t *testing.T) {
	stats := CalculateFPSStats(nil, time.Second, 30)
	if stats == nil {
		t.Fatal("CalculateFPSStats returned nil")
	}
	if stats.IsStable || stats.MeetsTarget || stats.FramesReceived != 0 {
		t.Errorf("empty input gave %+v", stats)
	}
}
