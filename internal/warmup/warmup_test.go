package warmup

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"testing/quick"
	"time"
)

// generateFrameTimes returns numFrames timestamps at targetFPS, each interval
// offset by up to ±jitterFraction of the nominal interval
func generateFrameTimes(numFrames int, targetFPS float64, jitterFraction float64) []time.Time {
	if numFrames < 1 {
		return []time.Time{}
	}

	interval := 1.0 / targetFPS
	frameTimes := make([]time.Time, numFrames)
	frameTimes[0] = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rng := rand.New(rand.NewSource(42))
	for i := 1; i < numFrames; i++ {
		offset := (rng.Float64()*2 - 1) * jitterFraction * interval
		frameTimes[i] = frameTimes[i-1].Add(time.Duration((interval + offset) * float64(time.Second)))
	}
	return frameTimes
}

func nominalDuration(numFrames int, fps float64) time.Duration {
	return time.Duration(float64(numFrames) / fps * float64(time.Second))
}

// Property: FPS stddev < 15% of mean AND jitter < 20% of interval → Stable
func TestCalculate_StabilityThresholds(t *testing.T) {
	t.Run("stable stream", func(t *testing.T) {
		ts := generateFrameTimes(30, 1.0, 0.05)
		s := Calculate(ts, 30*time.Second)
		if !s.Stable {
			t.Errorf("expected stable stream (FPS stddev %.2f%%, jitter %.2f%%)",
				s.FPSStdDev/s.FPSMean*100, s.JitterMean*s.FPSMean*100)
		}
	})

	t.Run("perfect cadence", func(t *testing.T) {
		ts := generateFrameTimes(60, 30, 0)
		s := Calculate(ts, nominalDuration(60, 30))
		if !s.Stable {
			t.Errorf("expected stable stream, got %+v", s)
		}
		if math.Abs(s.FPSMean-30) > 0.01 {
			t.Errorf("FPSMean = %.3f, want 30", s.FPSMean)
		}
	})

	t.Run("unstable stream", func(t *testing.T) {
		ts := generateFrameTimes(30, 1.0, 0.8)
		s := Calculate(ts, 30*time.Second)
		if s.Stable {
			t.Errorf("expected unstable stream (FPS stddev %.2f%%, jitter %.2f%%)",
				s.FPSStdDev/s.FPSMean*100, s.JitterMean*s.FPSMean*100)
		}
	})
}

func TestCalculate_EdgeCases(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		frameTimes []time.Time
		duration   time.Duration
	}{
		{"zero frames", []time.Time{}, time.Second},
		{"one frame", []time.Time{base}, time.Second},
		{"two frames", []time.Time{base, base.Add(time.Second)}, time.Second},
		{"identical timestamps", []time.Time{base, base, base}, time.Second},
		{"zero duration", []time.Time{base, base.Add(time.Second)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Calculate(tt.frameTimes, tt.duration)

			if s.Frames != len(tt.frameTimes) {
				t.Errorf("Frames = %d, want %d", s.Frames, len(tt.frameTimes))
			}
			if s.FPSStdDev < 0 || s.JitterMean < 0 {
				t.Errorf("negative spread: stddev %.3f, jitter %.3f", s.FPSStdDev, s.JitterMean)
			}
			if s.Stable {
				t.Errorf("Stable = true for %s", tt.name)
			}
		})
	}
}

// Property: FPSMin <= FPSMax, both bounded by the jitter envelope, and the
// mean matches frames over duration
func TestCalculate_Bounds(t *testing.T) {
	const jitter = 0.1
	f := func(fps float64, numFrames uint8) bool {
		if fps < 0.1 || fps > 60.0 {
			return true
		}
		if numFrames < 3 || numFrames > 100 {
			return true
		}

		ts := generateFrameTimes(int(numFrames), fps, jitter)
		s := Calculate(ts, nominalDuration(int(numFrames), fps))

		if s.FPSMin > s.FPSMax {
			t.Logf("FPSMin %.3f > FPSMax %.3f", s.FPSMin, s.FPSMax)
			return false
		}
		if s.FPSMin < fps/(1+jitter)*0.999 || s.FPSMax > fps/(1-jitter)*1.001 {
			t.Logf("rates [%.3f, %.3f] outside envelope of %.3f fps", s.FPSMin, s.FPSMax, fps)
			return false
		}
		if math.Abs(s.FPSMean-fps) > fps*0.001 {
			t.Logf("FPSMean %.3f, want %.3f", s.FPSMean, fps)
			return false
		}
		if s.FPSStdDev < 0 || s.JitterMean < 0 {
			return false
		}
		return true
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 200}); err != nil {
		t.Errorf("Property violated: %v", err)
	}
}

func TestMeetsTarget(t *testing.T) {
	tests := []struct {
		mean   float64
		target float64
		want   bool
	}{
		{30, 30, true},
		{23, 30, true},
		{22, 30, false},
		{37, 30, true},
		{38, 30, false},
		{15, 0, false},
	}
	for _, tt := range tests {
		if got := MeetsTarget(Stats{FPSMean: tt.mean}, tt.target); got != tt.want {
			t.Errorf("MeetsTarget(mean=%.0f, target=%.0f) = %v, want %v", tt.mean, tt.target, got, tt.want)
		}
	}
}

func tickingSource(interval time.Duration) NextFunc {
	return func(ctx context.Context) (time.Time, error) {
		select {
		case <-time.After(interval):
			return time.Now(), nil
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		}
	}
}

func TestMeasure(t *testing.T) {
	s, err := Measure(context.Background(), tickingSource(10*time.Millisecond), 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}
	if s.Frames < 5 {
		t.Errorf("Frames = %d, want at least 5", s.Frames)
	}
	if s.Duration < 200*time.Millisecond {
		t.Errorf("Duration = %v, want >= 200ms", s.Duration)
	}
	if s.FPSMean <= 0 {
		t.Errorf("FPSMean = %.2f, want > 0", s.FPSMean)
	}
}

func TestMeasure_NotEnoughFrames(t *testing.T) {
	_, err := Measure(context.Background(), tickingSource(time.Hour), 30*time.Millisecond)
	if err == nil {
		t.Fatal("Measure() error = nil, want not enough frames")
	}
}

func TestMeasure_PullError(t *testing.T) {
	boom := errors.New("device unplugged")
	calls := 0
	next := func(ctx context.Context) (time.Time, error) {
		calls++
		if calls > 3 {
			return time.Time{}, boom
		}
		return time.Now(), nil
	}

	_, err := Measure(context.Background(), next, time.Second)
	if !errors.Is(err, boom) {
		t.Errorf("Measure() error = %v, want %v", err, boom)
	}
}

func TestMeasure_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := Measure(ctx, tickingSource(5*time.Millisecond), time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Measure() error = %v, want context.Canceled", err)
	}
}

func BenchmarkCalculate(b *testing.B) {
	frameTimes := generateFrameTimes(100, 1.0, 0.1)
	duration := 100 * time.Second

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Calculate(frameTimes, duration)
	}
}
