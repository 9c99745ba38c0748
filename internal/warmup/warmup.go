// Package warmup measures frame-rate stability over a burst of pulled frames.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS stddev as a fraction of the mean
	fpsStabilityThreshold = 0.15
	// jitterStabilityThreshold is the maximum mean jitter as a fraction of the expected interval
	jitterStabilityThreshold = 0.20
	// targetTolerance is how far the mean may deviate from the negotiated rate
	targetTolerance = 0.25
)

// Stats summarizes frame arrival times
type Stats struct {
	Frames     int
	Duration   time.Duration
	FPSMean    float64
	FPSStdDev  float64
	FPSMin     float64
	FPSMax     float64
	JitterMean float64 // seconds
	Stable     bool
}

// NextFunc pulls one frame and returns its timestamp
type NextFunc func(ctx context.Context) (time.Time, error)

// Measure pulls frames through next until duration elapses and summarizes
// their timestamps. Fewer than two frames is an error.
func Measure(ctx context.Context, next NextFunc, duration time.Duration) (Stats, error) {
	start := time.Now()
	timestamps := make([]time.Time, 0, 64)

	measureCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	for {
		ts, err := next(measureCtx)
		if err != nil {
			if measureCtx.Err() != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return Stats{}, fmt.Errorf("warmup: pull failed after %d frames: %w", len(timestamps), err)
		}
		timestamps = append(timestamps, ts)
	}

	if len(timestamps) < 2 {
		return Stats{}, fmt.Errorf("warmup: not enough frames (got %d, need at least 2)", len(timestamps))
	}

	stats := Calculate(timestamps, time.Since(start))
	slog.Info("warmup: measurement complete",
		"frames", stats.Frames,
		"duration", stats.Duration,
		"fps_mean", fmt.Sprintf("%.2f", stats.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
		"jitter_mean", fmt.Sprintf("%.3fs", stats.JitterMean),
		"stable", stats.Stable,
	)
	return stats, nil
}

// Calculate computes FPS and jitter statistics. The mean rate is frames
// over total; instantaneous rates come from consecutive intervals.
func Calculate(timestamps []time.Time, total time.Duration) Stats {
	s := Stats{Frames: len(timestamps), Duration: total}
	if s.Frames == 0 || total <= 0 {
		return s
	}
	s.FPSMean = float64(s.Frames) / total.Seconds()

	var rates, intervals []float64
	for i := 1; i < len(timestamps); i++ {
		iv := timestamps[i].Sub(timestamps[i-1]).Seconds()
		intervals = append(intervals, iv)
		if iv > 0 {
			rates = append(rates, 1/iv)
		}
	}
	if len(rates) == 0 {
		return s
	}

	s.FPSMin, s.FPSMax = rates[0], rates[0]
	var sq float64
	for _, r := range rates {
		s.FPSMin = math.Min(s.FPSMin, r)
		s.FPSMax = math.Max(s.FPSMax, r)
		sq += (r - s.FPSMean) * (r - s.FPSMean)
	}
	s.FPSStdDev = math.Sqrt(sq / float64(len(rates)))

	expected := 1 / s.FPSMean
	var jitter float64
	for _, iv := range intervals {
		jitter += math.Abs(iv - expected)
	}
	s.JitterMean = jitter / float64(len(intervals))

	s.Stable = s.FPSStdDev < s.FPSMean*fpsStabilityThreshold &&
		s.JitterMean < expected*jitterStabilityThreshold
	return s
}

// MeetsTarget reports whether the mean rate is within 25% of target
func MeetsTarget(s Stats, target float64) bool {
	if target <= 0 {
		return false
	}
	return math.Abs(s.FPSMean-target) <= target*targetTolerance
}
