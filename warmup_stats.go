package cameracapture

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/internal/warmup"
)

// CalculateFPSStats computes warm-up statistics from frame timestamps
//
// This function:
//  1. Calculates mean FPS (frames over total duration)
//  2. Calculates instantaneous FPS for each frame interval
//  3. Finds min/max instantaneous FPS and their standard deviation
//  4. Calculates mean jitter against the expected interval
//  5. Determines stability (stddev < 15% of mean AND jitter < 20%)
//
// targetFPS is the negotiated frame rate; MeetsTarget is set when the mean
// is within 25% of it.
//
// Example: 30 FPS mean → stable if stddev < 4.5 AND jitter < 0.007s
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration, targetFPS float64) *WarmupStats {
	return toWarmupStats(warmup.Calculate(frameTimes, totalDuration), targetFPS)
}

func toWarmupStats(s warmup.Stats, targetFPS float64) *WarmupStats {
	return &WarmupStats{
		FramesReceived: s.Frames,
		Duration:       s.Duration,
		FPSMean:        s.FPSMean,
		FPSStdDev:      s.FPSStdDev,
		FPSMin:         s.FPSMin,
		FPSMax:         s.FPSMax,
		JitterMean:     s.JitterMean,
		IsStable:       s.Stable,
		TargetFPS:      targetFPS,
		MeetsTarget:    warmup.MeetsTarget(s, targetFPS),
	}
}
