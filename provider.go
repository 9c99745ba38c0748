package cameracapture

import (
	"context"
	"time"
)

// CaptureProvider defines the contract for pull-based camera capture
//
// Implementations must guarantee:
//   - OpenStream() is idempotent while the stream is playing
//   - StopStream() is idempotent and interrupts pending pulls
//   - Frame() never returns a frame of a format other than CameraFormat()
//   - Stats() is thread-safe (can be called from any goroutine)
//   - Close() releases the device and reports, never panics on, failure
type CaptureProvider interface {
	// Info returns the device snapshot taken at open time.
	Info() CameraInfo

	// CameraFormat returns the format frames are currently captured in.
	CameraFormat() CameraFormat

	// SetCameraFormat rebuilds the capture pipeline for a new format.
	//
	// If the stream is playing it is stopped, rebuilt and restarted. Pulls
	// blocked during the change fail with ErrCaptureFailed wrapping
	// ErrReconfiguring; frames of the previous format are discarded.
	//
	// Returns an error if:
	//   - The format is invalid (ErrInvalidFormat)
	//   - The device does not advertise the format (ErrInvalidFormat,
	//     ErrUnsupportedOperation)
	//   - The new pipeline cannot be built (ErrStreamOpenFailed); the
	//     previous pipeline is kept, stopped
	//
	// Example:
	//   f := cameracapture.NewCameraFormat(
	//       cameracapture.NewResolution(1280, 720), cameracapture.FormatMJPEG, 30)
	//   if err := cam.SetCameraFormat(f); err != nil {
	//       log.Printf("format change failed: %v", err)
	//   }
	SetCameraFormat(f CameraFormat) error

	// CompatibleFormats lists the encodings the device advertises.
	CompatibleFormats() ([]FrameFormat, error)

	// CompatibleResolutions lists the advertised resolutions and their
	// whole frame rates for one encoding.
	CompatibleResolutions(format FrameFormat) (CapabilityCatalog, error)

	// OpenStream starts frame production.
	//
	// Frames arrive asynchronously once the pipeline reaches PLAYING; pull
	// them with Frame. Reopening a stopped stream starts with an empty queue.
	OpenStream() error

	// StopStream halts frame production. Queued frames are discarded and
	// pending pulls fail with ErrCaptureFailed wrapping ErrChannelClosed.
	StopStream() error

	// IsStreamOpen queries the pipeline state (bounded by a short timeout).
	IsStreamOpen() bool

	// Frame blocks until the next decoded frame, ctx is done, or the stream
	// stops.
	//
	// Example:
	//   cam.OpenStream()
	//   for {
	//       frame, err := cam.Frame(ctx)
	//       if err != nil {
	//           break
	//       }
	//       // frame.Data is RGB, frame.Width x frame.Height pixels
	//   }
	Frame(ctx context.Context) (Frame, error)

	// Stats returns current capture statistics.
	Stats() CaptureStats

	// Warmup pulls frames for duration and reports FPS stability.
	//
	// Call it after OpenStream, before processing frames in production.
	// Returns an error if fewer than 2 frames arrive or a pull fails.
	Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error)

	// Close stops the stream and releases the device.
	Close() error
}
