package cameracapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/internal/gstreamer"
	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/internal/reconnect"
	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/internal/warmup"
	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/platform"
)

// ErrClosed is returned by every operation after Camera.Close
var ErrClosed = errors.New("camera closed")

// Option configures a Camera at open time
type Option func(*options)

type options struct {
	queue          QueueOptions
	validateFormat bool
}

func defaultOptions() options {
	return options{validateFormat: true}
}

// WithQueue bounds the frame queue (default: unbounded)
func WithQueue(q QueueOptions) Option {
	return func(o *options) { o.queue = q }
}

// WithFormatValidation toggles checking requested formats against the
// device's advertised capabilities (default: enabled)
func WithFormatValidation(enabled bool) Option {
	return func(o *options) { o.validateFormat = enabled }
}

// RetryConfig controls OpenStreamWithRetry backoff
type RetryConfig struct {
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// DefaultRetryConfig returns 5 retries from 500ms up to 8s
func DefaultRetryConfig() RetryConfig {
	d := reconnect.DefaultConfig()
	return RetryConfig{MaxRetries: d.MaxRetries, RetryDelay: d.RetryDelay, MaxRetryDelay: d.MaxRetryDelay}
}

// captureCounters is shared with the sample handler. It must not reference
// the Camera, so an abandoned Camera stays collectable.
type captureCounters struct {
	seq            atomic.Uint64
	framesDecoded  atomic.Uint64
	decodeFailures atomic.Uint64
	bytesRead      atomic.Uint64
}

// Camera is one opened capture device. It implements CaptureProvider.
//
// All methods are safe for concurrent use. Frame pulls block outside the
// internal lock, so StopStream, SetCameraFormat and Close interrupt them.
type Camera struct {
	mu      sync.Mutex
	info    CameraInfo
	caps    []platform.CapabilityRecord
	machine *streamMachine
	opts    options
	closed  bool

	counters  *captureCounters
	reconfigs atomic.Uint64

	// openedAt and decodedAtOpen mark the start of the current playing
	// period; FPSReal counts only frames decoded since then
	openedAt      time.Time
	decodedAtOpen uint64
}

var _ CaptureProvider = (*Camera)(nil)

// Open opens the device at index through GStreamer. A nil format selects
// DefaultCameraFormat (640x480 @ 15 FPS, MJPEG).
//
// The pipeline is built but not started; call OpenStream.
func Open(index int, format *CameraFormat, opts ...Option) (*Camera, error) {
	engine, err := gstreamer.NewEngine()
	if err != nil {
		return nil, newError(KindStreamOpenFailed, "open", err)
	}
	return OpenWith(engine, gstreamer.NewRegistry(), index, format, opts...)
}

// OpenWithResolution opens an MJPEG stream at width x height @ fps
func OpenWithResolution(index int, width, height, fps uint32, opts ...Option) (*Camera, error) {
	f := NewCameraFormat(NewResolution(width, height), FormatMJPEG, fps)
	return Open(index, &f, opts...)
}

// OpenWith opens the device at index using the given platform collaborators
func OpenWith(engine platform.Engine, registry platform.DeviceRegistry, index int, format *CameraFormat, opts ...Option) (*Camera, error) {
	const op = "open"

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cf := DefaultCameraFormat()
	if format != nil {
		cf = *format
	}
	if err := cf.Validate(); err != nil {
		return nil, err
	}

	devices, err := registry.Devices()
	if err != nil {
		return nil, newError(KindDeviceQueryFailed, op, err)
	}
	if index < 0 || index >= len(devices) {
		return nil, newError(KindDeviceNotFound, op,
			fmt.Errorf("no device at index %d (%d available)", index, len(devices)))
	}
	dev := devices[index]

	c := &Camera{
		info: CameraInfo{
			DisplayName: dev.DisplayName,
			DeviceClass: dev.DeviceClass,
			Description: dev.Description,
			Index:       index,
		},
		caps:     dev.Capabilities,
		opts:     o,
		counters: &captureCounters{},
	}

	if err := c.checkFormat(cf); err != nil {
		return nil, err
	}

	c.machine = newStreamMachine(engine, index, cf, o.queue, newSampleHandler(c.counters))
	p, target, err := c.machine.build(cf)
	if err != nil {
		return nil, err
	}
	c.machine.install(p, target, cf)

	runtime.SetFinalizer(c, finalizeCamera)

	slog.Info("camera-capture: device opened",
		"index", index,
		"name", dev.DisplayName,
		"class", dev.DeviceClass,
		"format", cf.String(),
		"queue_capacity", o.queue.Capacity,
		"queue_overflow", o.queue.Overflow.String(),
	)
	return c, nil
}

// finalizeCamera is best-effort teardown for a Camera that was never closed
func finalizeCamera(c *Camera) {
	if err := c.Close(); err != nil {
		slog.Error("camera-capture: teardown of unreferenced camera failed",
			"error", err,
			"index", c.info.Index,
		)
	}
}

// newSampleHandler decodes each arrived buffer into the target's channel
func newSampleHandler(counters *captureCounters) handlerFactory {
	return func(target *sinkTarget, format CameraFormat) platform.SampleHandler {
		return func(s platform.Sample) error {
			counters.bytesRead.Add(uint64(len(s.Data)))

			width, height := s.Width, s.Height
			if width <= 0 || height <= 0 {
				width, height = int(format.Width()), int(format.Height())
			}

			data, err := Decode(s.Data, width, height, s.Layout)
			if err != nil {
				counters.decodeFailures.Add(1)
				slog.Warn("camera-capture: dropping undecodable frame",
					"error", err,
					"layout", s.Layout.String(),
					"size_bytes", len(s.Data),
				)
				return err
			}

			frame := Frame{
				Seq:       counters.seq.Add(1),
				Timestamp: time.Now(),
				Width:     width,
				Height:    height,
				Data:      data,
				Format:    format.Format,
				TraceID:   uuid.New().String(),
			}

			if err := target.channel().Send(frame); err != nil {
				slog.Debug("camera-capture: frame discarded, stream stopped",
					"seq", frame.Seq,
					"trace_id", frame.TraceID,
				)
				return nil
			}
			counters.framesDecoded.Add(1)

			slog.Debug("camera-capture: frame queued",
				"seq", frame.Seq,
				"size_bytes", len(data),
				"trace_id", frame.TraceID,
			)
			return nil
		}
	}
}

// checkFormat validates f against the advertised capabilities. Devices that
// advertise nothing are left to negotiate in the pipeline.
func (c *Camera) checkFormat(f CameraFormat) error {
	const op = "check format"

	if !c.opts.validateFormat || len(c.caps) == 0 {
		return nil
	}

	catalog, err := CompatibleResolutions(c.caps, f.Format)
	if err != nil {
		return err
	}
	if len(catalog) == 0 {
		return newError(KindUnsupportedOperation, op,
			fmt.Errorf("device does not advertise %v", f.Format))
	}
	if !catalog.Supports(f.Resolution, f.FrameRate) {
		return newError(KindInvalidFormat, op,
			fmt.Errorf("%v not advertised by device", f))
	}
	return nil
}

// Info returns the device snapshot taken at open time
func (c *Camera) Info() CameraInfo {
	return c.info
}

// CameraFormat returns the current format
func (c *Camera) CameraFormat() CameraFormat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.format
}

// SetCameraFormat rebuilds the pipeline for f. A playing stream is restarted
// with the new format; frames of the old format are discarded.
func (c *Camera) SetCameraFormat(f CameraFormat) error {
	if err := f.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return newError(KindUnsupportedOperation, "set format", ErrClosed)
	}
	if err := c.checkFormat(f); err != nil {
		return err
	}

	old := c.machine.format
	if err := c.machine.reconfigure(f); err != nil {
		return err
	}
	c.reconfigs.Add(1)

	slog.Info("camera-capture: format changed",
		"index", c.info.Index,
		"old_format", old.String(),
		"new_format", f.String(),
	)
	return nil
}

// Resolution returns the current resolution
func (c *Camera) Resolution() Resolution {
	return c.CameraFormat().Resolution
}

// SetResolution changes only the resolution
func (c *Camera) SetResolution(res Resolution) error {
	return c.SetCameraFormat(c.CameraFormat().WithResolution(res))
}

// FrameRate returns the current frame rate
func (c *Camera) FrameRate() uint32 {
	return c.CameraFormat().FrameRate
}

// SetFrameRate changes only the frame rate
func (c *Camera) SetFrameRate(fps uint32) error {
	return c.SetCameraFormat(c.CameraFormat().WithFrameRate(fps))
}

// FrameFormat returns the current source encoding
func (c *Camera) FrameFormat() FrameFormat {
	return c.CameraFormat().Format
}

// SetFrameFormat is not supported: the pipeline does not renegotiate the
// encoding in place. Use SetCameraFormat.
func (c *Camera) SetFrameFormat(FrameFormat) error {
	return newError(KindUnsupportedOperation, "set frame format",
		fmt.Errorf("use SetCameraFormat to change the encoding"))
}

// CompatibleFormats lists the encodings the device advertises
func (c *Camera) CompatibleFormats() ([]FrameFormat, error) {
	if len(c.caps) == 0 {
		return nil, newError(KindDeviceQueryFailed, "compatible formats", fmt.Errorf("no device caps"))
	}
	return CompatibleFormats(c.caps), nil
}

// CompatibleResolutions lists the resolutions and whole frame rates the
// device advertises for format
func (c *Camera) CompatibleResolutions(format FrameFormat) (CapabilityCatalog, error) {
	if len(c.caps) == 0 {
		return nil, newError(KindDeviceQueryFailed, "compatible resolutions", fmt.Errorf("no device caps"))
	}
	return CompatibleResolutions(c.caps, format)
}

// OpenStream starts the pipeline
func (c *Camera) OpenStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return newError(KindStreamOpenFailed, "open stream", ErrClosed)
	}
	wasPlaying := c.machine.state == StatePlaying
	if err := c.machine.open(); err != nil {
		return err
	}
	if !wasPlaying {
		c.openedAt = time.Now()
		c.decodedAtOpen = c.counters.framesDecoded.Load()
	}
	return nil
}

// OpenStreamWithRetry calls OpenStream with exponential backoff while it
// fails with ErrStreamOpenFailed (e.g. the device is busy)
func (c *Camera) OpenStreamWithRetry(ctx context.Context, cfg RetryConfig) error {
	_, err := reconnect.Run(ctx,
		func(context.Context) error { return c.OpenStream() },
		reconnect.Config{MaxRetries: cfg.MaxRetries, RetryDelay: cfg.RetryDelay, MaxRetryDelay: cfg.MaxRetryDelay},
		func(err error) bool {
			return errors.Is(err, ErrStreamOpenFailed) && !errors.Is(err, ErrClosed)
		},
	)
	return err
}

// StopStream halts the pipeline. Pending and future pulls fail until the
// stream is reopened. Stopping a stopped stream is a no-op.
func (c *Camera) StopStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	return c.machine.stop()
}

// IsStreamOpen queries the pipeline state without blocking for long
func (c *Camera) IsStreamOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	return c.machine.isOpen()
}

// State returns the lifecycle state
func (c *Camera) State() StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.state
}

// Frame pulls the next decoded frame, blocking until one is available.
//
// Before waiting, the pipeline bus is drained: end-of-stream or a pipeline
// error fails the pull with ErrCaptureFailed.
func (c *Camera) Frame(ctx context.Context) (Frame, error) {
	const op = "frame"

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Frame{}, newError(KindCaptureFailed, op, ErrClosed)
	}
	if c.machine.state != StatePlaying {
		c.mu.Unlock()
		return Frame{}, newError(KindCaptureFailed, op, ErrStreamNotOpen)
	}
	if err := c.machine.drainBus(); err != nil {
		c.mu.Unlock()
		return Frame{}, newError(KindCaptureFailed, op, err)
	}
	ch := c.machine.target.channel()
	generation := c.machine.generation
	c.mu.Unlock()

	frame, err := ch.Receive(ctx)
	if err != nil {
		if errors.Is(err, ErrChannelClosed) {
			c.mu.Lock()
			if c.machine.generation != generation {
				err = fmt.Errorf("%w: %w", ErrReconfiguring, err)
			}
			c.mu.Unlock()
		}
		return Frame{}, newError(KindCaptureFailed, op, err)
	}
	return frame, nil
}

// FrameRaw pulls the next frame's RGB bytes
func (c *Camera) FrameRaw(ctx context.Context) ([]byte, error) {
	f, err := c.Frame(ctx)
	if err != nil {
		return nil, err
	}
	return f.Data, nil
}

// Image pulls the next frame as an image.Image
func (c *Camera) Image(ctx context.Context) (*RGBImage, error) {
	f, err := c.Frame(ctx)
	if err != nil {
		return nil, err
	}
	return f.Image(), nil
}

// Warmup pulls frames for duration and reports FPS stability against the
// negotiated frame rate. The stream must be open.
func (c *Camera) Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error) {
	target := float64(c.FrameRate())

	slog.Info("camera-capture: starting warmup",
		"duration", duration,
		"target_fps", target,
	)

	s, err := warmup.Measure(ctx, func(ctx context.Context) (time.Time, error) {
		f, err := c.Frame(ctx)
		return f.Timestamp, err
	}, duration)
	if err != nil {
		return nil, err
	}
	return toWarmupStats(s, target), nil
}

// Stats returns current capture statistics
func (c *Camera) Stats() CaptureStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	decoded := c.counters.framesDecoded.Load()
	stats := CaptureStats{
		FramesDecoded:    decoded,
		DecodeFailures:   c.counters.decodeFailures.Load(),
		FramesDropped:    c.machine.dropped(),
		FramesPending:    c.machine.pending(),
		BytesRead:        c.counters.bytesRead.Load(),
		Reconfigurations: c.reconfigs.Load(),
		State:            c.machine.state,
		Format:           c.machine.format,
	}
	if !c.openedAt.IsZero() {
		if uptime := time.Since(c.openedAt).Seconds(); uptime > 0 {
			stats.FPSReal = float64(decoded-c.decodedAtOpen) / uptime
		}
	}
	return stats
}

// Close stops the stream and releases the pipeline. Safe to call more than
// once; only the first call can fail.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	runtime.SetFinalizer(c, nil)

	err := c.machine.close()
	if err != nil {
		slog.Error("camera-capture: failed to release pipeline", "error", err, "index", c.info.Index)
	}

	slog.Info("camera-capture: device closed",
		"index", c.info.Index,
		"frames_decoded", c.counters.framesDecoded.Load(),
		"decode_failures", c.counters.decodeFailures.Load(),
	)
	return err
}
