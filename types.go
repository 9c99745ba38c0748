package cameracapture

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"time"
)

// Resolution is a frame size in pixels. Comparable, usable as a map key.
type Resolution struct {
	Width  uint32
	Height uint32
}

// NewResolution returns a Resolution of width x height
func NewResolution(width, height uint32) Resolution {
	return Resolution{Width: width, Height: height}
}

// String returns the resolution as "WxH"
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Less orders resolutions by width, then height
func (r Resolution) Less(o Resolution) bool {
	if r.Width != o.Width {
		return r.Width < o.Width
	}
	return r.Height < o.Height
}

// ParseResolution parses "WxH" (e.g. "1280x720")
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Resolution{}, fmt.Errorf("camera-capture: invalid resolution %q (want WxH)", s)
	}
	width, err := strconv.ParseUint(w, 10, 32)
	if err != nil {
		return Resolution{}, fmt.Errorf("camera-capture: invalid resolution width %q: %w", w, err)
	}
	height, err := strconv.ParseUint(h, 10, 32)
	if err != nil {
		return Resolution{}, fmt.Errorf("camera-capture: invalid resolution height %q: %w", h, err)
	}
	return Resolution{Width: uint32(width), Height: uint32(height)}, nil
}

// FrameFormat is the source pixel encoding requested from the device
type FrameFormat int

const (
	// FormatMJPEG is motion JPEG (compressed)
	FormatMJPEG FrameFormat = iota
	// FormatYUYV is packed YUV 4:2:2
	FormatYUYV
	// FormatRGB is raw 24-bit RGB
	FormatRGB
)

// String returns a human-readable string representation of the format
func (f FrameFormat) String() string {
	switch f {
	case FormatMJPEG:
		return "MJPEG"
	case FormatYUYV:
		return "YUYV"
	case FormatRGB:
		return "RGB"
	default:
		return fmt.Sprintf("FrameFormat(%d)", int(f))
	}
}

// ParseFrameFormat parses a format name (case-insensitive). "YUY2" is
// accepted as an alias of YUYV.
func ParseFrameFormat(s string) (FrameFormat, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MJPEG", "MJPG", "JPEG":
		return FormatMJPEG, nil
	case "YUYV", "YUY2":
		return FormatYUYV, nil
	case "RGB", "RGB3":
		return FormatRGB, nil
	default:
		return 0, fmt.Errorf("camera-capture: unknown frame format %q", s)
	}
}

// CameraFormat is what the pipeline is configured to produce. Value type.
type CameraFormat struct {
	Resolution Resolution
	Format     FrameFormat
	FrameRate  uint32
}

// NewCameraFormat returns a CameraFormat
func NewCameraFormat(res Resolution, format FrameFormat, fps uint32) CameraFormat {
	return CameraFormat{Resolution: res, Format: format, FrameRate: fps}
}

// DefaultCameraFormat is 640x480 @ 15 FPS, MJPEG
func DefaultCameraFormat() CameraFormat {
	return CameraFormat{
		Resolution: Resolution{Width: 640, Height: 480},
		Format:     FormatMJPEG,
		FrameRate:  15,
	}
}

// Width in pixels
func (f CameraFormat) Width() uint32 { return f.Resolution.Width }

// Height in pixels
func (f CameraFormat) Height() uint32 { return f.Resolution.Height }

// WithResolution returns a copy with the resolution replaced
func (f CameraFormat) WithResolution(res Resolution) CameraFormat {
	f.Resolution = res
	return f
}

// WithFrameRate returns a copy with the frame rate replaced
func (f CameraFormat) WithFrameRate(fps uint32) CameraFormat {
	f.FrameRate = fps
	return f
}

// WithFormat returns a copy with the encoding replaced
func (f CameraFormat) WithFormat(format FrameFormat) CameraFormat {
	f.Format = format
	return f
}

// Validate checks width, height and frame rate are positive and the
// encoding is known
func (f CameraFormat) Validate() error {
	if f.Resolution.Width == 0 || f.Resolution.Height == 0 {
		return newError(KindInvalidFormat, "validate format",
			fmt.Errorf("resolution %v must be non-zero", f.Resolution))
	}
	if f.FrameRate == 0 {
		return newError(KindInvalidFormat, "validate format",
			fmt.Errorf("frame rate must be > 0"))
	}
	if _, ok := specFor(f.Format); !ok {
		return newError(KindInvalidFormat, "validate format",
			fmt.Errorf("unknown encoding %v", f.Format))
	}
	return nil
}

// String returns e.g. "640x480@15 MJPEG"
func (f CameraFormat) String() string {
	return fmt.Sprintf("%v@%d %v", f.Resolution, f.FrameRate, f.Format)
}

// CameraInfo is a snapshot of the device taken at open time
type CameraInfo struct {
	DisplayName string
	DeviceClass string
	Description string
	Index       int
}

// Frame is one decoded RGB888 frame with metadata
type Frame struct {
	// Seq is the monotonic sequence number within one Camera
	Seq uint64
	// Timestamp is when the frame was decoded
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data is interleaved RGB, exactly Width*Height*3 bytes
	Data []byte
	// Format is the source encoding the frame was decoded from
	Format FrameFormat
	// TraceID is a unique identifier for distributed tracing
	TraceID string
}

// Image wraps the frame data as an image.Image without copying
func (f Frame) Image() *RGBImage {
	return &RGBImage{
		Pix:    f.Data,
		Stride: f.Width * 3,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// RGBImage is an in-memory image of packed 8-bit RGB pixels
type RGBImage struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

var _ image.Image = (*RGBImage)(nil)

// ColorModel implements image.Image
func (p *RGBImage) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image
func (p *RGBImage) Bounds() image.Rectangle { return p.Rect }

// At implements image.Image
func (p *RGBImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 0xff}
}

// PixOffset returns the index of the first byte of pixel (x, y)
func (p *RGBImage) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

// StreamState is the lifecycle state of the capture pipeline
type StreamState int

const (
	// StateClosed means no pipeline exists
	StateClosed StreamState = iota
	// StatePlaying means the pipeline is producing frames
	StatePlaying
	// StateStopped means the pipeline is built but not producing
	StateStopped
)

// String returns a human-readable string representation of the state
func (s StreamState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// CaptureStats contains current capture statistics
type CaptureStats struct {
	// FramesDecoded is the total number of frames decoded and queued
	FramesDecoded uint64
	// DecodeFailures is the number of buffers that failed to decode
	DecodeFailures uint64
	// FramesDropped is the number of frames evicted by a bounded queue
	FramesDropped uint64
	// FramesPending is the number of decoded frames waiting to be pulled
	FramesPending int
	// BytesRead is the total number of raw bytes received from the sink
	BytesRead uint64
	// Reconfigurations counts pipeline rebuilds after open
	Reconfigurations uint64
	// FPSReal is frames decoded since the stream last started playing divided
	// by the time since then
	FPSReal float64
	// State is the current stream state
	State StreamState
	// Format is the negotiated camera format
	Format CameraFormat
}

// WarmupStats contains statistics collected during the warm-up phase
type WarmupStats struct {
	// FramesReceived is the number of frames pulled during warm-up
	FramesReceived int
	// Duration is the actual warm-up duration
	Duration time.Duration
	// FPSMean is the mean FPS across all frames
	FPSMean float64
	// FPSStdDev is the standard deviation of instantaneous FPS
	FPSStdDev float64
	// FPSMin is the minimum instantaneous FPS
	FPSMin float64
	// FPSMax is the maximum instantaneous FPS
	FPSMax float64
	// JitterMean is the mean deviation from the expected inter-frame interval (seconds)
	JitterMean float64
	// IsStable is true if FPS stddev < 15% of mean and jitter < 20% of the interval
	IsStable bool
	// TargetFPS is the negotiated frame rate
	TargetFPS float64
	// MeetsTarget is true if FPSMean is within 25% of TargetFPS
	MeetsTarget bool
}
