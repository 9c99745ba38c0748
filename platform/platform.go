// Package platform defines the narrow contract camera-capture needs from the
// host media subsystem: a device registry and a pipeline engine.
//
// The GStreamer implementation lives in internal/gstreamer. Tests and
// alternative backends provide their own implementations.
package platform

import (
	"errors"
	"time"
)

// ErrStateTimeout is returned by Pipeline.QueryState when the query did not
// settle within the timeout. The returned states are still meaningful.
var ErrStateTimeout = errors.New("platform: state query timed out")

// CapabilityRecord is one platform-reported media configuration.
//
// Fields holds serialized attribute values keyed by name ("width", "height",
// "format", "framerate"). The framerate value keeps the raw list or range
// text, e.g. "{ 30/1, 15/2 }".
type CapabilityRecord struct {
	MediaType string
	Fields    map[string]string
}

// Field returns the named attribute and whether it was present.
func (r CapabilityRecord) Field(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Device is a snapshot of one video source known to the registry.
type Device struct {
	DisplayName  string
	DeviceClass  string
	Description  string
	Capabilities []CapabilityRecord
}

// DeviceRegistry enumerates video sources by index.
type DeviceRegistry interface {
	Devices() ([]Device, error)
}

// PixelLayout tags the byte layout of an arrived buffer.
type PixelLayout int

const (
	// LayoutUnknown is any layout the decoder does not understand
	LayoutUnknown PixelLayout = iota
	// LayoutYUY2 is packed YUV 4:2:2 (Y0 U Y1 V)
	LayoutYUY2
	// LayoutJPEG is a compressed JPEG bitstream
	LayoutJPEG
	// LayoutRGB is packed 8-bit RGB
	LayoutRGB
	// LayoutRGBA is packed 8-bit RGB with a trailing alpha (or padding) byte
	LayoutRGBA
)

// String returns a human-readable name of the layout
func (l PixelLayout) String() string {
	switch l {
	case LayoutYUY2:
		return "YUY2"
	case LayoutJPEG:
		return "JPEG"
	case LayoutRGB:
		return "RGB"
	case LayoutRGBA:
		return "RGBA"
	default:
		return "unknown"
	}
}

// Sample is one buffer delivered by the pipeline sink.
type Sample struct {
	Data   []byte
	Width  int
	Height int
	Layout PixelLayout
}

// SampleHandler is invoked once per arrived buffer on the engine's own
// streaming thread. A returned error fails that frame only.
type SampleHandler func(Sample) error

// Caps are the media constraints placed between source and sink.
type Caps struct {
	MediaType string
	FormatTag string // empty for compressed media types
	Width     uint32
	Height    uint32
	FrameRate uint32
}

// PipelineSpec is the declarative description of a capture pipeline.
type PipelineSpec struct {
	DeviceIndex int
	Caps        Caps
	SinkName    string
}

// State is a pipeline state as seen by the core.
type State int

const (
	// StateNull means no resources are held
	StateNull State = iota
	// StateReady means the pipeline is built but not producing
	StateReady
	// StatePlaying means buffers are flowing
	StatePlaying
)

// String returns a human-readable name of the state
func (s State) String() string {
	switch s {
	case StateNull:
		return "null"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// MessageKind classifies pipeline bus messages.
type MessageKind int

const (
	MessageOther MessageKind = iota
	MessageEOS
	MessageError
	MessageStateChanged
)

// Message is a diagnostic event drained from the pipeline bus.
type Message struct {
	Kind  MessageKind
	Text  string
	Debug string
	// Category is the engine's classification of an error message
	// ("device", "negotiation", "resource", "unknown")
	Category string
}

// Pipeline is a runnable capture pipeline.
type Pipeline interface {
	// SetState moves the pipeline to the given state.
	SetState(State) error
	// QueryState reports the current and pending state, waiting at most timeout.
	QueryState(timeout time.Duration) (from, to State, err error)
	// Poll returns the next bus message without blocking.
	Poll() (Message, bool)
	// Close forces the pipeline to null and releases it.
	Close() error
}

// Engine builds pipelines from declarative specs.
type Engine interface {
	Build(spec PipelineSpec, handler SampleHandler) (Pipeline, error)
}
