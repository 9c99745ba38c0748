package cameracapture

import (
	"errors"
	"fmt"
)

// ErrorKind classifies capture errors
type ErrorKind int

const (
	// KindDeviceNotFound means no device exists at the requested index
	KindDeviceNotFound ErrorKind = iota
	// KindDeviceQueryFailed means capability introspection failed or the descriptor is malformed
	KindDeviceQueryFailed
	// KindStreamOpenFailed means the pipeline could not enter its running state
	KindStreamOpenFailed
	// KindStreamStopFailed means the pipeline could not be halted or released
	KindStreamStopFailed
	// KindUnsupportedOperation means the platform pipeline cannot do what was asked
	KindUnsupportedOperation
	// KindCaptureFailed means a frame could not be pulled (EOS, bus error, closed channel)
	KindCaptureFailed
	// KindDecodeFailed means a frame buffer was malformed or of an unknown layout
	KindDecodeFailed
	// KindInvalidFormat means a CameraFormat or configuration value was rejected
	KindInvalidFormat
)

var (
	ErrDeviceNotFound       = errors.New("device not found")
	ErrDeviceQueryFailed    = errors.New("device query failed")
	ErrStreamOpenFailed     = errors.New("stream open failed")
	ErrStreamStopFailed     = errors.New("stream stop failed")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrCaptureFailed        = errors.New("capture failed")
	ErrDecodeFailed         = errors.New("decode failed")
	ErrInvalidFormat        = errors.New("invalid format")
)

var (
	// ErrChannelClosed is returned by FrameChannel after Close
	ErrChannelClosed = errors.New("frame channel closed")
	// ErrReconfiguring means a pull was interrupted by a format change
	ErrReconfiguring = errors.New("device is being reconfigured")
	// ErrStreamNotOpen means a pull was attempted while the stream is not playing
	ErrStreamNotOpen = errors.New("stream not open")
	// ErrEndOfStream means the pipeline posted end-of-stream
	ErrEndOfStream = errors.New("end of stream")
)

// sentinel returns the package-level error matching the kind
func (k ErrorKind) sentinel() error {
	switch k {
	case KindDeviceNotFound:
		return ErrDeviceNotFound
	case KindDeviceQueryFailed:
		return ErrDeviceQueryFailed
	case KindStreamOpenFailed:
		return ErrStreamOpenFailed
	case KindStreamStopFailed:
		return ErrStreamStopFailed
	case KindUnsupportedOperation:
		return ErrUnsupportedOperation
	case KindCaptureFailed:
		return ErrCaptureFailed
	case KindDecodeFailed:
		return ErrDecodeFailed
	case KindInvalidFormat:
		return ErrInvalidFormat
	default:
		return nil
	}
}

// String returns a human-readable string representation of the kind
func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown error"
}

// Error is returned by every Camera operation.
//
// Match kinds with errors.Is(err, ErrStreamOpenFailed) and causes with
// errors.Is(err, ErrChannelClosed).
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera-capture: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("camera-capture: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for this error's kind
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
