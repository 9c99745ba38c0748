package gstreamer

import (
	"strings"
)

// ErrorCategory is the classification of a pipeline bus error for logs
type ErrorCategory int

const (
	// ErrCategoryDevice indicates the source device failed (busy, unplugged, permission)
	ErrCategoryDevice ErrorCategory = iota
	// ErrCategoryNegotiation indicates the requested caps could not be negotiated
	ErrCategoryNegotiation
	// ErrCategoryResource indicates a read or allocation failure mid-stream
	ErrCategoryResource
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryNegotiation:
		return "negotiation"
	case ErrCategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

var (
	negotiationKeywords = []string{
		"not negotiated",
		"not-negotiated",
		"negotiation",
		"caps",
		"format",
		"no supported",
	}
	deviceKeywords = []string{
		"busy",
		"no such device",
		"permission",
		"could not open",
		"cannot identify device",
		"not a capture device",
		"device",
	}
	resourceKeywords = []string{
		"could not read",
		"failed to allocate",
		"allocation",
		"timeout",
		"resource",
	}
)

// ClassifyError categorizes a bus error by message heuristics. go-gst's
// GError does not expose the domain, so matching is on text.
//
// Negotiation is checked first: its messages often also name the device.
func ClassifyError(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)

	switch {
	case containsAny(combined, negotiationKeywords):
		return ErrCategoryNegotiation
	case containsAny(combined, deviceKeywords):
		return ErrCategoryDevice
	case containsAny(combined, resourceKeywords):
		return ErrCategoryResource
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
