package cameracapture

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/platform"
)

// formatSpec maps a FrameFormat to the capability records that advertise it
type formatSpec struct {
	format    FrameFormat
	mediaType string
	formatTag string // empty: any record of mediaType matches
	layout    platform.PixelLayout
}

var formatSpecs = []formatSpec{
	{format: FormatMJPEG, mediaType: "image/jpeg", layout: platform.LayoutJPEG},
	{format: FormatYUYV, mediaType: "video/x-raw", formatTag: "YUY2", layout: platform.LayoutYUY2},
	{format: FormatRGB, mediaType: "video/x-raw", formatTag: "RGB", layout: platform.LayoutRGB},
}

func specFor(f FrameFormat) (formatSpec, bool) {
	for _, s := range formatSpecs {
		if s.format == f {
			return s, true
		}
	}
	return formatSpec{}, false
}

func (s formatSpec) matches(r platform.CapabilityRecord) bool {
	if r.MediaType != s.mediaType {
		return false
	}
	if s.formatTag == "" {
		return true
	}
	tag, _ := r.Field("format")
	return strings.TrimSpace(tag) == s.formatTag
}

// caps returns the pipeline constraints that request f from the device
func (s formatSpec) caps(f CameraFormat) platform.Caps {
	return platform.Caps{
		MediaType: s.mediaType,
		FormatTag: s.formatTag,
		Width:     f.Resolution.Width,
		Height:    f.Resolution.Height,
		FrameRate: f.FrameRate,
	}
}

// CapabilityCatalog maps each advertised resolution to its whole frame rates
// for one FrameFormat
type CapabilityCatalog map[Resolution][]uint32

// Supports reports whether res at fps is advertised
func (c CapabilityCatalog) Supports(res Resolution, fps uint32) bool {
	for _, r := range c[res] {
		if r == fps {
			return true
		}
	}
	return false
}

// Resolutions returns the catalog's resolutions, smallest first
func (c CapabilityCatalog) Resolutions() []Resolution {
	out := make([]Resolution, 0, len(c))
	for r := range c {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// CompatibleFormats returns the encodings advertised by records, deduplicated
// and sorted
func CompatibleFormats(records []platform.CapabilityRecord) []FrameFormat {
	seen := make(map[FrameFormat]bool)
	for _, r := range records {
		for _, s := range formatSpecs {
			if s.matches(r) {
				seen[s.format] = true
			}
		}
	}

	formats := make([]FrameFormat, 0, len(seen))
	for f := range seen {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// CompatibleResolutions builds the resolution → frame rate catalog for format.
//
// Fractional rates (denominator != 1) are skipped. Missing width, height or
// framerate fields and malformed rationals fail with ErrDeviceQueryFailed.
func CompatibleResolutions(records []platform.CapabilityRecord, format FrameFormat) (CapabilityCatalog, error) {
	const op = "compatible resolutions"

	spec, ok := specFor(format)
	if !ok {
		return nil, newError(KindUnsupportedOperation, op, fmt.Errorf("unknown encoding %v", format))
	}

	catalog := make(CapabilityCatalog)
	for i, r := range records {
		if !spec.matches(r) {
			continue
		}

		width, err := dimensionField(r, "width")
		if err != nil {
			return nil, newError(KindDeviceQueryFailed, op, fmt.Errorf("record %d: %w", i, err))
		}
		height, err := dimensionField(r, "height")
		if err != nil {
			return nil, newError(KindDeviceQueryFailed, op, fmt.Errorf("record %d: %w", i, err))
		}
		raw, ok := r.Field("framerate")
		if !ok {
			return nil, newError(KindDeviceQueryFailed, op, fmt.Errorf("record %d: framerate missing", i))
		}
		rates, err := parseFrameRates(raw)
		if err != nil {
			return nil, newError(KindDeviceQueryFailed, op, fmt.Errorf("record %d: %w", i, err))
		}

		res := Resolution{Width: width, Height: height}
		catalog[res] = mergeRates(catalog[res], rates)
	}

	return catalog, nil
}

func dimensionField(r platform.CapabilityRecord, name string) (uint32, error) {
	raw, ok := r.Field(name)
	if !ok {
		return 0, fmt.Errorf("%s missing", name)
	}
	v, err := strconv.ParseUint(stripTypeAnnotations(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an integer", name, raw)
	}
	return uint32(v), nil
}

// typeAnnotation matches GStreamer value type prefixes such as "(fraction)"
var typeAnnotation = regexp.MustCompile(`\([a-zA-Z_]+\)`)

func stripTypeAnnotations(s string) string {
	return strings.TrimSpace(typeAnnotation.ReplaceAllString(s, ""))
}

// parseFrameRates extracts the whole frame rates from a serialized
// framerate value: a single fraction, a { list } or a [ range ].
func parseFrameRates(raw string) ([]uint32, error) {
	tokens := strings.FieldsFunc(stripTypeAnnotations(raw), func(r rune) bool {
		switch r {
		case ',', '{', '}', '[', ']', '<', '>', ';', ' ', '\t', '"':
			return true
		}
		return false
	})
	if len(tokens) == 0 {
		return nil, fmt.Errorf("framerate %q has no values", raw)
	}

	var rates []uint32
	for _, tok := range tokens {
		parts := strings.Split(tok, "/")
		if len(parts) != 2 {
			return nil, fmt.Errorf("framerate %q: expected one '/' in %q", raw, tok)
		}
		if parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("framerate %q: missing numerator or denominator in %q", raw, tok)
		}
		den, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("framerate %q: bad denominator in %q", raw, tok)
		}
		num, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("framerate %q: bad numerator in %q", raw, tok)
		}
		if den != 1 {
			continue
		}
		rates = append(rates, uint32(num))
	}
	return rates, nil
}

func mergeRates(dst, src []uint32) []uint32 {
	out := append(dst, src...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	n := 0
	for i, v := range out {
		if i > 0 && v == out[n-1] {
			continue
		}
		out[n] = v
		n++
	}
	return out[:n]
}
