package gstreamer

import (
	"regexp"
	"strings"
)

// scalarType matches a leading value type such as "(int)" or "(string)"
var scalarType = regexp.MustCompile(`^\([a-zA-Z_]+\)\s*`)

// parseStructure splits a serialized GStreamer structure such as
//
//	video/x-raw, format=(string)YUY2, width=(int)640, framerate=(fraction){ 30/1, 15/1 };
//
// into its name and field values. Commas inside { }, [ ] and < > belong to
// the value. Leading scalar type annotations are removed; list and range
// values keep their text.
func parseStructure(s string) (string, map[string]string) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))

	var parts []string
	depth, start := 0, 0
	inQuote := false
	for i, r := range s {
		switch r {
		case '"':
			inQuote = !inQuote
		case '{', '[', '<':
			if !inQuote {
				depth++
			}
		case '}', ']', '>':
			if !inQuote && depth > 0 {
				depth--
			}
		case ',':
			if !inQuote && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])

	fields := make(map[string]string, len(parts)-1)
	for _, p := range parts[1:] {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		value = scalarType.ReplaceAllString(value, "")
		fields[strings.TrimSpace(key)] = strings.Trim(value, `"`)
	}
	return strings.TrimSpace(parts[0]), fields
}
