package cameracapture

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/platform"
)

// rgbChannels is the channel count of every decoded frame
const rgbChannels = 3

type decoderFunc func(raw []byte, width, height int) ([]byte, error)

var decoders = map[platform.PixelLayout]decoderFunc{
	platform.LayoutYUY2: decodeYUY2,
	platform.LayoutJPEG: decodeJPEG,
	platform.LayoutRGB:  decodeRGB,
	platform.LayoutRGBA: decodeRGBA,
}

// Decode converts one raw buffer into packed RGB888 of width x height.
//
// The result is always exactly width*height*3 bytes: a short decode (e.g. a
// truncated source) is zero-padded rather than rejected. Corrupt JPEG
// bitstreams and unknown layouts fail with ErrDecodeFailed.
func Decode(raw []byte, width, height int, layout platform.PixelLayout) ([]byte, error) {
	const op = "decode"

	if width <= 0 || height <= 0 {
		return nil, newError(KindDecodeFailed, op, fmt.Errorf("invalid dimensions %dx%d", width, height))
	}

	decode, ok := decoders[layout]
	if !ok {
		return nil, newError(KindDecodeFailed, op, fmt.Errorf("unsupported pixel layout %v", layout))
	}

	out, err := decode(raw, width, height)
	if err != nil {
		return nil, newError(KindDecodeFailed, op, fmt.Errorf("%v: %w", layout, err))
	}

	return fitRGB(out, width, height), nil
}

// fitRGB pads with zeros or truncates to exactly width*height*3 bytes
func fitRGB(buf []byte, width, height int) []byte {
	size := width * height * rgbChannels
	switch {
	case len(buf) == size:
		return buf
	case len(buf) > size:
		return buf[:size]
	case cap(buf) >= size:
		tail := buf[len(buf):size]
		clear(tail)
		return buf[:size]
	default:
		out := make([]byte, size)
		copy(out, buf)
		return out
	}
}

// decodeYUY2 converts packed 4:2:2 (Y0 U Y1 V) with BT.601 coefficients.
// A trailing partial group is ignored.
func decodeYUY2(raw []byte, width, height int) ([]byte, error) {
	groups := len(raw) / 4
	if limit := width * height / 2; groups > limit {
		groups = limit
	}

	out := make([]byte, 0, width*height*rgbChannels)
	for i := 0; i < groups; i++ {
		g := raw[i*4 : i*4+4]
		y0, u, y1, v := g[0], g[1], g[2], g[3]
		out = appendYUV(out, y0, u, v)
		out = appendYUV(out, y1, u, v)
	}
	return out, nil
}

func appendYUV(dst []byte, y, u, v byte) []byte {
	c := int32(y) - 16
	d := int32(u) - 128
	e := int32(v) - 128

	r := (298*c + 409*e + 128) >> 8
	g := (298*c - 100*d - 208*e + 128) >> 8
	b := (298*c + 516*d + 128) >> 8

	return append(dst, clampByte(r), clampByte(g), clampByte(b))
}

func clampByte(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// decodeJPEG decodes the full bitstream and copies the overlap with the
// expected dimensions, row-major, dropping alpha.
func decodeJPEG(raw []byte, width, height int) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty bitstream")
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	src := imaging.Clone(img)

	b := src.Bounds()
	w := min(width, b.Dx())
	h := min(height, b.Dy())

	out := make([]byte, width*height*rgbChannels)
	for y := 0; y < h; y++ {
		srcRow := src.Pix[y*src.Stride:]
		dstRow := out[y*width*rgbChannels:]
		for x := 0; x < w; x++ {
			copy(dstRow[x*rgbChannels:x*rgbChannels+rgbChannels], srcRow[x*4:x*4+3])
		}
	}
	return out, nil
}

func decodeRGB(raw []byte, _, _ int) ([]byte, error) {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func decodeRGBA(raw []byte, _, _ int) ([]byte, error) {
	pixels := len(raw) / 4
	out := make([]byte, 0, pixels*rgbChannels)
	for i := 0; i < pixels; i++ {
		out = append(out, raw[i*4:i*4+3]...)
	}
	return out, nil
}
