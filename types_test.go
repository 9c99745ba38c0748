package cameracapture

import (
	"errors"
	"fmt"
	"image/color"
	"testing"
)

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in      string
		want    Resolution
		wantErr bool
	}{
		{"640x480", NewResolution(640, 480), false},
		{" 1920X1080 ", NewResolution(1920, 1080), false},
		{"640", Resolution{}, true},
		{"x480", Resolution{}, true},
		{"640x", Resolution{}, true},
		{"-640x480", Resolution{}, true},
		{"640x480x3", Resolution{}, true},
	}

	for _, tt := range tests {
		got, err := ParseResolution(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseResolution(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseResolution(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFrameFormat(t *testing.T) {
	tests := map[string]FrameFormat{
		"MJPEG": FormatMJPEG,
		"mjpg":  FormatMJPEG,
		"yuyv":  FormatYUYV,
		"YUY2":  FormatYUYV,
		"rgb":   FormatRGB,
	}
	for in, want := range tests {
		got, err := ParseFrameFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFrameFormat(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	if _, err := ParseFrameFormat("NV12"); err == nil {
		t.Error("ParseFrameFormat(NV12) error = nil")
	}
}

func TestCameraFormat_Validate(t *testing.T) {
	valid := DefaultCameraFormat()
	tests := []struct {
		name    string
		format  CameraFormat
		wantErr bool
	}{
		{"default", valid, false},
		{"zero width", valid.WithResolution(NewResolution(0, 480)), true},
		{"zero height", valid.WithResolution(NewResolution(640, 0)), true},
		{"zero fps", valid.WithFrameRate(0), true},
		{"unknown encoding", valid.WithFormat(FrameFormat(9)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("Validate() error = %v, want ErrInvalidFormat", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestCameraFormat_WithLeavesOriginal(t *testing.T) {
	f := DefaultCameraFormat()
	g := f.WithResolution(NewResolution(1280, 720)).WithFrameRate(30).WithFormat(FormatYUYV)

	if f != DefaultCameraFormat() {
		t.Errorf("original modified: %v", f)
	}
	if g.Width() != 1280 || g.Height() != 720 || g.FrameRate != 30 || g.Format != FormatYUYV {
		t.Errorf("derived format = %v", g)
	}
	if got := g.String(); got != "1280x720@30 YUYV" {
		t.Errorf("String() = %q", got)
	}
}

func TestResolution_Less(t *testing.T) {
	if !NewResolution(640, 360).Less(NewResolution(640, 480)) {
		t.Error("640x360 should sort before 640x480")
	}
	if NewResolution(1280, 720).Less(NewResolution(640, 1080)) {
		t.Error("width orders before height")
	}
}

func TestFrame_Image(t *testing.T) {
	f := Frame{Width: 2, Height: 2, Data: []byte{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}}
	img := f.Image()

	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("Bounds() = %v", b)
	}
	if got := img.At(1, 1); got != (color.RGBA{R: 10, G: 11, B: 12, A: 0xff}) {
		t.Errorf("At(1,1) = %v", got)
	}
	if got := img.At(0, 1); got != (color.RGBA{R: 7, G: 8, B: 9, A: 0xff}) {
		t.Errorf("At(0,1) = %v", got)
	}
	if got := img.At(5, 5); got != (color.RGBA{}) {
		t.Errorf("At out of bounds = %v, want zero", got)
	}
}

func TestStreamState_String(t *testing.T) {
	for s, want := range map[StreamState]string{
		StateClosed:     "closed",
		StatePlaying:    "playing",
		StateStopped:    "stopped",
		StreamState(42): "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestError_Is(t *testing.T) {
	err := newError(KindCaptureFailed, "frame", fmt.Errorf("%w: %w", ErrReconfiguring, ErrChannelClosed))

	if !errors.Is(err, ErrCaptureFailed) {
		t.Error("errors.Is(err, ErrCaptureFailed) = false")
	}
	if errors.Is(err, ErrStreamOpenFailed) {
		t.Error("errors.Is(err, ErrStreamOpenFailed) = true")
	}
	if !errors.Is(err, ErrReconfiguring) || !errors.Is(err, ErrChannelClosed) {
		t.Error("cause sentinels not reachable through Unwrap")
	}

	wrapped := fmt.Errorf("capture loop: %w", err)
	kind, ok := KindOf(wrapped)
	if !ok || kind != KindCaptureFailed {
		t.Errorf("KindOf() = %v, %v; want CaptureFailed", kind, ok)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf(plain error) ok = true")
	}
}

func TestError_Message(t *testing.T) {
	err := newError(KindDeviceNotFound, "open", fmt.Errorf("index 3 out of range (2 devices)"))
	want := "camera-capture: open: device not found: index 3 out of range (2 devices)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	bare := newError(KindStreamStopFailed, "stop", nil)
	if bare.Error() != "camera-capture: stop: stream stop failed" {
		t.Errorf("Error() = %q", bare.Error())
	}
}
