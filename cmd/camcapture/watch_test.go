package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	cameracapture "github.com/e7canasta/orion-care-sensor/modules/camera-capture"
)

type fakeSetter struct {
	mu      sync.Mutex
	format  cameracapture.CameraFormat
	sets    int
	failErr error
}

func (f *fakeSetter) CameraFormat() cameracapture.CameraFormat {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.format
}

func (f *fakeSetter) SetCameraFormat(cf cameracapture.CameraFormat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.format = cf
	f.sets++
	return nil
}

func (f *fakeSetter) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

func writeConfig(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestApplyConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camera.yaml")
	cam := &fakeSetter{format: cameracapture.DefaultCameraFormat()}

	t.Run("unchanged format is a no-op", func(t *testing.T) {
		writeConfig(t, path, "format:\n  resolution: 640x480\n")
		if applyConfig(path, cam) {
			t.Error("applyConfig() = true for the current format")
		}
		if cam.setCount() != 0 {
			t.Errorf("SetCameraFormat called %d times", cam.setCount())
		}
	})

	t.Run("new resolution", func(t *testing.T) {
		writeConfig(t, path, "format:\n  resolution: 1280x720\n  fps: 30\n")
		if !applyConfig(path, cam) {
			t.Fatal("applyConfig() = false")
		}
		want := cameracapture.NewCameraFormat(cameracapture.NewResolution(1280, 720), cameracapture.FormatMJPEG, 30)
		if got := cam.CameraFormat(); got != want {
			t.Errorf("format = %v, want %v", got, want)
		}
	})

	t.Run("invalid file keeps format", func(t *testing.T) {
		before := cam.CameraFormat()
		writeConfig(t, path, "format:\n  resolution: huge\n")
		if applyConfig(path, cam) {
			t.Error("applyConfig() = true for an invalid file")
		}
		if cam.CameraFormat() != before {
			t.Error("format changed after an invalid file")
		}
	})

	t.Run("rejected by camera", func(t *testing.T) {
		rejecting := &fakeSetter{
			format:  cameracapture.DefaultCameraFormat(),
			failErr: errors.New("invalid format"),
		}
		writeConfig(t, path, "format:\n  fps: 30\n")
		if applyConfig(path, rejecting) {
			t.Error("applyConfig() = true when the camera rejected the format")
		}
	})
}

func TestWatchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camera.yaml")
	writeConfig(t, path, "format:\n  fps: 15\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cam := &fakeSetter{format: cameracapture.DefaultCameraFormat()}
	w, err := watchConfig(ctx, path, cam)
	if err != nil {
		t.Fatalf("watchConfig() error = %v", err)
	}
	defer w.Close()

	// unrelated files in the directory are ignored
	writeConfig(t, filepath.Join(filepath.Dir(path), "other.yaml"), "format:\n  fps: 5\n")
	writeConfig(t, path, "format:\n  fps: 30\n")

	deadline := time.Now().Add(3 * time.Second)
	for cam.setCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if cam.setCount() == 0 {
		t.Fatal("config change was not applied")
	}
	if got := cam.CameraFormat().FrameRate; got != 30 {
		t.Errorf("FrameRate = %d, want 30", got)
	}
}

func TestWatchConfig_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "camera.yaml")
	if _, err := watchConfig(context.Background(), path, &fakeSetter{}); err == nil {
		t.Error("watchConfig() error = nil for a missing directory")
	}
}
