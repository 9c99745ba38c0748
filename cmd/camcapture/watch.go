package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	cameracapture "github.com/e7canasta/orion-care-sensor/modules/camera-capture"
)

// reloadDebounce collapses the burst of events editors emit on save
const reloadDebounce = 200 * time.Millisecond

// formatSetter is the part of the camera a reload touches
type formatSetter interface {
	CameraFormat() cameracapture.CameraFormat
	SetCameraFormat(cameracapture.CameraFormat) error
}

// watchConfig reapplies the format section of path whenever the file is
// rewritten. The directory is watched so rename-on-save editors are seen.
func watchConfig(ctx context.Context, path string, cam formatSetter) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new file change watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %q: %w", path, err)
	}

	target := filepath.Clean(path)
	go func() {
		var reload *time.Timer
		defer func() {
			if reload != nil {
				reload.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if reload == nil {
					reload = time.AfterFunc(reloadDebounce, func() { applyConfig(path, cam) })
				} else {
					reload.Reset(reloadDebounce)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("camcapture: config watcher error", "error", err)
			}
		}
	}()

	slog.Info("camcapture: watching config", "path", path)
	return watcher, nil
}

// applyConfig loads path and switches format when it changed
func applyConfig(path string, cam formatSetter) bool {
	cfg, err := cameracapture.LoadConfig(path)
	if err != nil {
		slog.Warn("camcapture: ignoring config change", "error", err, "path", path)
		return false
	}
	format, err := cfg.CameraFormat()
	if err != nil {
		slog.Warn("camcapture: ignoring config change", "error", err, "path", path)
		return false
	}

	current := cam.CameraFormat()
	if format == current {
		return false
	}
	if err := cam.SetCameraFormat(format); err != nil {
		slog.Error("camcapture: format change rejected",
			"error", err,
			"current", current.String(),
			"requested", format.String(),
		)
		return false
	}

	slog.Info("camcapture: format reloaded",
		"old_format", current.String(),
		"new_format", format.String(),
	)
	return true
}
