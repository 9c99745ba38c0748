// Package gstreamer implements the platform contract on top of GStreamer
// (go-gst): device enumeration through a DeviceMonitor and capture through a
// parse-launch pipeline ending in an appsink.
package gstreamer

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/platform"
)

// sourceElement returns the OS video source for a device index
//
// Linux addresses V4L2 nodes by path; Windows and macOS by index.
func sourceElement(goos string, index int) (string, error) {
	switch goos {
	case "linux":
		return fmt.Sprintf("v4l2src device=/dev/video%d", index), nil
	case "windows":
		return fmt.Sprintf("ksvideosrc device_index=%d", index), nil
	case "darwin":
		return fmt.Sprintf("avfvideosrc device-index=%d", index), nil
	default:
		return "", fmt.Errorf("no video source element for %s", goos)
	}
}

// capsString renders caps in GStreamer launch syntax
//
// Format: "image/jpeg,width=W,height=H,framerate=N/1" or
// "video/x-raw,format=F,width=W,height=H,framerate=N/1"
func capsString(c platform.Caps) string {
	var b strings.Builder
	b.WriteString(c.MediaType)
	if c.FormatTag != "" {
		fmt.Fprintf(&b, ",format=%s", c.FormatTag)
	}
	fmt.Fprintf(&b, ",width=%d,height=%d,framerate=%d/1", c.Width, c.Height, c.FrameRate)
	return b.String()
}

// LaunchString builds the parse-launch description for spec on goos:
//
//	<source> ! <caps> ! appsink name=<sink> async=false sync=false
func LaunchString(goos string, spec platform.PipelineSpec) (string, error) {
	if spec.DeviceIndex < 0 {
		return "", fmt.Errorf("invalid device index %d", spec.DeviceIndex)
	}
	if spec.Caps.MediaType == "" {
		return "", fmt.Errorf("caps without media type")
	}
	if spec.SinkName == "" {
		return "", fmt.Errorf("sink name is empty")
	}

	src, err := sourceElement(goos, spec.DeviceIndex)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s ! %s ! appsink name=%s async=false sync=false",
		src, capsString(spec.Caps), spec.SinkName), nil
}

func hostLaunchString(spec platform.PipelineSpec) (string, error) {
	return LaunchString(runtime.GOOS, spec)
}
