package gstreamer

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/platform"
)

// layoutFor maps negotiated caps to a pixel layout
func layoutFor(mediaType, format string) platform.PixelLayout {
	switch mediaType {
	case "image/jpeg":
		return platform.LayoutJPEG
	case "video/x-raw":
		switch format {
		case "YUY2", "YUYV":
			return platform.LayoutYUY2
		case "RGB":
			return platform.LayoutRGB
		case "RGBA", "RGBx":
			return platform.LayoutRGBA
		}
	}
	return platform.LayoutUnknown
}

// describeCaps extracts layout and dimensions from the first caps structure
func describeCaps(caps *gst.Caps) (platform.PixelLayout, int, int) {
	if caps == nil || caps.GetSize() == 0 {
		return platform.LayoutUnknown, 0, 0
	}
	st := caps.GetStructureAt(0)
	if st == nil {
		return platform.LayoutUnknown, 0, 0
	}

	_, fields := parseStructure(st.String())
	width, _ := strconv.Atoi(fields["width"])
	height, _ := strconv.Atoi(fields["height"])
	return layoutFor(st.Name(), strings.TrimSpace(fields["format"])), width, height
}

// onNewSample is the appsink new-sample callback
//
// This callback:
//  1. Pulls the sample from the appsink
//  2. Reads layout and dimensions from the sample caps
//  3. Copies the mapped buffer (GStreamer reuses it)
//  4. Hands the copy to the core's handler
//
// It always returns gst.FlowOK: a single bad frame must not stop the pipeline.
func onNewSample(sink *app.Sink, handler platform.SampleHandler) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gstreamer: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gstreamer: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	layout, width, height := describeCaps(sample.GetCaps())

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("gstreamer: empty buffer received")
		return gst.FlowOK
	}
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	if err := handler(platform.Sample{
		Data:   frameData,
		Width:  width,
		Height: height,
		Layout: layout,
	}); err != nil {
		slog.Debug("gstreamer: sample handler rejected frame",
			"error", err,
			"layout", layout.String(),
			"size_bytes", len(frameData),
		)
	}
	return gst.FlowOK
}
