// Package cameracapture provides pull-based capture from local cameras
// (V4L2, Kernel Streaming, AVFoundation) using GStreamer.
//
// A Camera owns one device. It negotiates a format against the capabilities
// the device advertises, runs a GStreamer pipeline that ends in an appsink,
// decodes every buffer to RGB and queues it until the caller pulls it.
//
// # Quick Start
//
//	cam, err := cameracapture.OpenWithResolution(0, 1280, 720, 30)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cam.Close()
//
//	if err := cam.OpenStream(); err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	stats, _ := cam.Warmup(ctx, 3*time.Second)
//	log.Printf("Stream stable: %v, FPS: %.2f", stats.IsStable, stats.FPSMean)
//
//	for {
//	    frame, err := cam.Frame(ctx)
//	    if err != nil {
//	        break
//	    }
//	    processFrame(frame) // frame.Data: Width × Height × 3 bytes, RGB
//	}
//
// # Formats
//
// Three source encodings are supported:
//
//   - FormatMJPEG: compressed JPEG per frame (image/jpeg caps)
//   - FormatYUYV: packed YUV 4:2:2 (video/x-raw, format=YUY2)
//   - FormatRGB: raw RGB (video/x-raw, format=RGB)
//
// Whatever the source encoding, frames are delivered as interleaved RGB.
// Only whole frame rates (N/1) are offered; fractional rates advertised by
// the device are skipped.
//
// # Lifecycle
//
//	Open ──► Stopped ──OpenStream──► Playing ──StopStream──► Stopped
//	                                     │
//	                         SetCameraFormat (rebuild, restart)
//
// Close releases the pipeline from any state. A Camera that is garbage
// collected without Close is torn down on a best-effort basis and failures
// are logged.
//
// # Errors
//
// Every error returned by the package is an *Error carrying an ErrorKind.
// Test for a kind with errors.Is:
//
//	if errors.Is(err, cameracapture.ErrDeviceNotFound) { ... }
//
// # Thread Safety
//
// All Camera methods are safe for concurrent use. Frame blocks outside the
// internal lock, so StopStream, SetCameraFormat and Close from another
// goroutine interrupt a pending pull.
//
// # Dependencies
//
// GStreamer 1.x must be installed with the plugins for the host's source
// element (v4l2src in gstreamer1.0-plugins-good on Linux).
package cameracapture
