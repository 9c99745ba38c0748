package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	cameracapture "github.com/e7canasta/orion-care-sensor/modules/camera-capture"
)

// Version information
const version = "v0.1.0"

func main() {
	app := &cli.App{
		Name:    "camcapture",
		Usage:   "list local cameras and capture RGB frames through GStreamer",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "json", Usage: "force JSON logs even on a terminal"},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			listCommand(),
			formatsCommand(),
			captureCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging installs a text handler on terminals and JSON otherwise
func setupLogging(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	fd := os.Stderr.Fd()
	var handler slog.Handler
	if !c.Bool("json") && (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list video sources and their indexes",
		Action: func(c *cli.Context) error {
			devices, err := cameracapture.ListDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("No video sources found")
				return nil
			}
			for _, d := range devices {
				fmt.Printf("  [%d] %s (%s)\n", d.Index, d.DisplayName, d.DeviceClass)
			}
			return nil
		},
	}
}

func formatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "formats",
		Usage: "show the encodings, resolutions and frame rates a device advertises",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "device", Aliases: []string{"d"}, Usage: "device index"},
		},
		Action: func(c *cli.Context) error {
			cam, err := cameracapture.Open(c.Int("device"), nil, cameracapture.WithFormatValidation(false))
			if err != nil {
				return err
			}
			defer cam.Close()

			info := cam.Info()
			fmt.Printf("%s (%s)\n", info.DisplayName, info.DeviceClass)

			formats, err := cam.CompatibleFormats()
			if err != nil {
				return err
			}
			for _, f := range formats {
				catalog, err := cam.CompatibleResolutions(f)
				if err != nil {
					return err
				}
				fmt.Printf("  %s\n", f)
				for _, res := range catalog.Resolutions() {
					fmt.Printf("    %-10s %v fps\n", res, catalog[res])
				}
			}
			return nil
		},
	}
}

func captureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "open a device, warm up and pull frames until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
			&cli.BoolFlag{Name: "watch", Usage: "apply format changes when the config file is rewritten"},
			&cli.IntFlag{Name: "device", Aliases: []string{"d"}, Usage: "device index"},
			&cli.StringFlag{Name: "resolution", Value: "640x480", Usage: "WIDTHxHEIGHT"},
			&cli.StringFlag{Name: "encoding", Value: "MJPEG", Usage: "MJPEG, YUYV or RGB"},
			&cli.UintFlag{Name: "fps", Value: 15, Usage: "frame rate"},
			&cli.IntFlag{Name: "queue", Usage: "frame queue capacity (0 = unbounded)"},
			&cli.StringFlag{Name: "overflow", Value: "drop-oldest", Usage: "block or drop-oldest"},
			&cli.StringFlag{Name: "output", Usage: "directory to save frames (png or jpg by --image-format)"},
			&cli.StringFlag{Name: "image-format", Value: "png", Usage: "png or jpg"},
			&cli.IntFlag{Name: "max-frames", Usage: "stop after N frames (0 = unlimited)"},
			&cli.DurationFlag{Name: "stats-interval", Value: 10 * time.Second, Usage: "time between stats reports"},
			&cli.DurationFlag{Name: "warmup", Value: 3 * time.Second, Usage: "warm-up duration (0 disables)"},
		},
		Action: runCapture,
	}
}

// loadConfig reads --config when given; explicitly set flags override it
func loadConfig(c *cli.Context) (*cameracapture.Config, error) {
	cfg := &cameracapture.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := cameracapture.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fileGiven := c.String("config") != ""
	override := func(name string) bool { return !fileGiven || c.IsSet(name) }

	if override("device") {
		cfg.Device.Index = c.Int("device")
	}
	if override("resolution") {
		cfg.Format.Resolution = c.String("resolution")
	}
	if override("encoding") {
		cfg.Format.Encoding = c.String("encoding")
	}
	if override("fps") {
		cfg.Format.FPS = uint32(c.Uint("fps"))
	}
	if override("queue") {
		cfg.Queue.Capacity = c.Int("queue")
	}
	if override("overflow") {
		cfg.Queue.Overflow = c.String("overflow")
	}
	if override("warmup") {
		cfg.Warmup.DurationS = int(c.Duration("warmup") / time.Second)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runCapture(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	format, err := cfg.CameraFormat()
	if err != nil {
		return err
	}

	outputDir := c.String("output")
	imageExt := c.String("image-format")
	if imageExt != "png" && imageExt != "jpg" {
		return fmt.Errorf("invalid image format %q (must be png or jpg)", imageExt)
	}
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cam, err := cameracapture.Open(cfg.Device.Index, &format, cfg.Options()...)
	if err != nil {
		return err
	}
	defer func() {
		if err := cam.Close(); err != nil {
			slog.Error("camcapture: close failed", "error", err)
		}
	}()

	info := cam.Info()
	fmt.Printf("\nDevice:      [%d] %s\n", info.Index, info.DisplayName)
	fmt.Printf("Format:      %s\n", cam.CameraFormat())
	if outputDir != "" {
		fmt.Printf("Output Dir:  %s (%s)\n", outputDir, imageExt)
	}
	fmt.Printf("\n")

	if err := cam.OpenStreamWithRetry(ctx, cfg.RetryConfig()); err != nil {
		return err
	}

	if d := cfg.WarmupDuration(); d > 0 {
		fmt.Printf("Running warmup (%s) to measure stream stability...\n", d)
		ws, err := cam.Warmup(ctx, d)
		if err != nil {
			return fmt.Errorf("warmup failed: %w", err)
		}
		printWarmup(ws)
	}

	if c.Bool("watch") {
		path := c.String("config")
		if path == "" {
			return fmt.Errorf("--watch requires --config")
		}
		w, err := watchConfig(ctx, path, cam)
		if err != nil {
			return err
		}
		defer w.Close()
	}

	fmt.Printf("Capturing. Press Ctrl+C to stop\n\n")

	maxFrames := c.Int("max-frames")
	statsInterval := c.Duration("stats-interval")
	lastReport := time.Now()
	captured := 0

	for maxFrames == 0 || captured < maxFrames {
		frame, err := cam.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, cameracapture.ErrReconfiguring) {
				slog.Info("camcapture: stream reconfigured, resuming", "format", cam.CameraFormat().String())
				continue
			}
			return err
		}
		captured++

		if outputDir != "" {
			name := filepath.Join(outputDir, fmt.Sprintf("frame_%06d.%s", frame.Seq, imageExt))
			if err := imaging.Save(frame.Image(), name, imaging.JPEGQuality(90)); err != nil {
				slog.Warn("camcapture: failed to save frame", "error", err, "path", name)
			}
		}

		if statsInterval > 0 && time.Since(lastReport) >= statsInterval {
			printStats(cam.Stats())
			lastReport = time.Now()
		}
	}

	if err := cam.StopStream(); err != nil {
		slog.Warn("camcapture: stop failed", "error", err)
	}
	printStats(cam.Stats())
	return nil
}

func printWarmup(ws *cameracapture.WarmupStats) {
	fmt.Printf("\n")
	fmt.Printf("Warmup Complete\n")
	fmt.Printf("  Frames Received:  %6d frames\n", ws.FramesReceived)
	fmt.Printf("  Duration:         %6.1f seconds\n", ws.Duration.Seconds())
	fmt.Printf("  FPS Mean:         %6.2f fps (target %.0f)\n", ws.FPSMean, ws.TargetFPS)
	fmt.Printf("  FPS StdDev:       %6.2f fps\n", ws.FPSStdDev)
	fmt.Printf("  FPS Range:        %6.1f - %.1f fps\n", ws.FPSMin, ws.FPSMax)
	fmt.Printf("  Jitter Mean:      %6.3f s\n", ws.JitterMean)
	fmt.Printf("  Stable:           %6v\n", ws.IsStable)
	fmt.Printf("  Meets Target:     %6v\n", ws.MeetsTarget)
	if !ws.IsStable {
		fmt.Printf("\nWARNING: stream is unstable (high FPS variance or jitter)\n")
	}
	fmt.Printf("\n")
}

func printStats(s cameracapture.CaptureStats) {
	fmt.Printf("[stats] state=%s format=%s decoded=%d failures=%d dropped=%d pending=%d fps=%.2f bytes=%d reconfigs=%d\n",
		s.State, s.Format, s.FramesDecoded, s.DecodeFailures, s.FramesDropped,
		s.FramesPending, s.FPSReal, s.BytesRead, s.Reconfigurations)
}
