package cameracapture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/platform"
)

// busPollInterval is how often a playing pipeline's bus is checked
const busPollInterval = 10 * time.Millisecond

// busMonitor watches the bus of one playing pipeline generation. On
// end-of-stream or an error it closes that generation's frame channel with
// the cause, so a pull already waiting fails instead of blocking forever.
type busMonitor struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startBusMonitor(p platform.Pipeline, target *sinkTarget, deviceIndex int) *busMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &busMonitor{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(m.done)
		monitorBus(ctx, p, target, deviceIndex)
	}()
	return m
}

// stop waits for the monitor goroutine to exit. Nil-safe.
func (m *busMonitor) stop() {
	if m == nil {
		return
	}
	m.cancel()
	<-m.done
}

func monitorBus(ctx context.Context, p platform.Pipeline, target *sinkTarget, deviceIndex int) {
	ticker := time.NewTicker(busPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("camera-capture: bus monitor stopped", "device_index", deviceIndex)
			return
		case <-ticker.C:
			if err := drainMessages(p, deviceIndex); err != nil {
				target.channel().CloseWithError(err)
				return
			}
		}
	}
}

// drainMessages consumes every pending bus message and returns the first
// end-of-stream or error as the failure cause
func drainMessages(p platform.Pipeline, deviceIndex int) error {
	for {
		msg, ok := p.Poll()
		if !ok {
			return nil
		}
		switch msg.Kind {
		case platform.MessageEOS:
			slog.Info("camera-capture: end of stream received", "device_index", deviceIndex)
			return ErrEndOfStream
		case platform.MessageError:
			slog.Error("camera-capture: pipeline error",
				"error", msg.Text,
				"debug", msg.Debug,
				"category", msg.Category,
				"device_index", deviceIndex,
			)
			if msg.Category != "" {
				return fmt.Errorf("bus error [%s]: %s", msg.Category, msg.Text)
			}
			return fmt.Errorf("bus error: %s", msg.Text)
		case platform.MessageStateChanged:
			slog.Debug("camera-capture: pipeline state changed", "detail", msg.Text)
		}
	}
}
