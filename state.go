package cameracapture

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/platform"
)

const (
	// sinkName is the appsink element name every pipeline ends in
	sinkName = "appsink"

	// stateQueryTimeout bounds IsStreamOpen
	stateQueryTimeout = 16 * time.Millisecond
)

// sinkTarget is the frame destination of one pipeline generation. The
// channel is swapped when a stopped stream is reopened; a reconfigure gets a
// new sinkTarget so old-format frames never reach the new channel.
type sinkTarget struct {
	ch atomic.Pointer[FrameChannel]
}

func newSinkTarget(opts QueueOptions) *sinkTarget {
	t := &sinkTarget{}
	t.ch.Store(NewFrameChannel(opts))
	return t
}

func (t *sinkTarget) channel() *FrameChannel {
	return t.ch.Load()
}

// handlerFactory returns the sample handler for a pipeline generation
type handlerFactory func(target *sinkTarget, format CameraFormat) platform.SampleHandler

// streamMachine owns the pipeline lifecycle: closed → playing ↔ stopped.
// Not safe for concurrent use; Camera serializes access.
type streamMachine struct {
	engine      platform.Engine
	deviceIndex int
	format      CameraFormat
	queue       QueueOptions
	newHandler  handlerFactory

	pipeline platform.Pipeline
	target   *sinkTarget
	state    StreamState

	monitor *busMonitor // nil unless playing

	generation uint64 // bumped on every rebuild
	retired    uint64 // drops counted on replaced channels
}

func newStreamMachine(engine platform.Engine, deviceIndex int, format CameraFormat, queue QueueOptions, h handlerFactory) *streamMachine {
	return &streamMachine{
		engine:      engine,
		deviceIndex: deviceIndex,
		format:      format,
		queue:       queue,
		newHandler:  h,
		state:       StateClosed,
	}
}

// build creates a pipeline and its sink target for format. It does not
// touch the machine's current pipeline.
func (m *streamMachine) build(format CameraFormat) (platform.Pipeline, *sinkTarget, error) {
	spec, ok := specFor(format.Format)
	if !ok {
		return nil, nil, newError(KindUnsupportedOperation, "build pipeline",
			fmt.Errorf("no pipeline caps for %v", format.Format))
	}

	target := newSinkTarget(m.queue)
	p, err := m.engine.Build(platform.PipelineSpec{
		DeviceIndex: m.deviceIndex,
		Caps:        spec.caps(format),
		SinkName:    sinkName,
	}, m.newHandler(target, format))
	if err != nil {
		target.channel().Close()
		return nil, nil, newError(KindStreamOpenFailed, "build pipeline", err)
	}

	slog.Debug("camera-capture: pipeline built",
		"device_index", m.deviceIndex,
		"format", format.String(),
	)
	return p, target, nil
}

// install makes a freshly built pipeline current, leaving it stopped
func (m *streamMachine) install(p platform.Pipeline, target *sinkTarget, format CameraFormat) {
	if m.target != nil {
		m.retired += m.target.channel().Dropped()
	}
	m.pipeline = p
	m.target = target
	m.format = format
	m.state = StateStopped
	m.generation++
}

func (m *streamMachine) open() error {
	if m.state == StatePlaying {
		return nil
	}

	if m.pipeline == nil {
		p, target, err := m.build(m.format)
		if err != nil {
			return err
		}
		m.install(p, target, m.format)
	}

	if m.target.channel().Closed() {
		m.freshChannel()
	}

	if err := m.pipeline.SetState(platform.StatePlaying); err != nil {
		return newError(KindStreamOpenFailed, "open stream", err)
	}
	m.state = StatePlaying
	m.monitor = startBusMonitor(m.pipeline, m.target, m.deviceIndex)

	slog.Info("camera-capture: stream playing",
		"device_index", m.deviceIndex,
		"format", m.format.String(),
	)
	return nil
}

func (m *streamMachine) stop() error {
	if m.state != StatePlaying {
		return nil
	}

	// Closing first releases a streaming thread blocked in a full channel;
	// the pipeline cannot leave PLAYING while its sample callback runs.
	m.target.channel().Close()
	if err := m.pipeline.SetState(platform.StateReady); err != nil {
		m.freshChannel()
		return newError(KindStreamStopFailed, "stop stream", err)
	}
	m.monitor.stop()
	m.monitor = nil
	m.state = StateStopped

	slog.Info("camera-capture: stream stopped", "device_index", m.deviceIndex)
	return nil
}

// reconfigure rebuilds the pipeline for format, restarting it if it was
// playing. On failure the previous pipeline is kept (stopped).
func (m *streamMachine) reconfigure(format CameraFormat) error {
	if m.state == StateClosed {
		m.format = format
		return nil
	}

	wasPlaying := m.state == StatePlaying
	if err := m.stop(); err != nil {
		return err
	}

	p, target, err := m.build(format)
	if err != nil {
		return err
	}

	old, oldTarget := m.pipeline, m.target
	m.install(p, target, format)

	oldTarget.channel().Close()
	if err := old.Close(); err != nil {
		slog.Warn("camera-capture: failed to release previous pipeline",
			"error", err,
			"device_index", m.deviceIndex,
		)
	}

	slog.Info("camera-capture: pipeline reconfigured",
		"device_index", m.deviceIndex,
		"format", format.String(),
		"restart", wasPlaying,
	)

	if wasPlaying {
		return m.open()
	}
	return nil
}

// freshChannel replaces the current target's closed channel
func (m *streamMachine) freshChannel() {
	m.retired += m.target.channel().Dropped()
	m.target.ch.Store(NewFrameChannel(m.queue))
}

// dropped returns frames evicted across every channel this machine has used
func (m *streamMachine) dropped() uint64 {
	if m.target == nil {
		return m.retired
	}
	return m.retired + m.target.channel().Dropped()
}

// pending returns the number of frames waiting in the current channel
func (m *streamMachine) pending() int {
	if m.target == nil {
		return 0
	}
	return m.target.channel().Len()
}

// isOpen queries the pipeline state. An ambiguous answer counts as open if
// either side of the transition is playing.
func (m *streamMachine) isOpen() bool {
	if m.pipeline == nil {
		return false
	}
	from, to, err := m.pipeline.QueryState(stateQueryTimeout)
	if err != nil {
		slog.Debug("camera-capture: state query inconclusive",
			"error", err,
			"from", from.String(),
			"to", to.String(),
		)
	}
	return from == platform.StatePlaying || to == platform.StatePlaying
}

// drainBus consumes pending bus messages. End-of-stream or an error closes
// the current channel with that cause and is returned.
func (m *streamMachine) drainBus() error {
	if m.pipeline == nil {
		return nil
	}
	err := drainMessages(m.pipeline, m.deviceIndex)
	if err != nil {
		m.target.channel().CloseWithError(err)
	}
	return err
}

// close forces the pipeline to null. Always leaves the machine closed; the
// release error is returned, never raised.
func (m *streamMachine) close() error {
	if m.pipeline == nil {
		m.state = StateClosed
		return nil
	}

	m.monitor.stop()
	m.monitor = nil
	m.target.channel().Close()
	err := m.pipeline.Close()
	m.pipeline = nil
	m.state = StateClosed

	if err != nil {
		return newError(KindStreamStopFailed, "close", fmt.Errorf("release pipeline: %w", err))
	}
	return nil
}
