package gstreamer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/platform"
)

// statePollInterval is how often QueryState re-reads the element state
const statePollInterval = 2 * time.Millisecond

var initOnce sync.Once

// Engine builds GStreamer capture pipelines
type Engine struct{}

// NewEngine initializes GStreamer once per process
func NewEngine() (*Engine, error) {
	initOnce.Do(func() {
		gst.Init(nil)
		slog.Debug("gstreamer: initialized")
	})
	return &Engine{}, nil
}

// Build parses the launch string for spec and wires handler to the appsink.
//
// The pipeline is configured but NOT started (state remains NULL).
func (e *Engine) Build(spec platform.PipelineSpec, handler platform.SampleHandler) (platform.Pipeline, error) {
	launch, err := hostLaunchString(spec)
	if err != nil {
		return nil, err
	}

	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline %q: %w", launch, err)
	}

	elem, err := pipeline.GetElementByName(spec.SinkName)
	if err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("failed to find appsink %q: %w", spec.SinkName, err)
	}
	sink := app.SinkFromElement(elem)
	if sink == nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("element %q is not an appsink", spec.SinkName)
	}

	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(s *app.Sink) gst.FlowReturn {
			return onNewSample(s, handler)
		},
	})

	slog.Debug("gstreamer: pipeline created", "launch", launch)

	return &capturePipeline{
		pipeline: pipeline,
		sink:     sink,
		target:   platform.StateNull,
	}, nil
}

// capturePipeline adapts *gst.Pipeline to platform.Pipeline
type capturePipeline struct {
	mu       sync.Mutex
	pipeline *gst.Pipeline
	sink     *app.Sink
	target   platform.State
}

func toGst(s platform.State) gst.State {
	switch s {
	case platform.StatePlaying:
		return gst.StatePlaying
	case platform.StateReady:
		return gst.StateReady
	default:
		return gst.StateNull
	}
}

func fromGst(s gst.State) platform.State {
	switch s {
	case gst.StatePlaying:
		return platform.StatePlaying
	case gst.StateReady, gst.StatePaused:
		return platform.StateReady
	default:
		return platform.StateNull
	}
}

func (p *capturePipeline) SetState(s platform.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pipeline == nil {
		return fmt.Errorf("pipeline released")
	}
	if err := p.pipeline.SetState(toGst(s)); err != nil {
		return fmt.Errorf("failed to set pipeline to %s: %w", s, err)
	}
	p.target = s
	return nil
}

// QueryState polls the current state until it matches the last requested
// state or timeout elapses. On timeout the pending side is the requested state.
func (p *capturePipeline) QueryState(timeout time.Duration) (platform.State, platform.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pipeline == nil {
		return platform.StateNull, platform.StateNull, nil
	}

	deadline := time.Now().Add(timeout)
	for {
		current := fromGst(p.pipeline.GetState())
		if current == p.target {
			return current, current, nil
		}
		if !time.Now().Before(deadline) {
			return current, p.target, platform.ErrStateTimeout
		}
		time.Sleep(statePollInterval)
	}
}

// Poll pops one bus message without waiting
func (p *capturePipeline) Poll() (platform.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pipeline == nil {
		return platform.Message{}, false
	}

	msg := p.pipeline.GetPipelineBus().TimedPop(0)
	if msg == nil {
		return platform.Message{}, false
	}

	switch msg.Type() {
	case gst.MessageEOS:
		return platform.Message{Kind: platform.MessageEOS, Text: "end of stream"}, true

	case gst.MessageError:
		gerr := msg.ParseError()
		if gerr == nil {
			return platform.Message{Kind: platform.MessageError, Text: "unknown pipeline error"}, true
		}
		return platform.Message{
			Kind:     platform.MessageError,
			Text:     gerr.Error(),
			Debug:    gerr.DebugString(),
			Category: ClassifyError(gerr.Error(), gerr.DebugString()).String(),
		}, true

	case gst.MessageStateChanged:
		old, next := msg.ParseStateChanged()
		return platform.Message{
			Kind: platform.MessageStateChanged,
			Text: fmt.Sprintf("%s: %v -> %v", msg.Source(), old, next),
		}, true

	default:
		return platform.Message{Kind: platform.MessageOther, Text: fmt.Sprint(msg.Type())}, true
	}
}

// Close sets the pipeline to NULL and drops the references. Safe to call
// more than once.
func (p *capturePipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pipeline == nil {
		return nil
	}
	err := p.pipeline.SetState(gst.StateNull)
	p.pipeline = nil
	p.sink = nil
	p.target = platform.StateNull
	if err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}
