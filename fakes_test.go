package cameracapture

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/camera-capture/platform"
)

// fakeRegistry is an in-memory platform.DeviceRegistry
type fakeRegistry struct {
	devices []platform.Device
	err     error
}

func (r *fakeRegistry) Devices() ([]platform.Device, error) {
	return r.devices, r.err
}

// fakeEngine records every pipeline it builds
type fakeEngine struct {
	mu        sync.Mutex
	pipelines []*fakePipeline
	buildErr  error
}

func (e *fakeEngine) Build(spec platform.PipelineSpec, handler platform.SampleHandler) (platform.Pipeline, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.buildErr != nil {
		return nil, e.buildErr
	}
	p := &fakePipeline{spec: spec, handler: handler, state: platform.StateNull}
	p.idle = sync.NewCond(&p.handlerMu)
	e.pipelines = append(e.pipelines, p)
	return p, nil
}

func (e *fakeEngine) builds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pipelines)
}

func (e *fakeEngine) last() *fakePipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipelines[len(e.pipelines)-1]
}

func (e *fakeEngine) pipeline(i int) *fakePipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipelines[i]
}

// fakePipeline is a platform.Pipeline whose streaming thread is the test.
// Like GStreamer, leaving PLAYING waits for running sample callbacks.
type fakePipeline struct {
	spec    platform.PipelineSpec
	handler platform.SampleHandler

	handlerMu sync.Mutex
	idle      *sync.Cond
	inflight  int

	mu          sync.Mutex
	state       platform.State
	closed      bool
	messages    []platform.Message
	failPlaying int   // SetState(Playing) fails this many more times
	stateErr    error // returned by SetState(Ready)
	closeErr    error
}

func (p *fakePipeline) SetState(s platform.State) error {
	if s != platform.StatePlaying {
		p.waitIdle()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if s == platform.StatePlaying && p.failPlaying > 0 {
		p.failPlaying--
		return errors.New("device busy")
	}
	if s == platform.StateReady && p.stateErr != nil {
		return p.stateErr
	}
	p.state = s
	return nil
}

func (p *fakePipeline) QueryState(time.Duration) (platform.State, platform.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.state, nil
}

func (p *fakePipeline) Poll() (platform.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.messages) == 0 {
		return platform.Message{}, false
	}
	msg := p.messages[0]
	p.messages = p.messages[1:]
	return msg, true
}

func (p *fakePipeline) Close() error {
	p.waitIdle()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.state = platform.StateNull
	return p.closeErr
}

func (p *fakePipeline) post(msg platform.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

func (p *fakePipeline) currentState() platform.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePipeline) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// emit delivers one buffer the way the engine's streaming thread would
func (p *fakePipeline) emit(s platform.Sample) error {
	p.handlerMu.Lock()
	p.inflight++
	p.handlerMu.Unlock()

	defer func() {
		p.handlerMu.Lock()
		p.inflight--
		p.idle.Broadcast()
		p.handlerMu.Unlock()
	}()
	return p.handler(s)
}

func (p *fakePipeline) waitIdle() {
	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()
	for p.inflight > 0 {
		p.idle.Wait()
	}
}

func rgbSample(width, height int, fill byte) platform.Sample {
	return platform.Sample{
		Data:   bytes.Repeat([]byte{fill}, width*height*3),
		Width:  width,
		Height: height,
		Layout: platform.LayoutRGB,
	}
}

// webcam advertises MJPEG at 640x480 and 1280x720, and YUY2 at 640x480
func webcam() platform.Device {
	return platform.Device{
		DisplayName: "Integrated Camera",
		DeviceClass: "Video/Source",
		Description: "Integrated Camera (Video/Source)",
		Capabilities: []platform.CapabilityRecord{
			{MediaType: "image/jpeg", Fields: map[string]string{
				"width": "640", "height": "480", "framerate": "{ 30/1, 15/1 }",
			}},
			{MediaType: "image/jpeg", Fields: map[string]string{
				"width": "1280", "height": "720", "framerate": "{ 30/1, 15/2 }",
			}},
			{MediaType: "video/x-raw", Fields: map[string]string{
				"format": "YUY2", "width": "640", "height": "480", "framerate": "{ 30/1, 10/1 }",
			}},
		},
	}
}

// openFake opens device 0 of a one-webcam registry on a fake engine
func openFake(format *CameraFormat, opts ...Option) (*Camera, *fakeEngine, error) {
	engine := &fakeEngine{}
	registry := &fakeRegistry{devices: []platform.Device{webcam()}}
	cam, err := OpenWith(engine, registry, 0, format, opts...)
	return cam, engine, err
}
