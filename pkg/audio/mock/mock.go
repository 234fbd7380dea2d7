// Package mock provides an in-memory audio port for testing session logic
// without real devices.
package mock

import (
	"sync"

	"github.com/LasseHartmann/Gemipi/pkg/audio"
)

// PlayCall records a single invocation of [Port.Play].
type PlayCall struct {
	PCM         []byte
	SrcRate     int
	Synthesized bool
}

// Port is a scriptable stand-in for the device-backed audio port. All
// methods are safe for concurrent use. The zero value is ready to use.
type Port struct {
	mu sync.Mutex

	// StartErr, StopErr, and PlayErr are returned verbatim by the
	// corresponding methods when non-nil.
	StartErr error
	StopErr  error
	PlayErr  error

	startCalls int
	stopCalls  int
	playCalls  []PlayCall
	started    bool
}

func (p *Port) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startCalls++
	if p.StartErr != nil {
		return p.StartErr
	}
	p.started = true
	return nil
}

func (p *Port) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCalls++
	p.started = false
	return p.StopErr
}

func (p *Port) Play(pcm []byte, srcRate int, synthesized bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PlayErr != nil {
		return p.PlayErr
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	p.playCalls = append(p.playCalls, PlayCall{PCM: cp, SrcRate: srcRate, Synthesized: synthesized})
	return nil
}

// Started reports whether the port is currently between Start and Stop.
func (p *Port) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// StartCalls returns the number of Start invocations.
func (p *Port) StartCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startCalls
}

// StopCalls returns the number of Stop invocations.
func (p *Port) StopCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCalls
}

// PlayCalls returns a copy of all recorded Play invocations.
func (p *Port) PlayCalls() []PlayCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlayCall, len(p.playCalls))
	copy(out, p.playCalls)
	return out
}

// Feed pushes a capture frame onto bus as if the hardware produced it.
func (p *Port) Feed(bus *audio.Bus, f audio.Frame) {
	bus.Push(f)
}
