// Package mock provides a scriptable wakeword.Detector for tests.
package mock

import (
	"sync"
)

// Detector is a mock wake-word detector. Script it by setting TriggerAfter:
// the Nth Process call (1-based) reports detection with Label. Zero means
// never trigger.
type Detector struct {
	mu sync.Mutex

	// TriggerAfter makes the Nth Process call report detection.
	TriggerAfter int

	// Label is the label reported on detection. Defaults to "mock".
	Label string

	processCalls int
	resetCalls   int
}

func (d *Detector) Process(_ []byte) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.processCalls++
	if d.TriggerAfter > 0 && d.processCalls == d.TriggerAfter {
		label := d.Label
		if label == "" {
			label = "mock"
		}
		return label, true
	}
	return "", false
}

func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetCalls = d.resetCalls + 1
	d.processCalls = 0
}

// ProcessCalls returns the number of Process invocations since the last
// Reset.
func (d *Detector) ProcessCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processCalls
}

// ResetCalls returns the number of Reset invocations.
func (d *Detector) ResetCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resetCalls
}
