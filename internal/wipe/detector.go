package wipe

import (
	"strings"
	"sync/atomic"
)

// DeviceFullMarker is the diagnostic substring the external writer emits when
// the target device has no remaining capacity. Seeing it turns the pass into
// a normal DeviceFull completion rather than a failure.
const DeviceFullMarker = "No space left on device"

// ExhaustionDetector classifies writer diagnostic lines. It is shared between
// the drainer (writes) and the feeder (reads), hence the atomic flag.
type ExhaustionDetector struct {
	seen atomic.Bool
}

// Observe inspects one diagnostic line and reports whether it carries the
// device-full marker. Lines without the marker leave the state untouched.
func (d *ExhaustionDetector) Observe(line string) bool {
	if !strings.Contains(line, DeviceFullMarker) {
		return false
	}
	d.seen.Store(true)
	return true
}

// Exhausted reports whether any observed line carried the marker.
func (d *ExhaustionDetector) Exhausted() bool {
	return d.seen.Load()
}
