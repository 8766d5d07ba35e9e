// Package device validates the wipe target before any pass runs and probes
// its capacity for progress estimates. Probe failures degrade to an unknown
// size; they never abort a run.
package device

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotBlockDevice is returned when the target exists but is not a block
// device. Regular files can still be targeted with an explicit force flag.
var ErrNotBlockDevice = errors.New("target is not a block device")

// Validate checks that the target exists and is writable as a wipe target.
// With allowRegular set, an existing regular file is accepted as well, which
// keeps test runs off real hardware.
func Validate(path string, allowRegular bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("device: stat %s: %w", path, err)
	}
	mode := info.Mode()
	if mode&os.ModeDevice != 0 && mode&os.ModeCharDevice == 0 {
		return nil
	}
	if allowRegular && mode.IsRegular() {
		return nil
	}
	if allowRegular && mode&os.ModeCharDevice != 0 {
		// /dev/null and friends; useful for dry runs.
		return nil
	}
	return fmt.Errorf("device: %s: %w", path, ErrNotBlockDevice)
}

// Size returns the capacity of the target in bytes. Block devices are probed
// with the kernel; regular files fall back to their length. Zero with a nil
// error means the size is unknown.
func Size(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("device: stat %s: %w", path, err)
	}
	if info.Mode().IsRegular() {
		return uint64(info.Size()), nil
	}
	return blockSize(path)
}
