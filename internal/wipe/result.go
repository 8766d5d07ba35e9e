package wipe

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Status is the terminal state of one write invocation.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusDeviceFull Status = "device-full"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

// WriteResult captures the outcome of one pass's write. Immutable once
// returned by the invoker.
type WriteResult struct {
	Status Status
	// BytesWritten is the writer's own running estimate, parsed from its
	// progress output. Zero when the writer reported nothing.
	BytesWritten int64
	// Diagnostics holds the tail of the writer's diagnostic output, kept for
	// failure reporting.
	Diagnostics []string
}

// bytesLabel renders a byte estimate for journal lines.
func bytesLabel(n int64) string {
	if n <= 0 {
		return "an unknown amount"
	}
	return humanize.IBytes(uint64(n))
}

// ProgressBytes parses the leading byte counter from a writer progress line,
// for callers that render their own progress displays.
func ProgressBytes(line string) (int64, bool) {
	return extractBytes(line)
}

// extractBytes parses the leading byte counter from a dd progress line such
// as "1048576 bytes (1.0 MB, 1.0 MiB) copied, 0.004 s, 227 MB/s".
func extractBytes(line string) (int64, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[1] != "bytes" {
		return 0, false
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
