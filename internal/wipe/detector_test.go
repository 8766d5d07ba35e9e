package wipe

import (
	"bufio"
	"strings"
	"testing"
)

func TestDetectorMatchesMarker(t *testing.T) {
	d := &ExhaustionDetector{}
	if d.Observe("1048576 bytes (1.0 MB, 1.0 MiB) copied, 0.004 s, 227 MB/s") {
		t.Fatalf("progress line misclassified as exhaustion")
	}
	if d.Exhausted() {
		t.Fatalf("detector exhausted before marker")
	}
	if !d.Observe("dd: error writing '/dev/sdx': No space left on device") {
		t.Fatalf("marker line not detected")
	}
	if !d.Exhausted() {
		t.Fatalf("detector did not latch after marker")
	}
	// Later ordinary lines must not reset the state.
	d.Observe("512+0 records out")
	if !d.Exhausted() {
		t.Fatalf("state reset by a later line")
	}
}

func TestExtractBytes(t *testing.T) {
	n, ok := extractBytes("1048576 bytes (1.0 MB, 1.0 MiB) copied, 0.004 s, 227 MB/s")
	if !ok || n != 1048576 {
		t.Fatalf("extractBytes = %d/%v, want 1048576/true", n, ok)
	}
	if _, ok := extractBytes("512+0 records in"); ok {
		t.Fatalf("records line should not parse as bytes")
	}
	if _, ok := extractBytes(""); ok {
		t.Fatalf("empty line should not parse")
	}
}

func TestScanProgressLinesSplitsOnCarriageReturn(t *testing.T) {
	// dd rewrites its progress line in place using \r; each update must
	// surface as its own token.
	input := "100 bytes copied\r200 bytes copied\r300 bytes copied\ndone\n"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(scanProgressLines)
	var lines []string
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines = append(lines, scanner.Text())
		}
	}
	want := []string{"100 bytes copied", "200 bytes copied", "300 bytes copied", "done"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %v, want %d", len(lines), lines, len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
