// internal/wipe/invoker.go
//
// The invoker executes one pass's write: it spawns the external writer with
// a structured argument list, feeds it source bytes over a pipe in bounded
// chunks, and drains its diagnostics concurrently so a full pipe buffer can
// never deadlock either side.

package wipe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrSpawn marks an external writer that could not be started at all
// (missing binary, permission denied). Fatal for the whole schema.
var ErrSpawn = errors.New("writer could not be started")

const (
	// defaultChunkSize bounds feeder memory regardless of pass size.
	defaultChunkSize = 1 << 20
	// defaultTermWait is how long a graceful termination may take before the
	// writer is killed outright.
	defaultTermWait = 5 * time.Second
	// diagnosticsTail caps how many diagnostic lines a result retains.
	diagnosticsTail = 32
)

// ProgressFunc receives writer diagnostic lines as they are read.
type ProgressFunc func(line string)

// Request describes one write invocation.
type Request struct {
	Source    io.Reader
	Device    string
	BlockSize int64
	Count     int64
	Progress  ProgressFunc
}

// Invoker runs the external writer for one pass at a time.
type Invoker struct {
	command   []string
	chunkSize int
	termWait  time.Duration
}

// InvokerOption customizes an invoker.
type InvokerOption func(*Invoker)

// WithWriterCommand overrides the writer executable and any leading
// arguments. Defaults to plain "dd".
func WithWriterCommand(command ...string) InvokerOption {
	return func(inv *Invoker) {
		if len(command) > 0 {
			inv.command = append([]string{}, command...)
		}
	}
}

// WithChunkSize overrides the feeder chunk size (tests).
func WithChunkSize(n int) InvokerOption {
	return func(inv *Invoker) {
		if n > 0 {
			inv.chunkSize = n
		}
	}
}

// WithTerminateWait overrides the graceful termination window.
func WithTerminateWait(d time.Duration) InvokerOption {
	return func(inv *Invoker) {
		if d > 0 {
			inv.termWait = d
		}
	}
}

// NewInvoker builds an invoker with defaults applied.
func NewInvoker(opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		command:   []string{"dd"},
		chunkSize: defaultChunkSize,
		termWait:  defaultTermWait,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(inv)
		}
	}
	return inv
}

// args builds the writer argument list. Arguments are passed structurally,
// never through a shell, so device paths and content cannot inject commands.
func (inv *Invoker) args(req Request) []string {
	args := append([]string{}, inv.command[1:]...)
	args = append(args,
		"of="+req.Device,
		"bs="+strconv.FormatInt(req.BlockSize, 10),
	)
	if req.Count > 0 {
		args = append(args, "count="+strconv.FormatInt(req.Count, 10))
	}
	args = append(args, "status=progress")
	return args
}

// Run executes one pass. The returned error is reserved for invocation-level
// problems (bad request, spawn failure); writer outcomes including failure
// are reported through the result status.
func (inv *Invoker) Run(ctx context.Context, req Request) (WriteResult, error) {
	if req.Source == nil {
		return WriteResult{Status: StatusFailed}, fmt.Errorf("wipe: request has no source")
	}
	if req.Device == "" {
		return WriteResult{Status: StatusFailed}, fmt.Errorf("wipe: request has no device")
	}
	if req.BlockSize <= 0 {
		return WriteResult{Status: StatusFailed}, fmt.Errorf("wipe: block size must be positive")
	}

	cmd := exec.Command(inv.command[0], inv.args(req)...)
	cmd.Stdout = io.Discard
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return WriteResult{Status: StatusFailed}, fmt.Errorf("wipe: stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return WriteResult{Status: StatusFailed}, fmt.Errorf("wipe: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return WriteResult{Status: StatusFailed}, fmt.Errorf("%w: %s: %v", ErrSpawn, inv.command[0], err)
	}

	detector := &ExhaustionDetector{}
	exhausted := make(chan struct{})
	waitDone := make(chan struct{})

	// Graceful-then-forced termination on exhaustion or cancellation.
	go func() {
		select {
		case <-waitDone:
			return
		case <-ctx.Done():
		case <-exhausted:
		}
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-waitDone:
		case <-time.After(inv.termWait):
			_ = cmd.Process.Kill()
		}
	}()

	var (
		tail     []string
		estimate int64
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		defer stdin.Close()
		buf := make([]byte, inv.chunkSize)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-exhausted:
				return nil
			default:
			}
			n, rerr := req.Source.Read(buf)
			if n > 0 {
				if _, werr := stdin.Write(buf[:n]); werr != nil {
					// The writer went away mid-feed; its exit status and the
					// detector decide what that means.
					return nil
				}
			}
			if rerr == io.EOF {
				return nil
			}
			if rerr != nil {
				return fmt.Errorf("wipe: read source: %w", rerr)
			}
		}
	})
	g.Go(func() error {
		closed := false
		scanner := bufio.NewScanner(stderr)
		scanner.Split(scanProgressLines)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			tail = append(tail, line)
			if len(tail) > diagnosticsTail {
				tail = tail[1:]
			}
			if n, ok := extractBytes(line); ok {
				estimate = n
			}
			if req.Progress != nil {
				req.Progress(line)
			}
			if detector.Observe(line) && !closed {
				closed = true
				close(exhausted)
			}
		}
		return nil
	})

	runErr := g.Wait()
	waitErr := cmd.Wait()
	close(waitDone)

	result := WriteResult{
		BytesWritten: estimate,
		Diagnostics:  append([]string{}, tail...),
	}
	switch {
	case detector.Exhausted():
		result.Status = StatusDeviceFull
	case ctx.Err() != nil:
		result.Status = StatusCancelled
	case runErr != nil:
		result.Status = StatusFailed
		result.Diagnostics = append(result.Diagnostics, runErr.Error())
	case waitErr != nil:
		result.Status = StatusFailed
		result.Diagnostics = append(result.Diagnostics, waitErr.Error())
	default:
		result.Status = StatusCompleted
	}
	return result, nil
}

// scanProgressLines splits on \n and bare \r. dd terminates in-place progress
// updates with a carriage return, so plain line scanning would batch them
// until exit.
func scanProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
