// internal/wipe/runner.go
//
// The pass runner walks the configured schema one pass at a time, applying
// the per-outcome policy: device exhaustion advances to the next pass, writer
// failure aborts the whole schema, cancellation short-circuits through the
// resource release path.

package wipe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/averyk/diskpuri/internal/lifecycle"
	"github.com/averyk/diskpuri/internal/schema"
	"github.com/averyk/diskpuri/internal/source"
)

// ErrWriterFailed marks a writer that exited abnormally without reporting
// device exhaustion. Aborts the schema.
var ErrWriterFailed = errors.New("writer failed")

// RunOutcome is the terminal state of a whole schema run.
type RunOutcome string

const (
	RunCompleted RunOutcome = "completed"
	RunCancelled RunOutcome = "cancelled"
)

// Logger records run progress. It matches journal.Journal's methods.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// EventKind labels runner events delivered to an observer (the TUI).
type EventKind string

const (
	EventPassStart EventKind = "pass-start"
	EventPassLine  EventKind = "pass-line"
	EventPassDone  EventKind = "pass-done"
)

// Event is one runner notification.
type Event struct {
	Kind      EventKind
	Iteration int
	Pass      int
	Total     int
	Spec      schema.PassSpec
	Line      string
	Result    WriteResult
}

// EventFunc observes runner events. Called from the runner goroutine.
type EventFunc func(Event)

// Runner orchestrates a full schema. Passes never run concurrently.
type Runner struct {
	sources   *source.Registry
	invoker   *Invoker
	resources *lifecycle.Registry
	log       Logger
	events    EventFunc
}

// RunnerOption customizes a runner.
type RunnerOption func(*Runner)

// WithLogger attaches a journal for pass boundaries and outcomes.
func WithLogger(log Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithEvents attaches an event observer.
func WithEvents(events EventFunc) RunnerOption {
	return func(r *Runner) {
		if events != nil {
			r.events = events
		}
	}
}

// NewRunner wires a runner from its collaborators. The lifecycle registry is
// owned by the caller so an interrupt handler can trigger release as well.
func NewRunner(sources *source.Registry, invoker *Invoker, resources *lifecycle.Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		sources:   sources,
		invoker:   invoker,
		resources: resources,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run executes the schema. Loop schemas restart from the first pass after the
// last one finishes with any non-fatal outcome, until cancellation or a
// failure. Owned resources are released exactly once on every exit path.
func (r *Runner) Run(ctx context.Context, sc schema.Schema) (RunOutcome, error) {
	if err := sc.Validate(r.sources.CustomTypes()); err != nil {
		return "", err
	}
	if sc.Device == "" {
		return "", fmt.Errorf("wipe: schema has no target device: %w", schema.ErrConfig)
	}
	defer r.release()

	for iteration := 1; ; iteration++ {
		for i, pass := range sc.Passes {
			if ctx.Err() != nil {
				r.release()
				return RunCancelled, nil
			}
			result, err := r.runPass(ctx, sc.Device, iteration, i, len(sc.Passes), pass)
			if err != nil {
				r.logError("pass %d: %v", i+1, err)
				return "", err
			}
			switch result.Status {
			case StatusCompleted:
				r.logInfo("pass %d/%d completed (%s written)", i+1, len(sc.Passes), bytesLabel(result.BytesWritten))
			case StatusDeviceFull:
				// Expected terminal state for until-full passes; later passes
				// may use less space or a different pattern, so keep going.
				r.logWarn("pass %d/%d filled the device (%s written); moving to the next pass", i+1, len(sc.Passes), bytesLabel(result.BytesWritten))
			case StatusCancelled:
				r.release()
				r.logInfo("run cancelled during pass %d/%d", i+1, len(sc.Passes))
				return RunCancelled, nil
			case StatusFailed:
				err := fmt.Errorf("wipe: pass %d (%s): %w", i+1, pass.Type, ErrWriterFailed)
				r.logError("%v\n%s", err, strings.Join(result.Diagnostics, "\n"))
				return "", fmt.Errorf("%w: %s", err, strings.Join(result.Diagnostics, "; "))
			}
		}
		if !sc.Loop || len(sc.Passes) == 0 {
			break
		}
		r.logInfo("schema loop: restarting from pass 1 (iteration %d done)", iteration)
	}
	return RunCompleted, nil
}

func (r *Runner) runPass(ctx context.Context, device string, iteration, index, total int, pass schema.PassSpec) (WriteResult, error) {
	r.logInfo("running pass %d/%d: %s", index+1, total, pass.Summary())
	r.emit(Event{Kind: EventPassStart, Iteration: iteration, Pass: index + 1, Total: total, Spec: pass})

	src, err := r.sources.Open(pass, r.resources)
	if err != nil {
		return WriteResult{}, err
	}
	bs, err := pass.BlockSizeBytes()
	if err != nil {
		return WriteResult{}, err
	}
	result, err := r.invoker.Run(ctx, Request{
		Source:    src,
		Device:    device,
		BlockSize: bs,
		Count:     pass.Count,
		Progress: func(line string) {
			r.emit(Event{Kind: EventPassLine, Iteration: iteration, Pass: index + 1, Total: total, Spec: pass, Line: line})
		},
	})
	if err != nil {
		return WriteResult{}, err
	}
	r.emit(Event{Kind: EventPassDone, Iteration: iteration, Pass: index + 1, Total: total, Spec: pass, Result: result})
	return result, nil
}

// release is safe to call multiple times; the registry tracks what is left.
func (r *Runner) release() {
	if err := r.resources.ReleaseAll(); err != nil {
		r.logError("resource release: %v", err)
	}
}

func (r *Runner) emit(ev Event) {
	if r.events != nil {
		r.events(ev)
	}
}

func (r *Runner) logInfo(format string, args ...any) {
	if r.log != nil {
		r.log.Info(format, args...)
	}
}

func (r *Runner) logWarn(format string, args ...any) {
	if r.log != nil {
		r.log.Warn(format, args...)
	}
}

func (r *Runner) logError(format string, args ...any) {
	if r.log != nil {
		r.log.Error(format, args...)
	}
}
