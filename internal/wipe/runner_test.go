package wipe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/averyk/diskpuri/internal/lifecycle"
	"github.com/averyk/diskpuri/internal/schema"
	"github.com/averyk/diskpuri/internal/source"
)

type memLog struct {
	lines []string
}

func (l *memLog) Info(format string, args ...any)  { l.lines = append(l.lines, fmt.Sprintf(format, args...)) }
func (l *memLog) Warn(format string, args ...any)  { l.lines = append(l.lines, fmt.Sprintf(format, args...)) }
func (l *memLog) Error(format string, args ...any) { l.lines = append(l.lines, fmt.Sprintf(format, args...)) }

// fullOnBlockSize builds a writer that reports device exhaustion for passes
// using the given block size and completes cleanly otherwise.
func fullOnBlockSize(t *testing.T, blockSize int) *Invoker {
	t.Helper()
	body := fmt.Sprintf(`
for arg in "$@"; do
  case "$arg" in
    bs=%d) echo "dd: error writing: No space left on device" >&2; exit 1;;
  esac
done
cat >/dev/null
exit 0
`, blockSize)
	return writeFakeWriter(t, body)
}

func threePassSchema(loop bool) schema.Schema {
	return schema.Schema{
		Device: "/dev/null",
		Loop:   loop,
		Passes: []schema.PassSpec{
			{Type: schema.PassString, Content: "A", BlockSize: "1K", Count: 1},
			{Type: schema.PassOnes, BlockSize: "2K"},
			{Type: schema.PassString, Content: "B", BlockSize: "1K", Count: 1},
		},
	}
}

func TestRunnerAdvancesPastDeviceFull(t *testing.T) {
	inv := fullOnBlockSize(t, 2048)
	log := &memLog{}
	var done []Event
	runner := NewRunner(source.Defaults(), inv, lifecycle.NewRegistry(),
		WithLogger(log),
		WithEvents(func(ev Event) {
			if ev.Kind == EventPassDone {
				done = append(done, ev)
			}
		}),
	)
	outcome, err := runner.Run(context.Background(), threePassSchema(false))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome != RunCompleted {
		t.Fatalf("outcome = %s, want %s", outcome, RunCompleted)
	}
	if len(done) != 3 {
		t.Fatalf("expected 3 passes executed, got %d", len(done))
	}
	if done[1].Result.Status != StatusDeviceFull {
		t.Fatalf("pass 2 status = %s, want %s", done[1].Result.Status, StatusDeviceFull)
	}
	if done[2].Result.Status != StatusCompleted {
		t.Fatalf("pass 3 did not run after device full: %s", done[2].Result.Status)
	}
}

func TestRunnerLoopsUntilCancelled(t *testing.T) {
	inv := fullOnBlockSize(t, 2048)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var done []Event
	runner := NewRunner(source.Defaults(), inv, lifecycle.NewRegistry(),
		WithEvents(func(ev Event) {
			if ev.Kind != EventPassDone {
				return
			}
			done = append(done, ev)
			// Let the schema complete twice before interrupting.
			if ev.Iteration == 2 && ev.Pass == 3 {
				cancel()
			}
		}),
	)
	outcome, err := runner.Run(ctx, threePassSchema(true))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome != RunCancelled {
		t.Fatalf("outcome = %s, want %s", outcome, RunCancelled)
	}
	if len(done) != 6 {
		t.Fatalf("expected 6 pass executions across 2 iterations, got %d", len(done))
	}
	for i, ev := range done {
		wantStatus := StatusCompleted
		if ev.Pass == 2 {
			wantStatus = StatusDeviceFull
		}
		if ev.Result.Status != wantStatus {
			t.Fatalf("execution %d (pass %d) status = %s, want %s", i, ev.Pass, ev.Result.Status, wantStatus)
		}
	}
}

func TestRunnerAbortsOnWriterFailure(t *testing.T) {
	inv := writeFakeWriter(t, `
for arg in "$@"; do
  case "$arg" in
    bs=2048) echo "dd: unexpected error" >&2; exit 4;;
  esac
done
cat >/dev/null
exit 0
`)
	var done []Event
	runner := NewRunner(source.Defaults(), inv, lifecycle.NewRegistry(),
		WithEvents(func(ev Event) {
			if ev.Kind == EventPassDone {
				done = append(done, ev)
			}
		}),
	)
	_, err := runner.Run(context.Background(), threePassSchema(false))
	if !errors.Is(err, ErrWriterFailed) {
		t.Fatalf("expected ErrWriterFailed, got %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("pass 3 should not run after a failure; executed %d passes", len(done))
	}
}

func TestRunnerConfigErrorBeforeSpawn(t *testing.T) {
	spawned := filepath.Join(t.TempDir(), "spawned")
	inv := writeFakeWriter(t, fmt.Sprintf("echo ran >> %s\nexit 0\n", spawned))
	runner := NewRunner(source.Defaults(), inv, lifecycle.NewRegistry())
	sc := schema.Schema{
		Device: "/dev/null",
		Passes: []schema.PassSpec{{Type: schema.PassFile, Content: "/nonexistent"}},
	}
	_, err := runner.Run(context.Background(), sc)
	if !errors.Is(err, schema.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if _, statErr := os.Stat(spawned); !os.IsNotExist(statErr) {
		t.Fatalf("writer was spawned despite invalid configuration")
	}
}

func TestRunnerReleasesResourcesOnceOnCancel(t *testing.T) {
	inv := writeFakeWriter(t, "cat >/dev/null\nexit 0\n")
	resources := lifecycle.NewRegistry()
	releases := 0
	resources.Register(lifecycle.ReleaseFunc(func() error {
		releases++
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := NewRunner(source.Defaults(), inv, resources)
	outcome, err := runner.Run(ctx, threePassSchema(false))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome != RunCancelled {
		t.Fatalf("outcome = %s, want %s", outcome, RunCancelled)
	}
	// The cancellation path and the deferred release both fire; the resource
	// must still be released exactly once.
	if releases != 1 {
		t.Fatalf("resource released %d times, want 1", releases)
	}
	if err := resources.ReleaseAll(); err != nil {
		t.Fatalf("extra release: %v", err)
	}
	if releases != 1 {
		t.Fatalf("idempotent release violated: %d", releases)
	}
}

func TestRunnerEmptySchemaIsNoOp(t *testing.T) {
	inv := NewInvoker(WithWriterCommand("/nonexistent/never-run"))
	runner := NewRunner(source.Defaults(), inv, lifecycle.NewRegistry())
	outcome, err := runner.Run(context.Background(), schema.Schema{Device: "/dev/null"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome != RunCompleted {
		t.Fatalf("outcome = %s, want %s", outcome, RunCompleted)
	}
}

func TestRunnerCancellationIsBounded(t *testing.T) {
	inv := writeFakeWriter(t, "while read line; do :; done\n")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	runner := NewRunner(source.Defaults(), inv, lifecycle.NewRegistry())
	sc := schema.Schema{
		Device: "/dev/null",
		Passes: []schema.PassSpec{{Type: schema.PassZeros, BlockSize: "4K"}},
	}
	start := time.Now()
	outcome, err := runner.Run(ctx, sc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome != RunCancelled {
		t.Fatalf("outcome = %s, want %s", outcome, RunCancelled)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("cancellation took %s", elapsed)
	}
}
