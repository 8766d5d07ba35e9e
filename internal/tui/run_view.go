package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/averyk/diskpuri/internal/device"
	"github.com/averyk/diskpuri/internal/schema"
	"github.com/averyk/diskpuri/internal/wipe"
)

const resultHistory = 8

type runEventMsg struct {
	event wipe.Event
}

type runFinishedMsg struct {
	outcome wipe.RunOutcome
	err     error
}

// runView drives one schema run. The runner executes in its own goroutine
// and reports through a message channel that bubbletea drains one Cmd at
// a time.
type runView struct {
	app    *App
	schema schema.Schema
	msgs   chan tea.Msg
	cancel context.CancelFunc
	spin   spinner.Model

	// deviceSize is the probed target capacity, 0 when unknown. Used for
	// percent estimates on until-full passes.
	deviceSize uint64

	iteration  int
	passIndex  int
	passTotal  int
	current    schema.PassSpec
	line       string
	passBytes  int64
	history    []string
	finished   bool
	cancelling bool
	outcome    wipe.RunOutcome
	err        error
}

func newRunView(app *App, sc schema.Schema) *runView {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	size, err := device.Size(sc.Device)
	if err != nil {
		size = 0
	}
	return &runView{
		app:        app,
		schema:     sc,
		msgs:       make(chan tea.Msg, 16),
		passTotal:  len(sc.Passes),
		spin:       spin,
		deviceSize: size,
	}
}

// Init launches the runner goroutine and begins draining its messages.
func (v *runView) Init() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	go func() {
		outcome, err := v.app.runFunc(ctx, v.schema, func(ev wipe.Event) {
			v.msgs <- runEventMsg{event: ev}
		})
		v.msgs <- runFinishedMsg{outcome: outcome, err: err}
		close(v.msgs)
	}()
	return tea.Batch(v.next(), v.spin.Tick)
}

// next waits for the next runner message.
func (v *runView) next() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-v.msgs
		if !ok {
			return nil
		}
		return msg
	}
}

func (v *runView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case runEventMsg:
		v.applyEvent(m.event)
		return v.next()

	case runFinishedMsg:
		v.finished = true
		v.outcome = m.outcome
		v.err = m.err
		return nil

	case spinner.TickMsg:
		if v.finished {
			return nil
		}
		var cmd tea.Cmd
		v.spin, cmd = v.spin.Update(m)
		return cmd

	case tea.KeyMsg:
		key := m.String()
		if v.finished {
			if key == "enter" || key == "esc" || key == "q" {
				_, cmd := v.app.returnToMainMenu()
				return cmd
			}
			return nil
		}
		if key == "ctrl+c" || key == "esc" {
			v.requestCancel()
			return nil
		}
	}
	return nil
}

func (v *runView) applyEvent(ev wipe.Event) {
	switch ev.Kind {
	case wipe.EventPassStart:
		v.iteration = ev.Iteration
		v.passIndex = ev.Pass
		v.passTotal = ev.Total
		v.current = ev.Spec
		v.line = ""
		v.passBytes = 0
	case wipe.EventPassLine:
		v.line = ev.Line
		if n, ok := wipe.ProgressBytes(ev.Line); ok {
			v.passBytes = n
		}
	case wipe.EventPassDone:
		entry := fmt.Sprintf("pass %d/%d %s: %s", ev.Pass, ev.Total, ev.Spec.Summary(), ev.Result.Status)
		v.history = append(v.history, entry)
		if len(v.history) > resultHistory {
			v.history = v.history[len(v.history)-resultHistory:]
		}
	}
}

// progressLabel estimates pass completion. Bounded passes measure against
// count*block_size, until-full passes against the probed device capacity.
func (v *runView) progressLabel() string {
	if v.passBytes <= 0 {
		return ""
	}
	target := int64(0)
	if total, err := v.current.TotalBytes(); err == nil && total > 0 {
		target = total
	} else if v.deviceSize > 0 {
		target = int64(v.deviceSize)
	}
	if target <= 0 {
		return fmt.Sprintf("%s written", humanize.IBytes(uint64(v.passBytes)))
	}
	pct := float64(v.passBytes) / float64(target) * 100
	if pct > 100 {
		pct = 100
	}
	return fmt.Sprintf("%s of %s (%.0f%%)", humanize.IBytes(uint64(v.passBytes)), humanize.IBytes(uint64(target)), pct)
}

func (v *runView) requestCancel() {
	if v.cancelling || v.cancel == nil {
		return
	}
	v.cancelling = true
	v.cancel()
}

func (v *runView) View() string {
	head := titleStyle.Render(fmt.Sprintf("Wiping %s", v.schema.Device))
	var lines []string
	if v.schema.Loop {
		lines = append(lines, fmt.Sprintf("iteration %d", max(1, v.iteration)))
	}
	if v.passIndex > 0 {
		lines = append(lines, fmt.Sprintf("pass %d of %d: %s", v.passIndex, v.passTotal, v.current.Summary()))
	}
	if v.line != "" {
		lines = append(lines, v.line)
	}
	if label := v.progressLabel(); label != "" {
		lines = append(lines, label)
	}
	if len(lines) == 0 {
		lines = append(lines, "starting writer...")
	}
	if !v.finished {
		lines[0] = v.spin.View() + lines[0]
	}
	progress := boxStyle.Render(strings.Join(lines, "\n"))

	parts := []string{head, progress}
	if len(v.history) > 0 {
		parts = append(parts, dimStyle.Render(strings.Join(v.history, "\n")))
	}
	switch {
	case v.finished && v.err != nil:
		parts = append(parts, warnStyle.Render(fmt.Sprintf("run failed: %v", v.err)))
		parts = append(parts, dimStyle.Render("enter: back to menu"))
	case v.finished && v.outcome == wipe.RunCancelled:
		parts = append(parts, warnStyle.Render("run cancelled"))
		parts = append(parts, dimStyle.Render("enter: back to menu"))
	case v.finished:
		parts = append(parts, okStyle.Render("all passes completed"))
		parts = append(parts, dimStyle.Render("enter: back to menu"))
	case v.cancelling:
		parts = append(parts, statusStyle.Render("cancelling, waiting for writer to stop..."))
	default:
		parts = append(parts, dimStyle.Render("esc: cancel run"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
