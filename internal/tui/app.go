// internal/tui/app.go
//
// This is the interactive terminal interface for diskpuri. It uses
// bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/averyk/diskpuri/internal/config"
	"github.com/averyk/diskpuri/internal/journal"
	"github.com/averyk/diskpuri/internal/lifecycle"
	"github.com/averyk/diskpuri/internal/logging"
	"github.com/averyk/diskpuri/internal/schema"
	"github.com/averyk/diskpuri/internal/source"
	"github.com/averyk/diskpuri/internal/wipe"
	"github.com/averyk/diskpuri/plugins"
)

// appState represents which "screen" we're on
type appState int

const (
	stateMainMenu   appState = iota // Main menu with "New Wipe", etc.
	stateBuilder                    // Interactive schema builder
	stateSchemaPick                 // Saved schema picker
	stateConfirm                    // Final confirmation before writing
	stateRunning                    // Pass run in progress
	stateJournal                    // Journal tail viewer
)

const journalTailLines = 20

// RunFunc executes a schema and reports events. The default implementation
// drives an external writer process; tests substitute their own.
type RunFunc func(ctx context.Context, sc schema.Schema, events wipe.EventFunc) (wipe.RunOutcome, error)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithRunFunc overrides how confirmed schemas are executed.
func WithRunFunc(run RunFunc) AppOption {
	return func(a *App) {
		if run != nil {
			a.runFunc = run
		}
	}
}

// WithSourceRegistry replaces the content source registry.
func WithSourceRegistry(reg *source.Registry) AppOption {
	return func(a *App) {
		if reg != nil {
			a.sources = reg
		}
	}
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state   appState
	config  *config.Config
	sources *source.Registry
	journal *journal.Journal
	debug   *logging.Logger
	runFunc RunFunc

	// UI components
	mainMenu   list.Model
	schemaMenu list.Model
	builder    *builderView
	runView    *runView

	schema    schema.Schema // the schema being assembled or confirmed
	statusMsg string        // status message under the active view
	err       error

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// menuItem implements list.Item interface for our menu items
type menuItem struct {
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// schemaOption is one saved schema file in the picker.
type schemaOption struct {
	name string
	path string
	desc string
}

func (o schemaOption) Title() string       { return o.name }
func (o schemaOption) Description() string { return o.desc }
func (o schemaOption) FilterValue() string { return o.name }

// NewApp creates a new App instance rooted at workDir.
func NewApp(workDir string, opts ...AppOption) (*App, error) {
	if err := config.InitDir(workDir); err != nil {
		return nil, err
	}
	cfg, err := config.New(workDir)
	if err != nil {
		return nil, err
	}
	jnl, err := journal.New(cfg.JournalPath())
	if err != nil {
		return nil, fmt.Errorf("tui: open journal: %w", err)
	}
	debug, err := logging.New(workDir)
	if err != nil {
		return nil, err
	}
	debug.Printf("session opened, writer command: %s", cfg.Settings.Writer)

	sources := source.Defaults()
	defs, err := plugins.LoadDir(cfg.PatternsDir())
	if err != nil {
		debug.Printf("pattern plugins unavailable: %v", err)
	} else if err := plugins.Install(sources, defs); err != nil {
		debug.Printf("pattern plugins rejected: %v", err)
	} else if len(defs) > 0 {
		debug.Printf("loaded %d pattern plugins", len(defs))
	}

	mainMenu := list.New(buildMainMenu(), list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "◉ DISKPURI"
	mainMenu.SetShowStatusBar(false)
	mainMenu.SetFilteringEnabled(false)
	schemaMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	schemaMenu.Title = "Saved Schemas"
	schemaMenu.SetShowStatusBar(false)
	schemaMenu.SetFilteringEnabled(false)

	app := &App{
		state:      stateMainMenu,
		config:     cfg,
		sources:    sources,
		journal:    jnl,
		debug:      debug,
		mainMenu:   mainMenu,
		schemaMenu: schemaMenu,
	}
	app.runFunc = app.defaultRunFunc
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app, nil
}

func buildMainMenu() []list.Item {
	return []list.Item{
		menuItem{title: "New Wipe", desc: "Build an overwrite schema pass by pass"},
		menuItem{title: "Load Schema", desc: "Run a schema saved earlier"},
		menuItem{title: "View Journal", desc: "Recent run history"},
		menuItem{title: "Exit", desc: "Quit diskpuri"},
	}
}

// defaultRunFunc wires the real writer pipeline from the loaded settings.
func (a *App) defaultRunFunc(ctx context.Context, sc schema.Schema, events wipe.EventFunc) (wipe.RunOutcome, error) {
	invoker := wipe.NewInvoker(
		wipe.WithWriterCommand(a.config.WriterCommand()...),
		wipe.WithTerminateWait(time.Duration(a.config.Settings.TerminateWaitSeconds)*time.Second),
	)
	runner := wipe.NewRunner(a.sources, invoker, lifecycle.NewRegistry(),
		wipe.WithLogger(a.journal),
		wipe.WithEvents(events),
	)
	a.journal.StartRun(sc.Device, len(sc.Passes), sc.Loop)
	return runner.Run(ctx, sc)
}

// refreshSchemaMenu rescans the schemas directory.
func (a *App) refreshSchemaMenu() error {
	entries, err := os.ReadDir(a.config.SchemasDir())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("tui: list schemas: %w", err)
	}
	var options []schemaOption
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(a.config.SchemasDir(), name)
		option := schemaOption{name: strings.TrimSuffix(name, ext), path: path}
		if sc, err := schema.Load(path, a.sources.CustomTypes()); err != nil {
			option.desc = fmt.Sprintf("unreadable: %v", err)
		} else {
			option.desc = describeSchema(sc)
		}
		options = append(options, option)
	}
	sort.Slice(options, func(i, j int) bool { return options[i].name < options[j].name })
	items := make([]list.Item, len(options))
	for i := range options {
		items[i] = options[i]
	}
	a.schemaMenu.SetItems(items)
	return nil
}

func describeSchema(sc schema.Schema) string {
	parts := []string{fmt.Sprintf("%d passes", len(sc.Passes))}
	if sc.Device != "" {
		parts = append(parts, sc.Device)
	}
	if sc.Loop {
		parts = append(parts, "loop")
	}
	return strings.Join(parts, " · ")
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-8))
		a.schemaMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-8))
		if a.builder != nil {
			a.builder.setSize(msg.Width, msg.Height)
		}
		return a, nil

	case runEventMsg, runFinishedMsg:
		if a.runView != nil {
			return a, a.runView.Update(msg)
		}
		return a, nil

	case tea.KeyMsg:
		// The run view owns the keyboard while a wipe is active.
		if a.state == stateRunning && a.runView != nil {
			return a, a.runView.Update(msg)
		}
		key := msg.String()
		switch key {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.state == stateMainMenu {
				return a, tea.Quit
			}
		case "esc":
			if a.state != stateMainMenu {
				return a.returnToMainMenu()
			}
		case "s":
			if a.state == stateConfirm {
				a.saveCurrentSchema()
				return a, nil
			}
		case "enter":
			switch a.state {
			case stateMainMenu:
				return a.handleMainMenuSelection()
			case stateSchemaPick:
				return a.handleSchemaSelection()
			case stateConfirm:
				return a.startRun(a.schema)
			case stateJournal:
				return a.returnToMainMenu()
			}
		}
	}

	var cmds []tea.Cmd
	switch a.state {
	case stateMainMenu:
		var menuCmd tea.Cmd
		a.mainMenu, menuCmd = a.mainMenu.Update(msg)
		if menuCmd != nil {
			cmds = append(cmds, menuCmd)
		}
	case stateSchemaPick:
		var menuCmd tea.Cmd
		a.schemaMenu, menuCmd = a.schemaMenu.Update(msg)
		if menuCmd != nil {
			cmds = append(cmds, menuCmd)
		}
	case stateBuilder:
		if a.builder != nil {
			if cmd := a.builder.Update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	case stateRunning:
		if a.runView != nil {
			if cmd := a.runView.Update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	}
	return a, tea.Batch(cmds...)
}

func (a *App) handleMainMenuSelection() (tea.Model, tea.Cmd) {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}
	switch item.title {
	case "New Wipe":
		a.schema = schema.Schema{}
		a.builder = newBuilderView(a)
		a.builder.setSize(a.width, a.height)
		a.state = stateBuilder
		a.statusMsg = ""
		return a, nil
	case "Load Schema":
		if err := a.refreshSchemaMenu(); err != nil {
			a.statusMsg = err.Error()
			return a, nil
		}
		a.state = stateSchemaPick
		a.statusMsg = ""
		return a, nil
	case "View Journal":
		a.state = stateJournal
		return a, nil
	case "Exit":
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) handleSchemaSelection() (tea.Model, tea.Cmd) {
	option, ok := a.schemaMenu.SelectedItem().(schemaOption)
	if !ok {
		return a, nil
	}
	sc, err := schema.Load(option.path, a.sources.CustomTypes())
	if err != nil {
		a.statusMsg = fmt.Sprintf("cannot load %s: %v", option.name, err)
		return a, nil
	}
	a.schema = sc
	a.state = stateConfirm
	a.statusMsg = ""
	return a, nil
}

// confirmSchema moves an assembled schema to the confirmation screen.
// Called by the builder once the user finishes adding passes.
func (a *App) confirmSchema(sc schema.Schema) (tea.Model, tea.Cmd) {
	a.schema = sc
	a.state = stateConfirm
	a.statusMsg = ""
	return a, nil
}

// startRun validates the schema and hands control to the run view.
func (a *App) startRun(sc schema.Schema) (tea.Model, tea.Cmd) {
	if err := sc.Validate(a.sources.CustomTypes()); err != nil {
		a.statusMsg = err.Error()
		return a, nil
	}
	if strings.TrimSpace(sc.Device) == "" {
		a.statusMsg = "no target device set"
		return a, nil
	}
	a.debug.Printf("starting run: %s", describeSchema(sc))
	a.runView = newRunView(a, sc)
	a.state = stateRunning
	a.statusMsg = ""
	return a, a.runView.Init()
}

func (a *App) saveCurrentSchema() {
	name := fmt.Sprintf("schema-%s.yaml", time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(a.config.SchemasDir(), name)
	if err := a.schema.Save(path); err != nil {
		a.statusMsg = fmt.Sprintf("save failed: %v", err)
		return
	}
	a.statusMsg = fmt.Sprintf("saved as %s", name)
	a.journal.Info("schema saved to %s", path)
}

func (a *App) returnToMainMenu() (tea.Model, tea.Cmd) {
	a.state = stateMainMenu
	a.builder = nil
	a.runView = nil
	a.statusMsg = ""
	return a, nil
}

// View renders the current screen.
func (a *App) View() string {
	var body string
	switch a.state {
	case stateMainMenu:
		body = a.mainMenu.View()
	case stateBuilder:
		if a.builder != nil {
			body = a.builder.View()
		}
	case stateSchemaPick:
		if len(a.schemaMenu.Items()) == 0 {
			body = dimStyle.Render("No saved schemas yet. Build one with New Wipe.")
		} else {
			body = a.schemaMenu.View()
		}
	case stateConfirm:
		body = a.renderConfirm()
	case stateRunning:
		if a.runView != nil {
			body = a.runView.View()
		}
	case stateJournal:
		body = a.renderJournal()
	}
	if a.statusMsg != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, statusStyle.Render(a.statusMsg))
	}
	return body
}

func (a *App) renderConfirm() string {
	head := titleStyle.Render("Confirm Wipe")
	warn := warnStyle.Render(fmt.Sprintf("ALL DATA ON %s WILL BE DESTROYED", a.schema.Device))
	panel := renderSchemaPanel(a.schema)
	hint := dimStyle.Render("enter: start · s: save schema · esc: back")
	return lipgloss.JoinVertical(lipgloss.Left, head, warn, panel, hint)
}

func (a *App) renderJournal() string {
	head := titleStyle.Render("Run Journal")
	lines := a.journal.Tail(journalTailLines)
	if len(lines) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, head, dimStyle.Render("No runs recorded yet."))
	}
	body := boxStyle.Render(strings.Join(lines, "\n"))
	hint := dimStyle.Render("esc: back")
	return lipgloss.JoinVertical(lipgloss.Left, head, body, hint)
}

// renderSchemaPanel shows the assembled passes in a bordered box.
func renderSchemaPanel(sc schema.Schema) string {
	var lines []string
	if sc.Device != "" {
		lines = append(lines, fmt.Sprintf("target: %s", sc.Device))
	}
	for i, pass := range sc.Passes {
		lines = append(lines, fmt.Sprintf("%2d. %s", i+1, pass.Summary()))
	}
	if len(sc.Passes) == 0 {
		lines = append(lines, "(no passes yet)")
	}
	if sc.Loop {
		lines = append(lines, "loop: repeat schema until cancelled")
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
