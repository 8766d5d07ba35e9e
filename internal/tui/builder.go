package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/averyk/diskpuri/internal/schema"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Padding(0, 1)
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Padding(0, 1)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50")).Padding(0, 1)
)

// builderStep is the wizard position inside the schema builder.
type builderStep int

const (
	stepDevice    builderStep = iota // target device path
	stepPassMenu                     // add pass / toggle loop / finish
	stepPassType                     // pick the pass content type
	stepContent                      // literal string or file path, when needed
	stepBlockSize                    // dd-style block size
	stepCount                        // block count, 0 for unbounded
)

// typeOption is one selectable pass type.
type typeOption struct {
	t    schema.PassType
	desc string
}

func (o typeOption) Title() string       { return string(o.t) }
func (o typeOption) Description() string { return o.desc }
func (o typeOption) FilterValue() string { return string(o.t) }

// builderAction is one entry in the pass menu.
type builderAction struct {
	title string
	desc  string
}

func (o builderAction) Title() string       { return o.title }
func (o builderAction) Description() string { return o.desc }
func (o builderAction) FilterValue() string { return o.title }

// builderView assembles a schema one pass at a time.
type builderView struct {
	app      *App
	step     builderStep
	schema   schema.Schema
	pending  schema.PassSpec
	input    textinput.Model
	passMenu list.Model
	typeMenu list.Model
	errMsg   string
}

func newBuilderView(app *App) *builderView {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 256
	input.Placeholder = "/dev/sdX"
	input.Focus()

	passMenu := list.New(buildPassActions(false), list.NewDefaultDelegate(), 0, 0)
	passMenu.Title = "Schema Builder"
	passMenu.SetShowStatusBar(false)
	passMenu.SetFilteringEnabled(false)

	typeMenu := list.New(buildTypeOptions(app), list.NewDefaultDelegate(), 0, 0)
	typeMenu.Title = "Pass Type"
	typeMenu.SetShowStatusBar(false)
	typeMenu.SetFilteringEnabled(false)

	return &builderView{
		app:      app,
		step:     stepDevice,
		input:    input,
		passMenu: passMenu,
		typeMenu: typeMenu,
	}
}

func buildPassActions(loop bool) []list.Item {
	loopDesc := "Run the schema once"
	if loop {
		loopDesc = "Repeat the schema until cancelled"
	}
	return []list.Item{
		builderAction{title: "Add Pass", desc: "Append another overwrite pass"},
		builderAction{title: "Toggle Loop", desc: loopDesc},
		builderAction{title: "Finish", desc: "Review and confirm the schema"},
	}
}

func buildTypeOptions(app *App) []list.Item {
	descs := map[schema.PassType]string{
		schema.PassRandom: "Pseudorandom bytes from the kernel",
		schema.PassZeros:  "All zero bytes",
		schema.PassOnes:   "All 0xFF bytes",
		schema.PassString: "A literal string, repeated",
		schema.PassFile:   "Contents of a file, repeated",
	}
	var items []list.Item
	for _, t := range app.sources.Types() {
		desc, ok := descs[t]
		if !ok {
			desc = "Custom pattern plugin"
		}
		items = append(items, typeOption{t: t, desc: desc})
	}
	return items
}

func (v *builderView) setSize(width, height int) {
	v.passMenu.SetSize(max(0, width-6), max(0, height-12))
	v.typeMenu.SetSize(max(0, width-6), max(0, height-12))
}

func (v *builderView) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		return v.handleEnter()
	}
	var cmd tea.Cmd
	switch v.step {
	case stepDevice, stepContent, stepBlockSize, stepCount:
		v.input, cmd = v.input.Update(msg)
	case stepPassMenu:
		v.passMenu, cmd = v.passMenu.Update(msg)
	case stepPassType:
		v.typeMenu, cmd = v.typeMenu.Update(msg)
	}
	return cmd
}

func (v *builderView) handleEnter() tea.Cmd {
	v.errMsg = ""
	switch v.step {
	case stepDevice:
		device := strings.TrimSpace(v.input.Value())
		if device == "" {
			v.errMsg = "a target device is required"
			return nil
		}
		v.schema.Device = device
		v.step = stepPassMenu
	case stepPassMenu:
		action, ok := v.passMenu.SelectedItem().(builderAction)
		if !ok {
			return nil
		}
		switch action.title {
		case "Add Pass":
			v.pending = schema.PassSpec{}
			v.step = stepPassType
		case "Toggle Loop":
			v.schema.Loop = !v.schema.Loop
			v.passMenu.SetItems(buildPassActions(v.schema.Loop))
		case "Finish":
			if len(v.schema.Passes) == 0 {
				v.errMsg = "add at least one pass first"
				return nil
			}
			_, cmd := v.app.confirmSchema(v.schema)
			return cmd
		}
	case stepPassType:
		option, ok := v.typeMenu.SelectedItem().(typeOption)
		if !ok {
			return nil
		}
		v.pending.Type = option.t
		if option.t.NeedsContent() {
			v.prompt("pass content", contentPlaceholder(option.t))
			v.step = stepContent
		} else {
			v.prompt("block size", schema.DefaultBlockSize)
			v.step = stepBlockSize
		}
	case stepContent:
		content := v.input.Value()
		if strings.TrimSpace(content) == "" {
			v.errMsg = "content cannot be empty"
			return nil
		}
		v.pending.Content = content
		v.prompt("block size", schema.DefaultBlockSize)
		v.step = stepBlockSize
	case stepBlockSize:
		size := strings.TrimSpace(v.input.Value())
		if size == "" {
			size = v.app.config.Settings.DefaultBlockSize
		}
		if _, err := schema.ParseSize(size); err != nil {
			v.errMsg = err.Error()
			return nil
		}
		v.pending.BlockSize = size
		v.prompt("block count (0 = until device is full)", "0")
		v.step = stepCount
	case stepCount:
		raw := strings.TrimSpace(v.input.Value())
		if raw == "" {
			raw = "0"
		}
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || count < 0 {
			v.errMsg = "count must be a non-negative integer"
			return nil
		}
		v.pending.Count = count
		v.schema.Passes = append(v.schema.Passes, v.pending)
		v.pending = schema.PassSpec{}
		v.step = stepPassMenu
	}
	return nil
}

func contentPlaceholder(t schema.PassType) string {
	if t == schema.PassFile {
		return "/path/to/pattern.bin"
	}
	return "text to repeat"
}

// prompt resets the shared text input for the next wizard question.
func (v *builderView) prompt(label, placeholder string) {
	v.input.SetValue("")
	v.input.Placeholder = placeholder
	v.input.Prompt = fmt.Sprintf("%s > ", label)
	v.input.Focus()
}

func (v *builderView) View() string {
	panel := renderSchemaPanel(v.schema)
	var active string
	switch v.step {
	case stepDevice:
		active = lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Target Device"),
			v.input.View(),
			dimStyle.Render("block device such as /dev/sdb, or a file path"),
		)
	case stepPassMenu:
		active = v.passMenu.View()
	case stepPassType:
		active = v.typeMenu.View()
	case stepContent, stepBlockSize, stepCount:
		active = lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(fmt.Sprintf("New %s Pass", v.pending.Type)),
			v.input.View(),
		)
	}
	parts := []string{active, panel}
	if v.errMsg != "" {
		parts = append(parts, warnStyle.Render(v.errMsg))
	}
	parts = append(parts, dimStyle.Render("esc: abandon builder"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
