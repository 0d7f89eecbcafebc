// Package tui is the interactive terminal front-end: transcript viewport,
// emotion indicator, message editor and the save/populate panels.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/service/display"
	"github.com/zhouzirui/moodchat/internal/service/prompt"
	"github.com/zhouzirui/moodchat/internal/service/save"
	"github.com/zhouzirui/moodchat/internal/service/transcript"
	"github.com/zhouzirui/moodchat/internal/service/turn"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	editorHeight  = 3
)

type mode int

const (
	modeChat mode = iota
	modeAnalyzing
	modeDraft
	modeSaving
	modeConfirmPopulate
	modePopulating
)

// Backend is the part of the HTTP client the UI calls directly.
type Backend interface {
	PopulateInitialData(ctx context.Context) (string, error)
}

// Options wires the UI to the chat services.
type Options struct {
	// Persona is the name shown above bot messages.
	Persona    string
	Renderer   *transcript.Renderer
	Controller *turn.Controller
	Display    *display.Updater
	Saver      *save.Flow
	Backend    Backend
	Prompt     *prompt.Source
	// MarkdownStyle is a glamour style name; empty selects the auto style.
	MarkdownStyle string
	Styles        *Styles
	Logger        *zap.Logger
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx    context.Context
	logger *zap.Logger

	persona    string
	transcript *transcript.Transcript
	renderer   *transcript.Renderer
	controller *turn.Controller
	display    *display.Updater
	saver      *save.Flow
	backend    Backend
	prompt     *prompt.Source
	indicator  *Indicator

	changes chan struct{}

	styles        Styles
	markdownStyle string
	markdown      *glamour.TermRenderer

	editor      textarea.Model
	promptInput textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model

	width  int
	height int
	mode   mode

	last     *turn.Turn
	scrolls  int
	selected int
	editing  string

	draft  *draftForm
	status string
	err    error
}

// New builds the model. Display updates and transcript changes arriving on
// other goroutines are coalesced into a single wake-up for the event loop.
func New(ctx context.Context, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	styles := NewStyles(DetectTheme())
	if opts.Styles != nil {
		styles = *opts.Styles
	}
	src := opts.Prompt
	if src == nil {
		src = prompt.New("", logger)
	}

	ta := textarea.New()
	ta.Placeholder = "Type a message… (Enter to send, Alt+Enter for a new line)"
	ta.ShowLineNumbers = false
	ta.SetHeight(editorHeight)
	ta.SetWidth(defaultWidth)
	ta.CharLimit = 0
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	pi := textinput.New()
	pi.Placeholder = "optional prompt sent with every message (Tab to edit)"
	pi.Prompt = "prompt> "
	pi.SetValue(src.Get())

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.BotLabel

	m := Model{
		ctx:           ctx,
		logger:        logger,
		persona:       opts.Persona,
		transcript:    opts.Renderer.Transcript(),
		renderer:      opts.Renderer,
		controller:    opts.Controller,
		display:       opts.Display,
		saver:         opts.Saver,
		backend:       opts.Backend,
		prompt:        src,
		indicator:     NewIndicator(),
		changes:       make(chan struct{}, 1),
		styles:        styles,
		markdownStyle: opts.MarkdownStyle,
		editor:        ta,
		promptInput:   pi,
		viewport:      viewport.New(defaultWidth, defaultHeight-editorHeight-6),
		spinner:       sp,
		width:         defaultWidth,
		height:        defaultHeight,
		selected:      -1,
	}
	if m.persona == "" {
		m.persona = "Bot"
	}
	m.markdown = m.newMarkdown(defaultWidth)

	m.indicator.setNotify(m.wake)
	m.transcript.Subscribe(func(transcript.Event) { m.wake() })
	src.OnChange(func(string) { m.wake() })
	if m.display != nil {
		m.display.Attach(m.indicator)
	}

	m.refresh()
	return m
}

// wake never blocks; a pending wake-up already covers later changes.
func (m Model) wake() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

type changedMsg struct{}

func (m Model) waitForChange() tea.Cmd {
	changes := m.changes
	done := m.ctx.Done()
	return func() tea.Msg {
		select {
		case <-changes:
			return changedMsg{}
		case <-done:
			return nil
		}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.waitForChange())
}

func (m Model) newMarkdown(width int) *glamour.TermRenderer {
	style := glamour.WithAutoStyle()
	if m.markdownStyle != "" {
		style = glamour.WithStandardStyle(m.markdownStyle)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(max(width-4, 20)))
	if err != nil {
		m.logger.Warn("[tui] markdown renderer unavailable", zap.Error(err))
		return nil
	}
	return r
}

// Indicator exposes the emotion surface the model draws.
func (m Model) Indicator() *Indicator { return m.indicator }

// editorInput adapts the editor to turn.Input. Submit calls it on the
// event loop goroutine, so it may touch the textarea directly.
type editorInput struct {
	editor *textarea.Model
	prompt *prompt.Source
}

func (in editorInput) Message() string { return in.editor.Value() }
func (in editorInput) Prompt() string  { return in.prompt.Get() }
func (in editorInput) Clear()          { in.editor.Reset() }
