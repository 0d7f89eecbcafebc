package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/service/save"
	"github.com/zhouzirui/moodchat/internal/service/transcript"
	"github.com/zhouzirui/moodchat/internal/service/turn"
)

type draftOpenedMsg struct {
	draft save.Draft
	err   error
}

type draftSavedMsg struct {
	id  string
	err error
}

type populatedMsg struct {
	message string
	err     error
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case changedMsg:
		m.refresh()
		return m, m.waitForChange()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.controller.Active() > 0 {
			m.refresh()
		}
		return m, cmd

	case draftOpenedMsg:
		return m.handleDraftOpened(msg)

	case draftSavedMsg:
		return m.handleDraftSaved(msg)

	case populatedMsg:
		m.mode = modeChat
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
		} else {
			m.err = nil
			m.status = msg.message
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m.quit()
		}
		switch m.mode {
		case modeDraft:
			return m.updateDraft(msg)
		case modeConfirmPopulate:
			return m.updateConfirmPopulate(msg)
		case modeAnalyzing, modeSaving, modePopulating:
			return m, nil
		}
		return m.updateChat(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.saver != nil {
		m.saver.Cancel()
	}
	m.controller.Close()
	return m, tea.Quit
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.promptInput.Focused() {
		return m.updatePrompt(msg)
	}

	switch msg.Type {
	case tea.KeyEnter:
		// Alt+Enter and pasted newlines stay in the editor.
		if !turn.IsSubmitKey(msg.Type.String(), msg.Alt || msg.Paste) {
			m.editor.InsertString("\n")
			return m, nil
		}
		if m.editing != "" {
			return m.commitEdit()
		}
		return m.submit()

	case tea.KeyTab:
		m.editor.Blur()
		m.promptInput.SetValue(m.prompt.Get())
		m.promptInput.CursorEnd()
		return m, m.promptInput.Focus()

	case tea.KeyEsc:
		if m.editing != "" {
			m.editing = ""
			m.editor.Reset()
			m.status = "edit discarded"
			return m, nil
		}
		if m.last != nil && !isDone(m.last) {
			m.last.Cancel()
			m.status = "reply cancelled"
		}
		return m, nil

	case tea.KeyCtrlS:
		if m.saver == nil {
			return m, nil
		}
		m.mode = modeAnalyzing
		m.err = nil
		m.status = "analyzing conversation…"
		return m, m.openDraft()

	case tea.KeyCtrlP:
		if m.backend == nil {
			return m, nil
		}
		m.mode = modeConfirmPopulate
		m.err = nil
		m.status = ""
		return m, nil

	case tea.KeyCtrlL:
		m.transcript.Clear()
		m.selected = -1
		m.editing = ""
		return m, nil

	case tea.KeyCtrlUp, tea.KeyCtrlDown:
		if m.editable() {
			m.moveSelection(msg.Type == tea.KeyCtrlUp)
			m.refresh()
		}
		return m, nil

	case tea.KeyCtrlE:
		if m.editable() {
			m.beginEdit()
		}
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyTab:
		m.prompt.Set(m.promptInput.Value())
		m.promptInput.Blur()
		return m, m.editor.Focus()
	case tea.KeyEsc:
		m.promptInput.SetValue(m.prompt.Get())
		m.promptInput.Blur()
		return m, m.editor.Focus()
	}
	var cmd tea.Cmd
	m.promptInput, cmd = m.promptInput.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	in := editorInput{editor: &m.editor, prompt: m.prompt}
	t, err := m.controller.Submit(m.ctx, in)
	switch {
	case errors.Is(err, turn.ErrEmptyInput):
		return m, nil
	case errors.Is(err, turn.ErrTurnInFlight):
		m.status = "still waiting for the previous reply"
		return m, nil
	case err != nil:
		m.logger.Warn("[tui] submit failed", zap.Error(err))
		m.err = err
		return m, nil
	}

	m.last = t
	m.err = nil
	m.status = ""
	m.refresh()
	return m, nil
}

func (m Model) updateConfirmPopulate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = modePopulating
		m.status = "populating initial data…"
		backend := m.backend
		ctx := m.ctx
		return m, func() tea.Msg {
			text, err := backend.PopulateInitialData(ctx)
			if err != nil {
				return populatedMsg{err: fmt.Errorf("populate initial data: %w", err)}
			}
			return populatedMsg{message: text}
		}
	case "n", "N", "esc":
		m.mode = modeChat
		m.status = "populate cancelled"
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	m.editor.SetWidth(width)
	m.promptInput.Width = max(width-len(m.promptInput.Prompt)-2, 10)
	m.viewport.Width = width
	m.viewport.Height = max(height-editorHeight-chromeHeight, 3)
	m.markdown = m.newMarkdown(width)
	m.refresh()
}

// chromeHeight is header, indicator box, prompt line and footer.
const chromeHeight = 7

func (m Model) editable() bool {
	return m.renderer.Mode() == transcript.ModeEditable
}

func (m *Model) moveSelection(up bool) {
	views := m.transcript.Views()
	if len(views) == 0 {
		m.selected = -1
		return
	}
	switch {
	case m.selected < 0 || m.selected >= len(views):
		m.selected = len(views) - 1
	case up && m.selected > 0:
		m.selected--
	case !up && m.selected < len(views)-1:
		m.selected++
	}
}

func (m *Model) beginEdit() {
	views := m.transcript.Views()
	if m.selected < 0 || m.selected >= len(views) || views[m.selected].Pending {
		m.status = "select a message with Ctrl+Up/Down first"
		return
	}
	v := views[m.selected]
	m.editing = v.ID
	m.editor.SetValue(v.Text)
	m.status = "editing message, Enter to apply, Esc to discard"
}

func (m Model) commitEdit() (tea.Model, tea.Cmd) {
	id := m.editing
	m.editing = ""
	node, ok := m.transcript.Node(id)
	if !ok {
		m.err = errors.New("message is no longer in the conversation")
		m.editor.Reset()
		return m, nil
	}
	if err := node.SetText(m.editor.Value()); err != nil {
		m.err = err
		return m, nil
	}
	m.editor.Reset()
	m.err = nil
	m.status = "message updated"
	m.refresh()
	return m, nil
}

func isDone(t *turn.Turn) bool {
	select {
	case <-t.Done():
		return true
	default:
		return false
	}
}
