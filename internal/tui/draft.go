package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/service/save"
)

const (
	fieldTitle = iota
	fieldDescription
	fieldQuality
	fieldCount
)

var errQualityNotNumber = errors.New("quality score must be a number")

// draftForm holds the editable copy of an open save draft.
type draftForm struct {
	draft   save.Draft
	inputs  [fieldCount]textinput.Model
	focus   int
	preview string
}

func newDraftForm(d save.Draft, preview string) *draftForm {
	f := &draftForm{draft: d, preview: preview}

	f.inputs[fieldTitle] = textinput.New()
	f.inputs[fieldTitle].CharLimit = 200
	f.inputs[fieldTitle].SetValue(d.Title)

	f.inputs[fieldDescription] = textinput.New()
	f.inputs[fieldDescription].CharLimit = 500
	f.inputs[fieldDescription].SetValue(d.Description)

	f.inputs[fieldQuality] = textinput.New()
	f.inputs[fieldQuality].CharLimit = 8
	f.inputs[fieldQuality].SetValue(strconv.FormatFloat(d.QualityScore, 'f', 2, 64))

	for i := range f.inputs {
		f.inputs[i].Prompt = ""
	}
	f.inputs[fieldTitle].Focus()
	return f
}

func (f *draftForm) setFocus(i int) tea.Cmd {
	f.focus = (i + fieldCount) % fieldCount
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == f.focus {
			cmd = f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return cmd
}

// edited returns the draft with the form values applied.
func (f *draftForm) edited() (save.Draft, error) {
	d := f.draft
	d.Title = f.inputs[fieldTitle].Value()
	d.Description = f.inputs[fieldDescription].Value()

	raw := strings.TrimSpace(f.inputs[fieldQuality].Value())
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return d, errQualityNotNumber
	}
	d.QualityScore = score
	return d, d.Validate()
}

func (m Model) openDraft() tea.Cmd {
	saver := m.saver
	ctx := m.ctx
	return func() tea.Msg {
		d, err := saver.Open(ctx)
		return draftOpenedMsg{draft: d, err: err}
	}
}

func (m Model) handleDraftOpened(msg draftOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.mode = modeChat
		m.status = ""
		if errors.Is(msg.err, save.ErrNothingToSave) {
			m.status = "nothing to save yet"
		} else {
			m.err = msg.err
		}
		return m, nil
	}

	m.draft = newDraftForm(msg.draft, m.renderDraftPreview(msg.draft))
	m.mode = modeDraft
	m.err = nil
	m.status = ""
	if msg.draft.Fallback() {
		m.status = "analysis unavailable, fallback details filled in"
	}
	m.editor.Blur()
	return m, m.draft.setFocus(fieldTitle)
}

func (m Model) updateDraft(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.draft
	switch msg.Type {
	case tea.KeyEsc:
		m.saver.Cancel()
		m.draft = nil
		m.mode = modeChat
		m.err = nil
		m.status = "save cancelled"
		return m, m.editor.Focus()

	case tea.KeyTab, tea.KeyDown:
		return m, f.setFocus(f.focus + 1)

	case tea.KeyShiftTab, tea.KeyUp:
		return m, f.setFocus(f.focus - 1)

	case tea.KeyEnter:
		d, err := f.edited()
		if err != nil {
			// Nothing is sent until the form is valid.
			m.err = err
			return m, nil
		}
		m.mode = modeSaving
		m.err = nil
		m.status = "saving…"
		saver := m.saver
		ctx := m.ctx
		return m, func() tea.Msg {
			id, err := saver.Confirm(ctx, d)
			return draftSavedMsg{id: id, err: err}
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return m, cmd
}

func (m Model) handleDraftSaved(msg draftSavedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		// The draft stays open so the user can retry or cancel.
		m.mode = modeDraft
		m.status = ""
		m.err = msg.err
		return m, nil
	}
	m.draft = nil
	m.mode = modeChat
	m.err = nil
	m.status = "conversation saved (" + msg.id + ")"
	return m, m.editor.Focus()
}

// draftMarkdown lays the captured conversation out as markdown.
func draftMarkdown(d save.Draft, persona string) string {
	var sb strings.Builder
	for _, msg := range d.Messages {
		who := "You"
		if msg.Sender == chat.SenderBot {
			who = persona
		}
		fmt.Fprintf(&sb, "**%s:** %s\n\n", who, msg.Text)
	}
	if a := d.Analysis; a != nil {
		fmt.Fprintf(&sb, "---\n\n*%s · %s tone · %s depth*", a.ConversationType, a.EmotionalTone, a.ConversationDepth)
		if len(a.Topics) > 0 {
			fmt.Fprintf(&sb, " · topics: %s", strings.Join(a.Topics, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderDraftPreview(d save.Draft) string {
	md := draftMarkdown(d, m.persona)
	if m.markdown == nil {
		return md
	}
	return m.safeRenderMarkdown(md)
}

func (m Model) renderDraft() string {
	f := m.draft
	if f == nil {
		return ""
	}

	labels := [fieldCount]string{"Title", "Description", "Quality (0-1)"}
	rows := make([]string, 0, fieldCount+2)
	for i := range f.inputs {
		style := m.styles.FieldLabel
		if i == f.focus {
			style = m.styles.FieldFocus
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, style.Render(labels[i]), f.inputs[i].View()))
	}

	// Keep the preview short enough that the form stays on screen.
	preview := f.preview
	if lines := strings.Split(preview, "\n"); len(lines) > 12 {
		preview = strings.Join(lines[len(lines)-12:], "\n")
	}
	rows = append(rows, "", preview, m.styles.Muted.Render("enter save · tab next field · esc cancel"))

	return m.styles.Panel.Width(max(m.width-2, 20)).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
