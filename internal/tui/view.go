package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/service/transcript"
)

// refresh re-renders the transcript into the viewport. It follows the
// bottom whenever the transcript asked to scroll since the last refresh.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript(m.transcript.Views()))

	if scrolls := m.transcript.Scrolls(); scrolls != m.scrolls {
		m.scrolls = scrolls
		m.viewport.GotoBottom()
	}
	if !m.promptInput.Focused() && m.promptInput.Value() != m.prompt.Get() {
		m.promptInput.SetValue(m.prompt.Get())
	}
}

func (m Model) renderTranscript(views []transcript.View) string {
	if len(views) == 0 {
		return m.styles.Muted.Render("Say hello to " + m.persona + ".")
	}

	var sb strings.Builder
	for i, v := range views {
		block := m.renderNode(v)
		if m.editable() && i == m.selected {
			block = m.styles.Selected.Render(block)
		}
		sb.WriteString(block)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) renderNode(v transcript.View) string {
	width := max(m.width-4, 10)

	if v.Sender == chat.SenderUser {
		return m.styles.UserLabel.Render("You") + "\n" +
			m.styles.UserText.Width(width).Render(v.Text)
	}

	label := m.styles.BotLabel.Render(m.persona)
	if v.Pending {
		return label + "\n" + m.styles.Pending.Render(m.spinner.View()+" typing…")
	}
	if v.Editable || v.Revealing || m.markdown == nil {
		return label + "\n" + m.styles.BotText.Width(width).Render(v.Text)
	}
	return label + "\n" + m.safeRenderMarkdown(v.Text)
}

// safeRenderMarkdown falls back to plain text when glamour fails or panics.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("[tui] markdown render panicked", zap.Any("panic", r))
			result = m.styles.BotText.Render(content)
		}
	}()

	out, err := m.markdown.Render(content)
	if err != nil {
		return m.styles.BotText.Render(content)
	}
	return strings.TrimRight(out, "\n")
}

func (m Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.renderIndicator(),
		m.viewport.View(),
	}

	switch m.mode {
	case modeDraft, modeSaving:
		sections = append(sections, m.renderDraft())
	case modeConfirmPopulate:
		sections = append(sections, m.styles.Panel.Render(
			"Populate "+m.persona+"'s initial memories? "+m.styles.Muted.Render("(y/n)")))
	default:
		sections = append(sections, m.promptInput.View(), m.editor.View())
	}

	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := "moodchat · " + m.persona
	if m.editable() {
		title += " · editing mode"
	}
	return m.styles.Header.Render(title)
}

func (m Model) renderIndicator() string {
	v, shown := m.indicator.Current()
	return renderIndicator(m.styles, v, shown, m.width)
}

func (m Model) renderFooter() string {
	switch {
	case m.err != nil:
		return m.styles.Footer.Render(m.styles.Error.Render("error: " + m.err.Error()))
	case m.status != "":
		return m.styles.Footer.Render(m.styles.Notice.Render(m.status))
	}

	hints := "enter send · alt+enter newline · tab prompt · esc cancel · ctrl+s save · ctrl+p populate · ctrl+c quit"
	if m.editable() {
		hints = "ctrl+↑/↓ select · ctrl+e edit · " + hints
	}
	if active := m.controller.Active(); active > 0 {
		hints = fmt.Sprintf("%s %d waiting · %s", m.spinner.View(), active, hints)
	}
	return m.styles.Footer.Render(hints)
}
