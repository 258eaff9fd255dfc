package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"ragnotebook/internal/domain"
	"ragnotebook/internal/normalize"
)

// inspectorState shows the stored retrieval of one assistant message.
type inspectorState struct {
	index   int
	message domain.Message
	query   string
	view    normalize.View
	cursor  int
	showRaw bool
}

func (m Model) openInspector(index int) Model {
	msg := m.workspace.messages[index]
	query := ""
	for i := index - 1; i >= 0; i-- {
		if m.workspace.messages[i].Role == domain.RoleUser {
			query = m.workspace.messages[i].Content
			break
		}
	}
	m.inspector = inspectorState{
		index:   index,
		message: msg,
		query:   query,
		view:    m.port.Inspect(msg),
	}
	m.screen = screenInspector
	m.input.Blur()
	m = m.refreshContent()
	m.viewport.GotoTop()
	return m
}

func (m Model) updateInspector(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	docs := Documents(m.inspector.view)
	switch msg.String() {
	case "esc", "q":
		m.screen = screenWorkspace
		focus := m.input.Focus()
		m = m.refreshContent()
		m.viewport.GotoBottom()
		return m, focus
	case "ctrl+o", "[":
		if i := m.stepInspectable(m.inspector.index, -1); i >= 0 && i != m.inspector.index {
			return m.openInspector(i), nil
		}
		return m, nil
	case "]":
		if i := m.stepInspectable(m.inspector.index, 1); i >= 0 && i != m.inspector.index {
			return m.openInspector(i), nil
		}
		return m, nil
	case "r":
		m.inspector.showRaw = !m.inspector.showRaw
		m = m.refreshContent()
		m.viewport.GotoTop()
		return m, nil
	case "j", "down":
		if len(docs) > 0 && !m.inspector.showRaw {
			m.inspector.cursor = (m.inspector.cursor + 1) % len(docs)
			return m.refreshContent(), nil
		}
	case "k", "up":
		if len(docs) > 0 && !m.inspector.showRaw {
			m.inspector.cursor = (m.inspector.cursor - 1 + len(docs)) % len(docs)
			return m.refreshContent(), nil
		}
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) inspectorContent() string {
	in := m.inspector
	if in.showRaw {
		raw := normalize.RenderRaw(in.message.RawRetrieval)
		if raw == "" {
			return dimStyle.Render("Empty response.")
		}
		return raw
	}
	return RenderView(in.view, in.query, in.cursor)
}

func (m Model) viewInspector() string {
	in := m.inspector
	pos, total := 0, 0
	for i, msg := range m.workspace.messages {
		if inspectable(msg) {
			total++
			if i == in.index {
				pos = total
			}
		}
	}
	head := fmt.Sprintf("%s  │  answer %d of %d  │  %s  │  %d documents",
		titleStyle.Render("Retrieval"), pos, total, in.message.StrategyID, in.view.Count())
	if in.query != "" {
		head += "\n" + dimStyle.Render("Q: "+in.query)
	}
	return strings.Join([]string{
		head,
		m.viewport.View(),
		dimStyle.Render("j/k select · [ ] older/newer answer · r raw JSON · esc back"),
	}, "\n")
}
