package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"ragnotebook/internal/domain"
)

type workspaceState struct {
	notebook domain.Notebook
	config   domain.NotebookConfig
	messages []domain.Message
	pending  string
	status   domain.NotebookStatus
}

func (m Model) openWorkspace(nb domain.Notebook) (tea.Model, tea.Cmd) {
	m.stopDashboardPolling()
	m.busy &^= opList
	m.screen = screenWorkspace
	m.workspace = workspaceState{notebook: nb}
	if cfg, err := m.port.Config(nb.ID); err == nil {
		m.workspace.config = cfg
	}
	m.status = ""
	m.err = ""
	m.input.Reset()
	m.input.Placeholder = "Ask a question and press Enter"
	focus := m.input.Focus()
	m.busy |= opHistory | opSettings
	m, poll := m.startStatusPolling(nb.ID)
	m = m.refreshContent()
	return m, tea.Batch(focus, poll, m.loadHistory(nb.ID), m.loadSettings(nb.ID))
}

func (m Model) closeWorkspace() (tea.Model, tea.Cmd) {
	m.stopStatusPolling()
	m.screen = screenDashboard
	m.input.Reset()
	m.input.Blur()
	m.status = ""
	m.err = ""
	return m.startDashboardPolling()
}

func (m Model) updateWorkspace(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	nbID := m.workspace.notebook.ID
	switch msg.String() {
	case "esc":
		return m.closeWorkspace()
	case "enter":
		q := strings.TrimSpace(m.input.Value())
		if q == "" || m.busy&opAsk != 0 {
			return m, nil
		}
		m.busy |= opAsk
		m.workspace.pending = q
		m.err = ""
		m.input.Reset()
		cmd := m.ask(nbID, m.workspace.messages, q)
		m = m.refreshContent()
		m.viewport.GotoBottom()
		return m, cmd
	case "ctrl+o":
		if i := m.lastInspectable(); i >= 0 {
			return m.openInspector(i), nil
		}
		m.status = "No retrieval to inspect yet"
		return m, nil
	case "ctrl+f":
		return m.openPlayground()
	case "ctrl+s":
		return m.openSettings(), nil
	case "ctrl+t":
		if m.busy&opSettings != 0 {
			return m, nil
		}
		next := m.nextStrategy(m.workspace.config.ActiveStrategyID)
		if next == "" {
			return m, nil
		}
		m.workspace.config.ActiveStrategyID = next
		m.busy |= opSettings
		m.status = "Strategy: " + string(next)
		return m, m.setActiveStrategy(nbID, next)
	case "ctrl+l":
		if m.busy&opHistory != 0 {
			return m, nil
		}
		m.busy |= opHistory
		return m, m.clearHistory(nbID)
	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) nextStrategy(current domain.StrategyID) domain.StrategyID {
	ids := m.port.Catalog().IDs()
	if len(ids) == 0 {
		return ""
	}
	for i, id := range ids {
		if id == current {
			return ids[(i+1)%len(ids)]
		}
	}
	return ids[0]
}

func inspectable(msg domain.Message) bool {
	return msg.Role == domain.RoleAssistant && !msg.IsError && len(msg.RawRetrieval) > 0
}

func (m Model) lastInspectable() int {
	return m.stepInspectable(len(m.workspace.messages), -1)
}

// stepInspectable returns the nearest inspectable message from index from in
// direction step, wrapping around the transcript, or -1 when there is none.
func (m Model) stepInspectable(from, step int) int {
	n := len(m.workspace.messages)
	for i := 1; i <= n; i++ {
		j := ((from+step*i)%n + n) % n
		if inspectable(m.workspace.messages[j]) {
			return j
		}
	}
	return -1
}

func (m Model) onTurn(msg turnMsg) Model {
	if msg.notebookID != m.workspace.notebook.ID {
		return m
	}
	m.busy &^= opAsk
	m.workspace.pending = ""
	if msg.turn.Question.ID == "" {
		// Rejected before anything was sent; the transcript is unchanged.
		if msg.err != nil {
			m.err = describeErr("Request failed", msg.err)
		}
		return m.refreshContent()
	}
	m.workspace.messages = append(m.workspace.messages, msg.turn.Question, msg.turn.Answer)
	if msg.err != nil {
		m.err = "Request failed"
	} else {
		m.status = fmt.Sprintf("%d sources", len(msg.turn.Answer.Citations))
	}
	m = m.refreshContent()
	m.viewport.GotoBottom()
	return m
}

func (m Model) onHistory(msg historyMsg) Model {
	if msg.notebookID != m.workspace.notebook.ID {
		return m
	}
	m.busy &^= opHistory
	if msg.err != nil {
		m.err = "History unavailable: " + msg.err.Error()
		return m
	}
	// Turns sent while history loaded stay after it.
	m.workspace.messages = append(msg.messages, m.workspace.messages...)
	m = m.refreshContent()
	m.viewport.GotoBottom()
	return m
}

func (m Model) onStatus(msg statusMsg) (Model, tea.Cmd) {
	if msg.updates != m.statusUpdates || msg.notebookID != m.workspace.notebook.ID {
		return m, nil
	}
	if msg.err == nil {
		m.workspace.status = msg.status
	}
	return m, waitForStatus(msg.notebookID, msg.updates)
}

func (m Model) onSettingsLoaded(msg settingsLoadedMsg) Model {
	if msg.notebookID != m.workspace.notebook.ID {
		return m
	}
	m.busy &^= opSettings
	if msg.err != nil {
		m.err = describeErr("Settings unavailable", msg.err)
	}
	if _, ok := msg.config.ActiveStrategy(); ok {
		m.workspace.config = msg.config
	}
	return m
}

func (m Model) onSettingsSaved(msg settingsSavedMsg) Model {
	if msg.notebookID != m.workspace.notebook.ID {
		return m
	}
	m.busy &^= opSettings
	if _, ok := msg.config.ActiveStrategy(); ok {
		m.workspace.config = msg.config
		m.settings.draft = cloneConfig(msg.config)
		m.settings.fields = buildFields(m.settings.draft)
	}
	if msg.err != nil {
		m.err = describeErr("Save failed", msg.err)
		return m
	}
	m.err = ""
	m.status = "Settings saved"
	return m
}

func (m Model) header() string {
	ws := m.workspace
	parts := []string{titleStyle.Render(ws.notebook.Name)}
	if st, ok := ws.config.ActiveStrategy(); ok {
		parts = append(parts, "strategy: "+st.Name)
	}
	if ws.status.Status != "" {
		parts = append(parts, fmt.Sprintf("%s · %d docs", ws.status.Status, ws.status.DocumentCount))
	}
	return strings.Join(parts, "  │  ")
}

func (m Model) transcript() string {
	ws := m.workspace
	if len(ws.messages) == 0 && ws.pending == "" {
		return dimStyle.Render("No messages yet. Ask something about this notebook.")
	}
	var b strings.Builder
	for _, msg := range ws.messages {
		switch msg.Role {
		case domain.RoleUser:
			b.WriteString(userStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Content)
		default:
			b.WriteString(assistantStyle.Render("Assistant"))
			if msg.StrategyID != "" {
				b.WriteString(dimStyle.Render(" · " + string(msg.StrategyID)))
			}
			b.WriteString("\n")
			if msg.IsError {
				b.WriteString(errorStyle.Render(msg.Content))
			} else {
				b.WriteString(m.renderMarkdown(msg.Content))
				if n := len(msg.Citations); n > 0 {
					b.WriteString("\n")
					b.WriteString(dimStyle.Render(fmt.Sprintf("%d sources · ctrl+o to inspect", n)))
				}
			}
		}
		b.WriteString("\n\n")
	}
	if ws.pending != "" {
		b.WriteString(userStyle.Render("You"))
		b.WriteString("\n")
		b.WriteString(ws.pending)
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View())
		b.WriteString(" thinking...")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) viewWorkspace() string {
	return m.header() + "\n" +
		m.viewport.View() + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		dimStyle.Render("enter send · ctrl+o inspect · ctrl+f playground · ctrl+s settings · ctrl+t strategy · ctrl+l clear · esc back")
}
