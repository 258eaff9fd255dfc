package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"ragnotebook/internal/domain"
)

type prompt int

const (
	promptNone prompt = iota
	promptName
	promptDescription
	promptIngest
	promptConfirmDelete
)

type dashboardState struct {
	notebooks []domain.Notebook
	cursor    int
	prompt    prompt
	name      string
	loaded    bool
}

func (m Model) selectedNotebook() (domain.Notebook, bool) {
	if m.dash.cursor < 0 || m.dash.cursor >= len(m.dash.notebooks) {
		return domain.Notebook{}, false
	}
	return m.dash.notebooks[m.dash.cursor], true
}

func (m Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.dash.prompt != promptNone {
		return m.updateDashboardPrompt(msg)
	}
	switch msg.String() {
	case "q":
		m.Close()
		return m, tea.Quit
	case "up", "k":
		if n := len(m.dash.notebooks); n > 0 {
			m.dash.cursor = (m.dash.cursor - 1 + n) % n
		}
	case "down", "j":
		if n := len(m.dash.notebooks); n > 0 {
			m.dash.cursor = (m.dash.cursor + 1) % n
		}
	case "r":
		if m.busy&opList == 0 {
			m.busy |= opList
			return m, m.refreshNotebooks()
		}
	case "n":
		return m.openPrompt(promptName, "Notebook name")
	case "i":
		if _, ok := m.selectedNotebook(); ok {
			return m.openPrompt(promptIngest, "File path or URL to ingest")
		}
	case "d":
		if nb, ok := m.selectedNotebook(); ok && m.busy&opDelete == 0 {
			m.dash.prompt = promptConfirmDelete
			m.status = fmt.Sprintf("Delete %q? (y/n)", nb.Name)
			m.err = ""
		}
	case "enter":
		if nb, ok := m.selectedNotebook(); ok {
			return m.openWorkspace(nb)
		}
	}
	return m, nil
}

func (m Model) openPrompt(p prompt, placeholder string) (tea.Model, tea.Cmd) {
	m.dash.prompt = p
	m.err = ""
	m.input.Reset()
	m.input.Placeholder = placeholder
	focus := m.input.Focus()
	return m, focus
}

func (m Model) closePrompt() Model {
	m.dash.prompt = promptNone
	m.input.Reset()
	m.input.Blur()
	return m
}

func (m Model) updateDashboardPrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.dash.prompt == promptConfirmDelete {
		m.dash.prompt = promptNone
		nb, ok := m.selectedNotebook()
		if !ok || msg.String() != "y" {
			m.status = "Delete cancelled"
			return m, nil
		}
		m.busy |= opDelete
		m.status = ""
		return m, m.deleteNotebook(nb)
	}
	switch msg.Type {
	case tea.KeyEsc:
		return m.closePrompt(), nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		switch m.dash.prompt {
		case promptName:
			if value == "" {
				m.err = "Name is required"
				return m, nil
			}
			m.dash.name = value
			return m.openPrompt(promptDescription, "Description (optional)")
		case promptDescription:
			m = m.closePrompt()
			m.busy |= opCreate
			return m, m.createNotebook(m.dash.name, value)
		case promptIngest:
			m = m.closePrompt()
			nb, ok := m.selectedNotebook()
			if !ok || value == "" {
				return m, nil
			}
			m.busy |= opIngest
			return m, m.ingest(nb, value)
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) onNotebooks(msg notebooksMsg) (Model, tea.Cmd) {
	var next tea.Cmd
	if msg.updates != nil {
		if msg.updates != m.dashUpdates {
			return m, nil
		}
		next = waitForNotebooks(msg.updates)
	}
	m.busy &^= opList
	if msg.err != nil {
		m.err = "Refresh failed: " + msg.err.Error()
		return m, next
	}
	selected, _ := m.selectedNotebook()
	m.dash.notebooks = msg.notebooks
	m.dash.loaded = true
	m.dash.cursor = 0
	for i, nb := range msg.notebooks {
		if nb.ID == selected.ID {
			m.dash.cursor = i
			break
		}
	}
	if m.screen == screenDashboard && m.dash.prompt == promptNone {
		m.err = ""
		m.status = fmt.Sprintf("%d notebooks", len(msg.notebooks))
	}
	return m, next
}

func (m Model) onNotebookCreated(msg notebookCreatedMsg) (Model, tea.Cmd) {
	m.busy &^= opCreate
	if msg.err != nil {
		m.err = "Create failed: " + msg.err.Error()
		return m, nil
	}
	m.dash.notebooks = append(m.dash.notebooks, msg.notebook)
	m.dash.cursor = len(m.dash.notebooks) - 1
	m.status = fmt.Sprintf("Created %q", msg.notebook.Name)
	m.err = ""
	m.busy |= opList
	return m, m.refreshNotebooks()
}

func (m Model) onNotebookDeleted(msg notebookDeletedMsg) (Model, tea.Cmd) {
	m.busy &^= opDelete
	if msg.err != nil {
		m.err = "Delete failed: " + msg.err.Error()
		return m, nil
	}
	kept := m.dash.notebooks[:0:0]
	for _, nb := range m.dash.notebooks {
		if nb.ID != msg.notebook.ID {
			kept = append(kept, nb)
		}
	}
	m.dash.notebooks = kept
	if m.dash.cursor >= len(kept) {
		m.dash.cursor = max(0, len(kept)-1)
	}
	m.status = fmt.Sprintf("Deleted %q", msg.notebook.Name)
	m.err = ""
	return m, nil
}

func (m Model) viewDashboard() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Notebooks"))
	b.WriteString("\n\n")
	switch {
	case !m.dash.loaded && len(m.dash.notebooks) == 0:
		b.WriteString(dimStyle.Render("Loading..."))
	case len(m.dash.notebooks) == 0:
		b.WriteString(dimStyle.Render("No notebooks yet. Press n to create one."))
	}
	for i, nb := range m.dash.notebooks {
		line := fmt.Sprintf("%-30s %4d docs  %s", nb.Name, nb.DocumentCount, dimStyle.Render(nb.Status))
		if i == m.dash.cursor {
			b.WriteString(selectedStyle.Render("› " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.dash.prompt == promptName || m.dash.prompt == promptDescription || m.dash.prompt == promptIngest {
		b.WriteString(inputBoxStyle.Render(m.input.View()))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("enter open · n new · i ingest · d delete · r refresh · q quit"))
	return b.String()
}
