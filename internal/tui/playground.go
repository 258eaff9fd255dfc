package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"ragnotebook/internal/domain"
	"ragnotebook/internal/normalize"
	"ragnotebook/internal/service"
)

// playgroundState runs retrieval-only searches against any strategy.
type playgroundState struct {
	strategy domain.StrategyID
	query    string
	result   *service.SearchResult
	cursor   int
	showRaw  bool
}

func (m Model) openPlayground() (tea.Model, tea.Cmd) {
	m.screen = screenPlayground
	if m.play.strategy == "" {
		m.play.strategy = m.workspace.config.ActiveStrategyID
	}
	m.input.Reset()
	m.input.Placeholder = "Search query"
	m.err = ""
	m = m.refreshContent()
	focus := m.input.Focus()
	return m, focus
}

func (m Model) updatePlayground(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.screen = screenWorkspace
		m.input.Reset()
		m.input.Placeholder = "Ask a question and press Enter"
		m = m.refreshContent()
		m.viewport.GotoBottom()
		return m, nil
	case "tab":
		m.play.strategy = m.nextStrategy(m.play.strategy)
		return m, nil
	case "enter":
		q := strings.TrimSpace(m.input.Value())
		if q == "" || m.busy&opSearch != 0 {
			return m, nil
		}
		m.busy |= opSearch
		m.err = ""
		return m, m.search(m.workspace.notebook.ID, m.play.strategy, q)
	case "ctrl+r":
		m.play.showRaw = !m.play.showRaw
		m = m.refreshContent()
		m.viewport.GotoTop()
		return m, nil
	case "down":
		if docs := m.playDocuments(); len(docs) > 0 {
			m.play.cursor = (m.play.cursor + 1) % len(docs)
			return m.refreshContent(), nil
		}
		return m, nil
	case "up":
		if docs := m.playDocuments(); len(docs) > 0 {
			m.play.cursor = (m.play.cursor - 1 + len(docs)) % len(docs)
			return m.refreshContent(), nil
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) playDocuments() []normalize.RankedDocument {
	if m.play.result == nil || m.play.showRaw {
		return nil
	}
	return Documents(m.play.result.View)
}

func (m Model) onSearch(msg searchMsg) Model {
	if msg.notebookID != m.workspace.notebook.ID {
		return m
	}
	m.busy &^= opSearch
	if msg.err != nil {
		m.err = "Search failed: " + msg.err.Error()
		return m
	}
	res := msg.result
	m.play.result = &res
	m.play.query = msg.query
	m.play.cursor = 0
	m.status = fmt.Sprintf("%d documents in %s", res.View.Count(), res.Took.Round(time.Millisecond))
	m = m.refreshContent()
	m.viewport.GotoTop()
	return m
}

func (m Model) playgroundContent() string {
	if m.play.result == nil {
		return dimStyle.Render("Run a search to see what the strategy retrieves.")
	}
	if m.play.showRaw {
		return normalize.RenderRaw(m.play.result.Raw)
	}
	return RenderView(m.play.result.View, m.play.query, m.play.cursor)
}

func (m Model) viewPlayground() string {
	head := fmt.Sprintf("%s  │  strategy: %s", titleStyle.Render("Search playground"), m.play.strategy)
	return strings.Join([]string{
		head,
		m.viewport.View(),
		inputBoxStyle.Render(m.input.View()),
		dimStyle.Render("enter search · tab strategy · up/down select · ctrl+r raw JSON · esc back"),
	}, "\n")
}
