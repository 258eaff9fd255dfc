package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"ragnotebook/internal/domain"
	"ragnotebook/internal/poller"
	"ragnotebook/internal/service"
)

// op is one kind of backend operation. Each has its own in-flight flag.
type op uint16

const (
	opList op = 1 << iota
	opCreate
	opDelete
	opIngest
	opHistory
	opAsk
	opSearch
	opSettings
)

var opLabels = []struct {
	op    op
	label string
}{
	{opAsk, "thinking"},
	{opSearch, "searching"},
	{opSettings, "syncing settings"},
	{opHistory, "loading history"},
	{opCreate, "creating notebook"},
	{opDelete, "deleting notebook"},
	{opIngest, "starting ingestion"},
	{opList, "refreshing"},
}

type notebooksMsg struct {
	notebooks []domain.Notebook
	err       error
	// updates is set for polled results so the listener can be re-armed.
	updates <-chan poller.Update[[]domain.Notebook]
}

type statusMsg struct {
	notebookID string
	status     domain.NotebookStatus
	err        error
	updates    <-chan poller.Update[domain.NotebookStatus]
}

type notebookCreatedMsg struct {
	notebook domain.Notebook
	err      error
}

type notebookDeletedMsg struct {
	notebook domain.Notebook
	err      error
}

type ingestedMsg struct {
	source string
	err    error
}

type historyMsg struct {
	notebookID string
	messages   []domain.Message
	err        error
}

type historyClearedMsg struct {
	notebookID string
	err        error
}

type settingsLoadedMsg struct {
	notebookID string
	config     domain.NotebookConfig
	err        error
}

type settingsSavedMsg struct {
	notebookID string
	config     domain.NotebookConfig
	err        error
}

type turnMsg struct {
	notebookID string
	turn       service.Turn
	err        error
}

type searchMsg struct {
	notebookID string
	query      string
	result     service.SearchResult
	err        error
}

func (m Model) refreshNotebooks() tea.Cmd {
	ctx, port := m.ctx, m.port
	return func() tea.Msg {
		list, err := port.Notebooks(ctx)
		return notebooksMsg{notebooks: list, err: err}
	}
}

func (m Model) createNotebook(name, description string) tea.Cmd {
	ctx, port := m.ctx, m.port
	return func() tea.Msg {
		nb, err := port.CreateNotebook(ctx, name, description)
		return notebookCreatedMsg{notebook: nb, err: err}
	}
}

func (m Model) deleteNotebook(nb domain.Notebook) tea.Cmd {
	ctx, port := m.ctx, m.port
	return func() tea.Msg {
		return notebookDeletedMsg{notebook: nb, err: port.DeleteNotebook(ctx, nb)}
	}
}

func (m Model) ingest(nb domain.Notebook, source string) tea.Cmd {
	ctx, port := m.ctx, m.port
	return func() tea.Msg {
		return ingestedMsg{source: source, err: port.Ingest(ctx, nb, source)}
	}
}

func (m Model) loadHistory(notebookID string) tea.Cmd {
	ctx, port := m.ctx, m.port
	return func() tea.Msg {
		msgs, err := port.History(ctx, notebookID)
		return historyMsg{notebookID: notebookID, messages: msgs, err: err}
	}
}

func (m Model) clearHistory(notebookID string) tea.Cmd {
	ctx, port := m.ctx, m.port
	return func() tea.Msg {
		return historyClearedMsg{notebookID: notebookID, err: port.ClearHistory(ctx, notebookID)}
	}
}

func (m Model) loadSettings(notebookID string) tea.Cmd {
	ctx, port := m.ctx, m.port
	return func() tea.Msg {
		cfg, err := port.LoadSettings(ctx, notebookID)
		return settingsLoadedMsg{notebookID: notebookID, config: cfg, err: err}
	}
}

func (m Model) saveSettings(notebookID string, cfg domain.NotebookConfig) tea.Cmd {
	ctx, port := m.ctx, m.port
	return func() tea.Msg {
		saved, err := port.SaveSettings(ctx, notebookID, cfg)
		return settingsSavedMsg{notebookID: notebookID, config: saved, err: err}
	}
}

func (m Model) setActiveStrategy(notebookID string, id domain.StrategyID) tea.Cmd {
	ctx, port := m.ctx, m.port
	return func() tea.Msg {
		saved, err := port.SetActiveStrategy(ctx, notebookID, id)
		return settingsSavedMsg{notebookID: notebookID, config: saved, err: err}
	}
}

func (m Model) ask(notebookID string, history []domain.Message, question string) tea.Cmd {
	ctx, port := m.ctx, m.port
	history = append([]domain.Message(nil), history...)
	return func() tea.Msg {
		turn, err := port.Ask(ctx, notebookID, history, question)
		return turnMsg{notebookID: notebookID, turn: turn, err: err}
	}
}

func (m Model) search(notebookID string, id domain.StrategyID, query string) tea.Cmd {
	ctx, port := m.ctx, m.port
	return func() tea.Msg {
		res, err := port.Search(ctx, notebookID, id, query)
		return searchMsg{notebookID: notebookID, query: query, result: res, err: err}
	}
}

// Polling.

func runPoller(ctx context.Context, run func(context.Context)) tea.Cmd {
	return func() tea.Msg {
		run(ctx)
		return nil
	}
}

func waitForNotebooks(ch <-chan poller.Update[[]domain.Notebook]) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return notebooksMsg{notebooks: u.Value, err: u.Err, updates: ch}
	}
}

func waitForStatus(notebookID string, ch <-chan poller.Update[domain.NotebookStatus]) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return statusMsg{notebookID: notebookID, status: u.Value, err: u.Err, updates: ch}
	}
}

func (m Model) startDashboardPolling() (Model, tea.Cmd) {
	m.stopDashboardPolling()
	ctx, cancel := context.WithCancel(m.ctx)
	p := poller.New[[]domain.Notebook]("dashboard", poller.SourceFunc[[]domain.Notebook](m.port.Notebooks), m.opts.DashboardInterval, m.opts.Logger)
	m.dashCancel = cancel
	m.dashUpdates = p.Updates()
	m.busy |= opList
	return m, tea.Batch(runPoller(ctx, p.Run), waitForNotebooks(m.dashUpdates))
}

func (m *Model) stopDashboardPolling() {
	if m.dashCancel != nil {
		m.dashCancel()
		m.dashCancel = nil
	}
	m.dashUpdates = nil
}

func (m Model) startStatusPolling(notebookID string) (Model, tea.Cmd) {
	m.stopStatusPolling()
	ctx, cancel := context.WithCancel(m.ctx)
	port := m.port
	src := poller.SourceFunc[domain.NotebookStatus](func(ctx context.Context) (domain.NotebookStatus, error) {
		return port.Status(ctx, notebookID)
	})
	p := poller.New[domain.NotebookStatus]("status", src, m.opts.StatusInterval, m.opts.Logger)
	m.statusCancel = cancel
	m.statusUpdates = p.Updates()
	return m, tea.Batch(runPoller(ctx, p.Run), waitForStatus(notebookID, m.statusUpdates))
}

func (m *Model) stopStatusPolling() {
	if m.statusCancel != nil {
		m.statusCancel()
		m.statusCancel = nil
	}
	m.statusUpdates = nil
}
