package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"ragnotebook/internal/domain"
	"ragnotebook/internal/normalize"
	"ragnotebook/internal/poller"
	"ragnotebook/internal/service"
	"ragnotebook/internal/strategy"
)

// Port is the TUI-facing subset of the workspace service.
type Port interface {
	Notebooks(ctx context.Context) ([]domain.Notebook, error)
	CreateNotebook(ctx context.Context, name, description string) (domain.Notebook, error)
	DeleteNotebook(ctx context.Context, nb domain.Notebook) error
	Ingest(ctx context.Context, nb domain.Notebook, source string) error
	Status(ctx context.Context, notebookID string) (domain.NotebookStatus, error)

	History(ctx context.Context, notebookID string) ([]domain.Message, error)
	ClearHistory(ctx context.Context, notebookID string) error
	Ask(ctx context.Context, notebookID string, history []domain.Message, question string) (service.Turn, error)
	Search(ctx context.Context, notebookID string, id domain.StrategyID, question string) (service.SearchResult, error)
	Inspect(msg domain.Message) normalize.View

	Config(notebookID string) (domain.NotebookConfig, error)
	LoadSettings(ctx context.Context, notebookID string) (domain.NotebookConfig, error)
	SaveSettings(ctx context.Context, notebookID string, cfg domain.NotebookConfig) (domain.NotebookConfig, error)
	SetActiveStrategy(ctx context.Context, notebookID string, id domain.StrategyID) (domain.NotebookConfig, error)
	Catalog() strategy.Catalog
}

var _ Port = (*service.WorkspaceService)(nil)

// Options configure the TUI.
type Options struct {
	Context           context.Context
	DashboardInterval time.Duration
	StatusInterval    time.Duration
	Logger            *zap.Logger
}

type screen int

const (
	screenDashboard screen = iota
	screenWorkspace
	screenInspector
	screenPlayground
	screenSettings
)

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	port Port
	opts Options
	ctx  context.Context

	screen        screen
	width, height int
	ready         bool

	spinner  spinner.Model
	input    textinput.Model
	viewport viewport.Model
	markdown *glamour.TermRenderer

	busy   op
	status string
	err    string

	dash      dashboardState
	workspace workspaceState
	inspector inspectorState
	play      playgroundState
	settings  settingsState

	dashCancel    context.CancelFunc
	dashUpdates   <-chan poller.Update[[]domain.Notebook]
	statusCancel  context.CancelFunc
	statusUpdates <-chan poller.Update[domain.NotebookStatus]
}

// New creates a new TUI model instance.
func New(port Port, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.DashboardInterval <= 0 {
		opts.DashboardInterval = 10 * time.Second
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		opts.Logger.Warn("markdown renderer unavailable", zap.Error(err))
		md = nil
	}
	return Model{
		port:     port,
		opts:     opts,
		ctx:      opts.Context,
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		markdown: md,
		status:   "Loading notebooks...",
	}
}

type startMsg struct{}

// Init schedules the dashboard start. Polling state lives on the model, so
// it is set up by Update.
func (m Model) Init() tea.Cmd {
	start := func() tea.Msg { return startMsg{} }
	return tea.Batch(start, m.spinner.Tick, textinput.Blink)
}

// Close stops background polling. Call it with the final model after the
// program exits.
func (m Model) Close() {
	m.stopDashboardPolling()
	m.stopStatusPolling()
}

// Update handles key, window and backend events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-6)
		m.input.Width = max(10, msg.Width-8)
		m = m.refreshContent()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.busy != 0 && m.screen == screenWorkspace {
			m = m.refreshContent()
		}
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Close()
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}
	return m.handleResult(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenWorkspace:
		return m.updateWorkspace(msg)
	case screenInspector:
		return m.updateInspector(msg)
	case screenPlayground:
		return m.updatePlayground(msg)
	case screenSettings:
		return m.updateSettings(msg)
	}
	return m.updateDashboard(msg)
}

func (m Model) handleResult(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startMsg:
		return m.startDashboardPolling()
	case notebooksMsg:
		return m.onNotebooks(msg)
	case notebookCreatedMsg:
		return m.onNotebookCreated(msg)
	case notebookDeletedMsg:
		return m.onNotebookDeleted(msg)
	case ingestedMsg:
		m.busy &^= opIngest
		if msg.err != nil {
			m.err = "Ingestion failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Ingestion started for %s", msg.source)
		}
		return m, nil
	case statusMsg:
		return m.onStatus(msg)
	case historyMsg:
		return m.onHistory(msg), nil
	case historyClearedMsg:
		m.busy &^= opHistory
		if msg.err != nil {
			m.err = "Clear history failed: " + msg.err.Error()
			return m, nil
		}
		if msg.notebookID == m.workspace.notebook.ID {
			m.workspace.messages = nil
			m.status = "History cleared"
		}
		return m.refreshContent(), nil
	case settingsLoadedMsg:
		return m.onSettingsLoaded(msg), nil
	case settingsSavedMsg:
		return m.onSettingsSaved(msg), nil
	case turnMsg:
		return m.onTurn(msg), nil
	case searchMsg:
		return m.onSearch(msg), nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the active screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var body string
	switch m.screen {
	case screenWorkspace:
		body = m.viewWorkspace()
	case screenInspector:
		body = m.viewInspector()
	case screenPlayground:
		body = m.viewPlayground()
	case screenSettings:
		body = m.viewSettings()
	default:
		body = m.viewDashboard()
	}
	return body + "\n" + m.footer()
}

func (m Model) footer() string {
	var parts []string
	if label := m.busyLabel(); label != "" {
		parts = append(parts, m.spinner.View()+" "+label)
	}
	if m.err != "" {
		parts = append(parts, errorStyle.Render(m.err))
	} else if m.status != "" {
		parts = append(parts, statusStyle.Render(m.status))
	}
	return strings.Join(parts, "  ")
}

func (m Model) busyLabel() string {
	var labels []string
	for _, l := range opLabels {
		if m.busy&l.op != 0 {
			labels = append(labels, l.label)
		}
	}
	return strings.Join(labels, ", ")
}

// refreshContent re-renders the viewport of screens that scroll.
func (m Model) refreshContent() Model {
	switch m.screen {
	case screenWorkspace:
		m.viewport.SetContent(m.transcript())
	case screenInspector:
		m.viewport.SetContent(m.inspectorContent())
	case screenPlayground:
		m.viewport.SetContent(m.playgroundContent())
	}
	return m
}

func (m Model) renderMarkdown(s string) string {
	if m.markdown == nil {
		return s
	}
	out, err := m.markdown.Render(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(out)
}

// describeErr reports remote sync failures without the prefix; the local
// state they refer to was kept.
func describeErr(prefix string, err error) string {
	if errors.Is(err, service.ErrRemoteSync) {
		return err.Error()
	}
	return prefix + ": " + err.Error()
}
