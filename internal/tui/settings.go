package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"ragnotebook/internal/domain"
	"ragnotebook/internal/strategy"
)

type fieldKind int

const (
	fieldEmbeddingModel fieldKind = iota
	fieldUnstructuredPrompt
	fieldStructuredPrompt
	fieldProvider
	fieldModel
	fieldTemperature
	fieldActiveStrategy
	fieldParam
)

// field is one editable row of the settings screen.
type field struct {
	kind     fieldKind
	label    string
	strategy domain.StrategyID
	param    string
}

type settingsState struct {
	draft   domain.NotebookConfig
	fields  []field
	cursor  int
	editing bool
}

func cloneConfig(cfg domain.NotebookConfig) domain.NotebookConfig { return strategy.Clone(cfg) }

// buildFields lists the general settings followed by the parameters of the
// active strategy.
func buildFields(cfg domain.NotebookConfig) []field {
	fields := []field{
		{kind: fieldEmbeddingModel, label: "Embedding model"},
		{kind: fieldUnstructuredPrompt, label: "Document agent prompt"},
		{kind: fieldStructuredPrompt, label: "Dataset agent prompt"},
		{kind: fieldProvider, label: "Inference provider"},
		{kind: fieldModel, label: "Inference model"},
		{kind: fieldTemperature, label: "Temperature"},
		{kind: fieldActiveStrategy, label: "Active strategy"},
	}
	if st, ok := cfg.ActiveStrategy(); ok {
		for _, k := range strategy.SortedParamKeys(st) {
			fields = append(fields, field{kind: fieldParam, label: st.Name + " · " + k, strategy: st.ID, param: k})
		}
	}
	return fields
}

func (m Model) openSettings() Model {
	m.screen = screenSettings
	m.settings = settingsState{draft: cloneConfig(m.workspace.config)}
	m.settings.fields = buildFields(m.settings.draft)
	m.input.Reset()
	m.input.Blur()
	m.err = ""
	return m
}

func fieldValue(cfg domain.NotebookConfig, f field) string {
	switch f.kind {
	case fieldEmbeddingModel:
		return cfg.EmbeddingModel
	case fieldUnstructuredPrompt:
		return cfg.SystemPrompts.Unstructured
	case fieldStructuredPrompt:
		return cfg.SystemPrompts.Structured
	case fieldProvider:
		return cfg.Inference.Provider
	case fieldModel:
		return cfg.Inference.Model
	case fieldTemperature:
		return strconv.FormatFloat(cfg.Inference.Temperature, 'f', -1, 64)
	case fieldActiveStrategy:
		return string(cfg.ActiveStrategyID)
	case fieldParam:
		return strconv.FormatFloat(cfg.Strategies[f.strategy].Params[f.param], 'f', -1, 64)
	}
	return ""
}

// applyField writes value into cfg. Numeric fields must parse and the active
// strategy must exist.
func applyField(cfg *domain.NotebookConfig, f field, value string) error {
	value = strings.TrimSpace(value)
	switch f.kind {
	case fieldEmbeddingModel:
		cfg.EmbeddingModel = value
	case fieldUnstructuredPrompt:
		cfg.SystemPrompts.Unstructured = value
	case fieldStructuredPrompt:
		cfg.SystemPrompts.Structured = value
	case fieldProvider:
		cfg.Inference.Provider = value
	case fieldModel:
		cfg.Inference.Model = value
	case fieldTemperature:
		t, err := strconv.ParseFloat(value, 64)
		if err != nil || t < 0 || t > 2 {
			return fmt.Errorf("temperature must be a number between 0 and 2")
		}
		cfg.Inference.Temperature = t
	case fieldActiveStrategy:
		id := domain.StrategyID(value)
		if _, ok := cfg.Strategies[id]; !ok {
			return fmt.Errorf("unknown strategy %q", value)
		}
		cfg.ActiveStrategyID = id
	case fieldParam:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number", f.param)
		}
		st := cfg.Strategies[f.strategy]
		st.Params[f.param] = v
		cfg.Strategies[f.strategy] = st
	}
	return nil
}

func (m Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := &m.settings
	if s.editing {
		switch msg.Type {
		case tea.KeyEsc:
			s.editing = false
			m.input.Blur()
			return m, nil
		case tea.KeyEnter:
			f := s.fields[s.cursor]
			if err := applyField(&s.draft, f, m.input.Value()); err != nil {
				m.err = err.Error()
				return m, nil
			}
			s.editing = false
			m.input.Blur()
			m.err = ""
			if f.kind == fieldActiveStrategy {
				s.fields = buildFields(s.draft)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "esc", "q":
		m.screen = screenWorkspace
		m.input.Placeholder = "Ask a question and press Enter"
		focus := m.input.Focus()
		m = m.refreshContent()
		return m, focus
	case "up", "k":
		s.cursor = (s.cursor - 1 + len(s.fields)) % len(s.fields)
	case "down", "j":
		s.cursor = (s.cursor + 1) % len(s.fields)
	case "tab":
		if s.fields[s.cursor].kind == fieldActiveStrategy {
			s.draft.ActiveStrategyID = m.nextStrategy(s.draft.ActiveStrategyID)
			s.fields = buildFields(s.draft)
		}
	case "enter":
		f := s.fields[s.cursor]
		s.editing = true
		m.input.Reset()
		m.input.Placeholder = f.label
		m.input.SetValue(fieldValue(s.draft, f))
		focus := m.input.Focus()
		return m, focus
	case "ctrl+s":
		if m.busy&opSettings != 0 {
			return m, nil
		}
		m.busy |= opSettings
		m.err = ""
		m.status = "Saving settings..."
		m.workspace.config = cloneConfig(s.draft)
		return m, m.saveSettings(m.workspace.notebook.ID, cloneConfig(s.draft))
	}
	return m, nil
}

func (m Model) viewSettings() string {
	s := m.settings
	var b strings.Builder
	b.WriteString(titleStyle.Render("Settings · " + m.workspace.notebook.Name))
	b.WriteString("\n\n")
	for i, f := range s.fields {
		value := fieldValue(s.draft, f)
		if f.kind == fieldUnstructuredPrompt || f.kind == fieldStructuredPrompt {
			value = snippet(value, 60)
		}
		if f.kind == fieldEmbeddingModel {
			if m.workspace.config.EmbeddingModelLocked {
				value += dimStyle.Render("  (locked)")
			} else {
				value += dimStyle.Render("  (locked once changed)")
			}
		}
		line := fmt.Sprintf("%-32s %s", f.label, value)
		if i == s.cursor {
			b.WriteString(selectedStyle.Render("› " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if s.editing {
		b.WriteString(inputBoxStyle.Render(m.input.View()))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("enter edit · tab next strategy · ctrl+s save · esc back"))
	return b.String()
}
