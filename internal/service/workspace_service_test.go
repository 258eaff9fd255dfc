package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ragnotebook/internal/configstore/memory"
	"ragnotebook/internal/domain"
	"ragnotebook/internal/normalize"
	"ragnotebook/internal/strategy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeHooks is an in-memory backend. Unset funcs succeed with zero values.
type fakeHooks struct {
	mu sync.Mutex

	retrieve func(ctx context.Context, endpoint string, q domain.Question) (json.RawMessage, error)
	generate func(ctx context.Context, endpoint string, q domain.AgentQuestion) (string, error)

	notebooks  []domain.Notebook
	details    map[string]map[string]any
	deleted    []string
	ingested   []string
	saved      []domain.Message
	history    []domain.Message
	cleared    int
	pushed     map[string]domain.NotebookConfig
	remote     map[string]any
	pullErr    error
	pushErr    error
	status     domain.NotebookStatus
	agentCalls []domain.AgentQuestion
}

func (f *fakeHooks) Retrieve(ctx context.Context, endpoint string, q domain.Question) (json.RawMessage, error) {
	if f.retrieve == nil {
		return json.RawMessage(`{}`), nil
	}
	return f.retrieve(ctx, endpoint, q)
}

func (f *fakeHooks) Generate(ctx context.Context, endpoint string, q domain.AgentQuestion) (string, error) {
	f.mu.Lock()
	f.agentCalls = append(f.agentCalls, q)
	f.mu.Unlock()
	if f.generate == nil {
		return "", nil
	}
	return f.generate(ctx, endpoint, q)
}

func (f *fakeHooks) CreateNotebook(ctx context.Context, name, description string) (domain.Notebook, error) {
	return domain.Notebook{ID: "nb-new", Name: name, Description: description}, nil
}

func (f *fakeHooks) ListNotebooks(ctx context.Context) ([]domain.Notebook, error) {
	return append([]domain.Notebook(nil), f.notebooks...), nil
}

func (f *fakeHooks) NotebookDetails(ctx context.Context, nb domain.Notebook) (map[string]any, error) {
	d, ok := f.details[nb.ID]
	if !ok {
		return nil, errors.New("no details")
	}
	return d, nil
}

func (f *fakeHooks) DeleteNotebook(ctx context.Context, nb domain.Notebook) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, nb.ID)
	return nil
}

func (f *fakeHooks) NotebookStatus(ctx context.Context, notebookID string) (domain.NotebookStatus, error) {
	return f.status, nil
}

func (f *fakeHooks) Ingest(ctx context.Context, nb domain.Notebook, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, source)
	return nil
}

func (f *fakeHooks) SaveMessage(ctx context.Context, notebookID string, msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, msg)
	return nil
}

func (f *fakeHooks) PullHistory(ctx context.Context, notebookID string) ([]domain.Message, error) {
	return f.history, nil
}

func (f *fakeHooks) ClearHistory(ctx context.Context, notebookID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return nil
}

func (f *fakeHooks) PushSettings(ctx context.Context, notebookID string, cfg domain.NotebookConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	if f.pushed == nil {
		f.pushed = map[string]domain.NotebookConfig{}
	}
	f.pushed[notebookID] = cfg
	return nil
}

func (f *fakeHooks) PullSettings(ctx context.Context, notebookID string) (map[string]any, error) {
	return f.remote, f.pullErr
}

func (f *fakeHooks) savedMessages() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.saved...)
}

func newTestService(hooks *fakeHooks) (*WorkspaceService, *memory.Storage) {
	store := memory.NewStorage()
	n := 0
	svc := NewWorkspaceService(hooks, store, strategy.NewCatalog(nil, nil), Options{
		Now: func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		NewID: func() string {
			n++
			return fmt.Sprintf("m%d", n)
		},
	})
	return svc, store
}

func TestAsk_JoinsBothRequests(t *testing.T) {
	hooks := &fakeHooks{
		retrieve: func(ctx context.Context, endpoint string, q domain.Question) (json.RawMessage, error) {
			assert.Equal(t, "fusion-retrieval", endpoint)
			assert.Equal(t, "What is the capital?", q.Question)
			assert.Equal(t, domain.StrategyFusion, q.ActiveStrategyID)
			assert.Len(t, q.StrategiesConfig, 6)
			return json.RawMessage(`{"output":[
				{"text":"Paris is the capital.","score":0.92},
				{"text":"Paris is the capital.","score":0.90,"id":"dup"},
				{"text":"It has the Eiffel Tower.","score":0.81}]}`), nil
		},
		generate: func(ctx context.Context, endpoint string, q domain.AgentQuestion) (string, error) {
			assert.Equal(t, "fusion-agent", endpoint)
			return "Paris.", nil
		},
	}
	svc, _ := newTestService(hooks)

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "Request failed", IsError: true},
		{Role: domain.RoleAssistant, Content: "hello"},
	}
	turn, err := svc.Ask(context.Background(), "nb", history, "  What is the capital?  ")
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, domain.RoleUser, turn.Question.Role)
	assert.Equal(t, "What is the capital?", turn.Question.Content)
	assert.Equal(t, "Paris.", turn.Answer.Content)
	assert.False(t, turn.Answer.IsError)
	assert.Equal(t, domain.StrategyFusion, turn.Answer.StrategyID)
	require.Len(t, turn.Answer.Citations, 2)
	assert.Equal(t, "Paris is the capital.", turn.Answer.Citations[0]["text"])
	assert.Equal(t, "It has the Eiffel Tower.", turn.Answer.Citations[1]["text"])
	assert.NotEmpty(t, turn.Answer.RawRetrieval)

	require.Len(t, hooks.agentCalls, 1)
	assert.Equal(t, []domain.ChatTurn{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}, hooks.agentCalls[0].ChatHistory)

	saved := hooks.savedMessages()
	require.Len(t, saved, 2)
	ids := []string{saved[0].ID, saved[1].ID}
	assert.ElementsMatch(t, []string{turn.Question.ID, turn.Answer.ID}, ids)
}

func TestAsk_FailureDiscardsBothResponses(t *testing.T) {
	hooks := &fakeHooks{
		retrieve: func(ctx context.Context, endpoint string, q domain.Question) (json.RawMessage, error) {
			return json.RawMessage(`{"output":[{"text":"orphan chunk"}]}`), nil
		},
		generate: func(ctx context.Context, endpoint string, q domain.AgentQuestion) (string, error) {
			return "", errors.New("HTTP 500: model offline")
		},
	}
	svc, _ := newTestService(hooks)

	turn, err := svc.Ask(context.Background(), "nb", nil, "q")
	require.Error(t, err)
	svc.Wait()

	assert.True(t, turn.Answer.IsError)
	assert.Contains(t, turn.Answer.Content, "model offline")
	assert.Empty(t, turn.Answer.Citations)
	assert.Empty(t, turn.Answer.RawRetrieval)
	assert.Len(t, hooks.savedMessages(), 2)
}

func TestAsk_FirstFailureCancelsOther(t *testing.T) {
	hooks := &fakeHooks{
		retrieve: func(ctx context.Context, endpoint string, q domain.Question) (json.RawMessage, error) {
			return nil, errors.New("connection refused")
		},
		generate: func(ctx context.Context, endpoint string, q domain.AgentQuestion) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	svc, _ := newTestService(hooks)
	turn, err := svc.Ask(context.Background(), "nb", nil, "q")
	svc.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, turn.Answer.IsError)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	svc, _ := newTestService(&fakeHooks{})
	_, err := svc.Ask(context.Background(), "nb", nil, "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestSearch_RoutesView(t *testing.T) {
	hooks := &fakeHooks{
		retrieve: func(ctx context.Context, endpoint string, q domain.Question) (json.RawMessage, error) {
			assert.Equal(t, "multi-query-retrieval", endpoint)
			assert.Equal(t, domain.StrategyMultiQuery, q.ActiveStrategyID)
			return json.RawMessage(`[{"json":{"query":"capital of France","output":[{"content":"Paris is the capital."}]}}]`), nil
		},
	}
	svc, _ := newTestService(hooks)
	res, err := svc.Search(context.Background(), "nb", domain.StrategyMultiQuery, "France?")
	require.NoError(t, err)
	assert.Equal(t, normalize.ViewGrouped, res.View.Mode)
	require.Len(t, res.View.Groups, 1)
	assert.Equal(t, "capital of France", res.View.Groups[0].Query)
	assert.Equal(t, 1, res.View.Count())

	_, err = svc.Search(context.Background(), "nb", "bogus", "France?")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestSearch_EmptyResponse(t *testing.T) {
	svc, _ := newTestService(&fakeHooks{})
	res, err := svc.Search(context.Background(), "nb", "", "anything")
	require.NoError(t, err)
	assert.Equal(t, normalize.ViewEmpty, res.View.Mode)
	assert.Zero(t, res.View.Count())
}

func TestInspect(t *testing.T) {
	svc, _ := newTestService(&fakeHooks{})
	view := svc.Inspect(domain.Message{
		StrategyID:   domain.StrategyFusion,
		RawRetrieval: json.RawMessage(`{"output":[{"text":"Paris is the capital.","score":0.92}]}`),
	})
	require.Len(t, view.Items, 1)
	assert.Equal(t, "92%", view.Items[0].Document.FormattedScore())
	assert.Equal(t, 1, view.Medal(1))

	assert.Equal(t, normalize.ViewEmpty, svc.Inspect(domain.Message{}).Mode)
}

func TestSaveSettings_LocalFirst(t *testing.T) {
	hooks := &fakeHooks{pushErr: errors.New("backend down")}
	svc, store := newTestService(hooks)

	cfg, err := svc.Config("nb")
	require.NoError(t, err)
	cfg.Inference.Model = "llama3"

	saved, err := svc.SaveSettings(context.Background(), "nb", cfg)
	assert.ErrorIs(t, err, ErrRemoteSync)
	assert.Equal(t, "llama3", saved.Inference.Model)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "llama3", stored["nb"].Inference.Model)

	hooks.pushErr = nil
	_, err = svc.SaveSettings(context.Background(), "nb", saved)
	require.NoError(t, err)
	assert.Equal(t, "llama3", hooks.pushed["nb"].Inference.Model)
}

func TestSaveSettings_EmbeddingModelLocked(t *testing.T) {
	svc, _ := newTestService(&fakeHooks{})
	cfg, err := svc.Config("nb")
	require.NoError(t, err)

	cfg.EmbeddingModel = "first-model"
	_, err = svc.SaveSettings(context.Background(), "nb", cfg)
	require.NoError(t, err, "first save may choose the model")

	cfg.EmbeddingModel = "other-model"
	current, err := svc.SaveSettings(context.Background(), "nb", cfg)
	assert.ErrorIs(t, err, ErrEmbeddingModelLocked)
	assert.Equal(t, "first-model", current.EmbeddingModel)
}

func TestSaveSettings_EmbeddingModelChosenAfterLoad(t *testing.T) {
	hooks := &fakeHooks{}
	svc, store := newTestService(hooks)
	ctx := context.Background()

	loaded, err := svc.LoadSettings(ctx, "nb")
	require.NoError(t, err)
	assert.Equal(t, strategy.DefaultEmbeddingModel, loaded.EmbeddingModel)
	assert.False(t, loaded.EmbeddingModelLocked)

	_, err = svc.SetActiveStrategy(ctx, "nb", domain.StrategyMultiQuery)
	require.NoError(t, err)

	cfg, err := svc.Config("nb")
	require.NoError(t, err)
	cfg.EmbeddingModel = "user-choice"
	saved, err := svc.SaveSettings(ctx, "nb", cfg)
	require.NoError(t, err)
	assert.True(t, saved.EmbeddingModelLocked)
	assert.True(t, hooks.pushed["nb"].EmbeddingModelLocked)

	cfg.EmbeddingModel = "another-choice"
	current, err := svc.SaveSettings(ctx, "nb", cfg)
	assert.ErrorIs(t, err, ErrEmbeddingModelLocked)
	assert.Equal(t, "user-choice", current.EmbeddingModel)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "user-choice", stored["nb"].EmbeddingModel)
	assert.True(t, stored["nb"].EmbeddingModelLocked)
}

func TestLoadSettings_RemoteLockSticks(t *testing.T) {
	hooks := &fakeHooks{remote: map[string]any{
		strategy.KeyEmbeddingModel:       "bge-m3",
		strategy.KeyEmbeddingModelLocked: true,
	}}
	svc, _ := newTestService(hooks)
	ctx := context.Background()

	cfg, err := svc.LoadSettings(ctx, "nb")
	require.NoError(t, err)
	assert.True(t, cfg.EmbeddingModelLocked)

	cfg.EmbeddingModel = "other"
	_, err = svc.SaveSettings(ctx, "nb", cfg)
	assert.ErrorIs(t, err, ErrEmbeddingModelLocked)
}

func TestSetActiveStrategy(t *testing.T) {
	hooks := &fakeHooks{}
	svc, _ := newTestService(hooks)

	cfg, err := svc.SetActiveStrategy(context.Background(), "nb", domain.StrategyHybridRerank)
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyHybridRerank, cfg.ActiveStrategyID)
	assert.Equal(t, domain.StrategyHybridRerank, hooks.pushed["nb"].ActiveStrategyID)

	_, err = svc.SetActiveStrategy(context.Background(), "nb", "nope")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	again, err := svc.Config("nb")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyHybridRerank, again.ActiveStrategyID)
}

func TestLoadSettings_RemoteOverLocal(t *testing.T) {
	hooks := &fakeHooks{remote: map[string]any{
		strategy.KeyInferenceModel:   "mixtral",
		strategy.KeyActiveStrategyID: "semantic-rerank",
	}}
	svc, store := newTestService(hooks)

	cfg, err := svc.LoadSettings(context.Background(), "nb")
	require.NoError(t, err)
	assert.Equal(t, "mixtral", cfg.Inference.Model)
	assert.Equal(t, domain.StrategySemanticRerank, cfg.ActiveStrategyID)
	assert.Equal(t, strategy.DefaultUnstructuredPrompt, cfg.SystemPrompts.Unstructured)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "mixtral", stored["nb"].Inference.Model)
}

func TestLoadSettings_RemoteFailureKeepsLocal(t *testing.T) {
	hooks := &fakeHooks{pullErr: errors.New("timeout")}
	svc, _ := newTestService(hooks)

	cfg, err := svc.LoadSettings(context.Background(), "nb")
	assert.ErrorIs(t, err, ErrRemoteSync)
	assert.Equal(t, domain.StrategyFusion, cfg.ActiveStrategyID)
	_, ok := cfg.ActiveStrategy()
	assert.True(t, ok)
}

func TestNotebooks_DetailsFanOut(t *testing.T) {
	hooks := &fakeHooks{
		notebooks: []domain.Notebook{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}},
		details: map[string]map[string]any{
			"a": {"document_count": 3.0, "status": "ready"},
			"c": {"documents_count": 7.0},
		},
	}
	svc, _ := newTestService(hooks)
	list, err := svc.Notebooks(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 3, list[0].DocumentCount)
	assert.Equal(t, "ready", list[0].Status)
	assert.Nil(t, list[1].Details)
	assert.Equal(t, 7, list[2].DocumentCount)
}

func TestNotebookLifecycle(t *testing.T) {
	hooks := &fakeHooks{notebooks: []domain.Notebook{{ID: "nb-1", Name: "Papers"}}}
	svc, store := newTestService(hooks)

	_, err := svc.CreateNotebook(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrEmptyName)
	nb, err := svc.CreateNotebook(context.Background(), "Docs", "d")
	require.NoError(t, err)
	assert.Equal(t, "nb-new", nb.ID)

	found, err := svc.FindNotebook(context.Background(), "papers")
	require.NoError(t, err)
	assert.Equal(t, "nb-1", found.ID)
	_, err = svc.FindNotebook(context.Background(), "missing")
	assert.Error(t, err)

	_, err = svc.SetActiveStrategy(context.Background(), "nb-1", domain.StrategyMultiQuery)
	require.NoError(t, err)
	require.NoError(t, svc.Ingest(context.Background(), found, "https://example.com/x.pdf"))
	assert.Error(t, svc.Ingest(context.Background(), found, ""))
	require.NoError(t, svc.DeleteNotebook(context.Background(), found))
	assert.Equal(t, []string{"nb-1"}, hooks.deleted)
	assert.Equal(t, []string{"https://example.com/x.pdf"}, hooks.ingested)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.NotContains(t, stored, "nb-1")
}

func TestHistoryAndStatus(t *testing.T) {
	hooks := &fakeHooks{
		history: []domain.Message{{ID: "1", Role: domain.RoleUser, Content: "q"}},
		status:  domain.NotebookStatus{NotebookID: "nb", Status: "ready", DocumentCount: 2},
	}
	svc, _ := newTestService(hooks)

	msgs, err := svc.History(context.Background(), "nb")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	require.NoError(t, svc.ClearHistory(context.Background(), "nb"))
	assert.Equal(t, 1, hooks.cleared)

	st, err := svc.Status(context.Background(), "nb")
	require.NoError(t, err)
	assert.Equal(t, "ready", st.Status)
}
