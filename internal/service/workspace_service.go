package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ragnotebook/internal/configstore"
	"ragnotebook/internal/domain"
	"ragnotebook/internal/normalize"
	"ragnotebook/internal/strategy"
)

var (
	// ErrEmbeddingModelLocked is returned when a save would change an embedding
	// model that is already set. Stored vectors depend on it.
	ErrEmbeddingModelLocked = errors.New("embedding model cannot be changed once set")
	// ErrUnknownStrategy is returned for a strategy id missing from the config.
	ErrUnknownStrategy = errors.New("unknown retrieval strategy")
	// ErrRemoteSync marks a settings sync failure. Local state is kept.
	ErrRemoteSync = errors.New("settings saved locally but remote sync failed")
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrEmptyName is returned when creating a notebook without a name.
	ErrEmptyName = errors.New("notebook name is empty")
)

const detailsConcurrency = 4

// Options tune a WorkspaceService. Zero values select defaults.
type Options struct {
	MaxDepth int
	Logger   *zap.Logger
	Now      func() time.Time
	NewID    func() string
}

// WorkspaceService runs chat turns, searches, notebook management and
// settings sync against the webhook backend.
type WorkspaceService struct {
	hooks   domain.Webhooks
	store   configstore.Storage
	catalog strategy.Catalog
	router  normalize.Router
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string

	mu      sync.Mutex
	configs map[string]domain.NotebookConfig

	saves sync.WaitGroup
}

func NewWorkspaceService(hooks domain.Webhooks, store configstore.Storage, catalog strategy.Catalog, opts Options) *WorkspaceService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &WorkspaceService{
		hooks:   hooks,
		store:   store,
		catalog: catalog,
		router:  normalize.Router{MaxDepth: opts.MaxDepth},
		logger:  opts.Logger.Named("workspace"),
		now:     opts.Now,
		newID:   opts.NewID,
	}
}

// Catalog returns the built-in strategies.
func (s *WorkspaceService) Catalog() strategy.Catalog { return s.catalog }

// Wait blocks until every background history save has finished.
func (s *WorkspaceService) Wait() { s.saves.Wait() }

// Turn is one question and its answer.
type Turn struct {
	Question domain.Message
	Answer   domain.Message
}

// Ask runs a chat turn. The retrieval and agentic webhooks are called
// concurrently; if either fails the whole turn fails and the answer is an
// error message without citations. Both messages are saved to the remote
// history in the background.
func (s *WorkspaceService) Ask(ctx context.Context, notebookID string, history []domain.Message, question string) (Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Turn{}, ErrEmptyQuestion
	}
	cfg, err := s.Config(notebookID)
	if err != nil {
		return Turn{}, err
	}
	active, ok := cfg.ActiveStrategy()
	if !ok {
		return Turn{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, cfg.ActiveStrategyID)
	}

	user := domain.Message{
		ID:        s.newID(),
		Role:      domain.RoleUser,
		Content:   question,
		Timestamp: s.now(),
	}
	s.saveInBackground(ctx, notebookID, user)

	q := questionFor(notebookID, question, cfg)
	aq := domain.AgentQuestion{Question: q, ChatHistory: chatHistory(history)}

	var (
		raw    json.RawMessage
		answer string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.hooks.Retrieve(gctx, active.RetrievalEndpoint, q)
		if err != nil {
			return fmt.Errorf("retrieval: %w", err)
		}
		raw = r
		return nil
	})
	g.Go(func() error {
		a, err := s.hooks.Generate(gctx, active.AgenticEndpoint, aq)
		if err != nil {
			return fmt.Errorf("generation: %w", err)
		}
		answer = a
		return nil
	})
	err = g.Wait()

	reply := domain.Message{
		ID:         s.newID(),
		Role:       domain.RoleAssistant,
		StrategyID: active.ID,
		Timestamp:  s.now(),
	}
	if err != nil {
		s.logger.Warn("chat turn failed", zap.String("notebook", notebookID), zap.String("strategy", string(active.ID)), zap.Error(err))
		reply.Content = "Request failed: " + err.Error()
		reply.IsError = true
	} else {
		reply.Content = answer
		reply.RawRetrieval = raw
		reply.Citations = s.citations(raw)
		s.logger.Info("chat turn",
			zap.String("notebook", notebookID),
			zap.String("strategy", string(active.ID)),
			zap.Int("citations", len(reply.Citations)))
	}
	s.saveInBackground(ctx, notebookID, reply)
	return Turn{Question: user, Answer: reply}, err
}

func (s *WorkspaceService) citations(raw json.RawMessage) []map[string]any {
	docs := normalize.FindDocuments(normalize.Decode(raw), s.router.MaxDepth)
	return normalize.Dedupe(docs)
}

func (s *WorkspaceService) saveInBackground(ctx context.Context, notebookID string, msg domain.Message) {
	ctx = context.WithoutCancel(ctx)
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		if err := s.hooks.SaveMessage(ctx, notebookID, msg); err != nil {
			s.logger.Warn("save message failed", zap.String("notebook", notebookID), zap.String("message", msg.ID), zap.Error(err))
		}
	}()
}

func questionFor(notebookID, question string, cfg domain.NotebookConfig) domain.Question {
	return domain.Question{
		Question:         question,
		NotebookID:       notebookID,
		ActiveStrategyID: cfg.ActiveStrategyID,
		StrategiesConfig: cfg.Strategies,
		InferenceConfig:  cfg.Inference,
		SystemPrompts:    cfg.SystemPrompts,
		EmbeddingModel:   cfg.EmbeddingModel,
	}
}

// chatHistory drops failed turns; they never reached the model.
func chatHistory(history []domain.Message) []domain.ChatTurn {
	out := make([]domain.ChatTurn, 0, len(history))
	for _, m := range history {
		if m.IsError {
			continue
		}
		out = append(out, domain.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return out
}

// SearchResult is a playground search outcome.
type SearchResult struct {
	View normalize.View
	Raw  json.RawMessage
	Took time.Duration
}

// Search calls only the retrieval webhook of strategyID and routes the
// response to its view. An empty strategyID selects the active one.
func (s *WorkspaceService) Search(ctx context.Context, notebookID string, strategyID domain.StrategyID, question string) (SearchResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return SearchResult{}, ErrEmptyQuestion
	}
	cfg, err := s.Config(notebookID)
	if err != nil {
		return SearchResult{}, err
	}
	if strategyID == "" {
		strategyID = cfg.ActiveStrategyID
	}
	st, ok := cfg.Strategies[strategyID]
	if !ok {
		return SearchResult{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategyID)
	}
	q := questionFor(notebookID, question, cfg)
	q.ActiveStrategyID = strategyID

	start := s.now()
	raw, err := s.hooks.Retrieve(ctx, st.RetrievalEndpoint, q)
	if err != nil {
		return SearchResult{}, err
	}
	res := SearchResult{
		View: s.router.Select(string(strategyID), normalize.Decode(raw)),
		Raw:  raw,
		Took: s.now().Sub(start),
	}
	s.logger.Debug("search",
		zap.String("notebook", notebookID),
		zap.String("strategy", string(strategyID)),
		zap.String("mode", string(res.View.Mode)),
		zap.Int("documents", res.View.Count()))
	return res, nil
}

// Inspect routes the stored retrieval payload of an assistant message.
func (s *WorkspaceService) Inspect(msg domain.Message) normalize.View {
	return s.router.Select(string(msg.StrategyID), normalize.Decode(msg.RawRetrieval))
}

// History pulls the stored conversation of a notebook.
func (s *WorkspaceService) History(ctx context.Context, notebookID string) ([]domain.Message, error) {
	msgs, err := s.hooks.PullHistory(ctx, notebookID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

// ClearHistory deletes the stored conversation of a notebook.
func (s *WorkspaceService) ClearHistory(ctx context.Context, notebookID string) error {
	if err := s.hooks.ClearHistory(ctx, notebookID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
