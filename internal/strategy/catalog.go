// Package strategy ships the default retrieval strategies and notebook
// configuration, and reconciles them with stored and remote overrides.
package strategy

import (
	"sort"

	"ragnotebook/internal/domain"
)

// Endpoints are the two webhooks a strategy is served by.
type Endpoints struct {
	Retrieval string
	Agentic   string
}

// DefaultEndpoints returns the relative webhook paths of each strategy.
func DefaultEndpoints() map[domain.StrategyID]Endpoints {
	out := make(map[domain.StrategyID]Endpoints, len(builtins))
	for _, s := range builtins {
		out[s.ID] = Endpoints{Retrieval: s.RetrievalEndpoint, Agentic: s.AgenticEndpoint}
	}
	return out
}

var builtins = []domain.RetrievalStrategy{
	{
		ID:                domain.StrategyFusion,
		Name:              "Fusion (RRF)",
		Description:       "Vector and keyword search combined with reciprocal rank fusion.",
		RetrievalEndpoint: "fusion-retrieval",
		AgenticEndpoint:   "fusion-agent",
		Params:            map[string]float64{"vector_weight": 0.5, "keyword_weight": 0.5, "rrf_k": 60, "top_k": 10},
	},
	{
		ID:                domain.StrategyMultiQuery,
		Name:              "Multi-Query",
		Description:       "The question is rewritten into several sub-queries, each retrieved separately.",
		RetrievalEndpoint: "multi-query-retrieval",
		AgenticEndpoint:   "multi-query-agent",
		Params:            map[string]float64{"num_queries": 3, "top_k_per_query": 5},
	},
	{
		ID:                domain.StrategyExpandedHybrid,
		Name:              "Expanded Hybrid",
		Description:       "Query expansion followed by weighted hybrid search.",
		RetrievalEndpoint: "expanded-hybrid-retrieval",
		AgenticEndpoint:   "expanded-hybrid-agent",
		Params:            map[string]float64{"vector_weight": 0.7, "keyword_weight": 0.3, "expansion_terms": 5, "top_k": 10},
	},
	{
		ID:                domain.StrategySemanticContext,
		Name:              "Semantic + Context",
		Description:       "Semantic search returning neighbouring chunks as context.",
		RetrievalEndpoint: "semantic-context-retrieval",
		AgenticEndpoint:   "semantic-context-agent",
		Params:            map[string]float64{"top_k": 5, "context_window": 1},
	},
	{
		ID:                domain.StrategySemanticRerank,
		Name:              "Semantic + Rerank",
		Description:       "Semantic search with a cross-encoder rerank pass.",
		RetrievalEndpoint: "semantic-rerank-retrieval",
		AgenticEndpoint:   "semantic-rerank-agent",
		Params:            map[string]float64{"initial_k": 20, "rerank_top_n": 5},
	},
	{
		ID:                domain.StrategyHybridRerank,
		Name:              "Hybrid + Rerank",
		Description:       "Weighted hybrid search with a rerank pass.",
		RetrievalEndpoint: "hybrid-rerank-retrieval",
		AgenticEndpoint:   "hybrid-rerank-agent",
		Params:            map[string]float64{"vector_weight": 0.5, "keyword_weight": 0.5, "initial_k": 30, "rerank_top_n": 5},
	},
}

const (
	DefaultEmbeddingModel     = "text-embedding-3-small"
	DefaultInferenceProvider  = "openai"
	DefaultInferenceModel     = "gpt-4o-mini"
	DefaultTemperature        = 0.2
	DefaultUnstructuredPrompt = "You answer questions using only the retrieved document excerpts. Cite the sources you used and say so when the excerpts do not contain the answer."
	DefaultStructuredPrompt   = "You answer questions about tabular datasets. Describe the query you ran and report exact values."
)

// Catalog holds the default strategies with resolved endpoints.
type Catalog struct {
	strategies map[domain.StrategyID]domain.RetrievalStrategy
}

// NewCatalog returns the built-in strategies. resolve maps a strategy's
// relative endpoints to absolute URLs; overrides replace them per strategy.
func NewCatalog(resolve func(string) string, overrides map[domain.StrategyID]Endpoints) Catalog {
	c := Catalog{strategies: make(map[domain.StrategyID]domain.RetrievalStrategy, len(builtins))}
	for _, s := range builtins {
		s = cloneStrategy(s)
		if o, ok := overrides[s.ID]; ok {
			if o.Retrieval != "" {
				s.RetrievalEndpoint = o.Retrieval
			}
			if o.Agentic != "" {
				s.AgenticEndpoint = o.Agentic
			}
		}
		if resolve != nil {
			s.RetrievalEndpoint = resolve(s.RetrievalEndpoint)
			s.AgenticEndpoint = resolve(s.AgenticEndpoint)
		}
		c.strategies[s.ID] = s
	}
	return c
}

// Get returns a copy of the default strategy id.
func (c Catalog) Get(id domain.StrategyID) (domain.RetrievalStrategy, bool) {
	s, ok := c.strategies[id]
	if !ok {
		return domain.RetrievalStrategy{}, false
	}
	return cloneStrategy(s), true
}

// IDs lists the catalog in display order.
func (c Catalog) IDs() []domain.StrategyID {
	ids := make([]domain.StrategyID, 0, len(c.strategies))
	for _, s := range builtins {
		if _, ok := c.strategies[s.ID]; ok {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// DefaultConfig returns a fresh notebook configuration.
func (c Catalog) DefaultConfig() domain.NotebookConfig {
	cfg := domain.NotebookConfig{
		EmbeddingModel: DefaultEmbeddingModel,
		SystemPrompts: domain.SystemPrompts{
			Unstructured: DefaultUnstructuredPrompt,
			Structured:   DefaultStructuredPrompt,
		},
		Inference: domain.InferenceConfig{
			Provider:    DefaultInferenceProvider,
			Model:       DefaultInferenceModel,
			Temperature: DefaultTemperature,
		},
		Strategies:       make(map[domain.StrategyID]domain.RetrievalStrategy, len(c.strategies)),
		ActiveStrategyID: domain.StrategyFusion,
	}
	for id, s := range c.strategies {
		cfg.Strategies[id] = cloneStrategy(s)
	}
	return cfg
}

// SortedParamKeys lists a strategy's parameters in a stable order.
func SortedParamKeys(s domain.RetrievalStrategy) []string {
	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneStrategy(s domain.RetrievalStrategy) domain.RetrievalStrategy {
	params := make(map[string]float64, len(s.Params))
	for k, v := range s.Params {
		params[k] = v
	}
	s.Params = params
	return s
}

// Clone deep-copies a notebook configuration.
func Clone(cfg domain.NotebookConfig) domain.NotebookConfig {
	out := cfg
	out.Strategies = make(map[domain.StrategyID]domain.RetrievalStrategy, len(cfg.Strategies))
	for id, s := range cfg.Strategies {
		out.Strategies[id] = cloneStrategy(s)
	}
	return out
}
