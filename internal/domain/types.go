package domain

import (
	"encoding/json"
	"time"
)

// StrategyID identifies one of the backend retrieval pipelines.
type StrategyID string

const (
	StrategyFusion          StrategyID = "fusion"
	StrategyMultiQuery      StrategyID = "multi-query"
	StrategyExpandedHybrid  StrategyID = "expanded-hybrid"
	StrategySemanticContext StrategyID = "semantic-context"
	StrategySemanticRerank  StrategyID = "semantic-rerank"
	StrategyHybridRerank    StrategyID = "hybrid-rerank"
)

// RetrievalStrategy describes a backend pipeline and its tunable parameters.
// Parameter keys vary by strategy.
type RetrievalStrategy struct {
	ID                StrategyID         `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	RetrievalEndpoint string             `json:"retrieval_endpoint"`
	AgenticEndpoint   string             `json:"agentic_endpoint"`
	Params            map[string]float64 `json:"params"`
}

// InferenceConfig selects the LLM used for answer generation.
type InferenceConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// SystemPrompts holds the two agent prompts of a notebook.
type SystemPrompts struct {
	Unstructured string `json:"unstructured"`
	Structured   string `json:"structured"`
}

// NotebookConfig is the per-notebook configuration.
// ActiveStrategyID must always be a key of Strategies. EmbeddingModelLocked
// is set once a save has chosen the embedding model and is never cleared.
type NotebookConfig struct {
	EmbeddingModel       string                           `json:"embedding_model"`
	EmbeddingModelLocked bool                             `json:"embedding_model_locked,omitempty"`
	SystemPrompts        SystemPrompts                    `json:"system_prompts"`
	Inference            InferenceConfig                  `json:"inference"`
	Strategies           map[StrategyID]RetrievalStrategy `json:"strategies"`
	ActiveStrategyID     StrategyID                       `json:"active_strategy_id"`
}

// ActiveStrategy returns the currently selected strategy.
func (c NotebookConfig) ActiveStrategy() (RetrievalStrategy, bool) {
	s, ok := c.Strategies[c.ActiveStrategyID]
	return s, ok
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a notebook conversation.
type Message struct {
	ID           string           `json:"id"`
	Role         Role             `json:"role"`
	Content      string           `json:"content"`
	Citations    []map[string]any `json:"citations,omitempty"`
	StrategyID   StrategyID       `json:"strategy_id,omitempty"`
	RawRetrieval json.RawMessage  `json:"raw_retrieval,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
	IsError      bool             `json:"is_error,omitempty"`
}

// Notebook is a knowledge-base context as listed by the backend.
type Notebook struct {
	ID             string         `json:"notebook_id"`
	OrchestratorID string         `json:"orchestrator_id,omitempty"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Status         string         `json:"status,omitempty"`
	DocumentCount  int            `json:"document_count,omitempty"`
	CreatedAt      string         `json:"created_at,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

// NotebookStatus is the ingestion state reported for an open notebook.
type NotebookStatus struct {
	NotebookID    string `json:"notebook_id"`
	Status        string `json:"status"`
	DocumentCount int    `json:"document_count"`
	Message       string `json:"message,omitempty"`
}

// Question is the payload shared by the retrieval and agentic webhooks.
type Question struct {
	Question         string                           `json:"question"`
	NotebookID       string                           `json:"notebook_id"`
	ActiveStrategyID StrategyID                       `json:"active_strategy_id"`
	StrategiesConfig map[StrategyID]RetrievalStrategy `json:"strategies_config"`
	InferenceConfig  InferenceConfig                  `json:"inference_config"`
	SystemPrompts    SystemPrompts                    `json:"system_prompts"`
	EmbeddingModel   string                           `json:"embedding_model"`
}

// ChatTurn is a role/content pair sent as chat history to the agentic webhook.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AgentQuestion adds chat history to a Question.
type AgentQuestion struct {
	Question
	ChatHistory []ChatTurn `json:"chat_history"`
}
