package domain

import (
	"context"
	"encoding/json"
)

// Webhooks is the backend surface the workspace talks to.
type Webhooks interface {
	Retrieve(ctx context.Context, endpoint string, q Question) (json.RawMessage, error)
	Generate(ctx context.Context, endpoint string, q AgentQuestion) (string, error)

	CreateNotebook(ctx context.Context, name, description string) (Notebook, error)
	ListNotebooks(ctx context.Context) ([]Notebook, error)
	NotebookDetails(ctx context.Context, nb Notebook) (map[string]any, error)
	DeleteNotebook(ctx context.Context, nb Notebook) error
	NotebookStatus(ctx context.Context, notebookID string) (NotebookStatus, error)
	Ingest(ctx context.Context, nb Notebook, source string) error

	SaveMessage(ctx context.Context, notebookID string, msg Message) error
	PullHistory(ctx context.Context, notebookID string) ([]Message, error)
	ClearHistory(ctx context.Context, notebookID string) error

	PushSettings(ctx context.Context, notebookID string, cfg NotebookConfig) error
	PullSettings(ctx context.Context, notebookID string) (map[string]any, error)
}
