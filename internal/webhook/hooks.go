package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ragnotebook/internal/domain"
	"ragnotebook/internal/normalize"
	"ragnotebook/internal/strategy"
)

var _ domain.Webhooks = (*Client)(nil)

// Retrieve calls a strategy's retrieval webhook. The body is returned as-is
// when it is JSON; anything else is wrapped as a JSON string.
func (c *Client) Retrieve(ctx context.Context, endpoint string, q domain.Question) (json.RawMessage, error) {
	payload, err := c.fetch(ctx, endpoint, q)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(payload))) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(payload) {
		c.logger.Warn("retrieval returned non-JSON body")
		quoted, _ := json.Marshal(string(payload))
		return quoted, nil
	}
	return payload, nil
}

var answerKeys = []string{"output", "text", "answer", "content"}

// Generate calls a strategy's agentic webhook and extracts the answer text.
func (c *Client) Generate(ctx context.Context, endpoint string, q domain.AgentQuestion) (string, error) {
	payload, err := c.post(ctx, endpoint, q)
	if err != nil {
		return "", err
	}
	v := decode(payload)
	if v == nil {
		return strings.TrimSpace(string(payload)), nil
	}
	return answerText(v, payload), nil
}

func answerText(v any, payload []byte) string {
	v = normalize.Unwrap(v)
	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return ""
		}
		v = arr[0]
	}
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		for _, k := range answerKeys {
			if s, ok := t[k].(string); ok {
				return s
			}
		}
	}
	return string(payload)
}

// CreateNotebook creates a notebook and returns it as the backend echoes it.
func (c *Client) CreateNotebook(ctx context.Context, name, description string) (domain.Notebook, error) {
	payload, err := c.post(ctx, c.endpoints.CreateNotebook, map[string]any{
		"name":        name,
		"description": description,
	})
	if err != nil {
		return domain.Notebook{}, err
	}
	nb := domain.Notebook{Name: name, Description: description}
	if items := items(payload); len(items) > 0 {
		created := notebookFrom(items[0])
		if created.ID != "" {
			nb.ID = created.ID
		}
		if created.OrchestratorID != "" {
			nb.OrchestratorID = created.OrchestratorID
		}
		if created.Name != "" {
			nb.Name = created.Name
		}
		nb.Status = created.Status
		nb.CreatedAt = created.CreatedAt
	}
	if nb.ID == "" {
		return nb, fmt.Errorf("create notebook: response carried no notebook id")
	}
	return nb, nil
}

// ListNotebooks returns every notebook. Items without an id are skipped.
func (c *Client) ListNotebooks(ctx context.Context) ([]domain.Notebook, error) {
	payload, err := c.fetch(ctx, c.endpoints.ListNotebooks, map[string]any{})
	if err != nil {
		return nil, err
	}
	var out []domain.Notebook
	for _, item := range items(payload) {
		nb := notebookFrom(item)
		if nb.ID == "" {
			continue
		}
		out = append(out, nb)
	}
	return out, nil
}

// NotebookDetails returns the backend's detail record for nb.
func (c *Client) NotebookDetails(ctx context.Context, nb domain.Notebook) (map[string]any, error) {
	payload, err := c.fetch(ctx, c.endpoints.NotebookDetails, notebookRef(nb))
	if err != nil {
		return nil, err
	}
	if items := items(payload); len(items) > 0 {
		return items[0], nil
	}
	return map[string]any{}, nil
}

// DeleteNotebook deletes nb on the backend.
func (c *Client) DeleteNotebook(ctx context.Context, nb domain.Notebook) error {
	_, err := c.post(ctx, c.endpoints.DeleteNotebook, notebookRef(nb))
	return err
}

// NotebookStatus returns the ingestion status of a notebook.
func (c *Client) NotebookStatus(ctx context.Context, notebookID string) (domain.NotebookStatus, error) {
	payload, err := c.fetch(ctx, c.endpoints.NotebookStatus, map[string]any{"notebook_id": notebookID})
	if err != nil {
		return domain.NotebookStatus{}, err
	}
	st := domain.NotebookStatus{NotebookID: notebookID, Status: "unknown"}
	if items := items(payload); len(items) > 0 {
		item := items[0]
		if s := str(item, "status", "state"); s != "" {
			st.Status = s
		}
		st.DocumentCount = integer(item, "document_count", "documents_count", "doc_count")
		st.Message = str(item, "message", "detail")
	}
	return st, nil
}

// Ingest asks the backend to ingest a file path or URL into nb.
func (c *Client) Ingest(ctx context.Context, nb domain.Notebook, source string) error {
	body := notebookRef(nb)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body["url"] = source
	} else {
		body["file_path"] = source
	}
	_, err := c.post(ctx, c.endpoints.Ingest, body)
	return err
}

// SaveMessage persists one chat message.
func (c *Client) SaveMessage(ctx context.Context, notebookID string, msg domain.Message) error {
	body := map[string]any{
		"notebook_id": notebookID,
		"message_id":  msg.ID,
		"role":        msg.Role,
		"content":     msg.Content,
		"citations":   msg.Citations,
		"strategy_id": msg.StrategyID,
		"timestamp":   msg.Timestamp.UTC().Format(time.RFC3339Nano),
		"is_error":    msg.IsError,
	}
	if len(msg.RawRetrieval) > 0 {
		body["raw_retrieval"] = msg.RawRetrieval
	}
	_, err := c.post(ctx, c.endpoints.SaveMessage, body)
	return err
}

// PullHistory returns the stored conversation of a notebook in order.
func (c *Client) PullHistory(ctx context.Context, notebookID string) ([]domain.Message, error) {
	payload, err := c.fetch(ctx, c.endpoints.PullHistory, map[string]any{"notebook_id": notebookID})
	if err != nil {
		return nil, err
	}
	list := items(payload)
	out := make([]domain.Message, 0, len(list))
	for i, item := range list {
		if msg, ok := messageFrom(item, i); ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

// ClearHistory deletes the stored conversation of a notebook.
func (c *Client) ClearHistory(ctx context.Context, notebookID string) error {
	_, err := c.post(ctx, c.endpoints.ClearHistory, map[string]any{"notebook_id": notebookID})
	return err
}

// PushSettings stores cfg remotely using the flat settings layout.
func (c *Client) PushSettings(ctx context.Context, notebookID string, cfg domain.NotebookConfig) error {
	_, err := c.post(ctx, c.endpoints.PushSettings, strategy.Flatten(notebookID, cfg))
	return err
}

// PullSettings returns the flat settings record of a notebook, or an empty
// map when none is stored.
func (c *Client) PullSettings(ctx context.Context, notebookID string) (map[string]any, error) {
	payload, err := c.fetch(ctx, c.endpoints.PullSettings, map[string]any{"notebook_id": notebookID})
	if err != nil {
		return nil, err
	}
	if items := items(payload); len(items) > 0 {
		return items[0], nil
	}
	return map[string]any{}, nil
}

// items accepts a bare array, {data: [...]}, n8n {json: ...} items or a
// single object, and returns the unwrapped objects.
func items(payload []byte) []map[string]any {
	v := normalize.Unwrap(decode(payload))
	if obj, ok := v.(map[string]any); ok {
		if data, ok := obj["data"]; ok {
			switch d := data.(type) {
			case []any:
				v = normalize.Unwrap(d)
			case map[string]any:
				v = normalize.Unwrap(d)
			}
		}
	}
	switch t := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if obj, ok := e.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		return out
	case map[string]any:
		if len(t) == 0 {
			return nil
		}
		return []map[string]any{t}
	}
	return nil
}

func notebookRef(nb domain.Notebook) map[string]any {
	return map[string]any{
		"notebook_id":     nb.ID,
		"orchestrator_id": nb.OrchestratorID,
	}
}

func notebookFrom(m map[string]any) domain.Notebook {
	return domain.Notebook{
		ID:             str(m, "notebook_id", "notebookId", "id"),
		OrchestratorID: str(m, "orchestrator_id", "orchestratorId"),
		Name:           str(m, "name", "notebook_name", "title"),
		Description:    str(m, "description"),
		Status:         str(m, "status"),
		DocumentCount:  integer(m, "document_count", "documents_count", "doc_count"),
		CreatedAt:      str(m, "created_at", "createdAt"),
	}
}

func messageFrom(m map[string]any, index int) (domain.Message, bool) {
	role := domain.Role(strings.ToLower(str(m, "role", "type")))
	switch role {
	case domain.RoleUser, domain.RoleAssistant:
	case "human":
		role = domain.RoleUser
	case "ai":
		role = domain.RoleAssistant
	default:
		return domain.Message{}, false
	}
	msg := domain.Message{
		ID:         str(m, "message_id", "id"),
		Role:       role,
		Content:    str(m, "content", "message", "text"),
		StrategyID: domain.StrategyID(str(m, "strategy_id", "strategyId")),
		IsError:    boolean(m["is_error"]),
	}
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("history-%d", index)
	}
	if ts := str(m, "timestamp", "created_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			msg.Timestamp = t
		}
	}
	for _, d := range asArray(m["citations"]) {
		if obj, ok := normalize.Unwrap(d).(map[string]any); ok {
			msg.Citations = append(msg.Citations, obj)
		}
	}
	if raw := rawJSON(m["raw_retrieval"]); raw != nil {
		msg.RawRetrieval = raw
	}
	return msg, true
}

// decode parses a webhook body into plain maps. Malformed JSON yields nil.
func decode(payload []byte) any {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil
	}
	return v
}

// asArray accepts an array or the same array encoded as a JSON string.
func asArray(v any) []any {
	if s, ok := v.(string); ok {
		v = decode([]byte(s))
	}
	arr, _ := v.([]any)
	return arr
}

// rawJSON re-encodes a stored payload. JSON strings holding JSON are decoded first.
func rawJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok && json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func integer(m map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}

func boolean(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	}
	return false
}
