package strategy

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"ragnotebook/internal/domain"
)

// Flat keys of the settings webhooks.
const (
	KeyNotebookID           = "notebook_id"
	KeyEmbeddingModel       = "embedding_model"
	KeyEmbeddingModelLocked = "embedding_model_locked"
	KeyUnstructuredPrompt   = "system_prompt_unstructured"
	KeyStructuredPrompt     = "system_prompt_structured"
	KeyInferenceProvider    = "inference_provider"
	KeyInferenceModel       = "inference_model"
	KeyInferenceTemperature = "inference_temperature"
	KeyStrategiesConfig     = "strategies_config"
	KeyActiveStrategyID     = "active_strategy_id"
)

// Merge overlays a stored configuration on the defaults. Endpoints, names and
// descriptions always come from the defaults; stored parameters win.
func (c Catalog) Merge(stored domain.NotebookConfig) domain.NotebookConfig {
	cfg := c.DefaultConfig()
	if stored.EmbeddingModel != "" {
		cfg.EmbeddingModel = stored.EmbeddingModel
	}
	cfg.EmbeddingModelLocked = stored.EmbeddingModelLocked
	if stored.SystemPrompts.Unstructured != "" {
		cfg.SystemPrompts.Unstructured = stored.SystemPrompts.Unstructured
	}
	if stored.SystemPrompts.Structured != "" {
		cfg.SystemPrompts.Structured = stored.SystemPrompts.Structured
	}
	if stored.Inference.Provider != "" {
		cfg.Inference.Provider = stored.Inference.Provider
	}
	if stored.Inference.Model != "" {
		cfg.Inference.Model = stored.Inference.Model
	}
	// A stored record with an inference model is complete, so a zero temperature is deliberate.
	if stored.Inference.Model != "" || stored.Inference.Temperature != 0 {
		cfg.Inference.Temperature = stored.Inference.Temperature
	}
	for id, s := range stored.Strategies {
		base, ok := cfg.Strategies[id]
		if !ok {
			if s.RetrievalEndpoint != "" && s.AgenticEndpoint != "" {
				cfg.Strategies[id] = cloneStrategy(s)
			}
			continue
		}
		for k, v := range s.Params {
			base.Params[k] = v
		}
		cfg.Strategies[id] = base
	}
	if stored.ActiveStrategyID != "" {
		cfg.ActiveStrategyID = stored.ActiveStrategyID
	}
	return Repair(cfg)
}

// Repair restores the active-strategy invariant.
func Repair(cfg domain.NotebookConfig) domain.NotebookConfig {
	if _, ok := cfg.Strategies[cfg.ActiveStrategyID]; ok {
		return cfg
	}
	if _, ok := cfg.Strategies[domain.StrategyFusion]; ok {
		cfg.ActiveStrategyID = domain.StrategyFusion
		return cfg
	}
	ids := make([]string, 0, len(cfg.Strategies))
	for id := range cfg.Strategies {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	cfg.ActiveStrategyID = ""
	if len(ids) > 0 {
		cfg.ActiveStrategyID = domain.StrategyID(ids[0])
	}
	return cfg
}

// Flatten renders cfg in the field layout of the settings webhooks.
func Flatten(notebookID string, cfg domain.NotebookConfig) map[string]any {
	strategies := make(map[string]any, len(cfg.Strategies))
	for id, s := range cfg.Strategies {
		strategies[string(id)] = map[string]any{
			"name":               s.Name,
			"description":        s.Description,
			"retrieval_endpoint": s.RetrievalEndpoint,
			"agentic_endpoint":   s.AgenticEndpoint,
			"params":             s.Params,
		}
	}
	return map[string]any{
		KeyNotebookID:           notebookID,
		KeyEmbeddingModel:       cfg.EmbeddingModel,
		KeyEmbeddingModelLocked: cfg.EmbeddingModelLocked,
		KeyUnstructuredPrompt:   cfg.SystemPrompts.Unstructured,
		KeyStructuredPrompt:     cfg.SystemPrompts.Structured,
		KeyInferenceProvider:    cfg.Inference.Provider,
		KeyInferenceModel:       cfg.Inference.Model,
		KeyInferenceTemperature: cfg.Inference.Temperature,
		KeyStrategiesConfig:     strategies,
		KeyActiveStrategyID:     string(cfg.ActiveStrategyID),
	}
}

// MergeFlat overlays the fields present in a pulled settings record on cfg.
// Missing or mistyped fields keep their current value.
func MergeFlat(cfg domain.NotebookConfig, remote map[string]any) domain.NotebookConfig {
	out := Clone(cfg)
	if len(remote) == 0 {
		return out
	}
	setString(remote, KeyEmbeddingModel, &out.EmbeddingModel)
	if locked, ok := remote[KeyEmbeddingModelLocked].(bool); ok && locked {
		out.EmbeddingModelLocked = true
	}
	setString(remote, KeyUnstructuredPrompt, &out.SystemPrompts.Unstructured)
	setString(remote, KeyStructuredPrompt, &out.SystemPrompts.Structured)
	setString(remote, KeyInferenceProvider, &out.Inference.Provider)
	setString(remote, KeyInferenceModel, &out.Inference.Model)
	if f, ok := toFloat(remote[KeyInferenceTemperature]); ok {
		out.Inference.Temperature = f
	}
	for id, params := range remoteParams(remote[KeyStrategiesConfig]) {
		s, ok := out.Strategies[domain.StrategyID(id)]
		if !ok {
			continue
		}
		for k, v := range params {
			s.Params[k] = v
		}
		out.Strategies[domain.StrategyID(id)] = s
	}
	var active string
	setString(remote, KeyActiveStrategyID, &active)
	if _, ok := out.Strategies[domain.StrategyID(active)]; ok {
		out.ActiveStrategyID = domain.StrategyID(active)
	}
	return Repair(out)
}

// remoteParams accepts {id: {params: {...}}}, {id: {...numbers}} or the same
// encoded as a JSON string.
func remoteParams(v any) map[string]map[string]float64 {
	if s, ok := v.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil
		}
		v = decoded
	}
	all, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]map[string]float64, len(all))
	for id, raw := range all {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		params := map[string]float64{}
		var source map[string]any
		switch nested := entry["params"].(type) {
		case map[string]float64:
			for k, f := range nested {
				params[k] = f
			}
		case map[string]any:
			source = nested
		default:
			source = entry
		}
		for k, pv := range source {
			if f, ok := toFloat(pv); ok {
				params[k] = f
			}
		}
		out[id] = params
	}
	return out
}

func setString(m map[string]any, key string, dst *string) {
	if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
		*dst = s
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
