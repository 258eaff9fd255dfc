package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragnotebook/internal/domain"
)

func testCatalog() Catalog {
	return NewCatalog(func(p string) string { return "http://hooks/" + p }, map[domain.StrategyID]Endpoints{
		domain.StrategyFusion: {Retrieval: "custom-fusion"},
	})
}

func TestCatalog_Defaults(t *testing.T) {
	c := testCatalog()
	assert.Len(t, c.IDs(), 6)
	assert.Equal(t, domain.StrategyFusion, c.IDs()[0])

	fusion, ok := c.Get(domain.StrategyFusion)
	require.True(t, ok)
	assert.Equal(t, "http://hooks/custom-fusion", fusion.RetrievalEndpoint)
	assert.Equal(t, "http://hooks/fusion-agent", fusion.AgenticEndpoint)
	assert.Equal(t, 60.0, fusion.Params["rrf_k"])

	cfg := c.DefaultConfig()
	_, ok = cfg.ActiveStrategy()
	assert.True(t, ok)
	assert.Len(t, cfg.Strategies, 6)
}

func TestCatalog_GetReturnsCopy(t *testing.T) {
	c := testCatalog()
	s, _ := c.Get(domain.StrategyFusion)
	s.Params["rrf_k"] = 1
	again, _ := c.Get(domain.StrategyFusion)
	assert.Equal(t, 60.0, again.Params["rrf_k"])
}

func TestMerge_StoredOverrides(t *testing.T) {
	c := testCatalog()
	stored := domain.NotebookConfig{
		EmbeddingModel: "bge-m3",
		Strategies: map[domain.StrategyID]domain.RetrievalStrategy{
			domain.StrategyFusion: {RetrievalEndpoint: "http://stale", Params: map[string]float64{"top_k": 3}},
			"retired":             {Params: map[string]float64{"x": 1}},
		},
		ActiveStrategyID: domain.StrategyHybridRerank,
	}
	cfg := c.Merge(stored)
	assert.Equal(t, "bge-m3", cfg.EmbeddingModel)
	assert.Equal(t, DefaultInferenceModel, cfg.Inference.Model)
	assert.Equal(t, 3.0, cfg.Strategies[domain.StrategyFusion].Params["top_k"])
	assert.Equal(t, 60.0, cfg.Strategies[domain.StrategyFusion].Params["rrf_k"])
	assert.Equal(t, "http://hooks/custom-fusion", cfg.Strategies[domain.StrategyFusion].RetrievalEndpoint)
	assert.NotContains(t, cfg.Strategies, domain.StrategyID("retired"))
	assert.Equal(t, domain.StrategyHybridRerank, cfg.ActiveStrategyID)
}

func TestMerge_RepairsActiveStrategy(t *testing.T) {
	cfg := testCatalog().Merge(domain.NotebookConfig{ActiveStrategyID: "gone"})
	assert.Equal(t, domain.StrategyFusion, cfg.ActiveStrategyID)

	only := Repair(domain.NotebookConfig{
		Strategies:       map[domain.StrategyID]domain.RetrievalStrategy{"b": {}, "a": {}},
		ActiveStrategyID: "z",
	})
	assert.Equal(t, domain.StrategyID("a"), only.ActiveStrategyID)
}

func TestFlattenMergeFlat_RoundTrip(t *testing.T) {
	c := testCatalog()
	cfg := c.DefaultConfig()
	cfg.EmbeddingModel = "nomic-embed"
	cfg.Inference.Temperature = 0.9
	cfg.ActiveStrategyID = domain.StrategyMultiQuery
	cfg.Strategies[domain.StrategyMultiQuery].Params["num_queries"] = 7

	flat := Flatten("nb-1", cfg)
	assert.Equal(t, "nb-1", flat[KeyNotebookID])

	got := MergeFlat(c.DefaultConfig(), flat)
	assert.Equal(t, "nomic-embed", got.EmbeddingModel)
	assert.Equal(t, 0.9, got.Inference.Temperature)
	assert.Equal(t, domain.StrategyMultiQuery, got.ActiveStrategyID)
	assert.Equal(t, 7.0, got.Strategies[domain.StrategyMultiQuery].Params["num_queries"])
}

func TestMergeFlat_PartialRemote(t *testing.T) {
	c := testCatalog()
	base := c.DefaultConfig()
	got := MergeFlat(base, map[string]any{
		KeyInferenceModel:       "llama3",
		KeyInferenceTemperature: "0.4",
		KeyActiveStrategyID:     "does-not-exist",
		KeyStrategiesConfig:     `{"fusion":{"top_k":"4"},"semantic-rerank":{"params":{"rerank_top_n":2}}}`,
	})
	assert.Equal(t, "llama3", got.Inference.Model)
	assert.Equal(t, 0.4, got.Inference.Temperature)
	assert.Equal(t, DefaultEmbeddingModel, got.EmbeddingModel)
	assert.Equal(t, domain.StrategyFusion, got.ActiveStrategyID)
	assert.Equal(t, 4.0, got.Strategies[domain.StrategyFusion].Params["top_k"])
	assert.Equal(t, 2.0, got.Strategies[domain.StrategySemanticRerank].Params["rerank_top_n"])
	assert.Equal(t, 10.0, base.Strategies[domain.StrategyFusion].Params["top_k"], "base must not be mutated")
}
