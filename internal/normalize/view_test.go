package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectView_FusionRanked(t *testing.T) {
	data := Decode([]byte(`{"output":[{"text":"Paris is the capital.","score":0.92},{"text":"It has the Eiffel Tower.","score":0.81}]}`))
	v := SelectView("fusion", data)

	assert.Equal(t, ViewRanked, v.Mode)
	require.Len(t, v.Items, 2)
	first := v.Items[0]
	assert.Equal(t, 1, first.Rank)
	assert.InDelta(t, 0.92, first.Document.Score, 1e-9)
	assert.Equal(t, "92%", first.Document.FormattedScore())
	assert.Equal(t, UnknownTitle, first.Document.Title)
	assert.Equal(t, 1, v.Medal(1))
	assert.Equal(t, 0, v.Medal(4))
}

func TestSelectView_KeepsBackendOrder(t *testing.T) {
	data := Decode([]byte(`[{"text":"low","score":0.1},{"text":"high","score":0.9}]`))
	v := SelectView("hybrid-rerank", data)
	require.Len(t, v.Items, 2)
	assert.Equal(t, "low", v.Items[0].Document.Content)
	assert.Equal(t, 3, v.HighlightTop)
}

func TestSelectView_SemanticContextNoMedals(t *testing.T) {
	v := SelectView("semantic-context", []any{map[string]any{"text": "a"}})
	assert.Equal(t, 0, v.HighlightTop)
	assert.Equal(t, 0, v.Medal(1))

	unknown := SelectView("brand-new", []any{map[string]any{"text": "a"}})
	assert.Equal(t, ViewRanked, unknown.Mode)
	assert.Equal(t, 0, unknown.HighlightTop)
}

func TestSelectView_MultiQueryGrouped(t *testing.T) {
	data := Decode([]byte(`[{"json":{"query":"capital of France","output":[{"content":"Paris is the capital."}]}}]`))
	v := SelectView("multi-query", data)

	assert.Equal(t, ViewGrouped, v.Mode)
	require.Len(t, v.Groups, 1)
	assert.Equal(t, "capital of France", v.Groups[0].Query)
	assert.Len(t, v.Groups[0].Items, 1)
	assert.Equal(t, 1, v.Count())
}

func TestSelectView_MultiQuerySingleSyntheticGroupIsFlat(t *testing.T) {
	data := Decode([]byte(`{"results":[{"text":"a"},{"text":"b"}]}`))
	v := SelectView("multi-query", data)
	assert.Equal(t, ViewRanked, v.Mode)
	assert.Len(t, v.Items, 2)
	assert.Empty(t, v.Groups)
}

func TestSelectView_MultiQueryNoGroups(t *testing.T) {
	v := SelectView("multi-query", map[string]any{"status": "ok"})
	assert.Equal(t, ViewEmpty, v.Mode)
	assert.Equal(t, NoSubQueriesWarning, v.Warning)
}

func TestSelectView_EmptyObject(t *testing.T) {
	for _, s := range []string{"fusion", "multi-query", "expanded-hybrid", "semantic-context", "semantic-rerank", "hybrid-rerank"} {
		v := SelectView(s, Decode([]byte(`{}`)))
		assert.Equal(t, ViewEmpty, v.Mode, s)
		assert.Zero(t, v.Count(), s)
	}
}

func TestRenderRaw(t *testing.T) {
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": 2\n}", RenderRaw([]byte(`{"b":1,"a":2}`)))
	assert.Equal(t, "not json", RenderRaw([]byte("not json")))
	assert.Equal(t, "", RenderRaw(nil))
}
