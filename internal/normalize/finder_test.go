package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDocuments_HomogeneousArray(t *testing.T) {
	arr := []any{
		map[string]any{"content": "a", "results": []any{map[string]any{"content": "nested"}}},
		map[string]any{"content": "b"},
		map[string]any{"content": "c"},
	}
	got := FindDocuments(arr, DefaultMaxDepth)
	require.Len(t, got, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, got[i]["content"])
	}
}

func TestFindDocuments_ContainerKeyFirstMatch(t *testing.T) {
	payload := map[string]any{
		"output":  []any{map[string]any{"text": "from output"}},
		"results": []any{map[string]any{"text": "from results"}},
		"other":   map[string]any{"text": "ignored"},
	}
	got := FindDocuments(payload, DefaultMaxDepth)
	require.Len(t, got, 1)
	assert.Equal(t, "from results", got[0]["text"])
}

func TestFindDocuments_MixedArrayRecurses(t *testing.T) {
	payload := []any{
		map[string]any{"json": map[string]any{"documents": []any{map[string]any{"chunk": "one"}}}},
		"noise",
		map[string]any{"page_content": "two"},
	}
	got := FindDocuments(payload, DefaultMaxDepth)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0]["chunk"])
	assert.Equal(t, "two", got[1]["page_content"])
}

func TestFindDocuments_GenericRecursion(t *testing.T) {
	payload := map[string]any{
		"b": map[string]any{"text": "second"},
		"a": map[string]any{"inner": map[string]any{"text": "first"}},
	}
	got := FindDocuments(payload, DefaultMaxDepth)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0]["text"])
	assert.Equal(t, "second", got[1]["text"])
}

func TestFindDocuments_DepthBound(t *testing.T) {
	var node any = map[string]any{"text": "deep"}
	for i := 0; i < 10000; i++ {
		node = map[string]any{"wrap": node}
	}
	assert.Empty(t, FindDocuments(node, DefaultMaxDepth))

	shallow := map[string]any{"a": map[string]any{"b": map[string]any{"text": "x"}}}
	assert.Len(t, FindDocuments(shallow, 2), 1)
	assert.Empty(t, FindDocuments(shallow, 1))
}

func TestFindDocuments_Primitives(t *testing.T) {
	assert.Empty(t, FindDocuments(nil, 0))
	assert.Empty(t, FindDocuments("text", 0))
	assert.Empty(t, FindDocuments(map[string]any{}, 0))
	assert.Empty(t, FindDocuments([]any{}, 0))
}
