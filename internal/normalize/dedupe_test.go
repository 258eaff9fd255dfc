package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupe(t *testing.T) {
	a := RawDocument{"content": "same", "id": "1"}
	a2 := RawDocument{"content": "same", "id": "2"}
	b := RawDocument{"text": "other"}

	got := Dedupe([]RawDocument{a, a2, b})
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0]["id"])
	assert.Equal(t, "other", got[1]["text"])
}

func TestDedupe_NoContentUsesJSON(t *testing.T) {
	x := RawDocument{"k": 1.0}
	y := RawDocument{"k": 1.0}
	z := RawDocument{"k": 2.0}
	assert.Len(t, Dedupe([]RawDocument{x, y, z}), 2)
	assert.Empty(t, Dedupe(nil))
}
