package normalize

import (
	"bytes"
	"encoding/json"
)

// ViewMode selects how a retrieval response is laid out.
type ViewMode string

const (
	ViewEmpty   ViewMode = "empty"
	ViewRanked  ViewMode = "ranked"
	ViewGrouped ViewMode = "grouped"
)

const (
	strategyMultiQuery = "multi-query"

	medalCount = 3

	// NoSubQueriesWarning is shown when a multi-query response yields no groups.
	NoSubQueriesWarning = "No sub-queries could be recovered from this response; showing raw matches."
)

// medalStrategies mark their top results.
var medalStrategies = set("fusion", "expanded-hybrid", "semantic-rerank", "hybrid-rerank")

// RankedDocument is a document with its arrival position (1-based).
type RankedDocument struct {
	Rank     int                `json:"rank"`
	Document NormalizedDocument `json:"document"`
	Raw      RawDocument        `json:"raw"`
}

// GroupView is a query group ready for display.
type GroupView struct {
	Query string           `json:"query"`
	Items []RankedDocument `json:"items"`
}

// View is the routed presentation of a retrieval response. Raw always holds
// the untouched response so callers can offer a raw toggle.
type View struct {
	Strategy     string           `json:"strategy"`
	Mode         ViewMode         `json:"mode"`
	Items        []RankedDocument `json:"items,omitempty"`
	Groups       []GroupView      `json:"groups,omitempty"`
	HighlightTop int              `json:"highlight_top"`
	Warning      string           `json:"warning,omitempty"`
	Raw          any              `json:"-"`
}

// Count returns the number of documents in the view.
func (v View) Count() int {
	n := len(v.Items)
	for _, g := range v.Groups {
		n += len(g.Items)
	}
	return n
}

// Medal returns the 1-based medal position of a rank, or 0 when the rank is
// not highlighted in this view.
func (v View) Medal(rank int) int {
	if rank >= 1 && rank <= v.HighlightTop {
		return rank
	}
	return 0
}

// Router dispatches a strategy response to its view.
type Router struct {
	MaxDepth int
}

// SelectView routes data with the default search depth.
func SelectView(strategyID string, data any) View {
	return Router{MaxDepth: DefaultMaxDepth}.Select(strategyID, data)
}

// Select builds the view for strategyID. The backend order is kept as the rank.
func (r Router) Select(strategyID string, data any) View {
	depth := r.MaxDepth
	if depth <= 0 {
		depth = DefaultMaxDepth
	}
	v := View{Strategy: strategyID, Raw: data}
	if strategyID == strategyMultiQuery {
		return r.multiQuery(v, data, depth)
	}
	if _, ok := medalStrategies[strategyID]; ok {
		v.HighlightTop = medalCount
	}
	return withItems(v, FindDocuments(data, depth))
}

func (r Router) multiQuery(v View, data any, depth int) View {
	groups, fallback := groupByQuery(data, depth)
	switch {
	case len(groups) == 0:
		v.Warning = NoSubQueriesWarning
		return withItems(v, FindDocuments(data, depth))
	case fallback && len(groups) == 1 && groups[0].Query == DirectMatchQuery:
		return withItems(v, groups[0].Chunks)
	}
	v.Mode = ViewGrouped
	for _, g := range groups {
		v.Groups = append(v.Groups, GroupView{Query: g.Query, Items: rank(g.Chunks)})
	}
	return v
}

func withItems(v View, docs []RawDocument) View {
	if len(docs) == 0 {
		v.Mode = ViewEmpty
		return v
	}
	v.Mode = ViewRanked
	v.Items = rank(docs)
	return v
}

func rank(docs []RawDocument) []RankedDocument {
	out := make([]RankedDocument, len(docs))
	for i, d := range docs {
		out[i] = RankedDocument{Rank: i + 1, Document: Normalize(d), Raw: d}
	}
	return out
}

// RenderRaw pretty-prints a response body without reordering keys. Bodies
// that are not JSON are returned as text.
func RenderRaw(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}
