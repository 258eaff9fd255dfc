package normalize

// DirectMatchQuery names the bucket of documents that carry no query tag.
const DirectMatchQuery = "Direct Match (No Query)"

// QueryGroup pairs a generated sub-query with the documents retrieved for it.
type QueryGroup struct {
	Query  string        `json:"query"`
	Chunks []RawDocument `json:"chunks"`
}

var (
	groupQueryKeys = []string{"query", "generated_query", "search_query"}
	groupDocsKeys  = []string{"output", "results", "data"}
)

// GroupByQuery recovers sub-query groups from a multi-query response. Groups
// are unique by query text; the first occurrence wins.
func GroupByQuery(raw any) []QueryGroup {
	groups, _ := groupByQuery(raw, DefaultMaxDepth)
	return groups
}

// groupByQuery also reports whether the per-document bucketing fallback
// produced the result.
func groupByQuery(raw any, maxDepth int) ([]QueryGroup, bool) {
	payload := Unwrap(raw)
	g := grouper{maxDepth: maxDepth, seen: map[string]bool{}}
	g.collect(payload, 0)
	if len(g.groups) > 0 {
		if len(g.unnamed) > 0 {
			g.add(DirectMatchQuery, g.unnamed)
		}
		return g.groups, false
	}
	docs := FindDocuments(payload, maxDepth)
	if len(docs) == 0 {
		return nil, false
	}
	index := map[string]int{}
	var groups []QueryGroup
	for _, d := range docs {
		q := documentQuery(d)
		if q == "" {
			q = DirectMatchQuery
		}
		i, ok := index[q]
		if !ok {
			i = len(groups)
			index[q] = i
			groups = append(groups, QueryGroup{Query: q})
		}
		groups[i].Chunks = append(groups[i].Chunks, d)
	}
	return groups, true
}

type grouper struct {
	maxDepth int
	seen     map[string]bool
	groups   []QueryGroup
	// unnamed holds documents of query entries whose query text could not be recovered.
	unnamed []RawDocument
}

func (g *grouper) collect(node any, depth int) {
	if depth > g.maxDepth {
		return
	}
	switch n := Unwrap(node).(type) {
	case []any:
		for _, e := range n {
			item, ok := fieldsOf(e)
			if !ok {
				continue
			}
			docsField, ok := firstContainer(item, groupDocsKeys...)
			if !ok {
				continue
			}
			chunks := FindDocuments(docsField, g.maxDepth)
			q := firstString(item, groupQueryKeys...)
			if q == "" && len(chunks) > 0 {
				meta, _ := chunks[0]["metadata"].(map[string]any)
				q = firstString(meta, "query")
				if q == "" {
					q = firstString(chunks[0], "query")
				}
			}
			if q == "" {
				g.unnamed = append(g.unnamed, chunks...)
				continue
			}
			g.add(q, chunks)
		}
	case map[string]any, *Object:
		fields, _ := fieldsOf(n)
		if queries, ok := fields["queries"].([]any); ok {
			g.collect(queries, depth+1)
		}
	}
}

func (g *grouper) add(query string, chunks []RawDocument) {
	if g.seen[query] {
		return
	}
	g.seen[query] = true
	g.groups = append(g.groups, QueryGroup{Query: query, Chunks: chunks})
}

// documentQuery reads the query tag a document was retrieved for.
func documentQuery(d RawDocument) string {
	if q := firstString(d, "query"); q != "" {
		return q
	}
	meta, _ := d["metadata"].(map[string]any)
	if q := firstString(meta, "query"); q != "" {
		return q
	}
	return firstString(d, "generated_query")
}

func firstContainer(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case []any, map[string]any, *Object:
			return v, true
		}
	}
	return nil, false
}
