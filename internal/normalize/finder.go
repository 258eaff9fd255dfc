package normalize

// DefaultMaxDepth bounds how deep FindDocuments descends into a payload.
const DefaultMaxDepth = 4

// containerKeys are checked in order; the first one holding an array is the
// only branch followed.
var containerKeys = []string{"results", "output", "docs", "documents", "fused_results", "reranked_results"}

// FindDocuments walks v depth-first and returns every document-like node in
// discovery order. Nodes deeper than maxDepth are ignored; maxDepth <= 0
// selects DefaultMaxDepth.
func FindDocuments(v any, maxDepth int) []RawDocument {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var out []RawDocument
	findDocuments(v, 0, maxDepth, &out)
	return out
}

func findDocuments(v any, depth, maxDepth int, out *[]RawDocument) {
	if depth > maxDepth {
		return
	}
	node := Unwrap(v)
	if arr, ok := node.([]any); ok {
		if docs, ok := homogeneousDocuments(arr); ok {
			*out = append(*out, docs...)
			return
		}
		for _, e := range arr {
			findDocuments(e, depth+1, maxDepth, out)
		}
		return
	}
	fields, ok := fieldsOf(node)
	if !ok {
		return
	}
	for _, k := range containerKeys {
		if arr, ok := fields[k].([]any); ok {
			findDocuments(arr, depth+1, maxDepth, out)
			return
		}
	}
	if LooksLikeDocument(node) {
		*out = append(*out, plainObject(node))
		return
	}
	for _, k := range keysOf(node) {
		findDocuments(fields[k], depth+1, maxDepth, out)
	}
}

// homogeneousDocuments returns the elements of an already unwrapped array
// when every one of them looks like a document.
func homogeneousDocuments(arr []any) ([]RawDocument, bool) {
	if len(arr) == 0 {
		return nil, false
	}
	docs := make([]RawDocument, 0, len(arr))
	for _, e := range arr {
		if _, ok := fieldsOf(e); !ok || !LooksLikeDocument(e) {
			return nil, false
		}
		docs = append(docs, plainObject(e))
	}
	return docs, true
}
