package normalize

import "encoding/json"

// Dedupe drops repeated chunks, keeping the first occurrence of each. Chunks
// are keyed by content, or by their JSON form when they have none.
func Dedupe(docs []RawDocument) []RawDocument {
	if len(docs) == 0 {
		return docs
	}
	seen := make(map[string]struct{}, len(docs))
	out := make([]RawDocument, 0, len(docs))
	for _, d := range docs {
		key, ok := ContentOf(d)
		if !ok {
			data, err := json.Marshal(d)
			if err != nil {
				out = append(out, d)
				continue
			}
			key = "\x00" + string(data)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}
