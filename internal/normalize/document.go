package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

const (
	// UnknownTitle is used when no usable title can be resolved.
	UnknownTitle = "Unknown Source"
	// SourceTypeFile is the only source type the backend produces today.
	SourceTypeFile = "file"

	longFieldMinLen = 50
)

// NormalizedDocument is the canonical view of a retrieved chunk.
type NormalizedDocument struct {
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata"`
	SourceType string         `json:"sourceType"`
	URL        string         `json:"url,omitempty"`
}

// FormattedScore renders the score the way result cards display it.
func (d NormalizedDocument) FormattedScore() string { return FormatScore(d.Score) }

var (
	contentKeys = []string{
		"enriched_text", "enriched_content", "summary", "chunk", "chunk_text",
		"content", "text", "pageContent", "page_content", "body", "output", "result",
	}
	scoreKeys         = []string{"relevance", "rerank_score", "combined_score", "vector_score", "score", "similarity"}
	enrichedTitleKeys = []string{"enriched_title", "generated_title", "summary_title"}
	titleKeys         = []string{"title", "file_title", "doc_title", "name", "file_name"}
	topTitleKeys      = append(append([]string{}, titleKeys...), "source", "url")
	linkKeys          = []string{"source", "url", "link"}

	titlePlaceholders = set("unknown", "null", "undefined", "object", "[object object]", "none")
	identifierKeys    = set("url", "source", "id", "file_path", "json")
	heavyKeys         = set("embedding", "vectors", "metadata", "json", "headers", "uuid")
	metadataStripped  = set(append([]string{"id", "_id", "uuid", "embedding", "vectors", "metadata", "json"}, contentKeys...)...)
)

// Normalize resolves title, content, score, metadata and url from a raw value
// whose field names are not fixed. Primitives produce a placeholder document.
func Normalize(raw any) NormalizedDocument {
	v := plain(Unwrap(raw))
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return NormalizedDocument{
			Title:      UnknownTitle,
			Content:    primitiveText(v),
			Metadata:   map[string]any{},
			SourceType: SourceTypeFile,
		}
	}
	meta, _ := obj["metadata"].(map[string]any)
	url := firstString(meta, "source", "url")
	if url == "" {
		url = firstString(obj, "source", "url")
	}
	return NormalizedDocument{
		Title:      resolveTitle(obj, meta),
		Content:    resolveContent(obj),
		Score:      resolveScore(obj),
		Metadata:   mergeMetadata(obj, meta),
		SourceType: SourceTypeFile,
		URL:        url,
	}
}

// ContentOf returns the first non-empty content synonym of v.
func ContentOf(v any) (string, bool) {
	obj, ok := fieldsOf(Unwrap(v))
	if !ok {
		return "", false
	}
	s := firstString(obj, contentKeys...)
	return s, s != ""
}

// LooksLikeDocument reports whether v carries a text-bearing field.
func LooksLikeDocument(v any) bool {
	_, ok := ContentOf(v)
	return ok
}

// FormatScore renders scores above 1 as absolute values and the rest as percentages.
func FormatScore(score float64) string {
	if score > 1 {
		return fmt.Sprintf("%.2f", score)
	}
	return fmt.Sprintf("%d%%", int(math.Round(score*100)))
}

func resolveTitle(obj, meta map[string]any) string {
	for _, k := range enrichedTitleKeys {
		if t, ok := validTitle(obj[k]); ok {
			return t
		}
	}
	if t, ok := lookupTitle(meta, titleKeys); ok {
		return t
	}
	if t, ok := lookupTitle(obj, topTitleKeys); ok {
		return t
	}
	for _, m := range []map[string]any{obj, meta} {
		for _, k := range linkKeys {
			s, ok := m[k].(string)
			if !ok {
				continue
			}
			if t, ok := validTitle(lastSegment(s)); ok {
				return t
			}
		}
	}
	return UnknownTitle
}

// lookupTitle tries exact keys first, then a case-insensitive match.
func lookupTitle(m map[string]any, keys []string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, k := range keys {
		if t, ok := validTitle(m[k]); ok {
			return t, true
		}
	}
	names := sortedKeys(m)
	for _, k := range keys {
		for _, name := range names {
			if name == k || !strings.EqualFold(name, k) {
				continue
			}
			if t, ok := validTitle(m[name]); ok {
				return t, true
			}
		}
	}
	return "", false
}

func validTitle(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if _, bad := titlePlaceholders[strings.ToLower(s)]; bad {
		return "", false
	}
	return s, true
}

func lastSegment(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func resolveContent(obj map[string]any) string {
	if s := firstString(obj, contentKeys...); s != "" {
		return s
	}
	longest := ""
	for _, k := range sortedKeys(obj) {
		if _, skip := identifierKeys[k]; skip {
			continue
		}
		s, ok := obj[k].(string)
		if ok && len(s) > longFieldMinLen && len(s) > len(longest) {
			longest = s
		}
	}
	if longest != "" {
		return longest
	}
	light := make(map[string]any, len(obj))
	for k, v := range obj {
		if _, skip := heavyKeys[k]; !skip {
			light[k] = v
		}
	}
	return primitiveText(light)
}

func resolveScore(obj map[string]any) float64 {
	for _, k := range scoreKeys {
		f, ok := number(obj[k])
		if !ok {
			continue
		}
		if f < 0 {
			return 0
		}
		return f
	}
	return 0
}

func mergeMetadata(obj, meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+len(obj))
	for k, v := range meta {
		out[k] = v
	}
	for k, v := range obj {
		out[k] = v
	}
	for k := range metadataStripped {
		delete(out, k)
	}
	return out
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func firstString(m map[string]any, keys ...string) string {
	if m == nil {
		return ""
	}
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func primitiveText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func set(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}
