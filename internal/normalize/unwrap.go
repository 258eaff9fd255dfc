// Package normalize turns loosely shaped retrieval responses into documents,
// query groups and ranked views. Nothing in this package returns an error:
// unrecognised input degrades to placeholders and empty results.
package normalize

// RawDocument is a document-like JSON object as returned by a retrieval webhook.
type RawDocument = map[string]any

const envelopeKey = "json"

// Unwrap strips the {json: X, ...rest} item envelope. Arrays have each element
// unwrapped. Fields of X are spread first; sibling fields win on conflict.
// Values that do not carry an envelope are returned unchanged.
func Unwrap(v any) any {
	switch node := v.(type) {
	case []any:
		out := make([]any, len(node))
		for i, e := range node {
			out[i] = unwrapItem(e)
		}
		return out
	case map[string]any, *Object:
		return unwrapItem(node)
	}
	return v
}

// Envelopes can be chained; peeling all of them keeps Unwrap idempotent.
func unwrapItem(v any) any {
	switch obj := v.(type) {
	case map[string]any:
		for {
			inner, ok := fieldsOf(obj[envelopeKey])
			if !ok {
				return obj
			}
			merged := make(map[string]any, len(inner)+len(obj))
			for k, val := range inner {
				merged[k] = val
			}
			for k, val := range obj {
				if k != envelopeKey {
					merged[k] = val
				}
			}
			obj = merged
		}
	case *Object:
		for {
			env := obj.Fields[envelopeKey]
			inner, ok := fieldsOf(env)
			if !ok {
				return obj
			}
			merged := &Object{Fields: make(map[string]any, len(inner)+len(obj.Fields))}
			for _, k := range keysOf(env) {
				merged.Set(k, inner[k])
			}
			for _, k := range obj.Keys {
				if k != envelopeKey {
					merged.Set(k, obj.Fields[k])
				}
			}
			obj = merged
		}
	}
	return v
}
