package config

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// parseDocument decodes YAML bytes into a generic tree whose top level must be a mapping.
func parseDocument(data []byte) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("document is empty")
	}
	doc, ok := normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top level is a %T, expected a mapping", raw)
	}
	return doc, nil
}

// normalize converts nested map[any]any into map[string]any so every mapping has string keys.
func normalize(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			node[k] = normalize(child)
		}
		return node
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[fmt.Sprint(k)] = normalize(child)
		}
		return out
	case []any:
		for i, child := range node {
			node[i] = normalize(child)
		}
		return node
	default:
		return v
	}
}

// deepCopy returns a copy of a generic tree that shares no mappings or lists with v.
func deepCopy(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[k] = deepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return v
	}
}

func copyDocument(doc map[string]any) map[string]any {
	return deepCopy(doc).(map[string]any)
}

// toDocument converts a typed value into the generic tree it serialises to.
func toDocument(v any) (map[string]any, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return parseDocument(data)
}

// decodeDocument converts a generic tree into out. Fields unknown to out are rejected.
func decodeDocument(doc map[string]any, out any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// Get returns the value at a dotted path inside doc.
func Get(doc map[string]any, path string) (any, bool) {
	return lookup(doc, splitPath(path))
}
