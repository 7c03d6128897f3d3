package models

import (
	"encoding/json"
	"maps"
)

// Node is a read-only reference entry of the context graph.
//
// Fields not modelled here (annotations, themes, provider-defined mappings)
// are kept in Extra so a seed can carry them without a schema change.
type Node struct {
	ID          string   `yaml:"id"`
	ParentID    string   `yaml:"parentId,omitempty"`
	Title       string   `yaml:"title"`
	Marker      string   `yaml:"marker,omitempty"`
	Type        string   `yaml:"type,omitempty"`
	Timestamp   string   `yaml:"timestamp,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Children    []string `yaml:"children,omitempty"`

	Extra map[string]any `yaml:",inline"`
}

var nodeKnownKeys = map[string]struct{}{
	"id": {}, "parentId": {}, "title": {}, "marker": {}, "type": {},
	"timestamp": {}, "description": {}, "tags": {}, "children": {},
}

// MarshalJSON flattens Extra next to the known fields.
func (n Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Extra)+9)
	for k, v := range n.Extra {
		if _, known := nodeKnownKeys[k]; !known {
			out[k] = jsonSafe(v)
		}
	}
	out["id"] = n.ID
	out["title"] = n.Title
	if n.ParentID != "" {
		out["parentId"] = n.ParentID
	}
	if n.Marker != "" {
		out["marker"] = n.Marker
	}
	if n.Type != "" {
		out["type"] = n.Type
	}
	if n.Timestamp != "" {
		out["timestamp"] = n.Timestamp
	}
	if n.Description != "" {
		out["description"] = n.Description
	}
	if len(n.Tags) > 0 {
		out["tags"] = n.Tags
	}
	if n.Children != nil {
		out["children"] = n.Children
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads known fields and keeps the rest in Extra.
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain struct {
		ID          string   `json:"id"`
		ParentID    string   `json:"parentId"`
		Title       string   `json:"title"`
		Marker      string   `json:"marker"`
		Type        string   `json:"type"`
		Timestamp   string   `json:"timestamp"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
		Children    []string `json:"children"`
	}
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Node{
		ID:          p.ID,
		ParentID:    p.ParentID,
		Title:       p.Title,
		Marker:      p.Marker,
		Type:        p.Type,
		Timestamp:   p.Timestamp,
		Description: p.Description,
		Tags:        p.Tags,
		Children:    p.Children,
	}
	for k := range nodeKnownKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		n.Extra = raw
	}
	return nil
}

// Clone returns a copy of n whose slices and top-level Extra map are not shared.
func (n Node) Clone() Node {
	out := n
	out.Tags = append([]string(nil), n.Tags...)
	out.Children = append([]string(nil), n.Children...)
	if n.Extra != nil {
		out.Extra = maps.Clone(n.Extra)
	}
	return out
}

// Edge is a directed relation between two reference nodes.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
	Type string `json:"type" yaml:"type"`
	Via  string `json:"via,omitempty" yaml:"via,omitempty"`
}

// jsonSafe converts map[any]any values, which encoding/json rejects, into
// map[string]any recursively. yaml.v3 produces map[string]any for string keys
// but nested non-string keys can still appear.
func jsonSafe(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			if ks, ok := k.(string); ok {
				m[ks] = jsonSafe(val)
			}
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = jsonSafe(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = jsonSafe(val)
		}
		return s
	default:
		return v
	}
}
