// Package models defines core data structures for documents, search requests, and ranked results.
package models

// Document is a retrievable unit of text. Documents are treated as immutable
// once an index generation has been built from them.
type Document struct {
	ID       string                 `json:"id" db:"id"`
	Text     string                 `json:"text" db:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}

// Clone returns a copy of d whose metadata map can be mutated without
// affecting d. Nested values inside the map are shared.
func (d Document) Clone() Document {
	out := Document{ID: d.ID, Text: d.Text}
	if d.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Name returns the "name" metadata value, or "" when absent.
func (d Document) Name() string {
	if d.Metadata == nil {
		return ""
	}
	if s, ok := d.Metadata["name"].(string); ok {
		return s
	}
	return ""
}
