// Package models defines the note payload stored inside sync records.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CollectionNotes is the record collection notes are stored under.
const CollectionNotes = "notes"

// Note is the payload carried by a notes record. The sync layer treats it
// as opaque JSON; only the CLI reads these fields.
type Note struct {
	Title string   `json:"title"`
	Body  string   `json:"body,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Validate checks that a note is shaped well enough to store.
func (n *Note) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("note title is required")
	}
	for _, tag := range n.Tags {
		if strings.ContainsAny(tag, " ,") {
			return fmt.Errorf("tag %q must not contain spaces or commas", tag)
		}
	}
	return nil
}

// Marshal encodes the note as a record payload.
func (n *Note) Marshal() (json.RawMessage, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal note: %w", err)
	}
	return data, nil
}

// UnmarshalNote decodes a record payload into a Note.
func UnmarshalNote(payload json.RawMessage) (*Note, error) {
	var n Note
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("unmarshal note: %w", err)
	}
	return &n, nil
}

// HasTag reports whether the note carries the given tag.
func (n *Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Summary returns the first line of the body, truncated for list views.
func (n *Note) Summary(max int) string {
	line := n.Body
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if max > 0 && len(line) > max {
		line = line[:max-1] + "…"
	}
	return line
}
