package tn3270

import "strings"

// Snapshot is an immutable read of the screen at one instant: dimensions,
// 0-indexed cursor position and the full screen text (rows joined by
// newlines). Fields carries per-field descriptors when the driver provides
// them; an empty list is valid.
type Snapshot struct {
	Rows      int              `json:"rows"`
	Cols      int              `json:"cols"`
	CursorRow int              `json:"cursor_row"`
	CursorCol int              `json:"cursor_col"`
	Text      string           `json:"text"`
	Fields    []map[string]any `json:"fields"`
}

// Contains reports whether the screen text contains the given substring.
func (s *Snapshot) Contains(text string) bool {
	return strings.Contains(s.Text, text)
}
