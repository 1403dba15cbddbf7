package schema

import (
	"fmt"
	"strings"
)

// Violation is a single field-level validation failure.
type Violation struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
	Message  string `json:"message"`
}

// Error reports every violation found in one validation pass.
type Error struct {
	Action     string         `json:"action"`
	Violations []Violation    `json:"violations"`
	Example    map[string]any `json:"example,omitempty"`
	Doc        string         `json:"doc,omitempty"`
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return fmt.Sprintf("invalid parameters for %s: %s", e.Action, strings.Join(msgs, "; "))
}
