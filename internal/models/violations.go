// Package models defines validation reporting structures for guidedflow.
package models

import (
	"fmt"
	"strings"
)

// Violation describes one validation failure, tagged with the offending
// flow/option so an editor can highlight it. OptionID and Field are empty for
// flow-level failures.
type Violation struct {
	FlowID   string `json:"flow_id,omitempty"`
	FlowName string `json:"flow_name"`
	OptionID string `json:"option_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

func (v Violation) String() string {
	var sb strings.Builder
	sb.WriteString("flow ")
	sb.WriteString(v.FlowName)
	if v.OptionID != "" {
		fmt.Fprintf(&sb, ", option %s", v.OptionID)
	}
	if v.Field != "" {
		fmt.Fprintf(&sb, ", field %s", v.Field)
	}
	sb.WriteString(": ")
	sb.WriteString(v.Message)
	return sb.String()
}

// ValidationError aggregates the violations that rejected a candidate graph.
// Data is never silently dropped or auto-corrected; the caller fixes the
// staged flow and retries.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
