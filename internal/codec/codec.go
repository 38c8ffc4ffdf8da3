// Package codec serializes a whole flow graph to one portable text document
// and back, for backup and migration between installations.
//
// Export produces JSON by default; YAML is offered for hand-edited documents.
// Import sniffs the format, then replays every flow through the validator so
// a bad document is rejected as a whole — a partial import never half-applies.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/chatlift/guidedflow/internal/graph"
	"github.com/chatlift/guidedflow/internal/models"
)

// DocumentVersion is the current export document format version.
const DocumentVersion = 1

// Document is the top-level structure of an exported graph.
type Document struct {
	Version int           `json:"version" yaml:"version"`
	Flows   []models.Flow `json:"flows" yaml:"flows"`
}

// Export renders the committed graph as an indented JSON document.
func Export(m *graph.Model) ([]byte, error) {
	doc := Document{Version: DocumentVersion, Flows: m.Flows()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		slog.Error("codec Export marshal failed", "error", err)
		return nil, fmt.Errorf("failed to export graph: %w", err)
	}
	slog.Debug("codec Export succeeded", "flows", len(doc.Flows), "bytes", len(data))
	return data, nil
}

// ExportYAML renders the committed graph as a YAML document.
func ExportYAML(m *graph.Model) ([]byte, error) {
	doc := Document{Version: DocumentVersion, Flows: m.Flows()}
	data, err := yaml.Marshal(doc)
	if err != nil {
		slog.Error("codec ExportYAML marshal failed", "error", err)
		return nil, fmt.Errorf("failed to export graph: %w", err)
	}
	slog.Debug("codec ExportYAML succeeded", "flows", len(doc.Flows), "bytes", len(data))
	return data, nil
}

// Import decodes a JSON or YAML export document and validates every flow
// against the full imported graph, as if each were an edit arriving in
// sequence. The first violation aborts the whole batch, identifying the
// offending flow and option. The imported graph must contain main.
func Import(data []byte) ([]models.Flow, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("unsupported document version %d", doc.Version)
	}

	if violations := graph.CheckAll(doc.Flows); len(violations) > 0 {
		slog.Debug("codec Import rejected", "violations", len(violations))
		return nil, &models.ValidationError{Violations: violations}
	}

	slog.Debug("codec Import accepted", "flows", len(doc.Flows))
	return doc.Flows, nil
}

// decode sniffs the document format: JSON documents start with '{',
// everything else is treated as YAML.
func decode(data []byte) (Document, error) {
	var doc Document
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return doc, fmt.Errorf("empty import document")
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return doc, fmt.Errorf("failed to decode JSON document: %w", err)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode YAML document: %w", err)
	}
	return doc, nil
}
