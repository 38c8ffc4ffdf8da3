package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chatlift/guidedflow/internal/models"
)

// encodeOptions serializes a flow's options for the JSON document column.
func encodeOptions(opts []models.Option) (string, error) {
	if opts == nil {
		opts = []models.Option{}
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("failed to encode options: %w", err)
	}
	return string(data), nil
}

// scanFlow scans one flow row (id, name, language, active, options, version).
func scanFlow(rows *sql.Rows) (models.Flow, error) {
	var f models.Flow
	var optionsJSON string
	if err := rows.Scan(&f.ID, &f.Name, &f.Language, &f.Active, &optionsJSON, &f.Version); err != nil {
		return f, fmt.Errorf("scan flow failed: %w", err)
	}
	if err := json.Unmarshal([]byte(optionsJSON), &f.Options); err != nil {
		return f, fmt.Errorf("failed to decode options for flow %s: %w", f.Name, err)
	}
	return f, nil
}
