// Package graph holds the committed set of flows for one owner and the
// validation rules that guard every edit.
//
// A Model is an immutable snapshot: it is rebuilt from the document store
// after every successful commit and never mutated in place.
package graph

import (
	"fmt"

	"github.com/chatlift/guidedflow/internal/models"
)

// Model is a read-only view of one owner's committed flows, keyed by name.
type Model struct {
	flows map[string]models.Flow
	names []string // construction order, for stable iteration
}

// NewModel builds a snapshot from a set of committed flows.
// Duplicate flow names are rejected, because lookups are by name.
func NewModel(flows []models.Flow) (*Model, error) {
	m := &Model{flows: make(map[string]models.Flow, len(flows))}
	for _, f := range flows {
		if _, exists := m.flows[f.Name]; exists {
			return nil, fmt.Errorf("%w: %s", models.ErrFlowNameTaken, f.Name)
		}
		m.flows[f.Name] = f
		m.names = append(m.names, f.Name)
	}
	return m, nil
}

// ByName looks up a flow by its name.
func (m *Model) ByName(name string) (models.Flow, bool) {
	f, ok := m.flows[name]
	return f, ok
}

// AllNames returns every flow name in construction order.
func (m *Model) AllNames() []string {
	return append([]string(nil), m.names...)
}

// OutgoingEdges returns the options of the named flow, or nil if it is absent.
func (m *Model) OutgoingEdges(flowName string) []models.Option {
	f, ok := m.flows[flowName]
	if !ok {
		return nil
	}
	return f.Options
}

// Flows returns deep copies of every flow in construction order.
func (m *Model) Flows() []models.Flow {
	out := make([]models.Flow, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, m.flows[name].Clone())
	}
	return out
}

// Len returns the number of flows in the snapshot.
func (m *Model) Len() int {
	return len(m.flows)
}
