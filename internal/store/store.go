// Package store provides storage backends for guidedflow flow documents.
//
// It includes an in-memory store for tests and ephemeral use, plus persistent
// SQLite and PostgreSQL backends. All backends share the same contract: reads
// return the last committed graph, a write is all-or-nothing for one flow, and
// concurrent modification of the same flow surfaces as ErrVersionConflict for
// the caller to re-fetch and retry.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/chatlift/guidedflow/internal/models"
)

// Error variables shared by all backends
var (
	// ErrFlowNotFound indicates the named flow does not exist for the owner.
	ErrFlowNotFound = errors.New("flow not found")
	// ErrVersionConflict indicates a concurrent write modified the flow since
	// it was read. The caller re-fetches and re-validates.
	ErrVersionConflict = errors.New("flow was modified concurrently")
)

// Store is the flow document store contract consumed by the editor and CLI.
type Store interface {
	// ListFlows returns every flow owned by owner, main first, then by name.
	ListFlows(ctx context.Context, owner string) ([]models.Flow, error)
	// SaveFlow inserts or updates one flow, assigning durable ids to new
	// flows and to temporary option ids, and returns the stored record.
	SaveFlow(ctx context.Context, owner string, flow models.Flow) (models.Flow, error)
	// DeleteFlow removes one flow by name.
	DeleteFlow(ctx context.Context, owner string, name string) error
	// ReplaceAll atomically replaces the owner's whole graph (import target).
	ReplaceAll(ctx context.Context, owner string, flows []models.Flow) error
	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for persistent store backends.
type Opts struct {
	DSN string // database connection string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// tempIDPrefix mirrors the editor's client-side id marker. Option ids with
// this prefix are replaced on save.
const tempIDPrefix = "tmp-"

// assignIDs gives a new flow and its temporary options durable uuids.
func assignIDs(flow models.Flow) models.Flow {
	f := flow.Clone()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	for i := range f.Options {
		if f.Options[i].ID == "" || strings.HasPrefix(f.Options[i].ID, tempIDPrefix) {
			f.Options[i].ID = uuid.NewString()
		}
	}
	return f
}

// sortFlows orders flows main-first, then alphabetically, so rebuilt graph
// models iterate deterministically.
func sortFlows(flows []models.Flow) {
	sort.Slice(flows, func(i, j int) bool {
		if flows[i].Name == models.MainFlowName {
			return true
		}
		if flows[j].Name == models.MainFlowName {
			return false
		}
		return flows[i].Name < flows[j].Name
	})
}

// InMemoryStore keeps flow documents in process memory.
type InMemoryStore struct {
	mu    sync.Mutex
	flows map[string]map[string]models.Flow // owner -> name -> flow
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{flows: make(map[string]map[string]models.Flow)}
}

// ListFlows returns every flow owned by owner.
func (s *InMemoryStore) ListFlows(ctx context.Context, owner string) ([]models.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Flow
	for _, f := range s.flows[owner] {
		out = append(out, f.Clone())
	}
	sortFlows(out)
	return out, nil
}

// SaveFlow inserts or updates one flow.
func (s *InMemoryStore) SaveFlow(ctx context.Context, owner string, flow models.Flow) (models.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flows[owner] == nil {
		s.flows[owner] = make(map[string]models.Flow)
	}

	f := assignIDs(flow)
	if prev, name, ok := s.findByID(owner, f.ID); ok {
		if prev.Version != f.Version {
			return models.Flow{}, ErrVersionConflict
		}
		if name != f.Name {
			delete(s.flows[owner], name) // renamed
		}
		f.Version = prev.Version + 1
	} else {
		if f.Version != 0 {
			return models.Flow{}, ErrVersionConflict
		}
		f.Version = 1
	}
	s.flows[owner][f.Name] = f.Clone()
	return f, nil
}

// DeleteFlow removes one flow by name.
func (s *InMemoryStore) DeleteFlow(ctx context.Context, owner string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[owner][name]; !ok {
		return ErrFlowNotFound
	}
	delete(s.flows[owner], name)
	return nil
}

// ReplaceAll swaps the owner's whole graph for the given flows.
func (s *InMemoryStore) ReplaceAll(ctx context.Context, owner string, flows []models.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]models.Flow, len(flows))
	for _, flow := range flows {
		f := assignIDs(flow)
		f.Version = 1
		next[f.Name] = f
	}
	s.flows[owner] = next
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) findByID(owner, id string) (models.Flow, string, bool) {
	for name, f := range s.flows[owner] {
		if f.ID == id {
			return f, name, true
		}
	}
	return models.Flow{}, "", false
}
