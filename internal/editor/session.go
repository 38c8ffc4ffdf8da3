// Package editor provides the staging session an operator uses to edit one
// flow without touching the committed graph.
//
// All mutators work on a private deep copy; nothing reaches the document
// store until Commit runs the validator against the candidate graph.
package editor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chatlift/guidedflow/internal/graph"
	"github.com/chatlift/guidedflow/internal/models"
	"github.com/chatlift/guidedflow/internal/store"
	"github.com/chatlift/guidedflow/internal/util"
)

// TempIDPrefix marks client-side option ids that the store replaces with
// durable ids on commit.
const TempIDPrefix = "tmp-"

// MoveDirection selects the neighbor an option swaps with.
type MoveDirection string

const (
	MoveUp   MoveDirection = "up"
	MoveDown MoveDirection = "down"
)

// Session stages structural edits to a single flow.
type Session struct {
	store     store.Store
	owner     string
	committed *graph.Model
	staged    models.Flow
}

// NewSession opens an editing session for an existing flow.
func NewSession(st store.Store, owner string, committed *graph.Model, flowName string) (*Session, error) {
	f, ok := committed.ByName(flowName)
	if !ok {
		slog.Debug("editor NewSession unknown flow", "owner", owner, "flow", flowName)
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownFlow, flowName)
	}
	slog.Debug("editor NewSession opened", "owner", owner, "flow", flowName, "options", len(f.Options))
	return &Session{store: st, owner: owner, committed: committed, staged: f.Clone()}, nil
}

// NewFlowSession opens a session for a flow that does not exist yet.
// The flow starts empty, active, with the default language.
func NewFlowSession(st store.Store, owner string, committed *graph.Model, name string) *Session {
	slog.Debug("editor NewFlowSession opened", "owner", owner, "flow", name)
	return &Session{
		store:     st,
		owner:     owner,
		committed: committed,
		staged: models.Flow{
			Name:     name,
			Language: models.DefaultLanguage,
			Active:   true,
		},
	}
}

// Staged returns a copy of the flow as currently staged.
func (s *Session) Staged() models.Flow {
	return s.staged.Clone()
}

// AddOption appends a new option with the next contiguous order value and
// safe defaults, and returns it. The id is temporary until commit.
func (s *Session) AddOption() models.Option {
	opt := models.Option{
		ID:     util.GenerateRandomID(TempIDPrefix, 12),
		Order:  len(s.staged.Options),
		Action: models.ActionNextFlow,
	}
	s.staged.Options = append(s.staged.Options, opt)
	slog.Debug("editor AddOption", "flow", s.staged.Name, "option", opt.ID, "order", opt.Order)
	return opt
}

// RemoveOption removes the identified option and renumbers the remainder
// to 0..n-1.
func (s *Session) RemoveOption(id string) error {
	idx, err := s.indexOf(id)
	if err != nil {
		return err
	}
	s.staged.Options = append(s.staged.Options[:idx], s.staged.Options[idx+1:]...)
	s.renumber()
	slog.Debug("editor RemoveOption", "flow", s.staged.Name, "option", id, "remaining", len(s.staged.Options))
	return nil
}

// MoveOption swaps the option at index with its neighbor in the given
// direction. Moves past either boundary are no-ops.
func (s *Session) MoveOption(index int, dir MoveDirection) {
	target := index + 1
	if dir == MoveUp {
		target = index - 1
	}
	if index < 0 || index >= len(s.staged.Options) || target < 0 || target >= len(s.staged.Options) {
		slog.Debug("editor MoveOption out of bounds, ignoring", "flow", s.staged.Name, "index", index, "direction", dir)
		return
	}
	s.staged.Options[index], s.staged.Options[target] = s.staged.Options[target], s.staged.Options[index]
	s.renumber()
	slog.Debug("editor MoveOption", "flow", s.staged.Name, "from", index, "to", target)
}

// SetOptionText updates the display label of one option.
func (s *Session) SetOptionText(id, text string) error {
	return s.mutateOption(id, func(o *models.Option) { o.Text = text })
}

// SetOptionIcon updates the icon glyph of one option.
func (s *Session) SetOptionIcon(id, icon string) error {
	return s.mutateOption(id, func(o *models.Option) { o.Icon = icon })
}

// SetOptionAction switches the option's action. Dependent fields are cleared
// or seeded immediately so the session never stages a transiently-invalid
// combination.
func (s *Session) SetOptionAction(id string, action models.ActionType) error {
	if !models.IsValidActionType(action) {
		return models.ErrInvalidActionType
	}
	return s.mutateOption(id, func(o *models.Option) {
		o.Action = action
		o.Normalize()
	})
}

// SetOptionNextFlow sets the jump target of a NEXT_FLOW option. nil ends the
// conversation at this option.
func (s *Session) SetOptionNextFlow(id string, next *string) error {
	return s.mutateOption(id, func(o *models.Option) {
		o.NextFlow = next
		o.Normalize()
	})
}

// SetOptionBotResponse sets or clears the canned reply shown when the option
// is chosen.
func (s *Session) SetOptionBotResponse(id string, resp *models.BotResponse) error {
	return s.mutateOption(id, func(o *models.Option) { o.BotResponse = resp })
}

// SetOptionRequestType sets the contact-request category of a
// SUBMIT_CONTACT_REQUEST option.
func (s *Session) SetOptionRequestType(id string, rt models.RequestType) error {
	return s.mutateOption(id, func(o *models.Option) { o.RequestType = rt })
}

// SetOptionInputFields sets the contact fields the visitor must supply.
func (s *Session) SetOptionInputFields(id string, fields []models.InputField) error {
	return s.mutateOption(id, func(o *models.Option) {
		o.InputFields = append([]models.InputField(nil), fields...)
	})
}

// Rename changes the staged flow's name. The main flow can never be renamed.
func (s *Session) Rename(name string) error {
	if s.staged.Name == models.MainFlowName && name != models.MainFlowName {
		return models.ErrRenameMainFlow
	}
	s.staged.Name = name
	return nil
}

// SetActive toggles the staged flow's active state.
func (s *Session) SetActive(active bool) {
	s.staged.Active = active
}

// SetLanguage sets the staged flow's locale tag.
func (s *Session) SetLanguage(language string) {
	s.staged.Language = language
}

// Commit validates the candidate graph (committed flows with this flow
// replaced by the staged copy) and, on success, persists the staged flow and
// returns the refreshed graph model. On a validation failure it returns a
// *models.ValidationError and the committed graph stays untouched.
func (s *Session) Commit(ctx context.Context) (*graph.Model, error) {
	slog.Debug("editor Commit invoked", "owner", s.owner, "flow", s.staged.Name, "options", len(s.staged.Options))

	if violations := graph.Check(s.committed, s.staged); len(violations) > 0 {
		slog.Debug("editor Commit rejected by validator", "owner", s.owner, "flow", s.staged.Name, "violations", len(violations))
		return nil, &models.ValidationError{Violations: violations}
	}

	saved, err := s.store.SaveFlow(ctx, s.owner, s.staged)
	if err != nil {
		slog.Error("editor Commit store save failed", "error", err, "owner", s.owner, "flow", s.staged.Name)
		return nil, fmt.Errorf("failed to save flow %s: %w", s.staged.Name, err)
	}

	flows, err := s.store.ListFlows(ctx, s.owner)
	if err != nil {
		slog.Error("editor Commit refresh failed", "error", err, "owner", s.owner)
		return nil, fmt.Errorf("failed to refresh graph after commit: %w", err)
	}
	refreshed, err := graph.NewModel(flows)
	if err != nil {
		slog.Error("editor Commit rebuilt model invalid", "error", err, "owner", s.owner)
		return nil, err
	}

	s.committed = refreshed
	s.staged = saved.Clone()
	slog.Info("editor Commit succeeded", "owner", s.owner, "flow", saved.Name, "flow_id", saved.ID, "version", saved.Version)
	return refreshed, nil
}

func (s *Session) indexOf(id string) (int, error) {
	for i, opt := range s.staged.Options {
		if opt.ID == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", models.ErrUnknownOption, id)
}

func (s *Session) mutateOption(id string, mutate func(*models.Option)) error {
	idx, err := s.indexOf(id)
	if err != nil {
		return err
	}
	mutate(&s.staged.Options[idx])
	return nil
}

// renumber restores the 0..n-1 order invariant after structural changes.
func (s *Session) renumber() {
	for i := range s.staged.Options {
		s.staged.Options[i].Order = i
	}
}
