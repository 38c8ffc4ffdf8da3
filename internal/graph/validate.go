// Package graph implements the validator run before any write is accepted.
package graph

import (
	"fmt"
	"log/slog"

	"github.com/chatlift/guidedflow/internal/models"
)

// Check decides whether the candidate graph — the committed graph with one
// flow's options replaced by the candidate — is acceptable.
//
// Check groups run in order and short-circuit on the first failing group:
//  1. Name checks (pattern, main reservation, collisions)
//  2. Per-option checks (labels, action-dependent fields, order contiguity)
//  3. Referential integrity (every non-null next_flow targets an existing flow)
//  4. Acyclicity (no cycle reachable through the edited flow)
//
// A nil result means the candidate graph is accepted. Violations are reported,
// never auto-corrected.
func Check(committed *Model, candidate models.Flow) []models.Violation {
	slog.Debug("graph Check invoked", "flow", candidate.Name, "options", len(candidate.Options), "committed", committed.Len())

	if v := checkName(committed, candidate); len(v) > 0 {
		slog.Debug("graph Check rejected on name checks", "flow", candidate.Name, "violations", len(v))
		return v
	}
	if v := checkOptions(candidate); len(v) > 0 {
		slog.Debug("graph Check rejected on option checks", "flow", candidate.Name, "violations", len(v))
		return v
	}

	index, names := candidateIndex(committed, candidate)
	if v := checkReferences(index, names); len(v) > 0 {
		slog.Debug("graph Check rejected on referential integrity", "flow", candidate.Name, "violations", len(v))
		return v
	}
	if v := checkAcyclic(index, candidate); len(v) > 0 {
		slog.Debug("graph Check rejected on cycle detection", "flow", candidate.Name, "violations", len(v))
		return v
	}

	slog.Debug("graph Check accepted", "flow", candidate.Name)
	return nil
}

// CheckAll validates a complete graph, treating every flow as a candidate
// edit against the rest of the set. Used when a whole graph arrives at once
// (imports, stored-graph audits) rather than one edit at a time. Flows may
// reference records appearing later in the set. The graph must contain main;
// an empty set is rejected, because applying it would leave the widget with
// no entry point. The first failing flow aborts the pass.
func CheckAll(flows []models.Flow) []models.Violation {
	slog.Debug("graph CheckAll invoked", "flows", len(flows))

	seen := make(map[string]bool, len(flows))
	hasMain := false
	for _, f := range flows {
		if seen[f.Name] {
			return []models.Violation{{FlowID: f.ID, FlowName: f.Name, Field: "name", Message: models.ErrFlowNameTaken.Error()}}
		}
		seen[f.Name] = true
		if f.Name == models.MainFlowName {
			hasMain = true
		}
	}
	if !hasMain {
		return []models.Violation{{FlowName: models.MainFlowName, Message: models.ErrUnknownFlow.Error()}}
	}

	for _, f := range flows {
		others := make([]models.Flow, 0, len(flows)-1)
		for _, other := range flows {
			if other.Name != f.Name {
				others = append(others, other)
			}
		}
		committed, err := NewModel(others)
		if err != nil {
			return []models.Violation{{FlowID: f.ID, FlowName: f.Name, Message: err.Error()}}
		}
		if v := Check(committed, f); len(v) > 0 {
			return v
		}
	}

	slog.Debug("graph CheckAll accepted", "flows", len(flows))
	return nil
}

// CheckDelete decides whether the named flow may be removed from the committed
// graph. Deleting main, or any flow still targeted by another flow's option,
// is blocked: silent nulling would change another operator's script.
func CheckDelete(committed *Model, name string) []models.Violation {
	slog.Debug("graph CheckDelete invoked", "flow", name)

	if name == models.MainFlowName {
		return []models.Violation{{FlowName: name, Message: models.ErrDeleteMainFlow.Error()}}
	}
	target, ok := committed.ByName(name)
	if !ok {
		return []models.Violation{{FlowName: name, Message: models.ErrUnknownFlow.Error()}}
	}

	var violations []models.Violation
	for _, other := range committed.Flows() {
		if other.Name == name {
			continue
		}
		for _, opt := range other.Options {
			if opt.NextFlow != nil && *opt.NextFlow == name {
				violations = append(violations, models.Violation{
					FlowID:   other.ID,
					FlowName: other.Name,
					OptionID: opt.ID,
					Field:    "next_flow",
					Message:  fmt.Sprintf("%s: %s", models.ErrFlowStillReferenced, name),
				})
			}
		}
	}
	if len(violations) > 0 {
		slog.Debug("graph CheckDelete rejected", "flow", name, "references", len(violations))
		return violations
	}

	slog.Debug("graph CheckDelete accepted", "flow", name, "flow_id", target.ID)
	return nil
}

// prior finds the committed flow the candidate replaces: the one sharing its
// id, or, for flows not yet renamed, its name. New flows have no prior.
func prior(committed *Model, candidate models.Flow) (models.Flow, bool) {
	if candidate.ID != "" {
		for _, f := range committed.Flows() {
			if f.ID == candidate.ID {
				return f, true
			}
		}
	}
	if f, ok := committed.ByName(candidate.Name); ok && (candidate.ID == "" || f.ID == candidate.ID) {
		return f, ok
	}
	return models.Flow{}, false
}

// candidateIndex builds name -> flow for the candidate graph: every committed
// flow except the one being edited, plus the candidate itself. The returned
// name list preserves committed order with the candidate last, so violation
// reports come back in the same order on every run.
func candidateIndex(committed *Model, candidate models.Flow) (map[string]models.Flow, []string) {
	index := make(map[string]models.Flow, committed.Len()+1)
	names := make([]string, 0, committed.Len()+1)
	old, hasPrior := prior(committed, candidate)
	for _, f := range committed.Flows() {
		if hasPrior && f.Name == old.Name {
			continue
		}
		index[f.Name] = f
		names = append(names, f.Name)
	}
	index[candidate.Name] = candidate
	names = append(names, candidate.Name)
	return index, names
}

func checkName(committed *Model, candidate models.Flow) []models.Violation {
	flowViolation := func(err error) []models.Violation {
		return []models.Violation{{FlowID: candidate.ID, FlowName: candidate.Name, Field: "name", Message: err.Error()}}
	}

	if err := models.ValidateName(candidate.Name); err != nil {
		return flowViolation(err)
	}

	old, hasPrior := prior(committed, candidate)
	if hasPrior && old.Name == models.MainFlowName && candidate.Name != models.MainFlowName {
		return flowViolation(models.ErrRenameMainFlow)
	}
	if existing, ok := committed.ByName(candidate.Name); ok {
		if !hasPrior || existing.ID != old.ID {
			return flowViolation(models.ErrFlowNameTaken)
		}
	}

	// The first flow of an empty graph establishes the entry point.
	remaining := committed.Len()
	if hasPrior {
		remaining--
	}
	if remaining == 0 && candidate.Name != models.MainFlowName {
		return flowViolation(models.ErrFirstFlowNotMain)
	}

	return nil
}

func checkOptions(candidate models.Flow) []models.Violation {
	var violations []models.Violation
	if err := candidate.ValidateOrder(); err != nil {
		violations = append(violations, models.Violation{
			FlowID: candidate.ID, FlowName: candidate.Name, Field: "order", Message: err.Error(),
		})
	}
	for _, opt := range candidate.Options {
		if err := opt.Validate(); err != nil {
			violations = append(violations, models.Violation{
				FlowID: candidate.ID, FlowName: candidate.Name, OptionID: opt.ID, Message: err.Error(),
			})
		}
	}
	return violations
}

// checkReferences verifies every non-null next_flow in the candidate graph
// names an existing flow. The whole graph is checked, not just the edited
// flow, so a rename cannot strand references held by other flows.
func checkReferences(index map[string]models.Flow, names []string) []models.Violation {
	var violations []models.Violation
	for _, name := range names {
		f := index[name]
		for _, opt := range f.Options {
			if opt.NextFlow == nil {
				continue
			}
			if _, ok := index[*opt.NextFlow]; !ok {
				violations = append(violations, models.Violation{
					FlowID:   f.ID,
					FlowName: f.Name,
					OptionID: opt.ID,
					Field:    "next_flow",
					Message:  fmt.Sprintf("%s: %s", models.ErrUnknownNextFlow, *opt.NextFlow),
				})
			}
		}
	}
	return violations
}

// checkAcyclic walks outward from every option of the edited flow, carrying a
// path set seeded with the edited flow's own name. A fresh path set is used
// per option: a flow may legitimately be reached by several disjoint paths in
// one pass, only a repeat within a single path is a cycle. The walk covers
// flows that are not currently reachable from main, so a cycle among
// unreachable flows is caught before an edit makes it live.
func checkAcyclic(index map[string]models.Flow, candidate models.Flow) []models.Violation {
	var violations []models.Violation
	for _, opt := range candidate.Options {
		if opt.NextFlow == nil {
			continue
		}
		path := map[string]bool{candidate.Name: true}
		if closer, found := walkForCycle(index, *opt.NextFlow, path); found {
			violations = append(violations, models.Violation{
				FlowID:   candidate.ID,
				FlowName: candidate.Name,
				OptionID: opt.ID,
				Field:    "next_flow",
				Message:  fmt.Sprintf("%s: %s", models.ErrCycleDetected, closer),
			})
		}
	}
	return violations
}

// walkForCycle is a depth-first walk that reports the flow whose outgoing edge
// closes a cycle: the flow holding the option that targets a name already on
// the current path. A self-loop therefore names the looping flow itself. path
// is mutated and restored around recursion.
func walkForCycle(index map[string]models.Flow, name string, path map[string]bool) (string, bool) {
	f, ok := index[name]
	if !ok {
		// Dangling target: referential integrity reports this separately.
		return "", false
	}
	path[name] = true
	defer delete(path, name)
	for _, opt := range f.Options {
		if opt.NextFlow == nil {
			continue
		}
		if path[*opt.NextFlow] {
			return f.Name, true
		}
		if closer, found := walkForCycle(index, *opt.NextFlow, path); found {
			return closer, true
		}
	}
	return "", false
}
