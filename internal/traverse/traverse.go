// Package traverse advances a visitor's live conversation through a committed
// flow graph.
//
// The engine is pure: it performs no I/O, holds no state between calls, and is
// safe to invoke concurrently for unrelated sessions. Given the same inputs it
// returns the same result, so retried client requests are harmless.
package traverse

import (
	"fmt"
	"log/slog"

	"github.com/chatlift/guidedflow/internal/graph"
	"github.com/chatlift/guidedflow/internal/models"
)

// Start begins a fresh conversation at the main flow.
func Start(m *graph.Model) (models.TraversalResult, error) {
	return present(m, models.MainFlowName)
}

// Advance applies one selected option to the conversation position.
//
// Inactive flows fail closed with ErrUnknownFlow, both as the current position
// and as a jump target: the widget never serves deactivated content. A target
// that vanished from the store entirely reports ErrDanglingReference — the
// validator makes this unreachable through normal edits, but the engine does
// not assume the store was never edited by hand.
func Advance(m *graph.Model, currentFlowName, optionID string) (models.TraversalResult, error) {
	flow, ok := m.ByName(currentFlowName)
	if !ok || !flow.Active {
		slog.Debug("traverse Advance unknown flow", "flow", currentFlowName, "found", ok)
		return models.TraversalResult{}, fmt.Errorf("%w: %s", models.ErrUnknownFlow, currentFlowName)
	}

	opt, ok := flow.OptionByID(optionID)
	if !ok {
		slog.Debug("traverse Advance unknown option", "flow", currentFlowName, "option", optionID)
		return models.TraversalResult{}, fmt.Errorf("%w: %s", models.ErrUnknownOption, optionID)
	}

	switch {
	case opt.Action == models.ActionSubmitContactRequest:
		slog.Debug("traverse Advance handoff terminal", "flow", currentFlowName, "option", optionID, "request_type", opt.RequestType)
		return models.TraversalResult{
			FlowName:    currentFlowName,
			Options:     []models.OptionSummary{},
			BotResponse: opt.BotResponse,
			Terminal:    models.TerminalHandoff,
			RequestType: opt.RequestType,
			InputFields: append([]models.InputField(nil), opt.InputFields...),
		}, nil

	case opt.NextFlow == nil:
		slog.Debug("traverse Advance end terminal", "flow", currentFlowName, "option", optionID)
		return models.TraversalResult{
			FlowName:    currentFlowName,
			Options:     []models.OptionSummary{},
			BotResponse: opt.BotResponse,
			Terminal:    models.TerminalEnd,
		}, nil

	default:
		next, ok := m.ByName(*opt.NextFlow)
		if !ok {
			slog.Error("traverse Advance dangling reference", "flow", currentFlowName, "option", optionID, "target", *opt.NextFlow)
			return models.TraversalResult{}, fmt.Errorf("%w: %s", models.ErrDanglingReference, *opt.NextFlow)
		}
		if !next.Active {
			slog.Debug("traverse Advance target inactive", "flow", currentFlowName, "target", next.Name)
			return models.TraversalResult{}, fmt.Errorf("%w: %s", models.ErrUnknownFlow, next.Name)
		}
		result := presentFlow(next)
		result.BotResponse = opt.BotResponse
		return result, nil
	}
}

// Handoff builds the contact-submission payload for a handoff terminal. The
// caller collects the named fields from the visitor and forwards them to the
// external contact-submission collaborator.
func Handoff(result models.TraversalResult, conversationID string) (models.ContactHandoff, error) {
	if result.Terminal != models.TerminalHandoff {
		return models.ContactHandoff{}, fmt.Errorf("traversal result for flow %s is not a handoff terminal", result.FlowName)
	}
	return models.ContactHandoff{
		RequestType:    result.RequestType,
		InputFields:    append([]models.InputField(nil), result.InputFields...),
		ConversationID: conversationID,
	}, nil
}

// present looks up and renders the named flow as a non-terminal step.
func present(m *graph.Model, name string) (models.TraversalResult, error) {
	flow, ok := m.ByName(name)
	if !ok || !flow.Active {
		return models.TraversalResult{}, fmt.Errorf("%w: %s", models.ErrUnknownFlow, name)
	}
	return presentFlow(flow), nil
}

func presentFlow(flow models.Flow) models.TraversalResult {
	summaries := make([]models.OptionSummary, 0, len(flow.Options))
	for _, opt := range flow.Options {
		summaries = append(summaries, models.OptionSummary{ID: opt.ID, Text: opt.Text, Icon: opt.Icon})
	}
	return models.TraversalResult{FlowName: flow.Name, Options: summaries}
}
