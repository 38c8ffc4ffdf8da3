// Package testutil provides common test fixtures and helpers for guidedflow tests.
package testutil

import (
	"testing"

	"github.com/chatlift/guidedflow/internal/graph"
	"github.com/chatlift/guidedflow/internal/models"
)

// NextTo returns a next_flow pointer to the named flow.
func NextTo(name string) *string { return &name }

// NextOption builds a NEXT_FLOW option. next may be nil to end the conversation.
func NextOption(id, text string, order int, next *string) models.Option {
	return models.Option{
		ID:       id,
		Text:     text,
		Icon:     "▶",
		Order:    order,
		Action:   models.ActionNextFlow,
		NextFlow: next,
	}
}

// ContactOption builds a SUBMIT_CONTACT_REQUEST option.
func ContactOption(id, text string, order int, rt models.RequestType, fields ...models.InputField) models.Option {
	return models.Option{
		ID:          id,
		Text:        text,
		Icon:        "✉️",
		Order:       order,
		Action:      models.ActionSubmitContactRequest,
		RequestType: rt,
		InputFields: fields,
	}
}

// SeedFlows returns a small committed graph used across package tests:
// main fans out to a sizing screen, a contact form and a plain end; an
// inactive draft flow also targets sizing.
func SeedFlows() []models.Flow {
	sizingOpt := NextOption("opt_sizing", "Sizing guide", 0, NextTo("sizing"))
	sizingOpt.BotResponse = &models.BotResponse{Text: "Here is our sizing guide."}
	return []models.Flow{
		{
			ID:       "f_main",
			Name:     models.MainFlowName,
			Language: models.DefaultLanguage,
			Active:   true,
			Options: []models.Option{
				sizingOpt,
				ContactOption("opt_contact", "Where is my order?", 1, models.RequestTypeOrderStatus,
					models.InputFieldEmail, models.InputFieldOrderNumber),
				NextOption("opt_bye", "That is all, thanks", 2, nil),
			},
		},
		{
			ID:       "f_sizing",
			Name:     "sizing",
			Language: models.DefaultLanguage,
			Active:   true,
			Options: []models.Option{
				NextOption("opt_sizing_done", "Got it", 0, nil),
			},
		},
		{
			ID:       "f_draft",
			Name:     "draft_returns",
			Language: models.DefaultLanguage,
			Active:   false,
			Options: []models.Option{
				NextOption("opt_draft_sizing", "See sizing", 0, NextTo("sizing")),
			},
		},
	}
}

// MustModel builds a graph model from flows and fails the test on error.
func MustModel(t *testing.T, flows []models.Flow) *graph.Model {
	t.Helper()
	m, err := graph.NewModel(flows)
	if err != nil {
		t.Fatalf("failed to build graph model: %v", err)
	}
	return m
}
