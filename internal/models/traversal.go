// Package models defines the traversal contract consumed by the chat widget.
package models

// TerminalState marks how a conversation step ended, if at all.
type TerminalState string

const (
	// TerminalNone means the conversation continues with the returned options.
	TerminalNone TerminalState = ""
	// TerminalEnd means the conversation ended with no further options.
	TerminalEnd TerminalState = "end"
	// TerminalHandoff means the conversation ended in a structured
	// contact-request form.
	TerminalHandoff TerminalState = "handoff"
)

// OptionSummary is the widget-facing projection of an option: just enough to
// render a button.
type OptionSummary struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Icon string `json:"icon"`
}

// TraversalResult is the outcome of advancing a conversation by one option.
type TraversalResult struct {
	FlowName    string          `json:"flow_name"`
	Options     []OptionSummary `json:"options"`
	BotResponse *BotResponse    `json:"bot_response,omitempty"`
	Terminal    TerminalState   `json:"terminal,omitempty"`
	RequestType RequestType     `json:"request_type,omitempty"`
	InputFields []InputField    `json:"input_fields,omitempty"`
}

// ContactHandoff is the payload emitted on a handoff terminal. The caller
// collects the named fields from the visitor and forwards them to the external
// contact-submission store; the core never stores personal data itself.
type ContactHandoff struct {
	RequestType    RequestType  `json:"request_type"`
	InputFields    []InputField `json:"input_fields"`
	ConversationID string       `json:"conversation_id"`
}
