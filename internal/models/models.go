// Package models defines the core data structures for guidedflow.
//
// It includes the Flow and Option records that make up a guided-chat graph,
// which are shared across the graph, editor, traversal and storage modules.
package models

import (
	"errors"
	"regexp"
)

// ActionType defines what selecting an option does.
type ActionType string

const (
	// ActionNextFlow jumps the conversation to another flow (or ends it when
	// the option carries no target).
	ActionNextFlow ActionType = "NEXT_FLOW"
	// ActionSubmitContactRequest ends the conversation with a structured
	// contact form handed off to the contact-submission collaborator.
	ActionSubmitContactRequest ActionType = "SUBMIT_CONTACT_REQUEST"
)

// RequestType categorizes a contact request for routing by the downstream
// contact-submission collaborator.
type RequestType string

const (
	RequestTypeOrderStatus RequestType = "order_status"
	RequestTypeReturn      RequestType = "return"
	RequestTypeGeneral     RequestType = "general"
)

// InputField names one piece of contact information the visitor must supply.
type InputField string

const (
	InputFieldEmail       InputField = "email"
	InputFieldPhone       InputField = "phone"
	InputFieldMessage     InputField = "message"
	InputFieldOrderNumber InputField = "order_number"
)

// Reserved names and defaults
const (
	// MainFlowName is the sole entry point of every graph. It can be neither
	// renamed nor deleted, and the first flow of an empty graph must use it.
	MainFlowName = "main"
	// DefaultLanguage is the locale assigned to newly created flows.
	DefaultLanguage = "cs"
)

// Validation constants for input validation
const (
	// MaxOptionTextLength defines the maximum allowed length for option labels
	MaxOptionTextLength = 100
	// MaxOptionIconLength defines the maximum allowed length for option icons
	MaxOptionIconLength = 16
	// MaxBotResponseLength defines the maximum allowed length for bot response text
	MaxBotResponseLength = 1000
	// MaxFlowNameLength defines the maximum allowed length for flow names
	MaxFlowNameLength = 64
)

// FlowNamePattern is the allowed shape of a flow name.
var FlowNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Error variables for better error handling and testability
var (
	ErrEmptyFlowName       = errors.New("flow name cannot be empty")
	ErrInvalidFlowName     = errors.New("flow name must match [a-z0-9_]+")
	ErrFlowNameTooLong     = errors.New("flow name exceeds maximum length")
	ErrFlowNameTaken       = errors.New("flow name is already used by another flow")
	ErrFirstFlowNotMain    = errors.New("the first flow of a graph must be named main")
	ErrRenameMainFlow      = errors.New("the main flow cannot be renamed")
	ErrDeleteMainFlow      = errors.New("the main flow cannot be deleted")
	ErrEmptyOptionText     = errors.New("option text cannot be empty")
	ErrOptionTextTooLong   = errors.New("option text exceeds maximum length")
	ErrEmptyOptionIcon     = errors.New("option icon cannot be empty")
	ErrOptionIconTooLong   = errors.New("option icon exceeds maximum length")
	ErrBotResponseTooLong  = errors.New("bot response exceeds maximum length")
	ErrInvalidActionType   = errors.New("invalid option action")
	ErrStrayContactFields  = errors.New("request type and input fields are only valid for contact request options")
	ErrMissingRequestType  = errors.New("request type is required for contact request options")
	ErrInvalidRequestType  = errors.New("invalid request type")
	ErrMissingInputFields  = errors.New("input fields are required for contact request options")
	ErrInvalidInputField   = errors.New("invalid input field")
	ErrNonContiguousOrder  = errors.New("option order values must be contiguous starting at zero")
	ErrUnknownNextFlow     = errors.New("next flow does not exist")
	ErrCycleDetected       = errors.New("cycle detected")
	ErrFlowStillReferenced = errors.New("flow is still referenced by another flow")
	ErrUnknownFlow         = errors.New("unknown flow")
	ErrUnknownOption       = errors.New("unknown option")
	ErrDanglingReference   = errors.New("dangling flow reference")
)

// IsValidActionType checks if the given action type is supported.
func IsValidActionType(a ActionType) bool {
	switch a {
	case ActionNextFlow, ActionSubmitContactRequest:
		return true
	default:
		return false
	}
}

// IsValidRequestType checks if the given request type is supported.
func IsValidRequestType(r RequestType) bool {
	switch r {
	case RequestTypeOrderStatus, RequestTypeReturn, RequestTypeGeneral:
		return true
	default:
		return false
	}
}

// IsValidInputField checks if the given input field name is supported.
func IsValidInputField(f InputField) bool {
	switch f {
	case InputFieldEmail, InputFieldPhone, InputFieldMessage, InputFieldOrderNumber:
		return true
	default:
		return false
	}
}

// BotResponse is the canned reply shown right after an option is chosen,
// before the conversation moves on.
type BotResponse struct {
	Text     string `json:"text" yaml:"text"`
	FollowUp string `json:"followUp,omitempty" yaml:"followUp,omitempty"`
}

// Option represents one selectable choice within a flow.
//
// NextFlow is only meaningful when Action is NEXT_FLOW; nil means the
// conversation ends after this option. RequestType and InputFields are only
// meaningful when Action is SUBMIT_CONTACT_REQUEST. Normalize enforces these
// pairings.
type Option struct {
	ID          string       `json:"id" yaml:"id"`
	Text        string       `json:"text" yaml:"text"`
	Icon        string       `json:"icon" yaml:"icon"`
	Order       int          `json:"order" yaml:"order"`
	Action      ActionType   `json:"action" yaml:"action"`
	NextFlow    *string      `json:"next_flow" yaml:"next_flow"`
	BotResponse *BotResponse `json:"bot_response,omitempty" yaml:"bot_response,omitempty"`
	RequestType RequestType  `json:"request_type,omitempty" yaml:"request_type,omitempty"`
	InputFields []InputField `json:"input_fields,omitempty" yaml:"input_fields,omitempty"`
}

// Normalize forces the action-dependent fields into a consistent shape:
// NEXT_FLOW options carry no contact-request data, contact-request options
// carry no next flow.
func (o *Option) Normalize() {
	switch o.Action {
	case ActionSubmitContactRequest:
		o.NextFlow = nil
	default:
		o.RequestType = ""
		o.InputFields = nil
	}
}

// Validate performs per-option validation, independent of the rest of the graph.
func (o *Option) Validate() error {
	if o.Text == "" {
		return ErrEmptyOptionText
	}
	if len(o.Text) > MaxOptionTextLength {
		return ErrOptionTextTooLong
	}
	if o.Icon == "" {
		return ErrEmptyOptionIcon
	}
	if len(o.Icon) > MaxOptionIconLength {
		return ErrOptionIconTooLong
	}
	if !IsValidActionType(o.Action) {
		return ErrInvalidActionType
	}
	if o.BotResponse != nil && len(o.BotResponse.Text) > MaxBotResponseLength {
		return ErrBotResponseTooLong
	}

	switch o.Action {
	case ActionSubmitContactRequest:
		if o.RequestType == "" {
			return ErrMissingRequestType
		}
		if !IsValidRequestType(o.RequestType) {
			return ErrInvalidRequestType
		}
		if len(o.InputFields) == 0 {
			return ErrMissingInputFields
		}
		for _, f := range o.InputFields {
			if !IsValidInputField(f) {
				return ErrInvalidInputField
			}
		}
	case ActionNextFlow:
		if o.RequestType != "" || len(o.InputFields) > 0 {
			return ErrStrayContactFields
		}
	}

	return nil
}

// Clone returns a deep copy of the option.
func (o Option) Clone() Option {
	c := o
	if o.NextFlow != nil {
		next := *o.NextFlow
		c.NextFlow = &next
	}
	if o.BotResponse != nil {
		resp := *o.BotResponse
		c.BotResponse = &resp
	}
	if o.InputFields != nil {
		c.InputFields = append([]InputField(nil), o.InputFields...)
	}
	return c
}

// Flow represents one named screen of a guided-chat script.
type Flow struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Language string   `json:"language" yaml:"language"`
	Active   bool     `json:"active" yaml:"active"`
	Options  []Option `json:"options" yaml:"options"`

	// Version tracks optimistic-concurrency state in the document store and is
	// not part of the exchanged flow record.
	Version int64 `json:"-" yaml:"-"`
}

// ValidateName checks a flow name in isolation.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyFlowName
	}
	if len(name) > MaxFlowNameLength {
		return ErrFlowNameTooLong
	}
	if !FlowNamePattern.MatchString(name) {
		return ErrInvalidFlowName
	}
	return nil
}

// OptionByID finds an option within the flow by its id.
func (f *Flow) OptionByID(id string) (Option, bool) {
	for _, opt := range f.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// ValidateOrder checks that option order values are exactly 0..n-1.
func (f *Flow) ValidateOrder() error {
	seen := make([]bool, len(f.Options))
	for _, opt := range f.Options {
		if opt.Order < 0 || opt.Order >= len(f.Options) || seen[opt.Order] {
			return ErrNonContiguousOrder
		}
		seen[opt.Order] = true
	}
	return nil
}

// Clone returns a deep copy of the flow.
func (f Flow) Clone() Flow {
	c := f
	if f.Options != nil {
		c.Options = make([]Option, len(f.Options))
		for i, opt := range f.Options {
			c.Options[i] = opt.Clone()
		}
	}
	return c
}
