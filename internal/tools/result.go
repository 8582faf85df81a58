package tools

import "encoding/json"

// Result is the outcome of one tool invocation. It is a closed union:
// Deflected (a gated call awaiting confirmation, nothing happened),
// ExecutedOK (the tool ran and succeeded) or ExecutedFail (the tool ran
// and failed, state unchanged).
type Result interface {
	json.Marshaler
	isResult()
}

// wireResult is the JSON shape every Result serializes to. Clients and the
// model both consume this form.
type wireResult struct {
	Success              bool   `json:"success"`
	RequiresConfirmation bool   `json:"requiresConfirmation,omitempty"`
	PendingActionID      string `json:"pendingActionId,omitempty"`
	Action               string `json:"action,omitempty"`
	Description          string `json:"description,omitempty"`
	TargetType           string `json:"targetType,omitempty"`
	TargetID             string `json:"targetId,omitempty"`
	Data                 any    `json:"data,omitempty"`
	Message              string `json:"message,omitempty"`
	Error                string `json:"error,omitempty"`
}

// Deflected means a gated tool call arrived without confirmation. The
// original parameters are echoed under Data and a durable pending-action
// token is issued so the client can confirm without a model round trip.
type Deflected struct {
	PendingActionID string
	Action          string
	Description     string
	TargetType      string
	TargetID        string
	Data            any
}

func (Deflected) isResult() {}

func (d Deflected) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireResult{
		Success:              false,
		RequiresConfirmation: true,
		PendingActionID:      d.PendingActionID,
		Action:               d.Action,
		Description:          d.Description,
		TargetType:           d.TargetType,
		TargetID:             d.TargetID,
		Data:                 d.Data,
	})
}

// ExecutedOK means the tool ran to completion. Data optionally carries
// retrieved content such as a table or cell value.
type ExecutedOK struct {
	Message string
	Data    any
}

func (ExecutedOK) isResult() {}

func (e ExecutedOK) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireResult{
		Success: true,
		Message: e.Message,
		Data:    e.Data,
	})
}

// ExecutedFail means the tool was attempted and failed. The grid and the
// store are unchanged from before the attempt.
type ExecutedFail struct {
	Error string
}

func (ExecutedFail) isResult() {}

func (e ExecutedFail) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireResult{
		Success: false,
		Error:   e.Error,
	})
}
