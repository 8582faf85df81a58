package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalambet/gridchat/internal/storage"
)

// gatedBody is a gated tool's mutating body, run only after confirmation.
type gatedBody func(args json.RawMessage) Result

// gate routes a gated call: confirmed=true runs the body, anything else
// deflects into a pending confirmation with zero side effects. A confirmed
// call is always attempted, never silently re-deflected.
func (r *Registry) gate(ctx context.Context, name string, args json.RawMessage, body gatedBody) Result {
	var flag struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := json.Unmarshal(args, &flag); err != nil {
		return ExecutedFail{Error: fmt.Sprintf("invalid parameters for %s: %v", name, err)}
	}

	if flag.Confirmed {
		return body(args)
	}

	proposal, err := r.propose(name, args)
	if err != nil {
		return ExecutedFail{Error: err.Error()}
	}

	pending := storage.PendingAction{
		ID:          uuid.New().String(),
		ToolName:    name,
		ParamsJSON:  string(args),
		Action:      proposal.Action,
		Description: proposal.Description,
		TargetType:  proposal.TargetType,
		TargetID:    proposal.TargetID,
	}
	if err := r.deps.Store.SavePendingAction(pending); err != nil {
		return ExecutedFail{Error: fmt.Sprintf("recording pending action: %v", err)}
	}

	r.deps.Log.Info("tool call deflected pending confirmation",
		"tool", name, "pendingActionId", pending.ID, "target", proposal.TargetID)

	proposal.PendingActionID = pending.ID
	return proposal
}

// Confirm executes a previously deflected call using its stored parameters
// with confirmed=true, bypassing the model. The token is single-use:
// a second confirm, or confirming a rejected or expired action, fails with
// storage.ErrNotFound.
func (r *Registry) Confirm(ctx context.Context, pendingID string) (Result, error) {
	pending, err := r.deps.Store.GetPendingAction(pendingID)
	if err != nil {
		return nil, err
	}

	// Claim the token before executing so a concurrent confirm cannot run
	// the same action twice.
	if err := r.deps.Store.ResolvePendingAction(pendingID, storage.PendingStatusExecuted); err != nil {
		return nil, err
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(pending.ParamsJSON), &params); err != nil {
		return nil, fmt.Errorf("decoding stored parameters: %w", err)
	}
	// Stored parameters may be the JSON literal null, which decodes to a
	// nil map.
	if params == nil {
		params = make(map[string]any, 1)
	}
	params["confirmed"] = true
	args, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding confirmed parameters: %w", err)
	}

	r.deps.Log.Info("executing confirmed action",
		"tool", pending.ToolName, "pendingActionId", pendingID, "target", pending.TargetID)

	return r.Dispatch(ctx, pending.ToolName, args), nil
}

// Reject marks a pending action rejected. Nothing is sent to the model;
// the proposed action is simply abandoned.
func (r *Registry) Reject(pendingID string) error {
	return r.deps.Store.ResolvePendingAction(pendingID, storage.PendingStatusRejected)
}
