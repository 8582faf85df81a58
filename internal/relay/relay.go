// Package relay implements the client-side confirmation flow: it watches
// tool outcomes for a pending confirmation, surfaces it for rendering, and
// turns the user's approve/reject decision into the follow-up action.
package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/kalambet/gridchat/internal/chat"
	"github.com/kalambet/gridchat/internal/tools"
)

// Pending is a frozen confirmation awaiting the user's decision.
type Pending struct {
	PendingActionID string
	Action          string
	Description     string
	TargetType      string
	TargetID        string
	Data            any
}

// Confirmer executes or discards a pending action by its token.
type Confirmer interface {
	Confirm(ctx context.Context, pendingID string) (tools.Result, error)
	Reject(pendingID string) error
}

// Relay scans turn outcomes and holds at most one pending confirmation at a
// time. Once frozen, later deflections are ignored until the user decides.
type Relay struct {
	mu        sync.Mutex
	confirmer Confirmer
	pending   *Pending
}

func New(confirmer Confirmer) *Relay {
	return &Relay{confirmer: confirmer}
}

// Scan inspects a turn's tool outcomes and freezes on the first deflected
// result, if any. Returns the currently frozen confirmation.
func (r *Relay) Scan(outcomes []chat.ToolOutcome) (Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending != nil {
		return *r.pending, true
	}

	for _, out := range outcomes {
		d, ok := out.Result.(tools.Deflected)
		if !ok {
			continue
		}
		r.pending = &Pending{
			PendingActionID: d.PendingActionID,
			Action:          d.Action,
			Description:     d.Description,
			TargetType:      d.TargetType,
			TargetID:        d.TargetID,
			Data:            d.Data,
		}
		return *r.pending, true
	}
	return Pending{}, false
}

// Pending returns the frozen confirmation, if one exists.
func (r *Relay) Pending() (Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return Pending{}, false
	}
	return *r.pending, true
}

// Approve executes the frozen action through its durable token and clears
// the frozen state.
func (r *Relay) Approve(ctx context.Context) (tools.Result, error) {
	r.mu.Lock()
	p := r.pending
	r.pending = nil
	r.mu.Unlock()

	if p == nil {
		return nil, fmt.Errorf("no pending confirmation")
	}
	return r.confirmer.Confirm(ctx, p.PendingActionID)
}

// Reject discards the frozen action. The model is never told about the
// rejection; the proposal is simply abandoned.
func (r *Relay) Reject() error {
	r.mu.Lock()
	p := r.pending
	r.pending = nil
	r.mu.Unlock()

	if p == nil {
		return fmt.Errorf("no pending confirmation")
	}
	return r.confirmer.Reject(p.PendingActionID)
}

// Restate builds the natural-language follow-up message for the model-driven
// confirmation path, used when a client prefers re-deriving the call over
// the token.
func Restate(p Pending) string {
	return fmt.Sprintf("Yes, confirmed. %s.", p.Description)
}
