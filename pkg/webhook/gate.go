// Package webhook receives GitLab merge request events and runs the reviewer pipeline.
package webhook

import (
	"crypto/subtle"
	"strings"

	"github.com/codeGROOVE-dev/mention-bot/pkg/types"
)

// GitLab webhook values the gate understands.
const (
	MergeRequestHook = "Merge Request Hook"
	StateOpened      = "opened"
	ActionUpdate     = "update"
)

// Decision is the gate's verdict on one delivery.
type Decision struct {
	Reason  string
	Proceed bool
}

var proceed = Decision{Proceed: true}

func skip(reason string) Decision {
	return Decision{Reason: reason}
}

// Gate decides which deliveries are worth a reviewer lookup.
type Gate struct {
	secret    string
	skipTitle string
}

// NewGate creates a Gate. An empty secret disables token checks; an empty skipTitle
// disables title checks.
func NewGate(secret, skipTitle string) *Gate {
	return &Gate{secret: secret, skipTitle: skipTitle}
}

// AcceptHeaders runs the checks that need no body, so unrelated deliveries are dropped
// before decoding.
func (g *Gate) AcceptHeaders(eventType, token string) Decision {
	if eventType != MergeRequestHook {
		return skip("event type " + quoted(eventType) + " is not a merge request")
	}
	if g.secret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(g.secret)) != 1 {
		return skip("webhook token mismatch")
	}
	return proceed
}

// Accept checks a decoded event. Only newly opened merge requests proceed: edits must not
// trigger another comment.
func (g *Gate) Accept(ev *types.MergeRequestEvent) Decision {
	if ev.EventType != MergeRequestHook {
		return skip("event type " + quoted(ev.EventType) + " is not a merge request")
	}
	if ev.State != StateOpened {
		return skip("state is " + quoted(ev.State) + ", only opened merge requests are handled")
	}
	if ev.Action == ActionUpdate {
		return skip("action is update")
	}
	if g.skipTitle != "" && strings.Contains(strings.ToLower(ev.Title), strings.ToLower(g.skipTitle)) {
		return skip("title contains " + quoted(g.skipTitle))
	}
	return proceed
}

func quoted(s string) string {
	return `"` + s + `"`
}
