package webhook

import (
	"testing"

	"github.com/codeGROOVE-dev/mention-bot/pkg/types"

	"github.com/stretchr/testify/assert"
)

func TestGate_AcceptHeaders(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		eventType string
		token     string
		want      bool
	}{
		{name: "merge request", eventType: MergeRequestHook, want: true},
		{name: "push hook", eventType: "Push Hook", want: false},
		{name: "missing header", eventType: "", want: false},
		{name: "token matches", secret: "s3cret", token: "s3cret", eventType: MergeRequestHook, want: true},
		{name: "token mismatch", secret: "s3cret", token: "guess", eventType: MergeRequestHook, want: false},
		{name: "token missing", secret: "s3cret", eventType: MergeRequestHook, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewGate(tt.secret, "").AcceptHeaders(tt.eventType, tt.token)
			assert.Equal(t, tt.want, d.Proceed)
			if !tt.want {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestGate_Accept(t *testing.T) {
	tests := []struct {
		name      string
		skipTitle string
		ev        types.MergeRequestEvent
		want      bool
	}{
		{name: "opened", ev: types.MergeRequestEvent{EventType: MergeRequestHook, State: "opened", Action: "open"}, want: true},
		{name: "reopened", ev: types.MergeRequestEvent{EventType: MergeRequestHook, State: "opened", Action: "reopen"}, want: true},
		{name: "update", ev: types.MergeRequestEvent{EventType: MergeRequestHook, State: "opened", Action: "update"}, want: false},
		{name: "merged", ev: types.MergeRequestEvent{EventType: MergeRequestHook, State: "merged", Action: "merge"}, want: false},
		{name: "closed", ev: types.MergeRequestEvent{EventType: MergeRequestHook, State: "closed", Action: "close"}, want: false},
		{name: "wrong type", ev: types.MergeRequestEvent{EventType: "Note Hook", State: "opened"}, want: false},
		{
			name:      "skip title",
			skipTitle: "wip",
			ev:        types.MergeRequestEvent{EventType: MergeRequestHook, State: "opened", Action: "open", Title: "WIP: refactor"},
			want:      false,
		},
		{
			name:      "title without marker",
			skipTitle: "wip",
			ev:        types.MergeRequestEvent{EventType: MergeRequestHook, State: "opened", Action: "open", Title: "Refactor"},
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := tt.ev
			assert.Equal(t, tt.want, NewGate("", tt.skipTitle).Accept(&ev).Proceed)
		})
	}
}
