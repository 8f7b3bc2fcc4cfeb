package gitlab

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/mention-bot/pkg/types"
)

type gitlabUser struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	State    string `json:"state"`
	ID       int    `json:"id"`
}

type gitlabGroup struct {
	Name       string `json:"name"`
	FullPath   string `json:"full_path"`
	Visibility string `json:"visibility"`
	ID         int    `json:"id"`
}

// blockedStates are account states GitLab uses for accounts that cannot act on a merge request.
var blockedStates = map[string]bool{
	"blocked":                  true,
	"ldap_blocked":             true,
	"blocked_pending_approval": true,
	"banned":                   true,
}

func convertUsers(users []gitlabUser) []types.AccountState {
	accounts := make([]types.AccountState, len(users))
	for i, u := range users {
		accounts[i] = types.AccountState{
			Username: u.Username,
			Name:     u.Name,
			State:    u.State,
			Blocked:  blockedStates[u.State],
		}
	}
	return accounts
}

// ListProjectMembers returns every member of a project, including inherited members.
func (c *Client) ListProjectMembers(ctx context.Context, projectID int) ([]types.AccountState, error) {
	users, err := getAll[gitlabUser](ctx, c, projectPath(projectID)+"/members/all", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	slog.DebugContext(ctx, "Fetched project members", "component", "gitlab", "project", projectID, "count", len(users))
	return convertUsers(users), nil
}

// ListBlocked returns the project members whose account is blocked.
func (c *Client) ListBlocked(ctx context.Context, projectID int) ([]types.AccountState, error) {
	members, err := c.ListProjectMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked members: %w", err)
	}
	var blocked []types.AccountState
	for _, m := range members {
		if m.Blocked {
			blocked = append(blocked, m)
		}
	}
	return blocked, nil
}

// ListVisibleGroups returns the groups visible to the bot whose visibility is not private.
func (c *Client) ListVisibleGroups(ctx context.Context) ([]types.Group, error) {
	groups, err := getAll[gitlabGroup](ctx, c, "/groups", url.Values{"all_available": {"true"}})
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var visible []types.Group
	for _, g := range groups {
		group := types.Group{ID: g.ID, Name: g.FullPath, Visibility: g.Visibility}
		if group.Name == "" {
			group.Name = g.Name
		}
		if group.Visible() {
			visible = append(visible, group)
		}
	}
	return visible, nil
}

// ListGroupMembers returns every member of a group, including inherited members.
func (c *Client) ListGroupMembers(ctx context.Context, groupID int) ([]types.AccountState, error) {
	users, err := getAll[gitlabUser](ctx, c, "/groups/"+strconv.Itoa(groupID)+"/members/all", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	return convertUsers(users), nil
}

// ReconcileUsernames maps candidates to GitLab accounts, keeping their order. members is
// the project membership the caller already holds. Display names are matched
// case-insensitively against members first and the instance user search second; names that
// match no account are dropped. Username candidates pass through, carrying the member's
// state when they are members. Every returned account carries the state GitLab reported.
func (c *Client) ReconcileUsernames(ctx context.Context, members []types.AccountState, candidates []types.Candidate) ([]types.AccountState, error) {
	byName := make(map[string]types.AccountState, len(members)*2)
	byUsername := make(map[string]types.AccountState, len(members))
	for _, m := range members {
		byName[strings.ToLower(m.Name)] = m
		byUsername[strings.ToLower(m.Username)] = m
	}

	accounts := make([]types.AccountState, 0, len(candidates))
	for _, cand := range candidates {
		key := strings.ToLower(cand.Name)
		if m, ok := byUsername[key]; ok {
			accounts = append(accounts, m)
			continue
		}
		if cand.Kind == types.IdentityUsername {
			accounts = append(accounts, types.AccountState{Username: cand.Name})
			continue
		}
		if m, ok := byName[key]; ok {
			accounts = append(accounts, m)
			continue
		}

		account, err := c.searchUser(ctx, cand.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile %q: %w", cand.Name, err)
		}
		if account == nil {
			slog.DebugContext(ctx, "No account for suggested name", "component", "gitlab", "name", cand.Name)
			continue
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}

// searchUser looks up an account whose display name or username equals name.
func (c *Client) searchUser(ctx context.Context, name string) (*types.AccountState, error) {
	var users []gitlabUser
	if err := c.get(ctx, "/users", url.Values{"search": {name}}, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Name, name) || strings.EqualFold(u.Username, name) {
			return &convertUsers([]gitlabUser{u})[0], nil
		}
	}
	return nil, nil
}
