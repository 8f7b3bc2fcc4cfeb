// Package reviewer turns owner suggestions into a small panel of reviewers to mention.
package reviewer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/codeGROOVE-dev/mention-bot/pkg/types"
)

// DefaultMaxReviewers is the largest panel the resolver will produce.
const DefaultMaxReviewers = 2

// Directory answers questions about GitLab accounts for one delivery.
type Directory interface {
	ReconcileUsernames(ctx context.Context, members []types.AccountState, candidates []types.Candidate) ([]types.AccountState, error)
	ListProjectMembers(ctx context.Context, projectID int) ([]types.AccountState, error)
	ListBlocked(ctx context.Context, projectID int) ([]types.AccountState, error)
	ListVisibleGroups(ctx context.Context) ([]types.Group, error)
	ListGroupMembers(ctx context.Context, groupID int) ([]types.AccountState, error)
}

// Rand is the source of the uniform draws used for group choice and panel sampling.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Tier is the escalation level that produced a panel.
type Tier int

// Tiers, in escalation order.
const (
	TierNone Tier = iota
	TierBlame
	TierProject
	TierGroup
)

func (t Tier) String() string {
	switch t {
	case TierBlame:
		return "blame"
	case TierProject:
		return "project"
	case TierGroup:
		return "group"
	default:
		return "none"
	}
}

// Config holds configuration for the resolver.
type Config struct {
	Ignored      []string // Usernames never mentioned, such as the bot account
	MaxReviewers int      // Capped at DefaultMaxReviewers
}

// Resolver picks the reviewer panel for a merge request.
type Resolver struct {
	dir          Directory
	rng          Rand
	ignored      map[string]bool
	maxReviewers int
}

// New creates a Resolver using dir for every account lookup.
func New(dir Directory, cfg Config) *Resolver {
	maxReviewers := cfg.MaxReviewers
	if maxReviewers <= 0 || maxReviewers > DefaultMaxReviewers {
		maxReviewers = DefaultMaxReviewers
	}
	ignored := make(map[string]bool, len(cfg.Ignored))
	for _, u := range cfg.Ignored {
		ignored[strings.ToLower(u)] = true
	}
	return &Resolver{
		dir:          dir,
		rng:          globalRand{},
		ignored:      ignored,
		maxReviewers: maxReviewers,
	}
}

// WithRand replaces the random source, for deterministic tests.
func (r *Resolver) WithRand(rng Rand) *Resolver {
	r.rng = rng
	return r
}

// Request is the input for one resolution.
type Request struct {
	Creator   string // creator username
	Suggested []types.Candidate
	ProjectID int
}

// Resolution is the outcome of one resolution. An empty Panel means nobody is mentioned.
type Resolution struct {
	Panel types.Panel
	Tier  Tier
}

// resolution carries per-call state; nothing is shared between calls.
type resolution struct {
	*Resolver
	req        Request
	members    []types.AccountState
	membersErr error
	blocked    map[string]bool
	blockedErr error
	fetched    bool
	listed     bool
}

// Resolve walks the tiers in order and returns the panel from the first non-empty one.
// Population fetch failures abort the resolution. A failed blocked-account lookup aborts
// only the tiers that depend on it, and the resolution escalates past them.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Resolution, error) {
	res := &resolution{Resolver: r, req: req}

	tiers := []struct {
		tier Tier
		fn   func(context.Context) ([]string, error)
	}{
		{TierBlame, res.blameTier},
		{TierProject, res.projectTier},
		{TierGroup, res.groupTier},
	}

	for _, t := range tiers {
		survivors, err := t.fn(ctx)
		if err != nil {
			return Resolution{}, fmt.Errorf("%s tier: %w", t.tier, err)
		}
		if len(survivors) == 0 {
			slog.InfoContext(ctx, "Tier produced no candidates", "component", "resolver", "tier", t.tier.String())
			continue
		}

		panel := r.sample(survivors)
		slog.InfoContext(ctx, "Resolved reviewer panel",
			"component", "resolver",
			"tier", t.tier.String(),
			"eligible", len(survivors),
			"panel", []string(panel))
		return Resolution{Panel: panel, Tier: t.tier}, nil
	}

	return Resolution{Tier: TierNone}, nil
}

// blameTier reconciles suggested names against the project membership and filters them.
// Accounts GitLab reports as blocked are dropped even when they are not project members.
func (res *resolution) blameTier(ctx context.Context) ([]string, error) {
	if len(res.req.Suggested) == 0 {
		return nil, nil
	}

	members, err := res.projectMembers(ctx)
	if err != nil {
		return nil, err
	}
	accounts, err := res.dir.ReconcileUsernames(ctx, members, res.req.Suggested)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}

	blocked, ok := res.projectBlocked(ctx)
	if !ok {
		return nil, nil
	}
	return res.exclude(ctx, usernamesOf(accounts), union(blocked, blockedOf(accounts))), nil
}

// projectTier uses the whole project membership.
func (res *resolution) projectTier(ctx context.Context) ([]string, error) {
	members, err := res.projectMembers(ctx)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	blocked, ok := res.projectBlocked(ctx)
	if !ok {
		return nil, nil
	}
	return res.exclude(ctx, usernamesOf(members), union(blocked, blockedOf(members))), nil
}

// groupTier uses the membership of one visible group chosen uniformly at random.
// Group members are filtered by their own account state, plus the project's blocked set
// when it is known.
func (res *resolution) groupTier(ctx context.Context) ([]string, error) {
	groups, err := res.dir.ListVisibleGroups(ctx)
	if err != nil {
		return nil, err
	}

	var visible []types.Group
	for _, g := range groups {
		if g.Visible() {
			visible = append(visible, g)
		}
	}
	if len(visible) == 0 {
		return nil, nil
	}

	group := visible[res.rng.IntN(len(visible))]
	slog.InfoContext(ctx, "Falling back to group members", "component", "resolver", "group", group.Name, "group_id", group.ID)

	members, err := res.dir.ListGroupMembers(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	blocked := blockedOf(members)
	if projectBlocked, ok := res.projectBlocked(ctx); ok {
		blocked = union(blocked, projectBlocked)
	}
	return res.exclude(ctx, usernamesOf(members), blocked), nil
}

// projectMembers fetches the project membership once per resolution.
func (res *resolution) projectMembers(ctx context.Context) ([]types.AccountState, error) {
	if !res.listed {
		res.listed = true
		res.members, res.membersErr = res.dir.ListProjectMembers(ctx, res.req.ProjectID)
	}
	return res.members, res.membersErr
}

// projectBlocked fetches the project's blocked accounts once per resolution.
// ok is false when the lookup failed; the failure is logged once.
func (res *resolution) projectBlocked(ctx context.Context) (map[string]bool, bool) {
	if !res.fetched {
		res.fetched = true
		accounts, err := res.dir.ListBlocked(ctx, res.req.ProjectID)
		if err != nil {
			res.blockedErr = err
			slog.WarnContext(ctx, "Failed to list blocked accounts, skipping tiers that need them",
				"component", "resolver", "project", res.req.ProjectID, "error", err)
		} else {
			res.blocked = usernameSet(accounts)
		}
	}
	return res.blocked, res.blockedErr == nil
}

// exclude removes the creator, ignored accounts, blocked accounts and duplicates,
// keeping first occurrences in order. Usernames compare case-insensitively.
func (res *resolution) exclude(ctx context.Context, usernames []string, blocked map[string]bool) []string {
	creator := strings.ToLower(res.req.Creator)
	seen := make(map[string]bool, len(usernames))
	kept := make([]string, 0, len(usernames))

	for _, u := range usernames {
		key := strings.ToLower(u)
		switch {
		case u == "", seen[key]:
			continue
		case key == creator:
			slog.DebugContext(ctx, "Filtered (is creator)", "component", "resolver", "username", u)
		case blocked[key]:
			slog.DebugContext(ctx, "Filtered (is blocked)", "component", "resolver", "username", u)
		case res.ignored[key]:
			slog.DebugContext(ctx, "Filtered (is ignored)", "component", "resolver", "username", u)
		default:
			kept = append(kept, u)
		}
		seen[key] = true
	}
	return kept
}

// sample keeps at most maxReviewers entries. Larger lists are drawn uniformly without
// replacement with a partial Fisher-Yates shuffle, so entries stay distinct.
func (r *Resolver) sample(usernames []string) types.Panel {
	if len(usernames) <= r.maxReviewers {
		return append(types.Panel(nil), usernames...)
	}

	pool := append([]string(nil), usernames...)
	for i := range r.maxReviewers {
		j := i + r.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return types.Panel(pool[:r.maxReviewers])
}

func usernamesOf(accounts []types.AccountState) []string {
	names := make([]string, len(accounts))
	for i, a := range accounts {
		names[i] = a.Username
	}
	return names
}

func usernameSet(accounts []types.AccountState) map[string]bool {
	set := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		set[strings.ToLower(a.Username)] = true
	}
	return set
}

func blockedOf(accounts []types.AccountState) map[string]bool {
	set := make(map[string]bool)
	for _, a := range accounts {
		if a.Blocked {
			set[strings.ToLower(a.Username)] = true
		}
	}
	return set
}

func union(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}
