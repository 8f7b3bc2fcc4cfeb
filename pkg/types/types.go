// Package types contains shared data structures used across the mention bot.
//
//nolint:revive // "types" is a standard Go package name for shared data structures
package types

// MergeRequestEvent is the subset of a GitLab merge request webhook that the bot acts on.
// It is scoped to a single delivery and never mutated after decoding.
type MergeRequestEvent struct {
	EventType       string
	DeliveryID      string
	Action          string // "open", "reopen", "update", "close", "merge", ...
	State           string // "opened", "closed", "merged", "locked"
	Title           string
	SourceRepoURL   string
	HeadCommitSHA   string
	TargetBranch    string
	CreatorName     string
	CreatorUsername string
	TargetProjectID int
	SourceProjectID int
	MergeRequestID  int
	MergeRequestIID int
}

// ChangedFile represents a file changed in a merge request.
type ChangedFile struct {
	OldPath     string
	NewPath     string
	Diff        string
	NewFile     bool
	RenamedFile bool
	DeletedFile bool
}

// Path returns the path the file has after the merge request is applied.
func (f ChangedFile) Path() string {
	if f.NewPath != "" {
		return f.NewPath
	}
	return f.OldPath
}

// IdentityKind tells which namespace a Candidate name belongs to.
type IdentityKind int

// Identity kinds.
const (
	IdentityDisplayName IdentityKind = iota // commit author name, as reported by blame
	IdentityUsername                        // GitLab account username
)

func (k IdentityKind) String() string {
	if k == IdentityUsername {
		return "username"
	}
	return "display_name"
}

// Candidate is a potential reviewer before reconciliation and filtering.
type Candidate struct {
	Name  string
	Kind  IdentityKind
	Lines int // blame lines attributed to this identity, 0 when unknown
}

// AccountState is a GitLab account as seen by the member directory.
type AccountState struct {
	Username string
	Name     string
	State    string // "active", "blocked", "deactivated", ...
	Blocked  bool
}

// Group is a GitLab group that may be used as a fallback reviewer population.
type Group struct {
	Name       string
	Visibility string // "private", "internal", "public"
	ID         int
}

// Visible reports whether the group may be used as a fallback population.
func (g Group) Visible() bool {
	return g.Visibility != "" && g.Visibility != "private"
}

// Panel is the final ordered set of reviewer usernames for one notification.
type Panel []string

// SuggestRequest is everything an owner suggester may look at for one merge request.
type SuggestRequest struct {
	RepoURL         string
	HeadSHA         string
	CreatorName     string
	CreatorUsername string
	Files           []ChangedFile
	Options         SuggestOptions
	ProjectID       int // project holding HeadSHA
}

// SuggestOptions bound the work an owner suggester does.
type SuggestOptions struct {
	UserBlacklist   []string
	FileBlacklist   []string
	NumFilesToCheck int
	MaxSuggestions  int
}
