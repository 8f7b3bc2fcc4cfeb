// Package blame guesses the owners of the code a merge request touches from git blame.
package blame

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/codeGROOVE-dev/mention-bot/pkg/gitlab"
	"github.com/codeGROOVE-dev/mention-bot/pkg/types"
)

const (
	contextLines           = 2 // Lines around each hunk that count as touched
	defaultNumFilesToCheck = 5
	defaultMaxSuggestions  = 5
)

// Fetcher returns blame ranges for a file at a ref.
type Fetcher interface {
	FileBlame(ctx context.Context, projectID int, path, ref string) ([]gitlab.BlameRange, error)
}

// Suggester ranks commit authors by how many of the lines around a merge request's changes
// they last touched.
type Suggester struct {
	fetcher Fetcher
}

// New creates a Suggester backed by fetcher.
func New(fetcher Fetcher) *Suggester {
	return &Suggester{fetcher: fetcher}
}

// Suggest returns commit author display names, most relevant first. Files whose blame
// cannot be fetched are skipped. When no touched line can be attributed, every line of the
// checked files counts instead.
func (s *Suggester) Suggest(ctx context.Context, req types.SuggestRequest) ([]types.Candidate, error) {
	opts := req.Options
	if opts.NumFilesToCheck <= 0 {
		opts.NumFilesToCheck = defaultNumFilesToCheck
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = defaultMaxSuggestions
	}

	files := rankFiles(req.Files, opts.FileBlacklist, opts.NumFilesToCheck)
	if len(files) == 0 {
		slog.InfoContext(ctx, "No files to blame", "component", "blame", "changed", len(req.Files))
		return nil, nil
	}

	touched := make(lineCounter)
	whole := make(lineCounter)
	fetched := 0

	for _, f := range files {
		ranges, err := s.fetcher.FileBlame(ctx, req.ProjectID, f.Path(), req.HeadSHA)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			slog.WarnContext(ctx, "Failed to fetch blame (continuing)", "component", "blame", "file", f.Path(), "error", err)
			continue
		}
		fetched++

		lines := changedLines(f.Diff)
		for _, r := range ranges {
			if r.AuthorName == "" {
				continue
			}
			whole[r.AuthorName] += r.Count
			for line := range lines {
				if r.Contains(line) {
					touched[r.AuthorName]++
				}
			}
		}
	}

	if fetched == 0 {
		return nil, fmt.Errorf("failed to fetch blame for all %d files", len(files))
	}

	excluded := excludedNames(req)
	counts := touched.without(excluded)
	if len(counts) == 0 {
		slog.InfoContext(ctx, "No owners for touched lines, using whole-file blame", "component", "blame")
		counts = whole.without(excluded)
	}

	candidates := counts.top(opts.MaxSuggestions)
	slog.InfoContext(ctx, "Suggested owners", "component", "blame", "files", fetched, "candidates", len(candidates))
	return candidates, nil
}

// excludedNames returns the lowercased names the suggester must never return.
func excludedNames(req types.SuggestRequest) map[string]bool {
	excluded := make(map[string]bool, len(req.Options.UserBlacklist)+2)
	for _, name := range append([]string{req.CreatorName, req.CreatorUsername}, req.Options.UserBlacklist...) {
		if name != "" {
			excluded[strings.ToLower(name)] = true
		}
	}
	return excluded
}

// rankFiles drops files that have no history worth blaming and keeps the n most changed.
func rankFiles(files []types.ChangedFile, blacklist []string, n int) []types.ChangedFile {
	type fileChange struct {
		file    types.ChangedFile
		changes int
	}

	candidates := make([]fileChange, 0, len(files))
	for _, f := range files {
		if f.NewFile || f.DeletedFile || blacklisted(f.Path(), blacklist) {
			continue
		}
		candidates = append(candidates, fileChange{file: f, changes: countChanges(f.Diff)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].changes > candidates[j].changes
	})

	ranked := make([]types.ChangedFile, 0, min(n, len(candidates)))
	for i, c := range candidates {
		if i >= n {
			break
		}
		ranked = append(ranked, c.file)
	}
	return ranked
}

// blacklisted matches a path against glob patterns, on the full path and on the base name.
func blacklisted(p string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, p); err == nil && ok {
			return true
		}
		if ok, err := path.Match(pattern, path.Base(p)); err == nil && ok {
			return true
		}
	}
	return false
}

// countChanges counts added and removed lines in a unified diff.
func countChanges(diff string) int {
	n := 0
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			n++
		}
	}
	return n
}

// changedLines extracts new-side line numbers from hunk headers, with surrounding context.
func changedLines(diff string) map[int]bool {
	lines := make(map[int]bool)

	for _, line := range strings.Split(diff, "\n") {
		if !strings.HasPrefix(line, "@@") {
			continue
		}

		parts := strings.Split(line, " ")
		if len(parts) < 3 {
			continue
		}

		newPart := strings.TrimPrefix(parts[2], "+")

		var newStart, newCount int
		if _, err := fmt.Sscanf(newPart, "%d,%d", &newStart, &newCount); err != nil {
			if _, err := fmt.Sscanf(newPart, "%d", &newStart); err != nil {
				continue
			}
			newCount = 1
		}

		if newStart == 0 {
			continue
		}

		for i := -contextLines; i < newCount+contextLines; i++ {
			if lineNum := newStart + i; lineNum > 0 {
				lines[lineNum] = true
			}
		}
	}

	return lines
}

// lineCounter counts blamed lines per author name.
type lineCounter map[string]int

// without returns a copy that omits the given lowercased names.
func (lc lineCounter) without(excluded map[string]bool) lineCounter {
	out := make(lineCounter, len(lc))
	for name, n := range lc {
		if n > 0 && !excluded[strings.ToLower(name)] {
			out[name] = n
		}
	}
	return out
}

// top returns the n authors with most lines; ties break alphabetically.
func (lc lineCounter) top(n int) []types.Candidate {
	candidates := make([]types.Candidate, 0, len(lc))
	for name, lines := range lc {
		candidates = append(candidates, types.Candidate{Name: name, Kind: types.IdentityDisplayName, Lines: lines})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Lines != candidates[j].Lines {
			return candidates[i].Lines > candidates[j].Lines
		}
		return candidates[i].Name < candidates[j].Name
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}
