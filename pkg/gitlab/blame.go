package gitlab

import (
	"context"
	"fmt"
	"net/url"
)

// BlameRange is a run of consecutive lines last touched by the same commit.
type BlameRange struct {
	CommitID    string
	AuthorName  string
	AuthorEmail string
	Start       int // first line, 1-based
	Count       int
}

// Contains reports whether line falls inside the range.
func (r BlameRange) Contains(line int) bool {
	return line >= r.Start && line < r.Start+r.Count
}

type gitlabBlame struct {
	Commit struct {
		ID          string `json:"id"`
		AuthorName  string `json:"author_name"`
		AuthorEmail string `json:"author_email"`
	} `json:"commit"`
	Lines []string `json:"lines"`
}

// FileBlame returns blame ranges for a file at ref, in file order.
func (c *Client) FileBlame(ctx context.Context, projectID int, path, ref string) ([]BlameRange, error) {
	var blames []gitlabBlame
	apiPath := projectPath(projectID) + "/repository/files/" + url.PathEscape(path) + "/blame"
	if err := c.get(ctx, apiPath, url.Values{"ref": {ref}}, &blames); err != nil {
		return nil, fmt.Errorf("failed to get blame for %s: %w", path, err)
	}

	ranges := make([]BlameRange, 0, len(blames))
	line := 1
	for _, b := range blames {
		ranges = append(ranges, BlameRange{
			CommitID:    b.Commit.ID,
			AuthorName:  b.Commit.AuthorName,
			AuthorEmail: b.Commit.AuthorEmail,
			Start:       line,
			Count:       len(b.Lines),
		})
		line += len(b.Lines)
	}
	return ranges, nil
}
