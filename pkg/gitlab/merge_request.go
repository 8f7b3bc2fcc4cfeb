package gitlab

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/codeGROOVE-dev/mention-bot/pkg/types"
)

type gitlabChange struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Diff        string `json:"diff"`
	NewFile     bool   `json:"new_file"`
	RenamedFile bool   `json:"renamed_file"`
	DeletedFile bool   `json:"deleted_file"`
}

type gitlabChanges struct {
	Changes []gitlabChange `json:"changes"`
}

type gitlabNote struct {
	Body string `json:"body"`
	ID   int    `json:"id"`
}

func mergeRequestPath(projectID, iid int) string {
	return projectPath(projectID) + "/merge_requests/" + strconv.Itoa(iid)
}

// MergeRequestChanges returns the files changed by a merge request, in GitLab's order.
func (c *Client) MergeRequestChanges(ctx context.Context, projectID, iid int) ([]types.ChangedFile, error) {
	var resp gitlabChanges
	if err := c.get(ctx, mergeRequestPath(projectID, iid)+"/changes", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get merge request changes: %w", err)
	}

	files := make([]types.ChangedFile, len(resp.Changes))
	for i, ch := range resp.Changes {
		files[i] = types.ChangedFile{
			OldPath:     ch.OldPath,
			NewPath:     ch.NewPath,
			Diff:        ch.Diff,
			NewFile:     ch.NewFile,
			RenamedFile: ch.RenamedFile,
			DeletedFile: ch.DeletedFile,
		}
	}
	return files, nil
}

// PostComment adds a note to a merge request.
func (c *Client) PostComment(ctx context.Context, projectID, iid int, text string) error {
	var note gitlabNote
	if err := c.post(ctx, mergeRequestPath(projectID, iid)+"/notes", map[string]string{"body": text}, &note); err != nil {
		return fmt.Errorf("failed to post comment: %w", err)
	}
	slog.Info("Posted comment", "component", "gitlab", "project", projectID, "mr", iid, "note", note.ID)
	return nil
}
