package webhook

import (
	"context"
	"log/slog"

	"github.com/codeGROOVE-dev/mention-bot/pkg/reviewer"
	"github.com/codeGROOVE-dev/mention-bot/pkg/types"
)

// Stage names a step of one delivery's pipeline.
type Stage string

// Pipeline stages. Skipped, Aborted, EmptyPanel and Done are terminal.
const (
	StageReceived     Stage = "received"
	StageSkipped      Stage = "skipped"
	StageFetchingDiff Stage = "fetching_diff"
	StageAborted      Stage = "aborted"
	StageSuggesting   Stage = "suggesting"
	StageResolving    Stage = "resolving"
	StageEmptyPanel   Stage = "empty_panel"
	StageNotifying    Stage = "notifying"
	StageDone         Stage = "done"
)

// DiffFetcher returns the files a merge request changes.
type DiffFetcher interface {
	MergeRequestChanges(ctx context.Context, projectID, iid int) ([]types.ChangedFile, error)
}

// Suggester guesses likely owners of the changed code.
type Suggester interface {
	Suggest(ctx context.Context, req types.SuggestRequest) ([]types.Candidate, error)
}

// Resolver turns suggestions into a reviewer panel.
type Resolver interface {
	Resolve(ctx context.Context, req reviewer.Request) (reviewer.Resolution, error)
}

// Commenter posts a note on a merge request.
type Commenter interface {
	PostComment(ctx context.Context, projectID, iid int, text string) error
}

// PipelineConfig holds the collaborators and options of a Pipeline.
type PipelineConfig struct {
	Diffs     DiffFetcher
	Suggester Suggester
	Resolver  Resolver
	Commenter Commenter
	Messager  *reviewer.Messager
	Stats     *Stats
	Options   types.SuggestOptions
	DryRun    bool
}

// Pipeline handles one accepted delivery from diff fetch to comment. It keeps no state
// between runs, so concurrent runs are independent.
type Pipeline struct {
	diffs     DiffFetcher
	suggester Suggester
	resolver  Resolver
	commenter Commenter
	messager  *reviewer.Messager
	stats     *Stats
	options   types.SuggestOptions
	dryRun    bool
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	stats := cfg.Stats
	if stats == nil {
		stats = &Stats{}
	}
	return &Pipeline{
		diffs:     cfg.Diffs,
		suggester: cfg.Suggester,
		resolver:  cfg.Resolver,
		commenter: cfg.Commenter,
		messager:  cfg.Messager,
		stats:     stats,
		options:   cfg.Options,
		dryRun:    cfg.DryRun,
	}
}

// Run executes every stage for ev and returns the terminal stage reached. Failures are
// logged here and never retried.
func (p *Pipeline) Run(ctx context.Context, ev *types.MergeRequestEvent) Stage {
	log := slog.With(
		"component", "pipeline",
		"delivery", ev.DeliveryID,
		"project", ev.TargetProjectID,
		"mr", ev.MergeRequestIID)

	files, err := p.diffs.MergeRequestChanges(ctx, ev.TargetProjectID, ev.MergeRequestIID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to get merge request diff", "stage", StageFetchingDiff, "error", err)
		return p.finish(StageAborted)
	}

	candidates, err := p.suggester.Suggest(ctx, types.SuggestRequest{
		RepoURL:         ev.SourceRepoURL,
		ProjectID:       ev.SourceProjectID,
		HeadSHA:         ev.HeadCommitSHA,
		Files:           files,
		CreatorName:     ev.CreatorName,
		CreatorUsername: ev.CreatorUsername,
		Options:         p.options,
	})
	if err != nil {
		log.WarnContext(ctx, "Owner suggestion failed (continuing without suggestions)", "stage", StageSuggesting, "error", err)
		candidates = nil
	}
	log.InfoContext(ctx, "Suggested owners", "stage", StageSuggesting, "files", len(files), "candidates", len(candidates))

	res, err := p.resolver.Resolve(ctx, reviewer.Request{
		ProjectID: ev.TargetProjectID,
		Creator:   ev.CreatorUsername,
		Suggested: candidates,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve reviewers", "stage", StageResolving, "error", err)
		return p.finish(StageAborted)
	}
	if len(res.Panel) == 0 {
		log.InfoContext(ctx, "Skipping because there are no reviewers found")
		return p.finish(StageEmptyPanel)
	}

	text, err := p.messager.Compose(res.Panel, ev.CreatorUsername)
	if err != nil {
		log.ErrorContext(ctx, "Failed to compose comment", "stage", StageNotifying, "error", err)
		return p.finish(StageAborted)
	}

	if p.dryRun {
		log.InfoContext(ctx, "Would post comment (dry-run)", "tier", res.Tier.String(), "reviewers", []string(res.Panel), "comment", text)
		return p.finish(StageDone)
	}

	if err := p.commenter.PostComment(ctx, ev.TargetProjectID, ev.MergeRequestIID, text); err != nil {
		log.ErrorContext(ctx, "Error commenting on merge request (dropped)", "stage", StageNotifying, "error", err)
		p.stats.recordPostFailure()
		return StageDone
	}

	log.InfoContext(ctx, "Mentioned reviewers", "tier", res.Tier.String(), "reviewers", []string(res.Panel))
	return p.finish(StageDone)
}

func (p *Pipeline) finish(stage Stage) Stage {
	p.stats.record(stage)
	return stage
}
