// Package main runs the GitLab mention bot: a webhook server that mentions likely
// reviewers on newly opened merge requests.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/mention-bot/pkg/blame"
	"github.com/codeGROOVE-dev/mention-bot/pkg/config"
	"github.com/codeGROOVE-dev/mention-bot/pkg/gitlab"
	"github.com/codeGROOVE-dev/mention-bot/pkg/reviewer"
	"github.com/codeGROOVE-dev/mention-bot/pkg/types"
	"github.com/codeGROOVE-dev/mention-bot/pkg/webhook"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		if errors.Is(err, config.ErrMissing) {
			slog.Info("Set GITLAB_TOKEN, GITLAB_URL, GITLAB_USER and GITLAB_PASSWORD, or pass the matching flags")
		}
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	client := gitlab.New(gitlab.Config{
		BaseURL:     cfg.GitLabURL,
		Token:       cfg.GitLabToken,
		HTTPTimeout: cfg.HTTPTimeout,
	})

	me, err := client.VerifyToken(ctx)
	if err != nil {
		return err
	}
	if me.Username != cfg.GitLabUser {
		slog.Warn("Token belongs to a different account than GITLAB_USER",
			"token_user", me.Username, "configured_user", cfg.GitLabUser)
	}

	opts := cfg.Options
	ignored := append([]string{cfg.GitLabUser}, opts.UserBlacklist...)
	resolver := reviewer.New(client, reviewer.Config{
		Ignored:      ignored,
		MaxReviewers: opts.MaxReviewers,
	})

	messager, err := reviewer.NewMessager(opts.Message, opts.Conjunction)
	if err != nil {
		return err
	}

	stats := webhook.NewStats()
	pipeline := webhook.NewPipeline(webhook.PipelineConfig{
		Diffs:     client,
		Suggester: blame.New(client),
		Resolver:  resolver,
		Commenter: client,
		Messager:  messager,
		Stats:     stats,
		Options: types.SuggestOptions{
			UserBlacklist:   ignored,
			FileBlacklist:   opts.FileBlacklist,
			NumFilesToCheck: opts.NumFilesToCheck,
			MaxSuggestions:  opts.MaxSuggestions,
		},
		DryRun: opts.DryRun,
	})
	server := webhook.NewServer(webhook.NewGate(cfg.WebhookSecret, opts.SkipTitle), pipeline, stats)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(":" + cfg.Port)
	}()

	slog.Info("Mention bot started",
		"gitlab_url", cfg.GitLabURL,
		"user", cfg.GitLabUser,
		"port", cfg.Port,
		"max_reviewers", opts.MaxReviewers,
		"dry_run", opts.DryRun)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
