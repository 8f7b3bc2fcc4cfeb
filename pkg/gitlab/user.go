package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/mention-bot/pkg/types"

	"github.com/codeGROOVE-dev/retry"
)

// Startup verification retry constants.
const (
	verifyAttempts     = 10
	verifyInitialDelay = 1 * time.Second
	verifyMaxDelay     = 30 * time.Second
)

// CurrentUser returns the account the access token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*types.AccountState, error) {
	var u gitlabUser
	if err := c.get(ctx, "/user", nil, &u); err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	accounts := convertUsers([]gitlabUser{u})
	return &accounts[0], nil
}

// VerifyToken confirms at startup that the token is accepted, waiting with exponential
// backoff while the instance is unreachable or failing. Authentication errors stop at once.
// It is only used before the listener starts; webhook deliveries never retry.
func (c *Client) VerifyToken(ctx context.Context) (*types.AccountState, error) {
	var account *types.AccountState
	err := retry.Do(
		func() error {
			u, err := c.CurrentUser(ctx)
			if err != nil {
				return err
			}
			account = u
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(verifyAttempts),
		retry.Delay(verifyInitialDelay),
		retry.MaxDelay(verifyMaxDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(verifyInitialDelay/4),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("Retry attempt", "component", "retry", "operation", "verify token", "attempt", n+1, "max_attempts", verifyAttempts, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// isTransient reports whether err is worth waiting out: network failures, rate limits and
// server errors. Any other API status is final.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return err != nil && !errors.Is(err, context.Canceled)
}
