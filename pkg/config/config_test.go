package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func fullEnv() map[string]string {
	return map[string]string{
		"GITLAB_URL":      "https://gitlab.example.com/",
		"GITLAB_TOKEN":    "glpat-test",
		"GITLAB_USER":     "mention-bot",
		"GITLAB_PASSWORD": "secret",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, envFrom(fullEnv()), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "https://gitlab.example.com", cfg.GitLabURL)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, DefaultOptions(), cfg.Options)
}

func TestLoad_MissingVariables(t *testing.T) {
	tests := []struct {
		name    string
		drop    []string
		wantMsg string
	}{
		{"token", []string{"GITLAB_TOKEN"}, "GITLAB_TOKEN"},
		{"url", []string{"GITLAB_URL"}, "GITLAB_URL"},
		{"credentials", []string{"GITLAB_USER", "GITLAB_PASSWORD"}, "GITLAB_USER, GITLAB_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := fullEnv()
			for _, k := range tt.drop {
				delete(env, k)
			}

			_, err := Load(nil, envFrom(env), io.Discard)
			require.ErrorIs(t, err, ErrMissing)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	env := fullEnv()
	env["PORT"] = "9000"

	cfg, err := Load([]string{"-port", "7000", "-gitlab-user", "other-bot", "-dry-run", "-log-level", "debug"}, envFrom(env), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "other-bot", cfg.GitLabUser)
	assert.True(t, cfg.Options.DryRun)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	env := fullEnv()
	env["PORT"] = "http"
	_, err := Load(nil, envFrom(env), io.Discard)
	assert.Error(t, err)

	env = fullEnv()
	env["LOG_LEVEL"] = "loud"
	_, err = Load(nil, envFrom(env), io.Discard)
	assert.Error(t, err)
}

func TestLoad_OptionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	content := "max_reviewers: 1\nuser_blacklist: [\"Release Bot\"]\nskip_title: WIP\nconjunction: et\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	env := fullEnv()
	env["MENTION_BOT_OPTIONS"] = path

	cfg, err := Load(nil, envFrom(env), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Options.MaxReviewers)
	assert.Equal(t, []string{"Release Bot"}, cfg.Options.UserBlacklist)
	assert.Equal(t, "WIP", cfg.Options.SkipTitle)
	assert.Equal(t, "et", cfg.Options.Conjunction)
	assert.Equal(t, DefaultNumFilesToCheck, cfg.Options.NumFilesToCheck)
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"empty keeps defaults", "", false},
		{"three reviewers rejected", "max_reviewers: 3", true},
		{"zero files rejected", "num_files_to_check: 0", true},
		{"malformed yaml", "max_reviewers: [", true},
		{"custom message", "message: \"{{.Mentions}} please review\"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOptions([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoadOptions_MissingFile(t *testing.T) {
	_, err := LoadOptions(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
