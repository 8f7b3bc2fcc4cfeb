// Package config loads the bot configuration from flags, environment variables and an
// optional YAML options file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrMissing is returned when required configuration is absent.
var ErrMissing = errors.New("missing required configuration")

// Defaults.
const (
	DefaultPort            = "5000"
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultMaxReviewers    = 2
	DefaultNumFilesToCheck = 5
	DefaultMaxSuggestions  = 5
	DefaultConjunction     = "and"
)

// Config holds everything the process needs. It is built once at startup and passed
// explicitly to every component.
type Config struct {
	GitLabURL     string `validate:"required,url"`
	GitLabToken   string `validate:"required"`
	GitLabUser    string `validate:"required"`
	GitLabPass    string `validate:"required"`
	WebhookSecret string
	Port          string `validate:"required,numeric"`
	LogLevel      slog.Level
	HTTPTimeout   time.Duration
	Options       Options
}

// Options tunes reviewer selection and the posted message. They may be set in a YAML file.
type Options struct {
	UserBlacklist   []string `yaml:"user_blacklist"`
	FileBlacklist   []string `yaml:"file_blacklist"`
	SkipTitle       string   `yaml:"skip_title"`
	Message         string   `yaml:"message"`
	Conjunction     string   `yaml:"conjunction"`
	MaxReviewers    int      `yaml:"max_reviewers" validate:"min=1,max=2"`
	NumFilesToCheck int      `yaml:"num_files_to_check" validate:"min=1"`
	MaxSuggestions  int      `yaml:"max_suggestions" validate:"min=1"`
	DryRun          bool     `yaml:"dry_run"`
}

// DefaultOptions returns the options used when no file overrides them.
func DefaultOptions() Options {
	return Options{
		MaxReviewers:    DefaultMaxReviewers,
		NumFilesToCheck: DefaultNumFilesToCheck,
		MaxSuggestions:  DefaultMaxSuggestions,
		Conjunction:     DefaultConjunction,
	}
}

// Load parses args (without the program name) and the environment into a validated Config.
// getenv is usually os.Getenv.
func Load(args []string, getenv func(string) string, usage io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("mention-bot", flag.ContinueOnError)
	fs.SetOutput(usage)

	gitlabURL := fs.String("gitlab-url", "", "GitLab base URL (e.g., https://gitlab.example.com)")
	token := fs.String("gitlab-token", "", "GitLab access token")
	user := fs.String("gitlab-user", "", "GitLab account the bot posts as")
	port := fs.String("port", "", "HTTP listen port (default: "+DefaultPort+")")
	optionsPath := fs.String("options", "", "Path to a YAML options file")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	timeout := fs.Duration("http-timeout", DefaultHTTPTimeout, "Timeout for each GitLab API request")
	dryRun := fs.Bool("dry-run", false, "Log the comment instead of posting it")

	fs.Usage = func() {
		fmt.Fprintf(usage, "Usage: mention-bot [options]\n\n")
		fmt.Fprintf(usage, "Suggests reviewers on newly opened GitLab merge requests.\n\n")
		fmt.Fprintf(usage, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(usage, "\nEnvironment Variables:\n")
		fmt.Fprintf(usage, "  GITLAB_URL             - GitLab base URL\n")
		fmt.Fprintf(usage, "  GITLAB_TOKEN           - GitLab access token\n")
		fmt.Fprintf(usage, "  GITLAB_USER            - GitLab bot account username\n")
		fmt.Fprintf(usage, "  GITLAB_PASSWORD        - GitLab bot account password\n")
		fmt.Fprintf(usage, "  GITLAB_WEBHOOK_SECRET  - Expected X-Gitlab-Token header (optional)\n")
		fmt.Fprintf(usage, "  MENTION_BOT_OPTIONS    - Path to a YAML options file (optional)\n")
		fmt.Fprintf(usage, "  LOG_LEVEL              - Log level (optional)\n")
		fmt.Fprintf(usage, "  PORT                   - HTTP server port (default: %s)\n", DefaultPort)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		GitLabURL:     strings.TrimRight(firstNonEmpty(*gitlabURL, getenv("GITLAB_URL")), "/"),
		GitLabToken:   firstNonEmpty(*token, getenv("GITLAB_TOKEN")),
		GitLabUser:    firstNonEmpty(*user, getenv("GITLAB_USER")),
		GitLabPass:    getenv("GITLAB_PASSWORD"),
		WebhookSecret: getenv("GITLAB_WEBHOOK_SECRET"),
		Port:          firstNonEmpty(*port, getenv("PORT"), DefaultPort),
		HTTPTimeout:   *timeout,
		Options:       DefaultOptions(),
	}

	if err := checkRequired(cfg); err != nil {
		return nil, err
	}

	level, err := parseLevel(firstNonEmpty(*logLevel, getenv("LOG_LEVEL")))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if path := firstNonEmpty(*optionsPath, getenv("MENTION_BOT_OPTIONS")); path != "" {
		opts, err := LoadOptions(path)
		if err != nil {
			return nil, err
		}
		cfg.Options = opts
	}
	if *dryRun {
		cfg.Options.DryRun = true
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// checkRequired reports every missing required variable at once.
func checkRequired(cfg *Config) error {
	var missing []string
	if cfg.GitLabToken == "" {
		missing = append(missing, "GITLAB_TOKEN")
	}
	if cfg.GitLabURL == "" {
		missing = append(missing, "GITLAB_URL")
	}
	if cfg.GitLabUser == "" {
		missing = append(missing, "GITLAB_USER")
	}
	if cfg.GitLabPass == "" {
		missing = append(missing, "GITLAB_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

// LoadOptions reads a YAML options file. Keys absent from the file keep their defaults.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read options file: %w", err)
	}
	return ParseOptions(data)
}

// ParseOptions decodes YAML options on top of DefaultOptions.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("failed to parse options: %w", err)
	}
	if opts.Conjunction == "" {
		opts.Conjunction = DefaultConjunction
	}
	if err := validator.New().Struct(opts); err != nil {
		return Options{}, fmt.Errorf("invalid options: %w", err)
	}
	return opts, nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
