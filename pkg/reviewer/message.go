package reviewer

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/codeGROOVE-dev/mention-bot/pkg/types"
)

// DefaultMessage is the comment template used when none is configured.
const DefaultMessage = "By analyzing the blame information on this merge request, " +
	"we identified {{.Mentions}} to be{{.Article}} potential reviewer{{.Plural}}"

// ErrEmptyPanel is returned when asked to compose a message for nobody.
var ErrEmptyPanel = errors.New("empty reviewer panel")

// MessageData is what a message template can refer to.
type MessageData struct {
	Mentions  string   // "@a", "@a and @b"
	Article   string   // " a" for one reviewer, "" otherwise
	Plural    string   // "s" for several reviewers, "" otherwise
	Creator   string   // merge request creator username
	Reviewers []string // panel usernames, without "@"
	Count     int
}

// Messager composes the comment posted on a merge request.
type Messager struct {
	tmpl        *template.Template
	conjunction string
}

// NewMessager parses text as a text/template. Empty text selects DefaultMessage and an empty
// conjunction selects "and".
func NewMessager(text, conjunction string) (*Messager, error) {
	if text == "" {
		text = DefaultMessage
	}
	if conjunction == "" {
		conjunction = "and"
	}
	tmpl, err := template.New("message").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message template: %w", err)
	}
	return &Messager{tmpl: tmpl, conjunction: conjunction}, nil
}

// MentionSentence joins usernames as "@a", "@a and @b", "@a, @b and @c".
func MentionSentence(usernames []string, conjunction string) string {
	mentions := make([]string, len(usernames))
	for i, u := range usernames {
		mentions[i] = "@" + u
	}

	switch len(mentions) {
	case 0:
		return ""
	case 1:
		return mentions[0]
	default:
		last := len(mentions) - 1
		return strings.Join(mentions[:last], ", ") + " " + conjunction + " " + mentions[last]
	}
}

// Compose renders the comment for a non-empty panel.
func (m *Messager) Compose(panel types.Panel, creator string) (string, error) {
	if len(panel) == 0 {
		return "", ErrEmptyPanel
	}

	data := MessageData{
		Mentions:  MentionSentence(panel, m.conjunction),
		Creator:   creator,
		Reviewers: append([]string(nil), panel...),
		Count:     len(panel),
	}
	if len(panel) > 1 {
		data.Plural = "s"
	} else {
		data.Article = " a"
	}

	var b strings.Builder
	if err := m.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render message: %w", err)
	}
	return b.String(), nil
}
