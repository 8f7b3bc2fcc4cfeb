package reviewer

import (
	"strings"
	"testing"

	"github.com/codeGROOVE-dev/mention-bot/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMentionSentence(t *testing.T) {
	tests := []struct {
		name        string
		conjunction string
		want        string
		usernames   []string
	}{
		{name: "none", usernames: nil, conjunction: "and", want: ""},
		{name: "one", usernames: []string{"asmith"}, conjunction: "and", want: "@asmith"},
		{name: "two", usernames: []string{"a", "b"}, conjunction: "and", want: "@a and @b"},
		{name: "three", usernames: []string{"a", "b", "c"}, conjunction: "and", want: "@a, @b and @c"},
		{name: "locale", usernames: []string{"a", "b"}, conjunction: "et", want: "@a et @b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MentionSentence(tt.usernames, tt.conjunction))
		})
	}
}

func TestCompose_Default(t *testing.T) {
	m, err := NewMessager("", "")
	require.NoError(t, err)

	one, err := m.Compose(types.Panel{"asmith"}, "zed")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(one, "identified @asmith to be a potential reviewer"), one)

	two, err := m.Compose(types.Panel{"bsmith", "csmith"}, "zed")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(two, "identified @bsmith and @csmith to be potential reviewers"), two)
}

func TestCompose_Deterministic(t *testing.T) {
	m, err := NewMessager("", "and")
	require.NoError(t, err)

	first, err := m.Compose(types.Panel{"a", "b"}, "zed")
	require.NoError(t, err)
	second, err := m.Compose(types.Panel{"a", "b"}, "zed")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompose_CustomTemplate(t *testing.T) {
	m, err := NewMessager("Hey {{.Mentions}}, @{{.Creator}} asked for {{.Count}} review{{.Plural}}", "und")
	require.NoError(t, err)

	got, err := m.Compose(types.Panel{"a", "b"}, "zed")
	require.NoError(t, err)
	assert.Equal(t, "Hey @a und @b, @zed asked for 2 reviews", got)
}

func TestCompose_EmptyPanel(t *testing.T) {
	m, err := NewMessager("", "")
	require.NoError(t, err)

	_, err = m.Compose(nil, "zed")
	assert.ErrorIs(t, err, ErrEmptyPanel)
}

func TestNewMessager_BadTemplate(t *testing.T) {
	_, err := NewMessager("{{.Mentions", "")
	assert.Error(t, err)
}
