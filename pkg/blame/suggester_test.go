package blame

import (
	"context"
	"errors"
	"testing"

	"github.com/codeGROOVE-dev/mention-bot/pkg/gitlab"
	"github.com/codeGROOVE-dev/mention-bot/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FileBlame(ctx context.Context, projectID int, path, ref string) ([]gitlab.BlameRange, error) {
	args := m.Called(ctx, projectID, path, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gitlab.BlameRange), args.Error(1)
}

// A hunk touching new-side lines 10-11, so lines 8-13 count as touched.
const hunkAt10 = "@@ -10,1 +10,2 @@\n-old\n+new\n+newer\n"

func TestSuggest_RanksTouchedLines(t *testing.T) {
	f := new(mockFetcher)
	f.On("FileBlame", mock.Anything, 42, "main.go", "abc").Return([]gitlab.BlameRange{
		{AuthorName: "Bob Smith", Start: 1, Count: 8},     // line 8 touched
		{AuthorName: "Alice Smith", Start: 9, Count: 5},   // lines 9-13 touched
		{AuthorName: "Carol Jones", Start: 14, Count: 50}, // untouched
	}, nil)

	got, err := New(f).Suggest(context.Background(), types.SuggestRequest{
		ProjectID: 42,
		HeadSHA:   "abc",
		Files:     []types.ChangedFile{{OldPath: "main.go", NewPath: "main.go", Diff: hunkAt10}},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.Candidate{
		{Name: "Alice Smith", Kind: types.IdentityDisplayName, Lines: 5},
		{Name: "Bob Smith", Kind: types.IdentityDisplayName, Lines: 1},
	}, got)
	f.AssertExpectations(t)
}

func TestSuggest_ExcludesCreatorAndBlacklist(t *testing.T) {
	f := new(mockFetcher)
	f.On("FileBlame", mock.Anything, 42, "main.go", "abc").Return([]gitlab.BlameRange{
		{AuthorName: "Alice Smith", Start: 1, Count: 20},
		{AuthorName: "Release Bot", Start: 21, Count: 20},
		{AuthorName: "Dave", Start: 41, Count: 1},
	}, nil)

	got, err := New(f).Suggest(context.Background(), types.SuggestRequest{
		ProjectID:   42,
		HeadSHA:     "abc",
		CreatorName: "alice smith",
		Files:       []types.ChangedFile{{NewPath: "main.go", Diff: "@@ -1,50 +1,50 @@\n"}},
		Options:     types.SuggestOptions{UserBlacklist: []string{"Release Bot"}},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dave", got[0].Name)
}

func TestSuggest_FallsBackToWholeFile(t *testing.T) {
	f := new(mockFetcher)
	f.On("FileBlame", mock.Anything, 42, "main.go", "abc").Return([]gitlab.BlameRange{
		{AuthorName: "Creator", Start: 1, Count: 20},
		{AuthorName: "Erin", Start: 21, Count: 3},
	}, nil)

	got, err := New(f).Suggest(context.Background(), types.SuggestRequest{
		ProjectID:   42,
		HeadSHA:     "abc",
		CreatorName: "Creator",
		Files:       []types.ChangedFile{{NewPath: "main.go", Diff: hunkAt10}},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.Candidate{Name: "Erin", Kind: types.IdentityDisplayName, Lines: 3}, got[0])
}

func TestSuggest_SkipsUnblameableFiles(t *testing.T) {
	f := new(mockFetcher)

	got, err := New(f).Suggest(context.Background(), types.SuggestRequest{
		ProjectID: 42,
		HeadSHA:   "abc",
		Files: []types.ChangedFile{
			{NewPath: "added.go", NewFile: true, Diff: hunkAt10},
			{OldPath: "gone.go", DeletedFile: true, Diff: hunkAt10},
			{NewPath: "vendor.lock", Diff: hunkAt10},
		},
		Options: types.SuggestOptions{FileBlacklist: []string{"*.lock"}},
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	f.AssertNotCalled(t, "FileBlame", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSuggest_PartialFailure(t *testing.T) {
	f := new(mockFetcher)
	f.On("FileBlame", mock.Anything, 42, "a.go", "abc").Return(nil, errors.New("boom"))
	f.On("FileBlame", mock.Anything, 42, "b.go", "abc").Return([]gitlab.BlameRange{{AuthorName: "Bob", Start: 1, Count: 30}}, nil)

	got, err := New(f).Suggest(context.Background(), types.SuggestRequest{
		ProjectID: 42,
		HeadSHA:   "abc",
		Files: []types.ChangedFile{
			{NewPath: "a.go", Diff: hunkAt10},
			{NewPath: "b.go", Diff: hunkAt10},
		},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bob", got[0].Name)
}

func TestSuggest_AllFilesFail(t *testing.T) {
	f := new(mockFetcher)
	f.On("FileBlame", mock.Anything, 42, "a.go", "abc").Return(nil, errors.New("boom"))

	_, err := New(f).Suggest(context.Background(), types.SuggestRequest{
		ProjectID: 42,
		HeadSHA:   "abc",
		Files:     []types.ChangedFile{{NewPath: "a.go", Diff: hunkAt10}},
	})
	assert.Error(t, err)
}

func TestRankFiles(t *testing.T) {
	files := []types.ChangedFile{
		{NewPath: "small.go", Diff: "@@ -1 +1 @@\n-a\n+b\n"},
		{NewPath: "big.go", Diff: "@@ -1,3 +1,3 @@\n-a\n-b\n-c\n+d\n+e\n+f\n"},
		{NewPath: "docs/readme.md", Diff: "@@ -1,9 +1,9 @@\n-a\n-b\n-c\n-d\n+e\n+f\n+g\n+h\n"},
		{NewPath: "medium.go", Diff: "--- a/medium.go\n+++ b/medium.go\n@@ -1,2 +1,2 @@\n-a\n-b\n+c\n"},
	}

	ranked := rankFiles(files, []string{"docs/*"}, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "big.go", ranked[0].Path())
	assert.Equal(t, "medium.go", ranked[1].Path())
}

func TestChangedLines(t *testing.T) {
	tests := []struct {
		name string
		diff string
		want []int
	}{
		{"range", "@@ -5,0 +5,1 @@\n+x\n", []int{3, 4, 5, 6, 7}},
		{"single line", "@@ -1 +1 @@\n", []int{1, 2, 3}},
		{"deletion only", "@@ -4,2 +3,0 @@\n", []int{1, 2, 3, 4}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := changedLines(tt.diff)
			assert.Len(t, got, len(tt.want))
			for _, line := range tt.want {
				assert.True(t, got[line], "line %d", line)
			}
		})
	}
}
