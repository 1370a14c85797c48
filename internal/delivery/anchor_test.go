package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/suggest"
)

func TestPlace(t *testing.T) {
	original := "alpha\nbeta\ngamma\n"
	tests := []struct {
		name      string
		replaces  suggest.LineRange
		text      string
		wantStart int
		wantLine  int
		wantText  string
		wantOK    bool
	}{
		{"single line", suggest.LineRange{Start: 2, Count: 1}, "BETA", 2, 2, "BETA", true},
		{"range", suggest.LineRange{Start: 1, Count: 3}, "all", 1, 3, "all", true},
		{"insert after", suggest.LineRange{Start: 2, Count: 0}, "new", 2, 2, "beta\nnew", true},
		{"insert at top", suggest.LineRange{Start: 0, Count: 0}, "title", 1, 1, "title\nalpha", true},
		{"past end", suggest.LineRange{Start: 3, Count: 2}, "x", 0, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := place(suggest.CommitSuggestion{FilePath: "a.md", OriginalContent: original, SuggestionText: tt.text, Replaces: tt.replaces})
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantStart, p.StartLine)
			assert.Equal(t, tt.wantLine, p.Line)
			assert.Equal(t, tt.wantText, p.Text)
		})
	}

	_, ok := place(suggest.CommitSuggestion{FilePath: "empty.md", SuggestionText: "x"})
	assert.False(t, ok, "an empty original has nothing to anchor on")
}

func TestPatchIndex(t *testing.T) {
	idx, err := newPatchIndex([]host.PullRequestFile{
		{Filename: "a.md", Status: "modified", Patch: "@@ -1,3 +1,4 @@\n one\n+two\n three\n four\n@@ -20,2 +21,2 @@\n x\n-y\n+z"},
		{Filename: "gone.md", Status: "removed", Patch: "@@ -1 +0,0 @@\n-bye"},
		{Filename: "image.png", Status: "added"},
	})
	require.NoError(t, err)

	assert.True(t, idx.commentable("a.md", 1, 4))
	assert.True(t, idx.commentable("a.md", 21, 22))
	assert.False(t, idx.commentable("a.md", 4, 21), "ranges may not span hunks")
	assert.False(t, idx.commentable("a.md", 10, 10))
	assert.False(t, idx.commentable("gone.md", 1, 1))
	assert.False(t, idx.commentable("image.png", 1, 1))
}

func TestFormatComment(t *testing.T) {
	body := FormatComment("Use `go test` here.", false)
	assert.Equal(t, Marker+"\n**scribe** suggests:\n\n```suggestion\nUse `go test` here.\n```", body)

	fenced := FormatComment("```go\nx := 1\n```", false)
	assert.Contains(t, fenced, "````suggestion\n```go")
	assert.True(t, len(fenced) > 0 && fenced[len(fenced)-4:] == "````")

	whole := FormatComment("everything", true)
	assert.Contains(t, whole, "rewriting this document")
	assert.True(t, IsSuggestionComment(whole))
	assert.False(t, IsSuggestionComment("LGTM"))
}
