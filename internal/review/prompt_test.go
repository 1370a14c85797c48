package review

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUserPrompt(t *testing.T) {
	p := BuildUserPrompt(Document{Path: "docs/intro.md", Content: "Hello world"}, Options{
		Dialect: "en-GB",
		Tone:    "friendly",
	})
	assert.Contains(t, p, "Path: docs/intro.md")
	assert.Contains(t, p, "Format: Markdown")
	assert.Contains(t, p, "Dialect: en-GB")
	assert.Contains(t, p, "Target tone: friendly")
	assert.Contains(t, p, "--- BEGIN DOCUMENT ---\nHello world\n--- END DOCUMENT ---")
}

func TestBuildUserPrompt_NamedStyleGuide(t *testing.T) {
	p := BuildUserPrompt(Document{Path: "a.txt"}, Options{StyleGuide: "microsoft"})
	assert.Contains(t, p, "Follow the microsoft style guide.")
	assert.NotContains(t, p, "Dialect:")
}

func TestStyleGuide_PromptSection(t *testing.T) {
	var nilGuide *StyleGuide
	assert.Empty(t, nilGuide.PromptSection())

	g := &StyleGuide{
		Name:        "house",
		Rules:       []string{"Use sentence case for headings"},
		Terminology: map[string]string{"e-mail": "email", "web site": "website"},
		Avoid:       []string{"simply", "just"},
	}
	s := g.PromptSection()
	assert.Contains(t, s, `Follow the "house" style guide.`)
	assert.Contains(t, s, "- Use sentence case for headings")
	assert.Less(t, strings.Index(s, `"e-mail"`), strings.Index(s, `"web site"`), "terminology is sorted")
	assert.Contains(t, s, "Never use: simply, just")

	p := BuildUserPrompt(Document{Path: "a.md"}, Options{StyleGuide: "house", Guide: g})
	assert.Contains(t, p, "House rules:")
}

func TestLoadStyleGuide(t *testing.T) {
	g, err := LoadStyleGuide("")
	require.NoError(t, err)
	assert.Nil(t, g)

	path := filepath.Join(t.TempDir(), "guide.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"house","avoid":["utilize"]}`), 0o644))
	g, err = LoadStyleGuide(path)
	require.NoError(t, err)
	assert.Equal(t, "house", g.Name)
	assert.Equal(t, []string{"utilize"}, g.Avoid)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = LoadStyleGuide(path)
	assert.Error(t, err)
}
