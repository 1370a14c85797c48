package review

import (
	"fmt"
	"path/filepath"
	"strings"
)

const systemPrompt = `You are a meticulous technical editor. You rewrite documents to improve clarity, grammar, consistency and tone while preserving their meaning and structure.

Rules:
1. Keep the document's format. Markdown stays Markdown, code blocks and links are left untouched.
2. Keep line structure where possible. Change only lines that need editing.
3. Never invent facts, add sections or remove content that carries meaning.
4. If the document needs no changes, return it unchanged.
5. Score the ORIGINAL document from 0 to 100 on quality, clarity, grammar, consistency and tone.

You MUST respond with ONLY a JSON object. No markdown fences, no explanation, no preamble.

The object must have this exact structure:
{
  "rewritten": "the full rewritten document",
  "scores": {
    "quality": 0-100,
    "clarity": 0-100,
    "grammar": 0-100,
    "consistency": 0-100,
    "tone": 0-100
  }
}`

// SystemPrompt returns the system prompt for the engine.
func SystemPrompt() string {
	return systemPrompt
}

// BuildUserPrompt constructs the user prompt for one document.
func BuildUserPrompt(doc Document, opts Options) string {
	var b strings.Builder

	b.WriteString("Rewrite the following document.\n\n")
	fmt.Fprintf(&b, "Path: %s\n", doc.Path)
	if kind := documentKind(doc.Path); kind != "" {
		fmt.Fprintf(&b, "Format: %s\n", kind)
	}
	if opts.Dialect != "" {
		fmt.Fprintf(&b, "Dialect: %s. Use its spelling and punctuation conventions.\n", opts.Dialect)
	}
	if opts.Tone != "" {
		fmt.Fprintf(&b, "Target tone: %s.\n", opts.Tone)
	}
	if opts.StyleGuide != "" && opts.Guide == nil {
		fmt.Fprintf(&b, "Follow the %s style guide.\n", opts.StyleGuide)
	}
	b.WriteString(opts.Guide.PromptSection())

	b.WriteString("\n--- BEGIN DOCUMENT ---\n")
	b.WriteString(doc.Content)
	b.WriteString("\n--- END DOCUMENT ---\n")

	return b.String()
}


func documentKind(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdx":
		return "Markdown"
	case ".rst":
		return "reStructuredText"
	case ".adoc", ".asciidoc":
		return "AsciiDoc"
	case ".txt", "":
		return "plain text"
	case ".html", ".htm":
		return "HTML"
	case ".tex":
		return "LaTeX"
	default:
		return ""
	}
}
