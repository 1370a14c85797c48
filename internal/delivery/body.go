package delivery

import (
	"fmt"
	"strings"
)

// Marker identifies comments written by scribe.
const Marker = "<!-- scribe:suggestion -->"

// FormatComment renders a suggestion comment body. The fence is longer than
// any backtick run in text so the suggestion cannot close it early.
func FormatComment(text string, wholeFile bool) string {
	fence := strings.Repeat("`", max(3, longestBacktickRun(text)+1))

	var b strings.Builder
	b.WriteString(Marker)
	b.WriteString("\n")
	if wholeFile {
		b.WriteString("**scribe** suggests rewriting this document. Review the full change before applying it.\n\n")
	} else {
		b.WriteString("**scribe** suggests:\n\n")
	}
	fmt.Fprintf(&b, "%ssuggestion\n%s\n%s", fence, text, fence)
	return b.String()
}

// IsSuggestionComment reports whether body was written by FormatComment.
func IsSuggestionComment(body string) bool {
	return strings.Contains(body, Marker)
}

func longestBacktickRun(s string) int {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return longest
}

func reviewBody(created, files, dropped int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## scribe suggestions\n\n%d suggested edit(s) across %d file(s).", created, files)
	if dropped > 0 {
		fmt.Fprintf(&b, "\n\n%d further suggestion(s) were not posted because the review size limit was reached.", dropped)
	}
	return b.String()
}
