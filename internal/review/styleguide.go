package review

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// StyleGuide is a house style loaded from a JSON file.
type StyleGuide struct {
	Name        string            `json:"name,omitempty"`
	Rules       []string          `json:"rules,omitempty"`
	Terminology map[string]string `json:"terminology,omitempty"`
	Avoid       []string          `json:"avoid,omitempty"`
}

// LoadStyleGuide reads a style guide file. An empty path returns nil, nil.
func LoadStyleGuide(path string) (*StyleGuide, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading style guide: %w", err)
	}
	var g StyleGuide
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing style guide: %w", err)
	}
	return &g, nil
}

// PromptSection renders the guide as prompt instructions.
func (g *StyleGuide) PromptSection() string {
	if g == nil {
		return ""
	}
	var b strings.Builder
	if g.Name != "" {
		fmt.Fprintf(&b, "\nFollow the %q style guide.\n", g.Name)
	}
	if len(g.Rules) > 0 {
		b.WriteString("\nHouse rules:\n")
		for _, r := range g.Rules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	if len(g.Terminology) > 0 {
		b.WriteString("\nPreferred terminology:\n")
		terms := make([]string, 0, len(g.Terminology))
		for t := range g.Terminology {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		for _, t := range terms {
			fmt.Fprintf(&b, "- write %q instead of %q\n", g.Terminology[t], t)
		}
	}
	if len(g.Avoid) > 0 {
		fmt.Fprintf(&b, "\nNever use: %s\n", strings.Join(g.Avoid, ", "))
	}
	return b.String()
}
