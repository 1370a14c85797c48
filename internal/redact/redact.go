package redact

import (
	"path"
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

type rule struct {
	name string
	re   *regexp.Regexp
}

// rules are ordered from the most to the least specific shape, so a GitHub
// token is reported as such and not as a generic assignment.
var rules = []rule{
	{"private key", regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`)},
	{"github token", regexp.MustCompile(`(gh[pousr]_[A-Za-z0-9_]{36,}|github_pat_[A-Za-z0-9_]{22,})`)},
	{"anthropic key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"slack token", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"aws access key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws secret", regexp.MustCompile(`(?i)aws[_-]?secret[_-]?access[_-]?key\s*[:=]\s*["']?[A-Za-z0-9/+=]{40}["']?`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"bearer token", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"api key", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?[A-Za-z0-9/+=_-]{20,}["']?`)},
	{"credential", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["'][^"']{8,}["']`)},
	{"hex secret", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`)},
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	for _, r := range rules {
		text = r.re.ReplaceAllLiteralString(text, placeholder)
	}
	return text
}

// Find returns the kind of the first secret found in text, or "".
func Find(text string) string {
	for _, r := range rules {
		if r.re.MatchString(text) {
			return r.name
		}
	}
	return ""
}

// MatchPath reports whether a slash-separated path matches any pattern.
// "**" stands for zero or more whole segments; other segments use
// path.Match syntax.
func MatchPath(p string, patterns []string) bool {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for _, pattern := range patterns {
		if matchSegments(strings.Split(strings.Trim(pattern, "/"), "/"), segs) {
			return true
		}
	}
	return false
}

func matchSegments(pattern, segs []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			for i := 0; i <= len(segs); i++ {
				if matchSegments(pattern[1:], segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, err := path.Match(pattern[0], segs[0]); err != nil || !ok {
			return false
		}
		pattern, segs = pattern[1:], segs[1:]
	}
	return len(segs) == 0
}

// Policy decides which documents may leave the process.
type Policy struct {
	// Paths are glob patterns of documents that are never sent.
	Paths []string
	// Secrets withholds documents that contain secret-like text.
	Secrets bool
}

// Withhold returns a reason when the document at p must not be sent, or ""
// when it may be.
func (pol Policy) Withhold(p, content string) string {
	if MatchPath(p, pol.Paths) {
		return "path policy"
	}
	if pol.Secrets {
		if kind := Find(content); kind != "" {
			return "contains " + kind
		}
	}
	return ""
}
