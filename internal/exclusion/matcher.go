// Package exclusion classifies relative paths against exclude patterns.
//
// A pattern belongs to exactly one of three buckets:
//
//	node_modules/   directory-only match
//	*.log           glob match
//	tmp/**          subtree glob match
//	.DS_Store       literal file or directory name match
package exclusion

import (
	"os"
	"path"
	"regexp"
	"strings"
)

// DefaultExcludes are appended to user patterns unless default excludes are disabled.
var DefaultExcludes = []string{
	".git/",
	".hg/",
	".svn/",
	"node_modules/",
	"__pycache__/",
	".DS_Store",
	"Thumbs.db",
}

const globMetacharacters = "*?["

// compiledGlob pairs a raw glob pattern with its precompiled regular expression.
type compiledGlob struct {
	pattern    string
	expression *regexp.Regexp
}

// Matcher decides whether relative paths are excluded from processing.
type Matcher struct {
	directoryOnlyPatterns map[string]struct{}
	literalPatterns       map[string]struct{}
	globPatterns          []compiledGlob
}

// NewMatcher compiles the supplied patterns into the three pattern buckets.
// When useDefaultExcludes is true the built-in defaults are appended with the
// same precedence as user patterns.
func NewMatcher(patterns []string, useDefaultExcludes bool) *Matcher {
	combinedPatterns := make([]string, 0, len(patterns)+len(DefaultExcludes))
	combinedPatterns = append(combinedPatterns, patterns...)
	if useDefaultExcludes {
		combinedPatterns = append(combinedPatterns, DefaultExcludes...)
	}

	matcher := &Matcher{
		directoryOnlyPatterns: make(map[string]struct{}),
		literalPatterns:       make(map[string]struct{}),
	}
	for _, pattern := range combinedPatterns {
		switch {
		case strings.HasSuffix(pattern, "/"):
			matcher.directoryOnlyPatterns[strings.TrimSuffix(pattern, "/")] = struct{}{}
		case strings.ContainsAny(pattern, globMetacharacters):
			matcher.globPatterns = append(matcher.globPatterns, compiledGlob{
				pattern:    pattern,
				expression: translateGlob(pattern),
			})
		default:
			matcher.literalPatterns[pattern] = struct{}{}
		}
	}
	return matcher
}

// WhyExcluded returns a diagnostic reason when relativePath matches a pattern,
// or the empty string when the path is not excluded. Evaluation order is
// directory-only, then literal, then glob; the first match wins.
func (matcher *Matcher) WhyExcluded(relativePath string, isDirectory bool) string {
	normalizedPath := strings.ReplaceAll(relativePath, "\\", "/")
	finalSegment := path.Base(normalizedPath)

	if isDirectory {
		if _, matched := matcher.directoryOnlyPatterns[finalSegment]; matched {
			return "dir-only pattern: " + finalSegment + "/"
		}
	}
	if _, matched := matcher.literalPatterns[finalSegment]; matched {
		return "literal pattern: " + finalSegment
	}
	for _, glob := range matcher.globPatterns {
		if glob.expression.MatchString(normalizedPath) {
			return "glob pattern: " + glob.pattern
		}
	}
	return ""
}

// IsExcluded reports whether relativePath matches any exclusion pattern.
func (matcher *Matcher) IsExcluded(relativePath string, isDirectory bool) bool {
	return matcher.WhyExcluded(relativePath, isDirectory) != ""
}

// WhyExcludedResolving behaves like WhyExcluded for callers that do not know
// whether the path names a directory; directory-ness is resolved with a stat
// call, defaulting to false when the path cannot be inspected.
func (matcher *Matcher) WhyExcludedResolving(relativePath string) string {
	isDirectory := false
	if info, statError := os.Stat(relativePath); statError == nil {
		isDirectory = info.IsDir()
	}
	return matcher.WhyExcluded(relativePath, isDirectory)
}

// translateGlob converts a shell glob into an anchored regular expression with
// fnmatch semantics: "*" and "?" match any characters including path
// separators, so a trailing "/**" covers an entire subtree.
func translateGlob(pattern string) *regexp.Regexp {
	var builder strings.Builder
	builder.WriteString("^")
	runes := []rune(pattern)
	for index := 0; index < len(runes); index++ {
		currentRune := runes[index]
		switch currentRune {
		case '*':
			builder.WriteString(".*")
		case '?':
			builder.WriteString(".")
		case '[':
			closingIndex := index + 1
			if closingIndex < len(runes) && (runes[closingIndex] == '!' || runes[closingIndex] == '^') {
				closingIndex++
			}
			if closingIndex < len(runes) && runes[closingIndex] == ']' {
				closingIndex++
			}
			for closingIndex < len(runes) && runes[closingIndex] != ']' {
				closingIndex++
			}
			if closingIndex >= len(runes) {
				builder.WriteString(regexp.QuoteMeta(string(currentRune)))
				continue
			}
			characterClass := string(runes[index+1 : closingIndex])
			if strings.HasPrefix(characterClass, "!") {
				characterClass = "^" + characterClass[1:]
			}
			characterClass = strings.ReplaceAll(characterClass, `\`, `\\`)
			builder.WriteString("[" + characterClass + "]")
			index = closingIndex
		default:
			builder.WriteString(regexp.QuoteMeta(string(currentRune)))
		}
	}
	builder.WriteString("$")
	compiled, compileError := regexp.Compile(builder.String())
	if compileError != nil {
		// Degenerate pattern: fall back to an expression that never matches.
		return regexp.MustCompile(`\b\B`)
	}
	return compiled
}
