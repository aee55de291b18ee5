// Package gitignore loads a repository's .gitignore file into a matchable spec.
package gitignore

import (
	"fmt"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// GitIgnoreFileName is the name of the Git ignore file at the repository root.
const GitIgnoreFileName = ".gitignore"

// Spec matches repository-relative paths against compiled .gitignore patterns.
// A nil Spec matches nothing, so callers never need to branch on absence.
type Spec struct {
	compiled *ignore.GitIgnore
}

// LoadSpec compiles the .gitignore found at the repository root. A missing
// file is not an error and yields a nil Spec.
func LoadSpec(repositoryRoot string) (*Spec, error) {
	ignoreFilePath := filepath.Join(repositoryRoot, GitIgnoreFileName)
	if _, statError := os.Stat(ignoreFilePath); statError != nil {
		if os.IsNotExist(statError) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", ignoreFilePath, statError)
	}
	compiled, compileError := ignore.CompileIgnoreFile(ignoreFilePath)
	if compileError != nil {
		return nil, fmt.Errorf("compile %s: %w", ignoreFilePath, compileError)
	}
	return &Spec{compiled: compiled}, nil
}

// Matches reports whether the repository-relative path is ignored.
func (spec *Spec) Matches(repositoryRelativePath string) bool {
	if spec == nil || spec.compiled == nil {
		return false
	}
	return spec.compiled.MatchesPath(repositoryRelativePath)
}
