// Package scanner walks a directory tree and selects candidate files for context building.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/temirov/gptcontext/internal/exclusion"
	"github.com/temirov/gptcontext/internal/gitignore"
	"github.com/temirov/gptcontext/internal/types"
	"github.com/temirov/gptcontext/internal/utils"
)

// Scanner selects files under a scan root, applying include and exclude rules.
//
// The repository root is where the .gitignore lives; gitignore patterns are
// matched against paths relative to it. The scan root is the directory that is
// actually walked and may equal the repository root or a subdirectory of it.
type Scanner struct {
	repositoryRoot    string
	scanRoot          string
	includeExtensions map[string]struct{}
	excludeMatcher    *exclusion.Matcher
	skipFileNames     map[string]struct{}
	gitignoreSpec     *gitignore.Spec
	maxFileSizeBytes  int64
	logger            *zap.Logger
}

// Options collects the construction parameters for a Scanner.
type Options struct {
	RepositoryRoot    string
	ScanRoot          string
	IncludeExtensions []string
	ExcludeMatcher    *exclusion.Matcher
	SkipFileNames     []string
	GitignoreSpec     *gitignore.Spec
	MaxFileSizeBytes  int64
	Logger            *zap.Logger
}

// NewScanner constructs a Scanner from the supplied options.
func NewScanner(options Options) *Scanner {
	includeExtensions := make(map[string]struct{}, len(options.IncludeExtensions))
	for _, extension := range options.IncludeExtensions {
		includeExtensions[extension] = struct{}{}
	}
	skipFileNames := make(map[string]struct{}, len(options.SkipFileNames))
	for _, fileName := range options.SkipFileNames {
		skipFileNames[fileName] = struct{}{}
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		repositoryRoot:    filepath.Clean(options.RepositoryRoot),
		scanRoot:          filepath.Clean(options.ScanRoot),
		includeExtensions: includeExtensions,
		excludeMatcher:    options.ExcludeMatcher,
		skipFileNames:     skipFileNames,
		gitignoreSpec:     options.GitignoreSpec,
		maxFileSizeBytes:  options.MaxFileSizeBytes,
		logger:            logger,
	}
}

// ListFiles walks the scan root and returns the surviving files sorted by
// ascending byte size, so cheaper files are packed into the token budget
// before any single large file can exhaust it.
//
// Excluded directories are pruned without descending into them. A per-file
// stat error skips that file without aborting the walk.
func (scanner *Scanner) ListFiles() ([]types.CandidateFile, error) {
	var candidates []types.CandidateFile

	walkError := filepath.WalkDir(scanner.scanRoot, func(walkedPath string, directoryEntry os.DirEntry, accessError error) error {
		if accessError != nil {
			scanner.logger.Warn(fmt.Sprintf("Skipping %s: %v", walkedPath, accessError))
			if directoryEntry != nil && directoryEntry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		repositoryRelativePath := utils.RelativePathOrSelf(walkedPath, scanner.repositoryRoot)

		if directoryEntry.IsDir() {
			if repositoryRelativePath == "." {
				return nil
			}
			if reason := scanner.excludeMatcher.WhyExcluded(repositoryRelativePath, true); reason != "" {
				scanner.logger.Debug(fmt.Sprintf("Pruned %s (%s)", repositoryRelativePath, reason))
				return filepath.SkipDir
			}
			return nil
		}

		fileName := directoryEntry.Name()
		if _, skipped := scanner.skipFileNames[fileName]; skipped {
			return nil
		}
		if _, included := scanner.includeExtensions[filepath.Ext(fileName)]; !included {
			return nil
		}
		if scanner.gitignoreSpec.Matches(repositoryRelativePath) {
			return nil
		}
		if reason := scanner.excludeMatcher.WhyExcluded(repositoryRelativePath, false); reason != "" {
			scanner.logger.Debug(fmt.Sprintf("Excluded %s (%s)", repositoryRelativePath, reason))
			return nil
		}

		fileInfo, infoError := directoryEntry.Info()
		if infoError != nil {
			scanner.logger.Warn(fmt.Sprintf("Skipping %s: %v", walkedPath, infoError))
			return nil
		}
		if fileInfo.Size() > scanner.maxFileSizeBytes {
			scanner.logger.Debug(fmt.Sprintf(
				"Excluded %s: %s exceeds size cap %s",
				repositoryRelativePath,
				utils.FormatFileSize(fileInfo.Size()),
				utils.FormatFileSize(scanner.maxFileSizeBytes),
			))
			return nil
		}

		candidates = append(candidates, types.CandidateFile{
			AbsolutePath:     walkedPath,
			SizeBytes:        fileInfo.Size(),
			RepoRelativePath: repositoryRelativePath,
			ScanRelativePath: utils.RelativePathOrSelf(walkedPath, scanner.scanRoot),
		})
		return nil
	})
	if walkError != nil {
		return nil, fmt.Errorf("walk %s: %w", scanner.scanRoot, walkError)
	}

	sort.SliceStable(candidates, func(firstIndex, secondIndex int) bool {
		return candidates[firstIndex].SizeBytes < candidates[secondIndex].SizeBytes
	})
	return candidates, nil
}
