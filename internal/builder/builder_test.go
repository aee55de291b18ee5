package builder_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/temirov/gptcontext/internal/builder"
	"github.com/temirov/gptcontext/internal/summarizer"
	"github.com/temirov/gptcontext/internal/types"
)

// wordCounter counts whitespace-separated words, so test files can be written
// with an exact token count.
type wordCounter struct{}

func (wordCounter) Name() string { return "words" }

func (wordCounter) CountString(input string) (int, error) {
	return len(strings.Fields(input)), nil
}

// stubSummarizer returns a fixed outcome and records how it was called.
type stubSummarizer struct {
	summary   string
	success   bool
	fatal     error
	callCount int
}

func (stub *stubSummarizer) Summarize(_ context.Context, _ string, _ string) (string, bool, error) {
	stub.callCount++
	if stub.fatal != nil {
		return "", false, stub.fatal
	}
	return stub.summary, stub.success, nil
}

func (stub *stubSummarizer) CachedSummary(ctx context.Context, content string, relativePathLabel string) (string, bool, error) {
	return stub.Summarize(ctx, content, relativePathLabel)
}

// writeCandidate creates a file holding exactly tokenCount words and returns
// its CandidateFile.
func writeCandidate(t *testing.T, directory string, relativePath string, tokenCount int) types.CandidateFile {
	t.Helper()
	words := make([]string, tokenCount)
	for index := range words {
		words[index] = fmt.Sprintf("w%d", index)
	}
	content := strings.Join(words, " ")
	fullPath := filepath.Join(directory, filepath.FromSlash(relativePath))
	if mkdirError := os.MkdirAll(filepath.Dir(fullPath), 0o755); mkdirError != nil {
		t.Fatalf("mkdir: %v", mkdirError)
	}
	if writeError := os.WriteFile(fullPath, []byte(content), 0o644); writeError != nil {
		t.Fatalf("write %s: %v", fullPath, writeError)
	}
	return types.CandidateFile{
		AbsolutePath:     fullPath,
		SizeBytes:        int64(len(content)),
		RepoRelativePath: relativePath,
		ScanRelativePath: relativePath,
	}
}

func TestBuildPacksSmallFilesFirstUnderTotalBudget(t *testing.T) {
	directory := t.TempDir()
	// Candidates arrive in the scanner's size-ascending order; the order
	// determines which files survive the budget.
	candidates := []types.CandidateFile{
		writeCandidate(t, directory, "tiny.py", 5),
		writeCandidate(t, directory, "small.py", 10),
		writeCandidate(t, directory, "large.py", 50),
	}

	contextBuilder := builder.NewBuilder(builder.Options{
		Summarizer:     &stubSummarizer{},
		Counter:        wordCounter{},
		MaxFileTokens:  100,
		MaxTotalTokens: 40,
	})
	result, buildError := contextBuilder.Build(context.Background(), candidates)
	if buildError != nil {
		t.Fatalf("Build: %v", buildError)
	}

	if result.FullCount != 2 || result.SummaryCount != 0 || result.FailedCount != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if result.TokensUsed != 15 {
		t.Fatalf("expected 15 tokens used, got %d", result.TokensUsed)
	}
	if !strings.Contains(result.Document, "# tiny.py\n") || !strings.Contains(result.Document, "# small.py\n") {
		t.Fatalf("document missing included sections: %q", result.Document)
	}
	if strings.Contains(result.Document, "large.py") {
		t.Fatalf("budget-skipped file leaked into the document: %q", result.Document)
	}
	if strings.Index(result.Document, "# tiny.py") > strings.Index(result.Document, "# small.py") {
		t.Fatalf("sections out of order: %q", result.Document)
	}
}

func TestBuildSkipsOversizedFileWhenSummarizationDisabled(t *testing.T) {
	directory := t.TempDir()
	candidates := []types.CandidateFile{writeCandidate(t, directory, "huge.py", 6000)}

	stub := &stubSummarizer{summary: "never used", success: true}
	contextBuilder := builder.NewBuilder(builder.Options{
		Summarizer:     stub,
		Counter:        wordCounter{},
		MaxFileTokens:  5000,
		MaxTotalTokens: 100000,
		SummarizeLarge: false,
	})
	result, buildError := contextBuilder.Build(context.Background(), candidates)
	if buildError != nil {
		t.Fatalf("Build: %v", buildError)
	}

	if result.FullCount != 0 || result.SummaryCount != 0 || result.FailedCount != 0 {
		t.Fatalf("oversized file must be skipped, not counted: %+v", result)
	}
	if result.Document != "" {
		t.Fatalf("oversized file must not be truncated into the document: %q", result.Document)
	}
	if stub.callCount != 0 {
		t.Fatalf("summarizer must not be consulted when disabled")
	}
}

func TestBuildIncludesSummaryForOversizedFile(t *testing.T) {
	directory := t.TempDir()
	candidates := []types.CandidateFile{writeCandidate(t, directory, "big.py", 200)}

	stub := &stubSummarizer{summary: "three word summary", success: true}
	contextBuilder := builder.NewBuilder(builder.Options{
		Summarizer:     stub,
		Counter:        wordCounter{},
		MaxFileTokens:  100,
		MaxTotalTokens: 50,
		SummarizeLarge: true,
	})
	result, buildError := contextBuilder.Build(context.Background(), candidates)
	if buildError != nil {
		t.Fatalf("Build: %v", buildError)
	}

	if result.SummaryCount != 1 || result.FullCount != 0 || result.FailedCount != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if result.TokensUsed != 3 {
		t.Fatalf("expected the summary's 3 tokens, got %d", result.TokensUsed)
	}
	if !strings.Contains(result.Document, "# Summary of big.py\nthree word summary") {
		t.Fatalf("missing summary section: %q", result.Document)
	}
}

func TestBuildSkipsSummaryThatWouldExceedTotalBudget(t *testing.T) {
	directory := t.TempDir()
	candidates := []types.CandidateFile{
		writeCandidate(t, directory, "filler.py", 48),
		writeCandidate(t, directory, "big.py", 200),
	}

	stub := &stubSummarizer{summary: "a five word long summary", success: true}
	contextBuilder := builder.NewBuilder(builder.Options{
		Summarizer:     stub,
		Counter:        wordCounter{},
		MaxFileTokens:  100,
		MaxTotalTokens: 50,
		SummarizeLarge: true,
	})
	result, buildError := contextBuilder.Build(context.Background(), candidates)
	if buildError != nil {
		t.Fatalf("Build: %v", buildError)
	}

	// A summary blocked by the total budget is a budget skip, not a failure.
	if result.FullCount != 1 || result.SummaryCount != 0 || result.FailedCount != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if result.TokensUsed != 48 {
		t.Fatalf("expected 48 tokens used, got %d", result.TokensUsed)
	}
}

func TestBuildCountsFailedSummarizations(t *testing.T) {
	directory := t.TempDir()
	candidates := []types.CandidateFile{writeCandidate(t, directory, "big.py", 200)}

	stub := &stubSummarizer{summary: "[Summary unavailable: request failed]", success: false}
	contextBuilder := builder.NewBuilder(builder.Options{
		Summarizer:     stub,
		Counter:        wordCounter{},
		MaxFileTokens:  100,
		MaxTotalTokens: 1000,
		SummarizeLarge: true,
	})
	result, buildError := contextBuilder.Build(context.Background(), candidates)
	if buildError != nil {
		t.Fatalf("Build: %v", buildError)
	}

	if result.FailedCount != 1 || result.SummaryCount != 0 || result.FullCount != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if result.Document != "" {
		t.Fatalf("failed summary must not appear in the document: %q", result.Document)
	}
}

func TestBuildAbortsOnFatalSummarizerError(t *testing.T) {
	directory := t.TempDir()
	candidates := []types.CandidateFile{
		writeCandidate(t, directory, "big.py", 200),
		writeCandidate(t, directory, "after.py", 3),
	}

	stub := &stubSummarizer{fatal: fmt.Errorf("authentication rejected: %w", summarizer.ErrAPIKey)}
	contextBuilder := builder.NewBuilder(builder.Options{
		Summarizer:     stub,
		Counter:        wordCounter{},
		MaxFileTokens:  100,
		MaxTotalTokens: 1000,
		SummarizeLarge: true,
	})
	result, buildError := contextBuilder.Build(context.Background(), candidates)
	if !errors.Is(buildError, summarizer.ErrAPIKey) {
		t.Fatalf("expected ErrAPIKey, got %v", buildError)
	}
	if result.Document != "" || result.FullCount != 0 || result.TokensUsed != 0 {
		t.Fatalf("aborted build must not report partial results: %+v", result)
	}
	if stub.callCount != 1 {
		t.Fatalf("build must stop at the fatal error, got %d summarizer calls", stub.callCount)
	}
}

func TestBuildRecordsUnreadableFilesWithoutAborting(t *testing.T) {
	directory := t.TempDir()
	readable := writeCandidate(t, directory, "ok.py", 4)
	missing := types.CandidateFile{
		AbsolutePath:     filepath.Join(directory, "vanished.py"),
		RepoRelativePath: "vanished.py",
		ScanRelativePath: "vanished.py",
	}

	contextBuilder := builder.NewBuilder(builder.Options{
		Summarizer:     &stubSummarizer{},
		Counter:        wordCounter{},
		MaxFileTokens:  100,
		MaxTotalTokens: 1000,
	})
	result, buildError := contextBuilder.Build(context.Background(), []types.CandidateFile{missing, readable})
	if buildError != nil {
		t.Fatalf("Build: %v", buildError)
	}

	if result.FailedCount != 1 || result.FullCount != 1 {
		t.Fatalf("unexpected counters: %+v", result)
	}
}

func TestBuildEndToEndScenario(t *testing.T) {
	// a.py (3 tokens), b.py (4000), c.py (6000); per-file threshold 5000,
	// total budget 4010, summarization disabled: a and b in full, c skipped.
	directory := t.TempDir()
	candidates := []types.CandidateFile{
		writeCandidate(t, directory, "a.py", 3),
		writeCandidate(t, directory, "b.py", 4000),
		writeCandidate(t, directory, "c.py", 6000),
	}

	contextBuilder := builder.NewBuilder(builder.Options{
		Summarizer:     &stubSummarizer{},
		Counter:        wordCounter{},
		MaxFileTokens:  5000,
		MaxTotalTokens: 4010,
		SummarizeLarge: false,
	})
	result, buildError := contextBuilder.Build(context.Background(), candidates)
	if buildError != nil {
		t.Fatalf("Build: %v", buildError)
	}

	if result.FullCount != 2 || result.SummaryCount != 0 || result.FailedCount != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if result.TokensUsed != 4003 {
		t.Fatalf("expected 4003 tokens used, got %d", result.TokensUsed)
	}
}
