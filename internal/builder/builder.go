// Package builder assembles the bounded-size context document from candidate files.
package builder

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/gptcontext/internal/summarizer"
	"github.com/temirov/gptcontext/internal/tokenizer"
	"github.com/temirov/gptcontext/internal/types"
)

// Builder turns an ordered candidate list into a single context document
// under a global token budget.
//
// Loading is parallel; inclusion decisions are strictly sequential because
// the running token total is shared state with a sequential dependency: every
// decision depends on all prior decisions in the candidate order.
type Builder struct {
	summarizer     summarizer.Summarizer
	counter        tokenizer.Counter
	maxFileTokens  int
	maxTotalTokens int
	summarizeLarge bool
	workerCount    int
	logger         *zap.Logger
}

// Options collects the construction parameters for a Builder.
type Options struct {
	Summarizer     summarizer.Summarizer
	Counter        tokenizer.Counter
	MaxFileTokens  int
	MaxTotalTokens int
	SummarizeLarge bool
	WorkerCount    int
	Logger         *zap.Logger
}

// NewBuilder constructs a Builder from the supplied options.
func NewBuilder(options Options) *Builder {
	workerCount := options.WorkerCount
	if workerCount <= 0 {
		workerCount = runtime.GOMAXPROCS(0)
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		summarizer:     options.Summarizer,
		counter:        options.Counter,
		maxFileTokens:  options.MaxFileTokens,
		maxTotalTokens: options.MaxTotalTokens,
		summarizeLarge: options.SummarizeLarge,
		workerCount:    workerCount,
		logger:         logger,
	}
}

// loadedFile carries one candidate through the load stage. A load failure is
// recorded as loaded=false rather than aborting the other reads.
type loadedFile struct {
	candidate types.CandidateFile
	content   string
	tokens    int
	loaded    bool
}

// inclusionAction is the closed set of per-file decision outcomes.
type inclusionAction int

const (
	includeFull inclusionAction = iota
	includeSummary
	skipFileThreshold
	skipTotalBudget
	skipSummaryBudget
	skipSummaryFailed
)

// inclusionDecision tags an action with the token cost it would add and the
// snippet to emit. Computed per file, never persisted.
type inclusionDecision struct {
	action      inclusionAction
	tokensToAdd int
	snippet     string
}

// Build reads every candidate in parallel, then walks them in the supplied
// order (the scanner's size-ascending order, which determines which files
// survive the budget) deciding full inclusion, summary inclusion, or a skip.
//
// A fatal summarizer error (ErrAPIKey, ErrQuotaExceeded) aborts the whole
// build; the partially assembled document is discarded.
func (builder *Builder) Build(ctx context.Context, candidates []types.CandidateFile) (types.BuildResult, error) {
	builder.logger.Info(fmt.Sprintf("Building context from %d files (parallel loading)...", len(candidates)))

	loadedFiles, loadError := builder.loadAll(ctx, candidates)
	if loadError != nil {
		return types.BuildResult{}, loadError
	}

	var result types.BuildResult
	var parts []string
	for _, loaded := range loadedFiles {
		if !loaded.loaded {
			result.FailedCount++
			continue
		}

		relativePath := loaded.candidate.ScanRelativePath
		decision, decisionError := builder.decideInclusion(ctx, relativePath, loaded.content, loaded.tokens, result.TokensUsed)
		if decisionError != nil {
			return types.BuildResult{}, decisionError
		}

		switch decision.action {
		case includeFull:
			parts = append(parts, decision.snippet)
			result.TokensUsed += decision.tokensToAdd
			result.FullCount++
			builder.logger.Debug(fmt.Sprintf("Including full %s (%d tokens)", relativePath, decision.tokensToAdd))
		case includeSummary:
			parts = append(parts, decision.snippet)
			result.TokensUsed += decision.tokensToAdd
			result.SummaryCount++
			builder.logger.Debug(fmt.Sprintf("Including summary of %s (%d tokens)", relativePath, decision.tokensToAdd))
		case skipFileThreshold:
			builder.logger.Info(fmt.Sprintf("Skipped %s: exceeds per-file token threshold", relativePath))
		case skipSummaryBudget:
			builder.logger.Info(fmt.Sprintf("Skipped summary of %s: token limit reached", relativePath))
		case skipTotalBudget:
			builder.logger.Info(fmt.Sprintf("Skipped %s: total token limit reached", relativePath))
		case skipSummaryFailed:
			builder.logger.Warn(fmt.Sprintf("Skipped %s: summarization failed", relativePath))
			result.FailedCount++
		}
	}

	result.Document = strings.Join(parts, "\n")
	return result, nil
}

// loadAll reads and token-counts every candidate with a bounded worker pool.
func (builder *Builder) loadAll(ctx context.Context, candidates []types.CandidateFile) ([]loadedFile, error) {
	loadedFiles := make([]loadedFile, len(candidates))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(builder.workerCount)

	for candidateIndex, candidate := range candidates {
		candidateIndex, candidate := candidateIndex, candidate
		group.Go(func() error {
			if contextError := groupCtx.Err(); contextError != nil {
				return contextError
			}
			loadedFiles[candidateIndex] = builder.loadAndCount(candidate)
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}
	return loadedFiles, nil
}

// loadAndCount reads one file and counts its tokens. Failures are recorded in
// the returned loadedFile, never propagated.
func (builder *Builder) loadAndCount(candidate types.CandidateFile) loadedFile {
	contentBytes, readError := os.ReadFile(candidate.AbsolutePath)
	if readError != nil {
		builder.logger.Warn(fmt.Sprintf("Skipping %s: %v", candidate.AbsolutePath, readError))
		return loadedFile{candidate: candidate}
	}
	content := string(contentBytes)
	tokens, countError := builder.counter.CountString(content)
	if countError != nil {
		builder.logger.Warn(fmt.Sprintf("Skipping %s: %v", candidate.AbsolutePath, countError))
		return loadedFile{candidate: candidate}
	}
	return loadedFile{candidate: candidate, content: content, tokens: tokens, loaded: true}
}

// decideInclusion applies the budget rules for a single file given the
// running token total. A returned error is fatal to the whole build.
func (builder *Builder) decideInclusion(ctx context.Context, relativePath string, content string, tokens int, usedTokens int) (inclusionDecision, error) {
	if tokens <= builder.maxFileTokens {
		if usedTokens+tokens <= builder.maxTotalTokens {
			return inclusionDecision{
				action:      includeFull,
				tokensToAdd: tokens,
				snippet:     "\n# " + relativePath + "\n" + content,
			}, nil
		}
		return inclusionDecision{action: skipTotalBudget}, nil
	}

	if !builder.summarizeLarge {
		return inclusionDecision{action: skipFileThreshold}, nil
	}

	summary, success, summarizeError := builder.summarizer.CachedSummary(ctx, content, relativePath)
	if summarizeError != nil {
		builder.logger.Error(fmt.Sprintf("Summarization failed: %v", summarizeError))
		builder.logger.Error("Stopping context generation due to summarization error")
		return inclusionDecision{}, summarizeError
	}
	if !success {
		builder.logger.Warn(fmt.Sprintf("Failed to summarize %s, skipping file", relativePath))
		return inclusionDecision{action: skipSummaryFailed}, nil
	}

	summaryTokens, countError := builder.counter.CountString(summary)
	if countError != nil {
		builder.logger.Warn(fmt.Sprintf("Failed to count summary tokens for %s: %v", relativePath, countError))
		return inclusionDecision{action: skipSummaryFailed}, nil
	}
	if usedTokens+summaryTokens <= builder.maxTotalTokens {
		return inclusionDecision{
			action:      includeSummary,
			tokensToAdd: summaryTokens,
			snippet:     "\n# Summary of " + relativePath + "\n" + summary,
		}, nil
	}
	return inclusionDecision{action: skipSummaryBudget}, nil
}
