// Package summarizer produces condensed textual surrogates for oversized files.
package summarizer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/gptcontext/internal/tokenizer"
	"github.com/temirov/gptcontext/internal/types"
)

// Summarizer is the capability of producing a condensed surrogate for file content.
//
// Both methods return the summary text, a success flag, and an error. The
// error is non-nil only for fatal conditions (ErrAPIKey, ErrQuotaExceeded, or
// a canceled context); every recoverable failure is reported as a sentinel
// text with a false success flag so callers can skip the file and continue.
type Summarizer interface {
	Summarize(ctx context.Context, content string, relativePathLabel string) (string, bool, error)
	CachedSummary(ctx context.Context, content string, relativePathLabel string) (string, bool, error)
}

// Options collects the construction parameters shared by summarizer backends.
type Options struct {
	Backend        string
	Model          string
	CacheDirectory string
	Counter        tokenizer.Counter
	Logger         *zap.Logger
}

// NewSummarizer constructs the backend named by options.Backend. An empty
// name selects the simple preview backend. Adding a backend means adding a
// case here; the assembler never changes.
func NewSummarizer(options Options) (Summarizer, error) {
	switch options.Backend {
	case "", types.SummarizerSimple:
		return NewSimple(), nil
	case types.SummarizerChatGPT:
		return NewChatGPT(options)
	default:
		return nil, fmt.Errorf("unknown summarizer backend %q", options.Backend)
	}
}
