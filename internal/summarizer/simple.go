package summarizer

import (
	"context"
	"strings"
)

// previewLineCount is the number of leading lines kept by the preview backend.
const previewLineCount = 20

// Simple is a deterministic local backend that returns the first lines of the
// content as a preview. It performs no I/O and cannot fail.
type Simple struct{}

// NewSimple constructs the preview backend.
func NewSimple() *Simple {
	return &Simple{}
}

// Summarize returns the first previewLineCount lines of content.
func (simple *Simple) Summarize(_ context.Context, content string, relativePathLabel string) (string, bool, error) {
	lines := strings.Split(content, "\n")
	if len(lines) > previewLineCount {
		lines = lines[:previewLineCount]
	}
	return "# Preview of " + relativePathLabel + "\n" + strings.Join(lines, "\n"), true, nil
}

// CachedSummary delegates to Summarize; previews are cheaper than cache lookups.
func (simple *Simple) CachedSummary(ctx context.Context, content string, relativePathLabel string) (string, bool, error) {
	return simple.Summarize(ctx, content, relativePathLabel)
}

var _ Summarizer = (*Simple)(nil)
