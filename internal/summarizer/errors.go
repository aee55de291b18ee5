package summarizer

import "errors"

// Fatal summarization errors. Either one aborts an entire context build;
// everything else degrades to a per-file failure.
var (
	// ErrAPIKey reports a missing or rejected API credential. Retrying cannot help.
	ErrAPIKey = errors.New("invalid or missing OpenAI API key")
	// ErrQuotaExceeded reports an exhausted API quota. Retrying cannot help.
	ErrQuotaExceeded = errors.New("OpenAI quota exceeded")
)
