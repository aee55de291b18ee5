// Package types defines every cross‑package data structure used by the gptcontext CLI.
package types

// Summarizer backend identifiers accepted by configuration and flags.
const (
	SummarizerSimple  = "simple"
	SummarizerChatGPT = "chatgpt"
)

// Output file names skipped during scanning so the tool never ingests its own output.
const (
	ContextOutputFileName = ".gptcontext.txt"
	MessageOutputFileName = ".gptcontext_message.txt"
)

// CandidateFile describes one file selected by the scanner. Immutable once produced.
type CandidateFile struct {
	AbsolutePath     string
	SizeBytes        int64
	RepoRelativePath string
	ScanRelativePath string
}

// BuildResult captures the assembled context document and its accounting counters.
type BuildResult struct {
	Document     string
	TokensUsed   int
	FullCount    int
	SummaryCount int
	FailedCount  int
}
