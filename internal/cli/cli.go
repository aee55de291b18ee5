// Package cli provides the command line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/temirov/gptcontext/internal/summarizer"
	"github.com/temirov/gptcontext/internal/utils"
)

const (
	configFlagName             = "config"
	baseFlagName               = "base"
	scanDirFlagName            = "scan-dir"
	outputDirFlagName          = "output-dir"
	excludeFlagName            = "exclude"
	includeFlagName            = "include"
	maxTokensFlagName          = "max-tokens"
	fileTokenThresholdFlagName = "file-token-threshold"
	summarizeFlagName          = "summarize"
	summarizerFlagName         = "summarizer"
	generateMessageFlagName    = "generate-message"
	outputFlagName             = "output"
	verboseFlagName            = "verbose"
	dryRunFlagName             = "dry-run"
	copyFlagName               = "copy"

	rootUse              = "gptcontext"
	rootShortDescription = "generate an LLM context document from a codebase"
	rootLongDescription  = `gptcontext scans a project directory, selects relevant source files under
size, extension, and exclusion rules, optionally summarizes oversized files,
and concatenates everything into a single bounded-size context document.`
	rootUsageExample = `  # Build a context for the current project
  gptcontext

  # Scan a subdirectory with extra exclusions and summarization enabled
  gptcontext --scan-dir src -x '*.md' 'tmp/**' --summarize --summarizer chatgpt`

	configFlagDescription             = "path to a .gptcontext.yaml configuration or preset file"
	baseFlagDescription               = "base directory to scan"
	scanDirFlagDescription            = "subdirectory of the base directory to scan"
	outputDirFlagDescription          = "root directory for gptcontext output"
	excludeFlagDescription            = "additional glob/literal patterns to exclude (e.g. '*.md', 'tmp/**')"
	includeFlagDescription            = "additional file extensions to include (e.g. .md, .txt)"
	maxTokensFlagDescription          = "maximum total tokens in the context"
	fileTokenThresholdFlagDescription = "per-file token threshold beyond which files are summarized"
	summarizeFlagDescription          = "summarize files that exceed the per-file token threshold"
	summarizerFlagDescription         = "summarizer backend (simple, chatgpt)"
	generateMessageFlagDescription    = "write a message file from the configured template"
	outputFlagDescription             = "override the context output file name"
	verboseFlagDescription            = "enable debug logging"
	dryRunFlagDescription             = "report the build without writing any files"
	copyFlagDescription               = "copy the built context to the system clipboard"
)

// Process exit codes. Partial failure means the context was built but some
// files failed to process.
const (
	ExitSuccess        = 0
	ExitFatal          = 1
	ExitPartialFailure = 2
)

// errPartialFailure signals that the run completed with per-file failures.
var errPartialFailure = errors.New("completed with some failures")

// runFlags carries the parsed command line flag values into the runner.
type runFlags struct {
	configFile         string
	baseDirectory      string
	scanDirectory      string
	outputDirectory    string
	excludePatterns    []string
	includeExtensions  []string
	maxTokens          int
	fileTokenThreshold int
	summarize          bool
	summarizerBackend  string
	generateMessage    bool
	outputFileName     string
	verbose            bool
	dryRun             bool
	copyToClipboard    bool
}

// NewRootCommand constructs the gptcontext root command.
func NewRootCommand() *cobra.Command {
	flags := &runFlags{}
	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Example:       rootUsageExample,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			logger, loggerError := utils.NewApplicationLogger(flags.verbose)
			if loggerError != nil {
				return fmt.Errorf("initialize logger: %w", loggerError)
			}
			defer func() { _ = logger.Sync() }()
			return runBuild(command.Context(), flags, logger)
		},
	}

	rootCommand.Flags().StringVarP(&flags.configFile, configFlagName, "c", "", configFlagDescription)
	rootCommand.Flags().StringVarP(&flags.baseDirectory, baseFlagName, "b", ".", baseFlagDescription)
	rootCommand.Flags().StringVarP(&flags.scanDirectory, scanDirFlagName, "s", "", scanDirFlagDescription)
	rootCommand.Flags().StringVarP(&flags.outputDirectory, outputDirFlagName, "o", "", outputDirFlagDescription)
	rootCommand.Flags().StringSliceVarP(&flags.excludePatterns, excludeFlagName, "x", nil, excludeFlagDescription)
	rootCommand.Flags().StringSliceVarP(&flags.includeExtensions, includeFlagName, "i", nil, includeFlagDescription)
	rootCommand.Flags().IntVar(&flags.maxTokens, maxTokensFlagName, 0, maxTokensFlagDescription)
	rootCommand.Flags().IntVar(&flags.fileTokenThreshold, fileTokenThresholdFlagName, 0, fileTokenThresholdFlagDescription)
	rootCommand.Flags().BoolVar(&flags.summarize, summarizeFlagName, false, summarizeFlagDescription)
	rootCommand.Flags().StringVar(&flags.summarizerBackend, summarizerFlagName, "", summarizerFlagDescription)
	rootCommand.Flags().BoolVar(&flags.generateMessage, generateMessageFlagName, false, generateMessageFlagDescription)
	rootCommand.Flags().StringVar(&flags.outputFileName, outputFlagName, "", outputFlagDescription)
	rootCommand.Flags().BoolVar(&flags.verbose, verboseFlagName, false, verboseFlagDescription)
	rootCommand.Flags().BoolVar(&flags.dryRun, dryRunFlagName, false, dryRunFlagDescription)
	rootCommand.Flags().BoolVar(&flags.copyToClipboard, copyFlagName, false, copyFlagDescription)

	return rootCommand
}

// Execute runs the root command and maps its outcome onto a process exit code.
// Credential and quota failures are reported with distinct remediation
// guidance before exiting.
func Execute() int {
	rootCommand := NewRootCommand()
	executionError := rootCommand.Execute()
	if executionError == nil {
		return ExitSuccess
	}
	if errors.Is(executionError, errPartialFailure) {
		return ExitPartialFailure
	}
	fmt.Fprintf(os.Stderr, "FATAL: %v\n", executionError)
	if errors.Is(executionError, summarizer.ErrQuotaExceeded) {
		fmt.Fprintln(os.Stderr, "Please check your OpenAI billing and quota.")
	}
	if errors.Is(executionError, summarizer.ErrAPIKey) {
		fmt.Fprintln(os.Stderr, "Set OPENAI_API_KEY to a valid OpenAI API key.")
	}
	return ExitFatal
}
