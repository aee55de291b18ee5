package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/gptcontext/internal/builder"
	"github.com/temirov/gptcontext/internal/config"
	"github.com/temirov/gptcontext/internal/exclusion"
	"github.com/temirov/gptcontext/internal/gitignore"
	"github.com/temirov/gptcontext/internal/scanner"
	"github.com/temirov/gptcontext/internal/services/clipboard"
	"github.com/temirov/gptcontext/internal/summarizer"
	"github.com/temirov/gptcontext/internal/tokenizer"
	"github.com/temirov/gptcontext/internal/types"
	"github.com/temirov/gptcontext/internal/utils"
)

// outputDirectoryName is the per-user root for generated context files.
const outputDirectoryName = ".gptcontext"

// contextTemplatePlaceholder is the variable expanded inside message templates.
const contextTemplatePlaceholder = "context"

// runBuild orchestrates one scan-build-write cycle.
func runBuild(ctx context.Context, flags *runFlags, logger *zap.Logger) error {
	baseDirectory, baseError := filepath.Abs(flags.baseDirectory)
	if baseError != nil {
		return fmt.Errorf("resolve base directory %s: %w", flags.baseDirectory, baseError)
	}

	scanRoot := baseDirectory
	if flags.scanDirectory != "" {
		scanRoot = filepath.Join(baseDirectory, flags.scanDirectory)
	}
	scanRootInfo, scanRootError := os.Stat(scanRoot)
	if scanRootError != nil || !scanRootInfo.IsDir() {
		return fmt.Errorf("scan directory %s does not exist or is not a directory", scanRoot)
	}

	settings, settingsError := config.LoadSettings(config.LoadOptions{
		BaseDirectory:    baseDirectory,
		ExplicitFilePath: flags.configFile,
	})
	if settingsError != nil {
		return settingsError
	}
	settings = applyFlagOverrides(settings, flags)

	outputBase, outputBaseError := resolveOutputBase(flags.outputDirectory, scanRoot)
	if outputBaseError != nil {
		return outputBaseError
	}

	tokenCounter, resolvedModel, counterError := tokenizer.NewCounter(tokenizer.Config{Model: settings.Model})
	if counterError != nil {
		return counterError
	}
	logger.Debug(fmt.Sprintf("Counting tokens with %s", resolvedModel))

	gitignoreSpec, gitignoreError := gitignore.LoadSpec(baseDirectory)
	if gitignoreError != nil {
		logger.Warn(fmt.Sprintf("Ignoring unreadable .gitignore: %v", gitignoreError))
	}

	excludeMatcher := exclusion.NewMatcher(
		utils.DeduplicatePatterns(settings.ExcludePatterns),
		settings.UseDefaultExcludes,
	)

	skipFileNames := []string{types.ContextOutputFileName, types.MessageOutputFileName}
	if flags.outputFileName != "" {
		skipFileNames = append(skipFileNames, flags.outputFileName)
	}
	fileScanner := scanner.NewScanner(scanner.Options{
		RepositoryRoot:    baseDirectory,
		ScanRoot:          scanRoot,
		IncludeExtensions: settings.IncludeExtensions,
		ExcludeMatcher:    excludeMatcher,
		SkipFileNames:     skipFileNames,
		GitignoreSpec:     gitignoreSpec,
		MaxFileSizeBytes:  settings.MaxFileSizeBytes,
		Logger:            logger,
	})
	candidates, listError := fileScanner.ListFiles()
	if listError != nil {
		return listError
	}

	cacheDirectory := filepath.Join(outputBase, config.CacheDirectoryName)
	backendName := settings.SummarizerBackend
	if !flags.summarize {
		// Without --summarize no backend is ever consulted; the simple
		// backend avoids demanding credentials for nothing.
		backendName = types.SummarizerSimple
	} else {
		logger.Info(fmt.Sprintf("Using cache directory %q", cacheDirectory))
	}
	summarizerBackend, summarizerError := summarizer.NewSummarizer(summarizer.Options{
		Backend:        backendName,
		Model:          settings.Model,
		CacheDirectory: cacheDirectory,
		Counter:        tokenCounter,
		Logger:         logger,
	})
	if summarizerError != nil {
		return summarizerError
	}

	contextBuilder := builder.NewBuilder(builder.Options{
		Summarizer:     summarizerBackend,
		Counter:        tokenCounter,
		MaxFileTokens:  settings.MaxFileTokens,
		MaxTotalTokens: settings.MaxTotalTokens,
		SummarizeLarge: flags.summarize,
		Logger:         logger,
	})
	result, buildError := contextBuilder.Build(ctx, candidates)
	if buildError != nil {
		return buildError
	}

	logger.Info("--- Context Build Summary ---")
	logger.Info(fmt.Sprintf("Files included in full:     %d", result.FullCount))
	logger.Info(fmt.Sprintf("Files included as summary:  %d", result.SummaryCount))
	if result.FailedCount > 0 {
		logger.Warn(fmt.Sprintf("Files failed to process:    %d", result.FailedCount))
	}
	logger.Info(fmt.Sprintf("Total tokens used:          %d / %d", result.TokensUsed, settings.MaxTotalTokens))

	if flags.dryRun {
		logger.Info("Dry-run mode: no files written.")
		return partialFailureOrNil(result.FailedCount)
	}

	contextFileName := flags.outputFileName
	if contextFileName == "" {
		contextFileName = types.ContextOutputFileName
	}
	contextPath := filepath.Join(outputBase, contextFileName)
	if writeError := os.WriteFile(contextPath, []byte(result.Document), 0o644); writeError != nil {
		return fmt.Errorf("write context file %s: %w", contextPath, writeError)
	}
	logger.Info(fmt.Sprintf("Wrote context file to %q", contextPath))

	if flags.generateMessage {
		writeMessageTemplate(result.Document, filepath.Join(outputBase, types.MessageOutputFileName), settings.MessageTemplateFile, logger)
	}

	if flags.copyToClipboard {
		if copyError := clipboard.NewService().Copy(result.Document); copyError != nil {
			logger.Warn(fmt.Sprintf("Failed to copy context to clipboard: %v", copyError))
		} else {
			logger.Info("Copied context to clipboard")
		}
	}

	return partialFailureOrNil(result.FailedCount)
}

// applyFlagOverrides layers command line values over the loaded settings.
func applyFlagOverrides(settings config.Settings, flags *runFlags) config.Settings {
	if flags.maxTokens > 0 {
		settings.MaxTotalTokens = flags.maxTokens
	}
	if flags.fileTokenThreshold > 0 {
		settings.MaxFileTokens = flags.fileTokenThreshold
	}
	if flags.summarizerBackend != "" {
		settings.SummarizerBackend = flags.summarizerBackend
	}
	settings.IncludeExtensions = utils.DeduplicatePatterns(
		append(settings.IncludeExtensions, flags.includeExtensions...),
	)
	settings.ExcludePatterns = append(settings.ExcludePatterns, flags.excludePatterns...)
	return settings
}

// resolveOutputBase determines where generated files land: an explicit output
// directory, or ~/.gptcontext/<scan-root-name> by default.
func resolveOutputBase(outputDirectory string, scanRoot string) (string, error) {
	var outputBase string
	if outputDirectory != "" {
		absoluteOutput, absoluteError := filepath.Abs(outputDirectory)
		if absoluteError != nil {
			return "", fmt.Errorf("resolve output directory %s: %w", outputDirectory, absoluteError)
		}
		outputBase = absoluteOutput
	} else {
		homeDirectory, homeError := os.UserHomeDir()
		if homeError != nil {
			return "", fmt.Errorf("determine home directory: %w", homeError)
		}
		outputBase = filepath.Join(homeDirectory, outputDirectoryName, filepath.Base(scanRoot))
	}
	if mkdirError := os.MkdirAll(outputBase, 0o755); mkdirError != nil {
		return "", fmt.Errorf("create output directory %s: %w", outputBase, mkdirError)
	}
	return outputBase, nil
}

// writeMessageTemplate expands $context inside the template file and writes
// the result. Template problems are warnings, never run failures.
func writeMessageTemplate(contextDocument string, messagePath string, templateFile string, logger *zap.Logger) {
	if templateFile == "" {
		logger.Warn("No message template configured.")
		return
	}
	templateBytes, readError := os.ReadFile(templateFile)
	if readError != nil {
		logger.Warn(fmt.Sprintf("No message template found: %v", readError))
		return
	}
	message := os.Expand(string(templateBytes), func(variableName string) string {
		if variableName == contextTemplatePlaceholder {
			return contextDocument
		}
		return ""
	})
	if writeError := os.WriteFile(messagePath, []byte(message), 0o644); writeError != nil {
		logger.Error(fmt.Sprintf("Failed to write message file %s: %v", messagePath, writeError))
		return
	}
	logger.Info(fmt.Sprintf("Wrote message file to %q", messagePath))
}

func partialFailureOrNil(failedCount int) error {
	if failedCount > 0 {
		return fmt.Errorf("%d files: %w", failedCount, errPartialFailure)
	}
	return nil
}
