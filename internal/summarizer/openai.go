package summarizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/temirov/gptcontext/internal/tokenizer"
)

const (
	// promptTokenBudget bounds the portion of a file sent to the completion API.
	promptTokenBudget = 3000
	// maxAttempts bounds rate-limit retries: waits of 1s, 2s, 4s, 8s, 16s.
	maxAttempts = 5

	apiKeyEnvironmentVariable = "OPENAI_API_KEY"
	completionTemperature     = 0.2
)

// chatCompleter is the slice of the OpenAI client used by ChatGPT.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatGPT summarizes file content through the OpenAI chat completions API,
// caching results by content digest.
type ChatGPT struct {
	client    chatCompleter
	model     string
	cache     *Cache
	truncator tokenizer.Truncator
	logger    *zap.Logger
	sleep     func(ctx context.Context, duration time.Duration) error
}

// NewChatGPT constructs the OpenAI-backed summarizer. The API key is read
// from OPENAI_API_KEY; a missing key is a fatal ErrAPIKey.
func NewChatGPT(options Options) (*ChatGPT, error) {
	apiKey := strings.TrimSpace(os.Getenv(apiKeyEnvironmentVariable))
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is required: %w", apiKeyEnvironmentVariable, ErrAPIKey)
	}
	cache, cacheError := NewCache(options.CacheDirectory)
	if cacheError != nil {
		return nil, cacheError
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	truncator, _ := options.Counter.(tokenizer.Truncator)
	return &ChatGPT{
		client:    openai.NewClient(apiKey),
		model:     options.Model,
		cache:     cache,
		truncator: truncator,
		logger:    logger,
		sleep:     sleepWithContext,
	}, nil
}

// Summarize sends the truncated content to the completion API, retrying rate
// limits with exponential backoff. Authentication and quota failures are
// fatal; any other failure returns a sentinel text with a false success flag.
func (chatGPT *ChatGPT) Summarize(ctx context.Context, content string, relativePathLabel string) (string, bool, error) {
	prompt := fmt.Sprintf(
		"Summarize the following source file for LLM-assisted understanding:\n"+
			"- File: %s\n"+
			"- Focus on key components, classes, functions, and logic\n"+
			"- Format clearly and concisely\n\n",
		relativePathLabel,
	)
	truncated := content
	if chatGPT.truncator != nil {
		truncatedContent, truncateError := chatGPT.truncator.TruncateString(content, promptTokenBudget)
		if truncateError == nil {
			truncated = truncatedContent
		}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, completionError := chatGPT.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       chatGPT.model,
			Temperature: completionTemperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt + truncated},
			},
		})
		if completionError == nil {
			if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
				chatGPT.logger.Warn(fmt.Sprintf("Empty response from OpenAI for %s", relativePathLabel))
				return "[Summary unavailable: empty response]", false, nil
			}
			return strings.TrimSpace(response.Choices[0].Message.Content), true, nil
		}

		switch classifyAPIError(completionError) {
		case errorClassRateLimit:
			waitDuration := time.Duration(1<<attempt) * time.Second
			chatGPT.logger.Warn(fmt.Sprintf("Rate limited for %s, retrying in %s", relativePathLabel, waitDuration))
			if sleepError := chatGPT.sleep(ctx, waitDuration); sleepError != nil {
				return "", false, sleepError
			}
		case errorClassAPIKey:
			return "", false, fmt.Errorf("authentication rejected: %v: %w", completionError, ErrAPIKey)
		case errorClassQuota:
			return "", false, fmt.Errorf("quota exhausted: %v: %w", completionError, ErrQuotaExceeded)
		default:
			chatGPT.logger.Error(fmt.Sprintf("Error summarizing %s: %v", relativePathLabel, completionError))
			return "[Summary unavailable: request failed]", false, nil
		}
	}
	return "[Summary unavailable: max retries exceeded]", false, nil
}

// CachedSummary consults the content-addressed cache before summarizing. A
// successful entry is returned without recomputation; a failed entry is
// returned without retrying within the same run.
func (chatGPT *ChatGPT) CachedSummary(ctx context.Context, content string, relativePathLabel string) (string, bool, error) {
	digest := ContentDigest(content)
	if summary, success, found := chatGPT.cache.Lookup(digest); found {
		return summary, success, nil
	}

	summary, success, summarizeError := chatGPT.Summarize(ctx, content, relativePathLabel)
	if summarizeError != nil {
		return "", false, summarizeError
	}
	if storeError := chatGPT.cache.Store(digest, summary, success); storeError != nil {
		chatGPT.logger.Warn(fmt.Sprintf("Failed to cache summary for %s: %v", relativePathLabel, storeError))
	}
	return summary, success, nil
}

var _ Summarizer = (*ChatGPT)(nil)

type errorClass int

const (
	errorClassOther errorClass = iota
	errorClassRateLimit
	errorClassAPIKey
	errorClassQuota
)

// classifyAPIError is the single seam mapping external API failures onto the
// retry/fatal/skip taxonomy. Structured fields of *openai.APIError are
// preferred; substring matching on the error text is a best-effort fallback
// for untyped errors.
func classifyAPIError(completionError error) errorClass {
	var apiError *openai.APIError
	if errors.As(completionError, &apiError) {
		if apiError.Type == "insufficient_quota" || apiError.Code == "insufficient_quota" {
			return errorClassQuota
		}
		switch apiError.HTTPStatusCode {
		case 401, 403:
			return errorClassAPIKey
		case 429:
			return errorClassRateLimit
		}
		return errorClassOther
	}
	var requestError *openai.RequestError
	if errors.As(completionError, &requestError) {
		switch requestError.HTTPStatusCode {
		case 401, 403:
			return errorClassAPIKey
		case 429:
			return errorClassRateLimit
		}
		return errorClassOther
	}

	message := strings.ToLower(completionError.Error())
	switch {
	case strings.Contains(message, "insufficient_quota") || strings.Contains(message, "quota"):
		return errorClassQuota
	case strings.Contains(message, "rate_limit") || strings.Contains(message, "rate limit"):
		return errorClassRateLimit
	case strings.Contains(message, "api key") || strings.Contains(message, "authentication"):
		return errorClassAPIKey
	default:
		return errorClassOther
	}
}

func sleepWithContext(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
