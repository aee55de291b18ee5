// Package tokenizer estimates token counts for text content.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

// Truncator trims text to a token budget. The tiktoken-backed Counter
// implements it; test fakes need not.
type Truncator interface {
	TruncateString(input string, maxTokens int) (string, error)
}

// Config captures tokenizer selection parameters.
type Config struct {
	Model string
}

const (
	defaultModel        = "gpt-4o"
	defaultEncodingName = "cl100k_base"
)

// NewCounter returns a Counter implementation for the requested model along
// with the resolved model or encoding name.
func NewCounter(cfg Config) (Counter, string, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	lowerModel := strings.ToLower(model)

	encoding, encodingError := tiktoken.EncodingForModel(lowerModel)
	if encodingError == nil && encoding != nil {
		return openAICounter{encoding: encoding, name: lowerModel}, model, nil
	}
	fallback, fallbackError := tiktoken.GetEncoding(defaultEncodingName)
	if fallbackError != nil {
		return nil, "", fmt.Errorf("initialize fallback tokenizer: %w", fallbackError)
	}
	return openAICounter{encoding: fallback, name: defaultEncodingName}, defaultEncodingName, nil
}

type openAICounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

func (counter openAICounter) Name() string {
	return counter.name
}

func (counter openAICounter) CountString(input string) (int, error) {
	if counter.encoding == nil {
		return 0, errors.New("nil tiktoken encoder")
	}
	tokenIDs := counter.encoding.Encode(input, nil, nil)
	return len(tokenIDs), nil
}

func (counter openAICounter) TruncateString(input string, maxTokens int) (string, error) {
	if counter.encoding == nil {
		return "", errors.New("nil tiktoken encoder")
	}
	if maxTokens <= 0 {
		return "", nil
	}
	tokenIDs := counter.encoding.Encode(input, nil, nil)
	if len(tokenIDs) <= maxTokens {
		return input, nil
	}
	return counter.encoding.Decode(tokenIDs[:maxTokens]), nil
}
