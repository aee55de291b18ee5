// Package config resolves gptcontext settings from defaults and YAML configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/temirov/gptcontext/internal/types"
)

// ConfigFileName is the YAML configuration file looked up in the base directory.
const ConfigFileName = ".gptcontext.yaml"

// CacheDirectoryName is the summary cache directory created under the output base.
const CacheDirectoryName = ".gptcontext-cache"

// Configuration keys recognized in the YAML file.
const (
	maxTotalTokensKey      = "max_total_tokens"
	maxFileTokensKey       = "max_file_tokens"
	maxFileSizeMBKey       = "max_file_size_mb"
	modelKey               = "model"
	summarizerKey          = "summarizer"
	includeExtensionsKey   = "include_exts"
	excludeKey             = "exclude"
	useDefaultExcludesKey  = "use_default_excludes"
	messageTemplateFileKey = "message_template_file"
)

// Default budgets and model selection applied when the configuration file is
// silent.
const (
	defaultMaxTotalTokens = 12000
	defaultMaxFileTokens  = 5000
	defaultMaxFileSizeMB  = 1
	defaultModel          = "gpt-3.5-turbo"
)

// defaultIncludeExtensions lists the file extensions considered source material.
var defaultIncludeExtensions = []string{
	".py", ".md", ".js", ".ts", ".jsx", ".tsx", ".json", ".toml", ".yaml", ".yml",
	".html", ".css", ".scss", ".sass", ".less", ".java", ".go", ".rs", ".cpp", ".c",
	".h", ".hpp", ".cs", ".swift", ".kt", ".m", ".sh", ".bash", ".zsh", ".ps1", ".pl",
	".rb", ".php", ".ini", ".cfg", ".env", ".txt", ".xml",
}

// Settings is the resolved, immutable configuration passed into component
// constructors. It carries no hidden global state; each component receives
// the value it was constructed with.
type Settings struct {
	MaxTotalTokens      int
	MaxFileTokens       int
	MaxFileSizeBytes    int64
	Model               string
	SummarizerBackend   string
	IncludeExtensions   []string
	ExcludePatterns     []string
	UseDefaultExcludes  bool
	MessageTemplateFile string
}

// LoadOptions controls configuration discovery.
type LoadOptions struct {
	// BaseDirectory is where ConfigFileName is looked up.
	BaseDirectory string
	// ExplicitFilePath overrides discovery when non-empty; a preset YAML path
	// works the same way.
	ExplicitFilePath string
}

// LoadSettings resolves Settings from built-in defaults merged with the
// configuration file, when one exists.
func LoadSettings(options LoadOptions) (Settings, error) {
	loader := viper.New()
	loader.SetConfigType("yaml")
	loader.SetDefault(maxTotalTokensKey, defaultMaxTotalTokens)
	loader.SetDefault(maxFileTokensKey, defaultMaxFileTokens)
	loader.SetDefault(maxFileSizeMBKey, defaultMaxFileSizeMB)
	loader.SetDefault(modelKey, defaultModel)
	loader.SetDefault(summarizerKey, types.SummarizerSimple)
	loader.SetDefault(includeExtensionsKey, defaultIncludeExtensions)
	loader.SetDefault(useDefaultExcludesKey, true)

	configFilePath := options.ExplicitFilePath
	if configFilePath == "" && options.BaseDirectory != "" {
		candidatePath := filepath.Join(options.BaseDirectory, ConfigFileName)
		if _, statError := os.Stat(candidatePath); statError == nil {
			configFilePath = candidatePath
		}
	}
	if configFilePath != "" {
		loader.SetConfigFile(configFilePath)
		if readError := loader.ReadInConfig(); readError != nil {
			return Settings{}, fmt.Errorf("read configuration %s: %w", configFilePath, readError)
		}
	}

	return Settings{
		MaxTotalTokens:      loader.GetInt(maxTotalTokensKey),
		MaxFileTokens:       loader.GetInt(maxFileTokensKey),
		MaxFileSizeBytes:    int64(loader.GetFloat64(maxFileSizeMBKey) * 1024 * 1024),
		Model:               loader.GetString(modelKey),
		SummarizerBackend:   loader.GetString(summarizerKey),
		IncludeExtensions:   loader.GetStringSlice(includeExtensionsKey),
		ExcludePatterns:     loader.GetStringSlice(excludeKey),
		UseDefaultExcludes:  loader.GetBool(useDefaultExcludesKey),
		MessageTemplateFile: loader.GetString(messageTemplateFileKey),
	}, nil
}
