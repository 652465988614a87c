package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	appName    = "vibecheck"
	configName = "config"
	configType = "toml"
	envPrefix  = "VIBECHECK"
)

// Providers lists the accepted backend.provider values.
var Providers = []string{"ollama", "openai", "lmstudio", "llamacpp"}

// Formats lists the accepted review.format values.
var Formats = []string{"text", "json", "markdown", "sarif"}

// Config represents the vibecheck configuration.
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend" toml:"backend"`
	Inference InferenceConfig `mapstructure:"inference" toml:"inference"`
	Tools     ToolsConfig     `mapstructure:"tools" toml:"tools"`
	Review    ReviewConfig    `mapstructure:"review" toml:"review"`
	Git       GitConfig       `mapstructure:"git" toml:"git"`
	Server    ServerConfig    `mapstructure:"server" toml:"server"`
	Vector    VectorConfig    `mapstructure:"vector" toml:"vector"`
	Cache     CacheConfig     `mapstructure:"cache" toml:"cache"`
	Privacy   PrivacyConfig   `mapstructure:"privacy" toml:"privacy"`
}

// BackendConfig selects the chat model server.
type BackendConfig struct {
	Provider       string `mapstructure:"provider" toml:"provider"`
	Model          string `mapstructure:"model" toml:"model"`
	URL            string `mapstructure:"url" toml:"url"`
	APIKey         string `mapstructure:"apiKey" toml:"apiKey"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds" toml:"timeoutSeconds"`
}

// InferenceConfig controls generation and the number of concurrent model
// contexts. Empty prompts fall back to the built-in ones.
type InferenceConfig struct {
	PoolSize         int            `mapstructure:"poolSize" toml:"poolSize"`
	ContextWindow    int            `mapstructure:"contextWindow" toml:"contextWindow"`
	MaxTokens        int            `mapstructure:"maxTokens" toml:"maxTokens"`
	StopSequences    []string       `mapstructure:"stopSequences" toml:"stopSequences"`
	Sampling         SamplingConfig `mapstructure:"sampling" toml:"sampling"`
	SystemPrompt     string         `mapstructure:"systemPrompt" toml:"systemPrompt"`
	CodeStylePrompt  string         `mapstructure:"codeStylePrompt" toml:"codeStylePrompt"`
	CompletionPrompt string         `mapstructure:"completionPrompt" toml:"completionPrompt"`
	MaxToolCalls     int            `mapstructure:"maxToolCalls" toml:"maxToolCalls"`
}

// SamplingConfig holds token sampling parameters.
type SamplingConfig struct {
	Temperature     float64 `mapstructure:"temperature" toml:"temperature"`
	TopP            float64 `mapstructure:"topP" toml:"topP"`
	MinP            float64 `mapstructure:"minP" toml:"minP"`
	TopK            int     `mapstructure:"topK" toml:"topK"`
	RepeatPenalty   float64 `mapstructure:"repeatPenalty" toml:"repeatPenalty"`
	PenalizeNewline bool    `mapstructure:"penalizeNewline" toml:"penalizeNewline"`
}

// ToolsConfig controls model tool use.
type ToolsConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Prompt  string `mapstructure:"prompt" toml:"prompt"`
}

// ReviewConfig controls what is reviewed and how results are reported.
type ReviewConfig struct {
	OnlyNewCode bool   `mapstructure:"onlyNewCode" toml:"onlyNewCode"`
	Format      string `mapstructure:"format" toml:"format"`
	MaxComments int    `mapstructure:"maxComments" toml:"maxComments"`
	FailOn      bool   `mapstructure:"failOn" toml:"failOn"`
	RulesFile   string `mapstructure:"rulesFile" toml:"rulesFile"`
}

// GitConfig controls diff acquisition.
type GitConfig struct {
	SourceBranch string   `mapstructure:"sourceBranch" toml:"sourceBranch"`
	TargetBranch string   `mapstructure:"targetBranch" toml:"targetBranch"`
	SourceOffset int      `mapstructure:"sourceOffset" toml:"sourceOffset"`
	TargetOffset int      `mapstructure:"targetOffset" toml:"targetOffset"`
	ContextLines int      `mapstructure:"contextLines" toml:"contextLines"`
	Include      []string `mapstructure:"include" toml:"include"`
	Exclude      []string `mapstructure:"exclude" toml:"exclude"`
	MaxDiffBytes int      `mapstructure:"maxDiffBytes" toml:"maxDiffBytes"`
}

// ServerConfig controls the HTTP review endpoint.
type ServerConfig struct {
	Host string `mapstructure:"host" toml:"host"`
	Port int    `mapstructure:"port" toml:"port"`
}

// VectorConfig controls the semantic search index.
type VectorConfig struct {
	Enabled           bool     `mapstructure:"enabled" toml:"enabled"`
	EmbedModel        string   `mapstructure:"embedModel" toml:"embedModel"`
	TopK              int      `mapstructure:"topK" toml:"topK"`
	IncludedFileTypes []string `mapstructure:"includedFileTypes" toml:"includedFileTypes"`
	ExcludedFolders   []string `mapstructure:"excludedFolders" toml:"excludedFolders"`
	MaxFileBytes      int      `mapstructure:"maxFileBytes" toml:"maxFileBytes"`
	Workers           int      `mapstructure:"workers" toml:"workers"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled" toml:"enabled"`
	Dir        string `mapstructure:"dir" toml:"dir"`
	TTLSeconds int    `mapstructure:"ttlSeconds" toml:"ttlSeconds"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `mapstructure:"redactSecrets" toml:"redactSecrets"`
	RedactPaths   []string `mapstructure:"redactPaths" toml:"redactPaths"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			Provider:       "ollama",
			Model:          "qwen2.5-coder",
			URL:            "http://localhost:11434",
			TimeoutSeconds: 300,
		},
		Inference: InferenceConfig{
			PoolSize:      1,
			ContextWindow: 2048,
			MaxTokens:     512,
			StopSequences: []string{"User:", "\nUser:", "</s>", "<|eot_id|>", "]User"},
			Sampling: SamplingConfig{
				Temperature:     0.3,
				TopP:            0.9,
				MinP:            0.05,
				TopK:            40,
				RepeatPenalty:   1.1,
				PenalizeNewline: true,
			},
			MaxToolCalls: 8,
		},
		Tools: ToolsConfig{Enabled: true},
		Review: ReviewConfig{
			OnlyNewCode: true,
			Format:      "text",
		},
		Git: GitConfig{
			SourceBranch: "HEAD",
			TargetBranch: "main",
			ContextLines: 3,
			Include:      []string{"**/*"},
			Exclude:      []string{"vendor/**", "**/*.gen.go", "**/dist/**"},
			MaxDiffBytes: 500000,
		},
		Server: ServerConfig{Host: "localhost", Port: 5000},
		Vector: VectorConfig{
			Enabled:           true,
			EmbedModel:        "nomic-embed-text",
			TopK:              3,
			IncludedFileTypes: []string{".go", ".py", ".js", ".ts", ".java", ".cs", ".rs", ".c", ".cpp", ".h", ".rb", ".md"},
			ExcludedFolders:   []string{"bin", "obj", ".git", "vendor", "node_modules"},
			MaxFileBytes:      65536,
			Workers:           4,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
	}
}

// ConfigDir returns the platform-appropriate config directory for vibecheck.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName), nil
		}
		return filepath.Join(home, "AppData", "Roaming", appName), nil
	default:
		return filepath.Join(home, ".config", appName), nil
	}
}

// ConfigPath returns the full path to the config file. VIBECHECK_CONFIG
// overrides the platform location.
func ConfigPath() (string, error) {
	if p := os.Getenv(envPrefix + "_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configName+"."+configType), nil
}

// Load builds the effective config from the default config file location.
func Load(overrides map[string]string) (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(path, overrides)
}

// LoadFrom builds the effective config by merging:
// defaults <- file at path <- VIBECHECK_* env <- overrides.
// Override keys are dotted ("backend.model"); empty values are ignored.
// A missing file is not an error.
func LoadFrom(path string, overrides map[string]string) (Config, error) {
	v, err := readFile(path)
	if err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, value := range overrides {
		if value != "" {
			v.Set(key, value)
		}
	}
	return decode(v)
}

// ReadFile returns defaults merged with the file at path only, ignoring the
// environment. It is what edits to the file should start from.
func ReadFile(path string) (Config, error) {
	v, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	return decode(v)
}

func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	if err := setDefaults(v, Default()); err != nil {
		return nil, err
	}
	v.SetConfigFile(path)
	v.SetConfigType(configType)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every leaf of cfg as a viper default so that
// environment variables can reach keys absent from the file.
func setDefaults(v *viper.Viper, cfg Config) error {
	tree, err := toTree(cfg)
	if err != nil {
		return err
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := val.(map[string]any); ok {
				walk(key, child)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}

// Save writes the config to the default config file location.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes cfg as TOML. The file is replaced atomically.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch {
	case !slices.Contains(Providers, c.Backend.Provider):
		return fmt.Errorf("backend.provider must be one of %s, got %q", strings.Join(Providers, ", "), c.Backend.Provider)
	case strings.TrimSpace(c.Backend.Model) == "":
		return errors.New("backend.model is required")
	case c.Inference.PoolSize < 1:
		return fmt.Errorf("inference.poolSize must be at least 1, got %d", c.Inference.PoolSize)
	case c.Inference.MaxTokens < 1:
		return fmt.Errorf("inference.maxTokens must be at least 1, got %d", c.Inference.MaxTokens)
	case c.Inference.ContextWindow < 1:
		return fmt.Errorf("inference.contextWindow must be at least 1, got %d", c.Inference.ContextWindow)
	case !slices.Contains(Formats, c.Review.Format):
		return fmt.Errorf("review.format must be one of %s, got %q", strings.Join(Formats, ", "), c.Review.Format)
	case c.Server.Port < 1 || c.Server.Port > 65535:
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	case c.Vector.TopK < 1:
		return fmt.Errorf("vector.topK must be at least 1, got %d", c.Vector.TopK)
	}
	return nil
}
