package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (ZOTSEEK_*). A missing file is not an
// error; defaults plus the environment apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: ZOTSEEK_ZOTERO__API_KEY -> zotero.api_key.
	// A double underscore separates nesting levels so that key names keep
	// their single underscores.
	if err := k.Load(env.Provider("ZOTSEEK_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "ZOTSEEK_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path, creating
// parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[EmbeddingProvider]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

var validLibraryTypes = map[LibraryType]bool{
	LibraryUser:  true,
	LibraryGroup: true,
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if !c.Zotero.Local && c.Zotero.LibraryID == "" {
		return fmt.Errorf("zotero.library_id is required unless zotero.local is true")
	}
	if !validLibraryTypes[c.Zotero.LibraryType] {
		return fmt.Errorf("invalid zotero.library_type %q: must be user or group", c.Zotero.LibraryType)
	}

	if !validProviders[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding.provider %q: must be one of openai, ollama", c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Provider == ProviderOllama && c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions is required for the ollama provider")
	}

	if c.Index.DataDir == "" {
		return fmt.Errorf("index.data_dir is required")
	}
	if c.Index.BatchSize < 1 {
		return fmt.Errorf("index.batch_size must be at least 1")
	}
	if c.Index.MaxTextLength < 0 {
		return fmt.Errorf("index.max_text_length must be non-negative")
	}

	if c.Update.Frequency != FrequencyManual && c.Update.Frequency != FrequencyAuto {
		return fmt.Errorf("invalid update.frequency %q: must be manual or auto", c.Update.Frequency)
	}
	if c.Update.Frequency == FrequencyAuto && c.Update.Days < 1 {
		return fmt.Errorf("update.days must be at least 1 when update.frequency is auto")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port number")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for the
// API key of the given embedding provider.
func APIKeyEnvVar(provider EmbeddingProvider) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
