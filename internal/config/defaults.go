package config

import (
	"os"
	"path/filepath"
)

// DefaultFulltextInclude are attachment filename globs extracted by default.
var DefaultFulltextInclude = []string{
	"*.pdf",
	"*.html",
	"*.htm",
	"*.txt",
	"*.md",
}

// DefaultFulltextExclude are attachment filename globs never extracted.
var DefaultFulltextExclude = []string{
	"*.zip",
	"*.epub",
	"*.png",
	"*.jpg",
	"*.jpeg",
	"*.gif",
	"*.mp3",
	"*.mp4",
}

// DefaultDataDir returns the default storage location for the vector index
// and fingerprint database.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zotseek"
	}
	return filepath.Join(home, ".config", "zotseek", "data")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yml"
	}
	return filepath.Join(home, ".config", "zotseek", "config.yml")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Zotero: ZoteroConfig{
			LibraryType: LibraryUser,
			Local:       false,
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		Index: IndexConfig{
			DataDir:         DefaultDataDir(),
			BatchSize:       50,
			MaxTextLength:   10000,
			FulltextInclude: DefaultFulltextInclude,
			FulltextExclude: DefaultFulltextExclude,
		},
		Update: UpdateConfig{
			Frequency: FrequencyManual,
			Days:      7,
		},
		Server: ServerConfig{
			Port: 8642,
		},
	}
}
