package config

// EmbeddingProvider identifies an embedding backend.
type EmbeddingProvider string

const (
	ProviderOpenAI EmbeddingProvider = "openai"
	ProviderOllama EmbeddingProvider = "ollama"
)

// LibraryType distinguishes personal and group Zotero libraries.
type LibraryType string

const (
	LibraryUser  LibraryType = "user"
	LibraryGroup LibraryType = "group"
)

// UpdateFrequency controls automatic index refresh.
type UpdateFrequency string

const (
	FrequencyManual UpdateFrequency = "manual"
	FrequencyAuto   UpdateFrequency = "auto"
)

// Config is the top-level zotseek configuration, corresponding to config.yml.
type Config struct {
	Zotero    ZoteroConfig    `yaml:"zotero" koanf:"zotero"`
	Embedding EmbeddingConfig `yaml:"embedding" koanf:"embedding"`
	Index     IndexConfig     `yaml:"index" koanf:"index"`
	Update    UpdateConfig    `yaml:"update" koanf:"update"`
	Server    ServerConfig    `yaml:"server" koanf:"server"`
}

// ZoteroConfig selects the library zotseek operates against.
type ZoteroConfig struct {
	LibraryID   string      `yaml:"library_id" koanf:"library_id"`
	LibraryType LibraryType `yaml:"library_type" koanf:"library_type"`
	APIKey      string      `yaml:"api_key" koanf:"api_key"`
	Local       bool        `yaml:"local" koanf:"local"`
}

// EmbeddingConfig selects the embedding provider and model.
type EmbeddingConfig struct {
	Provider EmbeddingProvider `yaml:"provider" koanf:"provider"`
	Model    string            `yaml:"model" koanf:"model"`
	BaseURL  string            `yaml:"base_url" koanf:"base_url"`
	// Dimensions is required for providers whose models zotseek cannot
	// infer dimensionality for (ollama).
	Dimensions int `yaml:"dimensions" koanf:"dimensions"`
}

// IndexConfig controls the sync engine and the persisted stores.
type IndexConfig struct {
	DataDir       string `yaml:"data_dir" koanf:"data_dir"`
	BatchSize     int    `yaml:"batch_size" koanf:"batch_size"`
	MaxTextLength int    `yaml:"max_text_length" koanf:"max_text_length"`
	// Fulltext filename globs decide which attachments are worth extracting.
	FulltextInclude []string `yaml:"fulltext_include" koanf:"fulltext_include"`
	FulltextExclude []string `yaml:"fulltext_exclude" koanf:"fulltext_exclude"`
}

// UpdateConfig controls the automatic re-sync cadence.
type UpdateConfig struct {
	Frequency UpdateFrequency `yaml:"frequency" koanf:"frequency"`
	Days      int             `yaml:"days" koanf:"days"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
