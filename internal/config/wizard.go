package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// knownDimensions maps embedding models whose output size zotseek knows
// ahead of time, so the wizard does not have to ask.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
}

// RunWizard runs an interactive configuration wizard and saves the
// resulting Config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to zotseek! Let's configure your library.")
	fmt.Println()

	cfg := DefaultConfig()

	localPrompt := promptui.Select{
		Label: "How should zotseek reach Zotero",
		Items: []string{"local (Zotero desktop app running on this machine)", "web API"},
	}
	localIdx, _, err := localPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("connection selection: %w", err)
	}
	cfg.Zotero.Local = localIdx == 0

	if !cfg.Zotero.Local {
		idPrompt := promptui.Prompt{
			Label: "Zotero library ID",
			Validate: func(s string) error {
				if s == "" {
					return fmt.Errorf("library ID is required")
				}
				return nil
			},
		}
		libraryID, err := idPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("library ID: %w", err)
		}
		cfg.Zotero.LibraryID = libraryID

		typePrompt := promptui.Select{
			Label: "Library type",
			Items: []string{"user", "group"},
		}
		_, libraryType, err := typePrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("library type: %w", err)
		}
		cfg.Zotero.LibraryType = LibraryType(libraryType)

		keyPrompt := promptui.Prompt{
			Label: "Zotero API key (leave empty to use ZOTERO_API_KEY)",
			Mask:  '*',
		}
		apiKey, err := keyPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("API key: %w", err)
		}
		cfg.Zotero.APIKey = apiKey
	}

	providerPrompt := promptui.Select{
		Label: "Embedding provider",
		Items: []string{"openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Embedding.Provider = EmbeddingProvider(providerStr)

	defaultModel := "text-embedding-3-small"
	if cfg.Embedding.Provider == ProviderOllama {
		defaultModel = "nomic-embed-text"
	}
	modelPrompt := promptui.Prompt{
		Label:   "Embedding model",
		Default: defaultModel,
	}
	model, err := modelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("model selection: %w", err)
	}
	cfg.Embedding.Model = model

	if dims, ok := knownDimensions[model]; ok {
		cfg.Embedding.Dimensions = dims
	} else if cfg.Embedding.Provider == ProviderOllama {
		dimsPrompt := promptui.Prompt{
			Label: "Embedding dimensions",
			Validate: func(s string) error {
				n, err := strconv.Atoi(s)
				if err != nil || n < 1 {
					return fmt.Errorf("must be a positive integer")
				}
				return nil
			},
		}
		dimsStr, err := dimsPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("dimensions: %w", err)
		}
		cfg.Embedding.Dimensions, _ = strconv.Atoi(dimsStr)
	}

	updatePrompt := promptui.Select{
		Label: "Automatic index updates",
		Items: []string{"manual (run `zotseek sync` yourself)", "auto (refresh on a schedule)"},
	}
	updateIdx, _, err := updatePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("update selection: %w", err)
	}
	if updateIdx == 1 {
		cfg.Update.Frequency = FrequencyAuto

		daysPrompt := promptui.Prompt{
			Label:   "Update every N days",
			Default: "7",
			Validate: func(s string) error {
				n, err := strconv.Atoi(s)
				if err != nil || n < 1 {
					return fmt.Errorf("must be a positive integer")
				}
				return nil
			},
		}
		daysStr, err := daysPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("update interval: %w", err)
		}
		cfg.Update.Days, _ = strconv.Atoi(daysStr)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, err
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	fmt.Println("Run `zotseek sync` to build the search index.")

	return cfg, nil
}
