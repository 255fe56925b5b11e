package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zotseek/zotseek/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "zotseek",
	Short: "Semantic search over your Zotero library",
	Long: `Zotseek builds a local semantic search index over a Zotero library.
Items are embedded once and re-embedded only when their content changes,
so repeated syncs are cheap. The index is queryable from the command
line, over HTTP, or by AI agents via MCP.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
