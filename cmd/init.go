package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zotseek/zotseek/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize zotseek configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the Zotero library connection and embedding provider, and writes the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
