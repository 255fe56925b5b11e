package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zotseek/zotseek/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the library semantically",
	Long: `Embeds the query and returns the most similar library items.
Filters narrow the results by indexed metadata.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("limit", 10, "maximum number of results")
	searchCmd.Flags().String("item-type", "", "filter by Zotero item type")
	searchCmd.Flags().String("tag", "", "only items carrying this tag")
	searchCmd.Flags().String("creators", "", "filter by formatted creator string")
	searchCmd.Flags().String("date", "", "filter by the item date field")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.store.Count() == 0 {
		fmt.Println("The index is empty. Run `zotseek sync` first.")
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	filters := map[string]string{}
	for flag, key := range map[string]string{
		"item-type": "itemType",
		"tag":       "tag",
		"creators":  "creators",
		"date":      "date",
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			filters[key] = v
		}
	}

	resp, err := a.searcher.Search(context.Background(), search.Request{
		Query:   strings.Join(args, " "),
		Limit:   limit,
		Filters: filters,
	})
	if err != nil {
		return err
	}

	fmt.Print(search.FormatMarkdown(resp))
	return nil
}
