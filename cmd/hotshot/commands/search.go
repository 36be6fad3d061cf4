package commands

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search screenshots by tag, note, or id",
	Long: `Search the library with a case-insensitive substring match over tags,
notes, and ids.`,
	Example: `  hotshot search vacation
  hotshot search "login bug" --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var searchFormat string

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchFormat, "format", "f", "table", "output format (table or json)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(configMgr)
	if err != nil {
		return err
	}

	records, err := st.Search(strings.Join(args, " "))
	if err != nil {
		return err
	}

	if searchFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	}
	return printRecordsTable(records)
}
