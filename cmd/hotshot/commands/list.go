package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hotshot-tools/hotshot/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List screenshots in the library",
	Long:  `List saved screenshots, newest first. Trashed screenshots are not shown.`,
	Example: `  # Most recent screenshots in a table
  hotshot list

  # Only the last five
  hotshot list --limit 5

  # Machine-readable output
  hotshot list --format json`,
	RunE: runList,
}

var (
	listLimit  int
	listFormat string
	listTrash  bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum number of entries (0 for all)")
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
	listCmd.Flags().BoolVar(&listTrash, "trash", false, "list trashed screenshots instead")
}

func runList(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(configMgr)
	if err != nil {
		return err
	}

	var records []store.Metadata
	if listTrash {
		records, err = st.ListTrash()
	} else {
		records, err = st.List(listLimit)
	}
	if err != nil {
		return err
	}

	switch listFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	case "table":
		return printRecordsTable(records)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func printRecordsTable(records []store.Metadata) error {
	if len(records) == 0 {
		fmt.Println("No screenshots found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tCAPTURED\tMODE\tSIZE\tFORMAT\tTAGS")
	fmt.Fprintln(w, "--\t--------\t----\t----\t------\t----")

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%s\t%s\n",
			r.ID,
			r.CapturedAt.Format("2006-01-02 15:04:05"),
			r.CaptureMode,
			r.Width, r.Height,
			r.Format,
			strings.Join(r.Tags, ","),
		)
	}

	return nil
}
