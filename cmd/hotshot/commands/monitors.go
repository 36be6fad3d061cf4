package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hotshot-tools/hotshot/internal/capture"
)

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "List connected monitors",
	Long: `List the session's monitors with their geometry. Requires X11; the
screenshot portal on Wayland exposes no monitor list.`,
	RunE: runMonitors,
}

func init() {
	rootCmd.AddCommand(monitorsCmd)
}

func runMonitors(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	server, err := capture.Detect()
	if err != nil {
		return err
	}
	backend, err := capture.New(server)
	if err != nil {
		return err
	}
	defer backend.Close()

	monitors, err := backend.Monitors()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "INDEX\tNAME\tSIZE\tPOSITION")
	fmt.Fprintln(w, "-----\t----\t----\t--------")
	for i, m := range monitors {
		fmt.Fprintf(w, "%d\t%s\t%dx%d\t(%d, %d)\n", i, m.Name, m.Width, m.Height, m.X, m.Y)
	}
	return nil
}
