package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hotshot-tools/hotshot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change settings",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show one setting or all of them",
	Example: `  hotshot config get
  hotshot config get image.format`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Validate and persist a setting. Invalid values are rejected before
anything is written.`,
	Example: `  hotshot config set image.format webp
  hotshot config set image.quality 80
  hotshot config set behavior.copy_to_clipboard true`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		configMgr, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Println(configMgr.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		value, err := configMgr.GetKey(args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()
	for _, key := range config.Keys() {
		value, err := configMgr.GetKey(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", key, value)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	if err := configMgr.Set(args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", args[0], args[1])
	return nil
}
