package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Move a screenshot to the trash",
	Long: `Soft-delete a screenshot. The image moves into the library's .trash
directory and can be brought back with restore.`,
	Example: `  hotshot delete 20240315-142233-a1b2c3d4`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

var restoreCmd = &cobra.Command{
	Use:     "restore <id>",
	Short:   "Restore a screenshot from the trash",
	Example: `  hotshot restore 20240315-142233-a1b2c3d4`,
	Args:    cobra.ExactArgs(1),
	RunE:    runRestore,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(restoreCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(configMgr)
	if err != nil {
		return err
	}

	meta, err := st.Delete(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Moved %s to trash (restore with: hotshot restore %s)\n", meta.ID, meta.ID)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(configMgr)
	if err != nil {
		return err
	}

	meta, err := st.Restore(args[0])
	if err != nil {
		return err
	}

	abs, err := st.ImagePath(&meta)
	if err != nil {
		return err
	}
	fmt.Printf("Restored %s to %s\n", meta.ID, abs)
	return nil
}
