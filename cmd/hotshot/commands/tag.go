package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag <id> <tags...>",
	Short: "Add tags to a screenshot",
	Long: `Add one or more tags to a screenshot. Tags are lowercased and
deduplicated; tagging twice is harmless. The id may be a unique prefix.`,
	Example: `  hotshot tag 20240315-142233-a1b2c3d4 vacation beach
  hotshot tag 20240315 bug`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTag,
}

var untagCmd = &cobra.Command{
	Use:     "untag <id> <tags...>",
	Short:   "Remove tags from a screenshot",
	Example: `  hotshot untag 20240315-142233-a1b2c3d4 beach`,
	Args:    cobra.MinimumNArgs(2),
	RunE:    runUntag,
}

var noteCmd = &cobra.Command{
	Use:     "note <id> <text...>",
	Short:   "Attach a note to a screenshot",
	Long:    `Replace the screenshot's free-form note. An empty text clears it.`,
	Example: `  hotshot note 20240315-142233-a1b2c3d4 "repro for the login bug"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runNote,
}

func init() {
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(untagCmd)
	rootCmd.AddCommand(noteCmd)
}

func runTag(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(configMgr)
	if err != nil {
		return err
	}

	meta, err := st.Tag(args[0], args[1:]...)
	if err != nil {
		return err
	}
	fmt.Printf("%s tags: %s\n", meta.ID, strings.Join(meta.Tags, ", "))
	return nil
}

func runUntag(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(configMgr)
	if err != nil {
		return err
	}

	meta, err := st.Untag(args[0], args[1:]...)
	if err != nil {
		return err
	}
	fmt.Printf("%s tags: %s\n", meta.ID, strings.Join(meta.Tags, ", "))
	return nil
}

func runNote(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(configMgr)
	if err != nil {
		return err
	}

	meta, err := st.Note(args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Printf("%s note updated\n", meta.ID)
	return nil
}
