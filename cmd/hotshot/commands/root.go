package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hotshot-tools/hotshot/internal/config"
	"github.com/hotshot-tools/hotshot/internal/logger"
	"github.com/hotshot-tools/hotshot/internal/store"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "hotshot",
		Short: "hotshot - Screenshot capture and library for Linux",
		Long: `hotshot captures screenshots on X11 and Wayland and keeps them in a
searchable on-disk library.

Features:
  • Fullscreen, region, and window capture
  • Direct X11 capture and xdg-desktop-portal support
  • Interactive cross-monitor region selection
  • PNG, JPEG, and WebP output
  • Tags, notes, and full-text search over your library
  • Soft delete with restore
  • REST API for viewers and scripts`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/hotshot/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty-log", false, "human-readable log output")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("pretty_log", rootCmd.PersistentFlags().Lookup("pretty-log"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig builds the config manager and initializes logging from it,
// with the --log-level flag taking precedence.
func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := configMgr.Get().LogLevel
	if v := viper.GetString("log_level"); v != "" {
		level = v
	}
	logger.Init(level, viper.GetBool("pretty_log"))

	return configMgr, nil
}

// openStore opens the screenshot library described by the config.
func openStore(configMgr *config.Manager) (*store.Store, error) {
	cfg := configMgr.Get()
	st, err := store.New(configMgr.StorageDir(), cfg.Image.FilenameTemplate, cfg.Storage.OrganizeBy)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage dir: %w", err)
	}
	return st, nil
}
