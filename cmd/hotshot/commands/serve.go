package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hotshot-tools/hotshot/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local HTTP API",
	Long: `Serve the screenshot library over HTTP on localhost, for viewer
frontends and scripts. The server never binds beyond 127.0.0.1.`,
	Example: `  # Serve on the configured port
  hotshot serve

  # Serve on a custom port
  hotshot serve --port 9090`,
	RunE: runServe,
}

var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(configMgr)
	if err != nil {
		return err
	}

	port := configMgr.Get().Server.Port
	if servePort > 0 {
		if err := configMgr.Override("server.port", fmt.Sprintf("%d", servePort)); err != nil {
			return err
		}
		port = servePort
	}

	server := api.NewServer(st, configMgr)
	fmt.Printf("Serving screenshot library on http://127.0.0.1:%d\n", port)
	return server.Start(port)
}
