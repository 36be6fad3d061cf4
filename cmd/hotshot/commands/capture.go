package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/hotshot-tools/hotshot/internal/capture"
	"github.com/hotshot-tools/hotshot/internal/geometry"
	"github.com/hotshot-tools/hotshot/internal/logger"
	"github.com/hotshot-tools/hotshot/internal/orchestrator"
	"github.com/hotshot-tools/hotshot/internal/store"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Take a screenshot",
	Long: `Capture the screen, a region, or the focused window and save it to the
screenshot library.

Without flags the whole virtual screen is captured. --region with no value
starts the interactive selector (X11 only); with a geometry it captures
that exact rectangle.`,
	Example: `  # Capture all monitors
  hotshot capture

  # Capture one monitor by name or index
  hotshot capture --display HDMI-1
  hotshot capture --display 0

  # Interactive region selection
  hotshot capture --region

  # Explicit region, X,Y,W,H or WxH+X+Y
  hotshot capture --region-geometry 800x600+100+100

  # Focused window
  hotshot capture --window

  # One-off format and quality
  hotshot capture --format webp --quality 80`,
	RunE: runCapture,
}

var (
	captureDisplay string
	captureRegion  bool
	captureGeom    string
	captureWindow  bool
	captureFormat  string
	captureQuality int
)

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().StringVarP(&captureDisplay, "display", "d", "", "capture only this monitor (name or index)")
	captureCmd.Flags().BoolVarP(&captureRegion, "region", "r", false, "select a region interactively")
	captureCmd.Flags().StringVarP(&captureGeom, "region-geometry", "g", "", "capture an explicit region (X,Y,W,H or WxH+X+Y)")
	captureCmd.Flags().BoolVarP(&captureWindow, "window", "w", false, "capture the focused window")
	captureCmd.Flags().StringVarP(&captureFormat, "format", "f", "", "output format for this capture (png, jpeg, webp)")
	captureCmd.Flags().IntVarP(&captureQuality, "quality", "q", 0, "quality for this capture (1-100, jpeg/webp)")
}

func runCapture(cmd *cobra.Command, args []string) error {
	if captureWindow && (captureRegion || captureGeom != "") {
		return fmt.Errorf("--window cannot be combined with region flags")
	}

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	if captureFormat != "" {
		if err := configMgr.Override("image.format", captureFormat); err != nil {
			return err
		}
	}
	if captureQuality != 0 {
		if err := configMgr.Override("image.quality", fmt.Sprintf("%d", captureQuality)); err != nil {
			return err
		}
	}

	st, err := openStore(configMgr)
	if err != nil {
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

	orch := orchestrator.New(configMgr, backend, st)
	ctx := context.Background()

	var (
		meta    store.Metadata
		effects orchestrator.SideEffects
	)
	switch {
	case captureWindow:
		meta, effects, err = orch.Window(ctx)
	case captureGeom != "":
		rect, perr := geometry.ParseRect(captureGeom)
		if perr != nil {
			return perr
		}
		meta, effects, err = orch.Region(ctx, captureDisplay, &rect)
	case captureRegion:
		meta, effects, err = orch.Region(ctx, captureDisplay, nil)
	default:
		meta, effects, err = orch.Fullscreen(ctx, captureDisplay)
	}
	if err != nil {
		return err
	}

	abs, err := st.ImagePath(&meta)
	if err != nil {
		return err
	}

	fmt.Printf("Saved %s (%dx%d, %s)\n", meta.ID, meta.Width, meta.Height, meta.Format)
	fmt.Println(abs)

	runSideEffects(effects, abs, backend.DisplayServer())
	return nil
}

// runSideEffects performs the follow-ups the orchestrator signalled, using
// the usual desktop helpers. Failures are logged, never fatal: the
// screenshot is already safe on disk.
func runSideEffects(effects orchestrator.SideEffects, path string, server capture.DisplayServer) {
	log := logger.WithComponent("cli")

	if effects.CopyToClipboard {
		var cmd *exec.Cmd
		if server == capture.DisplayServerWayland {
			cmd = exec.Command("wl-copy", "--type", "image/png")
		} else {
			cmd = exec.Command("xclip", "-selection", "clipboard", "-t", "image/png")
		}
		f, err := os.Open(path)
		if err == nil {
			cmd.Stdin = f
			err = cmd.Run()
			f.Close()
		}
		if err != nil {
			log.Warn().Err(err).Msg("Failed to copy screenshot to clipboard")
		}
	}

	if effects.Notify {
		if err := exec.Command("notify-send", "Screenshot saved", path).Run(); err != nil {
			log.Warn().Err(err).Msg("Failed to send notification")
		}
	}
}
