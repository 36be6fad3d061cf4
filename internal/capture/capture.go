// Package capture grabs raw screen pixels behind a single Backend contract
// with two variants: direct X11 protocol reads and portal-brokered Wayland
// screenshots. The variant is chosen once at startup and never switched
// mid-session.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"

	"github.com/hotshot-tools/hotshot/internal/geometry"
)

// Error kinds classified at the backend boundary. Raw protocol errors are
// wrapped under one of these and never leak past the orchestrator.
var (
	// ErrProtocolUnavailable means no display connection could be
	// established. Fatal for the request.
	ErrProtocolUnavailable = errors.New("display protocol unavailable")

	// ErrPermissionDenied means the user (or the portal on their behalf)
	// refused the capture. Surfaced as a cancelled capture, never partial
	// state.
	ErrPermissionDenied = errors.New("capture permission denied")

	// ErrTimeout means a bounded wait on the display server or portal
	// broker elapsed.
	ErrTimeout = errors.New("capture timed out")

	// ErrCancelled means the user aborted region selection.
	ErrCancelled = errors.New("capture cancelled")

	// ErrUnsupported marks an operation the active backend cannot perform,
	// e.g. monitor enumeration through the screenshot portal.
	ErrUnsupported = errors.New("operation not supported by capture backend")
)

// DisplayServer identifies which display-server model the session runs.
type DisplayServer string

const (
	DisplayServerX11     DisplayServer = "x11"
	DisplayServerWayland DisplayServer = "wayland"
)

// Backend is the capture contract shared by both variants. Implementations
// own their protocol connection; Close releases it.
type Backend interface {
	// Monitors enumerates the session's outputs in a stable order.
	Monitors() ([]geometry.Monitor, error)

	// CaptureRect grabs the pixels of a virtual-screen rectangle,
	// normalized to RGBA.
	CaptureRect(ctx context.Context, r geometry.Rect) (*image.RGBA, error)

	// CaptureWindow grabs the focused window and reports its bounds.
	CaptureWindow(ctx context.Context) (*image.RGBA, geometry.Rect, error)

	// DisplayServer reports which variant this backend is.
	DisplayServer() DisplayServer

	Close() error
}

// Detect inspects session-type environment signals to pick the display
// server. WAYLAND_DISPLAY wins over XDG_SESSION_TYPE, which wins over a
// bare DISPLAY.
func Detect() (DisplayServer, error) {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return DisplayServerWayland, nil
	}
	switch os.Getenv("XDG_SESSION_TYPE") {
	case "wayland":
		return DisplayServerWayland, nil
	case "x11":
		return DisplayServerX11, nil
	}
	if os.Getenv("DISPLAY") != "" {
		return DisplayServerX11, nil
	}
	return "", fmt.Errorf("%w: no display server detected", ErrProtocolUnavailable)
}

// New builds the backend for the given display server. The choice is
// committed for the whole session.
func New(server DisplayServer) (Backend, error) {
	switch server {
	case DisplayServerX11:
		return NewX11Backend()
	case DisplayServerWayland:
		return NewPortalBackend()
	default:
		return nil, fmt.Errorf("%w: unknown display server %q", ErrProtocolUnavailable, server)
	}
}

// NormalizeRGBA converts any decoded image to the RGBA layout the codec and
// overlay code expect.
func NormalizeRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
	return out
}
