package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/hotshot-tools/hotshot/internal/geometry"
	"github.com/hotshot-tools/hotshot/internal/logger"
)

// Portal D-Bus constants
const (
	portalService   = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	screenshotIface = "org.freedesktop.portal.Screenshot"
	requestIface    = "org.freedesktop.portal.Request"
)

// Portal response codes
const (
	responseSuccess   = 0
	responseCancelled = 1
)

// responseTimeout bounds the wait for the portal's Response signal. The
// portal shows its own consent UI, so the user may take a while; an
// abandoned dialog must still resolve to ErrTimeout, not a hang.
const responseTimeout = 120 * time.Second

// PortalBackend is the portal-mediated variant: captures go through
// xdg-desktop-portal, which owns consent and answers asynchronously via a
// Response signal. A denied or abandoned dialog is a cancelled capture,
// not a protocol error.
type PortalBackend struct {
	conn    *dbus.Conn
	timeout time.Duration
}

// NewPortalBackend connects to the session bus.
func NewPortalBackend() (*PortalBackend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to session bus: %v", ErrProtocolUnavailable, err)
	}
	return &PortalBackend{conn: conn, timeout: responseTimeout}, nil
}

// Close closes the bus connection.
func (b *PortalBackend) Close() error {
	return b.conn.Close()
}

// DisplayServer reports the variant.
func (b *PortalBackend) DisplayServer() DisplayServer {
	return DisplayServerWayland
}

// Monitors is unsupported: the screenshot portal exposes no output list.
// Display filters require the X11 variant.
func (b *PortalBackend) Monitors() ([]geometry.Monitor, error) {
	return nil, fmt.Errorf("%w: monitor enumeration requires X11", ErrUnsupported)
}

// CaptureRect takes a full-screen portal shot and crops it; the portal has
// no rectangle primitive. Non-interactive, so a timeout is retried once.
func (b *PortalBackend) CaptureRect(ctx context.Context, r geometry.Rect) (*image.RGBA, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	full, err := b.screenshotWithRetry(ctx, false)
	if err != nil {
		return nil, err
	}

	crop := r.Intersect(geometry.Rect{Width: full.Bounds().Dx(), Height: full.Bounds().Dy()})
	if crop.Empty() {
		return nil, fmt.Errorf("%w: rect %+v lies outside the captured screen", geometry.ErrInvalidGeometry, r)
	}

	sub := full.SubImage(image.Rect(crop.X, crop.Y, crop.Right(), crop.Bottom()))
	return NormalizeRGBA(sub), nil
}

// CaptureWindow requests an interactive portal shot; the portal's own UI
// picks the target, so the reported bounds are simply the image bounds.
// Interactive waits are never retried on timeout.
func (b *PortalBackend) CaptureWindow(ctx context.Context) (*image.RGBA, geometry.Rect, error) {
	img, err := b.screenshot(ctx, true)
	if err != nil {
		return nil, geometry.Rect{}, err
	}
	rect := geometry.Rect{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	return img, rect, nil
}

// CaptureFullscreen grabs the whole virtual screen without cropping.
func (b *PortalBackend) CaptureFullscreen(ctx context.Context) (*image.RGBA, error) {
	return b.screenshotWithRetry(ctx, false)
}

// screenshotWithRetry retries a non-interactive query once after a timeout,
// then gives up. User cancellation is never retried.
func (b *PortalBackend) screenshotWithRetry(ctx context.Context, interactive bool) (*image.RGBA, error) {
	img, err := b.screenshot(ctx, interactive)
	if err == nil {
		return img, nil
	}
	if ctx.Err() == nil && errors.Is(err, ErrTimeout) {
		logger.WithComponent("portal-backend").Warn().Msg("Portal response timed out, retrying once")
		return b.screenshot(ctx, interactive)
	}
	return nil, err
}

// screenshot performs one Screenshot portal call and waits for its
// Response signal within the bounded window.
func (b *PortalBackend) screenshot(ctx context.Context, interactive bool) (*image.RGBA, error) {
	log := logger.WithComponent("portal-backend")

	// Subscribe before calling so the response cannot be missed
	signals := make(chan *dbus.Signal, 10)
	matchRule := fmt.Sprintf("type='signal',interface='%s',member='Response'", requestIface)
	if err := b.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchRule).Err; err != nil {
		return nil, fmt.Errorf("%w: AddMatch: %v", ErrProtocolUnavailable, err)
	}
	defer b.conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, matchRule)

	b.conn.Signal(signals)
	defer b.conn.RemoveSignal(signals)

	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(fmt.Sprintf("hotshot%d", os.Getpid())),
		"interactive":  dbus.MakeVariant(interactive),
	}

	obj := b.conn.Object(portalService, portalPath)
	var requestPath dbus.ObjectPath
	call := obj.Call(screenshotIface+".Screenshot", 0, "", options)
	if call.Err != nil {
		return nil, fmt.Errorf("%w: Screenshot call failed: %v", ErrProtocolUnavailable, call.Err)
	}
	if err := call.Store(&requestPath); err != nil {
		return nil, fmt.Errorf("%w: Screenshot reply: %v", ErrProtocolUnavailable, err)
	}

	log.Debug().
		Str("request", string(requestPath)).
		Bool("interactive", interactive).
		Msg("Waiting for portal response")

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		case <-timer.C:
			return nil, fmt.Errorf("%w: no portal response within %s", ErrTimeout, b.timeout)
		case sig := <-signals:
			if sig.Path != requestPath || sig.Name != requestIface+".Response" {
				continue
			}
			if len(sig.Body) < 2 {
				return nil, fmt.Errorf("%w: malformed portal response", ErrProtocolUnavailable)
			}

			code, _ := sig.Body[0].(uint32)
			switch code {
			case responseSuccess:
			case responseCancelled:
				return nil, fmt.Errorf("%w: portal dialog dismissed", ErrPermissionDenied)
			default:
				return nil, fmt.Errorf("%w: portal response code %d", ErrProtocolUnavailable, code)
			}

			results, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				return nil, fmt.Errorf("%w: malformed portal results", ErrProtocolUnavailable)
			}
			uriVar, ok := results["uri"]
			if !ok {
				return nil, fmt.Errorf("%w: portal response carried no uri", ErrProtocolUnavailable)
			}
			uri, _ := uriVar.Value().(string)
			return loadPortalFile(uri)
		}
	}
}

// loadPortalFile reads the PNG the portal wrote, then removes the temp file.
func loadPortalFile(uri string) (*image.RGBA, error) {
	path := strings.TrimPrefix(uri, "file://")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open portal file: %v", ErrProtocolUnavailable, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode portal file: %v", ErrProtocolUnavailable, err)
	}

	// The portal leaves its temp file behind otherwise
	if err := os.Remove(path); err != nil {
		logger.WithComponent("portal-backend").Warn().
			Err(err).
			Str("path", path).
			Msg("Failed to remove portal temp file")
	}

	return NormalizeRGBA(img), nil
}
