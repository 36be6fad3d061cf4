package capture

import (
	"context"
	"fmt"
	"image"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"

	"github.com/hotshot-tools/hotshot/internal/geometry"
	"github.com/hotshot-tools/hotshot/internal/logger"
)

// X11Backend is the direct-framebuffer variant: it reads geometry and
// pixels synchronously through the X protocol. No consent dialog, no
// asynchronous round trips; a protocol failure is fatal, not retried.
type X11Backend struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo
}

// NewX11Backend connects to the X server and initializes RANDR.
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to X server: %v", ErrProtocolUnavailable, err)
	}

	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: RANDR extension unavailable: %v", ErrProtocolUnavailable, err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	b := &X11Backend{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
	}

	logger.WithComponent("x11-backend").Debug().
		Uint32("root", uint32(b.root)).
		Uint16("width", screen.WidthInPixels).
		Uint16("height", screen.HeightInPixels).
		Msg("Connected to X server")

	return b, nil
}

// Close closes the X connection.
func (b *X11Backend) Close() error {
	b.conn.Close()
	return nil
}

// DisplayServer reports the variant.
func (b *X11Backend) DisplayServer() DisplayServer {
	return DisplayServerX11
}

// Conn exposes the X connection so the selector overlay can share it.
func (b *X11Backend) Conn() *xgb.Conn {
	return b.conn
}

// Monitors enumerates outputs via RANDR, in the server's order.
func (b *X11Backend) Monitors() ([]geometry.Monitor, error) {
	reply, err := randr.GetMonitors(b.conn, b.root, true).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: RANDR GetMonitors: %v", ErrProtocolUnavailable, err)
	}

	monitors := make([]geometry.Monitor, 0, len(reply.Monitors))
	for _, mi := range reply.Monitors {
		name, err := b.atomName(mi.Name)
		if err != nil {
			name = fmt.Sprintf("monitor-%d", len(monitors))
		}
		monitors = append(monitors, geometry.Monitor{
			Name: name,
			Rect: geometry.Rect{
				X:      int(mi.X),
				Y:      int(mi.Y),
				Width:  int(mi.Width),
				Height: int(mi.Height),
			},
		})
	}

	if len(monitors) == 0 {
		// Headless RANDR still has a root window; fall back to its size
		monitors = append(monitors, geometry.Monitor{
			Name: "screen",
			Rect: geometry.Rect{
				Width:  int(b.screen.WidthInPixels),
				Height: int(b.screen.HeightInPixels),
			},
		})
	}

	return monitors, nil
}

// CaptureRect grabs a rectangle of the root window.
func (b *X11Backend) CaptureRect(ctx context.Context, r geometry.Rect) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	reply, err := xproto.GetImage(
		b.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(b.root),
		int16(r.X), int16(r.Y),
		uint16(r.Width), uint16(r.Height),
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: GetImage: %v", ErrProtocolUnavailable, err)
	}

	return bgraToRGBA(reply.Data, r.Width, r.Height), nil
}

// CaptureWindow grabs the focused window, decorations included, by reading
// _NET_ACTIVE_WINDOW and translating its geometry to root coordinates.
func (b *X11Backend) CaptureWindow(ctx context.Context) (*image.RGBA, geometry.Rect, error) {
	win, err := b.activeWindow()
	if err != nil {
		return nil, geometry.Rect{}, err
	}

	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return nil, geometry.Rect{}, fmt.Errorf("%w: GetGeometry: %v", ErrProtocolUnavailable, err)
	}

	translated, err := xproto.TranslateCoordinates(b.conn, win, b.root, 0, 0).Reply()
	if err != nil {
		return nil, geometry.Rect{}, fmt.Errorf("%w: TranslateCoordinates: %v", ErrProtocolUnavailable, err)
	}

	rect := geometry.Rect{
		X:      int(translated.DstX),
		Y:      int(translated.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}

	logger.WithComponent("x11-backend").Debug().
		Uint32("window", uint32(win)).
		Int("x", rect.X).
		Int("y", rect.Y).
		Int("width", rect.Width).
		Int("height", rect.Height).
		Msg("Capturing active window")

	// Grab from the root so overlapping decorations and shadows come out
	// the way the user sees them
	img, err := b.CaptureRect(ctx, rect)
	if err != nil {
		return nil, geometry.Rect{}, err
	}
	return img, rect, nil
}

func (b *X11Backend) activeWindow() (xproto.Window, error) {
	atom, err := b.internAtom("_NET_ACTIVE_WINDOW")
	if err != nil {
		return 0, err
	}

	prop, err := xproto.GetProperty(b.conn, false, b.root, atom, xproto.AtomWindow, 0, 1).Reply()
	if err != nil {
		return 0, fmt.Errorf("%w: GetProperty _NET_ACTIVE_WINDOW: %v", ErrProtocolUnavailable, err)
	}
	if len(prop.Value) < 4 {
		return 0, fmt.Errorf("%w: no active window", ErrUnsupported)
	}

	win := xproto.Window(xgb.Get32(prop.Value))
	if win == 0 {
		return 0, fmt.Errorf("%w: no active window", ErrUnsupported)
	}
	return win, nil
}

func (b *X11Backend) internAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("%w: InternAtom %s: %v", ErrProtocolUnavailable, name, err)
	}
	return reply.Atom, nil
}

func (b *X11Backend) atomName(atom xproto.Atom) (string, error) {
	reply, err := xproto.GetAtomName(b.conn, atom).Reply()
	if err != nil {
		return "", fmt.Errorf("GetAtomName: %w", err)
	}
	return reply.Name, nil
}

// bgraToRGBA converts X11 ZPixmap data (BGRA on little-endian depth 24/32
// visuals) to an RGBA image with an opaque alpha channel.
func bgraToRGBA(data []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	n := width * height * 4
	if n > len(data) {
		n = len(data) - len(data)%4
	}
	for i := 0; i < n; i += 4 {
		img.Pix[i] = data[i+2]
		img.Pix[i+1] = data[i+1]
		img.Pix[i+2] = data[i]
		img.Pix[i+3] = 0xff
	}
	return img
}
