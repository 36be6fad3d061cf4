package selector

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/hotshot-tools/hotshot/internal/geometry"
	"github.com/hotshot-tools/hotshot/internal/logger"
)

// ErrSelectionCancelled is returned when the user aborts the overlay.
var ErrSelectionCancelled = errors.New("region selection cancelled")

// escapeKeycode is the standard keycode for Escape on X11 keymaps.
const escapeKeycode = 9

// borderWidth is the selection border thickness in pixels.
const borderWidth = 2

// putImageChunk caps the pixel bytes per PutImage request to stay under the
// core protocol request-length limit.
const putImageChunk = 200_000

// GrabFunc captures the pixels of a virtual-screen rectangle; the overlay
// uses it to freeze each targeted monitor before dimming.
type GrabFunc func(geometry.Rect) (*image.RGBA, error)

// surface is one overlay window covering one targeted monitor.
type surface struct {
	monitor geometry.Monitor
	window  xproto.Window
	gc      xproto.Gcontext
	frozen  *image.RGBA // the monitor as it looked when armed
	dimmed  *image.RGBA // frozen with 50% black over it
}

// Overlay drives a Machine with live X11 input. One overlay window is
// created per targeted monitor; monitors outside the display filter get no
// window at all, so their input reaches the desktop untouched.
type Overlay struct {
	conn       *xgb.Conn
	machine    *Machine
	surfaces   map[xproto.Window]*surface
	cursor     xproto.Cursor
	cursorFont xproto.Font
	grabbed    bool
	focused    bool
}

// Run arms the machine, shows the overlays, and blocks on the X event
// stream until the selection is confirmed or cancelled. All overlay
// resources are torn down on every exit path.
func Run(conn *xgb.Conn, grab GrabFunc, machine *Machine) (geometry.Rect, error) {
	o := &Overlay{
		conn:     conn,
		machine:  machine,
		surfaces: make(map[xproto.Window]*surface),
	}

	if err := machine.Arm(); err != nil {
		return geometry.Rect{}, err
	}

	defer o.release()

	if err := o.createSurfaces(grab); err != nil {
		return geometry.Rect{}, err
	}
	if err := o.grabInput(); err != nil {
		return geometry.Rect{}, err
	}

	for _, s := range o.surfaces {
		o.draw(s, geometry.Rect{})
	}

	return o.eventLoop()
}

// createSurfaces freezes and covers each targeted monitor.
func (o *Overlay) createSurfaces(grab GrabFunc) error {
	log := logger.WithComponent("selector-overlay")

	for _, mon := range o.machine.Targets() {
		frozen, err := grab(mon.Rect)
		if err != nil {
			return fmt.Errorf("freeze monitor %s: %w", mon.Name, err)
		}

		win, err := xproto.NewWindowId(o.conn)
		if err != nil {
			return fmt.Errorf("allocate window id: %w", err)
		}

		screen := xproto.Setup(o.conn).DefaultScreen(o.conn)
		mask := uint32(xproto.CwBackPixel | xproto.CwOverrideRedirect | xproto.CwEventMask)
		values := []uint32{
			0x000000,
			1, // override-redirect: bypass the window manager
			xproto.EventMaskExposure |
				xproto.EventMaskButtonPress |
				xproto.EventMaskButtonRelease |
				xproto.EventMaskPointerMotion |
				xproto.EventMaskKeyPress,
		}

		err = xproto.CreateWindowChecked(
			o.conn,
			screen.RootDepth,
			win,
			screen.Root,
			int16(mon.X), int16(mon.Y),
			uint16(mon.Width), uint16(mon.Height),
			0,
			xproto.WindowClassInputOutput,
			screen.RootVisual,
			mask,
			values,
		).Check()
		if err != nil {
			return fmt.Errorf("create overlay window for %s: %w", mon.Name, err)
		}

		gc, err := xproto.NewGcontextId(o.conn)
		if err != nil {
			return fmt.Errorf("allocate gc id: %w", err)
		}
		if err := xproto.CreateGCChecked(o.conn, gc, xproto.Drawable(win), 0, nil).Check(); err != nil {
			return fmt.Errorf("create gc for %s: %w", mon.Name, err)
		}

		if err := xproto.MapWindowChecked(o.conn, win).Check(); err != nil {
			return fmt.Errorf("map overlay window for %s: %w", mon.Name, err)
		}

		o.surfaces[win] = &surface{
			monitor: mon,
			window:  win,
			gc:      gc,
			frozen:  frozen,
			dimmed:  dim(frozen),
		}

		log.Debug().
			Str("monitor", mon.Name).
			Uint32("window", uint32(win)).
			Msg("Overlay surface created")
	}

	o.conn.Sync()
	return nil
}

// grabInput routes keyboard input to the overlay so Escape works. Pointer
// input needs no explicit grab: each surface owns its monitor's events
// through its window masks, and the server's implicit press-to-release
// grab keeps drag coordinates local to the surface where the drag began.
// A display filter leaves uncovered monitors fully interactive, so the
// keyboard is only grabbed outright when every monitor is covered.
func (o *Overlay) grabInput() error {
	if err := o.createCrosshair(); err != nil {
		return err
	}

	var first *surface
	for _, s := range o.surfaces {
		first = s
		break
	}

	if len(o.surfaces) == len(o.machine.all) {
		reply, err := xproto.GrabKeyboard(
			o.conn,
			false,
			first.window,
			xproto.TimeCurrentTime,
			xproto.GrabModeAsync, xproto.GrabModeAsync,
		).Reply()
		if err == nil && reply.Status == xproto.GrabStatusSuccess {
			o.grabbed = true
			return nil
		}
		logger.WithComponent("selector-overlay").Warn().
			Err(err).
			Msg("Keyboard grab failed, falling back to input focus")
	}

	if err := xproto.SetInputFocusChecked(
		o.conn,
		xproto.InputFocusPointerRoot,
		first.window,
		xproto.TimeCurrentTime,
	).Check(); err != nil {
		logger.WithComponent("selector-overlay").Warn().
			Err(err).
			Msg("Failed to focus overlay window")
	} else {
		o.focused = true
	}
	return nil
}

// createCrosshair builds the classic crosshair cursor from the cursor font.
func (o *Overlay) createCrosshair() error {
	font, err := xproto.NewFontId(o.conn)
	if err != nil {
		return fmt.Errorf("allocate font id: %w", err)
	}
	if err := xproto.OpenFontChecked(o.conn, font, uint16(len("cursor")), "cursor").Check(); err != nil {
		return fmt.Errorf("open cursor font: %w", err)
	}
	o.cursorFont = font

	cursor, err := xproto.NewCursorId(o.conn)
	if err != nil {
		return fmt.Errorf("allocate cursor id: %w", err)
	}
	// Glyph 34 is the crosshair, 35 its mask
	if err := xproto.CreateGlyphCursorChecked(
		o.conn, cursor, font, font, 34, 35,
		0xffff, 0xffff, 0xffff,
		0, 0, 0,
	).Check(); err != nil {
		return fmt.Errorf("create crosshair cursor: %w", err)
	}
	o.cursor = cursor

	for _, s := range o.surfaces {
		xproto.ChangeWindowAttributes(o.conn, s.window, xproto.CwCursor, []uint32{uint32(cursor)})
	}
	return nil
}

// eventLoop processes one event at a time; redraws are synchronous
// reactions to input, never timer-driven.
func (o *Overlay) eventLoop() (geometry.Rect, error) {
	for {
		ev, xerr := o.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			return geometry.Rect{}, errors.New("X connection closed during selection")
		}
		if xerr != nil {
			logger.WithComponent("selector-overlay").Debug().
				Str("error", xerr.Error()).
				Msg("X error during selection")
			continue
		}

		done, rect, err := o.handleEvent(ev)
		if done {
			return rect, err
		}
	}
}

// handleEvent dispatches a single X event into the machine. It reports
// done=true when the selection reached a terminal state.
func (o *Overlay) handleEvent(ev xgb.Event) (bool, geometry.Rect, error) {
	switch e := ev.(type) {
	case xproto.ExposeEvent:
		if s, ok := o.surfaces[e.Window]; ok {
			o.draw(s, o.currentSelection(s))
		}

	case xproto.ButtonPressEvent:
		if e.Detail != xproto.ButtonIndex1 {
			return false, geometry.Rect{}, nil
		}
		if s, ok := o.surfaces[e.Event]; ok {
			if err := o.machine.PointerDown(s.monitor.Name, int(e.EventX), int(e.EventY)); err != nil {
				return true, geometry.Rect{}, err
			}
		}

	case xproto.MotionNotifyEvent:
		x, y := int(e.EventX), int(e.EventY)

		// Coalesce queued motion so redraw keeps up with the pointer
		for {
			queued, xerr := o.conn.PollForEvent()
			if queued == nil || xerr != nil {
				break
			}
			if me, ok := queued.(xproto.MotionNotifyEvent); ok {
				x, y = int(me.EventX), int(me.EventY)
				continue
			}
			// A non-motion event slipped in; apply the latest motion
			// first, then handle it
			if sel, ok := o.machine.PointerMove(x, y); ok {
				o.redrawAnchor(sel)
			}
			return o.handleEvent(queued)
		}

		if sel, ok := o.machine.PointerMove(x, y); ok {
			o.redrawAnchor(sel)
		}

	case xproto.ButtonReleaseEvent:
		if e.Detail != xproto.ButtonIndex1 {
			return false, geometry.Rect{}, nil
		}
		switch o.machine.PointerUp(int(e.EventX), int(e.EventY)) {
		case StateConfirmed:
			rect, err := o.machine.Result()
			return true, rect, err
		case StateCancelled:
			return true, geometry.Rect{}, fmt.Errorf("%w: released with zero area", ErrSelectionCancelled)
		}

	case xproto.KeyPressEvent:
		if e.Detail == escapeKeycode {
			o.machine.Cancel()
			return true, geometry.Rect{}, ErrSelectionCancelled
		}
	}

	return false, geometry.Rect{}, nil
}

// currentSelection returns the live selection if this surface hosts the
// drag anchor.
func (o *Overlay) currentSelection(s *surface) geometry.Rect {
	if o.machine.State() != StateDragging || o.machine.anchor.Name != s.monitor.Name {
		return geometry.Rect{}
	}
	return o.machine.localSelection()
}

// redrawAnchor redraws the surface hosting the drag.
func (o *Overlay) redrawAnchor(sel geometry.Rect) {
	for _, s := range o.surfaces {
		if s.monitor.Name == o.machine.anchor.Name {
			o.draw(s, sel)
			return
		}
	}
}

// draw recomposes the whole frame from scratch: dimmed screen, bright
// cutout over the selection, white border. Nothing accumulates between
// redraws.
func (o *Overlay) draw(s *surface, sel geometry.Rect) {
	frame := image.NewRGBA(s.dimmed.Bounds())
	copy(frame.Pix, s.dimmed.Pix)

	if !sel.Empty() {
		r := image.Rect(sel.X, sel.Y, sel.Right(), sel.Bottom())
		draw.Draw(frame, r, s.frozen, r.Min, draw.Src)
		drawBorder(frame, sel)
	}

	if err := o.putImage(s, frame); err != nil {
		logger.WithComponent("selector-overlay").Warn().
			Err(err).
			Str("monitor", s.monitor.Name).
			Msg("Overlay redraw failed")
	}
}

// putImage uploads an RGBA frame to the overlay window in BGRx scanline
// order, chunked to respect the protocol request-length limit.
func (o *Overlay) putImage(s *surface, frame *image.RGBA) error {
	setup := xproto.Setup(o.conn)
	screen := setup.DefaultScreen(o.conn)
	depth := screen.RootDepth

	width := frame.Bounds().Dx()
	height := frame.Bounds().Dy()
	stride := width * 4

	data := make([]byte, stride*height)
	for i := 0; i < len(frame.Pix); i += 4 {
		data[i] = frame.Pix[i+2]
		data[i+1] = frame.Pix[i+1]
		data[i+2] = frame.Pix[i]
		data[i+3] = 0
	}

	rowsPerChunk := putImageChunk / stride
	if rowsPerChunk < 1 {
		rowsPerChunk = 1
	}

	for y := 0; y < height; y += rowsPerChunk {
		rows := rowsPerChunk
		if y+rows > height {
			rows = height - y
		}
		err := xproto.PutImageChecked(
			o.conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(s.window),
			s.gc,
			uint16(width), uint16(rows),
			0, int16(y),
			0,
			depth,
			data[y*stride:(y+rows)*stride],
		).Check()
		if err != nil {
			return fmt.Errorf("put image rows %d..%d: %w", y, y+rows, err)
		}
	}
	return nil
}

// release tears down every overlay resource. It runs on every exit path;
// a leaked overlay surface would leave a dead fullscreen window on screen.
func (o *Overlay) release() {
	if o.grabbed {
		xproto.UngrabKeyboard(o.conn, xproto.TimeCurrentTime)
	}
	if o.focused {
		xproto.SetInputFocus(o.conn, xproto.InputFocusPointerRoot, xproto.InputFocusPointerRoot, xproto.TimeCurrentTime)
	}
	for win, s := range o.surfaces {
		xproto.FreeGC(o.conn, s.gc)
		xproto.UnmapWindow(o.conn, win)
		xproto.DestroyWindow(o.conn, win)
	}
	if o.cursor != 0 {
		xproto.FreeCursor(o.conn, o.cursor)
	}
	if o.cursorFont != 0 {
		xproto.CloseFont(o.conn, o.cursorFont)
	}
	o.conn.Sync()
	logger.WithComponent("selector-overlay").Debug().
		Int("surfaces", len(o.surfaces)).
		Msg("Overlay surfaces torn down")
}

// dim returns the frame with 50% black composited over it.
func dim(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(src.Bounds())
	for i := 0; i < len(src.Pix); i += 4 {
		out.Pix[i] = src.Pix[i] / 2
		out.Pix[i+1] = src.Pix[i+1] / 2
		out.Pix[i+2] = src.Pix[i+2] / 2
		out.Pix[i+3] = 0xff
	}
	return out
}

// drawBorder paints a white border just outside the selection.
func drawBorder(frame *image.RGBA, sel geometry.Rect) {
	bounds := frame.Bounds()

	edges := []image.Rectangle{
		image.Rect(sel.X-borderWidth, sel.Y-borderWidth, sel.Right()+borderWidth, sel.Y),          // top
		image.Rect(sel.X-borderWidth, sel.Bottom(), sel.Right()+borderWidth, sel.Bottom()+borderWidth), // bottom
		image.Rect(sel.X-borderWidth, sel.Y, sel.X, sel.Bottom()),                                 // left
		image.Rect(sel.Right(), sel.Y, sel.Right()+borderWidth, sel.Bottom()),                     // right
	}
	for _, e := range edges {
		draw.Draw(frame, e.Intersect(bounds), image.White, image.Point{}, draw.Src)
	}
}
