// Package orchestrator composes a capture end to end: resolve targets,
// grab pixels, encode, persist, and report which follow-up behaviors the
// configuration asks for. It only ever signals side effects; performing
// them (clipboard, notification) belongs to the caller's environment.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/hotshot-tools/hotshot/internal/capture"
	"github.com/hotshot-tools/hotshot/internal/codec"
	"github.com/hotshot-tools/hotshot/internal/config"
	"github.com/hotshot-tools/hotshot/internal/geometry"
	"github.com/hotshot-tools/hotshot/internal/logger"
	"github.com/hotshot-tools/hotshot/internal/selector"
	"github.com/hotshot-tools/hotshot/internal/store"
)

// SideEffects tells the caller what the configuration wants done with the
// fresh screenshot. The orchestrator never touches clipboard or
// notification daemons itself.
type SideEffects struct {
	CopyToClipboard bool
	Notify          bool
}

// selectRegion runs the interactive selector; swapped out in tests and
// replaced by the X11 overlay for real sessions.
type selectRegion func(ctx context.Context, backend capture.Backend, display string) (geometry.Rect, error)

// Orchestrator drives one capture at a time.
type Orchestrator struct {
	cfg      *config.Manager
	backend  capture.Backend
	store    *store.Store
	selectFn selectRegion
}

// New wires the orchestrator. The interactive selector is only reachable
// on X11; explicit-geometry region capture works on both backends.
func New(cfg *config.Manager, backend capture.Backend, st *store.Store) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		backend:  backend,
		store:    st,
		selectFn: runOverlaySelector,
	}
}

// Fullscreen captures every monitor, or just the named one.
func (o *Orchestrator) Fullscreen(ctx context.Context, display string) (store.Metadata, SideEffects, error) {
	img, err := o.fullscreenImage(ctx, display)
	if err != nil {
		return store.Metadata{}, SideEffects{}, err
	}
	return o.persist(img, "fullscreen")
}

func (o *Orchestrator) fullscreenImage(ctx context.Context, display string) (*image.RGBA, error) {
	monitors, err := o.backend.Monitors()
	if errors.Is(err, capture.ErrUnsupported) {
		// Portal path: no output list, so no display filter either
		if display != "" {
			return nil, fmt.Errorf("%w: display selection", err)
		}
		if fs, ok := o.backend.(interface {
			CaptureFullscreen(context.Context) (*image.RGBA, error)
		}); ok {
			return fs.CaptureFullscreen(ctx)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	rect := geometry.MonitorUnion(monitors)
	if display != "" {
		mon, err := geometry.ResolveDisplay(monitors, display)
		if err != nil {
			return nil, err
		}
		rect = mon.Rect
	}
	return o.backend.CaptureRect(ctx, rect)
}

// Region captures an explicit rectangle, or runs the interactive selector
// when explicit is nil. Cancelling the selector persists nothing.
func (o *Orchestrator) Region(ctx context.Context, display string, explicit *geometry.Rect) (store.Metadata, SideEffects, error) {
	var (
		rect geometry.Rect
		err  error
	)

	if explicit != nil {
		rect, err = o.clampExplicit(*explicit)
	} else {
		rect, err = o.selectFn(ctx, o.backend, display)
		if errors.Is(err, selector.ErrSelectionCancelled) {
			err = fmt.Errorf("%w: %v", capture.ErrCancelled, err)
		}
	}
	if err != nil {
		return store.Metadata{}, SideEffects{}, err
	}

	img, err := o.backend.CaptureRect(ctx, rect)
	if err != nil {
		return store.Metadata{}, SideEffects{}, err
	}
	return o.persist(img, "region")
}

// clampExplicit validates a user-supplied rectangle against the monitor
// layout when one is available. The portal backend has no layout, so the
// rectangle is only checked for degeneracy and clamped at crop time.
func (o *Orchestrator) clampExplicit(r geometry.Rect) (geometry.Rect, error) {
	monitors, err := o.backend.Monitors()
	if errors.Is(err, capture.ErrUnsupported) {
		return r, r.Validate()
	}
	if err != nil {
		return geometry.Rect{}, err
	}
	return geometry.ClampToMonitors(r, monitors)
}

// Window captures the focused window (X11) or whatever the portal's
// interactive picker chooses (Wayland).
func (o *Orchestrator) Window(ctx context.Context) (store.Metadata, SideEffects, error) {
	img, _, err := o.backend.CaptureWindow(ctx)
	if err != nil {
		return store.Metadata{}, SideEffects{}, err
	}
	return o.persist(img, "window")
}

// persist encodes and stores the image per the current configuration. On
// store failure the bytes are discarded; nothing half-written survives.
func (o *Orchestrator) persist(img *image.RGBA, mode string) (store.Metadata, SideEffects, error) {
	cfg := o.cfg.Get()

	format, err := codec.ParseFormat(cfg.Image.Format)
	if err != nil {
		return store.Metadata{}, SideEffects{}, err
	}

	data, err := codec.Encode(img, format, cfg.Image.Quality)
	if err != nil {
		return store.Metadata{}, SideEffects{}, fmt.Errorf("encode capture: %w", err)
	}

	meta, err := o.store.Save(data, store.Metadata{
		CapturedAt:    time.Now(),
		Width:         img.Bounds().Dx(),
		Height:        img.Bounds().Dy(),
		Format:        string(format),
		CaptureMode:   mode,
		DisplayServer: string(o.backend.DisplayServer()),
	})
	if err != nil {
		return store.Metadata{}, SideEffects{}, fmt.Errorf("persist capture: %w", err)
	}

	logger.WithComponent("orchestrator").Info().
		Str("id", meta.ID).
		Str("mode", mode).
		Str("format", string(format)).
		Int("width", meta.Width).
		Int("height", meta.Height).
		Msg("Capture complete")

	return meta, SideEffects{
		CopyToClipboard: cfg.Behavior.CopyToClipboard,
		Notify:          cfg.Behavior.Notification,
	}, nil
}

// runOverlaySelector drives the X11 overlay. The portal backend cannot
// host the overlay: it has neither an output list nor an X connection.
func runOverlaySelector(ctx context.Context, backend capture.Backend, display string) (geometry.Rect, error) {
	x11, ok := backend.(*capture.X11Backend)
	if !ok {
		return geometry.Rect{}, fmt.Errorf("%w: interactive region selection requires X11", capture.ErrUnsupported)
	}

	monitors, err := x11.Monitors()
	if err != nil {
		return geometry.Rect{}, err
	}

	machine, err := selector.NewMachine(monitors, display)
	if err != nil {
		return geometry.Rect{}, err
	}

	grab := func(r geometry.Rect) (*image.RGBA, error) {
		return x11.CaptureRect(ctx, r)
	}
	return selector.Run(x11.Conn(), grab, machine)
}
