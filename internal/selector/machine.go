// Package selector turns user input into a confirmed capture rectangle. The
// drag logic lives in a pure state machine so it can be driven by any event
// source; the X11 overlay in this package is one such source.
package selector

import (
	"errors"
	"fmt"

	"github.com/hotshot-tools/hotshot/internal/geometry"
)

// State is the selector's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateOverlayArmed
	StateDragging
	StateConfirmed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOverlayArmed:
		return "overlay-armed"
	case StateDragging:
		return "dragging"
	case StateConfirmed:
		return "confirmed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ErrNotConfirmed is returned by Result before a rectangle was committed.
var ErrNotConfirmed = errors.New("no rectangle confirmed")

// Machine is the region-selection state machine. Pointer coordinates are
// monitor-local; the confirmed rectangle is translated into virtual-screen
// coordinates by the anchor monitor's origin. Exactly one rectangle or a
// cancellation is produced per invocation.
type Machine struct {
	state    State
	all      []geometry.Monitor
	targets  []geometry.Monitor
	anchor   geometry.Monitor
	anchorX  int
	anchorY  int
	currentX int
	currentY int
	result   geometry.Rect
}

// NewMachine builds a machine targeting all monitors, or exactly one when
// displayFilter is non-empty. Non-targeted monitors get no overlay surface
// at all, so their input passes through to the desktop.
func NewMachine(monitors []geometry.Monitor, displayFilter string) (*Machine, error) {
	if len(monitors) == 0 {
		return nil, errors.New("no monitors to select on")
	}

	targets := monitors
	if displayFilter != "" {
		m, err := geometry.ResolveDisplay(monitors, displayFilter)
		if err != nil {
			return nil, err
		}
		targets = []geometry.Monitor{m}
	}

	return &Machine{
		state:   StateIdle,
		all:     monitors,
		targets: targets,
	}, nil
}

// State reports the current state.
func (m *Machine) State() State {
	return m.state
}

// Targets lists the monitors that receive overlay surfaces.
func (m *Machine) Targets() []geometry.Monitor {
	return m.targets
}

// Targeted reports whether the named monitor receives an overlay.
func (m *Machine) Targeted(name string) bool {
	for _, t := range m.targets {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Arm transitions Idle → OverlayArmed; the caller creates one overlay
// surface per targeted monitor.
func (m *Machine) Arm() error {
	if m.state != StateIdle {
		return fmt.Errorf("cannot arm from state %s", m.state)
	}
	m.state = StateOverlayArmed
	return nil
}

// PointerDown records the drag anchor in the given monitor's local space.
// Events from non-targeted monitors are ignored.
func (m *Machine) PointerDown(monitor string, x, y int) error {
	if m.state != StateOverlayArmed {
		return fmt.Errorf("pointer-down in state %s", m.state)
	}
	if !m.Targeted(monitor) {
		return nil
	}
	for _, t := range m.targets {
		if t.Name == monitor {
			m.anchor = t
			break
		}
	}
	m.anchorX, m.anchorY = x, y
	m.currentX, m.currentY = x, y
	m.state = StateDragging
	return nil
}

// PointerMove updates the drag and returns the live selection rectangle in
// the anchor monitor's local space, clamped to that monitor's bounds. The
// caller redraws the guide from scratch on every call.
func (m *Machine) PointerMove(x, y int) (geometry.Rect, bool) {
	if m.state != StateDragging {
		return geometry.Rect{}, false
	}
	m.currentX, m.currentY = x, y
	return m.localSelection(), true
}

// localSelection normalizes anchor→current and clamps to the anchor
// monitor's local bounds.
func (m *Machine) localSelection() geometry.Rect {
	sel := geometry.Normalize(m.anchorX, m.anchorY, m.currentX, m.currentY)
	local := geometry.Rect{Width: m.anchor.Width, Height: m.anchor.Height}
	return sel.Intersect(local)
}

// PointerUp commits the drag. A non-zero area confirms the rectangle,
// translated into virtual-screen coordinates; zero area cancels.
func (m *Machine) PointerUp(x, y int) State {
	if m.state != StateDragging {
		return m.state
	}
	m.currentX, m.currentY = x, y

	sel := m.localSelection()
	if sel.Empty() {
		m.state = StateCancelled
		return m.state
	}

	m.result = sel.Translate(m.anchor.X, m.anchor.Y)
	m.state = StateConfirmed
	return m.state
}

// Cancel aborts selection from any pre-confirmation state.
func (m *Machine) Cancel() {
	if m.state == StateConfirmed {
		return
	}
	m.state = StateCancelled
}

// Result returns the confirmed virtual-screen rectangle.
func (m *Machine) Result() (geometry.Rect, error) {
	if m.state != StateConfirmed {
		return geometry.Rect{}, fmt.Errorf("%w: selector ended in state %s", ErrNotConfirmed, m.state)
	}
	return m.result, nil
}
