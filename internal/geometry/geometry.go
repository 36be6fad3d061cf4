// Package geometry provides rectangle and monitor math in virtual-screen
// coordinates: a single integer coordinate space spanning all monitors, with
// each monitor's origin offsetting within it.
package geometry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidGeometry marks a degenerate or entirely off-screen rectangle.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Rect is a rectangle in virtual-screen coordinates. Width and Height must
// be positive for the rect to be valid.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Monitor is one physical output as enumerated by the display server.
// Ordering is stable within a session only; monitors may be hot-plugged
// between sessions.
type Monitor struct {
	Name string `json:"name"`
	Rect
}

func (m Monitor) String() string {
	return fmt.Sprintf("%s: %dx%d+%d+%d", m.Name, m.Width, m.Height, m.X, m.Y)
}

// Normalize returns the bounding box of two corner points with positive
// width and height, regardless of which corner came first.
func Normalize(x0, y0, x1, y1 int) Rect {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Contains reports whether the point (x, y) lies inside the rect.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Intersect returns the overlap of two rects. The result is empty when the
// rects do not overlap.
func (r Rect) Intersect(other Rect) Rect {
	x0 := max(r.X, other.X)
	y0 := max(r.Y, other.Y)
	x1 := min(r.Right(), other.Right())
	y1 := min(r.Bottom(), other.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Intersects reports whether the two rects share any area.
func (r Rect) Intersects(other Rect) bool {
	return !r.Intersect(other).Empty()
}

// Union returns the bounding box covering both rects. An empty rect on
// either side yields the other unchanged.
func (r Rect) Union(other Rect) Rect {
	if r.Empty() {
		return other
	}
	if other.Empty() {
		return r
	}
	x0 := min(r.X, other.X)
	y0 := min(r.Y, other.Y)
	x1 := max(r.Right(), other.Right())
	y1 := max(r.Bottom(), other.Bottom())
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// ClampTo shrinks the rect so it fits inside bounds. The result may be
// empty when the rect lies entirely outside bounds.
func (r Rect) ClampTo(bounds Rect) Rect {
	return r.Intersect(bounds)
}

// Translate returns the rect shifted by (dx, dy).
func (r Rect) Translate(dx, dy int) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width, Height: r.Height}
}

// Validate checks that the rect has positive dimensions.
func (r Rect) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: %dx%d has no area", ErrInvalidGeometry, r.Width, r.Height)
	}
	return nil
}

// MonitorUnion returns the bounding box of all monitors, i.e. the full
// virtual screen.
func MonitorUnion(monitors []Monitor) Rect {
	var u Rect
	for _, m := range monitors {
		u = u.Union(m.Rect)
	}
	return u
}

// MonitorAt returns the monitor whose bounds contain the point, if any.
func MonitorAt(monitors []Monitor, x, y int) (Monitor, bool) {
	for _, m := range monitors {
		if m.Contains(x, y) {
			return m, true
		}
	}
	return Monitor{}, false
}

// ResolveDisplay resolves a display specifier, either an exact
// case-sensitive monitor name like "HDMI-1" or a zero-based index into the
// enumeration order, to a Monitor.
func ResolveDisplay(monitors []Monitor, spec string) (Monitor, error) {
	if len(monitors) == 0 {
		return Monitor{}, errors.New("no monitors found")
	}

	if idx, err := strconv.Atoi(spec); err == nil {
		if idx < 0 || idx >= len(monitors) {
			return Monitor{}, fmt.Errorf("display index %d out of range (0..%d)", idx, len(monitors)-1)
		}
		return monitors[idx], nil
	}

	for _, m := range monitors {
		if m.Name == spec {
			return m, nil
		}
	}
	return Monitor{}, fmt.Errorf("no display named %q", spec)
}

// ClampToMonitors clamps an explicit rect to the union of monitor bounds,
// then validates that something usable remains: the clamped rect must be
// non-degenerate and intersect at least one monitor. Off-screen portions are
// clamped, not rejected.
func ClampToMonitors(r Rect, monitors []Monitor) (Rect, error) {
	if err := r.Validate(); err != nil {
		return Rect{}, err
	}
	clamped := r.ClampTo(MonitorUnion(monitors))
	if clamped.Empty() {
		return Rect{}, fmt.Errorf("%w: rect %+v lies outside all monitors", ErrInvalidGeometry, r)
	}
	for _, m := range monitors {
		if clamped.Intersects(m.Rect) {
			return clamped, nil
		}
	}
	return Rect{}, fmt.Errorf("%w: rect %+v does not intersect any monitor", ErrInvalidGeometry, r)
}

// ParseRect parses a region string in either "X,Y,W,H" or "WxH+X+Y" form.
func ParseRect(s string) (Rect, error) {
	if strings.Contains(s, "x") && strings.Contains(s, "+") {
		parts := strings.FieldsFunc(s, func(r rune) bool { return r == 'x' || r == '+' })
		if len(parts) == 4 {
			w, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
			h, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
			x, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
			y, err4 := strconv.Atoi(strings.TrimSpace(parts[3]))
			if err1 == nil && err2 == nil && err3 == nil && err4 == nil {
				return Rect{X: x, Y: y, Width: w, Height: h}, nil
			}
		}
	}

	parts := strings.Split(s, ",")
	if len(parts) == 4 {
		x, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		y, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		w, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
		h, err4 := strconv.Atoi(strings.TrimSpace(parts[3]))
		if err1 == nil && err2 == nil && err3 == nil && err4 == nil {
			return Rect{X: x, Y: y, Width: w, Height: h}, nil
		}
	}

	return Rect{}, fmt.Errorf("%w: %q (use X,Y,W,H or WxH+X+Y)", ErrInvalidGeometry, s)
}
