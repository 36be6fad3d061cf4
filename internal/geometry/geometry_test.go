package geometry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name           string
		x0, y0, x1, y1 int
		want           Rect
	}{
		{"down-right", 10, 20, 110, 220, Rect{10, 20, 100, 200}},
		{"up-left", 110, 220, 10, 20, Rect{10, 20, 100, 200}},
		{"down-left", 110, 20, 10, 220, Rect{10, 20, 100, 200}},
		{"up-right", 10, 220, 110, 20, Rect{10, 20, 100, 200}},
		{"zero area", 50, 50, 50, 50, Rect{50, 50, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.x0, tt.y0, tt.x1, tt.y1)
			assert.Equal(t, tt.want, got)
			if tt.x0 != tt.x1 && tt.y0 != tt.y1 {
				assert.Positive(t, got.Width)
				assert.Positive(t, got.Height)
			}
		})
	}
}

func TestIntersect(t *testing.T) {
	a := Rect{0, 0, 100, 100}

	assert.Equal(t, Rect{50, 50, 50, 50}, a.Intersect(Rect{50, 50, 100, 100}))
	assert.True(t, a.Intersect(Rect{200, 200, 10, 10}).Empty())
	assert.True(t, a.Intersect(Rect{100, 0, 10, 10}).Empty(), "edge-adjacent rects do not overlap")
	assert.Equal(t, a, a.Intersect(a))
}

func TestUnion(t *testing.T) {
	a := Rect{0, 0, 100, 100}
	b := Rect{1920, 0, 1280, 1024}

	assert.Equal(t, Rect{0, 0, 3200, 1024}, a.Union(b))
	assert.Equal(t, a, a.Union(Rect{}))
	assert.Equal(t, a, Rect{}.Union(a))
}

func TestMonitorUnion(t *testing.T) {
	monitors := []Monitor{
		{Name: "eDP-1", Rect: Rect{0, 0, 1920, 1080}},
		{Name: "HDMI-1", Rect: Rect{1920, -120, 2560, 1440}},
	}

	u := MonitorUnion(monitors)
	assert.Equal(t, Rect{0, -120, 4480, 1440}, u)
}

func TestMonitorAt(t *testing.T) {
	monitors := []Monitor{
		{Name: "eDP-1", Rect: Rect{0, 0, 1920, 1080}},
		{Name: "HDMI-1", Rect: Rect{1920, 0, 2560, 1440}},
	}

	m, ok := MonitorAt(monitors, 2000, 500)
	require.True(t, ok)
	assert.Equal(t, "HDMI-1", m.Name)

	_, ok = MonitorAt(monitors, -5, 500)
	assert.False(t, ok)
}

func TestResolveDisplay(t *testing.T) {
	monitors := []Monitor{
		{Name: "eDP-1", Rect: Rect{0, 0, 1920, 1080}},
		{Name: "HDMI-1", Rect: Rect{1920, 0, 2560, 1440}},
	}

	tests := []struct {
		name    string
		spec    string
		want    string
		wantErr bool
	}{
		{"by name", "HDMI-1", "HDMI-1", false},
		{"by index", "0", "eDP-1", false},
		{"index out of range", "2", "", true},
		{"unknown name", "DP-3", "", true},
		{"name is case-sensitive", "hdmi-1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ResolveDisplay(monitors, tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Name)
		})
	}

	_, err := ResolveDisplay(nil, "0")
	require.Error(t, err)
}

func TestClampToMonitors(t *testing.T) {
	monitors := []Monitor{
		{Name: "eDP-1", Rect: Rect{0, 0, 1920, 1080}},
	}

	t.Run("partially off-screen is clamped, not rejected", func(t *testing.T) {
		got, err := ClampToMonitors(Rect{-100, -100, 300, 300}, monitors)
		require.NoError(t, err)
		assert.Equal(t, Rect{0, 0, 200, 200}, got)
	})

	t.Run("fully on-screen passes through", func(t *testing.T) {
		r := Rect{10, 10, 100, 100}
		got, err := ClampToMonitors(r, monitors)
		require.NoError(t, err)
		assert.Equal(t, r, got)
	})

	t.Run("degenerate rect rejected", func(t *testing.T) {
		_, err := ClampToMonitors(Rect{10, 10, 0, 100}, monitors)
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})

	t.Run("entirely off-screen rejected", func(t *testing.T) {
		_, err := ClampToMonitors(Rect{5000, 5000, 100, 100}, monitors)
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})
}

func TestParseRect(t *testing.T) {
	tests := []struct {
		in      string
		want    Rect
		wantErr bool
	}{
		{"100,200,800,600", Rect{100, 200, 800, 600}, false},
		{"800x600+100+200", Rect{100, 200, 800, 600}, false},
		{" 10, 20, 30, 40 ", Rect{10, 20, 30, 40}, false},
		{"bogus", Rect{}, true},
		{"1,2,3", Rect{}, true},
		{"800x600", Rect{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRect(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidGeometry))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
