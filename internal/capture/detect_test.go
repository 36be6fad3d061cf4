package capture

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    DisplayServer
		wantErr bool
	}{
		{
			name: "wayland display wins",
			env:  map[string]string{"WAYLAND_DISPLAY": "wayland-0", "DISPLAY": ":0"},
			want: DisplayServerWayland,
		},
		{
			name: "session type wayland",
			env:  map[string]string{"XDG_SESSION_TYPE": "wayland"},
			want: DisplayServerWayland,
		},
		{
			name: "session type x11",
			env:  map[string]string{"XDG_SESSION_TYPE": "x11", "DISPLAY": ":0"},
			want: DisplayServerX11,
		},
		{
			name: "bare DISPLAY falls back to x11",
			env:  map[string]string{"XDG_SESSION_TYPE": "tty", "DISPLAY": ":1"},
			want: DisplayServerX11,
		},
		{
			name:    "nothing set",
			env:     map[string]string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"WAYLAND_DISPLAY", "XDG_SESSION_TYPE", "DISPLAY"} {
				t.Setenv(key, tt.env[key])
			}

			got, err := Detect()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrProtocolUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRGBA(t *testing.T) {
	t.Run("zero-origin RGBA passes through", func(t *testing.T) {
		src := image.NewRGBA(image.Rect(0, 0, 4, 4))
		assert.Same(t, src, NormalizeRGBA(src))
	})

	t.Run("subimage is rebased to zero origin", func(t *testing.T) {
		src := image.NewRGBA(image.Rect(0, 0, 8, 8))
		src.Set(5, 5, image.White.C)
		sub := src.SubImage(image.Rect(4, 4, 8, 8))

		got := NormalizeRGBA(sub)
		assert.Equal(t, image.Rect(0, 0, 4, 4), got.Bounds())
		r, g, b, a := got.At(1, 1).RGBA()
		assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff, 0xffff}, []uint32{r, g, b, a})
	})

	t.Run("non-RGBA input converted", func(t *testing.T) {
		src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
		got := NormalizeRGBA(src)
		assert.Equal(t, image.Rect(0, 0, 3, 2), got.Bounds())
	})
}

func TestBGRAToRGBA(t *testing.T) {
	// One blue pixel followed by one red pixel, in X11 BGRA order
	data := []byte{
		0xff, 0x00, 0x00, 0x00, // blue
		0x00, 0x00, 0xff, 0x00, // red
	}

	img := bgraToRGBA(data, 2, 1)

	r, g, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0, 0, 0xffff, 0xffff}, []uint32{r, g, b, a})

	r, g, b, a = img.At(1, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0, 0xffff}, []uint32{r, g, b, a})
}
