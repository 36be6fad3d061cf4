// Package codec encodes raw RGBA buffers into the supported on-disk image
// formats. Encoding is pure and stateless: the same buffer, format, and
// quality always produce byte-identical output, and no platform metadata
// (color profiles, EXIF) is ever embedded.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
)

// Format is a supported output image format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// ParseFormat parses a format name; "jpg" is accepted as jpeg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unknown format: %s (use: png, jpeg, webp)", s)
	}
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// ClampQuality forces quality into [1, 100] rather than rejecting
// out-of-range values.
func ClampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// Encode turns an RGBA buffer into the requested format. PNG ignores
// quality (lossless, fixed compression strategy); JPEG and WebP clamp it
// to [1, 100].
func Encode(img *image.RGBA, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("png encode: %w", err)
		}
	case FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: ClampQuality(quality)}); err != nil {
			return nil, fmt.Errorf("jpeg encode: %w", err)
		}
	case FormatWebP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(ClampQuality(quality))}); err != nil {
			return nil, fmt.Errorf("webp encode: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}

	return buf.Bytes(), nil
}

// Decode parses encoded image bytes back into an RGBA buffer. Used by the
// round-trip tests and the thumbnailer.
func Decode(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba, nil
	}
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(out, out.Bounds(), img, bounds.Min, xdraw.Src)
	return out, nil
}

// Scale resizes src to fit within maxDim on its longest edge, preserving
// aspect ratio. Images already small enough are returned as-is.
func Scale(src *image.RGBA, maxDim int) *image.RGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	var dw, dh int
	if w >= h {
		dw = maxDim
		dh = h * maxDim / w
	} else {
		dh = maxDim
		dw = w * maxDim / h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, xdraw.Src, nil)
	return dst
}
