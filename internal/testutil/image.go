package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

// GradientImage creates a simple RGBA test image.
func GradientImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{byte(x % 256), byte(y % 256), 0, 255})
		}
	}
	return img
}

// PNGBytes encodes a gradient image of the given size as PNG.
func PNGBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, GradientImage(width, height)))
	return buf.Bytes()
}
