package stego

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func solidBackground(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	return img
}

func TestEmbedExtractRoundTrip(t *testing.T) {
	bg := solidBackground(64, 64)
	payload := []byte("a small image payload")

	encoded, err := Embed(payload, bg)
	require.NoError(t, err)

	got, err := Extract(encoded)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestEmbedRejectsOversizePayload(t *testing.T) {
	bg := solidBackground(2, 2)
	_, err := Embed(bytes.Repeat([]byte{0xAB}, 1000), bg)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestPNGRoundTrip(t *testing.T) {
	bg := solidBackground(16, 16)
	payload := []byte("png roundtrip")
	encoded, err := Embed(payload, bg)
	require.NoError(t, err)

	png, err := EncodePNG(encoded)
	require.NoError(t, err)

	decoded, err := DecodePNG(bytes.NewReader(png))
	require.NoError(t, err)

	got, err := Extract(decoded)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestEmbedLeavesBottomRowUntouched(t *testing.T) {
	bg := solidBackground(8, 8)
	encoded, err := Embed([]byte("x"), bg)
	require.NoError(t, err)
	for x := 0; x < 8; x++ {
		require.Equal(t, uint8(255), encoded.NRGBAAt(x, 7).A, "bottom row must stay free for the access-rights token")
	}
}
