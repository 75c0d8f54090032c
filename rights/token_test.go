package rights

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestImage(width, height int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, width, height))
}

func TestEmbedExtractRoundTrip(t *testing.T) {
	for _, n := range []uint32{0, 1, 42, 1<<32 - 1} {
		img := newTestImage(8, 8)
		require.NoError(t, Embed(img, n))
		got, err := Extract(img)
		require.NoError(t, err)
		require.Equal(t, n, got)
	}
}

func TestExtractRejectsMissingToken(t *testing.T) {
	img := newTestImage(8, 8)
	_, err := Extract(img)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestEmbedRejectsNarrowImage(t *testing.T) {
	img := newTestImage(7, 8)
	err := Embed(img, 1)
	require.ErrorIs(t, err, ErrImageTooNarrow)
}

func TestDecrementFloorsAtZero(t *testing.T) {
	img := newTestImage(8, 8)
	require.NoError(t, Embed(img, 1))

	got, err := Decrement(img)
	require.NoError(t, err)
	require.Equal(t, uint32(0), got)

	got, err = Decrement(img)
	require.NoError(t, err)
	require.Equal(t, uint32(0), got)
}

func TestAddViewsDetectsOverflow(t *testing.T) {
	img := newTestImage(8, 8)
	require.NoError(t, Embed(img, 1<<32-1))

	_, err := AddViews(img, 1)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestAddViewsAccumulates(t *testing.T) {
	img := newTestImage(8, 8)
	require.NoError(t, Embed(img, 2))

	got, err := AddViews(img, 3)
	require.NoError(t, err)
	require.Equal(t, uint32(5), got)
}

func TestSetViewsOverwritesAbsolute(t *testing.T) {
	img := newTestImage(8, 8)
	require.NoError(t, Embed(img, 9))
	require.NoError(t, SetViews(img, 0))

	got, err := Extract(img)
	require.NoError(t, err)
	require.Equal(t, uint32(0), got)
}
