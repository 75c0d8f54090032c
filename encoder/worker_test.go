package encoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mostafa-ds/pixeldos/log"
	"github.com/mostafa-ds/pixeldos/metrics"
	"github.com/mostafa-ds/pixeldos/rights"
	"github.com/mostafa-ds/pixeldos/stego"
)

func solidBackground(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
		}
	}
	return img
}

func TestSubmitEncodesAndEmbedsDefaultViews(t *testing.T) {
	bg := solidBackground(64, 64)
	worker := New(bg, 1, log.NewNop(), metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	encoded, err := worker.Submit(ctx, []byte("raw image bytes"))
	require.NoError(t, err)

	decoded, err := stego.DecodePNG(bytes.NewReader(encoded))
	require.NoError(t, err)

	views, err := rights.Extract(decoded)
	require.NoError(t, err)
	require.Equal(t, uint32(DefaultAllowedViews), views)
}

func TestSubmitReturnsErrorOnOversizedPayload(t *testing.T) {
	bg := solidBackground(4, 4)
	worker := New(bg, 1, log.NewNop(), metrics.New())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go worker.Run(ctx)

	_, err := worker.Submit(ctx, bytes.Repeat([]byte{1}, 10000))
	require.Error(t, err)
}
