// Package rights implements the access-rights token embedded in the alpha
// channel of an encoded image (spec §3 "Access-rights token", §4.7).
package rights

import (
	"errors"
	"image"
	"image/color"
)

// Magic is the 4-byte big-endian prefix identifying a valid token.
const Magic uint32 = 0xDEADBEEF

// tokenBytes is the total token size: 4 magic bytes + 4 counter bytes.
const tokenBytes = 8

// ErrBadMagic is returned when the expected magic prefix is absent.
var ErrBadMagic = errors.New("rights: magic prefix mismatch")

// ErrImageTooNarrow is returned when the image cannot hold the token.
var ErrImageTooNarrow = errors.New("rights: image narrower than the token's 8 reserved pixels")

// ErrOverflow is returned when incrementing allowed_views would wrap.
var ErrOverflow = errors.New("rights: integer overflow")

// Embed overwrites the alpha channel of pixels (0,h-1)..(7,h-1) with the
// magic prefix followed by allowedViews, big-endian (spec §3, §4.7).
func Embed(img *image.NRGBA, allowedViews uint32) error {
	b := img.Bounds()
	width := b.Dx()
	height := b.Dy()
	if width < tokenBytes {
		return ErrImageTooNarrow
	}

	var buf [tokenBytes]byte
	buf[0] = byte(Magic >> 24)
	buf[1] = byte(Magic >> 16)
	buf[2] = byte(Magic >> 8)
	buf[3] = byte(Magic)
	buf[4] = byte(allowedViews >> 24)
	buf[5] = byte(allowedViews >> 16)
	buf[6] = byte(allowedViews >> 8)
	buf[7] = byte(allowedViews)

	y := b.Min.Y + height - 1
	for i := 0; i < tokenBytes; i++ {
		x := b.Min.X + i
		c := img.NRGBAAt(x, y)
		img.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: buf[i]})
	}
	return nil
}

// Extract reads the 8 reserved alphas and returns allowed_views, failing if
// the magic prefix is wrong (spec §4.7).
func Extract(img *image.NRGBA) (uint32, error) {
	b := img.Bounds()
	width := b.Dx()
	height := b.Dy()
	if width < tokenBytes {
		return 0, ErrImageTooNarrow
	}

	var buf [tokenBytes]byte
	y := b.Min.Y + height - 1
	for i := 0; i < tokenBytes; i++ {
		x := b.Min.X + i
		buf[i] = img.NRGBAAt(x, y).A
	}

	magic := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	if magic != Magic {
		return 0, ErrBadMagic
	}
	views := uint32(buf[4])<<24 | uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7])
	return views, nil
}

// Decrement extracts the current counter, decrements it by one (floor at
// zero) and re-embeds it, matching the "extract->decrement->embed->persist"
// sequence of spec §4.7. It returns the counter value after decrementing.
func Decrement(img *image.NRGBA) (uint32, error) {
	views, err := Extract(img)
	if err != nil {
		return 0, err
	}
	if views > 0 {
		views--
	}
	if err := Embed(img, views); err != nil {
		return 0, err
	}
	return views, nil
}

// AddViews adds extra to the counter currently embedded in img, returning
// ErrOverflow rather than wrapping (spec §7 "Resource exhaustion").
func AddViews(img *image.NRGBA, extra uint32) (uint32, error) {
	views, err := Extract(img)
	if err != nil {
		return 0, err
	}
	sum := views + extra
	if sum < views {
		return 0, ErrOverflow
	}
	if err := Embed(img, sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// SetViews overwrites the counter currently embedded in img with an
// absolute value (the set-absolute interpretation of AccessRightUpdate
// chosen in SPEC_FULL.md's Open Question #3).
func SetViews(img *image.NRGBA, views uint32) error {
	return Embed(img, views)
}
