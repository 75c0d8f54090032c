// Package stego is the steganographic codec spec.md places outside the
// core (§1 "Deliberately out of scope... the steganographic codec itself").
// It exists only so the rest of the system is runnable and testable
// end-to-end; it is not a place to wire additional third-party
// dependencies (see DESIGN.md).
//
// Payloads are embedded in the least significant bit of the alpha channel
// of a background image, most significant bit of each byte first (spec §4.4: "embed the raw payload into
// its alpha channel"), skipping the bottom image row entirely, since that
// row's first 8 pixels are reserved for the access-rights token (package
// rights). A 32-bit big-endian length header precedes the payload so
// Extract knows where it ends.
package stego

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"io"
)

// ErrPayloadTooLarge is returned when background has too few pixels to
// carry payload.
var ErrPayloadTooLarge = errors.New("stego: background image too small for payload")

const headerBits = 32

// Capacity returns the maximum payload size, in bytes, background can carry.
func Capacity(background image.Image) int {
	bits := usableAlphaPixels(background.Bounds()) - headerBits
	if bits < 0 {
		return 0
	}
	return bits / 8
}

// usableAlphaPixels counts alpha-channel carrier pixels, excluding the
// bottom row reserved for the access-rights token.
func usableAlphaPixels(b image.Rectangle) int {
	height := b.Dy()
	if height <= 1 {
		return 0
	}
	return b.Dx() * (height - 1)
}

// Embed hides payload inside a copy of background, returning an NRGBA image
// ready for rights.Embed to stamp with its access-rights token on the
// bottom row.
func Embed(payload []byte, background image.Image) (*image.NRGBA, error) {
	if len(payload)*8+headerBits > usableAlphaPixels(background.Bounds()) {
		return nil, ErrPayloadTooLarge
	}

	b := background.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, background.At(x, y))
		}
	}

	bits := payloadBits(payload)
	idx := 0
	lastRow := b.Max.Y - 1
	for y := b.Min.Y; y < lastRow && idx < len(bits); y++ {
		for x := b.Min.X; x < b.Max.X && idx < len(bits); x++ {
			c := out.NRGBAAt(x, y)
			c.A = setLSB(c.A, bits[idx])
			out.SetNRGBA(x, y, c)
			idx++
		}
	}
	return out, nil
}

// Extract recovers the payload hidden by Embed.
func Extract(img image.Image) ([]byte, error) {
	b := img.Bounds()
	total := usableAlphaPixels(b)
	if total < headerBits {
		return nil, errors.New("stego: image too small to contain a length header")
	}

	bits := make([]byte, 0, total)
	lastRow := b.Max.Y - 1
	for y := b.Min.Y; y < lastRow; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			bits = append(bits, lsb(uint8(a>>8)))
		}
	}

	length := bitsToUint32(bits[:headerBits])
	start := headerBits
	end := start + int(length)*8
	if end > len(bits) {
		return nil, errors.New("stego: declared payload length exceeds image capacity")
	}
	return bitsToBytes(bits[start:end]), nil
}

// EncodePNG writes img as a PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePNG reads a PNG into an NRGBA image.
func DecodePNG(r io.Reader) (*image.NRGBA, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, err
	}
	if n, ok := img.(*image.NRGBA); ok {
		return n, nil
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out, nil
}

func payloadBits(payload []byte) []byte {
	var header [4]byte
	header[0] = byte(len(payload) >> 24)
	header[1] = byte(len(payload) >> 16)
	header[2] = byte(len(payload) >> 8)
	header[3] = byte(len(payload))

	bits := make([]byte, 0, (len(header)+len(payload))*8)
	for _, b := range header {
		bits = appendBits(bits, b)
	}
	for _, b := range payload {
		bits = appendBits(bits, b)
	}
	return bits
}

func appendBits(bits []byte, b byte) []byte {
	for i := 7; i >= 0; i-- {
		bits = append(bits, (b>>uint(i))&1)
	}
	return bits
}

func bitsToBytes(bits []byte) []byte {
	out := make([]byte, len(bits)/8)
	for i := range out {
		var v byte
		for j := 0; j < 8; j++ {
			v = v<<1 | bits[i*8+j]
		}
		out[i] = v
	}
	return out
}

func bitsToUint32(bits []byte) uint32 {
	b := bitsToBytes(bits)
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func setLSB(channel uint8, bit byte) uint8 {
	return (channel &^ 1) | (bit & 1)
}

func lsb(channel uint8) byte {
	return channel & 1
}
