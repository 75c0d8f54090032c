package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// WantToSend is the literal message carried by a light handshake, per spec §4.1.
const WantToSend = "I want to send"

// SelfReply is the literal bytes a winning replica writes back in Phase 1
// (spec §4.1, §6).
var SelfReply = []byte("self")

// LightHandshake is the fixed-layout preamble a client middleware sends to
// probe a replica and trigger its election (spec §3, §6).
type LightHandshake struct {
	ClientKey string
	RequestID string
	Message   string
}

// maxHandshakeSize bounds the encoded handshake; the original read a fixed
// 1024-byte buffer, which this framing also budgets for.
const maxHandshakeSize = 1024

// Encode lays out ClientKey, RequestID and Message as three
// length-prefixed (uint16 big-endian) byte strings.
func (h LightHandshake) Encode() ([]byte, error) {
	var buf bytes.Buffer
	for _, s := range []string{h.ClientKey, h.RequestID, h.Message} {
		if len(s) > 0xFFFF {
			return nil, errors.New("wire: handshake field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(s))); err != nil {
			return nil, err
		}
		buf.WriteString(s)
	}
	if buf.Len() > maxHandshakeSize {
		return nil, errors.New("wire: handshake exceeds maximum size")
	}
	return buf.Bytes(), nil
}

// DecodeLightHandshake parses a buffer produced by Encode. Trailing bytes
// (the zero-padding of a fixed-size read) are ignored.
func DecodeLightHandshake(b []byte) (LightHandshake, error) {
	r := bytes.NewReader(b)
	var h LightHandshake
	fields := make([]*string, 3)
	fields[0], fields[1], fields[2] = &h.ClientKey, &h.RequestID, &h.Message

	for _, field := range fields {
		var n uint16
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return LightHandshake{}, errors.New("wire: truncated handshake")
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return LightHandshake{}, errors.New("wire: truncated handshake field")
		}
		*field = string(buf)
	}
	return h, nil
}
