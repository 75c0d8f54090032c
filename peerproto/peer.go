// Package peerproto implements the client<->client peer wire protocol:
// a tagged PeerRequest/PeerResponse union, binary-serialized and framed with
// a 4-byte big-endian length prefix (spec §3 "Peer envelope", §6
// "Peer↔peer wire protocol"). One request/response pair per connection.
//
// The length-prefixed read/write loop is grounded in the pack's
// ahmed82-bdls-consensus TCP peer (agent-tcp/tcp_peer.go): a 4-byte length
// header followed by exactly that many payload bytes, with a maximum frame
// size guard.
package peerproto

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single peer frame (an encoded image can be a few MB).
const MaxFrameSize = 64 * 1024 * 1024

// RequestKind tags the variant carried by a PeerRequest.
type RequestKind string

const (
	KindImageRequest      RequestKind = "image_request"
	KindExtraViewsRequest RequestKind = "extra_views_request"
	KindAccessRightUpdate RequestKind = "access_right_update"
)

// PeerRequest is the tagged union a client sends to another client's peer
// listener (spec §3, §4.6).
type PeerRequest struct {
	Kind RequestKind

	RequestedViews uint32
	ImageID        string
	RequesterIP    string
	RequesterID    string
}

// PeerResponse is what the peer listener writes back on the same socket
// after the operator approves or denies a PeerRequest (spec §4.6).
type PeerResponse struct {
	Approved bool
	Reason   string // populated when Approved is false

	// ImageRequest approval payload.
	ImageData  []byte
	SharedByIP string
	ImageID    string

	// ExtraViewsRequest approval payload.
	NewAllowedViews uint32
}

// Encode gob-serializes a PeerRequest.
func (r PeerRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, fmt.Errorf("peerproto: encode request: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePeerRequest gob-deserializes a PeerRequest.
func DecodePeerRequest(b []byte) (PeerRequest, error) {
	var r PeerRequest
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r); err != nil {
		return PeerRequest{}, fmt.Errorf("peerproto: decode request: %w", err)
	}
	return r, nil
}

// Encode gob-serializes a PeerResponse.
func (r PeerResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, fmt.Errorf("peerproto: encode response: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePeerResponse gob-deserializes a PeerResponse.
func DecodePeerResponse(b []byte) (PeerResponse, error) {
	var r PeerResponse
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r); err != nil {
		return PeerResponse{}, fmt.Errorf("peerproto: decode response: %w", err)
	}
	return r, nil
}

// WriteFrame writes a 4-byte big-endian length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("peerproto: frame of %d bytes exceeds maximum", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame, honoring ctx cancellation by
// the caller having already set a deadline on the underlying connection;
// ReadFrame itself only bounds the declared length.
func ReadFrame(ctx context.Context, r io.Reader) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length == 0 {
		return nil, fmt.Errorf("peerproto: zero-length frame")
	}
	if length > MaxFrameSize {
		return nil, fmt.Errorf("peerproto: frame of %d bytes exceeds maximum", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
