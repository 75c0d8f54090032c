package peerproto

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	req := PeerRequest{
		Kind:           KindImageRequest,
		RequestedViews: 3,
		ImageID:        "cat",
		RequesterIP:    "10.0.0.2:9000",
	}
	enc, err := req.Encode()
	require.NoError(t, err)

	got, err := DecodePeerRequest(enc)
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestResponseRoundTrip(t *testing.T) {
	resp := PeerResponse{
		Approved:        true,
		ImageData:       []byte{1, 2, 3},
		SharedByIP:      "10.0.0.3:9000",
		ImageID:         "cat",
		NewAllowedViews: 2,
	}
	enc, err := resp.Encode()
	require.NoError(t, err)

	got, err := DecodePeerResponse(enc)
	require.NoError(t, err)
	require.Equal(t, resp, got)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello peer")
	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(context.Background(), &buf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	_, err := ReadFrame(context.Background(), &buf)
	require.Error(t, err)
}

func TestReadFrameRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err := ReadFrame(context.Background(), &buf)
	require.Error(t, err)
}
