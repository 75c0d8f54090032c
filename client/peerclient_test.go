package client

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mostafa-ds/pixeldos/peerproto"
)

func TestRequestImageApproved(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		payload, err := peerproto.ReadFrame(context.Background(), conn)
		if err != nil {
			return
		}
		req, err := peerproto.DecodePeerRequest(payload)
		require.NoError(t, err)
		require.Equal(t, peerproto.KindImageRequest, req.Kind)

		resp := peerproto.PeerResponse{Approved: true, ImageData: []byte("png"), ImageID: req.ImageID}
		out, err := resp.Encode()
		require.NoError(t, err)
		peerproto.WriteFrame(conn, out)
	}()

	c := NewPeerClient()
	resp, err := c.RequestImage(context.Background(), ln.Addr().String(), "cat.png", 3, "127.0.0.1:1", "abcd1234")
	require.NoError(t, err)
	require.True(t, resp.Approved)
	require.Equal(t, []byte("png"), resp.ImageData)
}
