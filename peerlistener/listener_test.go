package peerlistener

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mostafa-ds/pixeldos/log"
	"github.com/mostafa-ds/pixeldos/peerproto"
)

func TestServeQueuesRequestAndResolveReplies(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	l := New(8, log.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Serve(ctx, ln)

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req := peerproto.PeerRequest{
		Kind:           peerproto.KindImageRequest,
		RequestedViews: 3,
		ImageID:        "cat.png",
		RequesterIP:    "127.0.0.1:9999",
		RequesterID:    "abcd1234",
	}
	payload, err := req.Encode()
	require.NoError(t, err)
	require.NoError(t, peerproto.WriteFrame(conn, payload))

	pr, ok := l.Next(ctx)
	require.True(t, ok)
	require.Equal(t, req, pr.Request)

	require.NoError(t, l.Resolve(pr, peerproto.PeerResponse{Approved: true, ImageData: []byte("png bytes"), ImageID: "cat.png"}))

	respPayload, err := peerproto.ReadFrame(context.Background(), conn)
	require.NoError(t, err)
	resp, err := peerproto.DecodePeerResponse(respPayload)
	require.NoError(t, err)
	require.True(t, resp.Approved)
	require.Equal(t, []byte("png bytes"), resp.ImageData)
}

func TestTryNextReturnsFalseWhenEmpty(t *testing.T) {
	l := New(1, log.NewNop())
	_, ok := l.TryNext()
	require.False(t, ok)
}
