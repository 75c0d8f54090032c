package server

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mostafa-ds/pixeldos/log"
	"github.com/mostafa-ds/pixeldos/wire"
)

func sendRequest(t *testing.T, addr string, clientKey, requestID string, req *wire.Request) *wire.Response {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	hs := wire.LightHandshake{ClientKey: clientKey, RequestID: requestID, Message: wire.WantToSend}
	encodedHS, err := hs.Encode()
	require.NoError(t, err)
	_, err = conn.Write(encodedHS)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	ackBuf := make([]byte, 16)
	n, err := conn.Read(ackBuf)
	require.NoError(t, err)
	require.Equal(t, string(wire.SelfReply), string(ackBuf[:n]))

	body, err := req.Encode()
	require.NoError(t, err)
	_, err = conn.Write(body)
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	respBody, err := io.ReadAll(conn)
	require.NoError(t, err)
	resp, err := wire.DecodeResponse(respBody)
	require.NoError(t, err)
	return resp
}

func TestReplicaServesSignUpOverTCP(t *testing.T) {
	cfg := Config{
		ServerAddr:    "127.0.0.1:0",
		ElectionAddr:  "127.0.0.1:0",
		SyncAddr:      "127.0.0.1:0",
		DirectoryRoot: t.TempDir(),
		Background:    solidBackground(16, 16),
	}
	r, err := NewReplica(cfg, log.NewNop())
	require.NoError(t, err)

	requestLn, err := net.Listen("tcp", cfg.ServerAddr)
	require.NoError(t, err)
	electionLn, err := net.Listen("tcp", cfg.ElectionAddr)
	require.NoError(t, err)
	syncLn, err := net.Listen("tcp", cfg.SyncAddr)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Worker.Run(ctx)
	go r.Elector.ServeElectionMessages(ctx, electionLn)
	go r.Syncer.ServeSync(ctx, syncLn)
	go r.serveRequests(ctx, requestLn)

	resp := sendRequest(t, requestLn.Addr().String(), "client-key-1", "req-1", &wire.Request{
		Kind:   wire.KindSignUp,
		SignUp: &wire.SignUpRequest{IP: "127.0.0.1:9100"},
	})
	require.Nil(t, resp.Error)
	require.Len(t, resp.SignUp.ClientID, 8)
}
