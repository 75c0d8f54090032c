package clientmw

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mostafa-ds/pixeldos/wire"
)

// winningReplica accepts the handshake and echoes a fixed Response.
func winningReplica(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 1024)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		_, err = wire.DecodeLightHandshake(buf[:n])
		require.NoError(t, err)
		conn.Write(wire.SelfReply)

		io.ReadAll(conn)
		resp := &wire.Response{Kind: wire.KindSignUp, SignUp: &wire.SignUpResponse{ClientID: "abcd1234"}}
		body, _ := resp.Encode()
		conn.Write(body)
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

// losingReplica accepts the handshake but never replies (spec: silence
// means losing the election).
func losingReplica(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 1024)
		conn.Read(buf)
		// Deliberately never reply.
		time.Sleep(3 * time.Second)
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestSendUsesFirstAcceptingReplica(t *testing.T) {
	loser := losingReplica(t)
	winner := winningReplica(t)

	cfg := DefaultConfig()
	cfg.AckTimeout = 200 * time.Millisecond
	mw := New(cfg)

	resp, err := mw.Send(context.Background(), []string{loser, winner}, "client-key", "req-1", &wire.Request{
		Kind:   wire.KindSignUp,
		SignUp: &wire.SignUpRequest{IP: "127.0.0.1:1"},
	})
	require.NoError(t, err)
	require.Equal(t, "abcd1234", resp.SignUp.ClientID)
}

func TestSendFailsWhenNoReplicaAvailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DialTimeout = 200 * time.Millisecond
	mw := New(cfg)

	_, err := mw.Send(context.Background(), []string{"127.0.0.1:1"}, "client-key", "req-1", &wire.Request{
		Kind:   wire.KindSignUp,
		SignUp: &wire.SignUpRequest{IP: "127.0.0.1:1"},
	})
	require.Error(t, err)
}
