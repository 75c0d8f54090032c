package server

import (
	"context"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/mostafa-ds/pixeldos/wire"
)

const maxHandshakeRead = 1024

// serveRequests runs the request-port accept loop: Phase 1 light handshake
// plus election, then Phase 2 JSON request/response (spec §4.1, §6).
func (r *Replica) serveRequests(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				r.log.Warn("request listener accept failed", zap.Error(err))
				return
			}
		}
		go r.handleRequestConn(ctx, conn)
	}
}

func (r *Replica) handleRequestConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, maxHandshakeRead)
	n, err := conn.Read(buf)
	if err != nil {
		r.log.Debug("failed reading handshake", zap.Error(err))
		return
	}
	hs, err := wire.DecodeLightHandshake(buf[:n])
	if err != nil {
		r.log.Debug("malformed handshake", zap.Error(err))
		return
	}
	if hs.Message != wire.WantToSend {
		r.log.Debug("unexpected handshake message", zap.String("message", hs.Message))
		return
	}

	r.State.IncrementLoad()
	defer r.State.DecrementLoad()

	elected := r.Elector.Handle(ctx, hs.ClientKey, hs.RequestID)
	if !elected {
		return
	}

	if _, err := conn.Write(wire.SelfReply); err != nil {
		r.log.Debug("failed writing self reply", zap.Error(err))
		return
	}

	body, err := io.ReadAll(conn)
	if err != nil {
		r.log.Debug("failed reading request body", zap.Error(err))
		return
	}

	req, err := wire.DecodeRequest(body)
	if err != nil {
		r.log.Debug("malformed request body", zap.Error(err))
		return
	}

	resp := r.processRequest(ctx, req)
	encoded, err := resp.Encode()
	if err != nil {
		r.log.Warn("failed encoding response", zap.Error(err))
		return
	}
	if _, err := conn.Write(encoded); err != nil {
		r.log.Debug("failed writing response", zap.Error(err))
	}
}
