// Package clientmw implements the client middleware's replica-selection
// algorithm (spec §4.5): sequential, not load-balanced, since balancing
// already happens server-side via election.
package clientmw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/mostafa-ds/pixeldos/wire"
)

// ErrNoReplicaAccepted is returned when every configured replica either was
// unreachable or did not win the election for this request.
var ErrNoReplicaAccepted = errors.New("clientmw: no replica accepted the request")

// Config tunes the per-candidate timeouts.
type Config struct {
	DialTimeout time.Duration
	// AckTimeout bounds how long to wait for Phase 1's ack; it must exceed
	// the server's worst-case election round (jitter + 4000ms reply
	// timeout + commit/leader delays, spec §4.1).
	AckTimeout time.Duration
}

// DefaultConfig returns timeouts generous enough for a full election round.
func DefaultConfig() Config {
	return Config{
		DialTimeout: 2 * time.Second,
		AckTimeout:  6 * time.Second,
	}
}

// Middleware probes configured replica addresses in order and sends req to
// the first one that wins its election.
type Middleware struct {
	cfg Config
}

// New builds a Middleware with cfg.
func New(cfg Config) *Middleware {
	return &Middleware{cfg: cfg}
}

// Send implements the spec §4.5 algorithm: for each address in order, open
// a connection, send the light handshake, and read the ack. Only the first
// replica whose ack is exactly the literal "self" reply is used.
func (m *Middleware) Send(ctx context.Context, addrs []string, clientKey, requestID string, req *wire.Request) (*wire.Response, error) {
	for _, addr := range addrs {
		resp, ok, err := m.tryOne(ctx, addr, clientKey, requestID, req)
		if err != nil {
			continue
		}
		if ok {
			return resp, nil
		}
	}
	return nil, ErrNoReplicaAccepted
}

func (m *Middleware) tryOne(ctx context.Context, addr, clientKey, requestID string, req *wire.Request) (*wire.Response, bool, error) {
	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	defer cancel()

	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, false, fmt.Errorf("clientmw: dial %s: %w", addr, err)
	}
	defer conn.Close()

	hs := wire.LightHandshake{ClientKey: clientKey, RequestID: requestID, Message: wire.WantToSend}
	encoded, err := hs.Encode()
	if err != nil {
		return nil, false, err
	}
	if _, err := conn.Write(encoded); err != nil {
		return nil, false, fmt.Errorf("clientmw: writing handshake to %s: %w", addr, err)
	}

	conn.SetReadDeadline(time.Now().Add(m.cfg.AckTimeout))
	ack := make([]byte, 16)
	n, err := conn.Read(ack)
	if err != nil {
		// A losing replica never writes; any read error here (including a
		// timeout) means this replica did not accept the request.
		return nil, false, nil
	}
	if !bytes.Equal(ack[:n], wire.SelfReply) {
		return nil, false, nil
	}

	body, err := req.Encode()
	if err != nil {
		return nil, false, err
	}
	if _, err := conn.Write(body); err != nil {
		return nil, false, fmt.Errorf("clientmw: writing request to %s: %w", addr, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	respBody, err := io.ReadAll(conn)
	if err != nil {
		return nil, false, fmt.Errorf("clientmw: reading response from %s: %w", addr, err)
	}

	resp, err := wire.DecodeResponse(respBody)
	if err != nil {
		return nil, false, fmt.Errorf("clientmw: decoding response from %s: %w", addr, err)
	}
	return resp, true, nil
}
