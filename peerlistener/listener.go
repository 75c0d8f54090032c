// Package peerlistener implements each client's peer-to-peer inbound side
// (spec §4.6): a listener that parks incoming PeerRequests in a
// process-wide queue for an operator to approve or deny.
package peerlistener

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/mostafa-ds/pixeldos/log"
	"github.com/mostafa-ds/pixeldos/peerproto"
)

// PendingRequest is one inbound PeerRequest awaiting an operator decision.
// The connection stays open until Listener.Resolve writes the response and
// closes it (spec §4.6: "writes the response back on the same socket,
// closing it afterwards").
type PendingRequest struct {
	Request    peerproto.PeerRequest
	RemoteAddr string

	conn net.Conn
}

// Listener accepts inbound peer connections and queues their requests.
type Listener struct {
	log     log.Logger
	pending chan *PendingRequest
}

// New builds a Listener with a queue of the given depth.
func New(queueDepth int, logger log.Logger) *Listener {
	return &Listener{
		log:     logger,
		pending: make(chan *PendingRequest, queueDepth),
	}
}

// Serve runs the accept loop: one PeerRequest frame read per connection,
// parked on the pending queue (spec §4.6, §6).
func (l *Listener) Serve(ctx context.Context, ln net.Listener) {
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
				l.log.Warn("peer listener accept failed", zap.Error(err))
				return
			}
		}
		go l.handleConn(ctx, conn)
	}
}

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	payload, err := peerproto.ReadFrame(ctx, conn)
	if err != nil {
		l.log.Debug("failed reading peer frame", zap.Error(err))
		conn.Close()
		return
	}
	req, err := peerproto.DecodePeerRequest(payload)
	if err != nil {
		l.log.Debug("malformed peer request", zap.Error(err))
		conn.Close()
		return
	}

	pr := &PendingRequest{Request: req, RemoteAddr: conn.RemoteAddr().String(), conn: conn}

	select {
	case l.pending <- pr:
	case <-ctx.Done():
		conn.Close()
	case <-time.After(30 * time.Second):
		l.log.Warn("pending queue full, dropping peer request", zap.String("remote", pr.RemoteAddr))
		conn.Close()
	}
}

// Next blocks until a pending request is available or ctx is cancelled.
func (l *Listener) Next(ctx context.Context) (*PendingRequest, bool) {
	select {
	case pr := <-l.pending:
		return pr, true
	case <-ctx.Done():
		return nil, false
	}
}

// TryNext returns immediately with the next pending request, if any.
func (l *Listener) TryNext() (*PendingRequest, bool) {
	select {
	case pr := <-l.pending:
		return pr, true
	default:
		return nil, false
	}
}

// Resolve writes resp back on the pending request's connection and closes
// it, completing the operator's approve/deny decision (spec §4.6).
func (l *Listener) Resolve(pr *PendingRequest, resp peerproto.PeerResponse) error {
	defer pr.conn.Close()

	payload, err := resp.Encode()
	if err != nil {
		return err
	}
	return peerproto.WriteFrame(pr.conn, payload)
}
