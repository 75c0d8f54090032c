package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/mostafa-ds/pixeldos/peerproto"
)

// PeerClient sends PeerRequests to another client's peer listener (spec
// §4.6).
type PeerClient struct {
	DialTimeout time.Duration
}

// NewPeerClient builds a PeerClient with a sane dial timeout.
func NewPeerClient() *PeerClient {
	return &PeerClient{DialTimeout: 5 * time.Second}
}

// RequestImage asks targetAddr to share imageID, granting requestedViews if
// approved (spec §4.6 ImageRequest).
func (c *PeerClient) RequestImage(ctx context.Context, targetAddr, imageID string, requestedViews uint32, requesterIP, requesterID string) (peerproto.PeerResponse, error) {
	return c.exchange(ctx, targetAddr, peerproto.PeerRequest{
		Kind:           peerproto.KindImageRequest,
		RequestedViews: requestedViews,
		ImageID:        imageID,
		RequesterIP:    requesterIP,
		RequesterID:    requesterID,
	})
}

// RequestExtraViews asks targetAddr for more views on an image it already
// shared (spec §4.6 ExtraViewsRequest).
func (c *PeerClient) RequestExtraViews(ctx context.Context, targetAddr, imageID string, requestedViews uint32, requesterIP, requesterID string) (peerproto.PeerResponse, error) {
	return c.exchange(ctx, targetAddr, peerproto.PeerRequest{
		Kind:           peerproto.KindExtraViewsRequest,
		RequestedViews: requestedViews,
		ImageID:        imageID,
		RequesterIP:    requesterIP,
		RequesterID:    requesterID,
	})
}

func (c *PeerClient) exchange(ctx context.Context, targetAddr string, req peerproto.PeerRequest) (peerproto.PeerResponse, error) {
	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, c.DialTimeout)
	defer cancel()

	conn, err := d.DialContext(dialCtx, "tcp", targetAddr)
	if err != nil {
		return peerproto.PeerResponse{}, fmt.Errorf("client: dial %s: %w", targetAddr, err)
	}
	defer conn.Close()

	payload, err := req.Encode()
	if err != nil {
		return peerproto.PeerResponse{}, err
	}
	if err := peerproto.WriteFrame(conn, payload); err != nil {
		return peerproto.PeerResponse{}, fmt.Errorf("client: writing request to %s: %w", targetAddr, err)
	}

	respPayload, err := peerproto.ReadFrame(ctx, conn)
	if err != nil {
		return peerproto.PeerResponse{}, fmt.Errorf("client: reading response from %s: %w", targetAddr, err)
	}
	return peerproto.DecodePeerResponse(respPayload)
}
