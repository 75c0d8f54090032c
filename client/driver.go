package client

import (
	"context"
	"fmt"

	"github.com/mostafa-ds/pixeldos/clientmw"
	"github.com/mostafa-ds/pixeldos/ids"
	"github.com/mostafa-ds/pixeldos/wire"
)

// Driver builds requests, talks to one replica via the middleware, and
// updates Session in response (spec §2 "Client request driver").
type Driver struct {
	Session     *Session
	Middleware  *clientmw.Middleware
	ServerAddrs []string
	sampler     *ids.Sampler
}

// NewDriver builds a Driver bound to session and the configured replica
// addresses (spec §6 client CLI).
func NewDriver(session *Session, mw *clientmw.Middleware, serverAddrs []string, sampler *ids.Sampler) *Driver {
	return &Driver{Session: session, Middleware: mw, ServerAddrs: serverAddrs, sampler: sampler}
}

func (d *Driver) send(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	requestID := d.sampler.RequestID()
	resp, err := d.Middleware.Send(ctx, d.ServerAddrs, d.Session.ClientKey(), requestID, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return resp, fmt.Errorf("client: %s", resp.Error.Message)
	}
	return resp, nil
}

// SignUp registers a new client record at the session's peer address (spec
// §4.2 register_client).
func (d *Driver) SignUp(ctx context.Context) (string, error) {
	resp, err := d.send(ctx, &wire.Request{
		Kind:   wire.KindSignUp,
		SignUp: &wire.SignUpRequest{IP: d.Session.PeerListenAddr},
	})
	if err != nil {
		return "", err
	}
	d.Session.setSignedUp(resp.SignUp.ClientID)
	return resp.SignUp.ClientID, nil
}

// SignIn marks an existing client online at the session's current peer
// address (spec §4.2 sign_in_client).
func (d *Driver) SignIn(ctx context.Context, clientID string) (bool, error) {
	resp, err := d.send(ctx, &wire.Request{
		Kind:   wire.KindSignIn,
		SignIn: &wire.SignInRequest{ClientID: clientID, IP: d.Session.PeerListenAddr},
	})
	if err != nil {
		return false, err
	}
	if resp.SignIn.Success {
		d.Session.mu.Lock()
		d.Session.ClientID = clientID
		d.Session.mu.Unlock()
		d.Session.setSignedIn(true)
	}
	return resp.SignIn.Success, nil
}

// SignOut marks the session's client offline (spec §4.2 sign_out_client).
func (d *Driver) SignOut(ctx context.Context) (bool, error) {
	resp, err := d.send(ctx, &wire.Request{
		Kind:    wire.KindSignOut,
		SignOut: &wire.SignOutRequest{ClientID: d.Session.ClientKey()},
	})
	if err != nil {
		return false, err
	}
	if resp.SignOut.Success {
		d.Session.setSignedIn(false)
	}
	return resp.SignOut.Success, nil
}

// EncodeImage uploads raw image bytes for stego-encoding and records
// ownership under imageName (spec §4.4).
func (d *Driver) EncodeImage(ctx context.Context, imageName string, raw []byte) ([]byte, error) {
	resp, err := d.send(ctx, &wire.Request{
		Kind: wire.KindImage,
		Image: &wire.ImageRequest{
			ClientID:  d.Session.ClientKey(),
			ImageName: imageName,
			Data:      raw,
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.Image.EncodedData, nil
}

// ListOnline returns every other online client (spec §4.2 get_online_clients).
func (d *Driver) ListOnline(ctx context.Context) ([]wire.OnlineClient, error) {
	resp, err := d.send(ctx, &wire.Request{
		Kind: wire.KindDOS,
		DOS:  &wire.DOSRequest{RequesterID: d.Session.ClientKey()},
	})
	if err != nil {
		return nil, err
	}
	return resp.DOS.Clients, nil
}

// Push queues an access-rights update for target, delivered at its next
// sign-in (spec §4.2 handle_push_request).
func (d *Driver) Push(ctx context.Context, target, imageName string, newViews uint32) (bool, error) {
	resp, err := d.send(ctx, &wire.Request{
		Kind: wire.KindPush,
		Push: &wire.PushRequest{
			Target:    target,
			ImageName: imageName,
			NewViews:  newViews,
			PushedBy:  d.Session.ClientKey(),
		},
	})
	if err != nil {
		return false, err
	}
	return resp.Push.Success, nil
}
