package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/mostafa-ds/pixeldos/dos"
	"github.com/mostafa-ds/pixeldos/peerproto"
	"github.com/mostafa-ds/pixeldos/wire"
)

// processRequest dispatches a Phase 2 Request to the matching directory or
// encoder operation (spec §4.2, §4.4).
func (r *Replica) processRequest(ctx context.Context, req *wire.Request) *wire.Response {
	switch req.Kind {
	case wire.KindSignUp:
		return r.handleSignUp(req)
	case wire.KindSignIn:
		return r.handleSignIn(req)
	case wire.KindSignOut:
		return r.handleSignOut(req)
	case wire.KindImage:
		return r.handleImage(ctx, req)
	case wire.KindDOS:
		return r.handleDOS(req)
	case wire.KindPush:
		return r.handlePush(req)
	default:
		return wire.ErrorResponse(req.Kind, "unsupported request kind")
	}
}

func (r *Replica) handleSignUp(req *wire.Request) *wire.Response {
	if req.SignUp == nil {
		return wire.ErrorResponse(wire.KindSignUp, "missing sign_up payload")
	}
	id, err := r.Store.RegisterClient(req.SignUp.IP)
	if err != nil {
		return wire.ErrorResponse(wire.KindSignUp, err.Error())
	}
	return &wire.Response{Kind: wire.KindSignUp, SignUp: &wire.SignUpResponse{ClientID: id}}
}

func (r *Replica) handleSignIn(req *wire.Request) *wire.Response {
	if req.SignIn == nil {
		return wire.ErrorResponse(wire.KindSignIn, "missing sign_in payload")
	}
	ok, pending, err := r.Store.SignInClient(req.SignIn.ClientID, req.SignIn.IP)
	if err != nil {
		return wire.ErrorResponse(wire.KindSignIn, err.Error())
	}
	if ok && len(pending) > 0 {
		go r.deliverPendingUpdates(req.SignIn.IP, pending)
	}
	return &wire.Response{Kind: wire.KindSignIn, SignIn: &wire.SignInResponse{Success: ok}}
}

func (r *Replica) handleSignOut(req *wire.Request) *wire.Response {
	if req.SignOut == nil {
		return wire.ErrorResponse(wire.KindSignOut, "missing sign_out payload")
	}
	ok, err := r.Store.SignOutClient(req.SignOut.ClientID)
	if err != nil {
		return wire.ErrorResponse(wire.KindSignOut, err.Error())
	}
	return &wire.Response{Kind: wire.KindSignOut, SignOut: &wire.SignOutResponse{Success: ok}}
}

func (r *Replica) handleImage(ctx context.Context, req *wire.Request) *wire.Response {
	if req.Image == nil {
		return wire.ErrorResponse(wire.KindImage, "missing image payload")
	}
	encoded, err := r.Worker.Submit(ctx, req.Image.Data)
	if err != nil {
		return wire.ErrorResponse(wire.KindImage, err.Error())
	}
	if err := r.Store.AddImageName(req.Image.ClientID, req.Image.ImageName); err != nil {
		r.log.Warn("encoded image but failed recording ownership",
			zap.String("client_id", req.Image.ClientID), zap.Error(err))
	}
	return &wire.Response{Kind: wire.KindImage, Image: &wire.ImageResponse{EncodedData: encoded}}
}

func (r *Replica) handleDOS(req *wire.Request) *wire.Response {
	if req.DOS == nil {
		return wire.ErrorResponse(wire.KindDOS, "missing dos payload")
	}
	clients, err := r.Store.GetOnlineClients(req.DOS.RequesterID)
	if err != nil {
		return wire.ErrorResponse(wire.KindDOS, err.Error())
	}
	out := make([]wire.OnlineClient, 0, len(clients))
	for _, c := range clients {
		out = append(out, wire.OnlineClient{ClientID: c.ClientID, IP: c.IP, Images: c.Images})
	}
	return &wire.Response{Kind: wire.KindDOS, DOS: &wire.DOSResponse{Clients: out}}
}

func (r *Replica) handlePush(req *wire.Request) *wire.Response {
	if req.Push == nil {
		return wire.ErrorResponse(wire.KindPush, "missing push payload")
	}
	err := r.Store.HandlePushRequest(req.Push.Target, req.Push.ImageName, req.Push.NewViews, req.Push.PushedBy)
	if err != nil {
		return &wire.Response{Kind: wire.KindPush, Push: &wire.PushResponse{Success: false}}
	}
	return &wire.Response{Kind: wire.KindPush, Push: &wire.PushResponse{Success: true}}
}

// deliverPendingUpdates best-effort delivers each drained pending update to
// the client's peer listener as an AccessRightUpdate (spec §4.2
// sign_in_client, §4.6). Never retried, per spec.
func (r *Replica) deliverPendingUpdates(ip string, updates []dos.PendingUpdate) {
	for _, u := range updates {
		conn, err := net.DialTimeout("tcp", ip, 2*time.Second)
		if err != nil {
			r.log.Debug("pending update delivery: peer unreachable", zap.String("ip", ip), zap.Error(err))
			continue
		}

		pr := peerproto.PeerRequest{
			Kind:           peerproto.KindAccessRightUpdate,
			RequestedViews: u.NewViews,
			ImageID:        u.ImageName,
			RequesterID:    u.PushedBy,
		}
		payload, err := pr.Encode()
		if err != nil {
			conn.Close()
			r.log.Warn("pending update delivery: encode failed", zap.Error(err))
			continue
		}
		if err := peerproto.WriteFrame(conn, payload); err != nil {
			r.log.Debug("pending update delivery: write failed", zap.String("ip", ip), zap.Error(err))
		}
		conn.Close()
	}
}
