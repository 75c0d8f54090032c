package server

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mostafa-ds/pixeldos/log"
	"github.com/mostafa-ds/pixeldos/wire"
)

func solidBackground(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 5, G: 6, B: 7, A: 255})
		}
	}
	return img
}

func newTestReplica(t *testing.T) (*Replica, context.Context) {
	t.Helper()
	cfg := Config{
		DirectoryRoot: t.TempDir(),
		Background:    solidBackground(64, 64),
	}
	r, err := NewReplica(cfg, log.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go r.Worker.Run(ctx)
	return r, ctx
}

func TestSignUpSignInSignOutFlow(t *testing.T) {
	r, _ := newTestReplica(t)

	resp := r.processRequest(context.Background(), &wire.Request{
		Kind:   wire.KindSignUp,
		SignUp: &wire.SignUpRequest{IP: "127.0.0.1:9001"},
	})
	require.Nil(t, resp.Error)
	id := resp.SignUp.ClientID
	require.Len(t, id, 8)

	signOut := r.processRequest(context.Background(), &wire.Request{
		Kind:    wire.KindSignOut,
		SignOut: &wire.SignOutRequest{ClientID: id},
	})
	require.True(t, signOut.SignOut.Success)

	signIn := r.processRequest(context.Background(), &wire.Request{
		Kind:   wire.KindSignIn,
		SignIn: &wire.SignInRequest{ClientID: id, IP: "127.0.0.1:9002"},
	})
	require.True(t, signIn.SignIn.Success)
}

func TestImageRequestEncodesAndRecordsOwnership(t *testing.T) {
	r, ctx := newTestReplica(t)

	signUp := r.processRequest(ctx, &wire.Request{
		Kind:   wire.KindSignUp,
		SignUp: &wire.SignUpRequest{IP: "127.0.0.1:9001"},
	})
	id := signUp.SignUp.ClientID

	resp := r.processRequest(ctx, &wire.Request{
		Kind: wire.KindImage,
		Image: &wire.ImageRequest{
			ClientID:  id,
			ImageName: "cat.png",
			Data:      []byte("raw image bytes"),
		},
	})
	require.Nil(t, resp.Error)
	require.NotEmpty(t, resp.Image.EncodedData)

	dosResp := r.processRequest(ctx, &wire.Request{
		Kind: wire.KindDOS,
		DOS:  &wire.DOSRequest{RequesterID: "nobody"},
	})
	require.Len(t, dosResp.DOS.Clients, 1)
	require.Equal(t, []string{"cat.png"}, dosResp.DOS.Clients[0].Images)
}

func TestDOSRequestExcludesRequesterAndOffline(t *testing.T) {
	r, ctx := newTestReplica(t)

	a := r.processRequest(ctx, &wire.Request{Kind: wire.KindSignUp, SignUp: &wire.SignUpRequest{IP: "127.0.0.1:1"}}).SignUp.ClientID
	b := r.processRequest(ctx, &wire.Request{Kind: wire.KindSignUp, SignUp: &wire.SignUpRequest{IP: "127.0.0.1:2"}}).SignUp.ClientID
	c := r.processRequest(ctx, &wire.Request{Kind: wire.KindSignUp, SignUp: &wire.SignUpRequest{IP: "127.0.0.1:3"}}).SignUp.ClientID
	r.processRequest(ctx, &wire.Request{Kind: wire.KindSignOut, SignOut: &wire.SignOutRequest{ClientID: c}})

	resp := r.processRequest(ctx, &wire.Request{Kind: wire.KindDOS, DOS: &wire.DOSRequest{RequesterID: a}})
	ids := make([]string, 0, len(resp.DOS.Clients))
	for _, cl := range resp.DOS.Clients {
		ids = append(ids, cl.ClientID)
	}
	require.ElementsMatch(t, []string{b}, ids)
}

func TestPushRequestToOfflineTargetThenSignIn(t *testing.T) {
	r, ctx := newTestReplica(t)

	target := r.processRequest(ctx, &wire.Request{Kind: wire.KindSignUp, SignUp: &wire.SignUpRequest{IP: "127.0.0.1:1"}}).SignUp.ClientID
	r.processRequest(ctx, &wire.Request{Kind: wire.KindSignOut, SignOut: &wire.SignOutRequest{ClientID: target}})

	push := r.processRequest(ctx, &wire.Request{
		Kind: wire.KindPush,
		Push: &wire.PushRequest{Target: target, ImageName: "cat.png", NewViews: 2, PushedBy: "pusher1"},
	})
	require.True(t, push.Push.Success)

	signIn := r.processRequest(ctx, &wire.Request{
		Kind:   wire.KindSignIn,
		SignIn: &wire.SignInRequest{ClientID: target, IP: "127.0.0.1:1"},
	})
	require.True(t, signIn.SignIn.Success)
}

func TestPushRequestUnknownTargetFails(t *testing.T) {
	r, ctx := newTestReplica(t)
	push := r.processRequest(ctx, &wire.Request{
		Kind: wire.KindPush,
		Push: &wire.PushRequest{Target: "nosuch01", ImageName: "cat.png", NewViews: 1, PushedBy: "pusher1"},
	})
	require.False(t, push.Push.Success)
}
