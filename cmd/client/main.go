// Command client runs one client: a peer listener accepting inbound image
// and access-rights requests, plus a line-oriented driver for talking to
// the replica pool (spec §2, §6 "CLI — client"). The terminal menu itself
// is treated as an external concern (spec §1); this is the minimal
// scaffolding needed to exercise every client operation end-to-end.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mostafa-ds/pixeldos/client"
	"github.com/mostafa-ds/pixeldos/clientmw"
	"github.com/mostafa-ds/pixeldos/ids"
	"github.com/mostafa-ds/pixeldos/log"
	"github.com/mostafa-ds/pixeldos/peerlistener"
	"github.com/mostafa-ds/pixeldos/peerproto"
	"github.com/mostafa-ds/pixeldos/rights"
	"github.com/mostafa-ds/pixeldos/stego"
)

// shareImageWithGrantedViews opens the encoded image at path, re-embeds its
// access-rights counter with grantedViews, and returns the re-encoded PNG
// bytes ready to send (spec §4.6 ImageRequest approval).
func shareImageWithGrantedViews(path string, grantedViews uint32) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s to share: %w", path, err)
	}
	img, err := stego.DecodePNG(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := rights.SetViews(img, grantedViews); err != nil {
		return nil, fmt.Errorf("setting granted views on %s: %w", path, err)
	}
	return stego.EncodePNG(img)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: client <peer_listen_addr> <server_addr> [server_addr]...")
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "client:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 2 {
		usage()
		return fmt.Errorf("need peer_listen_addr and at least one server_addr")
	}

	peerAddr := args[0]
	serverAddrs := args[1:]

	logger := log.New("client")

	ln, err := net.Listen("tcp", peerAddr)
	if err != nil {
		return fmt.Errorf("opening peer listener: %w", err)
	}

	peers := peerlistener.New(64, logger)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go peers.Serve(ctx, ln)

	session := client.NewSession(peerAddr)
	sampler := ids.NewSampler()
	mw := clientmw.New(clientmw.DefaultConfig())
	driver := client.NewDriver(session, mw, serverAddrs, sampler)
	peerClient := client.NewPeerClient()

	repl := &repl{ctx: ctx, driver: driver, peers: peers, peerClient: peerClient, logger: logger}
	repl.run()
	return nil
}

type repl struct {
	ctx         context.Context
	driver      *client.Driver
	peers       *peerlistener.Listener
	peerClient  *client.PeerClient
	logger      log.Logger
	lastPending *peerlistener.PendingRequest
}

func (r *repl) run() {
	fmt.Println("commands: signup | signin <id> | signout | encode <name> <path> | list | push <target> <image> <views> | request <peer_addr> <image> <views> | extra <peer_addr> <image> <views> | pending | approve [views] | deny | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if err := r.dispatch(fields); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		if fields[0] == "quit" {
			return
		}
	}
}

func (r *repl) dispatch(fields []string) error {
	switch fields[0] {
	case "signup":
		id, err := r.driver.SignUp(r.ctx)
		if err != nil {
			return err
		}
		fmt.Println("client_id:", id)
	case "signin":
		if len(fields) != 2 {
			return fmt.Errorf("usage: signin <id>")
		}
		ok, err := r.driver.SignIn(r.ctx, fields[1])
		if err != nil {
			return err
		}
		fmt.Println("success:", ok)
	case "signout":
		ok, err := r.driver.SignOut(r.ctx)
		if err != nil {
			return err
		}
		fmt.Println("success:", ok)
	case "encode":
		if len(fields) != 3 {
			return fmt.Errorf("usage: encode <name> <path>")
		}
		raw, err := os.ReadFile(fields[2])
		if err != nil {
			return err
		}
		encoded, err := r.driver.EncodeImage(r.ctx, fields[1], raw)
		if err != nil {
			return err
		}
		out := fields[1] + "_encrypted.png"
		if err := os.WriteFile(out, encoded, 0o644); err != nil {
			return err
		}
		fmt.Println("wrote", out)
	case "list":
		clients, err := r.driver.ListOnline(r.ctx)
		if err != nil {
			return err
		}
		for _, c := range clients {
			fmt.Printf("%s\t%s\t%v\n", c.ClientID, c.IP, c.Images)
		}
	case "push":
		if len(fields) != 4 {
			return fmt.Errorf("usage: push <target> <image> <views>")
		}
		views, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return err
		}
		ok, err := r.driver.Push(r.ctx, fields[1], fields[2], uint32(views))
		if err != nil {
			return err
		}
		fmt.Println("success:", ok)
	case "request":
		return r.requestFromPeer(fields, false)
	case "extra":
		return r.requestFromPeer(fields, true)
	case "pending":
		pr, ok := r.peers.TryNext()
		if !ok {
			fmt.Println("no pending requests")
			return nil
		}
		fmt.Printf("from %s: %s requesting %d views of %s\n", pr.RemoteAddr, pr.Request.Kind, pr.Request.RequestedViews, pr.Request.ImageID)
		r.lastPending = pr
	case "approve":
		return r.resolvePending(fields, true)
	case "deny":
		return r.resolvePending(fields, false)
	case "quit":
		return nil
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}

// requestFromPeer issues an ImageRequest or ExtraViewsRequest directly to
// another client's peer listener (spec §4.6).
func (r *repl) requestFromPeer(fields []string, extra bool) error {
	if len(fields) != 4 {
		return fmt.Errorf("usage: %s <peer_addr> <image> <views>", fields[0])
	}
	views, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return err
	}

	var resp peerproto.PeerResponse
	if extra {
		resp, err = r.peerClient.RequestExtraViews(r.ctx, fields[1], fields[2], uint32(views), r.driver.Session.PeerListenAddr, r.driver.Session.ClientKey())
	} else {
		resp, err = r.peerClient.RequestImage(r.ctx, fields[1], fields[2], uint32(views), r.driver.Session.PeerListenAddr, r.driver.Session.ClientKey())
	}
	if err != nil {
		return err
	}
	if !resp.Approved {
		fmt.Println("denied:", resp.Reason)
		return nil
	}
	if extra {
		fmt.Println("new_allowed_views:", resp.NewAllowedViews)
		return nil
	}
	out := fields[2] + "_from_" + fields[1] + ".png"
	if err := os.WriteFile(out, resp.ImageData, 0o644); err != nil {
		return err
	}
	fmt.Println("wrote", out)
	return nil
}

// resolvePending answers the most recently displayed pending peer request
// (spec §4.6: the operator approves/denies, possibly adjusting the granted
// view count).
func (r *repl) resolvePending(fields []string, approve bool) error {
	if r.lastPending == nil {
		return fmt.Errorf("no pending request selected; run 'pending' first")
	}
	pr := r.lastPending
	r.lastPending = nil

	if !approve {
		return r.peers.Resolve(pr, peerproto.PeerResponse{Approved: false, Reason: "denied by operator"})
	}

	grantedViews := pr.Request.RequestedViews
	if len(fields) == 2 {
		n, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return fmt.Errorf("usage: approve [views]")
		}
		grantedViews = uint32(n)
	}

	switch pr.Request.Kind {
	case peerproto.KindExtraViewsRequest:
		return r.peers.Resolve(pr, peerproto.PeerResponse{
			Approved:        true,
			ImageID:         pr.Request.ImageID,
			NewAllowedViews: grantedViews,
		})
	case peerproto.KindImageRequest:
		data, err := shareImageWithGrantedViews(pr.Request.ImageID, grantedViews)
		if err != nil {
			return err
		}
		return r.peers.Resolve(pr, peerproto.PeerResponse{
			Approved:   true,
			ImageData:  data,
			SharedByIP: r.driver.Session.PeerListenAddr,
			ImageID:    pr.Request.ImageID,
		})
	default:
		return fmt.Errorf("kind %q is not approval-gated", pr.Request.Kind)
	}
}
