// Command server runs one replica of the image-sharing directory of
// service: the request listener, election listener, sync listener, and
// encoder worker (spec §2, §6 "CLI — server replica").
package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mostafa-ds/pixeldos/log"
	"github.com/mostafa-ds/pixeldos/server"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: server <server_addr> <election_addr> <sync_addr> [peer_election_addr peer_sync_addr]...")
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 3 {
		usage()
		return fmt.Errorf("need at least server_addr, election_addr, sync_addr")
	}
	if (len(args)-3)%2 != 0 {
		usage()
		return fmt.Errorf("trailing peer addresses must come in (election_addr, sync_addr) pairs")
	}

	cfg := server.Config{
		ServerAddr:    args[0],
		ElectionAddr:  args[1],
		SyncAddr:      args[2],
		DirectoryRoot: "DOS",
		Background:    cannedBackground(),
	}
	for i := 3; i < len(args); i += 2 {
		cfg.PeerElectionAddrs = append(cfg.PeerElectionAddrs, args[i])
		cfg.PeerSyncAddrs = append(cfg.PeerSyncAddrs, args[i+1])
	}

	logger := log.New("server")
	replica, err := server.NewReplica(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metricsSrv, metricsLn, err := startMetricsServer(replica)
	if err != nil {
		return fmt.Errorf("starting metrics endpoint: %w", err)
	}
	logger.Info("metrics endpoint listening", zap.String("addr", metricsLn.Addr().String()))
	go func() {
		<-ctx.Done()
		metricsSrv.Close()
	}()

	return replica.Serve(ctx)
}

// startMetricsServer exposes the replica's prometheus registry on a
// loopback debug /metrics endpoint (SPEC_FULL's DOMAIN STACK metrics row).
// The CLI stays purely positional (spec §6) so the listen port is chosen by
// the OS and logged rather than taken as another argument.
func startMetricsServer(r *server.Replica) (*http.Server, net.Listener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.Metrics().Gatherer(), promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return
		}
	}()
	return srv, ln, nil
}

// cannedBackground synthesizes the background image the encoder worker
// embeds payloads into (spec §4.4); this module treats image sourcing as
// out of scope, so a plain generated canvas stands in for an operator-
// supplied asset.
func cannedBackground() image.Image {
	const size = 256
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 32, G: 32, B: 48, A: 255})
		}
	}
	return img
}
