// Package server wires together the per-request election, the directory of
// service, its cross-replica sync, and the encoder worker into one running
// replica (spec §2, §4).
package server

import (
	"context"
	"image"
	"net"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/mostafa-ds/pixeldos/dos"
	"github.com/mostafa-ds/pixeldos/dossync"
	"github.com/mostafa-ds/pixeldos/election"
	"github.com/mostafa-ds/pixeldos/encoder"
	"github.com/mostafa-ds/pixeldos/ids"
	"github.com/mostafa-ds/pixeldos/log"
	"github.com/mostafa-ds/pixeldos/metrics"
)

// dedupeAddrs drops repeated entries from a peer-address list, since the
// positional CLI args (spec §6) give the operator no protection against
// listing the same peer twice.
func dedupeAddrs(addrs []string) []string {
	set := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	out := maps.Keys(set)
	sort.Strings(out)
	return out
}

// Config configures one replica's addresses and peers.
type Config struct {
	ServerAddr   string
	ElectionAddr string
	SyncAddr     string

	PeerElectionAddrs []string
	PeerSyncAddrs     []string

	DirectoryRoot string
	Background    image.Image
}

// Replica ties every server-side component together.
type Replica struct {
	cfg     Config
	log     log.Logger
	metrics *metrics.Registry

	State   *election.State
	Elector *election.Elector
	Store   *dos.Store
	Syncer  *dossync.Syncer
	Worker  *encoder.Worker

	sampler *ids.Sampler
}

// NewReplica constructs a fully wired Replica; call Serve to run it.
func NewReplica(cfg Config, logger log.Logger) (*Replica, error) {
	reg := metrics.New()
	sampler := ids.NewSampler()

	store, err := dos.New(cfg.DirectoryRoot, sampler, logger, reg)
	if err != nil {
		return nil, err
	}

	peerSyncAddrs := dedupeAddrs(cfg.PeerSyncAddrs)
	syncer := dossync.New(store, peerSyncAddrs, logger)
	store.SetBroadcaster(syncer)

	state := election.NewState(0)
	electorCfg := election.Defaults()
	electorCfg.MyElectionAddr = cfg.ElectionAddr
	electorCfg.PeerElectionAddrs = dedupeAddrs(cfg.PeerElectionAddrs)
	elector := election.NewElector(state, electorCfg, sampler, election.DefaultBidFunc, logger, reg)

	worker := encoder.New(cfg.Background, 16, logger, reg)

	return &Replica{
		cfg:     cfg,
		log:     logger,
		metrics: reg,
		State:   state,
		Elector: elector,
		Store:   store,
		Syncer:  syncer,
		Worker:  worker,
		sampler: sampler,
	}, nil
}

// Metrics exposes the replica's Prometheus registry for an operator HTTP
// endpoint, if wired up by cmd/server.
func (r *Replica) Metrics() *metrics.Registry { return r.metrics }

// Serve starts every listener and background loop, blocking until ctx is
// cancelled.
func (r *Replica) Serve(ctx context.Context) error {
	requestLn, err := net.Listen("tcp", r.cfg.ServerAddr)
	if err != nil {
		return err
	}
	electionLn, err := net.Listen("tcp", r.cfg.ElectionAddr)
	if err != nil {
		return err
	}
	syncLn, err := net.Listen("tcp", r.cfg.SyncAddr)
	if err != nil {
		return err
	}

	r.Syncer.Bootstrap(ctx)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); r.Worker.Run(ctx) }()
	go func() { defer wg.Done(); r.Elector.ServeElectionMessages(ctx, electionLn) }()
	go func() { defer wg.Done(); r.Syncer.ServeSync(ctx, syncLn) }()
	go func() { defer wg.Done(); r.serveRequests(ctx, requestLn) }()
	go r.Elector.RunGC(ctx)

	r.log.Info("replica listening",
		zap.String("server_addr", r.cfg.ServerAddr),
		zap.String("election_addr", r.cfg.ElectionAddr),
		zap.String("sync_addr", r.cfg.SyncAddr),
	)

	<-ctx.Done()
	requestLn.Close()
	wg.Wait()
	return nil
}
