package election

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mostafa-ds/pixeldos/ids"
	"github.com/mostafa-ds/pixeldos/log"
	"github.com/mostafa-ds/pixeldos/metrics"
)

// Config tunes the timing constants from spec §4.1/§5. Defaults() returns
// the values named in the spec.
type Config struct {
	MyElectionAddr    string
	PeerElectionAddrs []string

	Jitter1Lo time.Duration // spec step 1: pre-check desync jitter
	Jitter1Hi time.Duration
	Jitter2Lo time.Duration // spec step 3: pre-initiate jitter
	Jitter2Hi time.Duration

	ReplyTimeout         time.Duration // spec step 6: 4000ms
	CommitDelay          time.Duration // spec step 8: 100ms
	LeaderBroadcastDelay time.Duration // spec step 8: 200ms

	// GCInterval governs State.GC; zero disables it, matching spec §4.1/§9
	// ("periodically garbage-collected with a 120-second TTL (disabled in
	// current revisions)").
	GCInterval time.Duration
	GCTTL      time.Duration

	DialTimeout time.Duration
}

// Defaults returns the spec-mandated timing constants for every field
// except the addresses, which the caller must fill in.
func Defaults() Config {
	return Config{
		Jitter1Lo:            20 * time.Millisecond,
		Jitter1Hi:            100 * time.Millisecond,
		Jitter2Lo:            100 * time.Millisecond,
		Jitter2Hi:            500 * time.Millisecond,
		ReplyTimeout:         4000 * time.Millisecond,
		CommitDelay:          100 * time.Millisecond,
		LeaderBroadcastDelay: 200 * time.Millisecond,
		GCInterval:           0,
		GCTTL:                120 * time.Second,
		DialTimeout:          2 * time.Second,
	}
}

// Elector runs the per-request bully election described in spec §4.1.
type Elector struct {
	State   *State
	cfg     Config
	sampler *ids.Sampler
	bidFn   BidFunc
	log     log.Logger
	metrics *metrics.Registry

	mu      sync.Mutex
	cancels map[RequestKey]context.CancelFunc
}

// NewElector constructs an Elector bound to state and the peer set in cfg.
func NewElector(state *State, cfg Config, sampler *ids.Sampler, bidFn BidFunc, logger log.Logger, reg *metrics.Registry) *Elector {
	if bidFn == nil {
		bidFn = DefaultBidFunc
	}
	return &Elector{
		State:   state,
		cfg:     cfg,
		sampler: sampler,
		bidFn:   bidFn,
		log:     logger,
		metrics: reg,
		cancels: make(map[RequestKey]context.CancelFunc),
	}
}

// RunGC starts the periodic handled-requests GC loop, if cfg.GCInterval > 0.
func (e *Elector) RunGC(ctx context.Context) {
	if e.cfg.GCInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.State.GC(e.cfg.GCTTL)
		}
	}
}

// Handle runs the full per-request election for (clientKey, requestID),
// steps 1-8 of spec §4.1, and reports whether this replica was elected.
func (e *Elector) Handle(ctx context.Context, clientKey, requestID string) bool {
	key := RequestKey{ClientKey: clientKey, RequestID: requestID}

	// Step 1: desynchronizing jitter.
	e.sleep(ctx, e.sampler.JitterBetween(e.cfg.Jitter1Lo, e.cfg.Jitter1Hi))

	// Step 2: drop silently if already committed.
	if e.State.HasHandled(key) {
		e.metrics.ElectionsDuplicate.Inc()
		e.log.Debug("dropping duplicate request", zap.String("request_id", requestID))
		return false
	}

	// Step 3: pre-initiate jitter.
	e.sleep(ctx, e.sampler.JitterBetween(e.cfg.Jitter2Lo, e.cfg.Jitter2Hi))

	roundCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancels[key] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, key)
		e.mu.Unlock()
		cancel()
	}()

	if e.State.HasHandled(key) {
		return false
	}

	// Step 4: compute and memoize own bid.
	bid, ok := e.State.MemoizedBid(key)
	if !ok {
		computed, err := e.bidFn(roundCtx, e.State.CurrentLoad())
		if err != nil {
			e.log.Warn("bid computation failed", zap.Error(err))
			computed = e.State.CurrentLoad()
		}
		bid = computed
		e.State.SetMemoizedBid(key, bid)
	}

	// Step 5-6: broadcast ELECTION, collect replies in parallel.
	if e.awaitedByPeer(roundCtx, bid, key) {
		e.metrics.ElectionsLost.Inc()
		return false
	}

	select {
	case <-roundCtx.Done():
		e.log.Debug("election cancelled by LEADER message", zap.String("request_id", requestID))
		return false
	default:
	}

	// Step 8: commit delay, re-check, commit, broadcast LEADER.
	e.sleep(roundCtx, e.cfg.CommitDelay)
	if e.State.HasHandled(key) {
		e.metrics.ElectionsLost.Inc()
		return false
	}

	e.State.MarkHandled(key)
	e.metrics.ElectionsWon.Inc()

	e.sleep(roundCtx, e.cfg.LeaderBroadcastDelay)
	e.broadcastLeader(key)
	return true
}

// awaitedByPeer sends ELECTION to every peer in parallel and reports true
// if any peer out-bids us or has already handled the request (spec step 6-7).
func (e *Elector) awaitedByPeer(ctx context.Context, bid int, key RequestKey) bool {
	if len(e.cfg.PeerElectionAddrs) == 0 {
		return false
	}

	type outcome struct {
		yield bool
	}
	results := make(chan outcome, len(e.cfg.PeerElectionAddrs))

	for _, addr := range e.cfg.PeerElectionAddrs {
		addr := addr
		go func() {
			results <- outcome{yield: e.sendElection(ctx, addr, bid, key)}
		}()
	}

	yielded := false
	for i := 0; i < len(e.cfg.PeerElectionAddrs); i++ {
		if (<-results).yield {
			yielded = true
		}
	}
	return yielded
}

// sendElection sends one ELECTION message to addr and returns true if the
// reply (or its absence) means we must yield.
func (e *Elector) sendElection(ctx context.Context, addr string, bid int, key RequestKey) bool {
	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.DialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		e.log.Debug("election peer unreachable, treating as concession", zap.String("peer", addr), zap.Error(err))
		return false
	}
	defer conn.Close()

	msg := FormatElection(bid, key.ClientKey, key.RequestID, e.cfg.MyElectionAddr)
	if _, err := conn.Write([]byte(msg)); err != nil {
		e.log.Debug("failed writing ELECTION message", zap.String("peer", addr), zap.Error(err))
		return false
	}

	conn.SetReadDeadline(time.Now().Add(e.cfg.ReplyTimeout))
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		if err != io.EOF {
			e.log.Debug("no reply from election peer, treating as concession", zap.String("peer", addr), zap.Error(err))
		}
		return false
	}

	switch Reply(buf[:n]) {
	case ReplyOK, ReplyAlreadyHandled:
		return true
	default:
		return false
	}
}

// broadcastLeader announces this replica's commit to every peer, best
// effort (spec step 8).
func (e *Elector) broadcastLeader(key RequestKey) {
	msg := FormatLeader(key.ClientKey, key.RequestID, e.cfg.MyElectionAddr)
	for _, addr := range e.cfg.PeerElectionAddrs {
		addr := addr
		go func() {
			conn, err := net.DialTimeout("tcp", addr, e.cfg.DialTimeout)
			if err != nil {
				e.log.Debug("failed to reach peer with LEADER message", zap.String("peer", addr), zap.Error(err))
				return
			}
			defer conn.Close()
			if _, err := conn.Write([]byte(msg)); err != nil {
				e.log.Debug("failed writing LEADER message", zap.String("peer", addr), zap.Error(err))
			}
		}()
	}
}

// ServeElectionMessages runs the election-port accept loop (spec §4.1,
// §6): one ELECTION or LEADER message per connection, replying OK,
// ALREADY_HANDLED, or silence.
func (e *Elector) ServeElectionMessages(ctx context.Context, ln net.Listener) {
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
				e.log.Warn("election listener accept failed", zap.Error(err))
				return
			}
		}
		go e.handleElectionConn(conn)
	}
}

func (e *Elector) handleElectionConn(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		return
	}
	msg := string(buf[:n])

	switch {
	case len(msg) >= len("ELECTION:") && msg[:len("ELECTION:")] == "ELECTION:":
		e.replyToElection(conn, msg)
	case len(msg) >= len("LEADER:") && msg[:len("LEADER:")] == "LEADER:":
		e.applyLeader(msg)
	default:
		e.log.Debug("malformed election-port message", zap.String("message", msg))
	}
}

func (e *Elector) replyToElection(conn net.Conn, msg string) {
	parsed, err := ParseElection(msg)
	if err != nil {
		e.log.Debug("malformed ELECTION message", zap.Error(err))
		return
	}
	key := RequestKey{ClientKey: parsed.ClientKey, RequestID: parsed.RequestID}

	if e.State.HasHandled(key) {
		conn.Write([]byte(ReplyAlreadyHandled))
		return
	}

	ownBid, ok := e.State.MemoizedBid(key)
	if !ok {
		computed, err := e.bidFn(context.Background(), e.State.CurrentLoad())
		if err != nil {
			computed = e.State.CurrentLoad()
		}
		ownBid = computed
		e.State.SetMemoizedBid(key, ownBid)
	}

	if Outranks(ownBid, e.cfg.MyElectionAddr, parsed.Bid, parsed.SenderElectionAddr) {
		conn.Write([]byte(ReplyOK))
	}
	// Otherwise: silence means this replica concedes to the sender.
}

func (e *Elector) applyLeader(msg string) {
	parsed, err := ParseLeader(msg)
	if err != nil {
		e.log.Debug("malformed LEADER message", zap.Error(err))
		return
	}
	key := RequestKey{ClientKey: parsed.ClientKey, RequestID: parsed.RequestID}
	e.State.MarkHandled(key)

	e.mu.Lock()
	if cancel, ok := e.cancels[key]; ok {
		cancel()
	}
	e.mu.Unlock()
}

func (e *Elector) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
