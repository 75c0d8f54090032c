// Package election implements the per-request bid-based bully election
// (spec §4.1, §4.8) and the ServerState it races over (spec §3
// "Server-local state").
package election

import (
	"sync"
	"time"
)

// RequestKey identifies one election round: a (client_key, request_id)
// pair, per spec §3.
type RequestKey struct {
	ClientKey string
	RequestID string
}

// State is the mutex-guarded per-replica state the election and request
// listener race over. Spec §5 requires critical sections stay short and
// never span a suspension point awaiting a peer; every method here is a
// plain, non-blocking map/counter operation.
type State struct {
	mu sync.Mutex

	load             int
	handledRequests  map[RequestKey]time.Time
	receivedRequests map[RequestKey]int // own_bid memoized per request_id
}

// NewState creates an empty State with the given starting load, matching
// the original's randomized initial load.
func NewState(initialLoad int) *State {
	return &State{
		load:             initialLoad,
		handledRequests:  make(map[RequestKey]time.Time),
		receivedRequests: make(map[RequestKey]int),
	}
}

// IncrementLoad bumps the in-flight request count.
func (s *State) IncrementLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load++
}

// DecrementLoad lowers the in-flight request count, floored at zero.
func (s *State) DecrementLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.load > 0 {
		s.load--
	}
}

// CurrentLoad returns the in-flight request count.
func (s *State) CurrentLoad() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load
}

// HasHandled reports whether key is already committed on this replica.
func (s *State) HasHandled(key RequestKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handledRequests[key]
	return ok
}

// MarkHandled records key as committed, idempotently (spec §4.1 "Idempotent
// peer observation"): a second LEADER or local commit for the same key just
// refreshes the timestamp.
func (s *State) MarkHandled(key RequestKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handledRequests[key] = time.Now()
}

// MemoizedBid returns the bid this replica already computed for key, if
// any, so repeated election rounds for the same request are consistent
// (spec §4.1 step 4).
func (s *State) MemoizedBid(key RequestKey) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bid, ok := s.receivedRequests[key]
	return bid, ok
}

// SetMemoizedBid stores the bid computed for key.
func (s *State) SetMemoizedBid(key RequestKey, bid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivedRequests[key] = bid
}

// GC drops handledRequests entries older than ttl. Spec §4.1 notes this
// retention policy was "defined but disabled" in the source; Elector.RunGC
// only calls GC when Config.GCInterval > 0.
func (s *State) GC(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for key, ts := range s.handledRequests {
		if now.Sub(ts) >= ttl {
			delete(s.handledRequests, key)
		}
	}
}
