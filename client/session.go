// Package client implements the client-side driver (spec §4.5, §9): an
// explicit per-client session value threaded through every operation,
// replacing the process-wide mutable singletons the original used (spec §9
// "Global mutable state").
package client

import "sync"

// Session holds one client's signed-up/signed-in state. The peer listener
// and the request driver share it by reference, per spec §9's
// redesign guidance.
type Session struct {
	mu sync.Mutex

	ClientID       string
	SignedUp       bool
	SignedIn       bool
	PeerListenAddr string
}

// NewSession starts an unauthenticated session bound to peerListenAddr, the
// client's own peer listener (spec §4.6).
func NewSession(peerListenAddr string) *Session {
	return &Session{PeerListenAddr: peerListenAddr}
}

// ClientKey is the first component of the (client_key, request_id) dedup
// tuple (spec glossary): the client's own peer address before it has an ID,
// the allocated ID afterwards.
func (s *Session) ClientKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ClientID != "" {
		return s.ClientID
	}
	return s.PeerListenAddr
}

func (s *Session) setSignedUp(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClientID = id
	s.SignedUp = true
	s.SignedIn = true
}

func (s *Session) setSignedIn(in bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SignedIn = in
}

// IsSignedIn reports the current sign-in state (spec §4.8 state machine).
func (s *Session) IsSignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SignedIn
}
