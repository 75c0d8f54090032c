package election

import (
	"fmt"
	"strconv"
	"strings"
)

// Reply is the literal text a peer writes back to an ELECTION message
// (spec §4.1 step 6, §6).
type Reply string

const (
	ReplyOK             Reply = "OK"
	ReplyAlreadyHandled Reply = "ALREADY_HANDLED"
)

// FormatElection renders the ASCII ELECTION grammar from spec §6.
func FormatElection(bid int, clientKey, requestID, senderElectionAddr string) string {
	return fmt.Sprintf("ELECTION:%d;%s;%s;%s", bid, clientKey, requestID, senderElectionAddr)
}

// ElectionMessage is a parsed ELECTION: line.
type ElectionMessage struct {
	Bid                int
	ClientKey          string
	RequestID          string
	SenderElectionAddr string
}

// ParseElection parses the ASCII ELECTION grammar from spec §6.
func ParseElection(msg string) (ElectionMessage, error) {
	const prefix = "ELECTION:"
	if !strings.HasPrefix(msg, prefix) {
		return ElectionMessage{}, fmt.Errorf("election: not an ELECTION message")
	}
	parts := strings.Split(strings.TrimSpace(msg[len(prefix):]), ";")
	if len(parts) != 4 {
		return ElectionMessage{}, fmt.Errorf("election: malformed ELECTION message, want 4 fields got %d", len(parts))
	}
	bid, err := strconv.Atoi(parts[0])
	if err != nil {
		return ElectionMessage{}, fmt.Errorf("election: bad bid %q: %w", parts[0], err)
	}
	return ElectionMessage{
		Bid:                bid,
		ClientKey:          parts[1],
		RequestID:          parts[2],
		SenderElectionAddr: parts[3],
	}, nil
}

// FormatLeader renders the ASCII LEADER grammar from spec §6.
func FormatLeader(clientKey, requestID, senderElectionAddr string) string {
	return fmt.Sprintf("LEADER:%s;%s;%s", clientKey, requestID, senderElectionAddr)
}

// LeaderMessage is a parsed LEADER: line.
type LeaderMessage struct {
	ClientKey          string
	RequestID          string
	SenderElectionAddr string
}

// ParseLeader parses the ASCII LEADER grammar from spec §6.
func ParseLeader(msg string) (LeaderMessage, error) {
	const prefix = "LEADER:"
	if !strings.HasPrefix(msg, prefix) {
		return LeaderMessage{}, fmt.Errorf("election: not a LEADER message")
	}
	parts := strings.Split(strings.TrimSpace(msg[len(prefix):]), ";")
	if len(parts) != 3 {
		return LeaderMessage{}, fmt.Errorf("election: malformed LEADER message, want 3 fields got %d", len(parts))
	}
	return LeaderMessage{
		ClientKey:          parts[0],
		RequestID:          parts[1],
		SenderElectionAddr: parts[2],
	}, nil
}

// Outranks reports whether a bid/addr pair from this replica beats the
// challenger's: strictly lower bid wins outright; on an equal bid the
// lexicographically smaller election address wins (original_source
// server_middleware.rs's `address < sender_election_address` tie-break,
// matching spec §8 property S2 and the §6 S2 walkthrough).
func Outranks(ownBid int, ownAddr string, otherBid int, otherAddr string) bool {
	if ownBid != otherBid {
		return ownBid < otherBid
	}
	return ownAddr < otherAddr
}
