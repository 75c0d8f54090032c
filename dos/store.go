package dos

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/mostafa-ds/pixeldos/ids"
	"github.com/mostafa-ds/pixeldos/log"
	"github.com/mostafa-ds/pixeldos/metrics"
)

// Broadcaster propagates a local directory-file write to peer replicas
// (spec §4.3). Store depends on this interface, not on the dossync package
// directly, so the two packages don't import each other.
type Broadcaster interface {
	BroadcastFile(name string)
}

// noopBroadcaster is used until SetBroadcaster is called, so a Store is
// usable standalone (e.g. in tests) without wiring sync.
type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastFile(string) {}

// OnlineClient is one row of a get_online_clients response (spec §4.2).
type OnlineClient struct {
	ClientID string
	IP       string
	Images   []string
}

// Store is the replicated, file-backed directory of service (spec §4.2).
// Each client file is guarded by its own mutex; DoS-sync inbound writes and
// local mutations share the same lock (spec §5).
type Store struct {
	dir     string
	sampler *ids.Sampler
	log     log.Logger
	metrics *metrics.Registry

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	broadcastMu sync.Mutex
	broadcaster Broadcaster
}

// New opens (creating if absent) the directory rooted at dir.
func New(dir string, sampler *ids.Sampler, logger log.Logger, reg *metrics.Registry) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dos: creating directory root: %w", err)
	}
	return &Store{
		dir:         dir,
		sampler:     sampler,
		log:         logger,
		metrics:     reg,
		locks:       make(map[string]*sync.Mutex),
		broadcaster: noopBroadcaster{},
	}, nil
}

// SetBroadcaster wires the sync broadcaster in after construction, breaking
// the Store<->sync package dependency cycle.
func (s *Store) SetBroadcaster(b Broadcaster) {
	s.broadcastMu.Lock()
	defer s.broadcastMu.Unlock()
	s.broadcaster = b
}

func (s *Store) broadcast(name string) {
	s.broadcastMu.Lock()
	b := s.broadcaster
	s.broadcastMu.Unlock()
	b.BroadcastFile(name)
	s.metrics.BroadcastsSent.Inc()
}

func (s *Store) fileLock(clientID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[clientID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[clientID] = mu
	}
	return mu
}

func (s *Store) path(clientID string) string {
	return filepath.Join(s.dir, clientID+".txt")
}

func (s *Store) readLocked(clientID string) (Record, bool, error) {
	data, err := os.ReadFile(s.path(clientID))
	if os.IsNotExist(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	rec, err := parseRecord(data)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *Store) writeLocked(clientID string, rec Record) error {
	return os.WriteFile(s.path(clientID), rec.encode(), 0o644)
}

// RegisterClient samples a fresh client ID, retrying on collision, and
// creates its directory file (spec §4.2 register_client).
func (s *Store) RegisterClient(ip string) (string, error) {
	for {
		id := s.sampler.ClientID()
		mu := s.fileLock(id)
		mu.Lock()
		_, exists, err := s.readLocked(id)
		if err != nil {
			mu.Unlock()
			return "", err
		}
		if exists {
			mu.Unlock()
			continue
		}
		rec := Record{Online: true, IP: ip}
		err = s.writeLocked(id, rec)
		mu.Unlock()
		if err != nil {
			return "", err
		}
		s.broadcast(id)
		return id, nil
	}
}

// SignInClient marks a client online at ip, drains its pending updates, and
// returns them so the caller can attempt best-effort peer delivery (spec
// §4.2 sign_in_client).
func (s *Store) SignInClient(clientID, ip string) (bool, []PendingUpdate, error) {
	mu := s.fileLock(clientID)
	mu.Lock()
	defer mu.Unlock()

	rec, exists, err := s.readLocked(clientID)
	if err != nil {
		return false, nil, err
	}
	if !exists {
		return false, nil, nil
	}

	pending := rec.Pending
	rec.Online = true
	rec.IP = ip
	rec.Pending = nil

	if err := s.writeLocked(clientID, rec); err != nil {
		return false, nil, err
	}
	s.broadcast(clientID)
	return true, pending, nil
}

// SignOutClient marks a client offline, preserving images and pending
// updates (spec §4.2 sign_out_client).
func (s *Store) SignOutClient(clientID string) (bool, error) {
	mu := s.fileLock(clientID)
	mu.Lock()
	defer mu.Unlock()

	rec, exists, err := s.readLocked(clientID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	rec.Online = false
	if err := s.writeLocked(clientID, rec); err != nil {
		return false, err
	}
	s.broadcast(clientID)
	return true, nil
}

// AddImageName appends name to the client's owned-image list (spec §4.2
// add_image_name).
func (s *Store) AddImageName(clientID, name string) error {
	mu := s.fileLock(clientID)
	mu.Lock()
	defer mu.Unlock()

	rec, exists, err := s.readLocked(clientID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("dos: no such client %q", clientID)
	}

	rec.Images = append(rec.Images, name)
	if err := s.writeLocked(clientID, rec); err != nil {
		return err
	}
	s.broadcast(clientID)
	return nil
}

// GetOnlineClients lists every online client other than requesterID (spec
// §4.2 get_online_clients).
func (s *Store) GetOnlineClients(requesterID string) ([]OnlineClient, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var out []OnlineClient
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id := clientIDFromFilename(entry.Name())
		if id == "" || id == requesterID {
			continue
		}

		mu := s.fileLock(id)
		mu.Lock()
		rec, exists, err := s.readLocked(id)
		mu.Unlock()
		if err != nil {
			s.log.Warn("skipping unreadable directory file", zap.String("client_id", id), zap.Error(err))
			continue
		}
		if !exists || !rec.Online {
			continue
		}
		out = append(out, OnlineClient{ClientID: id, IP: rec.IP, Images: rec.Images})
	}
	return out, nil
}

// HandlePushRequest appends a pending update to target's file; delivery
// happens at the target's next sign-in (spec §4.2 handle_push_request).
func (s *Store) HandlePushRequest(target, imageName string, newViews uint32, pushedBy string) error {
	mu := s.fileLock(target)
	mu.Lock()
	defer mu.Unlock()

	rec, exists, err := s.readLocked(target)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("dos: no such client %q", target)
	}

	rec.Pending = append(rec.Pending, PendingUpdate{ImageName: imageName, NewViews: newViews, PushedBy: pushedBy})
	if err := s.writeLocked(target, rec); err != nil {
		return err
	}
	s.broadcast(target)
	return nil
}

func clientIDFromFilename(name string) string {
	const suffix = ".txt"
	if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
		return ""
	}
	return name[:len(name)-len(suffix)]
}
