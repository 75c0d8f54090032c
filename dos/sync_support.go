package dos

import (
	"fmt"
	"os"
	"path/filepath"
)

// ListFiles returns the base names (e.g. "a1B2c3D4.txt") of every directory
// file currently on disk, for the HELLO bulk-sync handshake (spec §4.3).
func (s *Store) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// ReadRaw returns the exact bytes of a directory file by name, for
// broadcast_file_update / HELLO streaming (spec §4.3).
func (s *Store) ReadRaw(name string) ([]byte, error) {
	id := clientIDFromFilename(name)
	if id == "" {
		return nil, fmt.Errorf("dos: invalid directory file name %q", name)
	}
	mu := s.fileLock(id)
	mu.Lock()
	defer mu.Unlock()
	return os.ReadFile(filepath.Join(s.dir, name))
}

// ApplyRemoteFile overwrites a local directory file with bytes received
// from a peer during sync, last-writer-wins with no vector clock (spec
// §4.3, §9). It does not re-broadcast: broadcasting an applied remote write
// would loop forever across replicas.
func (s *Store) ApplyRemoteFile(name string, data []byte) error {
	id := clientIDFromFilename(name)
	if id == "" {
		return fmt.Errorf("dos: invalid directory file name %q", name)
	}
	if _, err := parseRecord(data); err != nil {
		return fmt.Errorf("dos: rejecting malformed remote file %q: %w", name, err)
	}

	mu := s.fileLock(id)
	mu.Lock()
	defer mu.Unlock()
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return err
	}
	s.metrics.BroadcastsApplied.Inc()
	return nil
}
