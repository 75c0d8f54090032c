package dossync

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mostafa-ds/pixeldos/log"
)

type memDir struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemDir(seed map[string][]byte) *memDir {
	files := make(map[string][]byte, len(seed))
	for k, v := range seed {
		files[k] = append([]byte(nil), v...)
	}
	return &memDir{files: files}
}

func (d *memDir) ListFiles() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var names []string
	for name := range d.files {
		names = append(names, name)
	}
	return names, nil
}

func (d *memDir) ReadRaw(name string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.files[name]...), nil
}

func (d *memDir) ApplyRemoteFile(name string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[name] = append([]byte(nil), data...)
	return nil
}

func (d *memDir) snapshot() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.files))
	for k, v := range d.files {
		out[k] = string(v)
	}
	return out
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func TestBroadcastFilePropagatesToPeer(t *testing.T) {
	src := newMemDir(map[string][]byte{"a1B2c3D4.txt": []byte("1,127.0.0.1:1\ncat.png\n")})
	dst := newMemDir(nil)

	dstLn := listen(t)
	defer dstLn.Close()
	dstSyncer := New(dst, nil, log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dstSyncer.ServeSync(ctx, dstLn)

	srcSyncer := New(src, []string{dstLn.Addr().String()}, log.NewNop())
	srcSyncer.BroadcastFile("a1B2c3D4.txt")

	require.Eventually(t, func() bool {
		return len(dst.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, "1,127.0.0.1:1\ncat.png\n", dst.snapshot()["a1B2c3D4.txt"])
}

func TestBootstrapPullsFullDirectoryFromPeer(t *testing.T) {
	peer := newMemDir(map[string][]byte{
		"a1B2c3D4.txt": []byte("1,127.0.0.1:1\n"),
		"e5F6g7H8.txt": []byte("0,127.0.0.1:2\ndog.png\n"),
	})
	peerLn := listen(t)
	defer peerLn.Close()
	peerSyncer := New(peer, nil, log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go peerSyncer.ServeSync(ctx, peerLn)

	local := newMemDir(nil)
	localSyncer := New(local, []string{peerLn.Addr().String()}, log.NewNop())
	localSyncer.Bootstrap(context.Background())

	require.Equal(t, peer.snapshot(), local.snapshot())
}

func TestBootstrapSkipsUnreachablePeer(t *testing.T) {
	local := newMemDir(nil)
	localSyncer := New(local, []string{"127.0.0.1:1"}, log.NewNop())
	localSyncer.Bootstrap(context.Background())
	require.Empty(t, local.snapshot())
}
