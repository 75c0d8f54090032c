// Package dossync implements cross-replica synchronization of the directory
// of service (spec §4.3): per-write broadcast of a single file, and a
// startup HELLO bulk-sync against the first reachable peer.
package dossync

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mostafa-ds/pixeldos/log"
)

const (
	ack      = "ACK"
	hello    = "HELLO"
	complete = "COMPLETE"
)

// Directory is the subset of *dos.Store that Syncer needs; it lets tests
// substitute a fake without touching the filesystem.
type Directory interface {
	ListFiles() ([]string, error)
	ReadRaw(name string) ([]byte, error)
	ApplyRemoteFile(name string, data []byte) error
}

// Syncer implements dos.Broadcaster and serves the sync-port listener.
type Syncer struct {
	dir           Directory
	peerSyncAddrs []string
	log           log.Logger
	dialTimeout   time.Duration
}

// New builds a Syncer over dir, broadcasting to peerSyncAddrs.
func New(dir Directory, peerSyncAddrs []string, logger log.Logger) *Syncer {
	return &Syncer{
		dir:           dir,
		peerSyncAddrs: peerSyncAddrs,
		log:           logger,
		dialTimeout:   2 * time.Second,
	}
}

// BroadcastFile implements dos.Broadcaster: send the named file's current
// bytes to every peer, best-effort (spec §4.3).
func (s *Syncer) BroadcastFile(name string) {
	data, err := s.dir.ReadRaw(name)
	if err != nil {
		s.log.Warn("broadcast: cannot read file to send", zap.String("file", name), zap.Error(err))
		return
	}
	for _, addr := range s.peerSyncAddrs {
		addr := addr
		go func() {
			conn, err := net.DialTimeout("tcp", addr, s.dialTimeout)
			if err != nil {
				s.log.Debug("broadcast: peer unreachable", zap.String("peer", addr), zap.Error(err))
				return
			}
			defer conn.Close()
			r := bufio.NewReader(conn)
			if err := sendFileFrame(conn, r, name, data); err != nil {
				s.log.Debug("broadcast: failed sending file", zap.String("peer", addr), zap.Error(err))
			}
		}()
	}
}

// Bootstrap contacts the first reachable peer on startup and applies its
// full file set (spec §4.3 HELLO handshake).
func (s *Syncer) Bootstrap(ctx context.Context) {
	for _, addr := range s.peerSyncAddrs {
		conn, err := net.DialTimeout("tcp", addr, s.dialTimeout)
		if err != nil {
			s.log.Debug("bootstrap: peer unreachable", zap.String("peer", addr), zap.Error(err))
			continue
		}
		if err := s.runHello(conn); err != nil {
			s.log.Warn("bootstrap: HELLO exchange failed", zap.String("peer", addr), zap.Error(err))
			conn.Close()
			continue
		}
		conn.Close()
		return
	}
	s.log.Info("bootstrap: no reachable peer, starting with empty or local directory")
}

func (s *Syncer) runHello(conn net.Conn) error {
	if _, err := io.WriteString(conn, hello+"\n"); err != nil {
		return err
	}

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\n")
		if line == complete {
			return nil
		}
		name, size, err := readFileHeader(r, line)
		if err != nil {
			return err
		}
		if err := writeLine(conn, ack); err != nil {
			return err
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return err
		}
		if err := writeLine(conn, ack); err != nil {
			return err
		}
		if err := s.dir.ApplyRemoteFile(name, data); err != nil {
			s.log.Warn("bootstrap: rejecting remote file", zap.String("file", name), zap.Error(err))
		}
	}
}

// ServeSync runs the sync-port accept loop: one HELLO or FILE exchange per
// connection (spec §4.3, §6).
func (s *Syncer) ServeSync(ctx context.Context, ln net.Listener) {
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
				s.log.Warn("sync listener accept failed", zap.Error(err))
				return
			}
		}
		go s.handleConn(conn)
	}
}

func (s *Syncer) handleConn(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		return
	}
	line = strings.TrimRight(line, "\n")

	switch {
	case line == hello:
		s.serveHello(conn, r)
	case strings.HasPrefix(line, "FILE:"):
		s.receiveFile(conn, r, line)
	default:
		s.log.Debug("malformed sync-port message", zap.String("message", line))
	}
}

func (s *Syncer) serveHello(conn net.Conn, r *bufio.Reader) {
	names, err := s.dir.ListFiles()
	if err != nil {
		s.log.Warn("serveHello: cannot list directory", zap.Error(err))
		return
	}
	for _, name := range names {
		data, err := s.dir.ReadRaw(name)
		if err != nil {
			s.log.Warn("serveHello: cannot read file", zap.String("file", name), zap.Error(err))
			continue
		}
		if err := sendFileFrame(conn, r, name, data); err != nil {
			s.log.Warn("serveHello: failed sending file", zap.String("file", name), zap.Error(err))
			return
		}
	}
	writeLine(conn, complete)
}

func (s *Syncer) receiveFile(conn net.Conn, r *bufio.Reader, header string) {
	name, size, err := readFileHeader(r, header)
	if err != nil {
		s.log.Debug("malformed FILE header", zap.String("header", header), zap.Error(err))
		return
	}
	if err := writeLine(conn, ack); err != nil {
		return
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		s.log.Warn("receiveFile: short read", zap.String("file", name), zap.Error(err))
		return
	}
	if err := writeLine(conn, ack); err != nil {
		return
	}
	if err := s.dir.ApplyRemoteFile(name, data); err != nil {
		s.log.Warn("receiveFile: rejecting file", zap.String("file", name), zap.Error(err))
	}
}

// sendFileFrame sends one FILE:<name>\n<size>\n header, waits ACK, writes
// the raw bytes, then waits the closing ACK (spec §4.3, §6).
func sendFileFrame(conn net.Conn, r *bufio.Reader, name string, data []byte) error {
	header := fmt.Sprintf("FILE:%s\n%d\n", name, len(data))
	if _, err := io.WriteString(conn, header); err != nil {
		return err
	}
	if err := expectLine(r, ack); err != nil {
		return err
	}
	if _, err := conn.Write(data); err != nil {
		return err
	}
	return expectLine(r, ack)
}

// readFileHeader parses "FILE:<name>" (already read as firstLine) plus the
// size line that immediately follows it on the same reader.
func readFileHeader(r *bufio.Reader, firstLine string) (name string, size int, err error) {
	name = strings.TrimPrefix(firstLine, "FILE:")
	sizeLine, err := r.ReadString('\n')
	if err != nil {
		return "", 0, err
	}
	size, err = strconv.Atoi(strings.TrimSpace(sizeLine))
	if err != nil {
		return "", 0, fmt.Errorf("dossync: bad size line %q: %w", sizeLine, err)
	}
	return name, size, nil
}

func expectLine(r *bufio.Reader, want string) error {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	if strings.TrimRight(line, "\n") != want {
		return fmt.Errorf("dossync: expected %q, got %q", want, line)
	}
	return nil
}

func writeLine(w io.Writer, s string) error {
	_, err := io.WriteString(w, s+"\n")
	return err
}
