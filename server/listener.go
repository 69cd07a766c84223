// Package server implements the accept loop: bind a TCP listener and spawn
// one Session worker per accepted connection until the listener is closed.
// SIGINT handling lives in cmd/stream_server, which calls Close.
package server

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/chromeos/stream-server/logging"
	"github.com/chromeos/stream-server/regs"
	"github.com/chromeos/stream-server/session"
)

// backlog matches the board's two concurrent capture engines: one video
// stream and one audio stream at a time. Go's net package doesn't expose
// listen(2)'s backlog argument, so a buffered channel acting as a
// counting semaphore approximates it: a third client's connection is
// still accepted (Serve's Accept is not gated), but its Session
// worker doesn't start running until a slot frees up, so a third client
// simply waits rather than contending with the two already running.
const backlog = 2

// Config bundles everything a Listener needs beyond the bind address: the
// hardware view shared read-only across every Session, the board's physical
// dump-mapper source, and where per-connection log files are written.
type Config struct {
	HW     regs.HardwareView
	DevMem string
	LogDir string

	// NewMapper constructs the per-session DumpMapper. Defaults to
	// regs.OpenDevMemMapper(DevMem); tests substitute a fake mapper so
	// Listener can be exercised without /dev/mem.
	NewMapper func() (regs.DumpMapper, error)
}

func (c Config) newMapper() (regs.DumpMapper, error) {
	if c.NewMapper != nil {
		return c.NewMapper()
	}
	return regs.OpenDevMemMapper(c.DevMem)
}

// Listener accepts TCP connections and runs one Session per connection
// until Close is called or a fatal accept error occurs.
type Listener struct {
	ln     net.Listener
	cfg    Config
	slots  chan struct{}
	connID atomic.Uint64
}

// Listen binds addr ("0.0.0.0:<port>") and returns a Listener ready to
// Serve. Go's net.Listen sets SO_REUSEADDR by default, matching the
// original's explicit setsockopt.
func Listen(addr string, cfg Config) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln, cfg: cfg, slots: make(chan struct{}, backlog)}, nil
}

// Addr returns the bound address, useful when addr was passed with a
// wildcard port for tests.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts connections until the listener is closed, spawning one
// goroutine per connection. It always returns a non-nil error (net.Listener
// semantics: a closed listener's Accept returns an error, which Serve's
// caller treats as "shut down").
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return err
		}
		id := l.connID.Add(1)
		go l.serveConn(conn, id)
	}
}

// serveConn waits for a free backlog slot, then runs one Session to
// completion. Acquiring the slot after Accept (rather than gating Accept
// itself) mirrors the original: the kernel's own accept queue absorbs a
// burst of connects, and only worker *execution* is throttled to the
// board's two concurrent capture engines.
func (l *Listener) serveConn(conn net.Conn, id uint64) {
	l.slots <- struct{}{}
	defer func() { <-l.slots }()

	log, err := logging.Open(l.cfg.LogDir, fmt.Sprintf("session_%d.log", id))
	if err != nil {
		conn.Close()
		return
	}
	defer log.Close()

	rc, err := session.NewRealConn(conn)
	if err != nil {
		log.Errorf("wrap connection: %v", err)
		conn.Close()
		return
	}

	mapper, err := l.cfg.newMapper()
	if err != nil {
		log.Errorf("open dump mapper: %v", err)
		conn.Close()
		return
	}

	sess := session.New(rc, l.cfg.HW, mapper, log)
	log.Infof("session %d started from %s", id, conn.RemoteAddr())
	if err := sess.Serve(); err != nil {
		log.Infof("session %d ended: %v", id, err)
	}
	if err := sess.Close(); err != nil {
		log.Warnf("session %d cleanup: %v", id, err)
	}
}

// Close stops accepting new connections. Sessions already running continue
// until their own loops exit.
func (l *Listener) Close() error {
	return l.ln.Close()
}
