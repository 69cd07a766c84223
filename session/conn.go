package session

import (
	"errors"
	"io"
	"net"

	sys "golang.org/x/sys/unix"
)

// Conn is the socket contract a Session depends on. RealConn is the
// production implementation over a TCP connection; tests substitute an
// in-memory fake so the state machine and both dump loops can be exercised
// without a real socket.
type Conn interface {
	io.Reader
	io.Writer
	// Ready reports, without blocking, whether a Read would return data
	// immediately. It is the non-blocking poll the realtime loops use to
	// multiplex control messages onto the same socket as the data stream.
	Ready() (bool, error)
	Close() error
}

// RealConn wraps a *net.TCPConn, polling its file descriptor the way the
// teacher's v4l2 package polls a capture device's fd (see
// v4l2/syscalls.go's WaitForRead), generalized here from a blocking
// select-with-timeout to a zero-timeout poll so the realtime loop never
// blocks on the socket.
type RealConn struct {
	tcp *net.TCPConn
}

var _ Conn = (*RealConn)(nil)

// NewRealConn wraps c. c must be a *net.TCPConn, as returned by
// net.Listener.Accept on a TCP listener.
func NewRealConn(c net.Conn) (*RealConn, error) {
	tcp, ok := c.(*net.TCPConn)
	if !ok {
		return nil, errors.New("session: connection is not a *net.TCPConn")
	}
	return &RealConn{tcp: tcp}, nil
}

func (c *RealConn) Read(p []byte) (int, error)  { return c.tcp.Read(p) }
func (c *RealConn) Write(p []byte) (int, error) { return c.tcp.Write(p) }
func (c *RealConn) Close() error                { return c.tcp.Close() }

func (c *RealConn) Ready() (bool, error) {
	raw, err := c.tcp.SyscallConn()
	if err != nil {
		return false, err
	}

	var ready bool
	var pollErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		fds := []sys.PollFd{{Fd: int32(fd), Events: sys.POLLIN | sys.POLLPRI}}
		n, err := sys.Poll(fds, 0)
		if err != nil && err != sys.EINTR {
			pollErr = err
			return
		}
		ready = n > 0
	})
	if ctrlErr != nil {
		return false, ctrlErr
	}
	return ready, pollErr
}

// readFull reads exactly len(buf) bytes. A short read always terminates
// the session.
func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errConnClosed
	}
	return err
}

// writeFull writes exactly len(buf) bytes.
func writeFull(w io.Writer, buf []byte) error {
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return errShortWrite
	}
	return nil
}

var (
	errConnClosed = errors.New("session: client disconnected")
	errShortWrite = errors.New("session: short write")
)
