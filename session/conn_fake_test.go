package session

import (
	"bytes"

	"github.com/chromeos/stream-server/wire"
)

// fakeConn is the in-memory Conn used by every test in this package: an
// inbound byte queue a test can append request frames to, an outbound
// buffer a test can inspect, and a controllable Ready() so a realtime
// loop test can deterministically interleave a control message partway
// through the loop without any real socket or goroutine.
type fakeConn struct {
	in     bytes.Buffer
	out    bytes.Buffer
	closed bool

	readyCalls int
	// injectAt, when > 0, pushes a StopDumpVideoFrame request into `in`
	// the moment Ready() is called for the injectAt'th time, simulating a
	// control message arriving mid-loop.
	injectAt int
}

var _ Conn = (*fakeConn)(nil)

func (c *fakeConn) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *fakeConn) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *fakeConn) Close() error                { c.closed = true; return nil }

func (c *fakeConn) Ready() (bool, error) {
	c.readyCalls++
	if c.injectAt > 0 && c.readyCalls == c.injectAt {
		c.pushRequest(wire.StopDumpVideoFrame, nil)
	}
	return c.in.Len() > 0, nil
}

// pushRequest appends one framed Request to the inbound queue.
func (c *fakeConn) pushRequest(mt wire.MessageType, payload []byte) {
	head := wire.PacketHead{Type: wire.MakeType(wire.Request, mt), Length: uint32(len(payload))}
	buf := make([]byte, wire.HeadSize)
	head.Encode(buf)
	c.in.Write(buf)
	c.in.Write(payload)
}

// readResponses decodes every complete packet currently in the outbound
// buffer, returning them in emission order.
func (c *fakeConn) readResponses() []decodedPacket {
	var out []decodedPacket
	buf := c.out.Bytes()
	for len(buf) >= wire.HeadSize {
		head, err := wire.DecodeHead(buf[:wire.HeadSize])
		if err != nil {
			break
		}
		end := wire.HeadSize + int(head.Length)
		if len(buf) < end {
			break
		}
		out = append(out, decodedPacket{head: head, payload: buf[wire.HeadSize:end]})
		buf = buf[end:]
	}
	return out
}

type decodedPacket struct {
	head    wire.PacketHead
	payload []byte
}
