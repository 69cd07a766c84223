package session

import (
	"encoding/binary"
	"testing"

	"github.com/chromeos/stream-server/regs"
	"github.com/chromeos/stream-server/wire"
	"github.com/stretchr/testify/require"
)

func dumpVideoFrameRequestPayload(addr1, addr2 uint32, n uint16) []byte {
	buf := make([]byte, wire.DumpVideoFrameRequestSize)
	binary.BigEndian.PutUint32(buf[0:4], addr1)
	binary.BigEndian.PutUint32(buf[4:8], addr2)
	binary.BigEndian.PutUint16(buf[8:10], n)
	return buf
}

// TestHandleDumpVideoFrameEmitsExactlyNFrames exercises the single-channel
// case: ConfigVideoStream(4,2), single channel, DumpVideoFrame(n=1) emits
// one OK response then one Data packet with the expected header and
// pixel bytes.
func TestHandleDumpVideoFrameEmitsExactlyNFrames(t *testing.T) {
	s, conn, _, mapper := newTestSession()
	s.screenWidth, s.screenHeight = 4, 2
	s.messageType = wire.DumpVideoFrame // set by processOneMessage in production

	frameBytes := 4 * 2 * 3
	unitSize := regs.PageAlignedSize(frameBytes)
	source := make([]byte, unitSize)
	for i := 0; i < frameBytes; i++ {
		source[i] = byte(i)
	}
	mapper.Put(0xA000, source)

	payload := dumpVideoFrameRequestPayload(0xA000, 0, 1)
	require.NoError(t, handleDumpVideoFrame(s, payload))

	packets := conn.readResponses()
	require.Len(t, packets, 2) // OK + one Data packet
	require.Equal(t, uint16(wire.OK), packets[0].head.ErrorCode)

	data := packets[1]
	require.Equal(t, wire.MakeType(wire.Data, wire.DumpVideoFrame), data.head.Type)
	require.Equal(t, uint32(wire.VideoDataStreamSize+frameBytes), data.head.Length)

	stream := data.payload[:wire.VideoDataStreamSize]
	require.Equal(t, uint32(0), binary.BigEndian.Uint32(stream[0:4]))
	require.Equal(t, uint16(4), binary.BigEndian.Uint16(stream[4:6]))
	require.Equal(t, uint16(2), binary.BigEndian.Uint16(stream[6:8]))
	require.Equal(t, byte(0), stream[8])
	require.Equal(t, source[:frameBytes], data.payload[wire.VideoDataStreamSize:])

	// Dump state must be fully cleaned after a bulk dump completes.
	require.Equal(t, uint32(0), s.dumpAddresses[0])
	require.Nil(t, s.mmapSources[0])
}

func TestHandleDumpVideoFrameDualChannelEmitsChannelOrder(t *testing.T) {
	s, conn, _, mapper := newTestSession()
	s.screenWidth, s.screenHeight = 2, 2
	unitSize := regs.PageAlignedSize(2 * 2 * 3)
	mapper.Put(0x1000, make([]byte, unitSize*2))
	mapper.Put(0x2000, make([]byte, unitSize*2))

	payload := dumpVideoFrameRequestPayload(0x1000, 0x2000, 2)
	require.NoError(t, handleDumpVideoFrame(s, payload))

	packets := conn.readResponses()
	// OK + 2 frames * 2 channels.
	require.Len(t, packets, 5)
	require.Equal(t, byte(0), packets[1].payload[8])
	require.Equal(t, byte(1), packets[2].payload[8])
	require.Equal(t, byte(0), packets[3].payload[8])
	require.Equal(t, byte(1), packets[4].payload[8])
}

func TestHandleDumpVideoFrameZeroCountRejected(t *testing.T) {
	// DumpVideoFrame with a zero frame count must be rejected.
	s, conn, _, _ := newTestSession()
	s.screenWidth, s.screenHeight = 4, 2

	payload := dumpVideoFrameRequestPayload(0xA000, 0, 0)
	require.NoError(t, handleDumpVideoFrame(s, payload))

	packets := conn.readResponses()
	require.Len(t, packets, 1)
	require.Equal(t, uint16(wire.Argument), packets[0].head.ErrorCode)
	require.Equal(t, msgFrameNumberZero, string(packets[0].payload))
}

func TestHandleDumpVideoFrameMapFailureCleansStateAndKeepsSessionOpen(t *testing.T) {
	s, conn, _, mapper := newTestSession()
	s.screenWidth, s.screenHeight = 4, 2
	mapper.FailMap(0xA000)

	payload := dumpVideoFrameRequestPayload(0xA000, 0, 1)
	require.NoError(t, handleDumpVideoFrame(s, payload))

	packets := conn.readResponses()
	require.Len(t, packets, 1)
	require.Equal(t, uint16(wire.Argument), packets[0].head.ErrorCode)
	require.Nil(t, s.mmapSources[0])

	// Session survives: a subsequent GetVersion still works.
	require.NoError(t, handleGetVersion(s, nil))
}
