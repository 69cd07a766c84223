package session

import (
	"encoding/binary"
	"testing"

	"github.com/chromeos/stream-server/regs"
	"github.com/chromeos/stream-server/wire"
	"github.com/stretchr/testify/require"
)

func dumpRealtimeVideoRequestPayload(isDual, mode uint8) []byte {
	return []byte{isDual, mode}
}

func dumpRealtimeAudioRequestPayload(mode uint8) []byte {
	return []byte{mode}
}

// setupRealtimeVideoFixture wires a FakeView/FakeMapper pair describing a
// running, single-channel board ready to accept a realtime video request:
// 4x2 frames, dump_limit=8, plenty of dump memory.
func setupRealtimeVideoFixture(t *testing.T) (*Session, *fakeConn, *regs.FakeView, *regs.FakeMapper, int) {
	t.Helper()
	s, conn, hw, mapper := newTestSession()
	s.messageType = wire.DumpRealtimeVideoFrame // set by processOneMessage in production

	hw.VideoRunBits[0] = 1
	hw.VideoWidth[0] = 4
	hw.VideoHeight[0] = 2
	hw.VideoLimit[0] = 8
	hw.VideoStart[0] = 0x1000
	hw.VideoEnd[0] = 0x100000

	unitSize := regs.PageAlignedSize(4 * 2 * 3)
	backing := make([]byte, 8*unitSize)
	mapper.Put(0x1000, backing)

	return s, conn, hw, mapper, unitSize
}

func TestHandleDumpRealtimeVideoFrameRejectedWhenAlreadyActive(t *testing.T) {
	s, conn, _, _, _ := setupRealtimeVideoFixture(t)
	s.realtimeMode = BestEffort

	require.NoError(t, handleDumpRealtimeVideoFrame(s, dumpRealtimeVideoRequestPayload(0, uint8(BestEffort))))
	resp := conn.readResponses()
	require.Len(t, resp, 1)
	require.Equal(t, uint16(wire.RealtimeStreamExists), resp[0].head.ErrorCode)
}

func TestHandleDumpRealtimeVideoFrameRejectedWhenHardwareNotRunning(t *testing.T) {
	s, conn, hw, _, _ := setupRealtimeVideoFixture(t)
	hw.VideoRunBits[0] = 0

	require.NoError(t, handleDumpRealtimeVideoFrame(s, dumpRealtimeVideoRequestPayload(0, uint8(BestEffort))))
	resp := conn.readResponses()
	require.Len(t, resp, 1)
	require.Equal(t, uint16(wire.Argument), resp[0].head.ErrorCode)
	require.Equal(t, msgHardwareNotRunning, string(resp[0].payload))
}

// TestHandleDumpRealtimeVideoFrameStopWhenOverflowEndsCleanly covers the
// StopWhenOverflow branch: the hardware having lapped the reader emits
// one overflow-stop response and the stream returns without emitting any
// Data packet.
func TestHandleDumpRealtimeVideoFrameStopWhenOverflowEndsCleanly(t *testing.T) {
	s, conn, hw, _, _ := setupRealtimeVideoFixture(t)
	hw.VideoCount[0] = 50 // hw has already lapped an 8-unit ring before the stream even starts

	require.NoError(t, handleDumpRealtimeVideoFrame(s, dumpRealtimeVideoRequestPayload(0, uint8(StopWhenOverflow))))

	packets := conn.readResponses()
	require.Len(t, packets, 2) // OK (setup) + overflow-stop
	require.Equal(t, uint16(wire.OK), packets[0].head.ErrorCode)
	require.Equal(t, uint16(wire.VideoMemoryOverflowStop), packets[1].head.ErrorCode)
	require.Equal(t, NonRealtime, s.realtimeMode, "cleanDumpState must run after the loop returns")
}

// TestHandleDumpRealtimeVideoFrameBestEffortDropsThenEmits covers the
// BestEffort branch: it skips to the latest hw-produced unit, reporting
// the drop, then resumes emission tagged with that frame number.
func TestHandleDumpRealtimeVideoFrameBestEffortDropsThenEmits(t *testing.T) {
	s, conn, hw, _, unitSize := setupRealtimeVideoFixture(t)
	hw.VideoCount[0] = 50
	// The loop's first Ready() poll (before any hw comparison) must see no
	// pending request so the overflow-drop branch actually runs; the Stop
	// is injected on the loop's *second* poll, right after the drop.
	conn.injectAt = 2

	require.NoError(t, handleDumpRealtimeVideoFrame(s, dumpRealtimeVideoRequestPayload(0, uint8(BestEffort))))

	packets := conn.readResponses()
	require.GreaterOrEqual(t, len(packets), 3) // OK, drop notice, one Data frame, (Stop's own OK)
	require.Equal(t, uint16(wire.OK), packets[0].head.ErrorCode)
	require.Equal(t, uint16(wire.VideoMemoryOverflowDrop), packets[1].head.ErrorCode)
	require.Equal(t, "Drop realtime video frame 50", string(packets[1].payload))

	data := packets[2]
	require.Equal(t, wire.MakeType(wire.Data, wire.DumpRealtimeVideoFrame), data.head.Type)
	stream := data.payload[:wire.VideoDataStreamSize]
	require.Equal(t, uint32(50), binary.BigEndian.Uint32(stream[0:4]))
	_ = unitSize
}

func TestHandleDumpRealtimeVideoFrameDualChannelWidthMismatchRejected(t *testing.T) {
	s, conn, hw, mapper, _ := setupRealtimeVideoFixture(t)
	hw.VideoRunBits[1] = 1
	hw.VideoWidth[1] = 999
	hw.VideoHeight[1] = 2
	hw.VideoLimit[1] = 8
	hw.VideoStart[1] = 0x2000
	hw.VideoEnd[1] = 0x200000
	mapper.Put(0x2000, make([]byte, 8*regs.PageAlignedSize(999*2*3)))

	require.NoError(t, handleDumpRealtimeVideoFrame(s, dumpRealtimeVideoRequestPayload(1, uint8(BestEffort))))
	resp := conn.readResponses()
	require.Len(t, resp, 1)
	require.Equal(t, uint16(wire.Argument), resp[0].head.ErrorCode)
	require.Equal(t, msgChannelsMismatched, string(resp[0].payload))
}

func TestHandleDumpRealtimeAudioPageStopDuringStream(t *testing.T) {
	// A Stop arriving mid-stream must end the audio realtime loop cleanly.
	s, conn, hw, mapper := newTestSession()
	hw.AudioRunBit = 1
	hw.AudioStart = 0
	hw.AudioEnd = 4096 * 8
	mapper.Put(0, make([]byte, 4096*8))
	conn.injectAt = 1 // Stop arrives on the loop's first socket poll, before any hw progress

	require.NoError(t, handleDumpRealtimeAudioPage(s, dumpRealtimeAudioRequestPayload(uint8(BestEffort))))

	packets := conn.readResponses()
	require.Len(t, packets, 2) // OK (setup) + OK (Stop's inline reply)
	require.Equal(t, uint16(wire.OK), packets[0].head.ErrorCode)
	require.Equal(t, uint16(wire.OK), packets[1].head.ErrorCode)
	require.Equal(t, NonRealtime, s.realtimeMode)

	// Reset now succeeds since the stream has ended.
	require.NoError(t, handleReset(s, nil))
}

func TestHandleDumpRealtimeAudioPageRejectsSecondRealtimeRequest(t *testing.T) {
	s, conn, _, _ := newTestSession()
	s.realtimeMode = StopWhenOverflow

	require.NoError(t, handleDumpRealtimeAudioPage(s, dumpRealtimeAudioRequestPayload(uint8(BestEffort))))
	resp := conn.readResponses()
	require.Len(t, resp, 1)
	require.Equal(t, uint16(wire.RealtimeStreamExists), resp[0].head.ErrorCode)
}
