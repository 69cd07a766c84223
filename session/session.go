// Package session implements the per-connection state machine: request
// decoding and dispatch, the nine handlers, the bulk dump path, and the
// two realtime dump loops.
package session

import (
	"fmt"

	"github.com/chromeos/stream-server/logging"
	"github.com/chromeos/stream-server/regs"
	"github.com/chromeos/stream-server/wire"
)

// Session is the mutable, single-goroutine state owned by one accepted
// connection. Nothing here is shared across connections; HardwareView is
// the one exception, and it is safe for concurrent read access (see
// regs.HardwareView).
type Session struct {
	conn   Conn
	hw     regs.HardwareView
	mapper regs.DumpMapper
	log    *logging.Logger
	pool   bufferPool

	// scratch is reused for every inbound receive and outbound response.
	// A handler fully parses the inbound payload into local values before
	// it ever calls sendResponse, so this reuse never clobbers data still
	// in use.
	scratch [wire.HeadSize + wire.MaxPayloadSize]byte

	messageType wire.MessageType

	screenWidth, screenHeight uint16
	shrinkWidth, shrinkHeight uint8
	isShrink                  bool

	dumpAddresses   [2]uint32
	mmapSources     [2][]byte
	mmapSize        int
	unitAlignedSize int
	dumpLimit       uint32
	dumpBuffer      []byte

	realtimeMode         RealtimeMode
	isDumpAudio          bool
	realtimeCheckChannel int
	stopDump             bool
}

// New constructs a Session over an accepted connection. hw is typically
// shared across every Session in the process; mapper and log are owned
// exclusively by this Session and released by Close.
func New(conn Conn, hw regs.HardwareView, mapper regs.DumpMapper, log *logging.Logger) *Session {
	return &Session{conn: conn, hw: hw, mapper: mapper, log: log}
}

// handlerFunc is the contract every dispatch table entry satisfies:
// consume payload (already validated against the message's declared
// length), mutate session state, and reply. A non-nil error always
// terminates the session — either because the wire-level request itself
// was malformed, or because the reply (or a subsequent stream write)
// failed at the socket.
type handlerFunc func(*Session, []byte) error

var dispatchTable = [wire.MaxMessageType]handlerFunc{
	wire.Reset:                   handleReset,
	wire.GetVersion:              handleGetVersion,
	wire.ConfigVideoStream:       handleConfigVideoStream,
	wire.ConfigShrinkVideoStream: handleConfigShrinkVideoStream,
	wire.DumpVideoFrame:          handleDumpVideoFrame,
	wire.DumpRealtimeVideoFrame:  handleDumpRealtimeVideoFrame,
	wire.StopDumpVideoFrame:      handleStopDump,
	wire.DumpRealtimeAudioPage:   handleDumpRealtimeAudioPage,
	wire.StopDumpAudioPage:       handleStopDump,
}

// Serve runs the session's main loop until a handler, a dump loop, or the
// transport itself reports failure (including a clean client
// disconnect). It never returns nil; callers should treat any return as
// "close this connection" and call Close.
func (s *Session) Serve() error {
	for {
		if err := s.processOneMessage(); err != nil {
			return err
		}
	}
}

// processOneMessage decodes one header, validates it structurally, reads
// its payload, and invokes the matching handler. This is also the entry
// point used by the realtime loops to service one interleaved control
// message mid-stream.
func (s *Session) processOneMessage() error {
	var headBuf [wire.HeadSize]byte
	if err := readFull(s.conn, headBuf[:]); err != nil {
		return err
	}
	head, err := wire.DecodeHead(headBuf[:])
	if err != nil {
		return err
	}
	if head.Kind() != wire.Request {
		return fmt.Errorf("session: unexpected main kind %d", head.Kind())
	}
	mt := head.MessageType()
	if mt >= wire.MaxMessageType {
		return fmt.Errorf("session: message type %d out of range", mt)
	}
	if head.Length > wire.MaxPayloadSize {
		return fmt.Errorf("session: payload too large: %d bytes", head.Length)
	}

	payload := s.scratch[:head.Length]
	if head.Length > 0 {
		if err := readFull(s.conn, payload); err != nil {
			return err
		}
	}

	s.messageType = mt
	return dispatchTable[mt](s, payload)
}

// sendResponse writes a Response packet: header then payload, in one
// write, reusing the scratch buffer.
func (s *Session) sendResponse(code wire.ErrorCode, payload []byte) error {
	total := wire.HeadSize + len(payload)
	head := wire.PacketHead{
		Type:      wire.MakeType(wire.Response, s.messageType),
		ErrorCode: uint16(code),
		Length:    uint32(len(payload)),
	}
	head.Encode(s.scratch[:wire.HeadSize])
	copy(s.scratch[wire.HeadSize:total], payload)
	return writeFull(s.conn, s.scratch[:total])
}

func (s *Session) sendOK() error { return s.sendResponse(wire.OK, nil) }

// sendError logs and replies with an error response. It returns a non-nil
// error only if the reply itself failed to send — the error code being
// reported is not, by itself, a session-terminating condition. Only short
// socket reads/writes and dispatcher-level rejections close the session.
func (s *Session) sendError(code wire.ErrorCode, msg string) error {
	s.log.Warnf("%s", msg)
	return s.sendResponse(code, []byte(msg))
}

func handleReset(s *Session, _ []byte) error {
	if s.realtimeMode != NonRealtime {
		return s.sendError(wire.RealtimeStreamExists, msgRealtimeStreamExists)
	}
	s.resetState()
	return s.sendOK()
}

func handleGetVersion(s *Session, _ []byte) error {
	return s.sendResponse(wire.OK, wire.GetVersionResponse{Major: 1, Minor: 0}.Marshal())
}

func handleConfigVideoStream(s *Session, payload []byte) error {
	req, err := wire.UnmarshalConfigVideoStreamRequest(payload)
	if err != nil {
		return err
	}
	s.screenWidth = req.ScreenWidth
	s.screenHeight = req.ScreenHeight
	return s.sendOK()
}

func handleConfigShrinkVideoStream(s *Session, payload []byte) error {
	req, err := wire.UnmarshalConfigShrinkVideoStreamRequest(payload)
	if err != nil {
		return err
	}
	s.shrinkWidth = req.ShrinkWidth
	s.shrinkHeight = req.ShrinkHeight
	s.isShrink = req.ShrinkWidth != 0 || req.ShrinkHeight != 0
	return s.sendOK()
}

// handleStopDump backs both StopDumpVideoFrame and StopDumpAudioPage: the
// two message types share a handler, exactly as the original driver's
// handler table repeats the same function at both ordinals.
func handleStopDump(s *Session, _ []byte) error {
	if s.realtimeMode != NonRealtime {
		s.stopDump = true
	}
	return s.sendOK()
}

// resetState zeroes every field a Reset request clears.
func (s *Session) resetState() {
	s.cleanDumpState()
	s.screenWidth, s.screenHeight = 0, 0
	s.shrinkWidth, s.shrinkHeight = 0, 0
	s.isShrink = false
}

// cleanDumpState releases dump-only state: mappings, the dump buffer, and
// realtime flags. It runs on every exit path from a dump handler (normal
// completion, validation failure, or stream end), mirroring the
// original's _CleanDumpVariable.
func (s *Session) cleanDumpState() {
	for i, mem := range s.mmapSources {
		if mem != nil {
			s.mapper.Unmap(mem)
			s.mmapSources[i] = nil
		}
		s.dumpAddresses[i] = 0
	}
	s.mmapSize = 0
	s.unitAlignedSize = 0
	s.dumpLimit = 0
	s.dumpBuffer = nil
	s.realtimeMode = NonRealtime
	s.isDumpAudio = false
	s.realtimeCheckChannel = 0
	s.stopDump = false
}

// Close releases everything a Session owns: dump mappings, the dump
// mapper's file descriptor, and the underlying connection. It mirrors the
// original's whole-session cleanup (_CleanSession), run once when Serve
// returns.
func (s *Session) Close() error {
	s.cleanDumpState()
	mapErr := s.mapper.Close()
	connErr := s.conn.Close()
	if mapErr != nil {
		return mapErr
	}
	return connErr
}
