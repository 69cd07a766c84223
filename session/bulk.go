package session

import (
	"github.com/chromeos/stream-server/regs"
	"github.com/chromeos/stream-server/wire"
)

// handleDumpVideoFrame serves a finite-count ("bulk") dump: map the
// requested addresses for exactly number_of_frames units, reply OK, then
// stream that many frames and clean up unconditionally.
func handleDumpVideoFrame(s *Session, payload []byte) error {
	req, err := wire.UnmarshalDumpVideoFrameRequest(payload)
	if err != nil {
		return err
	}
	if req.NumberOfFrames == 0 {
		return s.sendError(wire.Argument, msgFrameNumberZero)
	}

	s.unitAlignedSize = regs.PageAlignedSize(int(s.screenWidth) * int(s.screenHeight) * 3)

	buf, err := s.pool.get(s.unitAlignedSize)
	if err != nil {
		return s.sendError(wire.MemoryAllocFail, msgMemoryAllocFail)
	}
	s.dumpBuffer = buf

	addrs := [2]uint32{req.MemoryAddress1, req.MemoryAddress2}
	size := int(req.NumberOfFrames) * s.unitAlignedSize
	for i, addr := range addrs {
		if addr == 0 {
			continue
		}
		mem, err := s.mapper.Map(addr, size)
		if err != nil {
			s.cleanDumpState()
			return s.sendError(wire.Argument, msgMemoryMapFail)
		}
		s.mmapSources[i] = mem
		s.dumpAddresses[i] = addr
	}

	if err := s.sendOK(); err != nil {
		s.cleanDumpState()
		return err
	}

	err = s.runBulkDumpLoop(int(req.NumberOfFrames))
	s.cleanDumpState()
	return err
}

// runBulkDumpLoop emits number_of_frames units, each active channel in
// turn, in increasing frame_number order (testable property 8).
func (s *Session) runBulkDumpLoop(numberOfFrames int) error {
	for i := 0; i < numberOfFrames; i++ {
		offset := i * s.unitAlignedSize
		for ch := 0; ch < 2; ch++ {
			mem := s.mmapSources[ch]
			if mem == nil {
				continue
			}
			frame := s.copyVideoUnit(mem[offset : offset+s.unitAlignedSize])
			stream := wire.VideoDataStream{
				FrameNumber: uint32(i),
				Width:       s.emittedWidth(),
				Height:      s.emittedHeight(),
				Channel:     uint8(ch),
			}
			if err := s.sendVideoData(stream, frame); err != nil {
				return err
			}
		}
	}
	return nil
}

// sendVideoData emits one Data/DumpVideoFrame packet: PacketHead +
// VideoDataStream in one write, then the frame bytes in a second write.
func (s *Session) sendVideoData(stream wire.VideoDataStream, frame []byte) error {
	streamBuf := stream.Marshal()
	head := wire.PacketHead{
		Type:   wire.MakeType(wire.Data, s.messageType),
		Length: uint32(wire.VideoDataStreamSize + len(frame)),
	}
	total := wire.HeadSize + len(streamBuf)
	head.Encode(s.scratch[:wire.HeadSize])
	copy(s.scratch[wire.HeadSize:total], streamBuf)
	if err := writeFull(s.conn, s.scratch[:total]); err != nil {
		return err
	}
	return writeFull(s.conn, frame)
}

// sendAudioData emits one Data/DumpRealtimeAudioPage packet: PacketHead +
// AudioDataStream in one write, then the 4096-byte page in a second
// write.
func (s *Session) sendAudioData(stream wire.AudioDataStream, page []byte) error {
	streamBuf := stream.Marshal()
	head := wire.PacketHead{
		Type:   wire.MakeType(wire.Data, s.messageType),
		Length: uint32(wire.AudioDataStreamSize + len(page)),
	}
	total := wire.HeadSize + len(streamBuf)
	head.Encode(s.scratch[:wire.HeadSize])
	copy(s.scratch[wire.HeadSize:total], streamBuf)
	if err := writeFull(s.conn, s.scratch[:total]); err != nil {
		return err
	}
	return writeFull(s.conn, page)
}
