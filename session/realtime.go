package session

import (
	"fmt"

	"github.com/chromeos/stream-server/regs"
	"github.com/chromeos/stream-server/wire"
)

// channelFrameDimensions returns the frame width/height a realtime video
// stream should use for ch: the crop window if crop is enabled, otherwise
// the channel's native frame_width/frame_height.
func (s *Session) channelFrameDimensions(ch int) (uint16, uint16) {
	if s.hw.VideoCropEnable(ch) != 0 {
		crop := s.hw.VideoCrop(ch)
		return uint16(crop.Right - crop.Left), uint16(crop.Bottom - crop.Top)
	}
	return uint16(s.hw.VideoFrameWidth(ch)), uint16(s.hw.VideoFrameHeight(ch))
}

// handleDumpRealtimeVideoFrame validates and maps a realtime video
// stream, replies OK, then runs the realtime video loop until Stop,
// clean overflow-stop, or a socket failure.
func handleDumpRealtimeVideoFrame(s *Session, payload []byte) error {
	if s.realtimeMode != NonRealtime {
		return s.sendError(wire.RealtimeStreamExists, msgRealtimeStreamExists)
	}
	req, err := wire.UnmarshalDumpRealtimeVideoRequest(payload)
	if err != nil {
		return err
	}
	mode, ok := parseRealtimeMode(req.Mode)
	if !ok {
		return s.sendError(wire.Argument, msgRealtimeModeWrong)
	}

	checkChannel := 0
	if s.hw.VideoRun(0) == 0 {
		checkChannel = 1
	}
	if s.hw.VideoRun(checkChannel) == 0 {
		return s.sendError(wire.Argument, msgHardwareNotRunning)
	}

	width, height := s.channelFrameDimensions(checkChannel)
	unitAlignedSize := regs.PageAlignedSize(int(width) * int(height) * 3)
	dumpLimit := s.hw.VideoDumpLimit(checkChannel)
	startAddr := s.hw.VideoDumpStartAddress(checkChannel)
	endAddr := s.hw.VideoDumpEndAddress(checkChannel)
	if endAddr-startAddr <= dumpLimit*uint32(unitAlignedSize) {
		return s.sendError(wire.Argument, msgDumpMemoryNotEnough)
	}

	isDual := req.IsDual != 0
	otherChannel := 1 - checkChannel
	if isDual {
		if s.hw.VideoRun(otherChannel) == 0 {
			return s.sendError(wire.Argument, msgSecondChannelStopped)
		}
		otherWidth, otherHeight := s.channelFrameDimensions(otherChannel)
		if otherWidth != width || otherHeight != height || s.hw.VideoDumpLimit(otherChannel) != dumpLimit {
			return s.sendError(wire.Argument, msgChannelsMismatched)
		}
	}

	s.screenWidth, s.screenHeight = width, height
	s.unitAlignedSize = unitAlignedSize
	s.dumpLimit = dumpLimit
	s.realtimeCheckChannel = checkChannel

	size := int(dumpLimit) * unitAlignedSize
	channels := []int{checkChannel}
	if isDual {
		channels = append(channels, otherChannel)
	}
	for _, ch := range channels {
		addr := s.hw.VideoDumpStartAddress(ch)
		mem, err := s.mapper.Map(addr, size)
		if err != nil {
			s.cleanDumpState()
			return s.sendError(wire.Argument, msgMemoryMapFail)
		}
		s.mmapSources[ch] = mem
		s.dumpAddresses[ch] = addr
	}

	buf, err := s.pool.get(unitAlignedSize)
	if err != nil {
		s.cleanDumpState()
		return s.sendError(wire.MemoryAllocFail, msgMemoryAllocFail)
	}
	s.dumpBuffer = buf
	s.realtimeMode = mode

	if err := s.sendOK(); err != nil {
		s.cleanDumpState()
		return err
	}

	err = s.runRealtimeVideoLoop()
	s.cleanDumpState()
	return err
}

// handleDumpRealtimeAudioPage validates and maps a realtime audio stream,
// replies OK, then runs the realtime audio loop.
func handleDumpRealtimeAudioPage(s *Session, payload []byte) error {
	if s.realtimeMode != NonRealtime {
		return s.sendError(wire.RealtimeStreamExists, msgRealtimeStreamExists)
	}
	req, err := wire.UnmarshalDumpRealtimeAudioRequest(payload)
	if err != nil {
		return err
	}
	mode, ok := parseRealtimeMode(req.Mode)
	if !ok {
		return s.sendError(wire.Argument, msgRealtimeModeWrong)
	}
	if s.hw.AudioRun() == 0 {
		return s.sendError(wire.Argument, msgHardwareNotRunning)
	}

	const audioUnitSize = 4096
	s.unitAlignedSize = audioUnitSize
	startAddr := s.hw.AudioDumpStartAddress()
	endAddr := s.hw.AudioDumpEndAddress()
	s.dumpLimit = (endAddr - startAddr) / audioUnitSize

	mem, err := s.mapper.Map(startAddr, int(s.dumpLimit)*audioUnitSize)
	if err != nil {
		s.cleanDumpState()
		return s.sendError(wire.Argument, msgMemoryMapFail)
	}
	s.mmapSources[0] = mem
	s.dumpAddresses[0] = startAddr

	buf, err := s.pool.get(audioUnitSize)
	if err != nil {
		s.cleanDumpState()
		return s.sendError(wire.MemoryAllocFail, msgMemoryAllocFail)
	}
	s.dumpBuffer = buf
	s.realtimeMode = mode
	s.isDumpAudio = true

	if err := s.sendOK(); err != nil {
		s.cleanDumpState()
		return err
	}

	err = s.runRealtimeAudioLoop()
	s.cleanDumpState()
	return err
}

// runRealtimeVideoLoop polls the socket, services one interleaved
// request if any, then compares the software count against the
// hardware's frame counter and acts on the resulting dumpOutcome.
func (s *Session) runRealtimeVideoLoop() error {
	var count uint32
	for {
		ready, err := s.conn.Ready()
		if err != nil {
			return err
		}
		if ready {
			if err := s.processOneMessage(); err != nil {
				return err
			}
		}
		if s.stopDump {
			s.stopDump = false
			return nil
		}

		hw := s.hw.VideoFrameCount(s.realtimeCheckChannel)
		outcome := nextDumpOutcome(count, hw, s.dumpLimit, s.realtimeMode)
		switch outcome.kind {
		case outcomeNoProgress:
			continue
		case outcomeStopClean:
			return s.sendError(wire.VideoMemoryOverflowStop, msgOverflowStop)
		case outcomeOverflowDrop:
			if err := s.sendError(wire.VideoMemoryOverflowDrop, fmt.Sprintf(dropVideoFrameFmt, outcome.dropped)); err != nil {
				return err
			}
			if err := s.emitVideoUnit(outcome.emit); err != nil {
				return err
			}
			count = outcome.next
		case outcomeAdvance:
			if err := s.emitVideoUnit(outcome.emit); err != nil {
				return err
			}
			count = outcome.next
		}
	}
}

// emitVideoUnit sends frameNumber's unit on every active channel, in
// channel order. Width/height are read from session state fresh on every
// call, so a mid-stream ConfigShrinkVideoStream takes effect on the very
// next emission without any separate "recompute the cached header" step.
func (s *Session) emitVideoUnit(frameNumber uint32) error {
	slot := frameNumber % s.dumpLimit
	offset := int(slot) * s.unitAlignedSize
	for ch := 0; ch < 2; ch++ {
		mem := s.mmapSources[ch]
		if mem == nil {
			continue
		}
		frame := s.copyVideoUnit(mem[offset : offset+s.unitAlignedSize])
		stream := wire.VideoDataStream{
			FrameNumber: frameNumber,
			Width:       s.emittedWidth(),
			Height:      s.emittedHeight(),
			Channel:     uint8(ch),
		}
		if err := s.sendVideoData(stream, frame); err != nil {
			return err
		}
	}
	return nil
}

// runRealtimeAudioLoop is the audio analogue of runRealtimeVideoLoop. It
// saves and restores message_type around an interleaved request so the
// outer loop's Data packets keep being tagged DumpRealtimeAudioPage even
// if the interleaved request was some other type.
func (s *Session) runRealtimeAudioLoop() error {
	var count uint32
	for {
		ready, err := s.conn.Ready()
		if err != nil {
			return err
		}
		if ready {
			saved := s.messageType
			procErr := s.processOneMessage()
			s.messageType = saved
			if procErr != nil {
				return procErr
			}
		}
		if s.stopDump {
			s.stopDump = false
			return nil
		}

		hw := s.hw.AudioPageCount()
		outcome := nextDumpOutcome(count, hw, s.dumpLimit, s.realtimeMode)
		switch outcome.kind {
		case outcomeNoProgress:
			continue
		case outcomeStopClean:
			return s.sendError(wire.AudioMemoryOverflowStop, msgOverflowStop)
		case outcomeOverflowDrop:
			if err := s.sendError(wire.AudioMemoryOverflowDrop, fmt.Sprintf(dropAudioPageFmt, outcome.dropped)); err != nil {
				return err
			}
			if err := s.emitAudioUnit(outcome.emit); err != nil {
				return err
			}
			count = outcome.next
		case outcomeAdvance:
			if err := s.emitAudioUnit(outcome.emit); err != nil {
				return err
			}
			count = outcome.next
		}
	}
}

func (s *Session) emitAudioUnit(pageCount uint32) error {
	slot := pageCount % s.dumpLimit
	offset := int(slot) * s.unitAlignedSize
	page := s.dumpBuffer[:s.unitAlignedSize]
	copy(page, s.mmapSources[0][offset:offset+s.unitAlignedSize])
	return s.sendAudioData(wire.AudioDataStream{PageCount: pageCount}, page)
}
