package session

// emittedWidth and emittedHeight are the decimated output dimensions for
// the session's current shrink configuration: keep one pixel then skip
// shrink_width, one row then skip shrink_height.
func (s *Session) emittedWidth() uint16 {
	return s.screenWidth / (uint16(s.shrinkWidth) + 1)
}

func (s *Session) emittedHeight() uint16 {
	return s.screenHeight / (uint16(s.shrinkHeight) + 1)
}

// copyVideoUnit extracts one emitted frame from src, a ring slot at least
// screen_width*screen_height*3 bytes long (it may be larger: ring slots
// are page-rounded), applying the session's shrink configuration if any.
// The result is s.dumpBuffer, sized to exactly this frame and reused
// across every emitted unit so a dump never allocates per frame.
func (s *Session) copyVideoUnit(src []byte) []byte {
	if !s.isShrink {
		rawSize := int(s.screenWidth) * int(s.screenHeight) * 3
		out := s.dumpBuffer[:rawSize]
		copy(out, src[:rawSize])
		return out
	}
	return s.shrinkFrame(src)
}

// shrinkFrame sub-samples src into s.dumpBuffer. Below a shrink factor of
// 4 in either dimension, a strided read directly against the mapped
// hardware window thrashes it; the whole frame is copied into
// s.dumpBuffer once and decimated in place from there instead, writing
// from offset 0 while reading ahead of the write cursor (the write
// cursor never overtakes the read cursor, since every kept pixel reads
// from strictly further into the frame than it writes). At shrink
// factors of 4 or higher the strided read is cheap enough to decimate
// straight out of src into s.dumpBuffer with no pre-copy.
func (s *Session) shrinkFrame(src []byte) []byte {
	width := int(s.screenWidth)
	sw := int(s.shrinkWidth)
	sh := int(s.shrinkHeight)
	outW := int(s.emittedWidth())
	outH := int(s.emittedHeight())

	source := src
	if sw < 4 || sh < 4 {
		cp := s.dumpBuffer[:len(src)]
		copy(cp, src)
		source = cp
	}

	size := 0
	for row := 0; row < outH; row++ {
		srcRowOff := row * (sh + 1) * width * 3
		for col := 0; col < outW; col++ {
			srcOff := srcRowOff + col*(sw+1)*3
			copy(s.dumpBuffer[size:size+3], source[srcOff:srcOff+3])
			size += 3
		}
	}
	return s.dumpBuffer[:size]
}
