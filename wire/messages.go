package wire

import (
	"encoding/binary"
	"fmt"
)

// GetVersionResponse is the payload of a successful GetVersion response.
type GetVersionResponse struct {
	Major uint8
	Minor uint8
}

func (r GetVersionResponse) Marshal() []byte {
	return []byte{r.Major, r.Minor}
}

// ConfigVideoStreamRequest is the payload of a ConfigVideoStream request.
type ConfigVideoStreamRequest struct {
	ScreenWidth  uint16
	ScreenHeight uint16
}

const ConfigVideoStreamRequestSize = 4

func UnmarshalConfigVideoStreamRequest(buf []byte) (ConfigVideoStreamRequest, error) {
	if len(buf) < ConfigVideoStreamRequestSize {
		return ConfigVideoStreamRequest{}, fmt.Errorf("wire: short ConfigVideoStreamRequest: %d bytes", len(buf))
	}
	return ConfigVideoStreamRequest{
		ScreenWidth:  binary.BigEndian.Uint16(buf[0:2]),
		ScreenHeight: binary.BigEndian.Uint16(buf[2:4]),
	}, nil
}

// ConfigShrinkVideoStreamRequest is the payload of a ConfigShrinkVideoStream
// request.
type ConfigShrinkVideoStreamRequest struct {
	ShrinkWidth  uint8
	ShrinkHeight uint8
}

const ConfigShrinkVideoStreamRequestSize = 2

func UnmarshalConfigShrinkVideoStreamRequest(buf []byte) (ConfigShrinkVideoStreamRequest, error) {
	if len(buf) < ConfigShrinkVideoStreamRequestSize {
		return ConfigShrinkVideoStreamRequest{}, fmt.Errorf("wire: short ConfigShrinkVideoStreamRequest: %d bytes", len(buf))
	}
	return ConfigShrinkVideoStreamRequest{ShrinkWidth: buf[0], ShrinkHeight: buf[1]}, nil
}

// DumpVideoFrameRequest is the payload of a DumpVideoFrame (bulk) request:
// the two candidate memory addresses to dump from plus a frame count.
// DumpRealtimeVideoFrame gets its own, smaller request type below instead
// of reusing this layout, since a realtime stream has no frame count to
// carry up front.
type DumpVideoFrameRequest struct {
	MemoryAddress1 uint32
	MemoryAddress2 uint32
	NumberOfFrames uint16
}

const DumpVideoFrameRequestSize = 10

func UnmarshalDumpVideoFrameRequest(buf []byte) (DumpVideoFrameRequest, error) {
	if len(buf) < DumpVideoFrameRequestSize {
		return DumpVideoFrameRequest{}, fmt.Errorf("wire: short DumpVideoFrameRequest: %d bytes", len(buf))
	}
	return DumpVideoFrameRequest{
		MemoryAddress1: binary.BigEndian.Uint32(buf[0:4]),
		MemoryAddress2: binary.BigEndian.Uint32(buf[4:8]),
		NumberOfFrames: binary.BigEndian.Uint16(buf[8:10]),
	}, nil
}

// DumpRealtimeVideoRequest is the payload of a DumpRealtimeVideoFrame
// request.
type DumpRealtimeVideoRequest struct {
	IsDual uint8
	Mode   uint8
}

const DumpRealtimeVideoRequestSize = 2

func UnmarshalDumpRealtimeVideoRequest(buf []byte) (DumpRealtimeVideoRequest, error) {
	if len(buf) < DumpRealtimeVideoRequestSize {
		return DumpRealtimeVideoRequest{}, fmt.Errorf("wire: short DumpRealtimeVideoRequest: %d bytes", len(buf))
	}
	return DumpRealtimeVideoRequest{IsDual: buf[0], Mode: buf[1]}, nil
}

// VideoDataStream is the stream header that precedes the raw pixel bytes of
// one emitted video frame in a Data packet.
type VideoDataStream struct {
	FrameNumber uint32
	Width       uint16
	Height      uint16
	Channel     uint8
	// padding[3] keeps the struct's on-wire size at 12 bytes.
}

const VideoDataStreamSize = 12

func (s VideoDataStream) Marshal() []byte {
	buf := make([]byte, VideoDataStreamSize)
	binary.BigEndian.PutUint32(buf[0:4], s.FrameNumber)
	binary.BigEndian.PutUint16(buf[4:6], s.Width)
	binary.BigEndian.PutUint16(buf[6:8], s.Height)
	buf[8] = s.Channel
	return buf
}

// DumpRealtimeAudioRequest is the payload of a DumpRealtimeAudioPage
// request.
type DumpRealtimeAudioRequest struct {
	Mode uint8
}

const DumpRealtimeAudioRequestSize = 1

func UnmarshalDumpRealtimeAudioRequest(buf []byte) (DumpRealtimeAudioRequest, error) {
	if len(buf) < DumpRealtimeAudioRequestSize {
		return DumpRealtimeAudioRequest{}, fmt.Errorf("wire: short DumpRealtimeAudioRequest: %d bytes", len(buf))
	}
	return DumpRealtimeAudioRequest{Mode: buf[0]}, nil
}

// AudioDataStream is the stream header that precedes the raw page bytes of
// one emitted audio page in a Data packet.
type AudioDataStream struct {
	PageCount uint32
}

const AudioDataStreamSize = 4

func (s AudioDataStream) Marshal() []byte {
	buf := make([]byte, AudioDataStreamSize)
	binary.BigEndian.PutUint32(buf[0:4], s.PageCount)
	return buf
}
