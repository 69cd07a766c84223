package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigVideoStreamRequestRoundTrip(t *testing.T) {
	want := ConfigVideoStreamRequest{ScreenWidth: 1920, ScreenHeight: 1080}
	buf := make([]byte, ConfigVideoStreamRequestSize)
	buf[0], buf[1] = byte(want.ScreenWidth>>8), byte(want.ScreenWidth)
	buf[2], buf[3] = byte(want.ScreenHeight>>8), byte(want.ScreenHeight)

	got, err := UnmarshalConfigVideoStreamRequest(buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestUnmarshalShortPayloads(t *testing.T) {
	_, err := UnmarshalConfigVideoStreamRequest([]byte{0})
	require.Error(t, err)

	_, err = UnmarshalDumpVideoFrameRequest([]byte{0, 0, 0})
	require.Error(t, err)

	_, err = UnmarshalDumpRealtimeVideoRequest(nil)
	require.Error(t, err)

	_, err = UnmarshalDumpRealtimeAudioRequest(nil)
	require.Error(t, err)
}

func TestVideoDataStreamMarshal(t *testing.T) {
	s := VideoDataStream{FrameNumber: 50, Width: 4, Height: 2, Channel: 1}
	buf := s.Marshal()
	require.Len(t, buf, VideoDataStreamSize)
	require.Equal(t, []byte{0, 0, 0, 50}, buf[0:4])
	require.Equal(t, []byte{0, 4}, buf[4:6])
	require.Equal(t, []byte{0, 2}, buf[6:8])
	require.Equal(t, byte(1), buf[8])
}

func TestAudioDataStreamMarshal(t *testing.T) {
	s := AudioDataStream{PageCount: 0x0102_0304}
	buf := s.Marshal()
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf)
}

func TestGetVersionResponseMarshal(t *testing.T) {
	r := GetVersionResponse{Major: 1, Minor: 0}
	require.Equal(t, []byte{1, 0}, r.Marshal())
}
