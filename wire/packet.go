package wire

import (
	"encoding/binary"
	"fmt"
)

// MainKind is the high byte of a packet's type field.
type MainKind uint8

const (
	Request  MainKind = 0
	Response MainKind = 1
	Data     MainKind = 2
)

// MessageType is the low byte of a packet's type field. The handler table in
// package session is indexed directly by this value, so the ordinals below
// must not be renumbered without updating that table.
type MessageType uint8

const (
	Reset MessageType = iota
	GetVersion
	ConfigVideoStream
	ConfigShrinkVideoStream
	DumpVideoFrame
	DumpRealtimeVideoFrame
	StopDumpVideoFrame
	DumpRealtimeAudioPage
	StopDumpAudioPage
	MaxMessageType
)

// ErrorCode is the machine-readable discriminator carried in every response
// header. OK is the only code that does not also carry a diagnostic string
// payload.
type ErrorCode uint16

const (
	OK ErrorCode = iota
	NonSupportCommand
	Argument
	RealtimeStreamExists
	VideoMemoryOverflowStop
	VideoMemoryOverflowDrop
	AudioMemoryOverflowStop
	AudioMemoryOverflowDrop
	MemoryAllocFail
)

// HeadSize is the size in bytes of a PacketHead on the wire.
const HeadSize = 8

// MaxPayloadSize bounds the scratch buffer a Session reuses for every
// request receive and response send.
const MaxPayloadSize = 2048

// PacketHead is the fixed header that precedes every packet, request,
// response, or data alike.
type PacketHead struct {
	Type      uint16
	ErrorCode uint16
	Length    uint32
}

// MakeType packs a main kind and message type into the wire's type field.
func MakeType(kind MainKind, mt MessageType) uint16 {
	return uint16(kind)<<8 | uint16(mt)
}

// Kind returns the main kind carried in the type field (the high byte).
func (h PacketHead) Kind() MainKind {
	return MainKind(h.Type >> 8)
}

// MessageType returns the message type carried in the type field (the low
// byte).
func (h PacketHead) MessageType() MessageType {
	return MessageType(h.Type & 0xFF)
}

// Encode writes the header to buf in network byte order. buf must be at
// least HeadSize bytes.
func (h PacketHead) Encode(buf []byte) {
	binary.BigEndian.PutUint16(buf[0:2], h.Type)
	binary.BigEndian.PutUint16(buf[2:4], h.ErrorCode)
	binary.BigEndian.PutUint32(buf[4:8], h.Length)
}

// DecodeHead reads a header from buf, which must be at least HeadSize bytes.
func DecodeHead(buf []byte) (PacketHead, error) {
	if len(buf) < HeadSize {
		return PacketHead{}, fmt.Errorf("wire: short header: %d bytes", len(buf))
	}
	return PacketHead{
		Type:      binary.BigEndian.Uint16(buf[0:2]),
		ErrorCode: binary.BigEndian.Uint16(buf[2:4]),
		Length:    binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}
