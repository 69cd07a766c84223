package regs

import (
	"encoding/binary"
	"fmt"

	sys "golang.org/x/sys/unix"
)

// Register offsets are word indices (4 bytes each) into a controller's
// mapped window, carried over from the board's fixed register layout.
const (
	videoRegControl       = 0x0
	videoRegOverflow      = 0x1
	videoRegStartAddress  = 0x2
	videoRegEndAddress    = 0x3
	videoRegDumpLoop      = 0x4
	videoRegDumpLimit     = 0x5
	videoRegFrameWidth    = 0x6
	videoRegFrameHeight   = 0x7
	videoRegFrameCount    = 0x8
	videoRegCropLeftRight = 0x9
	videoRegCropTopBottom = 0xA
)

const (
	audioRegControl      = 0x0
	audioRegOverflow     = 0x1
	audioRegStartAddress = 0x2
	audioRegEndAddress   = 0x3
	audioRegDumpLoop     = 0x4
	audioRegPageCount    = 0x5
)

const (
	videoControlMaskClock    = 0x2
	videoControlShiftClock   = 1
	videoControlMaskRun      = 0xC
	videoControlShiftRun     = 2
	videoControlMaskHashMode = 0x10
	videoControlShiftHash    = 4
	videoControlMaskCrop     = 0x20
	videoControlShiftCrop    = 5

	audioControlMaskRun  = 0x2
	audioOverflowMaskBit = 0x1
)

// armMemoryOffset is added to every dump start/end address the board
// reports, so that callers can pass the result straight to DumpMapper.Map.
const armMemoryOffset = 0xC0000000

// BoardAddresses is the physical layout of a board's register windows.
// DefaultBoardAddresses holds the original board's fixed layout; a
// deployment targeting a board with a different layout can override it (see
// cmd/stream_server's -config flag).
type BoardAddresses struct {
	VideoA     uint64
	VideoB     uint64
	Audio      uint64
	VideoSize  int
	AudioSize  int
	DevMemPath string
}

// DefaultBoardAddresses is the original board's register layout.
var DefaultBoardAddresses = BoardAddresses{
	VideoA:     0xFF210000,
	VideoB:     0xFF211000,
	Audio:      0xFF212000,
	VideoSize:  0x400,
	AudioSize:  0x18,
	DevMemPath: "/dev/mem",
}

// Board is the real, memory-mapped HardwareView over /dev/mem.
type Board struct {
	fd           int
	videoWindows [2][]byte
	audioWindow  []byte
}

var _ HardwareView = (*Board)(nil)

// Open memory-maps the board's three register windows read-only.
func Open(addrs BoardAddresses) (*Board, error) {
	fd, err := sys.Open(addrs.DevMemPath, sys.O_RDWR|sys.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("regs: open %s: %w", addrs.DevMemPath, err)
	}

	b := &Board{fd: fd}
	for i, base := range []uint64{addrs.VideoA, addrs.VideoB} {
		win, err := sys.Mmap(fd, int64(base), addrs.VideoSize, sys.PROT_READ, sys.MAP_SHARED)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("regs: mmap video controller %d: %w", i, err)
		}
		b.videoWindows[i] = win
	}

	audio, err := sys.Mmap(fd, int64(addrs.Audio), addrs.AudioSize, sys.PROT_READ, sys.MAP_SHARED)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("regs: mmap audio controller: %w", err)
	}
	b.audioWindow = audio

	return b, nil
}

// Close unmaps every register window and closes the underlying file
// descriptor. It is safe to call more than once.
func (b *Board) Close() error {
	for i, win := range b.videoWindows {
		if win != nil {
			sys.Munmap(win)
			b.videoWindows[i] = nil
		}
	}
	if b.audioWindow != nil {
		sys.Munmap(b.audioWindow)
		b.audioWindow = nil
	}
	if b.fd != 0 {
		err := sys.Close(b.fd)
		b.fd = 0
		return err
	}
	return nil
}

func readWord(win []byte, offset int) uint32 {
	i := offset * 4
	return binary.NativeEndian.Uint32(win[i : i+4])
}

func maskShiftRight(value uint32, mask, shift int) uint32 {
	return (value & uint32(mask)) >> uint(shift)
}

func (b *Board) videoControl(channel int) uint32 {
	return readWord(b.videoWindows[channel], videoRegControl)
}

func (b *Board) VideoClock(channel int) uint32 {
	return maskShiftRight(b.videoControl(channel), videoControlMaskClock, videoControlShiftClock)
}

func (b *Board) VideoRun(channel int) uint32 {
	return maskShiftRight(b.videoControl(channel), videoControlMaskRun, videoControlShiftRun)
}

func (b *Board) VideoHashMode(channel int) uint32 {
	return maskShiftRight(b.videoControl(channel), videoControlMaskHashMode, videoControlShiftHash)
}

func (b *Board) VideoCropEnable(channel int) uint32 {
	return maskShiftRight(b.videoControl(channel), videoControlMaskCrop, videoControlShiftCrop)
}

func (b *Board) VideoOverflow(channel int) uint32 {
	return readWord(b.videoWindows[channel], videoRegOverflow) & 0x1
}

func (b *Board) VideoDumpStartAddress(channel int) uint32 {
	return readWord(b.videoWindows[channel], videoRegStartAddress) + armMemoryOffset
}

func (b *Board) VideoDumpEndAddress(channel int) uint32 {
	return readWord(b.videoWindows[channel], videoRegEndAddress) + armMemoryOffset
}

func (b *Board) VideoDumpLoop(channel int) uint32 {
	return readWord(b.videoWindows[channel], videoRegDumpLoop)
}

func (b *Board) VideoDumpLimit(channel int) uint32 {
	return readWord(b.videoWindows[channel], videoRegDumpLimit)
}

func (b *Board) VideoFrameWidth(channel int) uint32 {
	return readWord(b.videoWindows[channel], videoRegFrameWidth)
}

func (b *Board) VideoFrameHeight(channel int) uint32 {
	return readWord(b.videoWindows[channel], videoRegFrameHeight)
}

func (b *Board) VideoFrameCount(channel int) uint32 {
	return readWord(b.videoWindows[channel], videoRegFrameCount)
}

func (b *Board) VideoCrop(channel int) CropWindow {
	leftRight := readWord(b.videoWindows[channel], videoRegCropLeftRight)
	topBottom := readWord(b.videoWindows[channel], videoRegCropTopBottom)
	return CropWindow{
		Left:   int(leftRight & 0xFFFF),
		Right:  int(leftRight >> 16),
		Top:    int(topBottom & 0xFFFF),
		Bottom: int(topBottom >> 16),
	}
}

func (b *Board) AudioRun() uint32 {
	return readWord(b.audioWindow, audioRegControl) & audioControlMaskRun
}

func (b *Board) AudioOverflow() uint32 {
	return readWord(b.audioWindow, audioRegOverflow) & audioOverflowMaskBit
}

func (b *Board) AudioDumpStartAddress() uint32 {
	return readWord(b.audioWindow, audioRegStartAddress) + armMemoryOffset
}

func (b *Board) AudioDumpEndAddress() uint32 {
	return readWord(b.audioWindow, audioRegEndAddress) + armMemoryOffset
}

func (b *Board) AudioDumpLoop() uint32 {
	return readWord(b.audioWindow, audioRegDumpLoop)
}

func (b *Board) AudioPageCount() uint32 {
	return readWord(b.audioWindow, audioRegPageCount)
}
