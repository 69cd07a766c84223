package regs

import (
	"errors"
	"sync"
)

var (
	errFakeMapFailed      = errors.New("regs: fake map failure")
	errFakeNoRegion       = errors.New("regs: fake mapper has no region for address")
	errFakeRegionTooSmall = errors.New("regs: fake region smaller than requested size")
)

// FakeView is an in-memory HardwareView for tests. Every getter reads a
// plain field; tests mutate those fields (or call the Advance* helpers) to
// simulate register changes, including the free-running frame/page counters
// the realtime loop polls.
type FakeView struct {
	mu sync.Mutex

	VideoRunBits      [2]uint32
	VideoCropEnableV  [2]uint32
	VideoOverflowBits [2]uint32
	VideoStart        [2]uint32
	VideoEnd          [2]uint32
	VideoLoop         [2]uint32
	VideoLimit        [2]uint32
	VideoWidth        [2]uint32
	VideoHeight       [2]uint32
	VideoCount        [2]uint32
	VideoCropWindow   [2]CropWindow
	VideoClockBits    [2]uint32
	VideoHashModeBits [2]uint32

	AudioRunBit       uint32
	AudioOverflowBit  uint32
	AudioStart        uint32
	AudioEnd          uint32
	AudioLoop         uint32
	AudioCount        uint32
	Closed            bool
}

var _ HardwareView = (*FakeView)(nil)

func NewFakeView() *FakeView { return &FakeView{} }

func (f *FakeView) VideoClock(ch int) uint32        { return f.VideoClockBits[ch] }
func (f *FakeView) VideoRun(ch int) uint32           { return f.VideoRunBits[ch] }
func (f *FakeView) VideoHashMode(ch int) uint32      { return f.VideoHashModeBits[ch] }
func (f *FakeView) VideoCropEnable(ch int) uint32    { return f.VideoCropEnableV[ch] }
func (f *FakeView) VideoOverflow(ch int) uint32      { return f.VideoOverflowBits[ch] }
func (f *FakeView) VideoDumpStartAddress(ch int) uint32 { return f.VideoStart[ch] }
func (f *FakeView) VideoDumpEndAddress(ch int) uint32   { return f.VideoEnd[ch] }
func (f *FakeView) VideoDumpLoop(ch int) uint32      { return f.VideoLoop[ch] }
func (f *FakeView) VideoDumpLimit(ch int) uint32     { return f.VideoLimit[ch] }
func (f *FakeView) VideoFrameWidth(ch int) uint32    { return f.VideoWidth[ch] }
func (f *FakeView) VideoFrameHeight(ch int) uint32   { return f.VideoHeight[ch] }
func (f *FakeView) VideoCrop(ch int) CropWindow      { return f.VideoCropWindow[ch] }

func (f *FakeView) VideoFrameCount(ch int) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.VideoCount[ch]
}

// AdvanceFrameCount simulates the board producing n more frames on channel
// ch, wrapping at the hardware's 16-bit counter width.
func (f *FakeView) AdvanceFrameCount(ch int, n uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.VideoCount[ch] = (f.VideoCount[ch] + n) % 0x10000
}

func (f *FakeView) AudioRun() uint32             { return f.AudioRunBit }
func (f *FakeView) AudioOverflow() uint32        { return f.AudioOverflowBit }
func (f *FakeView) AudioDumpStartAddress() uint32 { return f.AudioStart }
func (f *FakeView) AudioDumpEndAddress() uint32   { return f.AudioEnd }
func (f *FakeView) AudioDumpLoop() uint32         { return f.AudioLoop }

func (f *FakeView) AudioPageCount() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.AudioCount
}

// AdvancePageCount simulates the board producing n more audio pages.
func (f *FakeView) AdvancePageCount(n uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AudioCount = (f.AudioCount + n) % 0x10000
}

func (f *FakeView) Close() error {
	f.Closed = true
	return nil
}

// FakeMapper is an in-memory DumpMapper for tests. Map returns a slice view
// directly into a backing buffer the test registered with Put, so a test
// can mutate "hardware" memory out from under a Session to simulate the
// board writing new frames/pages into the ring.
type FakeMapper struct {
	mu      sync.Mutex
	regions map[uint32][]byte
	failMap map[uint32]bool
	closed  bool
}

var _ DumpMapper = (*FakeMapper)(nil)

func NewFakeMapper() *FakeMapper {
	return &FakeMapper{regions: make(map[uint32][]byte), failMap: make(map[uint32]bool)}
}

// Put registers the backing buffer returned for subsequent Map calls at
// physAddr.
func (m *FakeMapper) Put(physAddr uint32, mem []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions[physAddr] = mem
}

// FailMap makes every later Map call for physAddr return an error,
// simulating an mmap failure.
func (m *FakeMapper) FailMap(physAddr uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failMap[physAddr] = true
}

func (m *FakeMapper) Map(physAddr uint32, size int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMap[physAddr] {
		return nil, errFakeMapFailed
	}
	mem, ok := m.regions[physAddr]
	if !ok {
		return nil, errFakeNoRegion
	}
	if len(mem) < size {
		return nil, errFakeRegionTooSmall
	}
	return mem[:size], nil
}

func (m *FakeMapper) Unmap(mem []byte) error { return nil }

func (m *FakeMapper) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
