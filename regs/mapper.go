package regs

import (
	"fmt"

	sys "golang.org/x/sys/unix"
)

// DumpMapper maps a capture board's physical dump region read-only into the
// process so a Session can bulk-copy frames/pages out of it. Each Session
// owns its own DumpMapper (and its own /dev/mem descriptor), independent of
// the shared HardwareView.
type DumpMapper interface {
	// Map maps size bytes starting at physAddr read-only.
	Map(physAddr uint32, size int) ([]byte, error)
	// Unmap releases a mapping returned by Map. It tolerates a nil slice
	// so callers can unconditionally unmap every element of a
	// partially-populated multi-channel mapping.
	Unmap(mem []byte) error
	// Close releases the mapper's underlying file descriptor.
	Close() error
}

// DevMemMapper is the real DumpMapper, backed by /dev/mem.
type DevMemMapper struct {
	fd int
}

var _ DumpMapper = (*DevMemMapper)(nil)

// OpenDevMemMapper opens path (typically "/dev/mem") for subsequent Map
// calls.
func OpenDevMemMapper(path string) (*DevMemMapper, error) {
	fd, err := sys.Open(path, sys.O_RDWR|sys.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("regs: open %s: %w", path, err)
	}
	return &DevMemMapper{fd: fd}, nil
}

func (m *DevMemMapper) Map(physAddr uint32, size int) ([]byte, error) {
	mem, err := sys.Mmap(m.fd, int64(physAddr), size, sys.PROT_READ, sys.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("regs: mmap 0x%x (%d bytes): %w", physAddr, size, err)
	}
	return mem, nil
}

func (m *DevMemMapper) Unmap(mem []byte) error {
	if mem == nil {
		return nil
	}
	return sys.Munmap(mem)
}

func (m *DevMemMapper) Close() error {
	if m.fd == 0 {
		return nil
	}
	err := sys.Close(m.fd)
	m.fd = 0
	return err
}

// PageAlignedSize rounds size up to the next multiple of the system page
// size so a dump buffer never spans a partial page.
func PageAlignedSize(size int) int {
	pageSize := sys.Getpagesize()
	if size%pageSize != 0 {
		size += pageSize - size%pageSize
	}
	return size
}
