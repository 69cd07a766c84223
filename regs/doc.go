// Package regs provides the read-only, memory-mapped view onto the capture
// board's video and audio dump-controller registers (HardwareView), and the
// MemoryMapper used to map a dump region's physical address range for bulk
// copying.
//
// Everything in this package is a pure, volatile read: the board is the sole
// writer of its registers and of the ring buffers the dump regions describe.
// A single Board is safe to share by reference across every Session
// goroutine.
package regs
