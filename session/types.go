package session

// RealtimeMode selects how a real-time dump loop reacts to the hardware
// lapping the reader. The zero value, NonRealtime, means no real-time
// stream is active on the session.
type RealtimeMode uint8

const (
	NonRealtime RealtimeMode = iota
	StopWhenOverflow
	BestEffort
)

// parseRealtimeMode maps a request's wire-level mode byte to a
// RealtimeMode, rejecting anything but the two real modes a client may
// request.
func parseRealtimeMode(wireMode uint8) (RealtimeMode, bool) {
	switch RealtimeMode(wireMode) {
	case StopWhenOverflow, BestEffort:
		return RealtimeMode(wireMode), true
	default:
		return NonRealtime, false
	}
}

// hwCountWrap is the width of the hardware's free-running frame/page
// counter: 16 bits.
const hwCountWrap = 0x10000

// outcomeKind distinguishes what a realtime loop iteration should do,
// replacing the original driver's overloaded "zero return" convention
// (where 0 meant either "clean stream end" or "no progress, current
// count is already 0") with an explicit sum type.
type outcomeKind int

const (
	outcomeNoProgress outcomeKind = iota
	outcomeAdvance
	outcomeOverflowDrop
	outcomeStopClean
)

// dumpOutcome is the pure result of comparing a loop's software count
// against the hardware counter. It carries no side effects; the realtime
// loops apply it (sending notifier responses, emitting data).
type dumpOutcome struct {
	kind outcomeKind
	// emit is the frame/page number to emit at, valid for outcomeAdvance
	// and outcomeOverflowDrop.
	emit uint32
	// next is the software count after this iteration, valid for the
	// same two kinds.
	next uint32
	// dropped is the number of skipped units, valid for
	// outcomeOverflowDrop only (the N in "Drop realtime video frame N").
	dropped uint32
}

// countDifference computes the number of units the hardware has produced
// since count, wrapping at the hardware's 16-bit counter width.
func countDifference(hw, count uint32) uint32 {
	diff := int64(hw) - int64(count%hwCountWrap)
	if diff < 0 {
		diff += hwCountWrap
	}
	return uint32(diff % hwCountWrap)
}

// nextDumpOutcome is one iteration of the realtime loop's comparison
// step: given the current software count and the hardware's counter,
// decide whether to spin, emit the next unit, drop to the latest unit,
// or stop the stream.
func nextDumpOutcome(count, hw, dumpLimit uint32, mode RealtimeMode) dumpOutcome {
	diff := countDifference(hw, count)
	if diff == 0 {
		return dumpOutcome{kind: outcomeNoProgress}
	}
	if diff > dumpLimit {
		if mode == StopWhenOverflow {
			return dumpOutcome{kind: outcomeStopClean}
		}
		advanced := count + diff
		return dumpOutcome{kind: outcomeOverflowDrop, emit: advanced, next: advanced, dropped: diff}
	}
	return dumpOutcome{kind: outcomeAdvance, emit: count, next: count + 1}
}
