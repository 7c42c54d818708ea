package engine

import "github.com/harshaampar/timssdr/internal/constants"

// allocateLocked carves one contiguous buffer region into TransferCount
// slot buffers plus one dedicated flush-buffer region. Must be called with
// e.mu held. Mirrors the original's single malloc'd arena sliced by index
// rather than TransferCount separate allocations, so the whole ring is one
// GC object.
func (e *Engine) allocateLocked() error {
	if e.allocated {
		return errBusy("engine.allocate")
	}

	e.ringBuf = make([]byte, constants.TransferCount*constants.BufferSize)
	e.slots = make([]*slot, constants.TransferCount)
	for i := 0; i < constants.TransferCount; i++ {
		start := i * constants.BufferSize
		e.slots[i] = &slot{
			index: i,
			buf:   e.ringBuf[start : start+constants.BufferSize],
		}
	}

	flushBuf := make([]byte, constants.FlushBufferSize)
	e.flushSlot = &slot{index: -1, buf: flushBuf}

	e.allocated = true
	return nil
}

// freeLocked releases the ring's transport-level transfers and drops the
// Go-level buffers. Must be called with e.mu held and only after the event
// pump has stopped and no transfer is in flight.
func (e *Engine) freeLocked() {
	if !e.allocated {
		return
	}
	for _, s := range e.slots {
		if s.xfr != nil {
			e.port.Free(s.xfr)
			s.xfr = nil
		}
	}
	if e.flushSlot != nil && e.flushSlot.xfr != nil {
		e.port.Free(e.flushSlot.xfr)
		e.flushSlot.xfr = nil
	}
	e.slots = nil
	e.ringBuf = nil
	e.flushSlot = nil
	e.allocated = false
}
