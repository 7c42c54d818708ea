package engine

import (
	"github.com/harshaampar/timssdr/internal/constants"
	"github.com/harshaampar/timssdr/internal/interfaces"
)

// submitFlushLocked arms and submits the dedicated zero-padded drain
// transfer the first time a TX session ends without a resubmit —
// from onTransferComplete when the application callback returns nonzero or
// valid_length==0, from prepareTransfersLocked when the very first fill
// refused every slot, or from StopTX when cancellation itself ends a
// session that was still streaming happily. Idempotent per session via
// flushSubmitted, so whichever of those call sites gets there first wins
// and the others are no-ops. Must be called with e.mu held.
func (e *Engine) submitFlushLocked() {
	if !e.flushEnabled || e.flushSubmitted || e.doExit.Load() {
		return
	}
	e.flushSubmitted = true

	e.flushSlot.xfr = e.port.AllocTransfer(uint8(constants.TXEndpoint), e.flushSlot.buf)
	e.flushSlot.xfr.Length = len(e.flushSlot.buf)
	e.flushSlot.xfr.Callback = func(_ *interfaces.Transfer) { e.onFlushComplete() }
	e.flushInFlight = true

	if err := e.port.Submit(e.flushSlot.xfr); err != nil {
		e.logger.Infof("engine: flush submit failed: %v", err)
		e.flushInFlight = false
		e.flushSuccess = false
		e.flushEnabled = false
		e.port.Free(e.flushSlot.xfr)
		e.flushSlot.xfr = nil
		e.cond.Broadcast()
		cb, ctx := e.flushCallback, e.flushCtx
		if cb != nil {
			go cb(ctx, false)
		}
	}
}

// onFlushComplete is the flush transfer's Callback. Like the ordinary
// completion handler, it runs synchronously on the event pump's own call
// stack, and — per spec §4.3 — invokes FlushFunc itself right away rather
// than waiting for whatever call eventually reaches StopTX: an application
// blocked on a semaphore inside FlushFunc before calling StopTX must be
// woken without StopTX ever being called.
func (e *Engine) onFlushComplete() {
	e.mu.Lock()
	success := e.flushSlot.xfr != nil && e.flushSlot.xfr.Status == interfaces.StatusCompleted
	e.flushSuccess = success
	e.flushInFlight = false
	e.activeTransfers = 0
	e.cond.Broadcast()
	e.observer.ObserveFlush(0, success)
	cb, ctx := e.flushCallback, e.flushCtx
	e.mu.Unlock()

	if cb != nil {
		cb(ctx, success)
	}
}

// drainFlushLocked waits for a flush transfer armed by submitFlushLocked
// earlier in this session to finish (or for cancelTransfersLocked to have
// cancelled it) and frees its transport-level transfer. FlushFunc has
// already been invoked, if at all, by onFlushComplete or submitFlushLocked
// by the time this returns — StopTX only needs to block until the device
// has actually drained. Must be called with e.mu held; it releases and
// reacquires e.mu while waiting. Resets session state so the next StartTX
// starts with a fresh flush arm.
func (e *Engine) drainFlushLocked() {
	for e.flushInFlight {
		e.cond.Wait()
	}
	if e.flushSlot != nil && e.flushSlot.xfr != nil {
		e.port.Free(e.flushSlot.xfr)
		e.flushSlot.xfr = nil
	}
	e.flushSubmitted = false
	e.flushInFlight = false
}
