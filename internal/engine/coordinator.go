package engine

import (
	"github.com/harshaampar/timssdr/internal/constants"
	"github.com/harshaampar/timssdr/internal/interfaces"
)

// StartRX begins an RX streaming session: cb is invoked once per completed
// IN transfer with ValidLength set to the number of bytes received.
func (e *Engine) StartRX(cb SampleBlockFunc, rxCtx interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transfersSetup {
		return errAlreadyOpen("StartRX")
	}
	e.callback = cb
	e.rxCtx = rxCtx
	e.txCtx = nil
	return e.prepareTransfersLocked(DirectionRX)
}

// StartTX begins a TX streaming session: cb is invoked once per OUT
// transfer slot needing a refill; the callback sets ValidLength on the
// Transfer it is handed to indicate how much of Buffer to send.
func (e *Engine) StartTX(cb SampleBlockFunc, txCtx interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transfersSetup {
		return errAlreadyOpen("StartTX")
	}
	e.callback = cb
	e.txCtx = txCtx
	e.rxCtx = nil
	e.flushSubmitted = false
	e.flushInFlight = false
	e.flushSuccess = false
	return e.prepareTransfersLocked(DirectionTX)
}

// StopRX ends an RX session, cancelling and draining all in-flight
// transfers before returning.
func (e *Engine) StopRX() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.transfersSetup || e.direction != DirectionRX {
		return errNotStreaming("StopRX")
	}
	e.cancelTransfersLocked()
	return nil
}

// StopTX ends a TX session. If the application's sample-block callback
// already ended the session naturally (nonzero return, or valid_length==0)
// with EnableTXFlush armed, the flush transfer was already submitted by
// onTransferComplete, and FlushFunc may already have been invoked (and the
// application may already be inside StopTX as a result — see flush.go). If
// the application instead calls StopTX while still streaming happily,
// cancellation itself ends the session; submitFlushLocked is idempotent, so
// either way the flush transfer is armed exactly once. StopTX always waits
// for it to finish before returning, whichever path armed it.
func (e *Engine) StopTX() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.transfersSetup || e.direction != DirectionTX {
		return errNotStreaming("StopTX")
	}
	e.cancelTransfersLocked()
	e.submitFlushLocked()
	e.drainFlushLocked()
	return nil
}

// SetTXBlockCompleteCallback installs (or clears, with nil) the per-transfer
// completion observer used during TX sessions.
func (e *Engine) SetTXBlockCompleteCallback(cb TXBlockCompleteFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.txCompletionCallback = cb
}

// EnableTXFlush arms the end-of-session flush transfer and installs the
// callback invoked once it (or its cancellation) completes.
func (e *Engine) EnableTXFlush(cb FlushFunc, ctx interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushEnabled = true
	e.flushCallback = cb
	e.flushCtx = ctx
}

// DisableTXFlush disarms the flush transfer configured by EnableTXFlush.
func (e *Engine) DisableTXFlush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushEnabled = false
	e.flushCallback = nil
	e.flushCtx = nil
}

// prepareTransfersLocked binds a fresh transport transfer to every ring
// slot and submits the initial batch. Must be called with e.mu held.
func (e *Engine) prepareTransfersLocked(dir Direction) error {
	if !e.allocated {
		return errInvalidParam("prepareTransfers: ring not allocated")
	}
	e.direction = dir
	endpoint := uint8(constants.RXEndpoint)
	if dir == DirectionTX {
		endpoint = uint8(constants.TXEndpoint)
	}

	e.activeTransfers = 0
	for _, s := range e.slots {
		s.xfr = e.port.AllocTransfer(endpoint, s.buf)
		s.xfr.UserData = s.index
		slotRef := s
		s.xfr.Callback = func(_ *interfaces.Transfer) { e.onTransferComplete(slotRef) }

		submitted, err := e.primeLocked(s)
		if err != nil {
			e.cancelTransfersLocked()
			return err
		}
		if !submitted {
			// Spec §4.5.1 step 1: "otherwise stop filling" — the first
			// TX slot the application callback declines ends the fill
			// loop outright; slots after it are never even offered to
			// the callback (mirrors src/timssdr.c's break on the first
			// decline, rather than asking every remaining slot anyway).
			break
		}
		e.activeTransfers++
	}

	e.transfersSetup = true
	// Spec §4.5.1 step 4: streaming = (ready_transfers == TRANSFER_COUNT).
	// A partial fill (some but not all slots accepted and submitted)
	// disables streaming immediately — see the step-4 "Edge case" note:
	// the still-in-flight transfers complete and retire without resubmit
	// because streaming is already false.
	e.streaming.Store(e.activeTransfers == constants.TransferCount)
	if e.activeTransfers == 0 && dir == DirectionTX {
		// The application's very first fill already refused every slot
		// (e.g. it wants to send nothing and go straight to flush).
		// streaming never turns true this session; arm the drain now
		// rather than leaving flush waiting on completions that will
		// never come.
		e.submitFlushLocked()
	}
	return nil
}

// primeLocked fills s's buffer for the first submission of a session. For
// TX it asks the application callback for the first block; a nonzero
// return value means "nothing to send yet" and the slot is left unsubmitted
// for this session start (mirrors ordinary resubmit semantics).
func (e *Engine) primeLocked(s *slot) (bool, error) {
	switch e.direction {
	case DirectionRX:
		s.xfr.Length = len(s.buf)
		return true, e.port.Submit(s.xfr)
	case DirectionTX:
		t := &Transfer{Buffer: s.buf, BufferLength: len(s.buf), TXCtx: e.txCtx}
		rc := 0
		if e.callback != nil {
			rc = e.callback(t)
		}
		if rc != 0 {
			return false, nil
		}
		if err := e.resubmitLocked(s, t); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// cancelTransfersLocked requests cancellation of every in-flight ring
// transfer and blocks until onTransferComplete has retired all of them,
// then frees the transport-level transfer objects. Must be called with
// e.mu held; it releases and reacquires e.mu while waiting.
func (e *Engine) cancelTransfersLocked() {
	// streaming is atomic.Bool: safe to flip regardless of lock ownership.
	// See SPEC_FULL.md §9 — kept exactly as the original signals it.
	e.streaming.Store(false)

	for _, s := range e.slots {
		if s.xfr != nil {
			_ = e.port.Cancel(s.xfr)
		}
	}
	if e.flushInFlight && e.flushSlot != nil && e.flushSlot.xfr != nil {
		_ = e.port.Cancel(e.flushSlot.xfr)
	}

	for e.activeTransfers > 0 || e.flushInFlight {
		e.cond.Wait()
	}

	for _, s := range e.slots {
		if s.xfr != nil {
			e.port.Free(s.xfr)
			s.xfr = nil
		}
	}

	e.transfersSetup = false
}
