package engine

import (
	"github.com/harshaampar/timssdr/internal/constants"
	"github.com/harshaampar/timssdr/internal/interfaces"
)

// onTransferComplete is installed as the Callback of every ordinary ring
// slot transfer. It runs synchronously on the event pump's own call stack —
// never in a separate goroutine — matching the original's completion
// dispatch model.
func (e *Engine) onTransferComplete(s *slot) {
	success := s.xfr.Status == interfaces.StatusCompleted

	if e.direction == DirectionTX && e.txCompletionCallback != nil {
		// Runs outside the lock: the buffer this Transfer borrows may
		// already be resubmitted by the time the application reads it.
		// See SPEC_FULL.md §9 for why this race is accepted.
		e.txCompletionCallback(&Transfer{
			Buffer:       s.buf,
			BufferLength: len(s.buf),
			ValidLength:  s.xfr.ActualLength,
			TXCtx:        e.txCtx,
		}, success)
	}

	// A cancellation (Stop*/Close) is not a transfer outcome and is not
	// counted as a block or an error.
	if s.xfr.Status != interfaces.StatusCancelled {
		e.observeCompletion(success, s.xfr.ActualLength)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// A cancelled or exit-time transfer never reaches the application —
	// its buffer may be junk or already torn down. Cancellation is how
	// Stop*/Close stop delivering callbacks; it is not gated by streaming
	// here, since a sibling transfer in the same completion batch may have
	// already flipped streaming false without this one being cancelled.
	if e.doExit.Load() || !success {
		e.retireLocked()
		return
	}

	t := &Transfer{
		Buffer:       s.buf,
		BufferLength: len(s.buf),
		RXCtx:        e.rxCtx,
		TXCtx:        e.txCtx,
	}
	if e.direction == DirectionRX {
		t.ValidLength = s.xfr.ActualLength
	}

	var rc int
	if e.callback != nil {
		rc = e.callback(t)
	}

	wantsResubmit := rc == 0 && e.streaming.Load() && e.transfersSetup
	if wantsResubmit && e.direction == DirectionTX && t.ValidLength <= 0 {
		// valid_length == 0: the application had nothing left to send.
		// Falls through to the flush branch below instead of resubmitting
		// an empty buffer.
		wantsResubmit = false
	}

	if wantsResubmit {
		if err := e.resubmitLocked(s, t); err != nil {
			e.logger.Infof("engine: resubmit slot %d failed: %v", s.index, err)
			wantsResubmit = false
		}
	}

	if !wantsResubmit {
		e.streaming.Store(false)
		if e.direction == DirectionTX {
			e.submitFlushLocked()
		}
		e.retireLocked()
	}
}

func (e *Engine) observeCompletion(success bool, n int) {
	switch e.direction {
	case DirectionRX:
		e.observer.ObserveRX(uint64(n), 0, success)
	case DirectionTX:
		e.observer.ObserveTX(uint64(n), 0, success)
	}
}

// retireLocked accounts for one slot leaving the in-flight set without
// being resubmitted. Once the last one retires, the waiter blocked in
// cancelTransfersLocked (or Stop*) is released.
func (e *Engine) retireLocked() {
	e.activeTransfers--
	if e.activeTransfers <= 0 {
		e.cond.Broadcast()
	}
}

// resubmitLocked refills s's buffer (for TX, via the application callback's
// ValidLength) and hands it back to the port. Must be called with e.mu
// held.
func (e *Engine) resubmitLocked(s *slot, t *Transfer) error {
	switch e.direction {
	case DirectionRX:
		s.xfr.Length = len(s.buf)
	case DirectionTX:
		n := t.ValidLength
		if n < 0 {
			n = 0
		}
		if n > len(s.buf) {
			n = len(s.buf)
		}
		padded := padToPacket(n)
		s.xfr.Length = padded
		if padded > n {
			for i := n; i < padded; i++ {
				s.buf[i] = 0
			}
		}
	}
	return e.port.Submit(s.xfr)
}

func padToPacket(n int) int {
	if n%constants.PacketMultiple == 0 {
		return n
	}
	return (n/constants.PacketMultiple + 1) * constants.PacketMultiple
}
