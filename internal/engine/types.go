package engine

// Direction selects which endpoint and fill discipline a streaming session
// uses. There is exactly one of each per device; the engine does not
// support RX and TX running concurrently on the same ring.
type Direction int

const (
	DirectionRX Direction = iota
	DirectionTX
)

// Transfer is the transient descriptor handed to application callbacks.
// It borrows the current ring slot's buffer and is only valid for the
// duration of one callback invocation — the engine reuses the backing
// array on the very next resubmit.
type Transfer struct {
	// Buffer is the full-capacity backing array of the current slot.
	Buffer []byte

	// BufferLength is the capacity of Buffer (constants.BufferSize for an
	// ordinary slot, constants.FlushBufferSize for the flush transfer).
	BufferLength int

	// ValidLength is bytes produced (TX, set by the application callback)
	// or bytes received (RX, set by the engine before invoking the
	// callback).
	ValidLength int

	// RXCtx and TXCtx are opaque application-supplied values threaded
	// through from StartRX/StartTX. The engine never dereferences them.
	RXCtx interface{}
	TXCtx interface{}
}

// SampleBlockFunc is the application's per-buffer callback, installed via
// StartRX/StartTX. Returning 0 asks to be called again; any other value
// asks the engine to stop resubmitting (the session still only fully stops
// once StopRX/StopTX is called).
type SampleBlockFunc func(t *Transfer) int

// TXBlockCompleteFunc is invoked for every ordinary transfer completion of a
// TX session (success or failure), before the sample-block callback decision
// is made. It is not invoked during RX sessions.
// It runs outside the transfer lock — see SPEC_FULL.md §9 for the race this
// implies and why it is kept.
type TXBlockCompleteFunc func(t *Transfer, success bool)

// FlushFunc is invoked at most once per TX session, after the dedicated
// flush transfer (or cancellation) has ended the session.
type FlushFunc func(ctx interface{}, success bool)

// Status is the result of IsStreaming: a best-effort, lock-free snapshot.
type Status int

const (
	StatusStreaming Status = iota
	StatusStopped
	StatusThreadErr
	StatusExitCalled
)
