// Package interfaces provides internal interface definitions for the
// streaming engine. These are separate from the public API to avoid
// circular imports between the root package and internal/engine.
package interfaces

import "time"

// TransferStatus mirrors the small set of completion outcomes the engine
// distinguishes. Any value other than StatusCompleted is treated as failure.
type TransferStatus int

const (
	StatusCompleted TransferStatus = iota
	StatusCancelled
	StatusError
	StatusTimedOut
	StatusStall
	StatusNoDevice
)

// CompletionFunc is invoked by a Port when a Transfer it owns completes.
// It is called synchronously from within the Port's event-dispatch call
// (i.e. from HandleEventsTimeout), never from a separate goroutine.
type CompletionFunc func(t *Transfer)

// Transfer is the transport-level bulk transfer record the engine submits
// to and receives back from a Port. One Transfer is bound to exactly one
// ring slot (or to the flush slot) for one streaming session: the engine
// allocates a fresh Transfer per slot at every StartRX/StartTX and frees it
// when that session's transfers have been cancelled and drained; Transfers
// are not kept across sessions.
type Transfer struct {
	Endpoint uint8
	Buffer   []byte

	// Length is the number of bytes of Buffer to submit (OUT) or the
	// capacity offered to the device (IN). The engine mutates this field
	// directly when padding a short TX write to the packet boundary.
	Length int

	// ActualLength is filled in by the Port after completion: bytes
	// received (RX) or bytes actually written (TX).
	ActualLength int

	Status TransferStatus

	// Callback is invoked on completion. The engine sets this right after
	// AllocTransfer, before the first Submit, and does not change it for
	// the rest of the Transfer's life.
	Callback CompletionFunc

	// UserData is engine-owned context (the owning ring slot index);
	// opaque to the Port.
	UserData int
}

// Port is the abstract bulk-USB transport the streaming engine depends on.
// spec.md §6 lists the wider operation set (enumeration, configuration,
// interface claim, kernel-driver detach); those live outside this interface
// because the engine itself never calls them — only Open does, before an
// Engine exists. Port covers the operations the engine needs (allocate,
// submit, cancel, free, and drive the event loop) plus Close, which the
// device lifecycle calls once the engine is torn down.
type Port interface {
	// AllocTransfer binds buf to a new transport-level transfer targeting
	// endpoint. The returned Transfer is not yet submitted.
	AllocTransfer(endpoint uint8, buf []byte) *Transfer

	// Submit hands t to the transport. Once this returns nil, t is owned
	// by the transport until its Callback fires.
	Submit(t *Transfer) error

	// Cancel requests asynchronous cancellation of an in-flight t. The
	// transfer's Callback still fires (with a cancelled/error status)
	// once the transport has finished unwinding it; Cancel does not wait.
	Cancel(t *Transfer) error

	// Free releases transport resources associated with t. Must only be
	// called after t's Callback has fired (or t was never submitted).
	Free(t *Transfer)

	// HandleEventsTimeout blocks the calling goroutine for up to timeout
	// driving transport event dispatch (and thus Callback invocations).
	// Returns promptly if InterruptEventHandler is called concurrently.
	HandleEventsTimeout(timeout time.Duration) error

	// InterruptEventHandler causes a concurrent HandleEventsTimeout call
	// to return early.
	InterruptEventHandler()

	// Close releases the underlying device handle. Must only be called
	// after all transfers are freed and the event pump has stopped.
	Close() error
}

// Logger is the minimal structured-logging surface the engine depends on.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Printf(format string, args ...interface{})
}

// Observer collects per-device throughput and error metrics.
// Implementations must be safe for concurrent use: methods are called from
// the event-pump goroutine on the completion-handler hot path.
type Observer interface {
	ObserveRX(bytes uint64, latencyNs uint64, success bool)
	ObserveTX(bytes uint64, latencyNs uint64, success bool)
	ObserveFlush(latencyNs uint64, success bool)
}
