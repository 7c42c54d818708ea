package timssdr

import "github.com/harshaampar/timssdr/internal/engine"

// Transfer is the descriptor handed to streaming callbacks. It aliases
// internal/engine's type directly: the engine builds these, and callbacks
// only ever read or write through the pointer it is given, so there is no
// conversion to perform at the package boundary.
type Transfer = engine.Transfer

// SampleBlockFunc is invoked once per completed (RX) or needed (TX)
// transfer. Returning a nonzero value asks the engine to stop resubmitting
// that direction; the session only fully ends once StopRX/StopTX is
// called.
type SampleBlockFunc = engine.SampleBlockFunc

// TXBlockCompleteFunc is invoked for every TX transfer completion,
// success or failure, before the SampleBlockFunc decision is applied. It
// runs outside the device's transfer lock — see DESIGN.md for the race
// this implies.
type TXBlockCompleteFunc = engine.TXBlockCompleteFunc

// FlushFunc is invoked at most once per TX session, once the dedicated
// end-of-transmission flush transfer (or its cancellation) has completed.
type FlushFunc = engine.FlushFunc
