package timssdr

import (
	"sync"
	"time"

	"github.com/harshaampar/timssdr/internal/interfaces"
)

// FakePort is an in-process, hardware-free implementation of
// internal/interfaces.Port. It lets application and library tests drive
// the streaming engine's concurrency contract deterministically: queued
// completions fire the next time HandleEventsTimeout is called, from the
// caller's own goroutine, exactly as a real transport would from the
// pump's.
type FakePort struct {
	mu sync.Mutex

	allocCalls     int
	submitCalls    int
	cancelCalls    int
	freeCalls      int
	handleCalls    int
	interruptCalls int

	// pending holds transfers Submit was called on but which have not yet
	// been completed by a call to CompleteAll.
	pending []*interfaces.Transfer

	// toDeliver holds transfers whose outcome is decided (by Cancel or
	// CompleteAll) but whose Callback has not yet been invoked — that only
	// happens from HandleEventsTimeout, matching a real transport where
	// completions are always delivered from event dispatch, never from the
	// call that decided the outcome.
	toDeliver []*interfaces.Transfer

	interrupted chan struct{}
}

// NewFakePort creates a FakePort ready for use.
func NewFakePort() *FakePort {
	return &FakePort{
		interrupted: make(chan struct{}, 1),
	}
}

// AllocTransfer implements interfaces.Port.
func (f *FakePort) AllocTransfer(endpoint uint8, buf []byte) *interfaces.Transfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allocCalls++
	return &interfaces.Transfer{Endpoint: endpoint, Buffer: buf, Length: len(buf)}
}

// Submit implements interfaces.Port. The transfer is queued as pending
// until a test calls CompleteAll or the transfer is cancelled.
func (f *FakePort) Submit(t *interfaces.Transfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.pending = append(f.pending, t)
	return nil
}

// Cancel implements interfaces.Port. It marks t cancelled and queues it
// for delivery on the next HandleEventsTimeout call — it does not invoke
// Callback itself, since a real transport only ever delivers completions
// from event dispatch, and the engine relies on that to avoid re-entering
// its own lock from within Cancel.
func (f *FakePort) Cancel(t *interfaces.Transfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	idx := -1
	for i, p := range f.pending {
		if p == t {
			idx = i
			break
		}
	}
	if idx >= 0 {
		f.pending = append(f.pending[:idx], f.pending[idx+1:]...)
		t.Status = interfaces.StatusCancelled
		t.ActualLength = 0
		f.toDeliver = append(f.toDeliver, t)
	}
	return nil
}

// Free implements interfaces.Port.
func (f *FakePort) Free(t *interfaces.Transfer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freeCalls++
}

// HandleEventsTimeout implements interfaces.Port: it delivers any
// completions queued by Cancel/CompleteAll (invoking their Callback from
// this call, matching a real transport's dispatch model) and then waits
// briefly or until InterruptEventHandler is called.
func (f *FakePort) HandleEventsTimeout(timeout time.Duration) error {
	f.mu.Lock()
	f.handleCalls++
	batch := f.toDeliver
	f.toDeliver = nil
	f.mu.Unlock()

	for _, t := range batch {
		if t.Callback != nil {
			t.Callback(t)
		}
	}

	select {
	case <-f.interrupted:
	case <-time.After(time.Millisecond):
	}
	return nil
}

// InterruptEventHandler implements interfaces.Port.
func (f *FakePort) InterruptEventHandler() {
	f.mu.Lock()
	f.interruptCalls++
	f.mu.Unlock()
	select {
	case f.interrupted <- struct{}{}:
	default:
	}
}

// Close implements interfaces.Port.
func (f *FakePort) Close() error { return nil }

// CompleteAll marks every currently pending transfer with the given
// outcome and queues it for delivery on the transport's next
// HandleEventsTimeout call — it does not invoke Callback directly.
func (f *FakePort) CompleteAll(status interfaces.TransferStatus, actualLength int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := f.pending
	f.pending = nil
	for _, t := range batch {
		t.Status = status
		t.ActualLength = actualLength
	}
	f.toDeliver = append(f.toDeliver, batch...)
}

// PendingCount returns the number of transfers currently awaiting
// completion.
func (f *FakePort) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// CallCounts returns the number of times each Port method has been
// invoked, for assertions in tests.
func (f *FakePort) CallCounts() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]int{
		"alloc":     f.allocCalls,
		"submit":    f.submitCalls,
		"cancel":    f.cancelCalls,
		"free":      f.freeCalls,
		"handle":    f.handleCalls,
		"interrupt": f.interruptCalls,
	}
}

var _ interfaces.Port = (*FakePort)(nil)

// NewTestDevice builds a Device around a fresh FakePort, bypassing Init/Open
// and any real USB hardware. Intended for application-level tests that want
// to drive Start/Stop/Close through the public Device API.
func NewTestDevice(opts *Options) (*Device, *FakePort, error) {
	if opts == nil {
		o := DefaultOptions()
		opts = &o
	}
	port := NewFakePort()
	d, err := newDevice(port, opts)
	if err != nil {
		return nil, nil, err
	}
	return d, port, nil
}
