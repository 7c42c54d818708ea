package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshaampar/timssdr/internal/interfaces"
)

// fakePort is a minimal interfaces.Port used only by this package's own
// tests — it cannot reuse the root package's FakePort, since the root
// package imports this one.
type fakePort struct {
	mu          sync.Mutex
	pending     []*interfaces.Transfer
	toDeliver   []*interfaces.Transfer
	interrupted chan struct{}
	submitErr   error
}

func newFakePort() *fakePort {
	return &fakePort{interrupted: make(chan struct{}, 1)}
}

func (f *fakePort) AllocTransfer(endpoint uint8, buf []byte) *interfaces.Transfer {
	return &interfaces.Transfer{Endpoint: endpoint, Buffer: buf, Length: len(buf)}
}

func (f *fakePort) Submit(t *interfaces.Transfer) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.mu.Lock()
	f.pending = append(f.pending, t)
	f.mu.Unlock()
	return nil
}

// Cancel only marks the transfer cancelled and queues it for delivery on
// the next HandleEventsTimeout call — it must never invoke Callback
// synchronously, since real transports never do and the engine relies on
// completions arriving on the pump's own stack, not the caller's.
func (f *fakePort) Cancel(t *interfaces.Transfer) error {
	f.mu.Lock()
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
	f.mu.Unlock()
	return nil
}

func (f *fakePort) Free(t *interfaces.Transfer) {}

// HandleEventsTimeout delivers any queued completions (from Cancel or
// completeAll) and then waits briefly, mimicking a real event-dispatch
// call that returns periodically even with nothing to do.
func (f *fakePort) HandleEventsTimeout(timeout time.Duration) error {
	f.mu.Lock()
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

func (f *fakePort) InterruptEventHandler() {
	select {
	case f.interrupted <- struct{}{}:
	default:
	}
}

func (f *fakePort) Close() error { return nil }

// completeAll marks every currently pending transfer with the given
// outcome and queues it for delivery on the next HandleEventsTimeout call.
func (f *fakePort) completeAll(status interfaces.TransferStatus, actualLength int) {
	f.mu.Lock()
	batch := f.pending
	f.pending = nil
	for _, t := range batch {
		t.Status = status
		t.ActualLength = actualLength
	}
	f.toDeliver = append(f.toDeliver, batch...)
	f.mu.Unlock()
}

func (f *fakePort) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func newTestEngine(t *testing.T) (*Engine, *fakePort) {
	t.Helper()
	port := newFakePort()
	e, err := New(Config{Port: port})
	require.NoError(t, err)
	require.NoError(t, e.Open())
	t.Cleanup(func() { e.Close() })
	return e, port
}

func TestStartRXStopRX(t *testing.T) {
	e, port := newTestEngine(t)

	var got []int
	var mu sync.Mutex
	err := e.StartRX(func(tr *Transfer) int {
		mu.Lock()
		got = append(got, tr.ValidLength)
		mu.Unlock()
		return 0
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusStreaming, e.IsStreaming())

	require.Eventually(t, func() bool { return port.pendingCount() == 4 }, time.Second, time.Millisecond)
	port.completeAll(interfaces.StatusCompleted, 1024)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	}, time.Second, time.Millisecond)

	require.NoError(t, e.StopRX())
	assert.Equal(t, StatusStopped, e.IsStreaming())
}

func TestStartTXRefillAndPad(t *testing.T) {
	e, port := newTestEngine(t)

	err := e.StartTX(func(tr *Transfer) int {
		tr.ValidLength = 100 // short write, must be padded to 512
		return 0
	}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return port.pendingCount() == 4 }, time.Second, time.Millisecond)
	port.mu.Lock()
	for _, p := range port.pending {
		assert.Equal(t, 512, p.Length)
	}
	port.mu.Unlock()
	require.NoError(t, e.StopTX())
}

func TestCancelMidFlight(t *testing.T) {
	e, port := newTestEngine(t)

	err := e.StartRX(func(tr *Transfer) int { return 0 }, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return port.pendingCount() == 4 }, time.Second, time.Millisecond)

	require.NoError(t, e.StopRX())
	assert.Equal(t, 0, port.pendingCount())
}

func TestCallbackNonzeroStopsResubmit(t *testing.T) {
	e, port := newTestEngine(t)

	calls := 0
	var mu sync.Mutex
	err := e.StartRX(func(tr *Transfer) int {
		mu.Lock()
		calls++
		mu.Unlock()
		return 1 // ask to stop immediately
	}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return port.pendingCount() == 4 }, time.Second, time.Millisecond)
	port.completeAll(interfaces.StatusCompleted, 1024)

	require.Eventually(t, func() bool {
		return e.IsStreaming() == StatusStopped
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, calls)
}

func TestDoubleStartRejected(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.StartRX(func(tr *Transfer) int { return 0 }, nil))
	err := e.StartRX(func(tr *Transfer) int { return 0 }, nil)
	assert.Error(t, err)

	require.NoError(t, e.StopRX())
}

func TestFlushOnStopTX(t *testing.T) {
	e, port := newTestEngine(t)

	flushed := make(chan bool, 1)
	e.EnableTXFlush(func(ctx interface{}, success bool) {
		flushed <- success
	}, nil)

	require.NoError(t, e.StartTX(func(tr *Transfer) int {
		tr.ValidLength = 256
		return 0
	}, nil))

	require.Eventually(t, func() bool { return port.pendingCount() == 4 }, time.Second, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- e.StopTX() }()

	require.Eventually(t, func() bool { return port.pendingCount() == 1 }, time.Second, time.Millisecond)
	port.completeAll(interfaces.StatusCompleted, 32768)

	require.NoError(t, <-done)
	select {
	case ok := <-flushed:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("flush callback never fired")
	}
}

// TestFlushFiresBeforeStopTX exercises the short-send-then-flush scenario
// directly: the sample-block callback ends the session on its own (a
// nonzero return, with no cancellation involved), and FlushFunc must signal
// before the application ever calls StopTX — StopTX is only safe to call
// after that signal, so if flush submission or callback delivery waited
// for StopTX instead, this test would deadlock.
func TestFlushFiresBeforeStopTX(t *testing.T) {
	e, port := newTestEngine(t)

	flushed := make(chan bool, 1)
	e.EnableTXFlush(func(ctx interface{}, success bool) {
		flushed <- success
	}, nil)

	// The first invocation (priming slot 0) writes 100 bytes and accepts;
	// the second invocation (priming slot 1) refuses, which stops the fill
	// loop outright per spec §4.5.1 step 1 — slots 2 and 3 are never even
	// offered to the callback. Only slot 0 is ever actually in flight.
	sentShort := false
	var mu sync.Mutex
	require.NoError(t, e.StartTX(func(tr *Transfer) int {
		mu.Lock()
		defer mu.Unlock()
		if sentShort {
			return 1
		}
		sentShort = true
		tr.ValidLength = 100
		return 0
	}, nil))

	require.Eventually(t, func() bool { return port.pendingCount() == 1 }, time.Second, time.Millisecond)
	port.completeAll(interfaces.StatusCompleted, 512)

	// Slot 0's completion asks the callback once more, gets refused, and
	// (since streaming just ended on its own, not via cancellation) arms
	// and submits the flush transfer automatically — no StopTX call yet.
	require.Eventually(t, func() bool { return port.pendingCount() == 1 }, time.Second, time.Millisecond)
	port.completeAll(interfaces.StatusCompleted, 32768)

	select {
	case ok := <-flushed:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("flush callback never fired before StopTX was called")
	}

	require.NoError(t, e.StopTX())
}

func TestCloseStopsPump(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Close())
	assert.Equal(t, StatusExitCalled, e.IsStreaming())
}
