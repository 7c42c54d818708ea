package engine

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// blockedPumpSignals are the signals a host application's own interval
// timers commonly deliver (SIGALRM/SIGVTALRM from time.AfterFunc-style C
// libraries, SIGPROF from profiling). Masking them on the pump's own OS
// thread keeps a timer tick from ever interrupting libusb event dispatch.
// This is the actual behavior the original's masking comment described but
// never implemented; see SPEC_FULL.md §9.
var blockedPumpSignals = []unix.Signal{unix.SIGALRM, unix.SIGVTALRM, unix.SIGPROF}

// runPump is the dedicated per-device event-dispatch worker. It owns the
// Port's event loop for the engine's entire lifetime, from Open to Close.
func (e *Engine) runPump() {
	defer close(e.pumpDone)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := maskPumpSignals(); err != nil {
		e.logger.Infof("engine: signal mask failed, continuing unmasked: %v", err)
	}

	e.logger.Debugf("engine: event pump started")

	for !e.doExit.Load() {
		if err := e.port.HandleEventsTimeout(eventPumpTick); err != nil {
			// A dispatch error is not "interrupted" — InterruptEventHandler
			// is modeled as a prompt nil-error return, not a failure.
			// Per spec §4.4, a real dispatch error only flips streaming
			// off; it never terminates the pump itself (only do_exit does).
			e.logger.Infof("engine: event dispatch error: %v", err)
			e.streaming.Store(false)
		}
	}

	e.logger.Debugf("engine: event pump exiting")
}

func maskPumpSignals() error {
	var set unix.Sigset_t
	for _, sig := range blockedPumpSignals {
		addSignal(&set, sig)
	}
	return unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil)
}

func addSignal(set *unix.Sigset_t, sig unix.Signal) {
	// unix.Sigset_t on linux/amd64 and linux/arm64 is a 16x64-bit word
	// bitmask (glibc's sigset_t layout).
	word := (sig - 1) / 64
	bit := (sig - 1) % 64
	set.Val[word] |= 1 << uint(bit)
}
