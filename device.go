// Package timssdr provides bulk-USB streaming access to FTDI-class SDR
// hardware (VID 0x0403 / PID 0x6014): device open/close, RX/TX streaming
// start/stop, and end-of-TX flush coordination. The hard part — the
// transfer ring, completion state machine, and event pump — lives in
// internal/engine; this package is a thin lifecycle wrapper around it.
package timssdr

import (
	"sync"

	"github.com/harshaampar/timssdr/internal/bulkusb"
	"github.com/harshaampar/timssdr/internal/engine"
	"github.com/harshaampar/timssdr/internal/interfaces"
	"github.com/harshaampar/timssdr/internal/logging"
)

var (
	libMu       sync.Mutex
	libInit     bool
	openDevices int
)

// Init brings up the shared USB context. Safe to call multiple times.
func Init() error {
	libMu.Lock()
	defer libMu.Unlock()
	if libInit {
		return nil
	}
	if err := bulkusb.Init(); err != nil {
		return wrapEngineErr("Init", err)
	}
	libInit = true
	return nil
}

// Exit tears down the shared USB context. Returns ErrNotLastDevice if any
// Device opened via Open is still outstanding.
func Exit() error {
	libMu.Lock()
	defer libMu.Unlock()
	if openDevices > 0 {
		return ErrNotLastDevice
	}
	if !libInit {
		return nil
	}
	if err := bulkusb.Exit(); err != nil {
		return wrapEngineErr("Exit", err)
	}
	libInit = false
	return nil
}

// Device represents one open TimsSDR handle and its streaming engine.
type Device struct {
	port   interfaces.Port
	engine *engine.Engine

	metrics  *Metrics
	observer Observer

	mu     sync.Mutex
	closed bool
}

// Options bundles the optional collaborators Open accepts.
type Options struct {
	// Logger receives structured diagnostic output from the engine and
	// transport. If nil, the package-level logging.Default() logger is used.
	Logger *logging.Logger

	// Observer receives per-transfer metrics. If nil, a MetricsObserver
	// backed by a fresh Metrics instance is used; retrieve it via
	// Device.Metrics().
	Observer Observer
}

// DefaultOptions returns the options Open uses when none are given.
func DefaultOptions() Options {
	return Options{Logger: logging.Default()}
}

// Open opens the first connected TimsSDR device (matched by VID 0x0403 /
// PID 0x6014) and allocates its transfer ring and event pump. Init must
// have been called first.
func Open(opts *Options) (*Device, error) {
	libMu.Lock()
	if !libInit {
		libMu.Unlock()
		return nil, newErr("Open", ErrCodeOther, "Init not called")
	}
	libMu.Unlock()

	if opts == nil {
		o := DefaultOptions()
		opts = &o
	}

	port, err := bulkusb.Open()
	if err != nil {
		return nil, newErr("Open", ErrCodeNotFound, err.Error())
	}

	d, err := newDevice(port, opts)
	if err != nil {
		port.Close()
		return nil, err
	}

	libMu.Lock()
	openDevices++
	libMu.Unlock()

	return d, nil
}

// newDevice builds a Device around an already-open Port. Split out of Open
// so tests can drive the engine against a FakePort without a real USB
// device attached.
func newDevice(port interfaces.Port, opts *Options) (*Device, error) {
	var metrics *Metrics
	observer := opts.Observer
	if observer == nil {
		metrics = NewMetrics()
		observer = NewMetricsObserver(metrics)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	eng, err := engine.New(engine.Config{
		Port:     port,
		Logger:   logger,
		Observer: &observerAdapter{observer},
	})
	if err != nil {
		return nil, wrapEngineErr("Open", err)
	}
	if err := eng.Open(); err != nil {
		return nil, wrapEngineErr("Open", err)
	}

	return &Device{
		port:     port,
		engine:   eng,
		metrics:  metrics,
		observer: observer,
	}, nil
}

// Close stops any active streaming, releases the transfer ring and event
// pump, and closes the underlying USB handle. Close(nil) is rejected
// rather than silently decrementing the open-device count (a documented
// fix over the original's behavior; see DESIGN.md).
func Close(d *Device) error {
	if d == nil {
		return ErrInvalidParameters
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if err := d.engine.Close(); err != nil {
		return wrapEngineErr("Close", err)
	}
	if err := d.port.Close(); err != nil {
		return wrapEngineErr("Close", err)
	}

	if d.metrics != nil {
		d.metrics.Stop()
	}

	libMu.Lock()
	if openDevices > 0 {
		openDevices--
	}
	libMu.Unlock()

	return nil
}

// Metrics returns the device's metrics instance. Returns nil if the
// caller supplied a custom Observer in Options (there is then no built-in
// Metrics to report).
func (d *Device) Metrics() *Metrics {
	return d.metrics
}

// MetricsSnapshot returns a point-in-time snapshot of the device's metrics.
func (d *Device) MetricsSnapshot() MetricsSnapshot {
	if d == nil || d.metrics == nil {
		return MetricsSnapshot{}
	}
	return d.metrics.Snapshot()
}

// observerAdapter satisfies internal/interfaces.Observer by forwarding to
// the public Observer interface (identical method set, kept as two
// separate types so application code never needs to import internal/...).
type observerAdapter struct {
	o Observer
}

func (a *observerAdapter) ObserveRX(bytes, latencyNs uint64, success bool) {
	a.o.ObserveRX(bytes, latencyNs, success)
}

func (a *observerAdapter) ObserveTX(bytes, latencyNs uint64, success bool) {
	a.o.ObserveTX(bytes, latencyNs, success)
}

func (a *observerAdapter) ObserveFlush(latencyNs uint64, success bool) {
	a.o.ObserveFlush(latencyNs, success)
}
