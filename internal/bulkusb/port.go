// Package bulkusb is the concrete libusb-backed implementation of
// interfaces.Port. It is intentionally thin: the engine package is where
// the tested, spec-governed behavior lives; this package exists to give
// that engine something real to drive.
package bulkusb

/*
#cgo pkg-config: libusb-1.0
#include <libusb-1.0/libusb.h>
#include <stdlib.h>

extern void goTransferCallback(struct libusb_transfer *xfer);

static void set_callback(struct libusb_transfer *xfer) {
	xfer->callback = goTransferCallback;
}
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"sync"
	"time"
	"unsafe"

	"github.com/harshaampar/timssdr/internal/constants"
	"github.com/harshaampar/timssdr/internal/interfaces"
)

// Port implements interfaces.Port against one open libusb device handle.
type Port struct {
	handle *C.libusb_device_handle

	mu      sync.Mutex
	pending map[*C.struct_libusb_transfer]cgo.Handle
}

// transferRecord links the C-side transfer back to its interfaces.Transfer,
// since the Go callback only receives the C pointer.
type transferRecord struct {
	t *interfaces.Transfer
}

func newPort(handle *C.libusb_device_handle) *Port {
	return &Port{
		handle:  handle,
		pending: make(map[*C.struct_libusb_transfer]cgo.Handle),
	}
}

// AllocTransfer allocates a libusb_transfer with zero isochronous packets
// and binds it to buf. The returned Transfer is not yet submitted.
func (p *Port) AllocTransfer(endpoint uint8, buf []byte) *interfaces.Transfer {
	cxfr := C.libusb_alloc_transfer(0)
	t := &interfaces.Transfer{
		Endpoint: endpoint,
		Buffer:   buf,
		Length:   len(buf),
	}

	rec := &transferRecord{t: t}
	h := cgo.NewHandle(rec)

	cxfr.dev_handle = p.handle
	cxfr.endpoint = C.uchar(endpoint)
	cxfr.transfer_type = C.LIBUSB_TRANSFER_TYPE_BULK
	if len(buf) > 0 {
		cxfr.buffer = (*C.uchar)(unsafe.Pointer(&buf[0]))
	}
	cxfr.length = C.int(len(buf))
	cxfr.timeout = 0
	cxfr.user_data = unsafe.Pointer(h)
	C.set_callback(cxfr)

	p.mu.Lock()
	p.pending[cxfr] = h
	p.mu.Unlock()

	cgoTransfers.store(cxfr, t)
	return t
}

// Submit hands t to libusb. t.Length is re-read here so the engine's
// short-write padding (set just before Submit) takes effect.
func (p *Port) Submit(t *interfaces.Transfer) error {
	cxfr := cgoTransfers.lookupCTransfer(t)
	if cxfr == nil {
		return fmt.Errorf("bulkusb: submit of unknown transfer")
	}
	cxfr.length = C.int(t.Length)
	if rc := C.libusb_submit_transfer(cxfr); rc != 0 {
		return fmt.Errorf("bulkusb: libusb_submit_transfer: %s", C.GoString(C.libusb_error_name(rc)))
	}
	return nil
}

// Cancel requests asynchronous cancellation; t's Callback still fires once
// libusb has finished unwinding it.
func (p *Port) Cancel(t *interfaces.Transfer) error {
	cxfr := cgoTransfers.lookupCTransfer(t)
	if cxfr == nil {
		return nil
	}
	rc := C.libusb_cancel_transfer(cxfr)
	if rc != 0 && rc != C.LIBUSB_ERROR_NOT_FOUND {
		return fmt.Errorf("bulkusb: libusb_cancel_transfer: %s", C.GoString(C.libusb_error_name(rc)))
	}
	return nil
}

// Free releases the libusb_transfer and its cgo.Handle. Must only be
// called after t's Callback has fired.
func (p *Port) Free(t *interfaces.Transfer) {
	cxfr := cgoTransfers.lookupCTransfer(t)
	if cxfr == nil {
		return
	}
	p.mu.Lock()
	if h, ok := p.pending[cxfr]; ok {
		h.Delete()
		delete(p.pending, cxfr)
	}
	p.mu.Unlock()
	cgoTransfers.delete(cxfr)
	C.libusb_free_transfer(cxfr)
}

// HandleEventsTimeout blocks up to timeout driving libusb event dispatch.
func (p *Port) HandleEventsTimeout(timeout time.Duration) error {
	tv := C.struct_timeval{
		tv_sec:  C.long(timeout / time.Second),
		tv_usec: C.long((timeout % time.Second) / time.Microsecond),
	}
	rc := C.libusb_handle_events_timeout(globalCtx, &tv)
	if rc != 0 {
		return fmt.Errorf("bulkusb: libusb_handle_events_timeout: %s", C.GoString(C.libusb_error_name(rc)))
	}
	return nil
}

// InterruptEventHandler causes a concurrent HandleEventsTimeout to return.
func (p *Port) InterruptEventHandler() {
	C.libusb_interrupt_event_handler(globalCtx)
}

// Close releases the underlying device handle and decrements the global
// open-device count.
func (p *Port) Close() error {
	C.libusb_release_interface(p.handle, C.int(constants.USBInterface))
	C.libusb_close(p.handle)
	releaseDevice()
	return nil
}

//export goTransferCallback
func goTransferCallback(cxfr *C.struct_libusb_transfer) {
	h := cgo.Handle(uintptr(cxfr.user_data))
	rec, ok := h.Value().(*transferRecord)
	if !ok {
		return
	}
	t := rec.t
	t.ActualLength = int(cxfr.actual_length)
	t.Status = mapStatus(cxfr.status)
	if t.Callback != nil {
		t.Callback(t)
	}
}

func mapStatus(s C.enum_libusb_transfer_status) interfaces.TransferStatus {
	switch s {
	case C.LIBUSB_TRANSFER_COMPLETED:
		return interfaces.StatusCompleted
	case C.LIBUSB_TRANSFER_CANCELLED:
		return interfaces.StatusCancelled
	case C.LIBUSB_TRANSFER_TIMED_OUT:
		return interfaces.StatusTimedOut
	case C.LIBUSB_TRANSFER_STALL:
		return interfaces.StatusStall
	case C.LIBUSB_TRANSFER_NO_DEVICE:
		return interfaces.StatusNoDevice
	default:
		return interfaces.StatusError
	}
}
