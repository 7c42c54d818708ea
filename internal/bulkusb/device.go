package bulkusb

/*
#cgo pkg-config: libusb-1.0
#include <libusb-1.0/libusb.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"sync"

	"github.com/harshaampar/timssdr/internal/constants"
)

var (
	globalMu    sync.Mutex
	globalCtx   *C.libusb_context
	openDevices int
)

// Init brings up the shared libusb context. Safe to call multiple times;
// only the first call actually initializes anything.
func Init() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCtx != nil {
		return nil
	}
	if rc := C.libusb_init(&globalCtx); rc != 0 {
		globalCtx = nil
		return fmt.Errorf("bulkusb: libusb_init: %s", C.GoString(C.libusb_error_name(rc)))
	}
	return nil
}

// Exit tears down the shared libusb context. Fails if any device opened
// through Open is still outstanding, mirroring TIMSSDR_ERROR_NOT_LAST_DEVICE.
func Exit() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if openDevices > 0 {
		return errNotLastDevice
	}
	if globalCtx != nil {
		C.libusb_exit(globalCtx)
		globalCtx = nil
	}
	return nil
}

var errNotLastDevice = fmt.Errorf("bulkusb: devices still open")

// Open finds and opens the first VID 0x0403 / PID 0x6014 device, configures
// it (tolerating an already-set configuration), detaches any attached
// kernel driver, and claims the bulk interface. No serial-number matching
// or board-metadata query is performed; those are out of scope for this
// transport (see SPEC_FULL.md §6).
func Open() (*Port, error) {
	globalMu.Lock()
	ctx := globalCtx
	globalMu.Unlock()
	if ctx == nil {
		return nil, fmt.Errorf("bulkusb: Init not called")
	}

	handle := C.libusb_open_device_with_vid_pid(
		ctx, C.uint16_t(constants.VendorID), C.uint16_t(constants.ProductID))
	if handle == nil {
		return nil, errNotFound
	}

	if rc := C.libusb_set_configuration(handle, C.int(constants.USBConfiguration)); rc != 0 &&
		rc != C.LIBUSB_ERROR_BUSY {
		C.libusb_close(handle)
		return nil, fmt.Errorf("bulkusb: libusb_set_configuration: %s", C.GoString(C.libusb_error_name(rc)))
	}

	if err := detachKernelDriver(handle); err != nil {
		C.libusb_close(handle)
		return nil, err
	}

	if rc := C.libusb_claim_interface(handle, C.int(constants.USBInterface)); rc != 0 {
		C.libusb_close(handle)
		return nil, fmt.Errorf("bulkusb: libusb_claim_interface: %s", C.GoString(C.libusb_error_name(rc)))
	}

	globalMu.Lock()
	openDevices++
	globalMu.Unlock()

	return newPort(handle), nil
}

var errNotFound = fmt.Errorf("bulkusb: device not found")

func detachKernelDriver(handle *C.libusb_device_handle) error {
	dev := C.libusb_get_device(handle)
	var config *C.struct_libusb_config_descriptor
	if rc := C.libusb_get_active_config_descriptor(dev, &config); rc != 0 {
		return fmt.Errorf("bulkusb: libusb_get_active_config_descriptor: %s", C.GoString(C.libusb_error_name(rc)))
	}
	n := int(config.bNumInterfaces)
	C.libusb_free_config_descriptor(config)

	for i := 0; i < n; i++ {
		active := C.libusb_kernel_driver_active(handle, C.int(i))
		if active < 0 {
			if active == C.LIBUSB_ERROR_NOT_SUPPORTED {
				return nil
			}
			return fmt.Errorf("bulkusb: libusb_kernel_driver_active: %s", C.GoString(C.libusb_error_name(active)))
		}
		if active == 1 {
			if rc := C.libusb_detach_kernel_driver(handle, C.int(i)); rc != 0 {
				return fmt.Errorf("bulkusb: libusb_detach_kernel_driver: %s", C.GoString(C.libusb_error_name(rc)))
			}
		}
	}
	return nil
}

func releaseDevice() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if openDevices > 0 {
		openDevices--
	}
}
