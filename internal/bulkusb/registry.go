package bulkusb

/*
#include <libusb-1.0/libusb.h>
*/
import "C"

import (
	"sync"

	"github.com/harshaampar/timssdr/internal/interfaces"
)

// transferRegistry maps the Go-level Transfer handles the engine holds back
// to the underlying C transfer struct, since interfaces.Transfer.UserData
// is reserved for the engine's own bookkeeping and this package cannot
// repurpose it.
type transferRegistry struct {
	mu sync.Mutex
	m  map[*interfaces.Transfer]*C.struct_libusb_transfer
}

func newTransferRegistry() *transferRegistry {
	return &transferRegistry{m: make(map[*interfaces.Transfer]*C.struct_libusb_transfer)}
}

func (r *transferRegistry) store(cxfr *C.struct_libusb_transfer, t *interfaces.Transfer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[t] = cxfr
}

func (r *transferRegistry) lookupCTransfer(t *interfaces.Transfer) *C.struct_libusb_transfer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[t]
}

func (r *transferRegistry) delete(cxfr *C.struct_libusb_transfer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range r.m {
		if v == cxfr {
			delete(r.m, k)
			return
		}
	}
}

var cgoTransfers = newTransferRegistry()
