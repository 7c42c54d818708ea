package timssdr

import "github.com/harshaampar/timssdr/internal/constants"

// Re-exported for callers that want the device's fixed parameters without
// reaching into internal/constants directly.
const (
	VendorID         = constants.VendorID
	ProductID        = constants.ProductID
	USBConfiguration = constants.USBConfiguration
	USBInterface     = constants.USBInterface
	RXEndpoint       = constants.RXEndpoint
	TXEndpoint       = constants.TXEndpoint
	TransferCount    = constants.TransferCount
	BufferSize       = constants.BufferSize
	FlushBufferSize  = constants.FlushBufferSize
	PacketMultiple   = constants.PacketMultiple
)

var (
	USBOperationTimeout = constants.USBOperationTimeout
	EventPumpTick       = constants.EventPumpTick
)
