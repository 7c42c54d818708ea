package timssdr

// StartRX begins an RX streaming session. cb is invoked once per completed
// IN transfer with Transfer.ValidLength set to the number of bytes
// received; rxCtx is passed back unchanged on every call via
// Transfer.RXCtx.
func (d *Device) StartRX(cb SampleBlockFunc, rxCtx interface{}) error {
	if err := d.engine.StartRX(cb, rxCtx); err != nil {
		return wrapEngineErr("StartRX", err)
	}
	return nil
}

// StartTX begins a TX streaming session. cb is invoked once per OUT
// transfer slot needing a refill; it must set Transfer.ValidLength to the
// number of bytes of Transfer.Buffer it filled. Short writes are padded to
// the device's packet-size multiple before submission.
func (d *Device) StartTX(cb SampleBlockFunc, txCtx interface{}) error {
	if err := d.engine.StartTX(cb, txCtx); err != nil {
		return wrapEngineErr("StartTX", err)
	}
	return nil
}

// StopRX ends an RX session, cancelling and draining all in-flight
// transfers before returning.
func (d *Device) StopRX() error {
	if err := d.engine.StopRX(); err != nil {
		return wrapEngineErr("StopRX", err)
	}
	return nil
}

// StopTX ends a TX session. If EnableTXFlush is armed, the dedicated flush
// transfer is submitted (if the sample-block callback hadn't already ended
// the session and triggered it) and drained before StopTX returns.
// FlushFunc may already have fired by the time StopTX is called — it is
// invoked as soon as the flush transfer completes, not deferred to StopTX.
func (d *Device) StopTX() error {
	if err := d.engine.StopTX(); err != nil {
		return wrapEngineErr("StopTX", err)
	}
	return nil
}

// SetTXBlockCompleteCallback installs (or clears, with nil) the
// per-transfer completion observer used during TX sessions.
func (d *Device) SetTXBlockCompleteCallback(cb TXBlockCompleteFunc) {
	d.engine.SetTXBlockCompleteCallback(cb)
}

// EnableTXFlush arms the end-of-session flush transfer and installs the
// callback invoked once it (or its cancellation) completes.
func (d *Device) EnableTXFlush(cb FlushFunc, ctx interface{}) {
	d.engine.EnableTXFlush(cb, ctx)
}

// DisableTXFlush disarms the flush transfer configured by EnableTXFlush.
func (d *Device) DisableTXFlush() {
	d.engine.DisableTXFlush()
}

// StreamStatus mirrors engine.Status: a best-effort, lock-free snapshot of
// whether the device is currently streaming.
type StreamStatus int

const (
	StreamStatusStreaming StreamStatus = iota
	StreamStatusStopped
	StreamStatusThreadErr
	StreamStatusExitCalled
)

// IsStreaming reports the device's current streaming status without
// blocking on the transfer lock.
func (d *Device) IsStreaming() StreamStatus {
	return StreamStatus(d.engine.IsStreaming())
}
