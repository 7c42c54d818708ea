package timssdr

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks per-device throughput and error statistics across RX, TX,
// and flush transfers.
type Metrics struct {
	RXBlocks atomic.Uint64 // Completed RX transfers
	TXBlocks atomic.Uint64 // Completed TX transfers
	FlushOps atomic.Uint64 // Flush transfer outcomes recorded

	RXBytes atomic.Uint64
	TXBytes atomic.Uint64

	RXErrors    atomic.Uint64
	TXErrors    atomic.Uint64
	FlushErrors atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// LatencyBuckets are cumulative counts: bucket[i] holds the count of
	// operations observed with latency <= LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordRX records a completed (or failed) RX transfer.
func (m *Metrics) RecordRX(bytes uint64, latencyNs uint64, success bool) {
	m.RXBlocks.Add(1)
	if success {
		m.RXBytes.Add(bytes)
	} else {
		m.RXErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordTX records a completed (or failed) TX transfer.
func (m *Metrics) RecordTX(bytes uint64, latencyNs uint64, success bool) {
	m.TXBlocks.Add(1)
	if success {
		m.TXBytes.Add(bytes)
	} else {
		m.TXErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordFlush records the outcome of the end-of-TX flush transfer.
func (m *Metrics) RecordFlush(latencyNs uint64, success bool) {
	m.FlushOps.Add(1)
	if !success {
		m.FlushErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the device as stopped, for uptime calculation.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	RXBlocks uint64
	TXBlocks uint64
	FlushOps uint64

	RXBytes uint64
	TXBytes uint64

	RXErrors    uint64
	TXErrors    uint64
	FlushErrors uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	RXThroughputBps float64
	TXThroughputBps float64
	TotalOps        uint64
	TotalBytes      uint64
	ErrorRate       float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		RXBlocks:    m.RXBlocks.Load(),
		TXBlocks:    m.TXBlocks.Load(),
		FlushOps:    m.FlushOps.Load(),
		RXBytes:     m.RXBytes.Load(),
		TXBytes:     m.TXBytes.Load(),
		RXErrors:    m.RXErrors.Load(),
		TXErrors:    m.TXErrors.Load(),
		FlushErrors: m.FlushErrors.Load(),
	}

	snap.TotalOps = snap.RXBlocks + snap.TXBlocks + snap.FlushOps
	snap.TotalBytes = snap.RXBytes + snap.TXBytes

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.RXThroughputBps = float64(snap.RXBytes) / uptimeSeconds
		snap.TXThroughputBps = float64(snap.TXBytes) / uptimeSeconds
	}

	totalErrors := snap.RXErrors + snap.TXErrors + snap.FlushErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset zeroes all counters. Useful between test cases.
func (m *Metrics) Reset() {
	m.RXBlocks.Store(0)
	m.TXBlocks.Store(0)
	m.FlushOps.Store(0)
	m.RXBytes.Store(0)
	m.TXBytes.Store(0)
	m.RXErrors.Store(0)
	m.TXErrors.Store(0)
	m.FlushErrors.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer is the public, exported mirror of internal/interfaces.Observer —
// duplicated here (rather than aliased) so application code that wants to
// supply a custom observer via Options does not need to import an internal
// package.
type Observer interface {
	ObserveRX(bytes uint64, latencyNs uint64, success bool)
	ObserveTX(bytes uint64, latencyNs uint64, success bool)
	ObserveFlush(latencyNs uint64, success bool)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRX(uint64, uint64, bool) {}
func (NoOpObserver) ObserveTX(uint64, uint64, bool) {}
func (NoOpObserver) ObserveFlush(uint64, bool)      {}

// MetricsObserver implements Observer by recording into a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveRX(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordRX(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveTX(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordTX(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveFlush(latencyNs uint64, success bool) {
	o.metrics.RecordFlush(latencyNs, success)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
