package timssdr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	assert.Equal(t, uint64(0), snap.TotalOps)

	m.RecordRX(1024, 1_000_000, true) // 1KB RX, 1ms latency, success
	m.RecordTX(2048, 2_000_000, true) // 2KB TX, 2ms latency, success
	m.RecordRX(512, 500_000, false)   // 512B RX, 0.5ms latency, error

	snap = m.Snapshot()

	assert.Equal(t, uint64(2), snap.RXBlocks)
	assert.Equal(t, uint64(1), snap.TXBlocks)
	assert.Equal(t, uint64(1024), snap.RXBytes)
	assert.Equal(t, uint64(2048), snap.TXBytes)
	assert.Equal(t, uint64(1), snap.RXErrors)
	assert.Equal(t, uint64(0), snap.TXErrors)

	expectedErrorRate := float64(1) / float64(3) * 100.0
	assert.InDelta(t, expectedErrorRate, snap.ErrorRate, 0.1)
}

func TestMetricsFlush(t *testing.T) {
	m := NewMetrics()

	m.RecordFlush(1_000_000, true)
	m.RecordFlush(1_000_000, false)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.FlushOps)
	assert.Equal(t, uint64(1), snap.FlushErrors)
}

func TestMetricsLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordRX(1024, 1_000_000, true) // 1ms
	m.RecordTX(1024, 2_000_000, true) // 2ms

	snap := m.Snapshot()
	assert.Equal(t, uint64(1_500_000), snap.AvgLatencyNs)
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)
	snap := m.Snapshot()
	assert.GreaterOrEqual(t, snap.UptimeNs, uint64(10*time.Millisecond))

	m.Stop()
	time.Sleep(5 * time.Millisecond)
	snap2 := m.Snapshot()
	assert.LessOrEqual(t, snap2.UptimeNs, snap.UptimeNs+uint64(2*time.Millisecond))
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordRX(1024, 1_000_000, true)
	m.RecordTX(2048, 2_000_000, true)

	snap := m.Snapshot()
	assert.NotZero(t, snap.TotalOps)

	m.Reset()

	snap = m.Snapshot()
	assert.Zero(t, snap.TotalOps)
	assert.Zero(t, snap.TotalBytes)
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveRX(1024, 1_000_000, true)
	observer.ObserveTX(1024, 1_000_000, true)
	observer.ObserveFlush(1_000_000, true)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveRX(1024, 1_000_000, true)
	metricsObserver.ObserveTX(2048, 2_000_000, true)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RXBlocks)
	assert.Equal(t, uint64(1), snap.TXBlocks)
	assert.Equal(t, uint64(1024), snap.RXBytes)
	assert.Equal(t, uint64(2048), snap.TXBytes)
}

func TestMetricsThroughput(t *testing.T) {
	m := NewMetrics()

	startTime := time.Now()
	m.StartTime.Store(startTime.UnixNano())

	m.RecordRX(1024, 1_000_000, true)
	m.RecordTX(2048, 2_000_000, true)

	stopTime := startTime.Add(1 * time.Second)
	m.StopTime.Store(stopTime.UnixNano())

	snap := m.Snapshot()
	assert.InDelta(t, 1024, snap.RXThroughputBps, 50)
	assert.InDelta(t, 2048, snap.TXThroughputBps, 50)
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordRX(1024, 500_000, true) // 500us
	}
	for i := 0; i < 49; i++ {
		m.RecordTX(1024, 5_000_000, true) // 5ms
	}
	m.RecordTX(1024, 50_000_000, true) // 50ms, P99

	snap := m.Snapshot()
	assert.Equal(t, uint64(100), snap.TotalOps)
	assert.GreaterOrEqual(t, snap.LatencyP50Ns, uint64(100_000))
	assert.LessOrEqual(t, snap.LatencyP50Ns, uint64(1_000_000))
	assert.GreaterOrEqual(t, snap.LatencyP99Ns, uint64(5_000_000))
	assert.LessOrEqual(t, snap.LatencyP99Ns, uint64(100_000_000))
}
