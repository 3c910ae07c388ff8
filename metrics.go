package eeipc

import (
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/eeipc/internal/interfaces"
	"github.com/ehrlich-b/eeipc/internal/wire"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// numCommands sizes the per-command counter arrays; command codes run
// 0..wire.CmdHashinate.
const numCommands = wire.CmdHashinate + 1

// Metrics tracks per-driver protocol-level statistics: commands issued
// by code, dependency callback traffic, instrumentation diagnostics
// surfaced by a memory-checked EE, and a latency histogram shared
// across all commands.
type Metrics struct {
	CommandCounts [numCommands]atomic.Uint64
	CommandErrors [numCommands]atomic.Uint64

	DependenciesFound    atomic.Uint64
	DependenciesNotFound atomic.Uint64

	InstrumentationErrorCount atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

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

// RecordCommand records one command's outcome and latency.
func (m *Metrics) RecordCommand(code uint32, latencyNs uint64, success bool) {
	if int(code) < len(m.CommandCounts) {
		m.CommandCounts[code].Add(1)
		if !success {
			m.CommandErrors[code].Add(1)
		}
	}
	m.recordLatency(latencyNs)
}

// RecordDependencyCallback records one RETRIEVE_DEPENDENCY round trip.
func (m *Metrics) RecordDependencyCallback(found bool) {
	if found {
		m.DependenciesFound.Add(1)
	} else {
		m.DependenciesNotFound.Add(1)
	}
}

// RecordInstrumentationError records one memory-checker diagnostic.
func (m *Metrics) RecordInstrumentationError() {
	m.InstrumentationErrorCount.Add(1)
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

// Stop marks the driver as released.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read
// without racing further updates.
type MetricsSnapshot struct {
	CommandCounts [numCommands]uint64
	CommandErrors [numCommands]uint64

	DependenciesFound    uint64
	DependenciesNotFound uint64

	InstrumentationErrorCount uint64

	TotalCommands uint64
	ErrorRate     float64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var snap MetricsSnapshot
	var totalErrors uint64
	for i := 0; i < numCommands; i++ {
		snap.CommandCounts[i] = m.CommandCounts[i].Load()
		snap.CommandErrors[i] = m.CommandErrors[i].Load()
		snap.TotalCommands += snap.CommandCounts[i]
		totalErrors += snap.CommandErrors[i]
	}
	if snap.TotalCommands > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalCommands) * 100.0
	}

	snap.DependenciesFound = m.DependenciesFound.Load()
	snap.DependenciesNotFound = m.DependenciesNotFound.Load()
	snap.InstrumentationErrorCount = m.InstrumentationErrorCount.Load()

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

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets.
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

// Reset zeroes all counters; useful for test isolation.
func (m *Metrics) Reset() {
	for i := 0; i < numCommands; i++ {
		m.CommandCounts[i].Store(0)
		m.CommandErrors[i].Store(0)
	}
	m.DependenciesFound.Store(0)
	m.DependenciesNotFound.Store(0)
	m.InstrumentationErrorCount.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// MetricsObserver implements interfaces.Observer by recording into a
// *Metrics. It is the Driver's default observer when the caller
// supplies none.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCommand(code uint32, latencyNs uint64, success bool) {
	o.metrics.RecordCommand(code, latencyNs, success)
}

func (o *MetricsObserver) ObserveDependencyCallback(found bool) {
	o.metrics.RecordDependencyCallback(found)
}

func (o *MetricsObserver) ObserveInstrumentationError(msg string) {
	o.metrics.RecordInstrumentationError()
}

var _ interfaces.Observer = (*MetricsObserver)(nil)
