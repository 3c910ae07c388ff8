package eeipc

import (
	"testing"
	"time"

	"github.com/ehrlich-b/eeipc/internal/wire"
)

func TestMetricsInitialState(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot()
	if snap.TotalCommands != 0 {
		t.Errorf("expected 0 initial commands, got %d", snap.TotalCommands)
	}
}

func TestMetricsCommandCounts(t *testing.T) {
	m := NewMetrics()

	m.RecordCommand(wire.CmdTick, 1_000_000, true)
	m.RecordCommand(wire.CmdTick, 2_000_000, true)
	m.RecordCommand(wire.CmdPlanFragment, 500_000, false)

	snap := m.Snapshot()
	if snap.CommandCounts[wire.CmdTick] != 2 {
		t.Errorf("expected 2 Tick commands, got %d", snap.CommandCounts[wire.CmdTick])
	}
	if snap.CommandCounts[wire.CmdPlanFragment] != 1 {
		t.Errorf("expected 1 PlanFragment command, got %d", snap.CommandCounts[wire.CmdPlanFragment])
	}
	if snap.CommandErrors[wire.CmdPlanFragment] != 1 {
		t.Errorf("expected 1 PlanFragment error, got %d", snap.CommandErrors[wire.CmdPlanFragment])
	}
	if snap.TotalCommands != 3 {
		t.Errorf("expected 3 total commands, got %d", snap.TotalCommands)
	}

	expectedErrorRate := float64(1) / float64(3) * 100.0
	if snap.ErrorRate < expectedErrorRate-0.1 || snap.ErrorRate > expectedErrorRate+0.1 {
		t.Errorf("expected error rate ~%.1f%%, got %.1f%%", expectedErrorRate, snap.ErrorRate)
	}
}

func TestMetricsDependencyCallbacks(t *testing.T) {
	m := NewMetrics()

	m.RecordDependencyCallback(true)
	m.RecordDependencyCallback(true)
	m.RecordDependencyCallback(false)

	snap := m.Snapshot()
	if snap.DependenciesFound != 2 {
		t.Errorf("expected 2 found, got %d", snap.DependenciesFound)
	}
	if snap.DependenciesNotFound != 1 {
		t.Errorf("expected 1 not found, got %d", snap.DependenciesNotFound)
	}
}

func TestMetricsLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordCommand(wire.CmdTick, 1_000_000, true)
	m.RecordCommand(wire.CmdQuiesce, 2_000_000, true)

	snap := m.Snapshot()
	expectedAvgNs := uint64(1_500_000)
	if snap.AvgLatencyNs != expectedAvgNs {
		t.Errorf("expected avg latency %d ns, got %d ns", expectedAvgNs, snap.AvgLatencyNs)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()
	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1_000_000 {
		t.Errorf("expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1_000_000 {
		t.Errorf("uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordCommand(wire.CmdTick, 1_000_000, true)
	m.RecordDependencyCallback(true)
	m.RecordInstrumentationError()

	snap := m.Snapshot()
	if snap.TotalCommands == 0 {
		t.Error("expected some commands before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.TotalCommands != 0 {
		t.Errorf("expected 0 commands after reset, got %d", snap.TotalCommands)
	}
	if snap.DependenciesFound != 0 {
		t.Errorf("expected 0 dependency hits after reset, got %d", snap.DependenciesFound)
	}
	if snap.InstrumentationErrorCount != 0 {
		t.Errorf("expected 0 instrumentation errors after reset, got %d", snap.InstrumentationErrorCount)
	}
}

func TestMetricsObserverForwarding(t *testing.T) {
	m := NewMetrics()
	observer := NewMetricsObserver(m)

	observer.ObserveCommand(wire.CmdTick, 1_000_000, true)
	observer.ObserveDependencyCallback(true)
	observer.ObserveInstrumentationError("leak detected")

	snap := m.Snapshot()
	if snap.CommandCounts[wire.CmdTick] != 1 {
		t.Errorf("expected 1 Tick command from observer, got %d", snap.CommandCounts[wire.CmdTick])
	}
	if snap.DependenciesFound != 1 {
		t.Errorf("expected 1 dependency hit from observer, got %d", snap.DependenciesFound)
	}
	if snap.InstrumentationErrorCount != 1 {
		t.Errorf("expected 1 instrumentation error from observer, got %d", snap.InstrumentationErrorCount)
	}
}

func TestMetricsHistogramPercentiles(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordCommand(wire.CmdTick, 500_000, true) // 500us
	}
	for i := 0; i < 49; i++ {
		m.RecordCommand(wire.CmdTick, 5_000_000, true) // 5ms
	}
	m.RecordCommand(wire.CmdTick, 50_000_000, true) // 50ms, the slowest sample

	snap := m.Snapshot()
	if snap.TotalCommands != 100 {
		t.Errorf("expected 100 total commands, got %d", snap.TotalCommands)
	}
	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("expected P50 in 100us-1ms range, got %d ns", snap.LatencyP50Ns)
	}
	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("expected P99 in 5ms-100ms range, got %d ns", snap.LatencyP99Ns)
	}
}
