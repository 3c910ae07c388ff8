package eeipc

import (
	"sync"

	"github.com/ehrlich-b/eeipc/internal/interfaces"
)

// MockCoordinator is a test double for interfaces.Coordinator: it
// answers dependency pulls from a preloaded table and records crash
// reports instead of terminating the process, so tests can drive the
// reply reader's mid-reply callback loop and crash path without a
// real EE.
type MockCoordinator struct {
	mu sync.Mutex

	deps map[uint32][]byte

	dependencyCalls int
	lastDepID       uint32

	crashes []interfaces.CrashReport
}

// NewMockCoordinator creates an empty MockCoordinator; use
// SetDependency to preload tables before use.
func NewMockCoordinator() *MockCoordinator {
	return &MockCoordinator{deps: make(map[uint32][]byte)}
}

// SetDependency preloads the table to return for a given dependency id.
func (m *MockCoordinator) SetDependency(depID uint32, table []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps[depID] = table
}

// NextDependency implements interfaces.Coordinator.
func (m *MockCoordinator) NextDependency(depID uint32) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dependencyCalls++
	m.lastDepID = depID
	table, ok := m.deps[depID]
	return table, ok
}

// FatalCrash implements interfaces.Coordinator by recording the
// report rather than terminating, so tests can assert on it.
func (m *MockCoordinator) FatalCrash(report interfaces.CrashReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crashes = append(m.crashes, report)
}

// DependencyCalls returns how many times NextDependency was invoked.
func (m *MockCoordinator) DependencyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dependencyCalls
}

// Crashes returns every crash report recorded so far.
func (m *MockCoordinator) Crashes() []interfaces.CrashReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]interfaces.CrashReport, len(m.crashes))
	copy(out, m.crashes)
	return out
}

// Reset clears call counters and recorded crashes, keeping preloaded
// dependencies.
func (m *MockCoordinator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dependencyCalls = 0
	m.lastDepID = 0
	m.crashes = nil
}

var _ interfaces.Coordinator = (*MockCoordinator)(nil)
