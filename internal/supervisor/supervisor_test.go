package supervisor

import (
	"strings"
	"testing"
	"time"

	"github.com/ehrlich-b/eeipc/internal/interfaces"
)

func TestNextPortMonotonic(t *testing.T) {
	a := nextPort()
	b := nextPort()
	if b != a+1 {
		t.Fatalf("ports not monotonic: %d then %d", a, b)
	}
}

// TestReadOutputHandshake exercises the handshake scenario: the
// reader recognizes the PID line, then a later "listening" line
// unblocks WaitForHandshake.
func TestReadOutputHandshake(t *testing.T) {
	ResetInstrumentationErrors()
	s := &Supervisor{
		cfg:    Config{Mode: Direct},
		ready:  make(chan struct{}),
		failed: make(chan error, 1),
	}

	r := strings.NewReader("pid=4242=\nstarting up\nsocket listening on port 21214\n")
	s.wg.Add(1)
	go s.readOutput(r)

	if err := s.WaitForHandshake(2 * time.Second); err != nil {
		t.Fatalf("WaitForHandshake: %v", err)
	}
	if s.pid != 4242 {
		t.Fatalf("pid = %d, want 4242", s.pid)
	}
}

// TestReadOutputExitBeforeHandshake covers the boundary behavior: a
// child that closes stdout before emitting "listening" must fail
// supervisor startup, not hang.
func TestReadOutputExitBeforeHandshake(t *testing.T) {
	s := &Supervisor{
		cfg:    Config{Mode: Direct},
		ready:  make(chan struct{}),
		failed: make(chan error, 1),
	}

	r := strings.NewReader("pid=99=\nEE crashed before starting\n")
	s.wg.Add(1)
	go s.readOutput(r)

	err := s.WaitForHandshake(2 * time.Second)
	if err == nil {
		t.Fatal("expected an error when the child exits before handshaking")
	}
}

func TestInstrumentedCleanExit(t *testing.T) {
	ResetInstrumentationErrors()
	s := &Supervisor{
		cfg:    Config{Mode: Instrumented},
		ready:  make(chan struct{}),
		failed: make(chan error, 1),
		pid:    123,
	}
	r := strings.NewReader(
		"==123== pid=123=\n" +
			"listening on 21215\n" +
			"==123== ERROR SUMMARY: 0 errors\n" +
			"==123== All heap blocks were freed -- no leaks are possible\n",
	)
	s.wg.Add(1)
	go s.readOutput(r)
	s.WaitForHandshake(2 * time.Second)
	s.wg.Wait()

	if got := InstrumentationErrors(); len(got) != 0 {
		t.Fatalf("expected empty instrumentation error list, got %v", got)
	}
}

func TestInstrumentedDirtyExit(t *testing.T) {
	ResetInstrumentationErrors()
	s := &Supervisor{
		cfg:    Config{Mode: Instrumented},
		ready:  make(chan struct{}),
		failed: make(chan error, 1),
		pid:    456,
	}
	r := strings.NewReader(
		"==456== pid=456=\n" +
			"listening on 21216\n" +
			"==456== ERROR SUMMARY: 3 errors from 2 contexts\n",
	)
	s.wg.Add(1)
	go s.readOutput(r)
	s.WaitForHandshake(2 * time.Second)
	s.wg.Wait()

	got := InstrumentationErrors()
	if len(got) != 2 {
		t.Fatalf("expected 2 instrumentation errors (summary + missing clean-exit), got %v", got)
	}
}

// fakeObserver records every instrumentation-error notification it
// receives, ignoring the command/dependency events this suite doesn't
// exercise.
type fakeObserver struct {
	instrumentationErrors []string
}

func (f *fakeObserver) ObserveCommand(uint32, uint64, bool) {}
func (f *fakeObserver) ObserveDependencyCallback(bool)      {}
func (f *fakeObserver) ObserveInstrumentationError(msg string) {
	f.instrumentationErrors = append(f.instrumentationErrors, msg)
}

var _ interfaces.Observer = (*fakeObserver)(nil)

// TestInstrumentedDirtyExitNotifiesObserver reproduces the same leaky
// exit as TestInstrumentedDirtyExit but confirms the configured
// Observer is notified as each diagnostic is parsed, not just the
// process-wide list a caller would otherwise have to poll.
func TestInstrumentedDirtyExitNotifiesObserver(t *testing.T) {
	ResetInstrumentationErrors()
	obs := &fakeObserver{}
	s := &Supervisor{
		cfg:    Config{Mode: Instrumented, Observer: obs},
		ready:  make(chan struct{}),
		failed: make(chan error, 1),
		pid:    789,
	}
	r := strings.NewReader(
		"==789== pid=789=\n" +
			"listening on 21217\n" +
			"==789== ERROR SUMMARY: 1 errors from 1 contexts\n",
	)
	s.wg.Add(1)
	go s.readOutput(r)
	s.WaitForHandshake(2 * time.Second)
	s.wg.Wait()

	if len(obs.instrumentationErrors) != 2 {
		t.Fatalf("expected observer to see 2 diagnostics (summary + missing clean-exit), got %v", obs.instrumentationErrors)
	}
}
