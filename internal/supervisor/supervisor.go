// Package supervisor owns the EE child process: launching it (directly
// or under a memory checker), reading its combined stdout/stderr on a
// dedicated goroutine, recognizing the PID line and the "listening"
// handshake, and parsing memory-checker diagnostics into the
// process-wide instrumentation error list.
package supervisor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ehrlich-b/eeipc/internal/constants"
	"github.com/ehrlich-b/eeipc/internal/interfaces"
)

// LaunchMode selects how the EE process is obtained.
type LaunchMode int

const (
	// External means the driver does not start the EE; the operator
	// (or a test harness) starts it and tells the driver the port.
	External LaunchMode = iota
	// Direct spawns the EE binary with the chosen port as its sole
	// argument.
	Direct
	// Instrumented spawns a memory checker wrapping the EE binary.
	Instrumented
)

// portCounter is process-wide and monotonically increasing, shared by
// every Supervisor in this process.
var portCounter atomic.Int64

func init() {
	portCounter.Store(constants.BasePort)
}

// nextPort hands out the next port in the process-wide sequence.
func nextPort() int {
	return int(portCounter.Add(1) - 1)
}

// instrumentationErrors is the process-wide, multi-writer log of
// memory-checker diagnostics, consulted by tests at teardown.
var (
	instrumentationMu     sync.Mutex
	instrumentationErrors []string
)

// InstrumentationErrors returns a snapshot of the process-wide
// instrumentation error list.
func InstrumentationErrors() []string {
	instrumentationMu.Lock()
	defer instrumentationMu.Unlock()
	out := make([]string, len(instrumentationErrors))
	copy(out, instrumentationErrors)
	return out
}

func appendInstrumentationError(msg string) {
	instrumentationMu.Lock()
	instrumentationErrors = append(instrumentationErrors, msg)
	instrumentationMu.Unlock()
}

// recordInstrumentationError appends to the process-wide list and, if
// the supervisor was configured with one, notifies its observer so a
// driver's metrics reflect memory-checker diagnostics as they occur
// rather than only at Shutdown.
func (s *Supervisor) recordInstrumentationError(msg string) {
	appendInstrumentationError(msg)
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveInstrumentationError(msg)
	}
}

// ResetInstrumentationErrors clears the process-wide list; exported
// for test isolation only.
func ResetInstrumentationErrors() {
	instrumentationMu.Lock()
	instrumentationErrors = nil
	instrumentationMu.Unlock()
}

var pidLineRE = regexp.MustCompile(`=(\d+)=`)
var memcheckLineRE = regexp.MustCompile(`==(\d+)==`)
var errorSummaryRE = regexp.MustCompile(`ERROR SUMMARY:\s*(\d+)`)

// Config configures a Supervisor.
type Config struct {
	Mode   LaunchMode
	EEPath string // used when Mode != External; defaults to constants.DefaultEEPath
	SiteID uint32
	Logger interfaces.Logger

	// Observer receives instrumentation-error events as the memory
	// checker emits them, in addition to the process-wide log consulted
	// by InstrumentationErrors. Optional.
	Observer interfaces.Observer
}

// Supervisor manages the lifecycle of one EE child process.
type Supervisor struct {
	cfg    Config
	port   int
	cmd    *exec.Cmd
	pid    int
	ready  chan struct{}
	failed chan error
	wg     sync.WaitGroup

	cleanExit atomic.Bool
}

// New creates a Supervisor and, for Direct/Instrumented modes, spawns
// the child and starts its output reader. It returns once the
// supervisor is ready to hand the chosen port to the transport layer —
// callers must still wait on WaitForHandshake before dialing.
func New(cfg Config) (*Supervisor, error) {
	if cfg.EEPath == "" {
		cfg.EEPath = os.Getenv(constants.EnvEEPath)
		if cfg.EEPath == "" {
			cfg.EEPath = constants.DefaultEEPath
		}
	}
	s := &Supervisor{
		cfg:    cfg,
		port:   nextPort(),
		ready:  make(chan struct{}),
		failed: make(chan error, 1),
	}

	if cfg.Mode == External {
		return s, nil
	}

	argv, err := s.commandLine()
	if err != nil {
		return nil, err
	}

	s.cmd = exec.Command(argv[0], argv[1:]...)
	s.cmd.Stderr = nil // combined via Stdout below
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("supervisor: stdout pipe: %w", err)
	}
	s.cmd.Stderr = s.cmd.Stdout // combine stderr onto the same scanned stream
	s.cmd.SysProcAttr = childProcAttr()

	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("supervisor: start %s: %w", argv[0], err)
	}

	s.wg.Add(1)
	go s.readOutput(stdout)

	installShutdownHook(s)

	return s, nil
}

// Port returns the TCP port the transport should dial once the
// handshake completes.
func (s *Supervisor) Port() int { return s.port }

// commandLine builds the argv for Direct or Instrumented launch.
func (s *Supervisor) commandLine() ([]string, error) {
	switch s.cfg.Mode {
	case Direct:
		return []string{s.cfg.EEPath, strconv.Itoa(s.port)}, nil
	case Instrumented:
		args := []string{"valgrind",
			constants.MemcheckLeakCheck,
			constants.MemcheckShowReach,
			constants.MemcheckNumCallers,
			constants.MemcheckErrorExit,
		}
		if os.Getenv(constants.EnvEEPath) == "" {
			args = append(args, constants.MemcheckQuietArg,
				constants.MemcheckLogFileArg+fmt.Sprintf("site_%d.log", s.cfg.SiteID))
		}
		args = append(args, s.cfg.EEPath, strconv.Itoa(s.port))
		return args, nil
	default:
		return nil, fmt.Errorf("supervisor: commandLine called for External mode")
	}
}

// readOutput is the dedicated stdout reader goroutine: it runs for the
// lifetime of the child, recognizing the PID line, the handshake line,
// and memory-checker diagnostics, and echoing everything else to the
// logger.
func (s *Supervisor) readOutput(r io.Reader) {
	defer s.wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	first := true
	sawListening := false

	for scanner.Scan() {
		line := scanner.Text()

		if first {
			first = false
			if m := pidLineRE.FindStringSubmatch(line); m != nil {
				if pid, err := strconv.Atoi(m[1]); err == nil {
					s.pid = pid
				}
			}
		}

		if s.cfg.Logger != nil {
			s.cfg.Logger.Info("ee output", "line", line)
		}

		if strings.Contains(line, "listening") && !sawListening {
			sawListening = true
			close(s.ready)
		}

		if s.cfg.Mode == Instrumented {
			s.parseMemcheckLine(line)
		}
	}

	if s.cfg.Mode == Instrumented && !s.cleanExit.Load() {
		s.recordInstrumentationError("Not all heap blocks were freed")
	}

	if !sawListening {
		select {
		case <-s.ready:
		default:
			s.failed <- fmt.Errorf("supervisor: EE exited before emitting a listening handshake")
		}
	}
}

// parseMemcheckLine extracts ERROR SUMMARY and clean-exit markers from
// a memory-checker diagnostic line, gated on the PID the process
// reported in its first line.
func (s *Supervisor) parseMemcheckLine(line string) {
	if m := memcheckLineRE.FindStringSubmatch(line); m != nil {
		if pid, err := strconv.Atoi(m[1]); err != nil || (s.pid != 0 && pid != s.pid) {
			return
		}
	} else {
		return
	}

	if m := errorSummaryRE.FindStringSubmatch(line); m != nil {
		if n, _ := strconv.Atoi(m[1]); n != 0 {
			s.recordInstrumentationError(line)
		}
	}

	if strings.Contains(line, "All heap blocks were freed") {
		s.cleanExit.Store(true)
	}
}

// WaitForHandshake blocks until the child emits its "listening" line,
// or returns an error if the child exited first or the timeout elapses.
func (s *Supervisor) WaitForHandshake(timeout time.Duration) error {
	if s.cfg.Mode == External {
		return nil
	}
	select {
	case <-s.ready:
		return nil
	case err := <-s.failed:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("supervisor: timed out waiting for EE handshake")
	}
}

// Shutdown terminates the child (if one was spawned), waits for it to
// exit, and joins the reader goroutine.
func (s *Supervisor) Shutdown() error {
	defer forgetSupervisor(s)
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	if err := killProcessGroup(s.cmd.Process.Pid, syscall.SIGTERM); err != nil {
		_ = s.cmd.Process.Kill()
	}
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(constants.ShutdownGrace):
	}
	s.wg.Wait()
	return nil
}
