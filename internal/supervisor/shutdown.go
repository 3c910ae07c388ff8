package supervisor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// liveSupervisors tracks every Supervisor with a spawned child so a
// single process-wide signal handler can terminate all of them if the
// coordinator process receives SIGINT/SIGTERM.
var (
	hookOnce        sync.Once
	liveMu          sync.Mutex
	liveSupervisors = map[*Supervisor]struct{}{}
)

func installShutdownHook(s *Supervisor) {
	liveMu.Lock()
	liveSupervisors[s] = struct{}{}
	liveMu.Unlock()

	hookOnce.Do(func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			liveMu.Lock()
			targets := make([]*Supervisor, 0, len(liveSupervisors))
			for sv := range liveSupervisors {
				targets = append(targets, sv)
			}
			liveMu.Unlock()
			for _, sv := range targets {
				sv.Shutdown()
			}
			os.Exit(1)
		}()
	})
}

// forgetSupervisor removes s from the shutdown-hook registry; called
// once a supervisor has cleanly shut down so the hook doesn't try to
// kill an already-reaped child.
func forgetSupervisor(s *Supervisor) {
	liveMu.Lock()
	delete(liveSupervisors, s)
	liveMu.Unlock()
}
