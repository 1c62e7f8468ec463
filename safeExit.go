package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

// SafeExit runs the registered cleanup functions when the process is asked
// to stop, then exits with a non-zero status. Journals of unfinished builds
// are flushed but kept, so the interrupted output stays marked incomplete.
type SafeExit struct {
	funcs  []func()
	mu     sync.Mutex
	sigs   chan os.Signal
	logger logrus.FieldLogger
	exitFn func(int)
}

func NewSafeExit(logger logrus.FieldLogger) *SafeExit {
	s := &SafeExit{
		sigs:   make(chan os.Signal, 1),
		logger: logger,
		exitFn: os.Exit,
	}
	signal.Notify(s.sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go s.ListenSignal()
	return s
}

func (s *SafeExit) Register(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.funcs = append(s.funcs, f)
}

func (s *SafeExit) exit(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.funcs) - 1; i >= 0; i-- {
		s.funcs[i]()
	}
	s.exitFn(code)
}

func (s *SafeExit) ListenSignal() {
	for sig := range s.sigs {
		s.logger.Warnf("received signal %s, stopping; unfinished output stays marked incomplete", sig)
		s.exit(1)
	}
}

// Stop detaches from the signals once the run is over.
func (s *SafeExit) Stop() {
	signal.Stop(s.sigs)
	close(s.sigs)
}
